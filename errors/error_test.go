package errors_test

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/kaz29/oauth-server/errors"
)

func TestStorageWrapping(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := errors.Storage(cause)

	if !errors.Is(err, errors.ErrStorageUnavailable) {
		t.Error("wrapped storage error must match ErrStorageUnavailable")
	}
	if errors.Is(err, errors.ErrNotFound) {
		t.Error("storage error must not match ErrNotFound")
	}
}

func TestErrorTaxonomy(t *testing.T) {
	for _, err := range []error{
		errors.ErrInvalidRequest,
		errors.ErrUnauthorizedClient,
		errors.ErrAccessDenied,
		errors.ErrUnsupportedResponseType,
		errors.ErrInvalidScope,
		errors.ErrServerError,
		errors.ErrTemporarilyUnavailable,
		errors.ErrInvalidClient,
		errors.ErrInvalidGrant,
		errors.ErrUnsupportedGrantType,
	} {
		if errors.Descriptions[err] == "" {
			t.Errorf("missing description for %v", err)
		}
		if errors.StatusCodes[err] == 0 {
			t.Errorf("missing status code for %v", err)
		}
	}

	if errors.StatusCodes[errors.ErrInvalidClient] != http.StatusUnauthorized {
		t.Error("invalid_client must map to 401")
	}
	if errors.StatusCodes[errors.ErrInvalidGrant] != http.StatusBadRequest {
		t.Error("invalid_grant must map to 400")
	}
	if errors.StatusCodes[errors.ErrStorageUnavailable] != http.StatusServiceUnavailable {
		t.Error("storage unavailability must map to 503")
	}
}
