package errors

import (
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
var New = errors.New

// Is reports whether any error in err's chain matches target.
var Is = errors.Is

// known errors
var (
	ErrInvalidRedirectURI   = errors.New("invalid redirect uri")
	ErrInvalidAuthorizeCode = errors.New("invalid authorize code")
	ErrInvalidAccessToken   = errors.New("invalid access token")
	ErrExpiredAccessToken   = errors.New("expired access token")
	ErrMissingAccessToken   = errors.New("missing access token")
	ErrInvalidRefreshToken  = errors.New("invalid refresh token")
	ErrExpiredRefreshToken  = errors.New("expired refresh token")
	ErrNotFound             = errors.New("not found")
)

// StorageUnavailable indicates the storage collaborator failed for a reason
// other than a record not being found. It is fatal to the current request
// but not a protocol violation.
var ErrStorageUnavailable = errors.New("storage unavailable")

// Storage wraps a transport-level storage failure so callers can
// distinguish it from a not-found result via errors.Is.
func Storage(err error) error {
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}
