package errors

import (
	"errors"
	"net/http"
)

// Response error response
type Response struct {
	Error       error
	ErrorCode   int
	Description string
	URI         string
	StatusCode  int
	Header      http.Header
}

// NewResponse create the response pointer
func NewResponse(err error, statusCode int) *Response {
	return &Response{
		Error:      err,
		StatusCode: statusCode,
	}
}

// SetHeader sets the header entries associated with key to the single
// element value.
func (r *Response) SetHeader(key, value string) {
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	r.Header.Set(key, value)
}

// protocol error taxonomy (RFC 6749 4.1.2.1, 5.2; RFC 6750 3.1)
var (
	ErrInvalidRequest          = errors.New("invalid_request")
	ErrUnauthorizedClient      = errors.New("unauthorized_client")
	ErrAccessDenied            = errors.New("access_denied")
	ErrUnsupportedResponseType = errors.New("unsupported_response_type")
	ErrInvalidScope            = errors.New("invalid_scope")
	ErrServerError             = errors.New("server_error")
	ErrTemporarilyUnavailable  = errors.New("temporarily_unavailable")
	ErrInvalidClient           = errors.New("invalid_client")
	ErrInvalidGrant            = errors.New("invalid_grant")
	ErrUnsupportedGrantType    = errors.New("unsupported_grant_type")
)

// Descriptions error description
var Descriptions = map[error]string{
	ErrInvalidRequest:          "The request is missing a required parameter, includes an invalid parameter value, includes a parameter more than once, or is otherwise malformed",
	ErrUnauthorizedClient:      "The client is not authorized to request an authorization code using this method",
	ErrAccessDenied:            "The resource owner or authorization server denied the request",
	ErrUnsupportedResponseType: "The authorization server does not support obtaining an authorization code using this method",
	ErrInvalidScope:            "The requested scope is invalid, unknown, or malformed",
	ErrServerError:             "The authorization server encountered an unexpected condition that prevented it from fulfilling the request",
	ErrTemporarilyUnavailable:  "The authorization server is currently unable to handle the request due to a temporary overloading or maintenance of the server",
	ErrInvalidClient:           "Client authentication failed",
	ErrInvalidGrant:            "The provided authorization grant (e.g., authorization code, resource owner credentials) or refresh token is invalid, expired, revoked, does not match the redirection URI used in the authorization request, or was issued to another client",
	ErrUnsupportedGrantType:    "The authorization grant type is not supported by the authorization server",
	ErrInvalidAccessToken:      "The access token provided is invalid",
	ErrExpiredAccessToken:      "The access token provided is expired",
	ErrMissingAccessToken:      "The access token is missing from the request",
	ErrInvalidRefreshToken:     "The refresh token provided is invalid",
	ErrExpiredRefreshToken:     "The refresh token provided is expired",
	ErrStorageUnavailable:      "The token storage is temporarily unavailable",
}

// StatusCodes response error HTTP status code
var StatusCodes = map[error]int{
	ErrInvalidRequest:          http.StatusBadRequest,
	ErrUnauthorizedClient:      http.StatusUnauthorized,
	ErrAccessDenied:            http.StatusForbidden,
	ErrUnsupportedResponseType: http.StatusBadRequest,
	ErrInvalidScope:            http.StatusBadRequest,
	ErrServerError:             http.StatusInternalServerError,
	ErrTemporarilyUnavailable:  http.StatusServiceUnavailable,
	ErrInvalidClient:           http.StatusUnauthorized,
	ErrInvalidGrant:            http.StatusBadRequest,
	ErrUnsupportedGrantType:    http.StatusBadRequest,
	ErrInvalidAccessToken:      http.StatusUnauthorized,
	ErrExpiredAccessToken:      http.StatusUnauthorized,
	ErrMissingAccessToken:      http.StatusUnauthorized,
	ErrInvalidRefreshToken:     http.StatusUnauthorized,
	ErrExpiredRefreshToken:     http.StatusUnauthorized,
	ErrStorageUnavailable:      http.StatusServiceUnavailable,
}
