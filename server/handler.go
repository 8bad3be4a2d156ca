package server

import (
	"net/http"
	"strings"
	"time"

	oauthserver "github.com/kaz29/oauth-server"
	"github.com/kaz29/oauth-server/errors"
)

type (
	// ClientInfoHandler get client info from request
	ClientInfoHandler func(r *http.Request) (clientID, clientSecret string, err error)

	// ClientAuthorizedHandler check the client allows to use this authorization grant type
	ClientAuthorizedHandler func(clientID string, grant oauthserver.GrantType) (allowed bool, err error)

	// ClientScopeHandler check the client allows to use scope
	ClientScopeHandler func(tgr *oauthserver.TokenGenerateRequest) (allowed bool, err error)

	// OwnerAuthorizationHandler get the authenticated resource owner for the
	// authorization request. Returning empty values without an error means the
	// owner is not logged in yet and the handler has taken over the response.
	OwnerAuthorizationHandler func(w http.ResponseWriter, r *http.Request) (ownerModel, ownerID string, err error)

	// RefreshingScopeHandler check the scope of the refreshing token
	RefreshingScopeHandler func(tgr *oauthserver.TokenGenerateRequest, oldScope string) (allowed bool, err error)

	// RefreshingValidationHandler check if refresh_token is still valid
	RefreshingValidationHandler func(info oauthserver.TokenInfo) (allowed bool, err error)

	// ResponseErrorHandler response error handing
	ResponseErrorHandler func(re *errors.Response)

	// InternalErrorHandler internal error handing
	InternalErrorHandler func(err error) (re *errors.Response)

	// PreRedirectErrorHandler is used to override the redirect-on-error behavior
	PreRedirectErrorHandler func(w http.ResponseWriter, req *AuthorizeRequest, err error) error

	// AuthorizeScopeHandler set the authorized scope
	AuthorizeScopeHandler func(w http.ResponseWriter, r *http.Request) (scope string, err error)

	// AccessTokenExpHandler set expiration date for the access token
	AccessTokenExpHandler func(w http.ResponseWriter, r *http.Request) (exp time.Duration, err error)

	// ExtensionFieldsHandler in response to the access token with the extension of the field
	ExtensionFieldsHandler func(ti oauthserver.TokenInfo) (fieldsValue map[string]interface{})

	// ResponseTokenHandler response token handing
	ResponseTokenHandler func(w http.ResponseWriter, data map[string]interface{}, header http.Header, statusCode ...int) error

	// AccessTokenResolveHandler resolve the access token from the request
	AccessTokenResolveHandler func(r *http.Request) (accessToken string, ok bool)

	// RefreshTokenResolveHandler resolve the refresh token from the request
	RefreshTokenResolveHandler func(r *http.Request) (refreshToken string, err error)
)

// ClientFormHandler get client data from form
func ClientFormHandler(r *http.Request) (string, string, error) {
	clientID := r.Form.Get("client_id")
	if clientID == "" {
		return "", "", errors.ErrInvalidClient
	}
	clientSecret := r.Form.Get("client_secret")
	return clientID, clientSecret, nil
}

// ClientBasicHandler get client data from basic authorization
func ClientBasicHandler(r *http.Request) (string, string, error) {
	username, password, ok := r.BasicAuth()
	if !ok {
		return "", "", errors.ErrInvalidClient
	}
	return username, password, nil
}

// ClientBasicFormHandler get client data from basic authorization, falling
// back to form fields when no Authorization header is present.
func ClientBasicFormHandler(r *http.Request) (string, string, error) {
	if username, password, ok := r.BasicAuth(); ok {
		return username, password, nil
	}
	return ClientFormHandler(r)
}

// AccessTokenDefaultResolveHandler resolves the access token from the
// Authorization header, falling back to the access_token form or query
// parameter.
func AccessTokenDefaultResolveHandler(r *http.Request) (string, bool) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		prefix := "Bearer "
		if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
			if token := strings.TrimSpace(auth[len(prefix):]); token != "" {
				return token, true
			}
		}
		return "", false
	}
	if token := FormValue(r, "access_token"); token != "" {
		return token, true
	}
	return "", false
}

// RefreshTokenFormResolveHandler resolves the refresh token from the
// refresh_token form parameter.
func RefreshTokenFormResolveHandler(r *http.Request) (string, error) {
	refresh := FormValue(r, "refresh_token")
	if refresh == "" {
		return "", errors.ErrInvalidRequest
	}
	return refresh, nil
}

// FormValue reads a form value, parsing the form first when needed.
func FormValue(r *http.Request, key string) string {
	if r.Form == nil {
		_ = r.ParseForm()
	}
	return r.FormValue(key)
}
