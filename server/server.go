package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	oauthserver "github.com/kaz29/oauth-server"
	"github.com/kaz29/oauth-server/errors"
)

// NewDefaultServer create a default authorization server
func NewDefaultServer(manager oauthserver.Manager) *Server {
	return NewServer(NewConfig(), manager)
}

// NewServer create authorization server
func NewServer(cfg *Config, manager oauthserver.Manager) *Server {
	srv := &Server{
		Config:  cfg,
		Manager: manager,
	}

	// default handlers
	srv.ClientInfoHandler = ClientBasicFormHandler
	srv.RefreshTokenResolveHandler = RefreshTokenFormResolveHandler
	srv.AccessTokenResolveHandler = AccessTokenDefaultResolveHandler

	srv.OwnerAuthorizationHandler = func(w http.ResponseWriter, r *http.Request) (string, string, error) {
		return "", "", errors.ErrAccessDenied
	}
	return srv
}

// Server Provide authorization server
type Server struct {
	Config                      *Config
	Manager                     oauthserver.Manager
	ClientInfoHandler           ClientInfoHandler
	ClientAuthorizedHandler     ClientAuthorizedHandler
	ClientScopeHandler          ClientScopeHandler
	OwnerAuthorizationHandler   OwnerAuthorizationHandler
	RefreshingValidationHandler RefreshingValidationHandler
	PreRedirectErrorHandler     PreRedirectErrorHandler
	RefreshingScopeHandler      RefreshingScopeHandler
	ResponseErrorHandler        ResponseErrorHandler
	InternalErrorHandler        InternalErrorHandler
	ExtensionFieldsHandler      ExtensionFieldsHandler
	AccessTokenExpHandler       AccessTokenExpHandler
	AuthorizeScopeHandler       AuthorizeScopeHandler
	ResponseTokenHandler        ResponseTokenHandler
	RefreshTokenResolveHandler  RefreshTokenResolveHandler
	AccessTokenResolveHandler   AccessTokenResolveHandler
}

// SetClientInfoHandler get client info from request
func (s *Server) SetClientInfoHandler(handler ClientInfoHandler) {
	s.ClientInfoHandler = handler
}

// SetClientAuthorizedHandler check the client allows to use this authorization grant type
func (s *Server) SetClientAuthorizedHandler(handler ClientAuthorizedHandler) {
	s.ClientAuthorizedHandler = handler
}

// SetClientScopeHandler check the client allows to use scope
func (s *Server) SetClientScopeHandler(handler ClientScopeHandler) {
	s.ClientScopeHandler = handler
}

// SetOwnerAuthorizationHandler get the authenticated resource owner
func (s *Server) SetOwnerAuthorizationHandler(handler OwnerAuthorizationHandler) {
	s.OwnerAuthorizationHandler = handler
}

// SetAccessTokenResolveHandler resolve the access token from the request
func (s *Server) SetAccessTokenResolveHandler(handler AccessTokenResolveHandler) {
	s.AccessTokenResolveHandler = handler
}

// SetRefreshTokenResolveHandler resolve the refresh token from the request
func (s *Server) SetRefreshTokenResolveHandler(handler RefreshTokenResolveHandler) {
	s.RefreshTokenResolveHandler = handler
}

// SetRefreshingScopeHandler check the scope of the refreshing token
func (s *Server) SetRefreshingScopeHandler(handler RefreshingScopeHandler) {
	s.RefreshingScopeHandler = handler
}

// SetExtensionFieldsHandler in response to the access token with the extension of the field
func (s *Server) SetExtensionFieldsHandler(handler ExtensionFieldsHandler) {
	s.ExtensionFieldsHandler = handler
}

// SetResponseErrorHandler response error handling
func (s *Server) SetResponseErrorHandler(handler ResponseErrorHandler) {
	s.ResponseErrorHandler = handler
}

// SetInternalErrorHandler internal error handling
func (s *Server) SetInternalErrorHandler(handler InternalErrorHandler) {
	s.InternalErrorHandler = handler
}

// SetPreRedirectErrorHandler set spearate handler for errors occuring before redirect
func (s *Server) SetPreRedirectErrorHandler(handler PreRedirectErrorHandler) {
	s.PreRedirectErrorHandler = handler
}

// SetResponseTokenHandler response token handling
func (s *Server) SetResponseTokenHandler(handler ResponseTokenHandler) {
	s.ResponseTokenHandler = handler
}

// SetAllowGetAccessRequest to allow GET requests for the token
func (s *Server) SetAllowGetAccessRequest(allow bool) {
	s.Config.AllowGetAccessRequest = allow
}

// SetAllowedResponseType allow the authorization types
func (s *Server) SetAllowedResponseType(types ...oauthserver.ResponseType) {
	s.Config.AllowedResponseTypes = types
}

// SetAllowedGrantType allow the grant types
func (s *Server) SetAllowedGrantType(types ...oauthserver.GrantType) {
	s.Config.AllowedGrantTypes = types
}

func (s *Server) handleError(w http.ResponseWriter, req *AuthorizeRequest, err error) error {
	if fn := s.PreRedirectErrorHandler; fn != nil {
		return fn(w, req, err)
	}

	return s.redirectError(w, req, err)
}

func (s *Server) redirectError(w http.ResponseWriter, req *AuthorizeRequest, err error) error {
	if req == nil {
		return err
	}

	data, _, _ := s.GetErrorData(err)
	return s.redirect(w, req, data)
}

func (s *Server) redirect(w http.ResponseWriter, req *AuthorizeRequest, data map[string]interface{}) error {
	uri, err := s.GetRedirectURI(req, data)
	if err != nil {
		return err
	}

	w.Header().Set("Location", uri)
	w.WriteHeader(302)
	return nil
}

func (s *Server) tokenError(w http.ResponseWriter, err error) error {
	data, statusCode, header := s.GetErrorData(err)
	return s.token(w, data, header, statusCode)
}

func (s *Server) token(w http.ResponseWriter, data map[string]interface{}, header http.Header, statusCode ...int) error {
	if fn := s.ResponseTokenHandler; fn != nil {
		return fn(w, data, header, statusCode...)
	}
	w.Header().Set("Content-Type", "application/json;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")

	for key := range header {
		w.Header().Set(key, header.Get(key))
	}

	status := http.StatusOK
	if len(statusCode) > 0 && statusCode[0] > 0 {
		status = statusCode[0]
	}

	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// GetRedirectURI get redirect uri
func (s *Server) GetRedirectURI(req *AuthorizeRequest, data map[string]interface{}) (string, error) {
	u, err := url.Parse(req.RedirectURI)
	if err != nil {
		return "", err
	}

	q := u.Query()
	if req.State != "" {
		q.Set("state", req.State)
	}

	for k, v := range data {
		q.Set(k, fmt.Sprint(v))
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// CheckResponseType check allows response type
func (s *Server) CheckResponseType(rt oauthserver.ResponseType) bool {
	for _, art := range s.Config.AllowedResponseTypes {
		if art == rt {
			return true
		}
	}
	return false
}

// ValidationAuthorizeRequest the authorization request validation
func (s *Server) ValidationAuthorizeRequest(r *http.Request) (*AuthorizeRequest, error) {
	redirectURI := FormValue(r, "redirect_uri")
	clientID := FormValue(r, "client_id")
	if !(r.Method == "GET" || r.Method == "POST") ||
		clientID == "" {
		return nil, errors.ErrInvalidRequest
	}

	resType := oauthserver.ResponseType(FormValue(r, "response_type"))
	if resType.String() == "" {
		return nil, errors.ErrUnsupportedResponseType
	} else if allowed := s.CheckResponseType(resType); !allowed {
		return nil, errors.ErrUnauthorizedClient
	}

	req := &AuthorizeRequest{
		RedirectURI:  redirectURI,
		ResponseType: resType,
		ClientID:     clientID,
		State:        FormValue(r, "state"),
		Scope:        FormValue(r, "scope"),
		Request:      r,
	}
	return req, nil
}

// GetAuthorizeToken get authorization token(code)
func (s *Server) GetAuthorizeToken(ctx context.Context, req *AuthorizeRequest) (oauthserver.TokenInfo, error) {
	// check the client allows the grant type
	if fn := s.ClientAuthorizedHandler; fn != nil {
		allowed, err := fn(req.ClientID, oauthserver.AuthorizationCode)
		if err != nil {
			return nil, err
		} else if !allowed {
			return nil, errors.ErrUnauthorizedClient
		}
	}

	tgr := &oauthserver.TokenGenerateRequest{
		ClientID:       req.ClientID,
		OwnerModel:     req.OwnerModel,
		OwnerID:        req.OwnerID,
		RedirectURI:    req.RedirectURI,
		Scope:          req.Scope,
		AccessTokenExp: req.AccessTokenExp,
		Request:        req.Request,
	}

	// check the client allows the authorized scope
	if fn := s.ClientScopeHandler; fn != nil {
		allowed, err := fn(tgr)
		if err != nil {
			return nil, err
		} else if !allowed {
			return nil, errors.ErrInvalidScope
		}
	}

	return s.Manager.GenerateAuthToken(ctx, req.ResponseType, tgr)
}

// GetAuthorizeData get authorization response data
func (s *Server) GetAuthorizeData(rt oauthserver.ResponseType, ti oauthserver.TokenInfo) map[string]interface{} {
	return map[string]interface{}{
		"code": ti.GetCode(),
	}
}

// HandleAuthorizeRequest the authorization request handling
func (s *Server) HandleAuthorizeRequest(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	req, err := s.ValidationAuthorizeRequest(r)
	if err != nil {
		return s.handleError(w, req, err)
	}

	// resource owner authorization
	ownerModel, ownerID, err := s.OwnerAuthorizationHandler(w, r)
	if err != nil {
		return s.handleError(w, req, err)
	} else if ownerModel == "" || ownerID == "" {
		return nil
	}
	req.OwnerModel = ownerModel
	req.OwnerID = ownerID

	// specify the scope of authorization
	if fn := s.AuthorizeScopeHandler; fn != nil {
		scope, err := fn(w, r)
		if err != nil {
			return err
		} else if scope != "" {
			req.Scope = scope
		}
	}

	// specify the expiration time of access token
	if fn := s.AccessTokenExpHandler; fn != nil {
		exp, err := fn(w, r)
		if err != nil {
			return err
		}
		req.AccessTokenExp = exp
	}

	ti, err := s.GetAuthorizeToken(ctx, req)
	if err != nil {
		return s.handleError(w, req, err)
	}

	// If the redirect URI is empty, the first registered URI of the client
	// is used.
	if req.RedirectURI == "" {
		client, err := s.Manager.GetClient(ctx, req.ClientID)
		if err != nil {
			return err
		}
		if uris := strings.Fields(client.GetRedirectURI()); len(uris) > 0 {
			req.RedirectURI = uris[0]
		}
	}

	return s.redirect(w, req, s.GetAuthorizeData(req.ResponseType, ti))
}

// ValidationTokenRequest the token request validation
func (s *Server) ValidationTokenRequest(r *http.Request) (oauthserver.GrantType, *oauthserver.TokenGenerateRequest, error) {
	if v := r.Method; !(v == "POST" ||
		(s.Config.AllowGetAccessRequest && v == "GET")) {
		return "", nil, errors.ErrInvalidRequest
	}

	gt := oauthserver.GrantType(FormValue(r, "grant_type"))
	if gt.String() == "" {
		return "", nil, errors.ErrUnsupportedGrantType
	}

	clientID, clientSecret, err := s.ClientInfoHandler(r)
	if err != nil {
		return "", nil, err
	}

	tgr := &oauthserver.TokenGenerateRequest{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Request:      r,
	}

	switch gt {
	case oauthserver.AuthorizationCode:
		tgr.RedirectURI = FormValue(r, "redirect_uri")
		tgr.Code = FormValue(r, "code")
		if tgr.RedirectURI == "" ||
			tgr.Code == "" {
			return "", nil, errors.ErrInvalidRequest
		}
	case oauthserver.ClientCredentials:
		tgr.Scope = FormValue(r, "scope")
	case oauthserver.Refreshing:
		tgr.Refresh, err = s.RefreshTokenResolveHandler(r)
		tgr.Scope = FormValue(r, "scope")
		if err != nil {
			return "", nil, err
		}
	}
	return gt, tgr, nil
}

// CheckGrantType check allows grant type
func (s *Server) CheckGrantType(gt oauthserver.GrantType) bool {
	for _, agt := range s.Config.AllowedGrantTypes {
		if agt == gt {
			return true
		}
	}
	return false
}

// GetAccessToken access token
func (s *Server) GetAccessToken(ctx context.Context, gt oauthserver.GrantType, tgr *oauthserver.TokenGenerateRequest) (oauthserver.TokenInfo,
	error) {
	if allowed := s.CheckGrantType(gt); !allowed {
		return nil, errors.ErrUnsupportedGrantType
	}

	if fn := s.ClientAuthorizedHandler; fn != nil {
		allowed, err := fn(tgr.ClientID, gt)
		if err != nil {
			return nil, err
		} else if !allowed {
			return nil, errors.ErrUnauthorizedClient
		}
	}

	switch gt {
	case oauthserver.AuthorizationCode:
		ti, err := s.Manager.GenerateAccessToken(ctx, gt, tgr)
		if err != nil {
			switch err {
			case errors.ErrInvalidAuthorizeCode:
				return nil, errors.ErrInvalidGrant
			case errors.ErrInvalidClient:
				return nil, errors.ErrInvalidClient
			default:
				return nil, err
			}
		}
		return ti, nil
	case oauthserver.ClientCredentials:
		if fn := s.ClientScopeHandler; fn != nil {
			allowed, err := fn(tgr)
			if err != nil {
				return nil, err
			} else if !allowed {
				return nil, errors.ErrInvalidScope
			}
		}
		return s.Manager.GenerateAccessToken(ctx, gt, tgr)
	case oauthserver.Refreshing:
		// check scope
		if scopeFn := s.RefreshingScopeHandler; tgr.Scope != "" && scopeFn != nil {
			rti, err := s.Manager.LoadRefreshToken(ctx, tgr.Refresh)
			if err != nil {
				if err == errors.ErrInvalidRefreshToken || err == errors.ErrExpiredRefreshToken {
					return nil, errors.ErrInvalidGrant
				}
				return nil, err
			}

			allowed, err := scopeFn(tgr, rti.GetScope())
			if err != nil {
				return nil, err
			} else if !allowed {
				return nil, errors.ErrInvalidScope
			}
		}

		if validationFn := s.RefreshingValidationHandler; validationFn != nil {
			rti, err := s.Manager.LoadRefreshToken(ctx, tgr.Refresh)
			if err != nil {
				if err == errors.ErrInvalidRefreshToken || err == errors.ErrExpiredRefreshToken {
					return nil, errors.ErrInvalidGrant
				}
				return nil, err
			}
			allowed, err := validationFn(rti)
			if err != nil {
				return nil, err
			} else if !allowed {
				return nil, errors.ErrInvalidGrant
			}
		}

		ti, err := s.Manager.RefreshAccessToken(ctx, tgr)
		if err != nil {
			if err == errors.ErrInvalidRefreshToken || err == errors.ErrExpiredRefreshToken {
				return nil, errors.ErrInvalidGrant
			}
			return nil, err
		}
		return ti, nil
	}

	return nil, errors.ErrUnsupportedGrantType
}

// GetTokenData token data
func (s *Server) GetTokenData(ti oauthserver.TokenInfo) map[string]interface{} {
	data := map[string]interface{}{
		"access_token": ti.GetAccess(),
		"token_type":   s.Config.TokenType,
		"expires_in":   int64(ti.GetAccessExpiresIn() / time.Second),
	}

	if scope := ti.GetScope(); scope != "" {
		data["scope"] = scope
	}

	if refresh := ti.GetRefresh(); refresh != "" {
		data["refresh_token"] = refresh
	}

	if fn := s.ExtensionFieldsHandler; fn != nil {
		ext := fn(ti)
		for k, v := range ext {
			if _, ok := data[k]; ok {
				continue
			}
			data[k] = v
		}
	}
	return data
}

// HandleTokenRequest token request handling
func (s *Server) HandleTokenRequest(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	gt, tgr, err := s.ValidationTokenRequest(r)
	if err != nil {
		return s.tokenError(w, err)
	}

	ti, err := s.GetAccessToken(ctx, gt, tgr)
	if err != nil {
		return s.tokenError(w, err)
	}

	return s.token(w, s.GetTokenData(ti), nil)
}

// GetErrorData get error response data
func (s *Server) GetErrorData(err error) (map[string]interface{}, int, http.Header) {
	if errors.Is(err, errors.ErrStorageUnavailable) {
		err = errors.ErrStorageUnavailable
	}

	var re errors.Response
	if v, ok := errors.Descriptions[err]; ok {
		re.Error = err
		re.Description = v
		re.StatusCode = errors.StatusCodes[err]
	} else {
		if fn := s.InternalErrorHandler; fn != nil {
			if v := fn(err); v != nil {
				re = *v
			}
		}

		if re.Error == nil {
			re.Error = errors.ErrServerError
			re.Description = errors.Descriptions[errors.ErrServerError]
			re.StatusCode = errors.StatusCodes[errors.ErrServerError]
		}
	}

	if re.Error == errors.ErrInvalidClient {
		re.SetHeader("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", s.Config.Realm))
	}

	if fn := s.ResponseErrorHandler; fn != nil {
		fn(&re)
	}

	data := make(map[string]interface{})
	if err := re.Error; err != nil {
		data["error"] = err.Error()
	}

	if v := re.ErrorCode; v != 0 {
		data["error_code"] = v
	}

	if v := re.Description; v != "" {
		data["error_description"] = v
	}

	if v := re.URI; v != "" {
		data["error_uri"] = v
	}

	statusCode := http.StatusInternalServerError
	if v := re.StatusCode; v > 0 {
		statusCode = v
	}

	return data, statusCode, re.Header
}

// ValidationBearerToken validation the bearer tokens
// https://tools.ietf.org/html/rfc6750
func (s *Server) ValidationBearerToken(r *http.Request) (oauthserver.TokenInfo, error) {
	ctx := r.Context()

	accessToken, ok := s.AccessTokenResolveHandler(r)
	if !ok {
		return nil, errors.ErrMissingAccessToken
	}

	return s.Manager.LoadAccessToken(ctx, accessToken)
}

// validateClientCredentials authenticates the requesting client for
// endpoints that require client authentication outside of token issuance.
func (s *Server) validateClientCredentials(r *http.Request) error {
	clientID, clientSecret, err := s.ClientInfoHandler(r)
	if err != nil {
		return errors.ErrInvalidClient
	}
	if _, err := s.Manager.ValidateClient(r.Context(), clientID, "", clientSecret); err != nil {
		return err
	}
	return nil
}

// HandleRevocationRequest implements RFC 7009 Token Revocation.
// POST with form fields: token (required), token_type_hint (optional: access_token|refresh_token).
// Successful revocation MUST return 200 OK with empty body.
func (s *Server) HandleRevocationRequest(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodPost {
		return s.tokenError(w, errors.ErrInvalidRequest)
	}
	if err := s.validateClientCredentials(r); err != nil {
		return s.tokenError(w, err)
	}

	token := FormValue(r, "token")
	if token == "" {
		return s.tokenError(w, errors.ErrInvalidRequest)
	}
	hint := FormValue(r, "token_type_hint")
	ctx := r.Context()

	// try revoke based on hint, then fallback
	success := false
	switch hint {
	case "access_token":
		if err := s.Manager.RemoveAccessToken(ctx, token); err == nil {
			success = true
		}
	case "refresh_token":
		if err := s.Manager.RemoveRefreshToken(ctx, token); err == nil {
			success = true
		}
	}
	if !success {
		// try both
		if err := s.Manager.RemoveAccessToken(ctx, token); err == nil {
			success = true
		} else if err := s.Manager.RemoveRefreshToken(ctx, token); err == nil {
			success = true
		}
	}

	// per RFC7009, always 200 OK even if the token was invalid/unknown
	w.WriteHeader(http.StatusOK)
	return nil
}

// HandleIntrospectionRequest implements RFC 7662 Token Introspection.
// Requires client authentication. Returns token metadata JSON.
func (s *Server) HandleIntrospectionRequest(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodPost {
		return s.tokenError(w, errors.ErrInvalidRequest)
	}
	if err := s.validateClientCredentials(r); err != nil {
		return s.tokenError(w, err)
	}

	token := FormValue(r, "token")
	if token == "" {
		return s.tokenError(w, errors.ErrInvalidRequest)
	}
	hint := FormValue(r, "token_type_hint")

	ctx := r.Context()
	var ti oauthserver.TokenInfo
	var loadErr error

	switch hint {
	case "access_token":
		ti, loadErr = s.Manager.LoadAccessToken(ctx, token)
	case "refresh_token":
		ti, loadErr = s.Manager.LoadRefreshToken(ctx, token)
	default:
		// try access then refresh
		ti, loadErr = s.Manager.LoadAccessToken(ctx, token)
		if loadErr != nil {
			ti, loadErr = s.Manager.LoadRefreshToken(ctx, token)
		}
	}

	active := loadErr == nil && ti != nil
	resp := map[string]interface{}{
		"active": active,
	}
	if active {
		// RFC7662 fields where available
		resp["client_id"] = ti.GetClientID()
		resp["scope"] = ti.GetScope()
		resp["token_type"] = s.Config.TokenType
		resp["exp"] = ti.GetAccessCreateAt().Add(ti.GetAccessExpiresIn()).Unix()
		resp["iat"] = ti.GetAccessCreateAt().Unix()
		resp["nbf"] = ti.GetAccessCreateAt().Unix()
		resp["aud"] = ti.GetClientID()
		if owner := ti.GetOwnerID(); owner != "" {
			resp["sub"] = owner
			resp["username"] = owner
			resp["owner_model"] = ti.GetOwnerModel()
		}
	}

	w.Header().Set("Content-Type", "application/json;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(http.StatusOK)
	return json.NewEncoder(w).Encode(resp)
}
