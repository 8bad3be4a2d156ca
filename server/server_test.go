package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gavv/httpexpect/v2"
	"github.com/gin-gonic/gin"

	oauthserver "github.com/kaz29/oauth-server"
	"github.com/kaz29/oauth-server/errors"
	"github.com/kaz29/oauth-server/generates"
	"github.com/kaz29/oauth-server/manage"
	"github.com/kaz29/oauth-server/models"
	"github.com/kaz29/oauth-server/store"
)

var (
	srv          *Server
	tsrv         *httptest.Server
	manager      *manage.Manager
	csrv         *httptest.Server
	clientID     = "111111"
	clientSecret = "11111111"
	ownerModel   = "Users"
	ownerID      = "5"
)

func init() {
	manager = manage.NewDefaultManager()
	manager.MustTokenStorage(store.NewMemoryTokenStore())
}

func clientStore(redirectURI string, public bool) oauthserver.ClientStore {
	clientStore := store.NewClientStore()
	var secret string
	if public {
		secret = ""
	} else {
		secret = clientSecret
	}
	_ = clientStore.Set(clientID, &models.Client{
		ID:          clientID,
		Secret:      secret,
		RedirectURI: redirectURI,
		Public:      public,
	})
	return clientStore
}

func scopeStore() oauthserver.ScopeStore {
	ss := store.NewScopeStore()
	_ = ss.Set("read", &models.Scope{ID: "read", Description: "Read access"})
	_ = ss.Set("write", &models.Scope{ID: "write", Description: "Write access"})
	return ss
}

func testServer(t *testing.T, w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/authorize":
		err := srv.HandleAuthorizeRequest(w, r)
		if err != nil {
			t.Error(err)
		}
	case "/token":
		err := srv.HandleTokenRequest(w, r)
		if err != nil {
			t.Error(err)
		}
	}
}

func defaultOwnerHandler(w http.ResponseWriter, r *http.Request) (string, string, error) {
	return ownerModel, ownerID, nil
}

func TestAuthorizeCode(t *testing.T) {
	tsrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		testServer(t, w, r)
	}))
	defer tsrv.Close()

	e := httpexpect.New(t, tsrv.URL)

	csrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth2":
			r.ParseForm()
			code, state := r.Form.Get("code"), r.Form.Get("state")
			if state != "123" {
				t.Error("unrecognized state:", state)
				return
			}
			resObj := e.POST("/token").
				WithFormField("redirect_uri", csrv.URL+"/oauth2").
				WithFormField("code", code).
				WithFormField("grant_type", "authorization_code").
				WithBasicAuth(clientID, clientSecret).
				Expect().
				Status(http.StatusOK).
				JSON().Object()

			t.Logf("%#v\n", resObj.Raw())

			validationAccessToken(t, resObj.Value("access_token").String().Raw())
		}
	}))
	defer csrv.Close()

	manager.MapClientStorage(clientStore(csrv.URL+"/oauth2", false))
	manager.MapScopeStorage(scopeStore())
	srv = NewDefaultServer(manager)
	srv.SetOwnerAuthorizationHandler(defaultOwnerHandler)

	e.GET("/authorize").
		WithQuery("response_type", "code").
		WithQuery("client_id", clientID).
		WithQuery("scope", "read").
		WithQuery("state", "123").
		WithQuery("redirect_uri", csrv.URL+"/oauth2").
		Expect().Status(http.StatusOK)
}

func TestAuthorizeCodeSingleUse(t *testing.T) {
	tsrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		testServer(t, w, r)
	}))
	defer tsrv.Close()

	e := httpexpect.New(t, tsrv.URL)

	csrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth2":
			r.ParseForm()
			code := r.Form.Get("code")

			e.POST("/token").
				WithFormField("redirect_uri", csrv.URL+"/oauth2").
				WithFormField("code", code).
				WithFormField("grant_type", "authorization_code").
				WithBasicAuth(clientID, clientSecret).
				Expect().
				Status(http.StatusOK)

			// the second exchange of the same code must fail
			resObj := e.POST("/token").
				WithFormField("redirect_uri", csrv.URL+"/oauth2").
				WithFormField("code", code).
				WithFormField("grant_type", "authorization_code").
				WithBasicAuth(clientID, clientSecret).
				Expect().
				Status(http.StatusBadRequest).
				JSON().Object()

			resObj.Value("error").String().IsEqual("invalid_grant")
		}
	}))
	defer csrv.Close()

	manager.MapClientStorage(clientStore(csrv.URL+"/oauth2", false))
	manager.MapScopeStorage(scopeStore())
	srv = NewDefaultServer(manager)
	srv.SetOwnerAuthorizationHandler(defaultOwnerHandler)

	e.GET("/authorize").
		WithQuery("response_type", "code").
		WithQuery("client_id", clientID).
		WithQuery("scope", "read").
		WithQuery("state", "123").
		WithQuery("redirect_uri", csrv.URL+"/oauth2").
		Expect().Status(http.StatusOK)
}

func TestAuthorizeRedirectURIMismatch(t *testing.T) {
	tsrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		testServer(t, w, r)
	}))
	defer tsrv.Close()

	e := httpexpect.New(t, tsrv.URL)

	manager.MapClientStorage(clientStore("http://registered.example.com/cb", false))
	manager.MapScopeStorage(scopeStore())
	srv = NewDefaultServer(manager)
	srv.SetOwnerAuthorizationHandler(defaultOwnerHandler)
	srv.SetPreRedirectErrorHandler(func(w http.ResponseWriter, req *AuthorizeRequest, err error) error {
		return srv.tokenError(w, err)
	})

	// a prefix of the registered URI is not an exact match
	resObj := e.GET("/authorize").
		WithQuery("response_type", "code").
		WithQuery("client_id", clientID).
		WithQuery("redirect_uri", "http://registered.example.com/cb/phish").
		Expect().
		Status(http.StatusUnauthorized).
		JSON().Object()

	resObj.Value("error").String().IsEqual("invalid_client")
}

func TestClientCredentials(t *testing.T) {
	tsrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		testServer(t, w, r)
	}))
	defer tsrv.Close()
	e := httpexpect.New(t, tsrv.URL)

	manager.MapClientStorage(clientStore("", false))
	manager.MapScopeStorage(scopeStore())

	srv = NewDefaultServer(manager)
	srv.SetClientInfoHandler(ClientFormHandler)

	srv.SetInternalErrorHandler(func(err error) (re *errors.Response) {
		t.Log("OAuth 2.0 Error:", err.Error())
		return
	})

	srv.SetResponseErrorHandler(func(re *errors.Response) {
		t.Log("Response Error:", re.Error)
	})

	srv.SetAllowedGrantType(oauthserver.ClientCredentials)
	srv.SetAllowGetAccessRequest(false)
	srv.SetExtensionFieldsHandler(func(ti oauthserver.TokenInfo) (fieldsValue map[string]interface{}) {
		fieldsValue = map[string]interface{}{
			"extension": "param",
		}
		return
	})
	srv.SetClientScopeHandler(func(tgr *oauthserver.TokenGenerateRequest) (allowed bool, err error) {
		allowed = true
		return
	})

	resObj := e.POST("/token").
		WithFormField("grant_type", "client_credentials").
		WithFormField("scope", "read").
		WithFormField("client_id", clientID).
		WithFormField("client_secret", clientSecret).
		Expect().
		Status(http.StatusOK).
		JSON().Object()

	t.Logf("%#v\n", resObj.Raw())

	resObj.Value("extension").String().IsEqual("param")
	resObj.NotContainsKey("refresh_token")

	validationAccessToken(t, resObj.Value("access_token").String().Raw())
}

func TestClientCredentialsPublicClientRejected(t *testing.T) {
	tsrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		testServer(t, w, r)
	}))
	defer tsrv.Close()
	e := httpexpect.New(t, tsrv.URL)

	manager.MapClientStorage(clientStore("", true))
	srv = NewDefaultServer(manager)
	srv.SetClientInfoHandler(ClientFormHandler)

	resObj := e.POST("/token").
		WithFormField("grant_type", "client_credentials").
		WithFormField("client_id", clientID).
		Expect().
		Status(http.StatusUnauthorized).
		JSON().Object()

	resObj.Value("error").String().IsEqual("invalid_client")
}

func TestRefreshing(t *testing.T) {
	tsrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		testServer(t, w, r)
	}))
	defer tsrv.Close()
	e := httpexpect.New(t, tsrv.URL)

	csrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth2":
			r.ParseForm()
			code, state := r.Form.Get("code"), r.Form.Get("state")
			if state != "123" {
				t.Error("unrecognized state:", state)
				return
			}
			jresObj := e.POST("/token").
				WithFormField("redirect_uri", csrv.URL+"/oauth2").
				WithFormField("code", code).
				WithFormField("grant_type", "authorization_code").
				WithBasicAuth(clientID, clientSecret).
				Expect().
				Status(http.StatusOK).
				JSON().Object()

			t.Logf("%#v\n", jresObj.Raw())

			jresObj.Value("scope").String().IsEqual("read write")
			validationAccessToken(t, jresObj.Value("access_token").String().Raw())
			oldRefresh := jresObj.Value("refresh_token").String().Raw()

			// narrowing the scope on refresh is allowed
			resObj := e.POST("/token").
				WithFormField("grant_type", "refresh_token").
				WithFormField("scope", "read").
				WithFormField("refresh_token", oldRefresh).
				WithBasicAuth(clientID, clientSecret).
				Expect().
				Status(http.StatusOK).
				JSON().Object()

			t.Logf("%#v\n", resObj.Raw())

			resObj.Value("scope").String().IsEqual("read")
			validationAccessToken(t, resObj.Value("access_token").String().Raw())

			// the rotated-out refresh token must no longer work
			errObj := e.POST("/token").
				WithFormField("grant_type", "refresh_token").
				WithFormField("refresh_token", oldRefresh).
				WithBasicAuth(clientID, clientSecret).
				Expect().
				Status(http.StatusBadRequest).
				JSON().Object()

			errObj.Value("error").String().IsEqual("invalid_grant")

			// widening past the original grant is rejected
			widenObj := e.POST("/token").
				WithFormField("grant_type", "refresh_token").
				WithFormField("scope", "read write admin"). // admin was never granted
				WithFormField("refresh_token", resObj.Value("refresh_token").String().Raw()).
				WithBasicAuth(clientID, clientSecret).
				Expect().
				Status(http.StatusBadRequest).
				JSON().Object()

			widenObj.Value("error").String().IsEqual("invalid_scope")
		}
	}))
	defer csrv.Close()

	manager.MapClientStorage(clientStore(csrv.URL+"/oauth2", false))
	manager.MapScopeStorage(scopeStore())
	srv = NewDefaultServer(manager)
	srv.SetOwnerAuthorizationHandler(defaultOwnerHandler)

	e.GET("/authorize").
		WithQuery("response_type", "code").
		WithQuery("client_id", clientID).
		WithQuery("scope", "read write").
		WithQuery("state", "123").
		WithQuery("redirect_uri", csrv.URL+"/oauth2").
		Expect().Status(http.StatusOK)
}

func TestScopeDeduplication(t *testing.T) {
	tsrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		testServer(t, w, r)
	}))
	defer tsrv.Close()
	e := httpexpect.New(t, tsrv.URL)

	manager.MapClientStorage(clientStore("", false))
	manager.MapScopeStorage(scopeStore())
	srv = NewDefaultServer(manager)
	srv.SetClientInfoHandler(ClientFormHandler)

	resObj := e.POST("/token").
		WithFormField("grant_type", "client_credentials").
		WithFormField("scope", "read write read").
		WithFormField("client_id", clientID).
		WithFormField("client_secret", clientSecret).
		Expect().
		Status(http.StatusOK).
		JSON().Object()

	resObj.Value("scope").String().IsEqual("read write")
}

func TestUnknownScope(t *testing.T) {
	tsrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		testServer(t, w, r)
	}))
	defer tsrv.Close()
	e := httpexpect.New(t, tsrv.URL)

	manager.MapClientStorage(clientStore("", false))
	manager.MapScopeStorage(scopeStore())
	srv = NewDefaultServer(manager)
	srv.SetClientInfoHandler(ClientFormHandler)

	resObj := e.POST("/token").
		WithFormField("grant_type", "client_credentials").
		WithFormField("scope", "galactic-domination").
		WithFormField("client_id", clientID).
		WithFormField("client_secret", clientSecret).
		Expect().
		Status(http.StatusBadRequest).
		JSON().Object()

	resObj.Value("error").String().IsEqual("invalid_scope")
}

func TestUnsupportedGrantType(t *testing.T) {
	tsrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		testServer(t, w, r)
	}))
	defer tsrv.Close()
	e := httpexpect.New(t, tsrv.URL)

	manager.MapClientStorage(clientStore("", false))
	srv = NewDefaultServer(manager)
	srv.SetClientInfoHandler(ClientFormHandler)

	resObj := e.POST("/token").
		WithFormField("grant_type", "password").
		WithFormField("username", "admin").
		WithFormField("password", "123456").
		WithFormField("client_id", clientID).
		WithFormField("client_secret", clientSecret).
		Expect().
		Status(http.StatusBadRequest).
		JSON().Object()

	resObj.Value("error").String().IsEqual("unsupported_grant_type")
}

func TestInvalidClientChallenge(t *testing.T) {
	tsrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		testServer(t, w, r)
	}))
	defer tsrv.Close()
	e := httpexpect.New(t, tsrv.URL)

	manager.MapClientStorage(clientStore("", false))
	srv = NewDefaultServer(manager)

	res := e.POST("/token").
		WithFormField("grant_type", "client_credentials").
		WithBasicAuth(clientID, "wrong-secret").
		Expect().
		Status(http.StatusUnauthorized)

	res.Header("WWW-Authenticate").Contains("Basic realm=")
	res.JSON().Object().Value("error").String().IsEqual("invalid_client")
}

func TestImplicitFlowDisabled(t *testing.T) {
	m := manage.NewDefaultManager()
	m.MustTokenStorage(store.NewMemoryTokenStore())
	s := NewDefaultServer(m)
	r := NewGinEngine(s)
	gsrv := httptest.NewServer(r)
	defer gsrv.Close()

	e := httpexpect.New(t, gsrv.URL)
	obj := e.GET("/oauth/authorize").
		WithQuery("response_type", "token").
		WithQuery("client_id", "dummy").
		WithQuery("redirect_uri", "http://localhost/callback").
		Expect().
		Status(http.StatusBadRequest).
		JSON().Object()
	obj.Value("error").String().IsEqual("unsupported_response_type")
	obj.Value("error_description").String().Contains("Implicit flow is disabled")
}

func TestBearerTokenResolution(t *testing.T) {
	manager.MapClientStorage(clientStore("", false))
	manager.MapScopeStorage(scopeStore())
	srv = NewDefaultServer(manager)
	srv.SetClientInfoHandler(ClientFormHandler)

	tsrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		testServer(t, w, r)
	}))
	defer tsrv.Close()
	e := httpexpect.New(t, tsrv.URL)

	resObj := e.POST("/token").
		WithFormField("grant_type", "client_credentials").
		WithFormField("client_id", clientID).
		WithFormField("client_secret", clientSecret).
		Expect().
		Status(http.StatusOK).
		JSON().Object()

	access := resObj.Value("access_token").String().Raw()

	// token via query parameter fallback
	req := httptest.NewRequest("GET", "http://example.com/resource?access_token="+url.QueryEscape(access), nil)
	if _, err := srv.ValidationBearerToken(req); err != nil {
		t.Errorf("query fallback failed: %v", err)
	}

	// missing token
	req = httptest.NewRequest("GET", "http://example.com/resource", nil)
	if _, err := srv.ValidationBearerToken(req); err != errors.ErrMissingAccessToken {
		t.Errorf("expected missing access token error, got %v", err)
	}

	// bogus token
	req = httptest.NewRequest("GET", "http://example.com/resource", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	if _, err := srv.ValidationBearerToken(req); err != errors.ErrInvalidAccessToken {
		t.Errorf("expected invalid access token error, got %v", err)
	}
}

func TestTokenMiddleware(t *testing.T) {
	m := manage.NewDefaultManager()
	m.MustTokenStorage(store.NewMemoryTokenStore())
	m.MapClientStorage(clientStore("", false))
	s := NewDefaultServer(m)
	s.SetClientInfoHandler(ClientFormHandler)

	engine := NewGinEngine(s)
	protected := engine.Group("/")
	protected.Use(s.TokenMiddleware())
	protected.GET("/me", func(c *gin.Context) {
		model, id := GetOwnerFromContext(c)
		c.JSON(http.StatusOK, gin.H{
			"owner_model": model,
			"owner_id":    id,
			"client_id":   GetClientIDFromContext(c),
			"scopes":      GetScopesFromContext(c),
		})
	})

	gsrv := httptest.NewServer(engine)
	defer gsrv.Close()
	e := httpexpect.New(t, gsrv.URL)

	resObj := e.POST("/oauth/token").
		WithFormField("grant_type", "client_credentials").
		WithFormField("client_id", clientID).
		WithFormField("client_secret", clientSecret).
		Expect().
		Status(http.StatusOK).
		JSON().Object()

	access := resObj.Value("access_token").String().Raw()

	e.GET("/me").
		WithHeader("Authorization", "Bearer "+access).
		Expect().
		Status(http.StatusOK).
		JSON().Object().
		Value("client_id").String().IsEqual(clientID)

	e.GET("/me").
		Expect().
		Status(http.StatusUnauthorized)
}

func TestRevocation(t *testing.T) {
	tsrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			_ = srv.HandleTokenRequest(w, r)
		case "/revoke":
			_ = srv.HandleRevocationRequest(w, r)
		}
	}))
	defer tsrv.Close()
	e := httpexpect.New(t, tsrv.URL)

	manager.MapClientStorage(clientStore("", false))
	srv = NewDefaultServer(manager)
	srv.SetClientInfoHandler(ClientFormHandler)

	resObj := e.POST("/token").
		WithFormField("grant_type", "client_credentials").
		WithFormField("client_id", clientID).
		WithFormField("client_secret", clientSecret).
		Expect().
		Status(http.StatusOK).
		JSON().Object()

	access := resObj.Value("access_token").String().Raw()

	e.POST("/revoke").
		WithFormField("token", access).
		WithFormField("token_type_hint", "access_token").
		WithFormField("client_id", clientID).
		WithFormField("client_secret", clientSecret).
		Expect().
		Status(http.StatusOK)

	req := httptest.NewRequest("GET", "http://example.com/resource", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	if _, err := srv.ValidationBearerToken(req); err == nil {
		t.Error("revoked token still accepted")
	}

	// revoking an unknown token still returns 200 per RFC 7009
	e.POST("/revoke").
		WithFormField("token", "unknown-token").
		WithFormField("client_id", clientID).
		WithFormField("client_secret", clientSecret).
		Expect().
		Status(http.StatusOK)
}

func TestIntrospection(t *testing.T) {
	tsrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			_ = srv.HandleTokenRequest(w, r)
		case "/introspect":
			_ = srv.HandleIntrospectionRequest(w, r)
		}
	}))
	defer tsrv.Close()
	e := httpexpect.New(t, tsrv.URL)

	manager.MapClientStorage(clientStore("", false))
	manager.MapScopeStorage(scopeStore())
	srv = NewDefaultServer(manager)
	srv.SetClientInfoHandler(ClientFormHandler)

	resObj := e.POST("/token").
		WithFormField("grant_type", "client_credentials").
		WithFormField("scope", "read").
		WithFormField("client_id", clientID).
		WithFormField("client_secret", clientSecret).
		Expect().
		Status(http.StatusOK).
		JSON().Object()

	access := resObj.Value("access_token").String().Raw()

	active := e.POST("/introspect").
		WithFormField("token", access).
		WithFormField("client_id", clientID).
		WithFormField("client_secret", clientSecret).
		Expect().
		Status(http.StatusOK).
		JSON().Object()

	active.Value("active").Boolean().IsTrue()
	active.Value("client_id").String().IsEqual(clientID)
	active.Value("scope").String().IsEqual("read")

	inactive := e.POST("/introspect").
		WithFormField("token", "unknown-token").
		WithFormField("client_id", clientID).
		WithFormField("client_secret", clientSecret).
		Expect().
		Status(http.StatusOK).
		JSON().Object()

	inactive.Value("active").Boolean().IsFalse()
}

// validation access token
func validationAccessToken(t *testing.T, accessToken string) {
	req := httptest.NewRequest("GET", "http://example.com", nil)

	req.Header.Set("Authorization", "Bearer "+accessToken)

	ti, err := srv.ValidationBearerToken(req)
	if err != nil {
		t.Error(err.Error())
		return
	}
	if ti.GetClientID() != clientID {
		t.Error("invalid access token")
	}
}

func TestTokenResponseContainsStandardFieldsOnly(t *testing.T) {
	m := manage.NewDefaultManager()
	m.SetAuthorizeCodeTokenCfg(manage.DefaultAuthorizeCodeTokenCfg)
	m.MapAccessGenerate(generates.NewAccessGenerate())
	m.MustTokenStorage(store.NewMemoryTokenStore())
	cs := store.NewClientStore()
	cs.Set("clientA", &models.Client{ID: "clientA", Secret: "secretA", RedirectURI: "http://localhost"})
	m.MapClientStorage(cs)
	s := NewDefaultServer(m)
	s.SetClientInfoHandler(ClientFormHandler)
	r := httptest.NewRequest("POST", "/oauth/token", strings.NewReader(url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"clientA"},
		"client_secret": {"secretA"},
	}.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	if err := s.HandleTokenRequest(w, r); err != nil {
		t.Fatalf("HandleTokenRequest error: %v", err)
	}
	if w.Code != 200 {
		t.Fatalf("unexpected status: %d", w.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, k := range []string{"access_token", "token_type", "expires_in"} {
		if _, ok := resp[k]; !ok {
			t.Errorf("missing field %q in token response", k)
		}
	}
	if _, ok := resp["refresh_token"]; ok {
		t.Error("client_credentials response must not contain refresh_token")
	}
}
