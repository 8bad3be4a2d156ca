package manage

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	oauthserver "github.com/kaz29/oauth-server"
	"github.com/kaz29/oauth-server/errors"
	"github.com/kaz29/oauth-server/generates"
	"github.com/kaz29/oauth-server/models"
)

// BeforeAuthorizeHandler may override the resolved owner identity before an
// authorization code is persisted. Returning empty strings keeps the owner
// from the request.
type BeforeAuthorizeHandler func(ctx context.Context, tgr *oauthserver.TokenGenerateRequest) (ownerModel, ownerID string, err error)

// NewDefaultManager create to default authorization management instance
func NewDefaultManager() *Manager {
	m := NewManager()
	m.MapAuthorizeGenerate(generates.NewAuthorizeGenerate())
	m.MapAccessGenerate(generates.NewAccessGenerate())
	return m
}

// NewManager create to authorization management instance
func NewManager() *Manager {
	return &Manager{
		codeExp:          DefaultCodeExp,
		authCodeTokenCfg: DefaultAuthorizeCodeTokenCfg,
		clientTokenCfg:   DefaultClientTokenCfg,
		refreshTokenCfg:  DefaultRefreshTokenCfg,
		validateURI:      DefaultValidateURI,
	}
}

// Manager provide authorization management
type Manager struct {
	codeExp           time.Duration
	authCodeTokenCfg  *Config
	clientTokenCfg    *Config
	refreshTokenCfg   *RefreshingConfig
	scopeRequired     bool
	validateURI       ValidateURIHandler
	beforeAuthorize   BeforeAuthorizeHandler
	authorizeGenerate oauthserver.AuthorizeGenerate
	accessGenerate    oauthserver.AccessGenerate
	tokenStore        oauthserver.TokenStore
	clientStore       oauthserver.ClientStore
	scopeStore        oauthserver.ScopeStore
}

// SetAuthorizeCodeExp set the authorization code expiration time
func (m *Manager) SetAuthorizeCodeExp(exp time.Duration) {
	m.codeExp = exp
}

// SetAuthorizeCodeTokenCfg set the authorization code grant token config
func (m *Manager) SetAuthorizeCodeTokenCfg(cfg *Config) {
	m.authCodeTokenCfg = cfg
}

// SetClientTokenCfg set the client credentials grant token config
func (m *Manager) SetClientTokenCfg(cfg *Config) {
	m.clientTokenCfg = cfg
}

// SetRefreshTokenCfg set the refreshing token config
func (m *Manager) SetRefreshTokenCfg(cfg *RefreshingConfig) {
	m.refreshTokenCfg = cfg
}

// SetScopeRequired when enabled an empty scope request is rejected instead
// of being treated as "no scope"
func (m *Manager) SetScopeRequired(required bool) {
	m.scopeRequired = required
}

// SetValidateURIHandler set the handler for validating the redirect URI
func (m *Manager) SetValidateURIHandler(handler ValidateURIHandler) {
	m.validateURI = handler
}

// SetBeforeAuthorizeHandler installs the owner-override callback consulted
// before an authorization code is persisted
func (m *Manager) SetBeforeAuthorizeHandler(handler BeforeAuthorizeHandler) {
	m.beforeAuthorize = handler
}

// MapAuthorizeGenerate mapping the authorize code generate interface
func (m *Manager) MapAuthorizeGenerate(gen oauthserver.AuthorizeGenerate) {
	m.authorizeGenerate = gen
}

// MapAccessGenerate mapping the access token generate interface
func (m *Manager) MapAccessGenerate(gen oauthserver.AccessGenerate) {
	m.accessGenerate = gen
}

// MapClientStorage mapping the client store interface
func (m *Manager) MapClientStorage(stor oauthserver.ClientStore) {
	m.clientStore = stor
}

// MustClientStorage mandatory mapping the client store interface
func (m *Manager) MustClientStorage(stor oauthserver.ClientStore, err error) {
	if err != nil {
		panic(err)
	}
	m.clientStore = stor
}

// MapScopeStorage mapping the scope store interface
func (m *Manager) MapScopeStorage(stor oauthserver.ScopeStore) {
	m.scopeStore = stor
}

// MapTokenStorage mapping the token store interface
func (m *Manager) MapTokenStorage(stor oauthserver.TokenStore) {
	m.tokenStore = stor
}

// MustTokenStorage mandatory mapping the token store interface
func (m *Manager) MustTokenStorage(stor oauthserver.TokenStore, err error) {
	if err != nil {
		panic(err)
	}
	m.tokenStore = stor
}

// GetClient get the client information
func (m *Manager) GetClient(ctx context.Context, clientID string) (oauthserver.ClientInfo, error) {
	cli, err := m.clientStore.GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.ErrInvalidClient
		}
		return nil, errors.Storage(err)
	}
	return cli, nil
}

// ValidateClient verifies client identity, and when supplied the redirect
// URI and secret, against the stored client record. A redirect URI mismatch
// is reported as an invalid client, not as a recoverable request error.
func (m *Manager) ValidateClient(ctx context.Context, clientID, redirectURI, clientSecret string) (oauthserver.ClientInfo, error) {
	cli, err := m.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	if redirectURI != "" {
		if err := m.validateURI(cli.GetRedirectURI(), redirectURI); err != nil {
			return nil, errors.ErrInvalidClient
		}
	}

	if clientSecret != "" && !verifySecret(cli, clientSecret) {
		return nil, errors.ErrInvalidClient
	}
	return cli, nil
}

// verifySecret compares the presented secret against the stored one,
// delegating to the client's own verifier when it has one and falling back
// to a constant-time comparison otherwise.
func verifySecret(cli oauthserver.ClientInfo, secret string) bool {
	if v, ok := cli.(oauthserver.ClientPasswordVerifier); ok {
		return v.VerifyPassword(secret)
	}
	return subtle.ConstantTimeCompare([]byte(cli.GetSecret()), []byte(secret)) == 1
}

// ResolveScope validates a space-delimited scope string against the
// registered scopes and returns the normalized (deduplicated) form. An
// empty string resolves to no scope unless scope is configured as required.
func (m *Manager) ResolveScope(ctx context.Context, scope string) (string, error) {
	fields := scopeFields(scope)
	if len(fields) == 0 {
		if m.scopeRequired {
			return "", errors.ErrInvalidScope
		}
		return "", nil
	}

	if m.scopeStore != nil {
		for _, id := range fields {
			if _, err := m.scopeStore.GetByID(ctx, id); err != nil {
				if errors.Is(err, errors.ErrNotFound) {
					return "", errors.ErrInvalidScope
				}
				return "", errors.Storage(err)
			}
		}
	}
	return strings.Join(fields, " "), nil
}

// GenerateAuthToken generate the authorization token(code). Validation
// failures return before anything is persisted.
func (m *Manager) GenerateAuthToken(ctx context.Context, rt oauthserver.ResponseType, tgr *oauthserver.TokenGenerateRequest) (oauthserver.TokenInfo, error) {
	if rt != oauthserver.Code {
		return nil, errors.ErrUnsupportedResponseType
	}

	cli, err := m.ValidateClient(ctx, tgr.ClientID, tgr.RedirectURI, "")
	if err != nil {
		return nil, err
	}

	scope, err := m.ResolveScope(ctx, tgr.Scope)
	if err != nil {
		return nil, err
	}

	if fn := m.beforeAuthorize; fn != nil {
		ownerModel, ownerID, err := fn(ctx, tgr)
		if err != nil {
			return nil, err
		}
		if ownerModel != "" && ownerID != "" {
			tgr.OwnerModel = ownerModel
			tgr.OwnerID = ownerID
		}
	}

	ti := models.NewToken()
	ti.SetClientID(tgr.ClientID)
	ti.SetOwnerModel(tgr.OwnerModel)
	ti.SetOwnerID(tgr.OwnerID)
	ti.SetRedirectURI(tgr.RedirectURI)
	ti.SetScope(scope)

	createAt := time.Now()
	ti.SetCodeCreateAt(createAt)
	ti.SetCodeExpiresIn(m.codeExp)

	tv, err := m.authorizeGenerate.Token(ctx, &oauthserver.GenerateBasic{
		Client:     cli,
		OwnerModel: tgr.OwnerModel,
		OwnerID:    tgr.OwnerID,
		CreateAt:   createAt,
		TokenInfo:  ti,
		Request:    tgr.Request,
	})
	if err != nil {
		return nil, err
	}
	ti.SetCode(tv)

	if err := m.tokenStore.Create(ctx, ti); err != nil {
		return nil, errors.Storage(err)
	}
	return ti, nil
}

// takeAuthorizationCode consumes the code atomically and validates its
// binding and expiry. A second exchange of the same code, concurrent or
// not, sees the code gone and fails.
func (m *Manager) takeAuthorizationCode(ctx context.Context, tgr *oauthserver.TokenGenerateRequest) (oauthserver.TokenInfo, error) {
	ti, err := m.tokenStore.TakeByCode(ctx, tgr.Code)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.ErrInvalidAuthorizeCode
		}
		return nil, errors.Storage(err)
	}

	switch {
	case ti.GetClientID() != tgr.ClientID:
		return nil, errors.ErrInvalidAuthorizeCode
	case ti.GetRedirectURI() != tgr.RedirectURI:
		return nil, errors.ErrInvalidAuthorizeCode
	case ti.GetCodeCreateAt().Add(ti.GetCodeExpiresIn()).Before(time.Now()):
		return nil, errors.ErrInvalidAuthorizeCode
	}
	return ti, nil
}

// GenerateAccessToken generate the access token for the authorization code
// and client credentials grants
func (m *Manager) GenerateAccessToken(ctx context.Context, gt oauthserver.GrantType, tgr *oauthserver.TokenGenerateRequest) (oauthserver.TokenInfo, error) {
	switch gt {
	case oauthserver.AuthorizationCode:
		return m.generateCodeAccessToken(ctx, tgr)
	case oauthserver.ClientCredentials:
		return m.generateClientAccessToken(ctx, tgr)
	}
	return nil, errors.ErrUnsupportedGrantType
}

func (m *Manager) generateCodeAccessToken(ctx context.Context, tgr *oauthserver.TokenGenerateRequest) (oauthserver.TokenInfo, error) {
	cli, err := m.GetClient(ctx, tgr.ClientID)
	if err != nil {
		return nil, err
	}
	// confidential clients must authenticate at the token endpoint
	if !cli.IsPublic() && cli.GetSecret() != "" {
		if tgr.ClientSecret == "" || !verifySecret(cli, tgr.ClientSecret) {
			return nil, errors.ErrInvalidClient
		}
	}

	code, err := m.takeAuthorizationCode(ctx, tgr)
	if err != nil {
		return nil, err
	}

	cfg := m.authCodeTokenCfg
	ti := models.NewToken()
	ti.SetClientID(tgr.ClientID)
	ti.SetOwnerModel(code.GetOwnerModel())
	ti.SetOwnerID(code.GetOwnerID())
	ti.SetRedirectURI(tgr.RedirectURI)
	ti.SetScope(code.GetScope())

	createAt := time.Now()
	ti.SetAccessCreateAt(createAt)
	if exp := tgr.AccessTokenExp; exp > 0 {
		ti.SetAccessExpiresIn(exp)
	} else {
		ti.SetAccessExpiresIn(cfg.AccessTokenExp)
	}
	if cfg.IsGenerateRefresh {
		ti.SetRefreshCreateAt(createAt)
		ti.SetRefreshExpiresIn(cfg.RefreshTokenExp)
	}

	gb := &oauthserver.GenerateBasic{
		Client:     cli,
		OwnerModel: code.GetOwnerModel(),
		OwnerID:    code.GetOwnerID(),
		CreateAt:   createAt,
		TokenInfo:  ti,
		Request:    tgr.Request,
	}
	av, rv, err := m.accessGenerate.Token(ctx, gb, cfg.IsGenerateRefresh)
	if err != nil {
		return nil, err
	}
	ti.SetAccess(av)
	if rv != "" {
		ti.SetRefresh(rv)
	}

	if err := m.tokenStore.Create(ctx, ti); err != nil {
		return nil, errors.Storage(err)
	}
	return ti, nil
}

func (m *Manager) generateClientAccessToken(ctx context.Context, tgr *oauthserver.TokenGenerateRequest) (oauthserver.TokenInfo, error) {
	cli, err := m.GetClient(ctx, tgr.ClientID)
	if err != nil {
		return nil, err
	}
	// service-to-service issuance is confidential-only
	if cli.IsPublic() || cli.GetSecret() == "" {
		return nil, errors.ErrInvalidClient
	}
	if tgr.ClientSecret == "" || !verifySecret(cli, tgr.ClientSecret) {
		return nil, errors.ErrInvalidClient
	}

	scope, err := m.ResolveScope(ctx, tgr.Scope)
	if err != nil {
		return nil, err
	}

	cfg := m.clientTokenCfg
	ti := models.NewToken()
	ti.SetClientID(tgr.ClientID)
	ti.SetScope(scope)

	createAt := time.Now()
	ti.SetAccessCreateAt(createAt)
	if exp := tgr.AccessTokenExp; exp > 0 {
		ti.SetAccessExpiresIn(exp)
	} else {
		ti.SetAccessExpiresIn(cfg.AccessTokenExp)
	}

	gb := &oauthserver.GenerateBasic{
		Client:    cli,
		CreateAt:  createAt,
		TokenInfo: ti,
		Request:   tgr.Request,
	}
	av, _, err := m.accessGenerate.Token(ctx, gb, false)
	if err != nil {
		return nil, err
	}
	ti.SetAccess(av)

	if err := m.tokenStore.Create(ctx, ti); err != nil {
		return nil, errors.Storage(err)
	}
	return ti, nil
}

// RefreshAccessToken consumes the refresh token and mints a new pair bound
// to the same session. A requested scope may only narrow the original
// grant, never widen it.
func (m *Manager) RefreshAccessToken(ctx context.Context, tgr *oauthserver.TokenGenerateRequest) (oauthserver.TokenInfo, error) {
	ti, err := m.tokenStore.TakeByRefresh(ctx, tgr.Refresh)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.ErrInvalidRefreshToken
		}
		return nil, errors.Storage(err)
	}

	if ti.GetRefreshCreateAt().Add(ti.GetRefreshExpiresIn()).Before(time.Now()) {
		return nil, errors.ErrExpiredRefreshToken
	}
	if tgr.ClientID != "" && tgr.ClientID != ti.GetClientID() {
		return nil, errors.ErrInvalidRefreshToken
	}

	// scope registration is checked before narrowing so an unknown scope
	// reads as invalid_scope, not as a widening attempt
	scope := ti.GetScope()
	if tgr.Scope != "" {
		requested, err := m.ResolveScope(ctx, tgr.Scope)
		if err != nil {
			return nil, err
		}
		if !scopeSubset(scopeFields(requested), scopeFields(scope)) {
			return nil, errors.ErrInvalidScope
		}
		scope = requested
	}

	cli, err := m.GetClient(ctx, ti.GetClientID())
	if err != nil {
		return nil, err
	}

	cfg := m.refreshTokenCfg
	oldAccess, oldRefresh := ti.GetAccess(), ti.GetRefresh()

	createAt := time.Now()
	ti.SetScope(scope)
	ti.SetAccessCreateAt(createAt)
	if exp := cfg.AccessTokenExp; exp > 0 {
		ti.SetAccessExpiresIn(exp)
	}
	if exp := cfg.RefreshTokenExp; exp > 0 {
		ti.SetRefreshExpiresIn(exp)
	}
	if cfg.IsResetRefreshTime {
		ti.SetRefreshCreateAt(createAt)
	}

	gb := &oauthserver.GenerateBasic{
		Client:     cli,
		OwnerModel: ti.GetOwnerModel(),
		OwnerID:    ti.GetOwnerID(),
		CreateAt:   createAt,
		TokenInfo:  ti,
		Request:    tgr.Request,
	}
	av, rv, err := m.accessGenerate.Token(ctx, gb, cfg.IsGenerateRefresh)
	if err != nil {
		return nil, err
	}
	ti.SetAccess(av)
	if cfg.IsGenerateRefresh && rv != "" {
		ti.SetRefresh(rv)
	}
	// keep the old refresh value alive when rotation is disabled; Create
	// re-registers it since TakeByRefresh removed the index
	if !cfg.IsGenerateRefresh && !cfg.IsRemoveRefreshing {
		ti.SetRefresh(oldRefresh)
	}

	if err := m.tokenStore.Create(ctx, ti); err != nil {
		return nil, errors.Storage(err)
	}

	if cfg.IsRemoveAccess && oldAccess != "" {
		if err := m.tokenStore.RemoveByAccess(ctx, oldAccess); err != nil && !errors.Is(err, errors.ErrNotFound) {
			return nil, errors.Storage(err)
		}
	}
	return ti, nil
}

// RemoveAccessToken use the access token to delete the token information
func (m *Manager) RemoveAccessToken(ctx context.Context, access string) error {
	if access == "" {
		return errors.ErrInvalidAccessToken
	}
	if err := m.tokenStore.RemoveByAccess(ctx, access); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return errors.ErrInvalidAccessToken
		}
		return errors.Storage(err)
	}
	return nil
}

// RemoveRefreshToken use the refresh token to delete the token information
func (m *Manager) RemoveRefreshToken(ctx context.Context, refresh string) error {
	if refresh == "" {
		return errors.ErrInvalidRefreshToken
	}
	if err := m.tokenStore.RemoveByRefresh(ctx, refresh); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return errors.ErrInvalidRefreshToken
		}
		return errors.Storage(err)
	}
	return nil
}

// LoadAccessToken according to the access token for corresponding token
// information. Expiry is evaluated against the wall clock here, not by a
// background sweep.
func (m *Manager) LoadAccessToken(ctx context.Context, access string) (oauthserver.TokenInfo, error) {
	if access == "" {
		return nil, errors.ErrInvalidAccessToken
	}

	ti, err := m.tokenStore.GetByAccess(ctx, access)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.ErrInvalidAccessToken
		}
		return nil, errors.Storage(err)
	}

	if ti.GetRefresh() != "" && ti.GetRefreshCreateAt().Add(ti.GetRefreshExpiresIn()).Before(time.Now()) {
		return nil, errors.ErrExpiredAccessToken
	}
	if ti.GetAccessCreateAt().Add(ti.GetAccessExpiresIn()).Before(time.Now()) {
		return nil, errors.ErrExpiredAccessToken
	}
	return ti, nil
}

// LoadRefreshToken according to the refresh token for corresponding token
// information, without consuming it
func (m *Manager) LoadRefreshToken(ctx context.Context, refresh string) (oauthserver.TokenInfo, error) {
	if refresh == "" {
		return nil, errors.ErrInvalidRefreshToken
	}

	ti, err := m.tokenStore.GetByRefresh(ctx, refresh)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.ErrInvalidRefreshToken
		}
		return nil, errors.Storage(err)
	}

	if ti.GetRefreshCreateAt().Add(ti.GetRefreshExpiresIn()).Before(time.Now()) {
		return nil, errors.ErrExpiredRefreshToken
	}
	return ti, nil
}
