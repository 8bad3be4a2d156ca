package models

import (
	"time"

	oauthserver "github.com/kaz29/oauth-server"
)

// NewToken create to token model instance
func NewToken() *Token {
	return &Token{}
}

// Token one authorization grant: the session record linking an owner and a
// client to its current authorization code or access/refresh token pair.
type Token struct {
	ClientID         string        `json:"client_id,omitempty"`
	OwnerModel       string        `json:"owner_model,omitempty"`
	OwnerID          string        `json:"owner_id,omitempty"`
	RedirectURI      string        `json:"redirect_uri,omitempty"`
	Scope            string        `json:"scope,omitempty"`
	Code             string        `json:"code,omitempty"`
	CodeCreateAt     time.Time     `json:"code_create_at,omitempty"`
	CodeExpiresIn    time.Duration `json:"code_expires_in,omitempty"`
	Access           string        `json:"access,omitempty"`
	AccessCreateAt   time.Time     `json:"access_create_at,omitempty"`
	AccessExpiresIn  time.Duration `json:"access_expires_in,omitempty"`
	Refresh          string        `json:"refresh,omitempty"`
	RefreshCreateAt  time.Time     `json:"refresh_create_at,omitempty"`
	RefreshExpiresIn time.Duration `json:"refresh_expires_in,omitempty"`
}

// New create to token model instance
func (t *Token) New() oauthserver.TokenInfo {
	return NewToken()
}

// GetClientID the client id
func (t *Token) GetClientID() string {
	return t.ClientID
}

// SetClientID the client id
func (t *Token) SetClientID(clientID string) {
	t.ClientID = clientID
}

// GetOwnerModel the type discriminator of the authorized principal
func (t *Token) GetOwnerModel() string {
	return t.OwnerModel
}

// SetOwnerModel the type discriminator of the authorized principal
func (t *Token) SetOwnerModel(ownerModel string) {
	t.OwnerModel = ownerModel
}

// GetOwnerID the principal id
func (t *Token) GetOwnerID() string {
	return t.OwnerID
}

// SetOwnerID the principal id
func (t *Token) SetOwnerID(ownerID string) {
	t.OwnerID = ownerID
}

// GetRedirectURI redirect URI
func (t *Token) GetRedirectURI() string {
	return t.RedirectURI
}

// SetRedirectURI redirect URI
func (t *Token) SetRedirectURI(redirectURI string) {
	t.RedirectURI = redirectURI
}

// GetScope get scope of authorization
func (t *Token) GetScope() string {
	return t.Scope
}

// SetScope set scope of authorization
func (t *Token) SetScope(scope string) {
	t.Scope = scope
}

// GetCode authorization code
func (t *Token) GetCode() string {
	return t.Code
}

// SetCode authorization code
func (t *Token) SetCode(code string) {
	t.Code = code
}

// GetCodeCreateAt create Time
func (t *Token) GetCodeCreateAt() time.Time {
	return t.CodeCreateAt
}

// SetCodeCreateAt create Time
func (t *Token) SetCodeCreateAt(createAt time.Time) {
	t.CodeCreateAt = createAt
}

// GetCodeExpiresIn the lifetime in seconds of the authorization code
func (t *Token) GetCodeExpiresIn() time.Duration {
	return t.CodeExpiresIn
}

// SetCodeExpiresIn the lifetime in seconds of the authorization code
func (t *Token) SetCodeExpiresIn(exp time.Duration) {
	t.CodeExpiresIn = exp
}

// GetAccess access token
func (t *Token) GetAccess() string {
	return t.Access
}

// SetAccess access token
func (t *Token) SetAccess(access string) {
	t.Access = access
}

// GetAccessCreateAt create Time
func (t *Token) GetAccessCreateAt() time.Time {
	return t.AccessCreateAt
}

// SetAccessCreateAt create Time
func (t *Token) SetAccessCreateAt(createAt time.Time) {
	t.AccessCreateAt = createAt
}

// GetAccessExpiresIn the lifetime in seconds of the access token
func (t *Token) GetAccessExpiresIn() time.Duration {
	return t.AccessExpiresIn
}

// SetAccessExpiresIn the lifetime in seconds of the access token
func (t *Token) SetAccessExpiresIn(exp time.Duration) {
	t.AccessExpiresIn = exp
}

// GetRefresh refresh Token
func (t *Token) GetRefresh() string {
	return t.Refresh
}

// SetRefresh refresh Token
func (t *Token) SetRefresh(refresh string) {
	t.Refresh = refresh
}

// GetRefreshCreateAt create Time
func (t *Token) GetRefreshCreateAt() time.Time {
	return t.RefreshCreateAt
}

// SetRefreshCreateAt create Time
func (t *Token) SetRefreshCreateAt(createAt time.Time) {
	t.RefreshCreateAt = createAt
}

// GetRefreshExpiresIn the lifetime in seconds of the refresh token
func (t *Token) GetRefreshExpiresIn() time.Duration {
	return t.RefreshExpiresIn
}

// SetRefreshExpiresIn the lifetime in seconds of the refresh token
func (t *Token) SetRefreshExpiresIn(exp time.Duration) {
	t.RefreshExpiresIn = exp
}
