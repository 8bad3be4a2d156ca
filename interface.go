package oauthserver

import (
	"context"
	"net/http"
	"time"
)

type (
	// ClientInfo the client information model interface
	ClientInfo interface {
		GetID() string
		GetSecret() string
		GetRedirectURI() string
		IsPublic() bool
	}

	// ClientPasswordVerifier the password handler interface.
	// Clients that store a hashed secret implement it so the manager
	// never compares raw strings.
	ClientPasswordVerifier interface {
		VerifyPassword(string) bool
	}

	// ClientStore the client information storage interface
	ClientStore interface {
		// GetByID returns errors.ErrNotFound for an unknown id; any other
		// error is treated as a storage fault.
		GetByID(ctx context.Context, id string) (ClientInfo, error)
	}

	// ScopeInfo a registered scope
	ScopeInfo interface {
		GetID() string
		GetDescription() string
	}

	// ScopeStore the registered scope storage interface
	ScopeStore interface {
		GetByID(ctx context.Context, id string) (ScopeInfo, error)
	}

	// TokenInfo the authorization grant record: one session binding an
	// owner, a client and granted scopes to its current code or token pair.
	TokenInfo interface {
		New() TokenInfo

		GetClientID() string
		SetClientID(string)
		GetOwnerModel() string
		SetOwnerModel(string)
		GetOwnerID() string
		SetOwnerID(string)
		GetRedirectURI() string
		SetRedirectURI(string)
		GetScope() string
		SetScope(string)

		GetCode() string
		SetCode(string)
		GetCodeCreateAt() time.Time
		SetCodeCreateAt(time.Time)
		GetCodeExpiresIn() time.Duration
		SetCodeExpiresIn(time.Duration)

		GetAccess() string
		SetAccess(string)
		GetAccessCreateAt() time.Time
		SetAccessCreateAt(time.Time)
		GetAccessExpiresIn() time.Duration
		SetAccessExpiresIn(time.Duration)

		GetRefresh() string
		SetRefresh(string)
		GetRefreshCreateAt() time.Time
		SetRefreshCreateAt(time.Time)
		GetRefreshExpiresIn() time.Duration
		SetRefreshExpiresIn(time.Duration)
	}

	// TokenStore the token information storage interface.
	//
	// TakeByCode and TakeByRefresh are atomic check-and-invalidate reads:
	// under concurrent calls with the same value the store must hand the
	// record to exactly one caller and answer errors.ErrNotFound to the
	// rest. The manager relies on this for single-use codes and refresh
	// rotation.
	TokenStore interface {
		Create(ctx context.Context, info TokenInfo) error

		TakeByCode(ctx context.Context, code string) (TokenInfo, error)
		TakeByRefresh(ctx context.Context, refresh string) (TokenInfo, error)

		RemoveByCode(ctx context.Context, code string) error
		RemoveByAccess(ctx context.Context, access string) error
		RemoveByRefresh(ctx context.Context, refresh string) error

		GetByCode(ctx context.Context, code string) (TokenInfo, error)
		GetByAccess(ctx context.Context, access string) (TokenInfo, error)
		GetByRefresh(ctx context.Context, refresh string) (TokenInfo, error)
	}

	// AccessGenerate generate the access and refresh tokens interface
	AccessGenerate interface {
		Token(ctx context.Context, data *GenerateBasic, isGenRefresh bool) (access, refresh string, err error)
	}

	// AuthorizeGenerate generate the authorization code interface
	AuthorizeGenerate interface {
		Token(ctx context.Context, data *GenerateBasic) (code string, err error)
	}

	// Manager authorization management interface
	Manager interface {
		// GetClient get the client information
		GetClient(ctx context.Context, clientID string) (ClientInfo, error)

		// ValidateClient verifies client identity, and when supplied the
		// redirect URI and secret, against the stored client record
		ValidateClient(ctx context.Context, clientID, redirectURI, clientSecret string) (ClientInfo, error)

		// ResolveScope validates a space-delimited scope string against the
		// registered scopes and returns the normalized form
		ResolveScope(ctx context.Context, scope string) (string, error)

		// GenerateAuthToken generate the authorization token(code)
		GenerateAuthToken(ctx context.Context, rt ResponseType, tgr *TokenGenerateRequest) (TokenInfo, error)

		// GenerateAccessToken generate the access token
		GenerateAccessToken(ctx context.Context, gt GrantType, tgr *TokenGenerateRequest) (TokenInfo, error)

		// RefreshAccessToken refreshing an access token
		RefreshAccessToken(ctx context.Context, tgr *TokenGenerateRequest) (TokenInfo, error)

		// RemoveAccessToken use the access token to delete the token information
		RemoveAccessToken(ctx context.Context, access string) error

		// RemoveRefreshToken use the refresh token to delete the token information
		RemoveRefreshToken(ctx context.Context, refresh string) error

		// LoadAccessToken according to the access token for corresponding token information
		LoadAccessToken(ctx context.Context, access string) (TokenInfo, error)

		// LoadRefreshToken according to the refresh token for corresponding token information
		LoadRefreshToken(ctx context.Context, refresh string) (TokenInfo, error)
	}
)

// TokenGenerateRequest provide to generate the token request parameters.
// OwnerModel/OwnerID identify the already-resolved principal the grant is
// issued for; resolving them into a full record is the caller's concern.
type TokenGenerateRequest struct {
	ClientID       string
	ClientSecret   string
	OwnerModel     string
	OwnerID        string
	RedirectURI    string
	Scope          string
	Code           string
	Refresh        string
	AccessTokenExp time.Duration
	Request        *http.Request
}

// GenerateBasic provide the basis of the generated token data
type GenerateBasic struct {
	Client     ClientInfo
	OwnerModel string
	OwnerID    string
	CreateAt   time.Time
	TokenInfo  TokenInfo
	Request    *http.Request
}
