package server

import (
	"net/http"
	"time"

	oauthserver "github.com/kaz29/oauth-server"
)

// Config configuration parameters
type Config struct {
	TokenType             string                     // token type
	AllowGetAccessRequest bool                       // to allow GET requests for the token
	AllowedResponseTypes  []oauthserver.ResponseType // allow the authorization type
	AllowedGrantTypes     []oauthserver.GrantType    // allow the grant type
	// Realm reported in WWW-Authenticate challenges for failed client
	// authentication.
	Realm string
}

// NewConfig create to configuration instance
func NewConfig() *Config {
	return &Config{
		TokenType:            "Bearer",
		AllowedResponseTypes: []oauthserver.ResponseType{oauthserver.Code},
		AllowedGrantTypes: []oauthserver.GrantType{
			oauthserver.AuthorizationCode,
			oauthserver.ClientCredentials,
			oauthserver.Refreshing,
		},
		Realm: "oauth",
	}
}

// AuthorizeRequest authorization request
type AuthorizeRequest struct {
	ResponseType   oauthserver.ResponseType
	ClientID       string
	Scope          string
	RedirectURI    string
	State          string
	OwnerModel     string
	OwnerID        string
	AccessTokenExp time.Duration
	Request        *http.Request
}
