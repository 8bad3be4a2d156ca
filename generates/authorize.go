package generates

import (
	"context"
	"crypto/rand"
	"encoding/base64"

	oauthserver "github.com/kaz29/oauth-server"
)

// NewAuthorizeGenerate create to generate the authorize code instance
func NewAuthorizeGenerate() *AuthorizeGenerate {
	return &AuthorizeGenerate{}
}

// AuthorizeGenerate generate the authorize code
type AuthorizeGenerate struct{}

// Token based on a cryptographically random source generated token.
// Guessable codes are a security failure, so no identifier-derived input
// goes into the value.
func (ag *AuthorizeGenerate) Token(ctx context.Context, data *oauthserver.GenerateBasic) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
