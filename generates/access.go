package generates

import (
	"context"
	"crypto/rand"
	"encoding/base64"

	oauthserver "github.com/kaz29/oauth-server"
)

// NewAccessGenerate create to generate the access token instance
func NewAccessGenerate() *AccessGenerate {
	return &AccessGenerate{}
}

// AccessGenerate generate the opaque access token
type AccessGenerate struct{}

// Token based on a cryptographically random source generated token
func (ag *AccessGenerate) Token(ctx context.Context, data *oauthserver.GenerateBasic, isGenRefresh bool) (string, string, error) {
	access, err := randomToken(32)
	if err != nil {
		return "", "", err
	}

	refresh := ""
	if isGenRefresh {
		refresh, err = randomToken(48)
		if err != nil {
			return "", "", err
		}
	}

	return access, refresh, nil
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
