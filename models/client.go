package models

import "golang.org/x/crypto/bcrypt"

// Client client model. RedirectURI may hold several space-separated
// registered URIs; each request URI must exactly match one of them.
type Client struct {
	ID          string
	Secret      string
	RedirectURI string
	Public      bool
}

// GetID client id
func (c *Client) GetID() string {
	return c.ID
}

// GetSecret client secret
func (c *Client) GetSecret() string {
	return c.Secret
}

// GetRedirectURI registered redirect URI(s)
func (c *Client) GetRedirectURI() string {
	return c.RedirectURI
}

// IsPublic public
func (c *Client) IsPublic() bool {
	return c.Public
}

// HashedClient is a client whose Secret holds a bcrypt hash instead of the
// raw secret. It satisfies oauthserver.ClientPasswordVerifier so the manager
// never sees the plaintext at rest.
type HashedClient struct {
	Client
}

// VerifyPassword compares the bcrypt hash against the presented secret.
func (c *HashedClient) VerifyPassword(secret string) bool {
	if secret == "" || c.Secret == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(c.Secret), []byte(secret)) == nil
}
