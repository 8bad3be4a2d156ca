package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kaz29/oauth-server/errors"
)

// TokenMiddleware validates the bearer token and sets the resource owner
// info in context. This middleware should run first, before any handler
// that relies on the authenticated owner.
func (s *Server) TokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ti, err := s.ValidationBearerToken(c.Request)
		if err != nil {
			status := http.StatusUnauthorized
			if v, ok := errors.StatusCodes[err]; ok {
				status = v
			} else if errors.Is(err, errors.ErrStorageUnavailable) {
				status = http.StatusServiceUnavailable
			}
			description := errors.Descriptions[err]
			if description == "" {
				description = "invalid access token"
			}
			c.Header("WWW-Authenticate", s.Config.TokenType)
			c.JSON(status, gin.H{
				"error":             "unauthorized",
				"error_description": description,
			})
			c.Abort()
			return
		}

		c.Set("owner_model", ti.GetOwnerModel())
		c.Set("owner_id", ti.GetOwnerID())
		c.Set("client_id", ti.GetClientID())
		if scope := ti.GetScope(); scope != "" {
			c.Set("scopes", strings.Fields(scope))
		}
		c.Set("token_info", ti)

		c.Next()
	}
}

// GetOwnerFromContext retrieves the resource owner's model and id from the
// gin context. Returns empty strings if not found.
func GetOwnerFromContext(c *gin.Context) (string, string) {
	model := ""
	id := ""
	if v, exists := c.Get("owner_model"); exists {
		if m, ok := v.(string); ok {
			model = m
		}
	}
	if v, exists := c.Get("owner_id"); exists {
		if i, ok := v.(string); ok {
			id = i
		}
	}
	return model, id
}

// GetClientIDFromContext retrieves the client ID from the gin context.
// Returns empty string if not found.
func GetClientIDFromContext(c *gin.Context) string {
	if clientID, exists := c.Get("client_id"); exists {
		if id, ok := clientID.(string); ok {
			return id
		}
	}
	return ""
}

// GetScopesFromContext retrieves the scopes from the gin context.
// Returns empty slice if not found.
func GetScopesFromContext(c *gin.Context) []string {
	if scopes, exists := c.Get("scopes"); exists {
		if s, ok := scopes.([]string); ok {
			return s
		}
	}
	return []string{}
}
