// Package auth verifies bearer tokens issued by the external identity
// provider and exposes the caller's identity to handlers. The tracker never
// issues tokens or manages credentials itself.
package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Identity is a stable caller identity supplied by the identity provider.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

const contextKey = "auth.identity"

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// ParseToken verifies an HS256 bearer token against the shared secret and
// extracts the caller's identity from its claims.
func ParseToken(token string, secret []byte) (Identity, error) {
	var cl claims
	parsed, err := jwt.ParseWithClaims(token, &cl, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return Identity{}, err
	}
	if !parsed.Valid || cl.Subject == "" {
		return Identity{}, fmt.Errorf("token has no subject")
	}
	return Identity{ID: cl.Subject, Email: cl.Email}, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// verified identity on the request context.
func Middleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		identity, err := ParseToken(token, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(contextKey, identity)
		c.Next()
	}
}

// CallerFrom returns the identity stored by Middleware, if any.
func CallerFrom(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(contextKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}
