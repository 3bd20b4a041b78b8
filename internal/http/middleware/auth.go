package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"finance_tracker/internal/domain"
	"finance_tracker/internal/logger"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// IdentityResolver turns a bearer token into the caller identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (*domain.Identity, error)
}

// JWT resolves the bearer token and stores the identity on the context.
// Requests without a valid token are rejected with 401.
func JWT(resolver IdentityResolver) gin.HandlerFunc {
	return authenticate(resolver, true)
}

// OptionalJWT behaves like JWT but lets anonymous requests through.
// A token that is present but invalid is still rejected.
func OptionalJWT(resolver IdentityResolver) gin.HandlerFunc {
	return authenticate(resolver, false)
}

func authenticate(resolver IdentityResolver, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			if required {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
				return
			}
			c.Next()
			return
		}

		id, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, domain.ErrUnauthenticated) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
			logger.WithContext(c.Request.Context()).Error("identity lookup failed", "error", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
			return
		}

		c.Set(identityKey, id)
		c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// IdentityFrom returns the identity set by JWT, or nil.
func IdentityFrom(c *gin.Context) *domain.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	id, _ := v.(*domain.Identity)
	return id
}

// SetIdentity stores id on the context the way JWT does.
func SetIdentity(c *gin.Context, id *domain.Identity) {
	c.Set(identityKey, id)
}
