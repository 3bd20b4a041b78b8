package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"finance_tracker/internal/domain"
	"finance_tracker/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// IdentityResolver authenticates the connecting caller.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (*domain.Identity, error)
}

// HandleWS upgrades an authenticated request into a live feed subscription.
// The token comes from the token query parameter or a bearer header.
// An empty allowedOrigins accepts any origin.
func HandleWS(hub *Hub, resolver IdentityResolver, allowedOrigins []string) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, o := range allowedOrigins {
				if o == "*" || o == origin {
					return true
				}
			}
			return false
		},
	}

	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token required"})
			return
		}

		id, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, domain.ErrUnauthenticated) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
			logger.WithContext(c.Request.Context()).Error("live feed identity lookup failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("ws upgrade error", "error", err)
			return
		}

		client := NewClient(id, conn, hub)
		if !hub.Register(c.Request.Context(), client) {
			_ = conn.Close()
			return
		}
		go client.writePump()
		go client.readPump()
	}
}
