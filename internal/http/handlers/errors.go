package handlers

import (
	"errors"
	"net/http"

	"finance_tracker/internal/domain"
	"finance_tracker/internal/logger"
	"finance_tracker/internal/repository"

	"github.com/gin-gonic/gin"
)

// writeError maps engine errors to status codes. Store failures and
// unexpected errors are logged; their detail never reaches the client.
func writeError(c *gin.Context, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.Is(err, repository.ErrConstraint):
		logger.WithContext(c.Request.Context()).Warn("ledger store rejected write", "error", err, "path", c.FullPath())
		c.JSON(http.StatusBadRequest, gin.H{"error": "rejected by the ledger store"})
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "field": ve.Field})
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
	case errors.Is(err, domain.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized"})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, repository.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict"})
	case errors.Is(err, domain.ErrStoreUnavailable):
		_ = c.Error(err)
		logger.WithContext(c.Request.Context()).Error("ledger store unavailable", "error", err, "path", c.FullPath())
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
	default:
		_ = c.Error(err)
		logger.WithContext(c.Request.Context()).Error("request failed", "error", err, "path", c.FullPath())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
