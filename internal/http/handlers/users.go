package handlers

import (
	"net/http"
	"strconv"

	"finance_tracker/internal/domain"
	"finance_tracker/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Me(c *gin.Context) {
	u, err := h.Ledger.Me(c.Request.Context(), middleware.IdentityFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// RoleCheck never fails; anonymous callers get authenticated=false.
func (h *Handler) RoleCheck(c *gin.Context) {
	c.JSON(http.StatusOK, h.Ledger.RoleCheck(middleware.IdentityFrom(c)))
}

func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.Ledger.ListUsers(c.Request.Context(), middleware.IdentityFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	if users == nil {
		users = []*domain.User{}
	}
	c.JSON(http.StatusOK, users)
}

func (h *Handler) UpdateUser(c *gin.Context) {
	var patch domain.UserPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "bad request")
		return
	}

	u, err := h.Ledger.UpdateUser(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"), patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

type DevLoginRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// DevLogin finds or creates the user for an email and returns a session
// token. Only mounted when development login is enabled.
func (h *Handler) DevLogin(c *gin.Context) {
	var req DevLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "bad request")
		return
	}

	u, err := h.Ledger.EnsureUser(c.Request.Context(), req.Email, req.Name)
	if err != nil {
		writeError(c, err)
		return
	}

	token, err := h.Tokens.Generate(u.ID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  u,
	})
}

// AuditLogs lists recent audit entries, optionally for one actor. ADMIN only.
func (h *Handler) AuditLogs(c *gin.Context) {
	if err := h.policy.RequireAdmin(middleware.IdentityFrom(c)); err != nil {
		writeError(c, err)
		return
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(c, domain.Invalid("limit", "must be a positive number"))
			return
		}
		limit = n
	}

	var (
		logs []*domain.AuditLog
		err  error
	)
	if actor := c.Query("actorId"); actor != "" {
		logs, err = h.Audit.ActorLogs(c.Request.Context(), actor, limit)
	} else {
		logs, err = h.Audit.RecentLogs(c.Request.Context(), limit)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	if logs == nil {
		logs = []*domain.AuditLog{}
	}
	c.JSON(http.StatusOK, logs)
}
