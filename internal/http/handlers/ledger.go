package handlers

import (
	"net/http"
	"strconv"

	"finance_tracker/internal/domain"
	"finance_tracker/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Summary(c *gin.Context) {
	s, err := h.Ledger.Summary(c.Request.Context(), middleware.IdentityFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// Monthly answers GET /monthly?year=YYYY; without year the current year is used.
func (h *Handler) Monthly(c *gin.Context) {
	year := 0
	if v := c.Query("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(c, domain.Invalid("year", "must be a number"))
			return
		}
		year = n
	}

	stats, err := h.Ledger.MonthlyStats(c.Request.Context(), middleware.IdentityFrom(c), year)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) ListTransactions(c *gin.Context) {
	var raw domain.RawFilter
	if err := c.ShouldBindQuery(&raw); err != nil {
		badRequest(c, "bad query")
		return
	}

	txs, err := h.Ledger.ListTransactions(c.Request.Context(), middleware.IdentityFrom(c), raw)
	if err != nil {
		writeError(c, err)
		return
	}
	if txs == nil {
		txs = []*domain.Transaction{}
	}
	c.JSON(http.StatusOK, txs)
}

func (h *Handler) GetTransaction(c *gin.Context) {
	tx, err := h.Ledger.GetTransaction(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

func (h *Handler) CreateTransaction(c *gin.Context) {
	var in domain.TransactionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "bad request")
		return
	}

	tx, err := h.Ledger.CreateTransaction(c.Request.Context(), middleware.IdentityFrom(c), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tx)
}

func (h *Handler) UpdateTransaction(c *gin.Context) {
	var patch domain.TransactionPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "bad request")
		return
	}

	tx, err := h.Ledger.UpdateTransaction(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"), patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

func (h *Handler) DeleteTransaction(c *gin.Context) {
	tx, err := h.Ledger.DeleteTransaction(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}
