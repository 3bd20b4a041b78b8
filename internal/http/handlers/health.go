package handlers

import (
	"context"
	"net/http"
	"time"

	"finance_tracker/internal/db"

	"github.com/gin-gonic/gin"
)

// LedgerStore is the store as the health endpoints see it.
type LedgerStore interface {
	Ping(ctx context.Context) error
	Status() db.Status
}

// ServingMode is how the engine treats store failures.
type ServingMode struct {
	StrictErrors   bool
	RetryAttempts  int
	RetryBaseDelay time.Duration
}

type HealthHandler struct {
	store   LedgerStore
	mode    ServingMode
	version string
	started time.Time
	now     func() time.Time
}

func NewHealthHandler(store LedgerStore, mode ServingMode, version string) *HealthHandler {
	return &HealthHandler{
		store:   store,
		mode:    mode,
		version: version,
		started: time.Now(),
		now:     time.Now,
	}
}

type StoreReport struct {
	db.Status
	Ping      string `json:"ping"`
	LatencyMS int64  `json:"latency_ms"`
}

type ModeReport struct {
	StrictErrors      bool   `json:"strict_errors"`
	DegradedSummaries bool   `json:"degraded_summaries"`
	RetryAttempts     int    `json:"retry_attempts"`
	RetryBaseDelay    string `json:"retry_base_delay"`
}

type ReadinessResponse struct {
	Status    string      `json:"status"`
	Version   string      `json:"version,omitempty"`
	Uptime    string      `json:"uptime"`
	Timestamp string      `json:"timestamp"`
	Store     StoreReport `json:"store"`
	Mode      ModeReport  `json:"mode"`
}

// Liveness never touches the store.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness pings the store and reports its reconnect history together with
// the failure mode the engine runs in. A failed ping is 503 even when
// summaries would degrade, so traffic moves elsewhere.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	report := StoreReport{Ping: "ok"}
	started := h.now()
	err := h.store.Ping(ctx)
	report.LatencyMS = h.now().Sub(started).Milliseconds()
	report.Status = h.store.Status()

	status, code := "ready", http.StatusOK
	if err != nil {
		report.Ping = err.Error()
		status, code = "unavailable", http.StatusServiceUnavailable
	}

	c.JSON(code, ReadinessResponse{
		Status:    status,
		Version:   h.version,
		Uptime:    h.now().Sub(h.started).Round(time.Second).String(),
		Timestamp: h.now().UTC().Format(time.RFC3339),
		Store:     report,
		Mode: ModeReport{
			StrictErrors:      h.mode.StrictErrors,
			DegradedSummaries: !h.mode.StrictErrors,
			RetryAttempts:     h.mode.RetryAttempts,
			RetryBaseDelay:    h.mode.RetryBaseDelay.String(),
		},
	})
}

// Health is the short form of Readiness for load balancers.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  "ledger store unavailable",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":           "ok",
		"version":          h.version,
		"store_reconnects": h.store.Status().Reconnects,
	})
}
