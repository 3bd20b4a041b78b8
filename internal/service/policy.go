package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finance_tracker/internal/domain"
	"finance_tracker/internal/logger"
	"finance_tracker/internal/repository"
	"finance_tracker/internal/retry"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	storeRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_store_retries_total",
			Help: "Store operations retried after a transient failure",
		},
		[]string{"operation"},
	)
	storeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_store_failures_total",
			Help: "Store operations that failed after every retry",
		},
		[]string{"operation"},
	)
	reportsDegraded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_degraded_total",
			Help: "Reports answered with zeroed values because the store was unavailable",
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(storeRetries, storeFailures, reportsDegraded)
}

// Reconnector recycles the shared store connection.
type Reconnector interface {
	Reconnect(ctx context.Context) error
}

// NewStorePolicy builds the retry policy used for every store round-trip:
// exponential backoff from base, and a reconnect before the final attempt.
func NewStorePolicy(attempts int, base time.Duration, store Reconnector) retry.Policy {
	p := retry.Default()
	if attempts > 0 {
		p.MaxAttempts = attempts
	}
	if base >= 0 {
		p.BaseDelay = base
	}
	if store != nil {
		p.BeforeFinal = store.Reconnect
	}
	p.Retryable = isTransient
	p.OnRetry = func(op string, attempt int, err error) {
		storeRetries.WithLabelValues(op).Inc()
		logger.Warn("store operation failed, retrying", "operation", op, "attempt", attempt, "error", err)
	}
	return p
}

// isTransient reports whether err may clear up on a later attempt. Domain
// outcomes and rows the database rejected never do.
func isTransient(err error) bool {
	return !domain.IsDomainError(err) &&
		!errors.Is(err, repository.ErrConflict) &&
		!errors.Is(err, repository.ErrConstraint)
}

// storeFailure marks an exhausted store error so callers can map it.
func storeFailure(op string, err error) error {
	if !isTransient(err) || errors.Is(err, context.Canceled) {
		return err
	}
	storeFailures.WithLabelValues(op).Inc()
	return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
}
