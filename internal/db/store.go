package db

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"finance_tracker/internal/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"
)

var ErrDisconnected = errors.New("store is disconnected")

var reconnectsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ledger_store_reconnects_total",
		Help: "Reconnect cycles performed against the ledger store",
	},
	[]string{"result"},
)

func init() {
	prometheus.MustRegister(reconnectsTotal)
}

// Store is the process-wide handle to the ledger database. The pool behind
// it can be replaced by Reconnect while requests are in flight.
type Store struct {
	dsn  string
	mu   sync.RWMutex
	pool *pgxpool.Pool

	group singleflight.Group

	reconnects    int
	lastReconnect time.Time
	lastErr       error

	// dial is swapped in tests.
	dial func(ctx context.Context, dsn string) (*pgxpool.Pool, error)
}

func NewStore(dsn string) *Store {
	return &Store{dsn: dsn, dial: dialPool}
}

// Connect opens and pings the database, retrying a few times while it boots.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	s := NewStore(dsn)

	delay := time.Second
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		if err = s.Connect(ctx); err == nil {
			logger.Info("database connected")
			return s, nil
		}
		logger.Warn("database connection attempt failed", "attempt", attempt, "error", err)
		if attempt == 3 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return nil, fmt.Errorf("connect database: %w", err)
}

func dialPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// Connect establishes a pool if there is none.
func (s *Store) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pool != nil {
		return nil
	}
	pool, err := s.dial(ctx, s.dsn)
	if err != nil {
		return err
	}
	s.pool = pool
	return nil
}

// Disconnect closes the current pool. Later queries fail with ErrDisconnected
// until Connect or Reconnect is called.
func (s *Store) Disconnect() {
	s.mu.Lock()
	pool := s.pool
	s.pool = nil
	s.mu.Unlock()
	if pool != nil {
		pool.Close()
	}
}

// Reconnect replaces the pool with a freshly dialed one. Concurrent callers
// share a single reconnect.
func (s *Store) Reconnect(ctx context.Context) error {
	_, err, _ := s.group.Do("reconnect", func() (interface{}, error) {
		pool, err := s.dial(ctx, s.dsn)
		if err != nil {
			s.mu.Lock()
			s.lastErr = err
			s.mu.Unlock()
			reconnectsTotal.WithLabelValues("error").Inc()
			logger.Error("store reconnect failed", "error", err)
			return nil, err
		}

		s.mu.Lock()
		old := s.pool
		s.pool = pool
		s.reconnects++
		s.lastReconnect = time.Now().UTC()
		s.lastErr = nil
		s.mu.Unlock()

		if old != nil {
			// Close waits for acquired connections, so do not block the caller.
			go old.Close()
		}
		reconnectsTotal.WithLabelValues("ok").Inc()
		logger.Warn("store reconnected")
		return nil, nil
	})
	return err
}

// Status describes the connection as readiness checks report it.
type Status struct {
	Connected          bool       `json:"connected"`
	Reconnects         int        `json:"reconnects"`
	LastReconnect      *time.Time `json:"last_reconnect,omitempty"`
	LastReconnectError string     `json:"last_reconnect_error,omitempty"`
}

func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{Connected: s.pool != nil, Reconnects: s.reconnects}
	if !s.lastReconnect.IsZero() {
		at := s.lastReconnect
		st.LastReconnect = &at
	}
	if s.lastErr != nil {
		st.LastReconnectError = s.lastErr.Error()
	}
	return st
}

// Pool returns the current pool.
func (s *Store) Pool() (*pgxpool.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pool == nil {
		return nil, ErrDisconnected
	}
	return s.pool, nil
}

// Ping checks the current pool.
func (s *Store) Ping(ctx context.Context) error {
	pool, err := s.Pool()
	if err != nil {
		return err
	}
	return pool.Ping(ctx)
}

func (s *Store) Close() {
	s.Disconnect()
}
