package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"finance_tracker/internal/db"
	"finance_tracker/internal/domain"
	"finance_tracker/internal/http/handlers"
	"finance_tracker/internal/http/middleware"
	"finance_tracker/internal/service"
	"finance_tracker/internal/ws"

	"github.com/gin-gonic/gin"
)

type okStore struct{}

func (okStore) Ping(ctx context.Context) error { return nil }
func (okStore) Status() db.Status { return db.Status{Connected: true} }

type noIdentity struct{}

func (noIdentity) Resolve(ctx context.Context, token string) (*domain.Identity, error) {
	return nil, domain.ErrUnauthenticated
}

func testEngine(devLogin bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var ledger *service.LedgerService
	RegisterRoutes(r, Deps{
		Handler:  handlers.NewHandler(ledger, nil, nil),
		Health:   handlers.NewHealthHandler(okStore{}, handlers.ServingMode{StrictErrors: true}, "test"),
		Resolver: noIdentity{},
		Limiter:  middleware.NewRateLimiter(nil),
		Hub:      ws.NewHub(),
	}, RouteConfig{
		APIRateLimit:     100,
		APIRateWindow:    time.Minute,
		ExportRateLimit:  1,
		ExportRateWindow: time.Minute,
		DevLogin:         devLogin,
	})
	return r
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r := testEngine(false)
	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/v1/me"},
		{http.MethodGet, "/api/v1/summary"},
		{http.MethodGet, "/api/v1/monthly"},
		{http.MethodGet, "/api/v1/transactions"},
		{http.MethodGet, "/api/v1/transactions/abc"},
		{http.MethodPost, "/api/v1/transactions"},
		{http.MethodPatch, "/api/v1/transactions/abc"},
		{http.MethodDelete, "/api/v1/transactions/abc"},
		{http.MethodGet, "/api/v1/reports/export"},
		{http.MethodGet, "/api/v1/users"},
		{http.MethodPatch, "/api/v1/users/abc"},
		{http.MethodGet, "/api/v1/audit"},
		{http.MethodGet, "/api/v1/ws"},
	}
	for _, rt := range routes {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(rt.method, rt.path, nil))
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", rt.method, rt.path, w.Code)
		}
	}
}

func TestPublicRoutes(t *testing.T) {
	r := testEngine(false)
	for _, path := range []string{"/health", "/healthz", "/readyz", "/metrics", "/api/v1/health"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, w.Code)
		}
	}
}

func TestDevLoginMountedOnlyWhenEnabled(t *testing.T) {
	w := httptest.NewRecorder()
	testEngine(false).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/auth/dev-login", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without dev login, got %d", w.Code)
	}
}
