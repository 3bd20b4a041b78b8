package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finance_tracker/internal/config"
	"finance_tracker/internal/db"
	httpServer "finance_tracker/internal/http"
	"finance_tracker/internal/http/handlers"
	"finance_tracker/internal/http/middleware"
	"finance_tracker/internal/logger"
	"finance_tracker/internal/repository"
	"finance_tracker/internal/service"
	"finance_tracker/internal/ws"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var version = "dev"

func main() {
	migrate := flag.Bool("migrate", false, "apply pending migrations before serving")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	if *migrate {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal("migration failed", "error", err)
		}
		logger.Info("migrations applied")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to ledger store", "error", err)
	}
	defer store.Close()

	tokens, err := service.NewTokenService(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		logger.Fatal("invalid jwt settings", "error", err)
	}

	users := repository.NewUserRepository(store)
	ledgerRepo := repository.NewTransactionRepository(store)
	audit := service.NewAuditService(repository.NewAuditRepository(store))
	hub := ws.NewHub()
	go hub.Run(ctx)

	policy := service.NewStorePolicy(cfg.RetryAttempts, cfg.RetryBaseDelay, store)
	ledger := service.NewLedgerService(ledgerRepo, users, store, service.Options{
		Retry:    policy,
		Strict:   cfg.StrictErrors,
		Audit:    audit,
		Notifier: hub,
	})
	resolver := service.NewIdentityResolver(tokens, users, policy)

	redisClient := middleware.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if redisClient != nil {
		defer redisClient.Close()
	}

	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(), middleware.Metrics())
	r.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	health := handlers.NewHealthHandler(store, handlers.ServingMode{
		StrictErrors:   cfg.StrictErrors,
		RetryAttempts:  policy.MaxAttempts,
		RetryBaseDelay: policy.BaseDelay,
	}, version)
	httpServer.RegisterRoutes(r, httpServer.Deps{
		Handler:  handlers.NewHandler(ledger, tokens, audit),
		Health:   health,
		Resolver: resolver,
		Limiter:  middleware.NewRateLimiter(redisClient),
		Hub:      hub,
	}, httpServer.RouteConfig{
		APIRateLimit:     cfg.APIRateLimit,
		APIRateWindow:    cfg.APIRateWindow,
		ExportRateLimit:  cfg.ExportRateLimit,
		ExportRateWindow: cfg.ExportRateWindow,
		AllowedOrigins:   cfg.AllowedOrigins,
		DevLogin:         cfg.DevLogin,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "env", cfg.AppEnv, "strict_errors", cfg.StrictErrors)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Disposition", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowCredentials = false
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	return c
}
