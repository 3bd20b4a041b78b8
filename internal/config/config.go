package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"finance_tracker/internal/logger"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	AppPort string
	AppEnv  string

	// StrictErrors surfaces store failures from reports instead of
	// answering with zeroed values.
	StrictErrors bool

	DatabaseURL string
	JWTSecret   string
	JWTTTL      time.Duration
	DevLogin    bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	APIRateLimit     int
	APIRateWindow    time.Duration
	ExportRateLimit  int
	ExportRateWindow time.Duration

	RetryAttempts  int
	RetryBaseDelay time.Duration

	AllowedOrigins []string

	LogLevel  string
	LogFormat string
}

// Load reads .env and the process environment, exiting on invalid settings.
func Load() *Config {
	_ = godotenv.Load()

	cfg, err := FromEnv(os.Getenv)
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}
	return cfg
}

// FromEnv builds a Config from a getenv style lookup.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}
	var errs []error
	getInt := func(key string, def int) int {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return def
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %q is not a number", key, v))
			return def
		}
		return n
	}

	appEnv := strings.ToLower(get("APP_ENV", EnvProduction))

	strict := appEnv == EnvDevelopment
	if v := strings.TrimSpace(getenv("STRICT_ERRORS")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("STRICT_ERRORS: %q is not a boolean", v))
		} else {
			strict = b
		}
	}

	var origins []string
	for _, o := range strings.Split(getenv("ALLOWED_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	cfg := &Config{
		AppPort:      get("APP_PORT", "8080"),
		AppEnv:       appEnv,
		StrictErrors: strict,

		DatabaseURL: getenv("DATABASE_URL"),
		JWTSecret:   getenv("JWT_SECRET"),
		JWTTTL:      time.Duration(getInt("JWT_TTL_HOURS", 24)) * time.Hour,
		DevLogin:    getenv("DEV_LOGIN") == "true",

		RedisAddr:     getenv("REDIS_ADDR"),
		RedisPassword: getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),

		APIRateLimit:     getInt("API_RATE_LIMIT", 120),
		APIRateWindow:    time.Duration(getInt("API_RATE_WINDOW_SECONDS", 60)) * time.Second,
		ExportRateLimit:  getInt("EXPORT_RATE_LIMIT", 10),
		ExportRateWindow: time.Duration(getInt("EXPORT_RATE_WINDOW_SECONDS", 60)) * time.Second,

		RetryAttempts:  getInt("STORE_RETRY_ATTEMPTS", 3),
		RetryBaseDelay: time.Duration(getInt("STORE_RETRY_BASE_MS", 100)) * time.Millisecond,

		AllowedOrigins: origins,

		LogLevel:  get("LOG_LEVEL", "info"),
		LogFormat: get("LOG_FORMAT", "text"),
	}

	errs = append(errs, cfg.Validate())
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is not set"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is not set"))
	}

	if port, err := strconv.Atoi(c.AppPort); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT: %q must be a port between 1 and 65535", c.AppPort))
	}

	if c.AppEnv != EnvDevelopment && c.AppEnv != EnvProduction {
		errs = append(errs, fmt.Errorf("APP_ENV: %q must be %s or %s", c.AppEnv, EnvDevelopment, EnvProduction))
	}

	if c.RetryAttempts < 1 {
		errs = append(errs, fmt.Errorf("STORE_RETRY_ATTEMPTS: %d must be at least 1", c.RetryAttempts))
	}
	if c.RetryBaseDelay < 0 {
		errs = append(errs, errors.New("STORE_RETRY_BASE_MS must not be negative"))
	}
	if c.JWTTTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL_HOURS must be positive"))
	}
	if c.APIRateLimit <= 0 || c.ExportRateLimit <= 0 {
		errs = append(errs, errors.New("rate limits must be positive"))
	}
	if c.APIRateWindow <= 0 || c.ExportRateWindow <= 0 {
		errs = append(errs, errors.New("rate limit windows must be positive"))
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT: %q must be text or json", c.LogFormat))
	}

	return errors.Join(errs...)
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}
