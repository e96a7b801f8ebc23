package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName          = "Scout API"
	defaultAppVersion       = "1.0.0"
	defaultAppEnv           = "development"
	defaultPort             = "8000"
	defaultLogLevel         = "info"
	defaultBackend          = BackendStub
	defaultShutdownDelay    = 10 * time.Second
	defaultIdempotencyTTL   = 24 * time.Hour
	defaultAccessTokenTTL   = 30 * time.Minute
	defaultRefreshTokenTTL  = 7 * 24 * time.Hour
	defaultReportTTL        = 60 * time.Minute
	defaultReportRetention  = 24 * time.Hour
	defaultSweepSchedule    = "@every 1m"
	defaultCORSOrigins      = "*"
	defaultLoginAttempts    = 5
	defaultReportRatePerMin = 6.0
	defaultReportRateBurst  = 3
	devSecret               = "dev-secret-change-in-production"
	devRefreshSecret        = "dev-refresh-secret-change-in-production"
)

// Backend names accepted by API_BACKEND.
const (
	BackendStub     = "stub"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppVersion     string
	AppEnv         string
	Port           string
	LogLevel       string
	Backend        string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	JWTSecret       string
	RefreshSecret   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	ReportTTL       time.Duration
	ReportRetention time.Duration
	SweepSchedule   string

	CORSAllowOrigins       string
	LoginAttemptsPerMinute int
	ReportRatePerMinute    float64
	ReportRateBurst        int
}

// Load reads an optional .env file, then the environment, and populates a Config instance.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current process environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		AppName:          getEnv("APP_NAME", defaultAppName),
		AppVersion:       getEnv("APP_VERSION", defaultAppVersion),
		AppEnv:           getEnv("APP_ENV", defaultAppEnv),
		Port:             getEnv("PORT", defaultPort),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		Backend:          strings.ToLower(getEnv("API_BACKEND", defaultBackend)),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		JWTSecret:        getEnv("JWT_SECRET", devSecret),
		RefreshSecret:    getEnv("JWT_REFRESH_SECRET", devRefreshSecret),
		SweepSchedule:    getEnv("REPORT_SWEEP_SCHEDULE", defaultSweepSchedule),
		CORSAllowOrigins: getEnv("CORS_ALLOW_ORIGINS", defaultCORSOrigins),
	}

	durations := []struct {
		target   *time.Duration
		seconds  string
		duration string
		fallback time.Duration
	}{
		{&cfg.ShutdownPeriod, "SHUTDOWN_TIMEOUT_SECONDS", "SHUTDOWN_TIMEOUT", defaultShutdownDelay},
		{&cfg.IdempotencyTTL, "IDEMPOTENCY_TTL_SECONDS", "IDEMPOTENCY_TTL", defaultIdempotencyTTL},
		{&cfg.AccessTokenTTL, "ACCESS_TOKEN_TTL_SECONDS", "ACCESS_TOKEN_TTL", defaultAccessTokenTTL},
		{&cfg.RefreshTokenTTL, "REFRESH_TOKEN_TTL_SECONDS", "REFRESH_TOKEN_TTL", defaultRefreshTokenTTL},
		{&cfg.ReportTTL, "REPORT_TTL_SECONDS", "REPORT_TTL", defaultReportTTL},
		{&cfg.ReportRetention, "REPORT_RETENTION_SECONDS", "REPORT_RETENTION", defaultReportRetention},
	}
	for _, d := range durations {
		v, err := durationEnv(d.seconds, d.duration, d.fallback)
		if err != nil {
			return Config{}, err
		}
		*d.target = v
	}

	var err error
	if cfg.LoginAttemptsPerMinute, err = intEnv("LOGIN_ATTEMPTS_PER_MINUTE", defaultLoginAttempts); err != nil {
		return Config{}, err
	}
	if cfg.ReportRateBurst, err = intEnv("REPORT_RATE_BURST", defaultReportRateBurst); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("REPORT_RATE_PER_MINUTE"); v != "" {
		rpm, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid REPORT_RATE_PER_MINUTE: %w", err)
		}
		cfg.ReportRatePerMinute = rpm
	} else {
		cfg.ReportRatePerMinute = defaultReportRatePerMin
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendStub, BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set when API_BACKEND=%s", BackendPostgres)
		}
	default:
		return fmt.Errorf("unknown API_BACKEND %q", c.Backend)
	}

	if c.ReportTTL <= 0 {
		return fmt.Errorf("REPORT_TTL must be positive")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}

	if c.IsProduction() {
		if c.JWTSecret == devSecret || c.RefreshSecret == devRefreshSecret {
			return fmt.Errorf("JWT_SECRET and JWT_REFRESH_SECRET must be set in production")
		}
	}
	return nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the app runs in a local/development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c Config) IsProduction() bool {
	switch strings.ToLower(c.AppEnv) {
	case "prod", "production":
		return true
	default:
		return false
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

// durationEnv prefers an integer seconds variable, then a Go duration string.
func durationEnv(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(durationKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}
