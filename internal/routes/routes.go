package routes

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/scout-app/scout-api/internal/auth"
	"github.com/scout-app/scout-api/internal/config"
	"github.com/scout-app/scout-api/internal/metrics"
	"github.com/scout-app/scout-api/internal/middleware"
	"github.com/scout-app/scout-api/internal/migrations"
	"github.com/scout-app/scout-api/internal/notification"
	"github.com/scout-app/scout-api/internal/report"
	"github.com/scout-app/scout-api/internal/user"
	"github.com/scout-app/scout-api/internal/validation"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg     config.Config
	DB      *pgxpool.Pool
	Cache   *redis.Client
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Backend holds the services behind the HTTP handlers. Verifier and Purger
// are nil for the stub backend.
type Backend struct {
	Auth     auth.Service
	Users    user.Service
	Reports  report.Service
	Verifier middleware.TokenVerifier
	Purger   report.Purger
}

// NewBackend builds the services selected by cfg.Backend. The postgres
// backend applies pending migrations first.
func NewBackend(ctx context.Context, d Deps) (Backend, error) {
	var (
		users   user.Repository
		reports report.Repository
	)
	switch d.Cfg.Backend {
	case config.BackendStub:
		return Backend{Auth: auth.Unimplemented{}, Users: user.Unimplemented{}, Reports: report.Unimplemented{}}, nil
	case config.BackendMemory:
		users = user.NewMemoryRepository()
		reports = report.NewMemoryRepository()
	case config.BackendPostgres:
		if d.DB == nil {
			return Backend{}, fmt.Errorf("database is required when API_BACKEND=%s", config.BackendPostgres)
		}
		if err := migrations.Migrate(ctx, d.DB, migrations.All, d.Logger); err != nil {
			return Backend{}, fmt.Errorf("migrate: %w", err)
		}
		users = user.NewPostgresRepository(d.DB)
		reports = report.NewPostgresRepository(d.DB)
	default:
		return Backend{}, fmt.Errorf("unknown backend %q", d.Cfg.Backend)
	}

	reportSvc := report.NewManager(reports, users, d.Cfg.ReportTTL, notification.NewLoggerNotifier(d.Logger), d.Metrics, d.Logger)
	accounts := user.NewManager(users, reportSvc)
	tokens := auth.NewTokens(d.Cfg.JWTSecret, d.Cfg.RefreshSecret, d.Cfg.AccessTokenTTL, d.Cfg.RefreshTokenTTL)
	authSvc := auth.NewManager(accounts, users, tokens)

	return Backend{
		Auth:     authSvc,
		Users:    accounts,
		Reports:  reportSvc,
		Verifier: authSvc,
		Purger:   reportSvc,
	}, nil
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps, b Backend) error {
	if b.Auth == nil || b.Users == nil || b.Reports == nil {
		return fmt.Errorf("backend services are required")
	}
	if !d.Cfg.IsDev() && d.Cfg.Backend != config.BackendPostgres {
		d.Logger.Warn("non-persistent backend outside development", slog.String("backend", d.Cfg.Backend), slog.String("env", d.Cfg.AppEnv))
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(newCORS(d.Cfg.CORSAllowOrigins))
	app.Use(middleware.Audit(d.Logger))
	if d.Metrics != nil {
		app.Use(middleware.Metrics(d.Metrics))
	}

	RegisterHealthRoutes(app, d)

	validate := validation.New()
	api := app.Group("/api/v1")
	RegisterAuthRoutes(api, auth.NewHandler(b.Auth, validate), b, d)
	RegisterUserRoutes(api, user.NewHandler(b.Users), b)
	RegisterReportRoutes(api, report.NewHandler(b.Reports, validate), b, d)
	return nil
}

// newCORS allows the configured origins with credentials. A wildcard echoes
// the caller's origin, since browsers reject "*" alongside credentials.
func newCORS(origins string) fiber.Handler {
	cfg := cors.Config{
		AllowMethods:     strings.Join([]string{fiber.MethodGet, fiber.MethodPost, fiber.MethodPut, fiber.MethodPatch, fiber.MethodDelete, fiber.MethodHead, fiber.MethodOptions}, ","),
		AllowCredentials: true,
		ExposeHeaders:    "X-Request-ID,Idempotent-Replayed",
	}
	if strings.TrimSpace(origins) == "*" || strings.TrimSpace(origins) == "" {
		cfg.AllowOriginsFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

// requireAuth and optionalAuth are no-ops for the stub backend, which has
// no accounts to authenticate against.
func (b Backend) requireAuth() fiber.Handler {
	if b.Verifier == nil {
		return passthrough
	}
	return middleware.RequireAuth(b.Verifier)
}

func (b Backend) optionalAuth() fiber.Handler {
	if b.Verifier == nil {
		return passthrough
	}
	return middleware.OptionalAuth(b.Verifier)
}

func passthrough(c *fiber.Ctx) error { return c.Next() }
