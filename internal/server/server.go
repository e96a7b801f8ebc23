package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/scout-app/scout-api/internal/apperr"
	"github.com/scout-app/scout-api/internal/config"
	"github.com/scout-app/scout-api/internal/metrics"
	"github.com/scout-app/scout-api/internal/report"
	"github.com/scout-app/scout-api/internal/routes"
)

// Server wraps the Fiber application and shared dependencies.
type Server struct {
	app     *fiber.App
	cfg     config.Config
	logger  *slog.Logger
	sweeper *report.Sweeper
}

// New builds the backend, wires routes and schedules the expiry sweeper
// when the backend stores reports. db and cache may be nil.
func New(ctx context.Context, cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: apperr.Handler(logger),
	})

	deps := routes.Deps{Cfg: cfg, DB: db, Cache: cache, Logger: logger, Metrics: metrics.New()}
	backend, err := routes.NewBackend(ctx, deps)
	if err != nil {
		return nil, err
	}
	if err := routes.Setup(app, deps, backend); err != nil {
		return nil, err
	}

	s := &Server{app: app, cfg: cfg, logger: logger}
	if backend.Purger != nil {
		s.sweeper, err = report.NewSweeper(backend.Purger, cfg.SweepSchedule, cfg.ReportRetention, logger)
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// App exposes the Fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the sweeper and then the HTTP server.
func (s *Server) Listen() error {
	if s.sweeper != nil {
		s.sweeper.Start()
	}
	s.logger.Info("listening", slog.String("addr", s.cfg.Address()), slog.String("backend", s.cfg.Backend))
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server and the sweeper.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	if s.sweeper != nil {
		s.sweeper.Stop(ctx)
	}
	return err
}
