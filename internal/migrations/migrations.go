package migrations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// advisoryLockID serialises concurrent migrators across API replicas.
const advisoryLockID int64 = 0x5c0017

const unlockTimeout = 5 * time.Second

// ErrUnlock is returned when the advisory lock could not be released on the
// migrating session.
var ErrUnlock = errors.New("release migration lock")

// DB is a single database session. pg_advisory_lock is session scoped, so
// the lock, every migration and the unlock must share one connection.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Migration is one ordered schema change.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// All lists the schema history in order.
var All = []Migration{
	{
		Version:     1,
		Description: "create users",
		SQL: `CREATE TABLE IF NOT EXISTS users (
    id             UUID PRIMARY KEY,
    username       TEXT NOT NULL,
    email          TEXT NOT NULL,
    password_hash  BYTEA NOT NULL,
    token_version  INTEGER NOT NULL DEFAULT 0,
    created_at     TIMESTAMPTZ NOT NULL,
    updated_at     TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users (lower(email));
CREATE UNIQUE INDEX IF NOT EXISTS users_username_key ON users (lower(username));`,
	},
	{
		Version:     2,
		Description: "create reports",
		SQL: `CREATE TABLE IF NOT EXISTS reports (
    id                  UUID PRIMARY KEY,
    author_id           UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    latitude            DOUBLE PRECISION NOT NULL CHECK (latitude BETWEEN -90 AND 90),
    longitude           DOUBLE PRECISION NOT NULL CHECK (longitude BETWEEN -180 AND 180),
    location_name       TEXT NOT NULL,
    transport_line      TEXT,
    description         TEXT,
    is_anonymous        BOOLEAN NOT NULL DEFAULT FALSE,
    verification_count  INTEGER NOT NULL DEFAULT 0 CHECK (verification_count >= 0),
    created_at          TIMESTAMPTZ NOT NULL,
    expires_at          TIMESTAMPTZ NOT NULL,
    CHECK (expires_at > created_at)
);
CREATE INDEX IF NOT EXISTS reports_expires_at_idx ON reports (expires_at);
CREATE INDEX IF NOT EXISTS reports_lat_lon_idx ON reports (latitude, longitude);
CREATE INDEX IF NOT EXISTS reports_author_idx ON reports (author_id);`,
	},
	{
		Version:     3,
		Description: "create report verifications",
		SQL: `CREATE TABLE IF NOT EXISTS report_verifications (
    report_id   UUID NOT NULL REFERENCES reports (id) ON DELETE CASCADE,
    user_id     UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    created_at  TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (report_id, user_id)
);
CREATE INDEX IF NOT EXISTS report_verifications_user_idx ON report_verifications (user_id);`,
	},
}

// Migrate pins one pooled connection for the whole run and applies list on it.
func Migrate(ctx context.Context, pool *pgxpool.Pool, list []Migration, logger *slog.Logger) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire migration connection: %w", err)
	}

	err = Apply(ctx, conn, list, logger)
	if errors.Is(err, ErrUnlock) {
		// The session may still hold the lock; closing it is the only way to drop it.
		closeCtx, cancel := context.WithTimeout(context.Background(), unlockTimeout)
		defer cancel()
		if cerr := conn.Hijack().Close(closeCtx); cerr != nil && logger != nil {
			logger.Warn("close migration connection", slog.Any("error", cerr))
		}
		return err
	}
	conn.Release()
	return err
}

// Apply runs every migration in list not yet recorded in schema_migrations.
// db must be a single session, not a pool.
func Apply(ctx context.Context, db DB, list []Migration, logger *slog.Logger) (err error) {
	if _, err := db.Exec(ctx, `SELECT pg_advisory_lock($1)`, advisoryLockID); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		unlockCtx, cancel := context.WithTimeout(context.Background(), unlockTimeout)
		defer cancel()
		var released bool
		uerr := db.QueryRow(unlockCtx, `SELECT pg_advisory_unlock($1)`, advisoryLockID).Scan(&released)
		if uerr == nil && !released {
			uerr = errors.New("lock not held by this session")
		}
		if uerr != nil {
			err = errors.Join(err, fmt.Errorf("%w: %v", ErrUnlock, uerr))
		}
	}()

	if _, err := db.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
    version     INTEGER PRIMARY KEY,
    description TEXT NOT NULL,
    applied_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	last := 0
	for _, m := range list {
		if m.Version <= last {
			return fmt.Errorf("migration %d out of order", m.Version)
		}
		last = m.Version

		var applied bool
		if err := db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, m.Version).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if applied {
			continue
		}

		if _, err := db.Exec(ctx, m.SQL); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := db.Exec(ctx, `INSERT INTO schema_migrations (version, description) VALUES ($1, $2)`, m.Version, m.Description); err != nil {
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		if logger != nil {
			logger.Info("applied migration", slog.Int("version", m.Version), slog.String("description", m.Description))
		}
	}
	return nil
}
