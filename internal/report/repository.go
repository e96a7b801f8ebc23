package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scout-app/scout-api/internal/geo"
)

const uniqueViolation = "23505"

// Repository persists reports and their verifications.
type Repository interface {
	Create(ctx context.Context, report Report) error
	Get(ctx context.Context, id string) (Report, error)
	Update(ctx context.Context, report Report) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter Filter) ([]Report, int, error)
	// AddVerification records userID's verification and returns the new count.
	AddVerification(ctx context.Context, reportID, userID string, at time.Time) (int, error)
	// VerifiedBy returns the subset of reportIDs that userID has verified.
	VerifiedBy(ctx context.Context, userID string, reportIDs []string) (map[string]bool, error)
	CountByAuthor(ctx context.Context, authorID string) (int, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PostgresRepository stores reports in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const reportColumns = `id, author_id, latitude, longitude, location_name, transport_line, description,
        is_anonymous, verification_count, created_at, expires_at`

// Create inserts a report record.
func (r *PostgresRepository) Create(ctx context.Context, report Report) error {
	reportID, err := uuid.Parse(report.ID)
	if err != nil {
		return err
	}
	authorID, err := uuid.Parse(report.AuthorID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO reports (`+reportColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		reportID, authorID, report.Latitude, report.Longitude, report.LocationName, report.TransportLine, report.Description,
		report.Anonymous, report.VerificationCount, report.CreatedAt.UTC(), report.ExpiresAt.UTC())
	return err
}

// Get fetches a report by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Report, error) {
	reportID, err := uuid.Parse(id)
	if err != nil {
		return Report{}, ErrNotFound
	}
	report, err := scanReport(r.db.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, reportID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Report{}, ErrNotFound
	}
	return report, err
}

// Update stores the editable fields of a report.
func (r *PostgresRepository) Update(ctx context.Context, report Report) error {
	reportID, err := uuid.Parse(report.ID)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE reports SET location_name = $1, transport_line = $2, description = $3 WHERE id = $4`,
		report.LocationName, report.TransportLine, report.Description, reportID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a report; verifications cascade.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	reportID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `DELETE FROM reports WHERE id = $1`, reportID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns one page of active reports, newest first, and the total
// number of matches. A bounding box narrows candidates before the exact
// great-circle check.
func (r *PostgresRepository) List(ctx context.Context, filter Filter) ([]Report, int, error) {
	where, args := listConditions(filter)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM reports WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []Report{}, 0, nil
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM reports WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		reportColumns, where, len(args)-1, len(args))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	reports := make([]Report, 0, filter.Limit)
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, 0, err
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

// AddVerification locks the report row, records the verification and bumps
// the counter in one transaction.
func (r *PostgresRepository) AddVerification(ctx context.Context, reportID, userID string, at time.Time) (int, error) {
	rid, err := uuid.Parse(reportID)
	if err != nil {
		return 0, ErrNotFound
	}
	uid, err := uuid.Parse(userID)
	if err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var count int
	if err := tx.QueryRow(ctx, `SELECT verification_count FROM reports WHERE id = $1 FOR UPDATE`, rid).Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}

	if _, err := tx.Exec(ctx, `INSERT INTO report_verifications (report_id, user_id, created_at) VALUES ($1, $2, $3)`,
		rid, uid, at.UTC()); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, ErrAlreadyVerified
		}
		return 0, err
	}

	if err := tx.QueryRow(ctx, `UPDATE reports SET verification_count = verification_count + 1 WHERE id = $1
        RETURNING verification_count`, rid).Scan(&count); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return count, nil
}

// VerifiedBy returns which of reportIDs userID has verified.
func (r *PostgresRepository) VerifiedBy(ctx context.Context, userID string, reportIDs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(reportIDs))
	uid, err := uuid.Parse(userID)
	if err != nil || len(reportIDs) == 0 {
		return out, nil
	}
	ids := make([]uuid.UUID, 0, len(reportIDs))
	for _, id := range reportIDs {
		if parsed, err := uuid.Parse(id); err == nil {
			ids = append(ids, parsed)
		}
	}

	rows, err := r.db.Query(ctx, `SELECT report_id FROM report_verifications
        WHERE user_id = $1 AND report_id = ANY($2)`, uid, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id.String()] = true
	}
	return out, rows.Err()
}

// CountByAuthor counts stored reports written by authorID.
func (r *PostgresRepository) CountByAuthor(ctx context.Context, authorID string) (int, error) {
	aid, err := uuid.Parse(authorID)
	if err != nil {
		return 0, nil
	}
	var count int
	err = r.db.QueryRow(ctx, `SELECT COUNT(*) FROM reports WHERE author_id = $1`, aid).Scan(&count)
	return count, err
}

// DeleteExpiredBefore purges reports whose validity ended before cutoff.
func (r *PostgresRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	cmd, err := r.db.Exec(ctx, `DELETE FROM reports WHERE expires_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func listConditions(filter Filter) (string, []any) {
	conds := []string{"expires_at > $1", "verification_count >= $2"}
	args := []any{filter.Now.UTC(), filter.MinVerifications}

	if filter.Center != nil {
		box := geo.BoundingBox(*filter.Center, filter.RadiusKm)
		args = append(args, box.MinLat, box.MaxLat, box.MinLon, box.MaxLon, filter.Center.Lat, filter.Center.Lon, filter.RadiusKm)
		n := len(args)
		conds = append(conds,
			fmt.Sprintf("latitude BETWEEN $%d AND $%d", n-6, n-5),
			fmt.Sprintf("longitude BETWEEN $%d AND $%d", n-4, n-3),
			fmt.Sprintf(`2 * %f * asin(least(1.0, sqrt(
                power(sin(radians(latitude - $%[2]d) / 2), 2) +
                cos(radians($%[2]d)) * cos(radians(latitude)) * power(sin(radians(longitude - $%[3]d) / 2), 2)
            ))) <= $%[4]d`, geo.EarthRadiusKm, n-2, n-1, n),
		)
	}
	return strings.Join(conds, " AND "), args
}

func scanReport(row pgx.Row) (Report, error) {
	var (
		report    Report
		id        uuid.UUID
		authorID  uuid.UUID
		createdAt time.Time
		expiresAt time.Time
	)
	if err := row.Scan(&id, &authorID, &report.Latitude, &report.Longitude, &report.LocationName,
		&report.TransportLine, &report.Description, &report.Anonymous, &report.VerificationCount,
		&createdAt, &expiresAt); err != nil {
		return Report{}, err
	}
	report.ID = id.String()
	report.AuthorID = authorID.String()
	report.CreatedAt = createdAt.UTC()
	report.ExpiresAt = expiresAt.UTC()
	return report, nil
}
