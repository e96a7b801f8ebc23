package migrations

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scout-app/scout-api/internal/logging"
)

type boolRow struct {
	value bool
	err   error
}

func (r boolRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*bool)) = r.value
	return nil
}

// fakeDB is one session: it records every statement in order.
type fakeDB struct {
	applied    map[int]bool
	execs      []string
	failOn     string
	locked     bool
	lostLock   bool
	statements []string
}

func (db *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.execs = append(db.execs, sql)
	db.statements = append(db.statements, sql)
	if strings.Contains(sql, "pg_advisory_lock") {
		db.locked = true
	}
	if db.failOn != "" && strings.Contains(sql, db.failOn) {
		return pgconn.CommandTag{}, errors.New("syntax error")
	}
	if strings.HasPrefix(sql, "INSERT INTO schema_migrations") {
		db.applied[args[0].(int)] = true
	}
	return pgconn.CommandTag{}, nil
}

func (db *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	db.statements = append(db.statements, sql)
	if strings.Contains(sql, "pg_advisory_unlock") {
		released := db.locked && !db.lostLock
		db.locked = false
		return boolRow{value: released}
	}
	return boolRow{value: db.applied[args[0].(int)]}
}

func countContaining(execs []string, fragment string) int {
	n := 0
	for _, sql := range execs {
		if strings.Contains(sql, fragment) {
			n++
		}
	}
	return n
}

func TestApplyRunsPendingOnce(t *testing.T) {
	db := &fakeDB{applied: map[int]bool{}}
	ctx := context.Background()

	require.NoError(t, Apply(ctx, db, All, logging.Discard()))
	for _, m := range All {
		assert.True(t, db.applied[m.Version], "migration %d recorded", m.Version)
	}
	assert.Equal(t, 1, countContaining(db.execs, "CREATE TABLE IF NOT EXISTS reports"))

	require.NoError(t, Apply(ctx, db, All, logging.Discard()))
	assert.Equal(t, 1, countContaining(db.execs, "CREATE TABLE IF NOT EXISTS reports"), "second run is a no-op")
	assert.Equal(t, 2, countContaining(db.statements, "pg_advisory_unlock"))
	assert.False(t, db.locked)
}

func TestApplyLocksAndUnlocksOnSameSession(t *testing.T) {
	db := &fakeDB{applied: map[int]bool{}}

	require.NoError(t, Apply(context.Background(), db, All, nil))
	require.NotEmpty(t, db.statements)
	assert.Contains(t, db.statements[0], "pg_advisory_lock")
	assert.Contains(t, db.statements[len(db.statements)-1], "pg_advisory_unlock")
	assert.False(t, db.locked)
}

func TestApplyReportsUnreleasedLock(t *testing.T) {
	db := &fakeDB{applied: map[int]bool{}, lostLock: true}

	err := Apply(context.Background(), db, All, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnlock)
	assert.True(t, db.applied[3], "migrations still ran")
}

func TestApplyUnlocksAfterFailure(t *testing.T) {
	db := &fakeDB{applied: map[int]bool{}, failOn: "CREATE TABLE IF NOT EXISTS reports"}

	err := Apply(context.Background(), db, All, nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnlock)
	assert.Contains(t, db.statements[len(db.statements)-1], "pg_advisory_unlock")
	assert.False(t, db.locked)
}

func TestApplyStopsOnFailure(t *testing.T) {
	db := &fakeDB{applied: map[int]bool{}, failOn: "CREATE TABLE IF NOT EXISTS reports"}

	err := Apply(context.Background(), db, All, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apply migration 2")
	assert.True(t, db.applied[1])
	assert.False(t, db.applied[3])
}

func TestApplyRejectsUnorderedList(t *testing.T) {
	db := &fakeDB{applied: map[int]bool{}}
	list := []Migration{{Version: 2, SQL: "SELECT 1"}, {Version: 1, SQL: "SELECT 1"}}

	err := Apply(context.Background(), db, list, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of order")
}
