package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"testing"
)

// setupTestDB opens a migrated in-memory session database private to t.
// The writer and reader pools share it through cache=shared, keyed by t.Name().
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	// In-memory databases have no WAL, so only the remaining pragmas apply.
	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)",
		url.PathEscape(t.Name()),
	)

	db := &DB{
		Writer: openTestPool(t, dsn, 1),
		Reader: openTestPool(t, dsn, 4),
		path:   dsn,
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := RunMigrations(db.Writer); err != nil {
		t.Fatalf("migrate session schema: %v", err)
	}
	return db
}

func openTestPool(t *testing.T, dsn string, maxConns int) *sql.DB {
	t.Helper()

	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open test pool: %v", err)
	}
	pool.SetMaxOpenConns(maxConns)
	if err := pool.PingContext(context.Background()); err != nil {
		_ = pool.Close()
		t.Fatalf("ping test pool: %v", err)
	}
	return pool
}

// sessionRows returns the raw session_values rows, bypassing SessionRepo.
func sessionRows(t *testing.T, db *DB) map[string]string {
	t.Helper()

	rows, err := db.Reader.QueryContext(context.Background(), `SELECT key, value FROM session_values`)
	if err != nil {
		t.Fatalf("query session_values: %v", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			t.Fatalf("scan session_values: %v", err)
		}
		out[key] = value
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("iterate session_values: %v", err)
	}
	return out
}
