package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ericfisherdev/mmpresence/internal/domain/model"
	"github.com/ericfisherdev/mmpresence/internal/domain/port/driven"
)

// Storage keys of the session_values table, one row per field.
const (
	keyDomain        = "domain"
	keyAuthToken     = "authToken"
	keyUserID        = "userId"
	keyCSRFToken     = "csrfToken"
	keyDesiredStatus = "desiredStatus"
)

// Compile-time interface satisfaction check.
var _ driven.SessionStore = (*SessionRepo)(nil)

// SessionRepo is the SQLite implementation of the SessionStore port interface.
// The record is stored as key/value rows so the capture path and the settings
// path each rewrite only the keys they own, inside one transaction.
type SessionRepo struct {
	db  *DB
	now func() time.Time
}

// NewSessionRepo creates a new SessionRepo backed by the given DB.
func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db, now: time.Now}
}

// Get returns the current session record. All keys are read by a single
// statement, so the result never mixes two different writes of the same unit.
func (r *SessionRepo) Get(ctx context.Context) (model.SessionCredentials, error) {
	const query = `SELECT key, value, updated_at FROM session_values`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return model.SessionCredentials{}, fmt.Errorf("get session: %w", err)
	}
	defer rows.Close()

	var creds model.SessionCredentials
	for rows.Next() {
		var key, value, updatedAt string
		if err := rows.Scan(&key, &value, &updatedAt); err != nil {
			return model.SessionCredentials{}, fmt.Errorf("scan session value: %w", err)
		}

		switch key {
		case keyDomain:
			creds.Domain = value
		case keyAuthToken:
			creds.AuthToken = value
			creds.UpdatedAt, err = parseTime(updatedAt)
			if err != nil {
				return model.SessionCredentials{}, fmt.Errorf("parse updated_at for %q: %w", key, err)
			}
		case keyUserID:
			creds.UserID = value
		case keyCSRFToken:
			creds.CSRFToken = value
		case keyDesiredStatus:
			creds.DesiredStatus = model.Status(value)
		}
	}
	if err := rows.Err(); err != nil {
		return model.SessionCredentials{}, fmt.Errorf("iterate session values: %w", err)
	}

	return creds, nil
}

// SetIdentifiers replaces the identifier triple. An incomplete triple is
// rejected with driven.ErrIncompleteIdentifiers and nothing is written.
func (r *SessionRepo) SetIdentifiers(ctx context.Context, ids model.Identifiers) error {
	if !ids.Complete() {
		return fmt.Errorf("set identifiers (missing %v): %w", ids.Missing(), driven.ErrIncompleteIdentifiers)
	}

	return r.write(ctx, "set identifiers", map[string]string{
		keyAuthToken: ids.AuthToken,
		keyUserID:    ids.UserID,
		keyCSRFToken: ids.CSRFToken,
	})
}

// SetSettings replaces the configured domain and desired status. An empty
// field removes the stored value so it reads back as absent.
func (r *SessionRepo) SetSettings(ctx context.Context, settings model.Settings) error {
	return r.write(ctx, "set settings", map[string]string{
		keyDomain:        settings.Domain,
		keyDesiredStatus: string(settings.DesiredStatus),
	})
}

// write upserts every non-empty value and deletes every empty one in a single
// transaction on the writer connection.
func (r *SessionRepo) write(ctx context.Context, op string, values map[string]string) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	updatedAt := r.now().UTC().Format(time.RFC3339Nano)

	for key, value := range values {
		if err := writeValue(ctx, tx, key, value, updatedAt); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

func writeValue(ctx context.Context, tx *sql.Tx, key, value, updatedAt string) error {
	if value == "" {
		const query = `DELETE FROM session_values WHERE key = ?`
		if _, err := tx.ExecContext(ctx, query, key); err != nil {
			return fmt.Errorf("delete %q: %w", key, err)
		}
		return nil
	}

	const query = `INSERT OR REPLACE INTO session_values (key, value, updated_at) VALUES (?, ?, ?)`
	if _, err := tx.ExecContext(ctx, query, key, value, updatedAt); err != nil {
		return fmt.Errorf("upsert %q: %w", key, err)
	}
	return nil
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
