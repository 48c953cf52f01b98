package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/mmpresence/internal/domain/model"
)

// ErrIncompleteIdentifiers is returned by SessionStore.SetIdentifiers when any
// of the three identifiers is empty. Nothing is written in that case.
var ErrIncompleteIdentifiers = errors.New("incomplete session identifiers")

// SessionStore defines the driven port for the single durable session record.
// Each Set call is atomic: either every field it carries is written or none is.
// Concurrent callers are resolved by last-write-wins.
type SessionStore interface {
	// Get returns the current record. A store that was never written returns
	// the zero SessionCredentials and a nil error.
	Get(ctx context.Context) (model.SessionCredentials, error)

	// SetIdentifiers replaces the captured identifier triple.
	SetIdentifiers(ctx context.Context, ids model.Identifiers) error

	// SetSettings replaces the configured domain and desired status.
	SetSettings(ctx context.Context, settings model.Settings) error
}
