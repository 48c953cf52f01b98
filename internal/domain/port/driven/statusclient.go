package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/mmpresence/internal/domain/model"
)

// ErrRemoteCall is wrapped by every StatusClient failure: non-2xx responses,
// malformed bodies and transport errors alike.
var ErrRemoteCall = errors.New("remote call failed")

// StatusClient defines the driven port for the remote presence API.
// Implementations do not retry; the caller's next tick is the retry.
type StatusClient interface {
	// ReadStatus returns the user's current status on the target.
	ReadStatus(ctx context.Context, target model.Target) (model.Status, error)

	// WriteStatus sets the user's status on the target.
	WriteStatus(ctx context.Context, target model.Target, status model.Status) error
}
