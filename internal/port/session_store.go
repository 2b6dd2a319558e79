package port

import (
	"context"

	"github.com/Relayn/warehouse-bot/internal/core/domain"
)

// SessionStore is a dumb keyed persistence surface for conversation
// sessions. It holds no business logic; the store may evict idle
// sessions on its own schedule, which the engine treats the same as an
// implicit cancellation.
type SessionStore interface {
	// Get returns the session for userID, or the default idle session
	// if none is stored.
	Get(ctx context.Context, userID string) (domain.Session, error)

	// Set stores the session for userID, overwriting any existing one.
	Set(ctx context.Context, userID string, session domain.Session) error

	// Clear removes the session for userID. Clearing a missing session
	// is not an error.
	Clear(ctx context.Context, userID string) error
}
