package ports

import (
	"context"

	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/domain"
)

// SessionStore persists one SessionContext document per session ID.
// Writes replace the whole document as one unit; expiry is enforced by the
// backing mechanism (a TTL on the record), not by application polling.
type SessionStore interface {
	// Load retrieves the context for a session ID.
	// Returns domain.ErrSessionNotFound if the session does not exist or expired.
	Load(ctx context.Context, sessionID string) (*domain.SessionContext, error)

	// Save persists the full context, refreshing its TTL.
	Save(ctx context.Context, sc *domain.SessionContext) error

	// Delete removes the context for a session ID.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of unexpired sessions.
	List(ctx context.Context) ([]string, error)
}

// ConfirmationStore persists pending-approval records for gated actions.
type ConfirmationStore interface {
	// Put creates or replaces a confirmation record.
	Put(ctx context.Context, c *domain.PendingConfirmation) error

	// Get retrieves a confirmation by ID.
	// Returns domain.ErrConfirmationNotFound when absent.
	Get(ctx context.Context, id string) (*domain.PendingConfirmation, error)

	// ListPending returns confirmations still in the pending state, oldest first.
	ListPending(ctx context.Context) ([]*domain.PendingConfirmation, error)
}
