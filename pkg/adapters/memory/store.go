// Package memory provides in-memory store implementations, used as the
// default backend for tests and single-process deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/domain"
)

// SessionStore implements ports.SessionStore in memory.
// Safe for concurrent use.
type SessionStore struct {
	data map[string]sessionRecord
	ttl  time.Duration
	now  func() time.Time
	mu   sync.RWMutex
}

type sessionRecord struct {
	sc        *domain.SessionContext
	expiresAt time.Time
}

// SessionStoreOption configures a SessionStore.
type SessionStoreOption func(*SessionStore)

// WithSessionTTL makes records expire after d of inactivity. Zero disables expiry.
func WithSessionTTL(d time.Duration) SessionStoreOption {
	return func(s *SessionStore) {
		s.ttl = d
	}
}

// WithSessionClock overrides the time source, used by expiry tests.
func WithSessionClock(now func() time.Time) SessionStoreOption {
	return func(s *SessionStore) {
		s.now = now
	}
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore(opts ...SessionStoreOption) *SessionStore {
	s := &SessionStore{
		data: make(map[string]sessionRecord),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save persists a deep copy of the context and refreshes its TTL.
func (s *SessionStore) Save(ctx context.Context, sc *domain.SessionContext) error {
	rec := sessionRecord{sc: sc.Clone()}
	if s.ttl > 0 {
		rec.expiresAt = s.now().Add(s.ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sc.SessionID] = rec
	return nil
}

// Load retrieves a deep copy of the context. Expired records are pruned lazily.
func (s *SessionStore) Load(ctx context.Context, sessionID string) (*domain.SessionContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if s.expired(rec) {
		delete(s.data, sessionID)
		return nil, domain.ErrSessionNotFound
	}
	return rec.sc.Clone(), nil
}

// Delete removes the context.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

// List returns the IDs of unexpired sessions, sorted for determinism.
func (s *SessionStore) List(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.data))
	for id, rec := range s.data {
		if s.expired(rec) {
			delete(s.data, id)
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *SessionStore) expired(rec sessionRecord) bool {
	return s.ttl > 0 && !s.now().Before(rec.expiresAt)
}

// ConfirmationStore implements ports.ConfirmationStore in memory.
// Safe for concurrent use.
type ConfirmationStore struct {
	data map[string]*domain.PendingConfirmation
	mu   sync.RWMutex
}

// NewConfirmationStore creates a new in-memory confirmation store.
func NewConfirmationStore() *ConfirmationStore {
	return &ConfirmationStore{
		data: make(map[string]*domain.PendingConfirmation),
	}
}

// Put creates or replaces a confirmation record.
func (s *ConfirmationStore) Put(ctx context.Context, c *domain.PendingConfirmation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[c.ID] = c.Clone()
	return nil
}

// Get retrieves a confirmation by ID.
func (s *ConfirmationStore) Get(ctx context.Context, id string) (*domain.PendingConfirmation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.data[id]
	if !ok {
		return nil, domain.ErrConfirmationNotFound
	}
	return c.Clone(), nil
}

// ListPending returns pending confirmations ordered by creation time, oldest first.
func (s *ConfirmationStore) ListPending(ctx context.Context) ([]*domain.PendingConfirmation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pending := make([]*domain.PendingConfirmation, 0)
	for _, c := range s.data {
		if c.State == domain.ConfirmationPending {
			pending = append(pending, c.Clone())
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].ID < pending[j].ID
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending, nil
}
