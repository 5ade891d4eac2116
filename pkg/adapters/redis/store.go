// Package redis provides Redis-backed stores and a distributed lock, the
// production backend for multi-replica deployments.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/domain"
)

// DefaultSessionTTL is the inactivity window after which a session expires.
const DefaultSessionTTL = 24 * time.Hour

const (
	sessionPrefix      = "user_session:"
	confirmationPrefix = "confirmation:"
)

// farFuture scores index members that never expire.
const farFuture = 4102444800 // 2100-01-01

// SessionStore implements ports.SessionStore using Redis. Each session is a
// single JSON document under user_session:{sessionID} with a TTL refreshed on
// every write, plus a ZSET index scored by deadline for listing.
type SessionStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// SessionStoreOption configures a SessionStore.
type SessionStoreOption func(*SessionStore)

// WithTTL overrides the session expiration. Zero disables expiry.
func WithTTL(ttl time.Duration) SessionStoreOption {
	return func(s *SessionStore) {
		s.ttl = ttl
	}
}

// WithPrefix overrides the key prefix.
func WithPrefix(prefix string) SessionStoreOption {
	return func(s *SessionStore) {
		s.prefix = prefix
	}
}

// NewSessionStore creates a session store from an existing client.
func NewSessionStore(client *backend.Client, opts ...SessionStoreOption) *SessionStore {
	store := &SessionStore{
		client: client,
		prefix: sessionPrefix,
		ttl:    DefaultSessionTTL,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *SessionStore) key(sessionID string) string {
	return s.prefix + sessionID
}

func (s *SessionStore) indexKey() string {
	return s.prefix + "index"
}

// Save persists the full context as one document and refreshes its TTL.
func (s *SessionStore) Save(ctx context.Context, sc *domain.SessionContext) error {
	data, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = farFuture
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(sc.SessionID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  score,
		Member: sc.SessionID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save session to redis: %w", err)
	}
	return nil
}

// Load retrieves the context. Expired documents read as not found.
func (s *SessionStore) Load(ctx context.Context, sessionID string) (*domain.SessionContext, error) {
	val, err := s.client.Get(ctx, s.key(sessionID)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session from redis: %w", err)
	}

	var sc domain.SessionContext
	if err := json.Unmarshal([]byte(val), &sc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sc, nil
}

// Delete removes the session and its index entry.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(sessionID))
	pipe.ZRem(ctx, s.indexKey(), sessionID)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns unexpired session IDs. Redis expires the documents on its
// own; the index is pruned lazily here, first by deadline score and then by
// dropping members whose document is already gone.
func (s *SessionStore) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired sessions: %w", err)
	}

	members, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions := make([]string, 0, len(members))
	for _, id := range members {
		n, err := s.client.Exists(ctx, s.key(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to check session %s: %w", id, err)
		}
		if n == 0 {
			s.client.ZRem(ctx, s.indexKey(), id)
			continue
		}
		sessions = append(sessions, id)
	}
	return sessions, nil
}

// Close closes the redis client.
func (s *SessionStore) Close() error {
	return s.client.Close()
}

// ConfirmationStore implements ports.ConfirmationStore using Redis. Records
// are kept past their pending deadline so decisions on expired confirmations
// can still report the terminal state; retention bounds storage instead.
type ConfirmationStore struct {
	client    *backend.Client
	prefix    string
	retention time.Duration
}

// ConfirmationStoreOption configures a ConfirmationStore.
type ConfirmationStoreOption func(*ConfirmationStore)

// WithRetention bounds how long settled records stay readable.
func WithRetention(d time.Duration) ConfirmationStoreOption {
	return func(s *ConfirmationStore) {
		s.retention = d
	}
}

// NewConfirmationStore creates a confirmation store from an existing client.
func NewConfirmationStore(client *backend.Client, opts ...ConfirmationStoreOption) *ConfirmationStore {
	store := &ConfirmationStore{
		client:    client,
		prefix:    confirmationPrefix,
		retention: 7 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *ConfirmationStore) key(id string) string {
	return s.prefix + id
}

func (s *ConfirmationStore) indexKey() string {
	return s.prefix + "index"
}

// Put creates or replaces a confirmation record.
func (s *ConfirmationStore) Put(ctx context.Context, c *domain.PendingConfirmation) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal confirmation: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(c.ID), data, s.retention)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  float64(c.CreatedAt.Unix()),
		Member: c.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save confirmation to redis: %w", err)
	}
	return nil
}

// Get retrieves a confirmation by ID.
func (s *ConfirmationStore) Get(ctx context.Context, id string) (*domain.PendingConfirmation, error) {
	val, err := s.client.Get(ctx, s.key(id)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrConfirmationNotFound
		}
		return nil, fmt.Errorf("failed to get confirmation from redis: %w", err)
	}

	var c domain.PendingConfirmation
	if err := json.Unmarshal([]byte(val), &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal confirmation: %w", err)
	}
	return &c, nil
}

// ListPending returns pending confirmations, oldest first. The index is
// ordered by creation time; records aged out of retention are pruned from it
// on the way through.
func (s *ConfirmationStore) ListPending(ctx context.Context) ([]*domain.PendingConfirmation, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list confirmations: %w", err)
	}

	pending := make([]*domain.PendingConfirmation, 0, len(ids))
	for _, id := range ids {
		c, err := s.Get(ctx, id)
		if err != nil {
			if err == domain.ErrConfirmationNotFound {
				s.client.ZRem(ctx, s.indexKey(), id)
				continue
			}
			return nil, err
		}
		if c.State == domain.ConfirmationPending {
			pending = append(pending, c)
		}
	}
	return pending, nil
}
