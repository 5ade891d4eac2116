package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/epicstage/Event-agent-backend-kr-sub004/internal/logging"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/domain"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/ports"
)

// Config tunes the session manager. Zero values fall back to the defaults.
type Config struct {
	// MaxEntries bounds the conversation history per session.
	MaxEntries int
	// Detector flags frustration patterns on append.
	Detector Detector
	// WriteRetries is how many times a failed store write is retried before
	// the error surfaces. Lost session state is a UX degradation, not a
	// correctness hazard, so the bound stays small.
	WriteRetries int
	// LockTTL bounds how long a distributed lock may be held.
	LockTTL time.Duration
}

// DefaultConfig returns the documented session policy.
func DefaultConfig() Config {
	return Config{
		MaxEntries:   domain.MaxConversations,
		Detector:     DefaultDetector(),
		WriteRetries: 2,
		LockTTL:      30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxEntries <= 0 {
		c.MaxEntries = domain.MaxConversations
	}
	if c.Detector.Window <= 0 {
		c.Detector.Window = DefaultDetector().Window
	}
	if c.Detector.Threshold <= 0 {
		c.Detector.Threshold = DefaultDetector().Threshold
	}
	if c.WriteRetries < 0 {
		c.WriteRetries = 0
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 30 * time.Second
	}
	return c
}

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates session access, ensuring two concurrent requests for
// the same session never silently lose an append. It uses reference counting
// to garbage collect unused locks.
type Manager struct {
	store ports.SessionStore
	cfg   Config

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active per-session locks

	locker ports.DistributedLocker // Optional cross-replica locker
	logger *slog.Logger
	now    func() time.Time
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) { m.locker = locker }
}

// WithLogger configures a logger for deferred errors.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a session Manager over the given persistence store.
func NewManager(store ports.SessionStore, cfg Config, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		cfg:    cfg.withDefaults(),
		locks:  make(map[string]*lockEntry),
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry at zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// withLock executes fn while holding the per-session lock.
func (m *Manager) withLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.cfg.LockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Get retrieves the session context. A store failure on read is treated as
// "no session" (cold start) per the resource model; the error is logged,
// never propagated as anything other than not-found.
func (m *Manager) Get(ctx context.Context, sessionID string) (*domain.SessionContext, error) {
	sc, err := m.store.Load(ctx, sessionID)
	if err != nil {
		if err != domain.ErrSessionNotFound {
			m.logger.Warn("session read degraded, treating as cold start", "session_id", sessionID, "err", err)
		}
		return nil, domain.ErrSessionNotFound
	}
	return sc, nil
}

// Append records a completed interaction. It creates the context lazily,
// runs the frustration detector against the history before the new entry,
// pushes the entry, truncates to the most recent MaxEntries, learns the
// topic, and persists the whole context as one unit.
func (m *Manager) Append(ctx context.Context, sessionID string, entry domain.ConversationEntry) (*domain.SessionContext, error) {
	var result *domain.SessionContext
	err := m.withLock(ctx, sessionID, func(ctx context.Context) error {
		now := m.now().UTC()
		sc, err := m.store.Load(ctx, sessionID)
		if err != nil {
			if err != domain.ErrSessionNotFound {
				m.logger.Warn("session read degraded, starting fresh context", "session_id", sessionID, "err", err)
			}
			sc = domain.NewSessionContext(sessionID, now)
		}

		if entry.Timestamp.IsZero() {
			entry.Timestamp = now
		}

		// Detection runs over the prior history plus the incoming entry,
		// before the entry is appended.
		m.cfg.Detector.Apply(sc, entry, now)

		sc.Conversations = append(sc.Conversations, entry)
		if n := len(sc.Conversations); n > m.cfg.MaxEntries {
			sc.Conversations = sc.Conversations[n-m.cfg.MaxEntries:]
		}
		sc.LearnTopic(entry.HandlerID)
		sc.UpdatedAt = now

		if err := m.save(ctx, sc); err != nil {
			return err
		}
		result = sc
		return nil
	})
	return result, err
}

// UpdatePreferences merges a partial preference update into the session.
// Returns domain.ErrSessionNotFound when the session does not exist.
func (m *Manager) UpdatePreferences(ctx context.Context, sessionID string, patch domain.PreferencePatch) (*domain.SessionContext, error) {
	var result *domain.SessionContext
	err := m.withLock(ctx, sessionID, func(ctx context.Context) error {
		sc, err := m.store.Load(ctx, sessionID)
		if err != nil {
			return err
		}
		sc.ApplyPreferencePatch(patch)
		sc.UpdatedAt = m.now().UTC()
		if err := m.save(ctx, sc); err != nil {
			return err
		}
		result = sc
		return nil
	})
	return result, err
}

// Frustration classifies the session's aggregate frustration on read.
// Absent sessions read as none with no signals.
func (m *Manager) Frustration(ctx context.Context, sessionID string) (domain.FrustrationLevel, []domain.FrustrationSignal) {
	sc, err := m.Get(ctx, sessionID)
	if err != nil {
		return domain.FrustrationNone, nil
	}
	return domain.FrustrationLevelOf(sc), sc.FrustrationSignals
}

// Delete removes the session from the store.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.withLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Delete(ctx, sessionID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// save persists with a small bounded retry. Session logging is best-effort:
// the caller decides whether a persistent failure degrades or fails the request.
func (m *Manager) save(ctx context.Context, sc *domain.SessionContext) error {
	var err error
	for attempt := 0; attempt <= m.cfg.WriteRetries; attempt++ {
		if err = m.store.Save(ctx, sc); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			break
		}
	}
	return &domain.DependencyDegradedError{Dependency: "session_store", Err: err}
}
