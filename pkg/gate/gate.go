// Package gate implements the confirmation checkpoint for high-risk actions.
//
// Before a handler runs, the gate inspects its risk declaration and input.
// When any rule fires the action is parked as a durable PendingConfirmation
// and only an explicit out-of-band approval lets it proceed. Expiry is lazy:
// a pending record past its deadline flips to expired the next time anyone
// reads it.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/catalog"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/domain"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/ports"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/schema"
)

// DefaultMonetaryCeiling is the amount in KRW above which a monetary input
// field triggers the gate.
const DefaultMonetaryCeiling = 10_000_000

// DefaultConfirmationTTL bounds how long a parked action stays approvable.
const DefaultConfirmationTTL = time.Hour

// defaultLockTTL bounds how long a decision may hold the distributed lock.
const defaultLockTTL = 30 * time.Second

// Rule reason strings, recorded on the confirmation in rule order.
const (
	ReasonMonetary     = "monetary_over_ceiling"
	ReasonIrreversible = "irreversible"
	ReasonCrossDomain  = "cross_domain"
	ReasonPolicyChange = "policy_change"
)

// defaultMonetaryFields is scanned when a handler declares no MonetaryFields.
var defaultMonetaryFields = []string{"amount", "budget", "cost", "price", "value", "total_budget"}

// Gate evaluates proposed actions against the risk rules and manages the
// lifecycle of the confirmations it creates.
type Gate struct {
	store   ports.ConfirmationStore
	ceiling float64
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger

	// Decisions for one confirmation ID are serialized so the
	// pending-to-terminal transition happens exactly once.
	mu      sync.Mutex
	locks   map[string]*lockEntry
	locker  ports.DistributedLocker
	lockTTL time.Duration
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Option configures a Gate.
type Option func(*Gate)

// WithCeiling overrides the monetary ceiling.
func WithCeiling(ceiling float64) Option {
	return func(g *Gate) {
		g.ceiling = ceiling
	}
}

// WithTTL overrides how long confirmations stay pending.
func WithTTL(ttl time.Duration) Option {
	return func(g *Gate) {
		g.ttl = ttl
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

// WithClock overrides the time source, used by expiry tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		g.now = now
	}
}

// WithLocker serializes decisions across processes sharing the store. Without
// it decisions are still serialized within the process.
func WithLocker(l ports.DistributedLocker) Option {
	return func(g *Gate) {
		g.locker = l
	}
}

// New creates a Gate persisting confirmations in store.
func New(store ports.ConfirmationStore, opts ...Option) *Gate {
	g := &Gate{
		store:   store,
		ceiling: DefaultMonetaryCeiling,
		ttl:     DefaultConfirmationTTL,
		now:     time.Now,
		logger:  slog.Default(),
		locks:   make(map[string]*lockEntry),
		lockTTL: defaultLockTTL,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Evaluate checks an action against the risk rules. A nil confirmation with a
// nil error means the action is auto-allowed. Otherwise the action is parked
// and the pending record is returned.
func (g *Gate) Evaluate(ctx context.Context, d *catalog.Descriptor, input map[string]any, sessionID string) (*domain.PendingConfirmation, error) {
	reasons := g.reasons(d, input)
	if len(reasons) == 0 {
		return nil, nil
	}

	now := g.now().UTC()
	c := &domain.PendingConfirmation{
		ID:        "conf_" + uuid.NewString(),
		SessionID: sessionID,
		ProposedAction: domain.ProposedAction{
			HandlerID:   d.ID,
			Input:       input,
			RiskReasons: reasons,
			RiskLevel:   riskLevel(reasons),
		},
		State:     domain.ConfirmationPending,
		CreatedAt: now,
		ExpiresAt: now.Add(g.ttl),
	}
	if err := g.store.Put(ctx, c); err != nil {
		return nil, fmt.Errorf("persisting confirmation: %w", err)
	}

	g.logger.Info("action gated",
		"confirmation_id", c.ID,
		"handler_id", d.ID,
		"session_id", sessionID,
		"risk_level", c.ProposedAction.RiskLevel,
		"reasons", reasons,
	)
	return c, nil
}

// reasons applies every rule in fixed order. Evaluation is fail-closed: a
// monetary field that cannot be parsed counts as over the ceiling.
func (g *Gate) reasons(d *catalog.Descriptor, input map[string]any) []string {
	var reasons []string

	fields := d.Risk.MonetaryFields
	if len(fields) == 0 {
		fields = defaultMonetaryFields
	}
	for _, field := range fields {
		raw, ok := input[field]
		if !ok || raw == nil {
			continue
		}
		amount, parsed := schema.AsNumber(raw)
		if !parsed || amount > g.ceiling {
			reasons = append(reasons, ReasonMonetary)
			break
		}
	}

	if d.Risk.Irreversible {
		reasons = append(reasons, ReasonIrreversible)
	}
	if len(d.Risk.AffectedDomains) > 1 {
		reasons = append(reasons, ReasonCrossDomain)
	}
	if d.Risk.PolicyChange {
		reasons = append(reasons, ReasonPolicyChange)
	}
	return reasons
}

func riskLevel(reasons []string) domain.RiskLevel {
	if len(reasons) >= 3 {
		return domain.RiskCritical
	}
	for _, r := range reasons {
		if r == ReasonPolicyChange || r == ReasonIrreversible {
			return domain.RiskHigh
		}
	}
	if len(reasons) == 2 {
		return domain.RiskHigh
	}
	return domain.RiskMedium
}

// Approve transitions a pending confirmation to approved. The second return
// reports whether this call performed the transition; deciding a confirmation
// that already reached a terminal state is an idempotent no-op returning the
// stored record with transitioned false. Only the caller that transitioned
// the record may run the parked action.
func (g *Gate) Approve(ctx context.Context, id, decidedBy string) (*domain.PendingConfirmation, bool, error) {
	return g.decide(ctx, id, domain.ConfirmationApproved, decidedBy)
}

// Deny transitions a pending confirmation to denied, with the same
// idempotency and transition semantics as Approve.
func (g *Gate) Deny(ctx context.Context, id, decidedBy string) (*domain.PendingConfirmation, bool, error) {
	return g.decide(ctx, id, domain.ConfirmationDenied, decidedBy)
}

// decide performs the pending-to-terminal transition under a per-ID lock so
// two racing approvers cannot both observe the record as pending. With a
// distributed locker configured the same holds across processes.
func (g *Gate) decide(ctx context.Context, id string, state domain.ConfirmationState, decidedBy string) (*domain.PendingConfirmation, bool, error) {
	entry := g.acquire(id)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		g.release(id)
	}()

	if g.locker != nil {
		unlock, err := g.locker.Lock(ctx, id, g.lockTTL)
		if err != nil {
			return nil, false, fmt.Errorf("failed to acquire decision lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				g.logger.Warn("failed to release decision lock (will expire via TTL)",
					"confirmation_id", id, "err", err)
			}
		}()
	}

	c, err := g.Resolve(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if c.Terminal() {
		g.logger.Info("decision on settled confirmation ignored",
			"confirmation_id", id, "state", c.State, "requested", state)
		return c, false, nil
	}
	if err := c.Decide(state, decidedBy, g.now().UTC()); err != nil {
		return nil, false, err
	}
	if err := g.store.Put(ctx, c); err != nil {
		return nil, false, fmt.Errorf("persisting decision: %w", err)
	}
	g.logger.Info("confirmation decided",
		"confirmation_id", id, "state", state, "decided_by", decidedBy)
	return c, true, nil
}

// acquire gets or creates a lock entry and increments its reference count.
func (g *Gate) acquire(id string) *lockEntry {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, exists := g.locks[id]
	if !exists {
		entry = &lockEntry{}
		g.locks[id] = entry
	}
	entry.refs++
	return entry
}

func (g *Gate) release(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, exists := g.locks[id]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(g.locks, id)
	}
}

// Resolve loads a confirmation, flipping it to expired first when its
// deadline has passed.
func (g *Gate) Resolve(ctx context.Context, id string) (*domain.PendingConfirmation, error) {
	c, err := g.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Expire(g.now().UTC()) {
		if err := g.store.Put(ctx, c); err != nil {
			return nil, fmt.Errorf("persisting expiry: %w", err)
		}
		g.logger.Info("confirmation expired", "confirmation_id", id)
	}
	return c, nil
}

// ListPending returns confirmations still awaiting a decision, oldest first.
// Records past their deadline are expired on the way through and excluded.
func (g *Gate) ListPending(ctx context.Context) ([]*domain.PendingConfirmation, error) {
	all, err := g.store.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	now := g.now().UTC()
	live := make([]*domain.PendingConfirmation, 0, len(all))
	for _, c := range all {
		if c.Expire(now) {
			if err := g.store.Put(ctx, c); err != nil {
				return nil, fmt.Errorf("persisting expiry: %w", err)
			}
			continue
		}
		live = append(live, c)
	}
	return live, nil
}

// Sweep expires every overdue pending confirmation and reports how many it
// settled. Intended for a periodic background pass.
func (g *Gate) Sweep(ctx context.Context) (int, error) {
	all, err := g.store.ListPending(ctx)
	if err != nil {
		return 0, err
	}
	now := g.now().UTC()
	expired := 0
	for _, c := range all {
		if !c.Expire(now) {
			continue
		}
		if err := g.store.Put(ctx, c); err != nil {
			return expired, fmt.Errorf("persisting expiry: %w", err)
		}
		expired++
	}
	if expired > 0 {
		g.logger.Info("expired overdue confirmations", "count", expired)
	}
	return expired, nil
}
