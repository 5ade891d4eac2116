// Package eventagent is the control layer that sits between a conversational
// surface and a large catalog of event-management task handlers. It routes
// free-form questions to the right handler, tracks per-session context,
// gates high-risk actions behind human confirmation and executes handlers
// under their declared input and output contracts.
package eventagent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/epicstage/Event-agent-backend-kr-sub004/internal/logging"
	"github.com/epicstage/Event-agent-backend-kr-sub004/internal/metrics"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/catalog"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/domain"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/executor"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/gate"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/ports"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/router"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/session"
)

// DefaultRequestTimeout bounds one end-to-end request through the agent.
const DefaultRequestTimeout = 30 * time.Second

// Agent is the high-level entry point wiring the router, session manager,
// confirmation gate and executor over one frozen catalog.
type Agent struct {
	catalog  *catalog.Catalog
	router   *router.Router
	sessions *session.Manager
	gate     *gate.Gate
	exec     *executor.Executor
	metrics  *metrics.Metrics
	logger   *slog.Logger
	timeout  time.Duration

	classifier        ports.IntentClassifier
	classifierTimeout time.Duration
	locker            ports.DistributedLocker
	routerCfg         router.Config
	sessionCfg        session.Config
	gateOpts          []gate.Option
}

// Option configures the Agent.
type Option func(*Agent)

// WithLogger sets the structured logger shared by all components.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

// WithClassifier plugs in the semantic intent classifier. Without one the
// router runs on keyword scoring alone.
func WithClassifier(c ports.IntentClassifier) Option {
	return func(a *Agent) {
		a.classifier = c
	}
}

// WithClassifierTimeout bounds one classifier call.
func WithClassifierTimeout(d time.Duration) Option {
	return func(a *Agent) {
		a.classifierTimeout = d
	}
}

// WithRouterConfig overrides the routing thresholds.
func WithRouterConfig(cfg router.Config) Option {
	return func(a *Agent) {
		a.routerCfg = cfg
	}
}

// WithSessionConfig overrides the session manager configuration.
func WithSessionConfig(cfg session.Config) Option {
	return func(a *Agent) {
		a.sessionCfg = cfg
	}
}

// WithLocker serializes session writes across replicas.
func WithLocker(l ports.DistributedLocker) Option {
	return func(a *Agent) {
		a.locker = l
	}
}

// WithGateOptions forwards options to the confirmation gate.
func WithGateOptions(opts ...gate.Option) Option {
	return func(a *Agent) {
		a.gateOpts = append(a.gateOpts, opts...)
	}
}

// WithMetrics attaches prometheus instruments.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Agent) {
		a.metrics = m
	}
}

// WithRequestTimeout bounds each request when the caller's context carries
// no deadline of its own. Zero disables the bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(a *Agent) {
		a.timeout = d
	}
}

// New wires an Agent over the catalog and the two stores.
func New(cat *catalog.Catalog, sessionStore ports.SessionStore, confirmationStore ports.ConfirmationStore, opts ...Option) (*Agent, error) {
	if cat == nil || cat.Len() == 0 {
		return nil, fmt.Errorf("catalog must contain at least one handler")
	}

	a := &Agent{
		catalog:    cat,
		timeout:    DefaultRequestTimeout,
		routerCfg:  router.DefaultConfig(),
		sessionCfg: session.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logging.NewNop()
	}
	if err := a.routerCfg.Validate(); err != nil {
		return nil, fmt.Errorf("router config: %w", err)
	}

	scorerOpts := []router.ScorerOption{router.WithScorerLogger(a.logger)}
	if a.classifier != nil {
		scorerOpts = append(scorerOpts, router.WithClassifier(a.classifier))
	}
	if a.classifierTimeout > 0 {
		scorerOpts = append(scorerOpts, router.WithClassifierTimeout(a.classifierTimeout))
	}
	a.router = router.New(router.NewScorer(cat, scorerOpts...), a.routerCfg, router.WithLogger(a.logger))

	sessionOpts := []session.Option{session.WithLogger(a.logger)}
	if a.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(a.locker))
	}
	a.sessions = session.NewManager(sessionStore, a.sessionCfg, sessionOpts...)

	gateOpts := append([]gate.Option{gate.WithLogger(a.logger)}, a.gateOpts...)
	a.gate = gate.New(confirmationStore, gateOpts...)

	a.exec = executor.New(cat, a.gate, a.sessions, executor.WithLogger(a.logger))
	return a, nil
}

// AskRequest is one conversational turn: a free-form query plus the
// structured input to run the chosen handler with.
type AskRequest struct {
	SessionID string
	Query     string
	Input     map[string]any
}

// AskResult is the agent's answer to one turn. Outcome is nil when the
// routing decision is ambiguous; the caller should present the decision's
// alternatives as a clarifying question.
type AskResult struct {
	SessionID string                  `json:"session_id"`
	Decision  *domain.RoutingDecision `json:"decision"`
	Outcome   *executor.Outcome       `json:"outcome,omitempty"`
}

// Ask routes the query and, when routing is unambiguous, executes the chosen
// handler. A missing session ID gets one generated so the turn is still
// remembered.
func (a *Agent) Ask(ctx context.Context, req AskRequest) (*AskResult, error) {
	ctx, cancel := a.bound(ctx)
	defer cancel()
	defer a.observe("ask", time.Now())

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = domain.NewSessionID()
	}

	decision, err := a.route(ctx, req.Query, sessionID)
	if err != nil {
		return nil, err
	}
	result := &AskResult{SessionID: sessionID, Decision: decision}
	if decision.Ambiguous() {
		return result, nil
	}

	outcome, err := a.exec.Execute(ctx, decision.ChosenHandlerID, req.Input, sessionID)
	if err != nil {
		a.countExecution("error")
		return nil, err
	}
	a.countExecution(string(outcome.Status))
	result.Outcome = outcome
	return result, nil
}

// Route scores the query against the catalog without executing anything.
func (a *Agent) Route(ctx context.Context, query, sessionID string) (*domain.RoutingDecision, error) {
	ctx, cancel := a.bound(ctx)
	defer cancel()
	defer a.observe("route", time.Now())
	return a.route(ctx, query, sessionID)
}

func (a *Agent) route(ctx context.Context, query, sessionID string) (*domain.RoutingDecision, error) {
	if query == "" {
		return nil, fmt.Errorf("query must not be empty")
	}

	// Session context is advisory; a cold session routes without it.
	var sess *domain.SessionContext
	if sessionID != "" {
		if sc, err := a.sessions.Get(ctx, sessionID); err == nil {
			sess = sc
		}
	}

	decision := a.router.Route(ctx, query, sess)
	if a.metrics != nil {
		a.metrics.RoutingDecisions.WithLabelValues(decision.DecisionReason).Inc()
		if decision.Degraded {
			a.metrics.ClassifierDegradations.Inc()
		}
	}
	return decision, nil
}

// ExecuteQuery routes the query and runs the selected handler. Unlike Ask,
// which returns an ambiguous decision for the caller to re-prompt on, an
// execution request needs exactly one handler: an ambiguous decision is
// surfaced as domain.ErrAmbiguous naming the alternatives.
func (a *Agent) ExecuteQuery(ctx context.Context, query string, input map[string]any, sessionID string) (*executor.Outcome, error) {
	ctx, cancel := a.bound(ctx)
	defer cancel()

	decision, err := a.route(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	if decision.Ambiguous() {
		ids := make([]string, 0, len(decision.Alternatives))
		for _, alt := range decision.Alternatives {
			ids = append(ids, alt.HandlerID)
		}
		return nil, fmt.Errorf("%w: %s (alternatives: %s)",
			domain.ErrAmbiguous, decision.DecisionReason, strings.Join(ids, ", "))
	}
	return a.Execute(ctx, decision.ChosenHandlerID, input, sessionID)
}

// Execute runs a specific handler through the full pipeline, bypassing routing.
func (a *Agent) Execute(ctx context.Context, handlerID string, input map[string]any, sessionID string) (*executor.Outcome, error) {
	ctx, cancel := a.bound(ctx)
	defer cancel()
	defer a.observe("execute", time.Now())

	outcome, err := a.exec.Execute(ctx, handlerID, input, sessionID)
	if err != nil {
		a.countExecution("error")
		return nil, err
	}
	a.countExecution(string(outcome.Status))
	if a.metrics != nil {
		if outcome.Status == executor.StatusPendingApproval {
			a.metrics.GateVerdicts.WithLabelValues("gated").Inc()
		} else {
			a.metrics.GateVerdicts.WithLabelValues("allowed").Inc()
		}
	}
	return outcome, nil
}

// Approve marks a pending confirmation approved and runs the parked action.
// Approving an already-settled confirmation reports its state without
// re-running anything.
func (a *Agent) Approve(ctx context.Context, confirmationID, decidedBy string) (*domain.PendingConfirmation, *executor.Outcome, error) {
	ctx, cancel := a.bound(ctx)
	defer cancel()
	defer a.observe("approve", time.Now())

	// A confirmation runs at most once: only the call that performed the
	// pending-to-approved transition runs the action, everyone else gets the
	// settled record back.
	c, transitioned, err := a.gate.Approve(ctx, confirmationID, decidedBy)
	if err != nil {
		return nil, nil, err
	}
	if !transitioned || c.State != domain.ConfirmationApproved {
		return c, nil, nil
	}

	outcome, err := a.exec.ExecuteConfirmed(ctx, confirmationID)
	if err != nil {
		return c, nil, err
	}
	a.countExecution(string(outcome.Status))
	return c, outcome, nil
}

// Deny marks a pending confirmation denied. The parked action never runs.
func (a *Agent) Deny(ctx context.Context, confirmationID, decidedBy string) (*domain.PendingConfirmation, error) {
	ctx, cancel := a.bound(ctx)
	defer cancel()
	defer a.observe("deny", time.Now())
	c, _, err := a.gate.Deny(ctx, confirmationID, decidedBy)
	return c, err
}

// Confirmation loads one confirmation, expiring it first when overdue.
func (a *Agent) Confirmation(ctx context.Context, confirmationID string) (*domain.PendingConfirmation, error) {
	ctx, cancel := a.bound(ctx)
	defer cancel()
	return a.gate.Resolve(ctx, confirmationID)
}

// PendingConfirmations lists confirmations awaiting a decision, oldest first.
func (a *Agent) PendingConfirmations(ctx context.Context) ([]*domain.PendingConfirmation, error) {
	ctx, cancel := a.bound(ctx)
	defer cancel()
	return a.gate.ListPending(ctx)
}

// Session loads the conversational context for a session ID.
func (a *Agent) Session(ctx context.Context, sessionID string) (*domain.SessionContext, error) {
	ctx, cancel := a.bound(ctx)
	defer cancel()
	return a.sessions.Get(ctx, sessionID)
}

// UpdatePreferences merges a partial preference update into the session.
func (a *Agent) UpdatePreferences(ctx context.Context, sessionID string, patch domain.PreferencePatch) (*domain.SessionContext, error) {
	ctx, cancel := a.bound(ctx)
	defer cancel()
	return a.sessions.UpdatePreferences(ctx, sessionID, patch)
}

// Frustration reports the session's derived frustration level and signals.
func (a *Agent) Frustration(ctx context.Context, sessionID string) (domain.FrustrationLevel, []domain.FrustrationSignal) {
	ctx, cancel := a.bound(ctx)
	defer cancel()
	return a.sessions.Frustration(ctx, sessionID)
}

// DeleteSession removes a session's stored context.
func (a *Agent) DeleteSession(ctx context.Context, sessionID string) error {
	ctx, cancel := a.bound(ctx)
	defer cancel()
	return a.sessions.Delete(ctx, sessionID)
}

// Catalog exposes the frozen handler table for listings and introspection.
func (a *Agent) Catalog() *catalog.Catalog {
	return a.catalog
}

// bound applies the agent-level deadline unless the caller brought one.
func (a *Agent) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.timeout)
}

func (a *Agent) observe(operation string, start time.Time) {
	if a.metrics == nil {
		return
	}
	a.metrics.RequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (a *Agent) countExecution(status string) {
	if a.metrics == nil {
		return
	}
	a.metrics.Executions.WithLabelValues(status).Inc()
}
