// Package executor runs validated handler invocations through the full
// control pipeline: catalog lookup, input validation, the confirmation gate,
// the handler itself, output contract checking and best-effort session
// recording.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/catalog"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/domain"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/gate"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/schema"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/session"
)

// Status reports how an execution request ended.
type Status string

const (
	// StatusCompleted means the handler ran and its output passed the contract.
	StatusCompleted Status = "completed"
	// StatusPendingApproval means the gate parked the action; nothing ran.
	StatusPendingApproval Status = "pending_approval"
)

// Outcome is the result of one execution request.
type Outcome struct {
	Status       Status                      `json:"status"`
	HandlerID    string                      `json:"handler_id"`
	SessionID    string                      `json:"session_id,omitempty"`
	Output       map[string]any              `json:"output,omitempty"`
	Confirmation *domain.PendingConfirmation `json:"confirmation,omitempty"`

	// Degraded carries a non-fatal dependency failure that occurred after the
	// handler succeeded, such as a lost session write. The execution itself
	// still counts as completed.
	Degraded error `json:"-"`
}

// Executor is the execution facade over a frozen catalog.
type Executor struct {
	catalog  *catalog.Catalog
	gate     *gate.Gate
	sessions *session.Manager
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithClock overrides the time source, used in tests.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		e.now = now
	}
}

// New creates an Executor. The gate and session manager are optional; a nil
// gate auto-allows everything and a nil manager skips session recording.
func New(cat *catalog.Catalog, g *gate.Gate, sessions *session.Manager, opts ...Option) *Executor {
	e := &Executor{
		catalog:  cat,
		gate:     g,
		sessions: sessions,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the handler identified by handlerID against input.
//
// Validation failures are surfaced as typed errors before anything runs.
// When the confirmation gate fires, the outcome carries the pending record
// and the handler is not invoked. Session recording failures never fail a
// completed execution; they surface on Outcome.Degraded.
func (e *Executor) Execute(ctx context.Context, handlerID string, input map[string]any, sessionID string) (*Outcome, error) {
	d, ok := e.catalog.Get(handlerID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrHandlerNotFound, handlerID)
	}

	if err := schema.Validate(d.Input, input); err != nil {
		return nil, &domain.InvalidInputError{HandlerID: handlerID, Err: err}
	}

	if e.gate != nil {
		c, err := e.gate.Evaluate(ctx, d, input, sessionID)
		if err != nil {
			return nil, err
		}
		if c != nil {
			return &Outcome{
				Status:       StatusPendingApproval,
				HandlerID:    handlerID,
				SessionID:    sessionID,
				Confirmation: c,
			}, nil
		}
	}

	return e.run(ctx, d, input, sessionID)
}

// ExecuteConfirmed runs the action behind an approved confirmation, skipping
// the gate. The confirmation must be in the approved state; every other state
// is rejected with an explanatory error.
func (e *Executor) ExecuteConfirmed(ctx context.Context, confirmationID string) (*Outcome, error) {
	if e.gate == nil {
		return nil, fmt.Errorf("no confirmation gate configured")
	}
	c, err := e.gate.Resolve(ctx, confirmationID)
	if err != nil {
		return nil, err
	}
	switch c.State {
	case domain.ConfirmationApproved:
	case domain.ConfirmationPending:
		return nil, fmt.Errorf("confirmation %s is still pending approval", c.ID)
	default:
		return nil, fmt.Errorf("confirmation %s was %s and cannot run", c.ID, c.State)
	}

	d, ok := e.catalog.Get(c.ProposedAction.HandlerID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrHandlerNotFound, c.ProposedAction.HandlerID)
	}
	return e.run(ctx, d, c.ProposedAction.Input, c.SessionID)
}

func (e *Executor) run(ctx context.Context, d *catalog.Descriptor, input map[string]any, sessionID string) (*Outcome, error) {
	start := e.now()
	output, err := d.Execute(ctx, input)
	if err != nil {
		e.logger.Error("handler failed", "handler_id", d.ID, "error", err)
		return nil, fmt.Errorf("handler %s: %w", d.ID, err)
	}

	if err := schema.Validate(d.Output, output); err != nil {
		return nil, &domain.ContractViolationError{HandlerID: d.ID, Err: err}
	}

	e.logger.Info("handler completed",
		"handler_id", d.ID,
		"session_id", sessionID,
		"duration", e.now().Sub(start),
	)

	outcome := &Outcome{
		Status:    StatusCompleted,
		HandlerID: d.ID,
		SessionID: sessionID,
		Output:    output,
	}

	if e.sessions != nil && sessionID != "" {
		entry := domain.ConversationEntry{
			HandlerID: d.ID,
			Input:     input,
			Output:    output,
			Insights:  extractInsights(output),
			Timestamp: e.now().UTC(),
		}
		if _, err := e.sessions.Append(ctx, sessionID, entry); err != nil {
			e.logger.Warn("session write lost after successful execution",
				"session_id", sessionID, "handler_id", d.ID, "error", err)
			outcome.Degraded = err
		}
	}
	return outcome, nil
}

// extractInsights decodes the optional insights block a handler may attach
// to its output. Malformed blocks are dropped rather than failing the run.
func extractInsights(output map[string]any) *domain.Insights {
	raw, ok := output["insights"]
	if !ok {
		return nil
	}
	var in domain.Insights
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  &in,
	})
	if err != nil || dec.Decode(raw) != nil {
		return nil
	}
	if in.Analysis == "" && len(in.Recommendations) == 0 {
		return nil
	}
	return &in
}
