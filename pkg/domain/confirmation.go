package domain

import (
	"fmt"
	"time"
)

// ConfirmationState is the state machine for a parked high-risk action:
// pending -> approved | denied | expired. Terminal states never transition.
type ConfirmationState string

const (
	ConfirmationPending  ConfirmationState = "pending"
	ConfirmationApproved ConfirmationState = "approved"
	ConfirmationDenied   ConfirmationState = "denied"
	ConfirmationExpired  ConfirmationState = "expired"
)

// RiskLevel grades how consequential a gated action is.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ProposedAction is the routed handler invocation a confirmation protects.
// RiskReasons lists the gating rules that fired, in rule order.
type ProposedAction struct {
	HandlerID   string         `json:"handler_id"`
	Input       map[string]any `json:"input"`
	RiskReasons []string       `json:"risk_reasons"`
	RiskLevel   RiskLevel      `json:"risk_level"`
}

// PendingConfirmation is the durable record of a gated action awaiting an
// out-of-band decision. A confirmation in state pending has never been
// executed.
type PendingConfirmation struct {
	ID             string            `json:"id"`
	SessionID      string            `json:"session_id,omitempty"`
	ProposedAction ProposedAction    `json:"proposed_action"`
	State          ConfirmationState `json:"state"`
	CreatedAt      time.Time         `json:"created_at"`
	ExpiresAt      time.Time         `json:"expires_at"`
	DecidedAt      *time.Time        `json:"decided_at,omitempty"`
	DecidedBy      string            `json:"decided_by,omitempty"`
}

// Clone returns a deep copy so stores and callers never share mutable state.
func (c *PendingConfirmation) Clone() *PendingConfirmation {
	if c == nil {
		return nil
	}
	out := *c
	out.ProposedAction.Input = cloneMap(c.ProposedAction.Input)
	out.ProposedAction.RiskReasons = append([]string(nil), c.ProposedAction.RiskReasons...)
	if c.DecidedAt != nil {
		t := *c.DecidedAt
		out.DecidedAt = &t
	}
	return &out
}

// Terminal reports whether the confirmation has reached a final state.
func (c *PendingConfirmation) Terminal() bool {
	return c.State != ConfirmationPending
}

// Expire marks the confirmation expired when its TTL has elapsed.
// It is a no-op on terminal states and reports whether a transition happened.
func (c *PendingConfirmation) Expire(now time.Time) bool {
	if c.Terminal() || now.Before(c.ExpiresAt) {
		return false
	}
	c.State = ConfirmationExpired
	return true
}

// Decide transitions a pending confirmation to approved or denied.
// Deciding a terminal confirmation is rejected; callers treat that as an
// idempotent no-op and report the existing terminal state.
func (c *PendingConfirmation) Decide(state ConfirmationState, decidedBy string, now time.Time) error {
	if state != ConfirmationApproved && state != ConfirmationDenied {
		return fmt.Errorf("invalid confirmation transition to %q", state)
	}
	if c.Terminal() {
		return fmt.Errorf("confirmation %s already %s", c.ID, c.State)
	}
	c.State = state
	c.DecidedAt = &now
	c.DecidedBy = decidedBy
	return nil
}
