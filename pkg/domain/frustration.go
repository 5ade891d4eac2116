package domain

import "time"

// FrustrationKind classifies the pattern that produced a frustration signal.
type FrustrationKind string

const (
	FrustrationRepeatedQuestion FrustrationKind = "repeated_question"
	FrustrationNegativeFeedback FrustrationKind = "negative_feedback"
	FrustrationAbandonedTask    FrustrationKind = "abandoned_task"
)

// FrustrationSignal tracks one (kind, handler) pattern within a session.
// Count is monotonically non-decreasing until the session expires.
type FrustrationSignal struct {
	Kind         FrustrationKind `json:"kind"`
	HandlerID    string          `json:"handler_id"`
	Count        int             `json:"count"`
	LastOccurred time.Time       `json:"last_occurred"`
}

// FrustrationLevel is derived on read from the sum of all signal counts.
// It may alter tone or trigger a human handoff but never blocks routing.
type FrustrationLevel string

const (
	FrustrationNone   FrustrationLevel = "none"
	FrustrationLow    FrustrationLevel = "low"
	FrustrationMedium FrustrationLevel = "medium"
	FrustrationHigh   FrustrationLevel = "high"
)

// BumpSignal increments the signal for (kind, handlerID), creating it on
// first occurrence.
func (s *SessionContext) BumpSignal(kind FrustrationKind, handlerID string, now time.Time) {
	for i := range s.FrustrationSignals {
		sig := &s.FrustrationSignals[i]
		if sig.Kind == kind && sig.HandlerID == handlerID {
			sig.Count++
			sig.LastOccurred = now
			return
		}
	}
	s.FrustrationSignals = append(s.FrustrationSignals, FrustrationSignal{
		Kind:         kind,
		HandlerID:    handlerID,
		Count:        1,
		LastOccurred: now,
	})
}

// FrustrationLevelOf classifies the aggregate signal count of a session.
// A nil session reads as none.
func FrustrationLevelOf(s *SessionContext) FrustrationLevel {
	if s == nil {
		return FrustrationNone
	}
	total := 0
	for _, sig := range s.FrustrationSignals {
		total += sig.Count
	}
	switch {
	case total >= 5:
		return FrustrationHigh
	case total >= 3:
		return FrustrationMedium
	case total >= 1:
		return FrustrationLow
	default:
		return FrustrationNone
	}
}
