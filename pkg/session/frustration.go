package session

import (
	"time"

	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/domain"
)

// Detector flags repeated-question, negative-feedback and abandoned-task
// patterns. It is a pure function over (existing context, incoming entry,
// now); the manager applies it before persisting the entry that triggered it.
type Detector struct {
	// Window is the trailing period in which same-handler asks count as repeats.
	Window time.Duration
	// Threshold is how many asks for the same handler inside the window,
	// including the incoming one, constitute a repetition event.
	Threshold int
}

// DefaultDetector returns the documented starting policy: two asks for the
// same handler within ten minutes.
func DefaultDetector() Detector {
	return Detector{Window: 10 * time.Minute, Threshold: 2}
}

// Apply records frustration signals derived from the incoming entry onto the
// session context. Signal counts only ever grow until the session expires.
func (d Detector) Apply(sc *domain.SessionContext, entry domain.ConversationEntry, now time.Time) {
	if d.isRepetition(sc, entry, now) {
		sc.BumpSignal(domain.FrustrationRepeatedQuestion, entry.HandlerID, now)
	}
	if entry.UserSatisfied != nil && !*entry.UserSatisfied {
		sc.BumpSignal(domain.FrustrationNegativeFeedback, entry.HandlerID, now)
	}
	if abandoned := d.abandonedHandler(sc, entry, now); abandoned != "" {
		sc.BumpSignal(domain.FrustrationAbandonedTask, abandoned, now)
	}
}

// abandonedHandler reports the handler of the previous turn when the user
// switched to a different task inside the window without ever saying whether
// the previous answer helped. A switch after the window is a natural topic
// change, not an abandonment.
func (d Detector) abandonedHandler(sc *domain.SessionContext, entry domain.ConversationEntry, now time.Time) string {
	if entry.HandlerID == "" || len(sc.Conversations) == 0 {
		return ""
	}
	prev := sc.Conversations[len(sc.Conversations)-1]
	if prev.HandlerID == "" || prev.HandlerID == entry.HandlerID {
		return ""
	}
	if prev.UserSatisfied != nil {
		return ""
	}
	if !prev.Timestamp.After(now.Add(-d.Window)) {
		return ""
	}
	return prev.HandlerID
}

func (d Detector) isRepetition(sc *domain.SessionContext, entry domain.ConversationEntry, now time.Time) bool {
	if entry.HandlerID == "" {
		return false
	}
	cutoff := now.Add(-d.Window)
	prior := 0
	for _, c := range sc.Conversations {
		if c.HandlerID == entry.HandlerID && c.Timestamp.After(cutoff) {
			prior++
		}
	}
	return prior+1 >= d.Threshold
}
