package session

import (
	"fmt"
	"strings"

	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/domain"
)

// summaryEntries is how many recent conversations feed the memory block.
const summaryEntries = 5

// MemorySummary renders the most recent conversations into a compact
// short-term memory block. The classifier receives it as context so that
// follow-up questions resolve against what the user already asked; an empty
// or nil session yields an empty string.
func MemorySummary(sc *domain.SessionContext) string {
	if sc == nil || len(sc.Conversations) == 0 {
		return ""
	}

	recent := sc.Conversations
	if len(recent) > summaryEntries {
		recent = recent[len(recent)-summaryEntries:]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Recent session activity (%d interactions total):\n", len(sc.Conversations))
	for i, c := range recent {
		summary := "no analysis"
		if c.Insights != nil && c.Insights.Analysis != "" {
			if runes := []rune(c.Insights.Analysis); len(runes) > 100 {
				summary = string(runes[:100])
			} else {
				summary = c.Insights.Analysis
			}
		}
		fmt.Fprintf(&b, "[%d] task=%s summary=%s\n", i+1, c.HandlerID, summary)
	}
	return b.String()
}
