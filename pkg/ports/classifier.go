package ports

import (
	"context"

	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/domain"
)

// IntentClassifier is an optional external model that scores how well a
// query matches each candidate handler. It is strictly a scoring input:
// the router's core logic stays deterministic and must work without it.
//
// Implementations receive the query plus the top deterministic candidates
// as context and return a confidence in [0,1] per handler ID. Handlers
// absent from the result keep their deterministic score. A timeout or error
// degrades the request to deterministic-only scoring; it never fails it.
type IntentClassifier interface {
	Classify(ctx context.Context, query string, candidates []domain.RoutingCandidate) (map[string]float64, error)
}
