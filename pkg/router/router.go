package router

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/epicstage/Event-agent-backend-kr-sub004/internal/logging"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/domain"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/session"
)

// Config holds the routing policy knobs. Defaults follow the documented
// starting policy; all values are configurable rather than hard-coded.
type Config struct {
	// ConfidenceThreshold is the minimum top score required to select a handler.
	ConfidenceThreshold float64
	// Margin is how far the top score must exceed the runner-up.
	Margin float64
	// RecencyBonus is added to candidates the session touched before. It must
	// stay below Margin so continuity can never flip a clearly-better candidate.
	RecencyBonus float64
	// MaxAlternatives bounds the alternatives carried by an ambiguous decision.
	MaxAlternatives int
}

// DefaultConfig returns the default routing policy.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.55,
		Margin:              0.1,
		RecencyBonus:        0.05,
		MaxAlternatives:     3,
	}
}

// Validate rejects configurations that break routing guarantees.
func (c Config) Validate() error {
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold %v outside (0,1]", c.ConfidenceThreshold)
	}
	if c.Margin < 0 || c.Margin > 1 {
		return fmt.Errorf("margin %v outside [0,1]", c.Margin)
	}
	if c.RecencyBonus < 0 || c.RecencyBonus >= c.Margin {
		return fmt.Errorf("recency bonus %v must be in [0, margin)", c.RecencyBonus)
	}
	if c.MaxAlternatives < 1 {
		return fmt.Errorf("max alternatives %d must be at least 1", c.MaxAlternatives)
	}
	return nil
}

// Router applies confidence-threshold and tie-break policy on top of the
// scorer and returns a single decision, or an ambiguous one carrying
// alternatives so the caller can ask a clarifying question rather than guess.
type Router struct {
	scorer *Scorer
	cfg    Config
	logger *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLogger configures a logger for routing decisions.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) { r.logger = logger }
}

// New creates a Router. An invalid config is replaced by the defaults.
func New(scorer *Scorer, cfg Config, opts ...Option) *Router {
	if err := cfg.Validate(); err != nil {
		cfg = DefaultConfig()
	}
	r := &Router{scorer: scorer, cfg: cfg, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route scores the query and applies selection policy. The session context
// may be nil (cold start); when present, pastTopics bias ranking with a
// small recency bonus that rewards continuity without overriding genuine
// intent signals.
func (r *Router) Route(ctx context.Context, query string, sess *domain.SessionContext) *domain.RoutingDecision {
	candidates, degraded := r.scorer.ScoreWithMemory(ctx, query, session.MemorySummary(sess))

	if len(candidates) == 0 {
		return &domain.RoutingDecision{
			Confidence:     0,
			DecisionReason: domain.ReasonNoMatch,
		}
	}

	if sess != nil {
		bonusApplied := false
		for i := range candidates {
			if sess.KnowsTopic(candidates[i].HandlerID) {
				candidates[i].Score = clamp01(candidates[i].Score + r.cfg.RecencyBonus)
				bonusApplied = true
			}
		}
		if bonusApplied {
			sortCandidates(candidates)
		}
	}

	top := candidates[0]
	runnerUp := 0.0
	if len(candidates) > 1 {
		runnerUp = candidates[1].Score
	}

	alternatives := candidates
	if len(alternatives) > r.cfg.MaxAlternatives {
		alternatives = alternatives[:r.cfg.MaxAlternatives]
	}

	switch {
	case top.Score < r.cfg.ConfidenceThreshold:
		r.logger.Debug("routing ambiguous", "reason", domain.ReasonLowConfidence, "top", top.HandlerID, "score", top.Score, "degraded", degraded)
		return &domain.RoutingDecision{
			Confidence:     top.Score,
			Alternatives:   alternatives,
			DecisionReason: domain.ReasonLowConfidence,
			Degraded:       degraded,
		}
	case top.Score-runnerUp < r.cfg.Margin && len(candidates) > 1:
		r.logger.Debug("routing ambiguous", "reason", domain.ReasonNarrowMargin, "top", top.HandlerID, "runner_up", candidates[1].HandlerID)
		return &domain.RoutingDecision{
			Confidence:     top.Score,
			Alternatives:   alternatives,
			DecisionReason: domain.ReasonNarrowMargin,
			Degraded:       degraded,
		}
	default:
		r.logger.Debug("routing selected", "handler", top.HandlerID, "score", top.Score, "degraded", degraded)
		return &domain.RoutingDecision{
			ChosenHandlerID: top.HandlerID,
			Confidence:      top.Score,
			Alternatives:    alternatives,
			DecisionReason:  domain.ReasonHighConfidence,
			Degraded:        degraded,
		}
	}
}
