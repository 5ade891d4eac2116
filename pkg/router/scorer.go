// Package router turns free-text queries into routing decisions against the
// handler catalog. Scoring is deterministic keyword/tag overlap, optionally
// blended with an external intent classifier; the classifier is only ever a
// scoring input, so routing stays explainable when it is degraded or absent.
package router

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/epicstage/Event-agent-backend-kr-sub004/internal/logging"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/catalog"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/domain"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/ports"
)

// Scoring weights and degradation factor. The 0.4/0.6 split keeps the
// deterministic pass influential enough that routing stays explainable even
// when the classifier disagrees.
const (
	keywordWeight      = 0.4
	classifierWeight   = 0.6
	degradedScoreCap   = 0.8
	defaultTopK        = 5
	defaultClassifierT = 2 * time.Second
)

// Scorer ranks catalog handlers for a query.
type Scorer struct {
	catalog           *catalog.Catalog
	classifier        ports.IntentClassifier
	classifierTimeout time.Duration
	topK              int
	logger            *slog.Logger
}

// ScorerOption configures a Scorer.
type ScorerOption func(*Scorer)

// WithClassifier enables the external classifier pass.
func WithClassifier(c ports.IntentClassifier) ScorerOption {
	return func(s *Scorer) { s.classifier = c }
}

// WithClassifierTimeout bounds how long a classifier call may block.
func WithClassifierTimeout(d time.Duration) ScorerOption {
	return func(s *Scorer) { s.classifierTimeout = d }
}

// WithTopK sets how many deterministic candidates are sent to the classifier
// as context.
func WithTopK(k int) ScorerOption {
	return func(s *Scorer) { s.topK = k }
}

// WithScorerLogger configures a logger for degradation events.
func WithScorerLogger(logger *slog.Logger) ScorerOption {
	return func(s *Scorer) { s.logger = logger }
}

// NewScorer creates a scorer over an immutable catalog.
func NewScorer(cat *catalog.Catalog, opts ...ScorerOption) *Scorer {
	s := &Scorer{
		catalog:           cat,
		classifierTimeout: defaultClassifierT,
		topK:              defaultTopK,
		logger:            logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score produces a ranked candidate list for the query. It never fails:
// classifier errors degrade to deterministic-only scoring with a reduced
// confidence cap. The second return reports whether degradation happened.
func (s *Scorer) Score(ctx context.Context, query string) ([]domain.RoutingCandidate, bool) {
	return s.ScoreWithMemory(ctx, query, "")
}

// ScoreWithMemory is Score with a short-term memory block prepended to the
// classifier prompt, so follow-up questions resolve against what the user
// already asked. The deterministic pass sees only the raw query.
func (s *Scorer) ScoreWithMemory(ctx context.Context, query, memory string) ([]domain.RoutingCandidate, bool) {
	candidates := s.keywordPass(query)
	if len(candidates) == 0 || s.classifier == nil {
		sortCandidates(candidates)
		return candidates, false
	}

	sortCandidates(candidates)
	top := candidates
	if len(top) > s.topK {
		top = top[:s.topK]
	}

	classifierQuery := query
	if memory != "" {
		classifierQuery = memory + "\n\n" + query
	}

	cctx, cancel := context.WithTimeout(ctx, s.classifierTimeout)
	defer cancel()

	scores, err := s.classifier.Classify(cctx, classifierQuery, top)
	if err != nil {
		s.logger.Warn("intent classifier degraded, falling back to keyword scoring", "err", err)
		for i := range candidates {
			candidates[i].Score *= degradedScoreCap
			candidates[i].Source = domain.SourceKeyword
		}
		sortCandidates(candidates)
		return candidates, true
	}

	for i := range candidates {
		if cls, ok := scores[candidates[i].HandlerID]; ok {
			candidates[i].Score = keywordWeight*candidates[i].Score + classifierWeight*clamp01(cls)
			candidates[i].Source = domain.SourceClassifier
		}
	}
	sortCandidates(candidates)
	return candidates, false
}

// keywordPass computes tag overlap scores for every handler.
// A tag matches when all of its tokens appear in the query token set, or
// when the normalized tag occurs as a substring of the normalized query
// (which covers agglutinated Korean phrases).
func (s *Scorer) keywordPass(query string) []domain.RoutingCandidate {
	normQuery := normalize(query)
	queryTokens := tokenSet(normQuery)
	if len(queryTokens) == 0 && normQuery == "" {
		return nil
	}

	var out []domain.RoutingCandidate
	for _, desc := range s.catalog.Descriptors() {
		var matched []string
		for _, tag := range desc.Tags {
			if tagMatches(tag, normQuery, queryTokens) {
				matched = append(matched, tag)
			}
		}
		if len(matched) == 0 {
			continue
		}
		out = append(out, domain.RoutingCandidate{
			HandlerID:   desc.ID,
			Score:       float64(len(matched)) / float64(max(1, len(desc.Tags))),
			MatchedTags: matched,
			Source:      domain.SourceKeyword,
		})
	}
	return out
}

func tagMatches(tag, normQuery string, queryTokens map[string]bool) bool {
	tagTokens := strings.Fields(tag)
	if len(tagTokens) > 0 {
		all := true
		for _, tok := range tagTokens {
			if !queryTokens[tok] {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return strings.Contains(normQuery, tag)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func tokenSet(normalized string) map[string]bool {
	set := make(map[string]bool)
	fields := strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, f := range fields {
		set[f] = true
	}
	return set
}

// sortCandidates orders descending by score; ties break by matched tag
// count, then handler ID lexical order for reproducibility.
func sortCandidates(cs []domain.RoutingCandidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Score != cs[j].Score {
			return cs[i].Score > cs[j].Score
		}
		if len(cs[i].MatchedTags) != len(cs[j].MatchedTags) {
			return len(cs[i].MatchedTags) > len(cs[j].MatchedTags)
		}
		return cs[i].HandlerID < cs[j].HandlerID
	})
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
