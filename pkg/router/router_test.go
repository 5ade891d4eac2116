package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/catalog"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/domain"
)

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.RecencyBonus = 0.2 // >= margin would let continuity flip candidates
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.ConfidenceThreshold = 0
	assert.Error(t, bad.Validate())
}

func TestRouter_SelectsUnambiguousMatch(t *testing.T) {
	r := New(NewScorer(testCatalog(t)), DefaultConfig())

	// All three tags of the query match OPS-030 and nothing else scores.
	decision := r.Route(context.Background(), "화재 대피 절차 evacuation safety", nil)
	assert.Equal(t, "OPS-030", decision.ChosenHandlerID)
	assert.Equal(t, domain.ReasonHighConfidence, decision.DecisionReason)
	assert.GreaterOrEqual(t, decision.Confidence, 0.55)
}

func TestRouter_Deterministic(t *testing.T) {
	r := New(NewScorer(testCatalog(t)), DefaultConfig())
	query := "화재 대피 절차 evacuation safety"

	first := r.Route(context.Background(), query, nil)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, r.Route(context.Background(), query, nil))
	}
}

func TestRouter_DegradedFlagSurfaces(t *testing.T) {
	cls := &stubClassifier{err: errors.New("model unavailable")}
	r := New(NewScorer(testCatalog(t), WithClassifier(cls)), DefaultConfig())

	decision := r.Route(context.Background(), "화재 대피 절차 evacuation safety", nil)
	assert.True(t, decision.Degraded)
	// 5/5 tags capped by 0.8 still clears the threshold.
	assert.Equal(t, "OPS-030", decision.ChosenHandlerID)
	assert.InDelta(t, 0.8, decision.Confidence, 1e-9)
}

func TestRouter_NoMatch(t *testing.T) {
	r := New(NewScorer(testCatalog(t)), DefaultConfig())

	decision := r.Route(context.Background(), "주말에 비 올까?", nil)
	assert.True(t, decision.Ambiguous())
	assert.Zero(t, decision.Confidence)
	assert.Equal(t, domain.ReasonNoMatch, decision.DecisionReason)
	assert.Empty(t, decision.Alternatives)
}

func TestRouter_LowConfidenceIsAmbiguous(t *testing.T) {
	r := New(NewScorer(testCatalog(t)), DefaultConfig())

	// Only one of four FIN-031 tags matches: score 0.25, below threshold.
	decision := r.Route(context.Background(), "예산 문서 보여줘", nil)
	assert.True(t, decision.Ambiguous())
	assert.Equal(t, domain.ReasonLowConfidence, decision.DecisionReason)
	assert.NotEmpty(t, decision.Alternatives)
}

func TestRouter_NarrowMarginIsAmbiguous(t *testing.T) {
	b := catalog.NewBuilder()
	noop := func(ctx context.Context, in map[string]any) (map[string]any, error) { return nil, nil }
	b.MustRegister(catalog.Descriptor{ID: "A-001", Tags: []string{"sponsor", "contract"}, Execute: noop})
	b.MustRegister(catalog.Descriptor{ID: "B-001", Tags: []string{"sponsor", "budget"}, Execute: noop})
	r := New(NewScorer(b.Build()), DefaultConfig())

	// Both candidates score 1.0: above threshold, but inside the margin.
	decision := r.Route(context.Background(), "sponsor contract budget", nil)
	assert.True(t, decision.Ambiguous())
	assert.Equal(t, domain.ReasonNarrowMargin, decision.DecisionReason)
	require.Len(t, decision.Alternatives, 2)
	assert.Equal(t, "A-001", decision.Alternatives[0].HandlerID)
}

func TestRouter_RecencyBonusBiasesButDoesNotFlip(t *testing.T) {
	b := catalog.NewBuilder()
	noop := func(ctx context.Context, in map[string]any) (map[string]any, error) { return nil, nil }
	// STR-001 clearly wins the query; FIN-031 scores lower.
	b.MustRegister(catalog.Descriptor{ID: "STR-001", Tags: []string{"목표", "kpi"}, Execute: noop})
	b.MustRegister(catalog.Descriptor{ID: "FIN-031", Tags: []string{"목표", "예산", "비용", "계획"}, Execute: noop})
	r := New(NewScorer(b.Build()), DefaultConfig())

	sess := domain.NewSessionContext("s1", time.Now())
	sess.LearnTopic("FIN-031")

	decision := r.Route(context.Background(), "목표 kpi 설정", sess)
	assert.Equal(t, "STR-001", decision.ChosenHandlerID,
		"recency bonus must not flip a clearly-better candidate")
}

func TestRouter_AlternativesBounded(t *testing.T) {
	b := catalog.NewBuilder()
	noop := func(ctx context.Context, in map[string]any) (map[string]any, error) { return nil, nil }
	for _, id := range []string{"A-1", "A-2", "A-3", "A-4", "A-5"} {
		b.MustRegister(catalog.Descriptor{ID: id, Tags: []string{"sponsor"}, Execute: noop})
	}
	cfg := DefaultConfig()
	cfg.MaxAlternatives = 3
	r := New(NewScorer(b.Build()), cfg)

	decision := r.Route(context.Background(), "sponsor", nil)
	assert.True(t, decision.Ambiguous())
	assert.Len(t, decision.Alternatives, 3)
}
