package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/catalog"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/domain"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	b := catalog.NewBuilder()
	noop := func(ctx context.Context, in map[string]any) (map[string]any, error) {
		return map[string]any{}, nil
	}
	b.MustRegister(catalog.Descriptor{
		ID: "OPS-030", Name: "Evacuation Plan", Domain: catalog.DomainOperations,
		Tags:    []string{"화재", "대피", "절차", "evacuation", "safety"},
		Execute: noop,
	})
	b.MustRegister(catalog.Descriptor{
		ID: "FIN-031", Name: "Budget Structure", Domain: catalog.DomainFinance,
		Tags:    []string{"예산", "budget", "구조", "비용"},
		Execute: noop,
	})
	b.MustRegister(catalog.Descriptor{
		ID: "STR-001", Name: "Goal Setting", Domain: catalog.DomainStrategy,
		Tags:    []string{"목표", "goal", "kpi", "지표"},
		Execute: noop,
	})
	return b.Build()
}

func TestScorer_KeywordOverlap(t *testing.T) {
	s := NewScorer(testCatalog(t))

	candidates, degraded := s.Score(context.Background(), "화재 대피 절차 알려줘")
	require.False(t, degraded)
	require.NotEmpty(t, candidates)

	top := candidates[0]
	assert.Equal(t, "OPS-030", top.HandlerID)
	// 3 of 5 tags match: 화재, 대피, 절차.
	assert.InDelta(t, 0.6, top.Score, 1e-9)
	assert.ElementsMatch(t, []string{"화재", "대피", "절차"}, top.MatchedTags)
	assert.Equal(t, domain.SourceKeyword, top.Source)
}

func TestScorer_NoMatch(t *testing.T) {
	s := NewScorer(testCatalog(t))
	candidates, _ := s.Score(context.Background(), "오늘 날씨 어때")
	assert.Empty(t, candidates)
}

func TestScorer_Deterministic(t *testing.T) {
	s := NewScorer(testCatalog(t))
	first, _ := s.Score(context.Background(), "이벤트 예산 구조")
	for i := 0; i < 5; i++ {
		again, _ := s.Score(context.Background(), "이벤트 예산 구조")
		assert.Equal(t, first, again)
	}
}

func TestScorer_TieBreakByHandlerID(t *testing.T) {
	b := catalog.NewBuilder()
	noop := func(ctx context.Context, in map[string]any) (map[string]any, error) { return nil, nil }
	b.MustRegister(catalog.Descriptor{ID: "B-002", Tags: []string{"budget"}, Execute: noop})
	b.MustRegister(catalog.Descriptor{ID: "A-001", Tags: []string{"budget"}, Execute: noop})
	s := NewScorer(b.Build())

	candidates, _ := s.Score(context.Background(), "budget")
	require.Len(t, candidates, 2)
	assert.Equal(t, "A-001", candidates[0].HandlerID, "equal scores break by lexical handler ID")
}

type stubClassifier struct {
	scores    map[string]float64
	err       error
	calls     int
	lastQuery string
}

func (c *stubClassifier) Classify(ctx context.Context, query string, candidates []domain.RoutingCandidate) (map[string]float64, error) {
	c.calls++
	c.lastQuery = query
	if c.err != nil {
		return nil, c.err
	}
	return c.scores, nil
}

func TestScorer_ClassifierMerge(t *testing.T) {
	cls := &stubClassifier{scores: map[string]float64{"OPS-030": 1.0}}
	s := NewScorer(testCatalog(t), WithClassifier(cls))

	candidates, degraded := s.Score(context.Background(), "화재 대피 절차")
	require.False(t, degraded)
	require.NotEmpty(t, candidates)
	assert.Equal(t, 1, cls.calls)

	top := candidates[0]
	assert.Equal(t, "OPS-030", top.HandlerID)
	// merged = 0.4*0.6 + 0.6*1.0
	assert.InDelta(t, 0.84, top.Score, 1e-9)
	assert.Equal(t, domain.SourceClassifier, top.Source)
}

func TestScorer_MemoryReachesClassifier(t *testing.T) {
	cls := &stubClassifier{scores: map[string]float64{"OPS-030": 1.0}}
	s := NewScorer(testCatalog(t), WithClassifier(cls))

	memory := "Recent session activity (1 interactions total):\n[1] task=OPS-030 summary=no analysis"
	_, degraded := s.ScoreWithMemory(context.Background(), "화재 대피 절차", memory)
	require.False(t, degraded)

	assert.Contains(t, cls.lastQuery, memory)
	assert.Contains(t, cls.lastQuery, "화재 대피 절차")
}

func TestScorer_ClassifierFailureDegrades(t *testing.T) {
	cls := &stubClassifier{err: errors.New("model unavailable")}
	s := NewScorer(testCatalog(t), WithClassifier(cls))

	candidates, degraded := s.Score(context.Background(), "화재 대피 절차")
	require.True(t, degraded)
	require.NotEmpty(t, candidates)

	top := candidates[0]
	// keyword score 0.6 capped by the 0.8 degradation factor.
	assert.InDelta(t, 0.48, top.Score, 1e-9)
	assert.Equal(t, domain.SourceKeyword, top.Source)
}

func TestScorer_ClassifierSkippedWhenNoCandidates(t *testing.T) {
	cls := &stubClassifier{scores: map[string]float64{}}
	s := NewScorer(testCatalog(t), WithClassifier(cls))

	candidates, _ := s.Score(context.Background(), "전혀 상관 없는 질문")
	assert.Empty(t, candidates)
	assert.Zero(t, cls.calls, "classifier should not be called without deterministic candidates")
}
