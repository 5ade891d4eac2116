package session_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/adapters/memory"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/domain"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/session"
)

func entry(handlerID string, ts time.Time) domain.ConversationEntry {
	return domain.ConversationEntry{
		HandlerID: handlerID,
		Input:     map[string]any{"q": "test"},
		Output:    map[string]any{"ok": true},
		Timestamp: ts,
	}
}

func TestManager_AppendCreatesLazily(t *testing.T) {
	m := session.NewManager(memory.NewSessionStore(), session.DefaultConfig())
	ctx := context.Background()

	_, err := m.Get(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	sc, err := m.Append(ctx, "s1", entry("FIN-031", time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "s1", sc.SessionID)
	assert.Len(t, sc.Conversations, 1)
	assert.Equal(t, domain.DetailStandard, sc.Preferences.DetailLevel)
	assert.Equal(t, []string{"FIN-031"}, sc.Preferences.PastTopics)
}

func TestManager_BoundedHistory(t *testing.T) {
	m := session.NewManager(memory.NewSessionStore(), session.DefaultConfig())
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 25; i++ {
		// Distinct handlers and spread timestamps keep the frustration
		// detector quiet and make recency checkable.
		sc, err := m.Append(ctx, "s1", entry(fmt.Sprintf("H-%03d", i), base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
		assert.LessOrEqual(t, len(sc.Conversations), domain.MaxConversations,
			"history must stay bounded after every append")
	}

	sc, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, sc.Conversations, domain.MaxConversations)
	// Retained entries are exactly the most recent by timestamp.
	assert.Equal(t, "H-015", sc.Conversations[0].HandlerID)
	assert.Equal(t, "H-024", sc.Conversations[len(sc.Conversations)-1].HandlerID)
}

func TestManager_TopicsDeduplicatedAndBounded(t *testing.T) {
	m := session.NewManager(memory.NewSessionStore(), session.DefaultConfig())
	ctx := context.Background()

	base := time.Now().Add(-2 * time.Hour)
	for i := 0; i < 30; i++ {
		_, err := m.Append(ctx, "s1", entry(fmt.Sprintf("T-%03d", i%25), base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}

	sc, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	topics := sc.Preferences.PastTopics
	assert.LessOrEqual(t, len(topics), domain.MaxPastTopics)

	seen := make(map[string]bool)
	for _, topic := range topics {
		assert.False(t, seen[topic], "topic %s duplicated", topic)
		seen[topic] = true
	}
}

func TestManager_FrustrationScenario(t *testing.T) {
	// Same handler asked 3 times within 5 minutes: a signal with count 1
	// exists after the 2nd call, count 2 after the 3rd, level reads low.
	now := time.Now()
	m := session.NewManager(memory.NewSessionStore(), session.DefaultConfig(),
		session.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	_, err := m.Append(ctx, "s1", entry("FIN-031", now))
	require.NoError(t, err)
	level, signals := m.Frustration(ctx, "s1")
	assert.Equal(t, domain.FrustrationNone, level)
	assert.Empty(t, signals)

	_, err = m.Append(ctx, "s1", entry("FIN-031", now.Add(2*time.Minute)))
	require.NoError(t, err)
	_, signals = m.Frustration(ctx, "s1")
	require.Len(t, signals, 1)
	assert.Equal(t, domain.FrustrationRepeatedQuestion, signals[0].Kind)
	assert.Equal(t, 1, signals[0].Count)

	_, err = m.Append(ctx, "s1", entry("FIN-031", now.Add(5*time.Minute)))
	require.NoError(t, err)
	level, signals = m.Frustration(ctx, "s1")
	require.Len(t, signals, 1)
	assert.Equal(t, 2, signals[0].Count)
	assert.Equal(t, domain.FrustrationLow, level)
}

func TestManager_RepeatOutsideWindowIgnored(t *testing.T) {
	m := session.NewManager(memory.NewSessionStore(), session.DefaultConfig())
	ctx := context.Background()

	old := time.Now().Add(-time.Hour)
	_, err := m.Append(ctx, "s1", entry("FIN-031", old))
	require.NoError(t, err)

	_, err = m.Append(ctx, "s1", entry("FIN-031", time.Now()))
	require.NoError(t, err)

	_, signals := m.Frustration(ctx, "s1")
	assert.Empty(t, signals, "asks an hour apart are not repetition")
}

func TestManager_NegativeFeedbackSignal(t *testing.T) {
	m := session.NewManager(memory.NewSessionStore(), session.DefaultConfig())
	ctx := context.Background()

	unhappy := false
	e := entry("STR-001", time.Now())
	e.UserSatisfied = &unhappy

	_, err := m.Append(ctx, "s1", e)
	require.NoError(t, err)

	_, signals := m.Frustration(ctx, "s1")
	require.Len(t, signals, 1)
	assert.Equal(t, domain.FrustrationNegativeFeedback, signals[0].Kind)
}

func TestManager_UpdatePreferences(t *testing.T) {
	m := session.NewManager(memory.NewSessionStore(), session.DefaultConfig())
	ctx := context.Background()

	_, err := m.UpdatePreferences(ctx, "missing", domain.PreferencePatch{})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = m.Append(ctx, "s1", entry("FIN-031", time.Now()))
	require.NoError(t, err)

	lang := "en"
	detail := domain.DetailBrief
	sc, err := m.UpdatePreferences(ctx, "s1", domain.PreferencePatch{
		Language:    &lang,
		DetailLevel: &detail,
	})
	require.NoError(t, err)
	assert.Equal(t, "en", sc.Preferences.Language)
	assert.Equal(t, domain.DetailBrief, sc.Preferences.DetailLevel)
	// Untouched fields survive the patch.
	assert.Equal(t, []string{"FIN-031"}, sc.Preferences.PastTopics)
}

func TestManager_ConcurrentAppendsSameSession(t *testing.T) {
	m := session.NewManager(memory.NewSessionStore(), session.DefaultConfig())
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	base := time.Now().Add(-time.Hour)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.Append(ctx, "s1", entry(fmt.Sprintf("C-%03d", i), base.Add(time.Duration(i)*time.Minute)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	sc, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, sc.Conversations, writers, "no append may be silently lost")
	assert.Len(t, sc.Preferences.PastTopics, writers)
}

// failingStore fails Save a fixed number of times before succeeding.
type failingStore struct {
	*memory.SessionStore
	failures int
	saves    int
}

func (s *failingStore) Save(ctx context.Context, sc *domain.SessionContext) error {
	s.saves++
	if s.saves <= s.failures {
		return errors.New("store unavailable")
	}
	return s.SessionStore.Save(ctx, sc)
}

func TestManager_SaveRetriesBounded(t *testing.T) {
	cfg := session.DefaultConfig()
	cfg.WriteRetries = 2

	t.Run("recovers within budget", func(t *testing.T) {
		store := &failingStore{SessionStore: memory.NewSessionStore(), failures: 2}
		m := session.NewManager(store, cfg)
		_, err := m.Append(context.Background(), "s1", entry("FIN-031", time.Now()))
		assert.NoError(t, err)
		assert.Equal(t, 3, store.saves)
	})

	t.Run("surfaces degraded error after budget", func(t *testing.T) {
		store := &failingStore{SessionStore: memory.NewSessionStore(), failures: 10}
		m := session.NewManager(store, cfg)
		_, err := m.Append(context.Background(), "s1", entry("FIN-031", time.Now()))
		var degraded *domain.DependencyDegradedError
		require.ErrorAs(t, err, &degraded)
		assert.Equal(t, "session_store", degraded.Dependency)
		assert.Equal(t, 3, store.saves, "retries must stay bounded")
	})
}

func TestMemorySummary(t *testing.T) {
	assert.Empty(t, session.MemorySummary(nil))

	sc := domain.NewSessionContext("s1", time.Now())
	for i := 0; i < 7; i++ {
		e := entry(fmt.Sprintf("H-%d", i), time.Now())
		e.Insights = &domain.Insights{Analysis: fmt.Sprintf("analysis %d", i)}
		sc.AppendConversation(e)
	}

	got := session.MemorySummary(sc)
	assert.Contains(t, got, "7 interactions")
	assert.Contains(t, got, "H-6")
	assert.NotContains(t, got, "H-1", "only the most recent entries are summarized")
}
