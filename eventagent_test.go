package eventagent_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	eventagent "github.com/epicstage/Event-agent-backend-kr-sub004"
	"github.com/epicstage/Event-agent-backend-kr-sub004/internal/logging"
	"github.com/epicstage/Event-agent-backend-kr-sub004/internal/metrics"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/adapters/memory"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/catalog"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/domain"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/executor"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/schema"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/tasks"

	"github.com/prometheus/client_golang/prometheus"
)

func newAgent(t *testing.T, opts ...eventagent.Option) *eventagent.Agent {
	t.Helper()
	b := catalog.NewBuilder()
	tasks.Register(b)

	opts = append([]eventagent.Option{eventagent.WithLogger(logging.NewNop())}, opts...)
	agent, err := eventagent.New(b.Build(), memory.NewSessionStore(), memory.NewConfirmationStore(), opts...)
	require.NoError(t, err)
	return agent
}

func TestNew_RequiresHandlers(t *testing.T) {
	_, err := eventagent.New(catalog.NewBuilder().Build(), memory.NewSessionStore(), memory.NewConfirmationStore())
	assert.Error(t, err)
}

func TestAsk_EndToEnd(t *testing.T) {
	agent := newAgent(t)
	ctx := context.Background()

	result, err := agent.Ask(ctx, eventagent.AskRequest{
		SessionID: "s1",
		Query:     "화재 대피 절차 알려줘",
		Input: map[string]any{
			"venue_name": "코엑스 그랜드볼룸",
			"attendees":  float64(800),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "OPS-030", result.Decision.ChosenHandlerID)
	assert.Equal(t, domain.ReasonHighConfidence, result.Decision.DecisionReason)
	assert.GreaterOrEqual(t, result.Decision.Confidence, 0.55)

	require.NotNil(t, result.Outcome)
	assert.Equal(t, executor.StatusCompleted, result.Outcome.Status)

	// The turn was remembered and the topic learned.
	sc, err := agent.Session(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, sc.Conversations, 1)
	assert.Equal(t, []string{"OPS-030"}, sc.Preferences.PastTopics)
}

func TestAsk_GeneratesSessionID(t *testing.T) {
	agent := newAgent(t)

	result, err := agent.Ask(context.Background(), eventagent.AskRequest{
		Query: "화재 대피 절차 알려줘",
		Input: map[string]any{"venue_name": "벡스코", "attendees": float64(300)},
	})
	require.NoError(t, err)
	assert.Regexp(t, `^sess_\d+_\d{6}$`, result.SessionID)

	sc, err := agent.Session(context.Background(), result.SessionID)
	require.NoError(t, err)
	assert.Len(t, sc.Conversations, 1)
}

func TestAsk_AmbiguousStopsBeforeExecution(t *testing.T) {
	agent := newAgent(t)

	result, err := agent.Ask(context.Background(), eventagent.AskRequest{
		SessionID: "s1",
		Query:     "행사 준비 어떻게 해",
	})
	require.NoError(t, err)
	assert.True(t, result.Decision.Ambiguous())
	assert.Nil(t, result.Outcome, "nothing runs on an ambiguous decision")

	// No session was materialized for a turn that executed nothing.
	_, err = agent.Session(context.Background(), "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestExecute_GatedApproveRunsOnce(t *testing.T) {
	agent := newAgent(t)
	ctx := context.Background()
	input := map[string]any{
		"event_id":     "EVT-1",
		"total_budget": float64(50_000_000),
	}

	outcome, err := agent.Execute(ctx, "FIN-031", input, "s1")
	require.NoError(t, err)
	require.Equal(t, executor.StatusPendingApproval, outcome.Status)
	confID := outcome.Confirmation.ID

	// The handler has not run, so nothing is in the session yet.
	_, err = agent.Session(ctx, "s1")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)

	c, ran, err := agent.Approve(ctx, confID, "manager-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ConfirmationApproved, c.State)
	require.NotNil(t, ran)
	assert.Equal(t, executor.StatusCompleted, ran.Status)

	sc, err := agent.Session(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, sc.Conversations, 1)

	// Re-approving reports the settled state and does not run again.
	c, ran, err = agent.Approve(ctx, confID, "manager-2")
	require.NoError(t, err)
	assert.Equal(t, domain.ConfirmationApproved, c.State)
	assert.Equal(t, "manager-1", c.DecidedBy)
	assert.Nil(t, ran)

	sc, err = agent.Session(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, sc.Conversations, 1, "approved action must execute exactly once")
}

func TestExecuteQuery(t *testing.T) {
	agent := newAgent(t)
	ctx := context.Background()

	outcome, err := agent.ExecuteQuery(ctx, "화재 대피 절차 알려줘", map[string]any{
		"venue_name": "킨텍스 제1전시장",
		"attendees":  float64(120),
	}, "s1")
	require.NoError(t, err)
	assert.Equal(t, executor.StatusCompleted, outcome.Status)
	assert.Equal(t, "OPS-030", outcome.HandlerID)

	// An execution request cannot proceed on an ambiguous decision.
	_, err = agent.ExecuteQuery(ctx, "행사 준비 어떻게 해", nil, "s1")
	require.ErrorIs(t, err, domain.ErrAmbiguous)
	assert.Contains(t, err.Error(), "alternatives")
}

func TestApprove_ConcurrentApproversRunOnce(t *testing.T) {
	var runs atomic.Int32
	b := catalog.NewBuilder()
	b.MustRegister(catalog.Descriptor{
		ID:     "SITE-900",
		Name:   "Release room block",
		Domain: catalog.DomainSite,
		Tags:   []string{"release"},
		Input:  schema.Schema{"rooms": schema.Int()},
		Output: schema.Schema{"released": schema.Bool()},
		Risk:   catalog.Risk{Irreversible: true},
		Execute: func(ctx context.Context, in map[string]any) (map[string]any, error) {
			runs.Add(1)
			return map[string]any{"released": true}, nil
		},
	})
	agent, err := eventagent.New(
		b.Build(),
		memory.NewSessionStore(),
		memory.NewConfirmationStore(),
		eventagent.WithLogger(logging.NewNop()),
	)
	require.NoError(t, err)

	ctx := context.Background()
	out, err := agent.Execute(ctx, "SITE-900", map[string]any{"rooms": float64(20)}, "s1")
	require.NoError(t, err)
	require.Equal(t, executor.StatusPendingApproval, out.Status)
	confID := out.Confirmation.ID

	const approvers = 8
	outcomes := make([]*executor.Outcome, approvers)
	states := make([]domain.ConfirmationState, approvers)
	var wg sync.WaitGroup
	for i := 0; i < approvers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, ran, err := agent.Approve(ctx, confID, fmt.Sprintf("manager-%d", i))
			if err != nil {
				t.Errorf("approver %d: %v", i, err)
				return
			}
			states[i] = c.State
			outcomes[i] = ran
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, runs.Load(), "an approved action must run at most once even under concurrent approvals")

	executed := 0
	for i := 0; i < approvers; i++ {
		assert.Equal(t, domain.ConfirmationApproved, states[i])
		if outcomes[i] != nil {
			executed++
		}
	}
	assert.Equal(t, 1, executed, "only the approver that performed the transition gets an outcome")
}

func TestDeny_NeverRuns(t *testing.T) {
	agent := newAgent(t)
	ctx := context.Background()

	outcome, err := agent.Execute(ctx, "SITE-037", map[string]any{
		"hotel_name":       "롯데호텔",
		"rooms_to_release": float64(30),
	}, "s1")
	require.NoError(t, err)
	require.Equal(t, executor.StatusPendingApproval, outcome.Status)

	c, err := agent.Deny(ctx, outcome.Confirmation.ID, "manager-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ConfirmationDenied, c.State)

	_, err = agent.Session(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestFrustration_RepeatedQuestion(t *testing.T) {
	agent := newAgent(t)
	ctx := context.Background()
	input := map[string]any{"venue_name": "코엑스", "attendees": float64(500)}

	for i := 0; i < 2; i++ {
		_, err := agent.Ask(ctx, eventagent.AskRequest{
			SessionID: "s1",
			Query:     "화재 대피 절차 알려줘",
			Input:     input,
		})
		require.NoError(t, err)
	}

	level, signals := agent.Frustration(ctx, "s1")
	assert.Equal(t, domain.FrustrationLow, level)
	require.Len(t, signals, 1)
	assert.Equal(t, domain.FrustrationRepeatedQuestion, signals[0].Kind)
	assert.Equal(t, "OPS-030", signals[0].HandlerID)
	assert.Equal(t, 1, signals[0].Count)
}

func TestPendingConfirmations(t *testing.T) {
	agent := newAgent(t)
	ctx := context.Background()

	outcome, err := agent.Execute(ctx, "MKTADV-004", map[string]any{
		"channel": "social",
		"budget":  float64(25_000_000),
	}, "s1")
	require.NoError(t, err)
	require.Equal(t, executor.StatusPendingApproval, outcome.Status)

	pending, err := agent.PendingConfirmations(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, outcome.Confirmation.ID, pending[0].ID)

	got, err := agent.Confirmation(ctx, outcome.Confirmation.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ConfirmationPending, got.State)
}

func TestUpdatePreferencesAndDelete(t *testing.T) {
	agent := newAgent(t)
	ctx := context.Background()

	_, err := agent.Ask(ctx, eventagent.AskRequest{
		SessionID: "s1",
		Query:     "화재 대피 절차 알려줘",
		Input:     map[string]any{"venue_name": "코엑스", "attendees": float64(100)},
	})
	require.NoError(t, err)

	detail := domain.DetailBrief
	sc, err := agent.UpdatePreferences(ctx, "s1", domain.PreferencePatch{DetailLevel: &detail})
	require.NoError(t, err)
	assert.Equal(t, domain.DetailBrief, sc.Preferences.DetailLevel)

	require.NoError(t, agent.DeleteSession(ctx, "s1"))
	_, err = agent.Session(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestMetrics_Recorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	agent := newAgent(t, eventagent.WithMetrics(metrics.New(reg)))
	ctx := context.Background()

	_, err := agent.Route(ctx, "화재 대피 절차 알려줘", "")
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)

	found := false
	for _, f := range families {
		if f.GetName() == "eventagent_routing_decisions_total" {
			found = true
		}
	}
	assert.True(t, found, "routing decision counter must be registered and populated")
}
