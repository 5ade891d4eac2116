package tasks_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/catalog"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/schema"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/tasks"
)

func builtins(t *testing.T) *catalog.Catalog {
	t.Helper()
	b := catalog.NewBuilder()
	tasks.Register(b)
	return b.Build()
}

func TestRegister_EveryHandlerIsComplete(t *testing.T) {
	cat := builtins(t)
	require.GreaterOrEqual(t, cat.Len(), 8)

	for _, d := range cat.Descriptors() {
		assert.NotEmpty(t, d.Name, "%s needs a name", d.ID)
		assert.NotEmpty(t, d.Tags, "%s needs tags", d.ID)
		assert.NotEmpty(t, d.Output, "%s needs an output contract", d.ID)
		assert.NotEmpty(t, d.Risk.AffectedDomains, "%s needs a blast radius declaration", d.ID)
	}
}

func TestRegister_OutputsHonorContracts(t *testing.T) {
	cat := builtins(t)
	ctx := context.Background()

	inputs := map[string]map[string]any{
		"FIN-031":    {"event_id": "EVT-1", "total_budget": float64(5_000_000), "attendees": float64(200)},
		"STR-001":    {"event_id": "EVT-1", "objective": "리드 300건 확보"},
		"OPS-030":    {"venue_name": "코엑스 그랜드볼룸", "attendees": float64(800)},
		"SITE-037":   {"hotel_name": "롯데호텔", "rooms_to_release": float64(30)},
		"MKTADV-004": {"channel": "social", "budget": float64(4_000_000)},
		"SYS-011":    {"role": "operator", "actions": []any{"read", "write"}},
		"HR-007":     {"headcount": float64(12), "hours": float64(8), "rate": float64(15000)},
		"MTG-004":    {"tracks": float64(3), "sessions": float64(18)},
	}

	for id, input := range inputs {
		d, ok := cat.Get(id)
		require.True(t, ok, "handler %s must be registered", id)

		require.NoError(t, schema.Validate(d.Input, input), "%s rejects its own example input", id)

		output, err := d.Execute(ctx, input)
		require.NoError(t, err, "%s failed", id)
		assert.NoError(t, schema.Validate(d.Output, output), "%s violates its own output contract", id)
	}
}

func TestBudgetStructure_Allocation(t *testing.T) {
	cat := builtins(t)
	d, _ := cat.Get("FIN-031")

	output, err := d.Execute(context.Background(), map[string]any{
		"event_id":     "EVT-9",
		"total_budget": float64(10_000_000),
	})
	require.NoError(t, err)

	allocation := output["allocation"].(map[string]any)
	assert.InDelta(t, 3_000_000, allocation["venue"], 0.1)
	assert.InDelta(t, 1_000_000, allocation["contingency"], 0.1)
}

func TestEvacuationPlan_MarshalCount(t *testing.T) {
	cat := builtins(t)
	d, _ := cat.Get("OPS-030")

	output, err := d.Execute(context.Background(), map[string]any{
		"venue_name": "벡스코",
		"attendees":  float64(800),
	})
	require.NoError(t, err)

	steps := output["steps"].([]any)
	assert.Contains(t, steps[1], "16명")
}

func TestRiskDeclarations(t *testing.T) {
	cat := builtins(t)

	site, _ := cat.Get("SITE-037")
	assert.True(t, site.Risk.Irreversible)
	assert.Len(t, site.Risk.AffectedDomains, 2)

	sys, _ := cat.Get("SYS-011")
	assert.True(t, sys.Risk.PolicyChange)

	fin, _ := cat.Get("FIN-031")
	assert.Equal(t, []string{"total_budget"}, fin.Risk.MonetaryFields)
}

func TestSessionPlanning_InvalidTracks(t *testing.T) {
	cat := builtins(t)
	d, _ := cat.Get("MTG-004")

	_, err := d.Execute(context.Background(), map[string]any{
		"tracks":   float64(0),
		"sessions": float64(10),
	})
	assert.Error(t, err)
}
