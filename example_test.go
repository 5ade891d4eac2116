package eventagent_test

import (
	"context"
	"fmt"
	"log"

	eventagent "github.com/epicstage/Event-agent-backend-kr-sub004"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/adapters/memory"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/catalog"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/schema"
)

// ExampleNew demonstrates a full conversational turn against an in-memory
// agent: the query is routed by tag overlap and the chosen handler runs
// immediately because it carries no risk declaration.
func ExampleNew() {
	b := catalog.NewBuilder()
	b.MustRegister(catalog.Descriptor{
		ID:     "BGT-001",
		Name:   "Budget allocation",
		Domain: catalog.DomainFinance,
		Tags:   []string{"budget", "allocation"},
		Input:  schema.Schema{"total": schema.Number()},
		Output: schema.Schema{"venue": schema.Number()},
		Execute: func(ctx context.Context, input map[string]any) (map[string]any, error) {
			total, _ := schema.AsNumber(input["total"])
			return map[string]any{"venue": total * 0.3}, nil
		},
	})

	agent, err := eventagent.New(b.Build(), memory.NewSessionStore(), memory.NewConfirmationStore())
	if err != nil {
		log.Fatal(err)
	}

	res, err := agent.Ask(context.Background(), eventagent.AskRequest{
		Query: "plan the budget allocation",
		Input: map[string]any{"total": float64(1000)},
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(res.Decision.ChosenHandlerID, res.Decision.DecisionReason)
	fmt.Println(res.Outcome.Status, res.Outcome.Output["venue"])
	// Output:
	// BGT-001 high_confidence
	// completed 300
}

// ExampleAgent_Approve shows the confirmation gate: an irreversible handler
// does not run on the first request, it parks a pending confirmation which a
// human approves later.
func ExampleAgent_Approve() {
	b := catalog.NewBuilder()
	b.MustRegister(catalog.Descriptor{
		ID:     "VND-009",
		Name:   "Cancel vendor contract",
		Domain: catalog.DomainOperations,
		Tags:   []string{"cancel", "contract"},
		Input:  schema.Schema{"vendor": schema.String()},
		Output: schema.Schema{"cancelled": schema.Bool()},
		Risk:   catalog.Risk{Irreversible: true},
		Execute: func(ctx context.Context, input map[string]any) (map[string]any, error) {
			return map[string]any{"cancelled": true}, nil
		},
	})

	agent, err := eventagent.New(b.Build(), memory.NewSessionStore(), memory.NewConfirmationStore())
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	outcome, err := agent.Execute(ctx, "VND-009", map[string]any{"vendor": "catering-co"}, "")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(outcome.Status, outcome.Confirmation.State)

	conf, result, err := agent.Approve(ctx, outcome.Confirmation.ID, "ops-manager")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(conf.State, result.Status, result.Output["cancelled"])
	// Output:
	// pending_approval pending
	// approved completed true
}
