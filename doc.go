/*
Package eventagent is the control layer for an AI event-management assistant: it
routes free-form (mostly Korean) questions to a large catalog of task handlers,
keeps per-user session context, and parks high-risk actions behind a human
confirmation gate.

It separates the decision surface (routing, risk policy) from execution state
(sessions, confirmations) and side-effects (the handlers themselves). This
hexagonal layout lets the same agent core serve an HTTP API, a CLI, or an MCP
server without changes.

# Key Features

  - Explainable routing: deterministic keyword/tag scoring, optionally blended
    with an external intent classifier. Classifier failures degrade scoring
    instead of failing the request.
  - Session memory: bounded conversation history, learned topics, preferences,
    and repetition-based frustration detection, persisted in Redis or in memory.
  - Confirmation gate: irreversible, policy-changing, cross-domain, or
    over-ceiling monetary actions require an explicit approval before they run,
    and an approved action runs at most once.
  - Contract validation: every handler declares input and output schemas which
    are enforced on both sides of execution.

# Usage

Build a catalog, pick a store, and ask:

	package main

	import (
		"context"
		"fmt"
		"log"

		eventagent "github.com/epicstage/Event-agent-backend-kr-sub004"
		"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/adapters/memory"
		"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/catalog"
		"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/tasks"
	)

	func main() {
		b := catalog.NewBuilder()
		tasks.Register(b)

		agent, err := eventagent.New(b.Build(), memory.NewSessionStore(), memory.NewConfirmationStore())
		if err != nil {
			log.Fatal(err)
		}

		res, err := agent.Ask(context.Background(), eventagent.AskRequest{
			Query: "화재 대피 절차 알려줘",
			Input: map[string]any{"attendees": float64(120)},
		})
		if err != nil {
			log.Fatal(err)
		}
		if res.Decision.Ambiguous() {
			fmt.Println("need clarification:", res.Decision.Alternatives)
			return
		}
		fmt.Println(res.Outcome.Status, res.Outcome.Output)
	}

Production setups swap the memory stores for the Redis adapters in
pkg/adapters/redis and expose the agent through internal/adapters/http or
pkg/adapters/mcp.
*/
package eventagent
