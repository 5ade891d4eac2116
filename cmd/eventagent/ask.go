package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/epicstage/Event-agent-backend-kr-sub004/internal/presentation/tui"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/executor"

	eventagent "github.com/epicstage/Event-agent-backend-kr-sub004"
)

var askCmd = &cobra.Command{
	Use:   "ask [query]",
	Short: "Route a question and run the chosen handler",
	Long: `Routes a free-form question against the task catalog. With --input, the
chosen handler is executed and its report rendered; without it, the routing
decision is printed.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
		logger := newLogger(cfg)

		agent, cleanup, err := buildAgent(cfg, logger, nil)
		if err != nil {
			fmt.Printf("Error initializing agent: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		sessionID, _ := cmd.Flags().GetString("session")
		rawInput, _ := cmd.Flags().GetString("input")

		tui.PrintBanner()
		ctx := context.Background()

		if rawInput == "" {
			decision, err := agent.Route(ctx, args[0], sessionID)
			if err != nil {
				fmt.Printf("Routing error: %v\n", err)
				os.Exit(1)
			}
			printMarkdown(decisionMarkdown(args[0], decision))
			return
		}

		input := map[string]any{}
		if err := json.Unmarshal([]byte(rawInput), &input); err != nil {
			fmt.Printf("--input must be a JSON object: %v\n", err)
			os.Exit(1)
		}

		result, err := agent.Ask(ctx, eventagent.AskRequest{
			SessionID: sessionID,
			Query:     args[0],
			Input:     input,
		})
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		printMarkdown(resultMarkdown(args[0], result))
	},
}

func decisionMarkdown(query string, d interface{ Ambiguous() bool }) string {
	data, _ := json.MarshalIndent(d, "", "  ")
	var b strings.Builder
	fmt.Fprintf(&b, "# Routing decision\n\n**Query:** %s\n\n", query)
	if d.Ambiguous() {
		b.WriteString("The decision is ambiguous; pick a handler from the alternatives.\n\n")
	}
	fmt.Fprintf(&b, "```json\n%s\n```\n", data)
	return b.String()
}

func resultMarkdown(query string, result *eventagent.AskResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", query)
	fmt.Fprintf(&b, "**Session:** `%s`\n\n", result.SessionID)

	if result.Outcome == nil {
		b.WriteString("## Clarification needed\n\n")
		for _, alt := range result.Decision.Alternatives {
			fmt.Fprintf(&b, "- `%s` (score %.2f)\n", alt.HandlerID, alt.Score)
		}
		return b.String()
	}

	fmt.Fprintf(&b, "**Handler:** `%s` (confidence %.2f)\n\n",
		result.Decision.ChosenHandlerID, result.Decision.Confidence)

	if result.Outcome.Status == executor.StatusPendingApproval {
		c := result.Outcome.Confirmation
		b.WriteString("## Awaiting approval\n\n")
		fmt.Fprintf(&b, "Confirmation `%s` (%s risk): %s\n",
			c.ID, c.ProposedAction.RiskLevel, strings.Join(c.ProposedAction.RiskReasons, ", "))
		return b.String()
	}

	b.WriteString("## Report\n\n")
	keys := make([]string, 0, len(result.Outcome.Output))
	for k := range result.Outcome.Output {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, _ := json.Marshal(result.Outcome.Output[k])
		fmt.Fprintf(&b, "- **%s**: %s\n", k, v)
	}
	return b.String()
}

func printMarkdown(md string) {
	render := tui.NewRenderer()
	out, err := render(md)
	if err != nil {
		fmt.Println(md)
		return
	}
	fmt.Print(out)
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringP("session", "s", "", "Session ID to remember the turn under")
	askCmd.Flags().StringP("input", "i", "", "JSON object with the handler's input fields")
}
