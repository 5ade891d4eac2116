// Package mcp exposes the agent as a Model Context Protocol server so LLM
// hosts can route, execute and approve through tool calls.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	eventagent "github.com/epicstage/Event-agent-backend-kr-sub004"
)

const catalogResourceURI = "eventagent://catalog"

// Server wraps the agent and exposes it as an MCP server.
type Server struct {
	agent     *eventagent.Agent
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance.
func NewServer(agent *eventagent.Agent) *Server {
	s := &Server{
		agent:     agent,
		mcpServer: server.NewMCPServer("eventagent-mcp", strings.TrimSpace(eventagent.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	routeTool := mcp.NewTool("route_question",
		mcp.WithDescription("Score a free-form question against the task catalog and pick the best handler. An empty chosen_handler_id means the decision is ambiguous; present the alternatives as a clarifying question."),
		mcp.WithString("query", mcp.Required(), mcp.Description("The user's question, typically Korean")),
		mcp.WithString("session_id", mcp.Description("Session ID for context-aware routing (optional)")),
	)
	s.mcpServer.AddTool(routeTool, s.handleRoute)

	executeTool := mcp.NewTool("execute_task",
		mcp.WithDescription("Run a task handler with a structured input document. High-risk actions are parked behind a confirmation instead of running."),
		mcp.WithString("handler_id", mcp.Required(), mcp.Description("Catalog handler ID, e.g. FIN-031")),
		mcp.WithString("input", mcp.Description("JSON object with the handler's input fields")),
		mcp.WithString("session_id", mcp.Description("Session ID to record the turn under (optional)")),
	)
	s.mcpServer.AddTool(executeTool, s.handleExecute)

	approveTool := mcp.NewTool("approve_confirmation",
		mcp.WithDescription("Approve a pending confirmation and run the parked action. Settled confirmations report their state without re-running."),
		mcp.WithString("confirmation_id", mcp.Required(), mcp.Description("The confirmation to approve")),
		mcp.WithString("decided_by", mcp.Required(), mcp.Description("Identity of the approver")),
	)
	s.mcpServer.AddTool(approveTool, s.handleApprove)

	denyTool := mcp.NewTool("deny_confirmation",
		mcp.WithDescription("Deny a pending confirmation. The parked action never runs."),
		mcp.WithString("confirmation_id", mcp.Required(), mcp.Description("The confirmation to deny")),
		mcp.WithString("decided_by", mcp.Required(), mcp.Description("Identity of the decider")),
	)
	s.mcpServer.AddTool(denyTool, s.handleDeny)

	sessionTool := mcp.NewTool("get_session",
		mcp.WithDescription("Read a session's conversation history, preferences and frustration level."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("The session to read")),
	)
	s.mcpServer.AddTool(sessionTool, s.handleSession)

	s.mcpServer.AddTool(mcp.NewTool("list_pending_confirmations",
		mcp.WithDescription("List confirmations awaiting a decision, oldest first."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		pending, err := s.agent.PendingConfirmations(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("listing failed: %v", err)), nil
		}
		return jsonResult(pending)
	})
}

func (s *Server) handleRoute(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := request.GetString("query", "")
	sessionID := request.GetString("session_id", "")

	decision, err := s.agent.Route(ctx, query, sessionID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("routing failed: %v", err)), nil
	}
	return jsonResult(decision)
}

func (s *Server) handleExecute(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	handlerID := request.GetString("handler_id", "")
	sessionID := request.GetString("session_id", "")

	input := map[string]any{}
	if raw := request.GetString("input", ""); raw != "" {
		if err := json.Unmarshal([]byte(raw), &input); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("input is not a JSON object: %v", err)), nil
		}
	}

	outcome, err := s.agent.Execute(ctx, handlerID, input, sessionID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("execution failed: %v", err)), nil
	}
	return jsonResult(outcome)
}

func (s *Server) handleApprove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("confirmation_id", "")
	decidedBy := request.GetString("decided_by", "")

	c, outcome, err := s.agent.Approve(ctx, id, decidedBy)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("approval failed: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"confirmation": c,
		"outcome":      outcome,
	})
}

func (s *Server) handleDeny(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("confirmation_id", "")
	decidedBy := request.GetString("decided_by", "")

	c, err := s.agent.Deny(ctx, id, decidedBy)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("denial failed: %v", err)), nil
	}
	return jsonResult(c)
}

func (s *Server) handleSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := request.GetString("session_id", "")

	sc, err := s.agent.Session(ctx, sessionID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("session read failed: %v", err)), nil
	}
	level, signals := s.agent.Frustration(ctx, sessionID)
	return jsonResult(map[string]any{
		"session":             sc,
		"frustration_level":   level,
		"frustration_signals": signals,
	})
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(catalogResourceURI, "Task Handler Catalog",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		type entry struct {
			ID     string   `json:"id"`
			Name   string   `json:"name"`
			Domain string   `json:"domain"`
			Tags   []string `json:"tags"`
		}
		descriptors := s.agent.Catalog().Descriptors()
		entries := make([]entry, 0, len(descriptors))
		for _, d := range descriptors {
			entries = append(entries, entry{
				ID:     d.ID,
				Name:   d.Name,
				Domain: string(d.Domain),
				Tags:   d.Tags,
			})
		}
		jsonBytes, err := json.Marshal(entries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal catalog: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      catalogResourceURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
