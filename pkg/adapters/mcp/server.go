package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/orderbot/internal/logging"
	"github.com/aretw0/orderbot/internal/presentation/graph"
	"github.com/aretw0/orderbot/pkg/domain"
	"github.com/aretw0/orderbot/pkg/ports"
	"github.com/aretw0/orderbot/pkg/runner"
	"github.com/aretw0/orderbot/pkg/workflow"
)

const (
	graphURI = "orderbot://graph"
	menuURI  = "orderbot://menu"
)

// Engine is the part of the dialogue engine exposed as MCP tools.
type Engine interface {
	Advance(ctx context.Context, req workflow.TurnRequest) (*workflow.TurnResult, error)
	State(ctx context.Context, sessionID string) (*domain.ConversationState, error)
}

// Server wraps the dialogue engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	catalog   ports.CatalogService
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithCatalog exposes the menu as a resource.
func WithCatalog(c ports.CatalogService) Option {
	return func(s *Server) { s.catalog = c }
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, version string, opts ...Option) *Server {
	s := &Server{
		engine: engine,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mcpServer = server.NewMCPServer("orderbot-mcp", strings.TrimSpace(version))
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and stops it when
// ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("MCP Server shutting down")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	sendTool := mcp.NewTool("send_message",
		mcp.WithDescription("Send one customer message to an ordering conversation and get the assistant's replies. Set is_first_message to open a conversation; the greeting is returned."),
		mcp.WithString("thread_id", mcp.Description("Conversation id. Generated when omitted on the first message.")),
		mcp.WithString("message", mcp.Description("Customer message (ignored on the first message)")),
		mcp.WithBoolean("is_first_message", mcp.Description("Open a new conversation")),
		mcp.WithString("user_name", mcp.Description("Customer name used in the greeting")),
		mcp.WithString("message_id", mcp.Description("Idempotency key; repeating it replays the previous replies")),
		mcp.WithOutputSchema[runner.TurnOutput](),
	)
	s.mcpServer.AddTool(sendTool, mcp.NewStructuredToolHandler(s.handleSendMessage))

	sessionTool := mcp.NewTool("get_session",
		mcp.WithDescription("Get the transcript, cart and position of a conversation."),
		mcp.WithString("thread_id", mcp.Required(), mcp.Description("Conversation id")),
		mcp.WithOutputSchema[runner.SessionView](),
	)
	s.mcpServer.AddTool(sessionTool, mcp.NewStructuredToolHandler(s.handleGetSession))

	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get the dialogue state machine as a Mermaid flowchart. With thread_id the conversation's current node is highlighted."),
		mcp.WithString("thread_id", mcp.Description("Conversation to highlight (optional)")),
	), s.handleGetGraph)
}

func (s *Server) handleSendMessage(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (runner.TurnOutput, error) {
	threadID, _ := args["thread_id"].(string)
	message, _ := args["message"].(string)
	first, _ := args["is_first_message"].(bool)
	userName, _ := args["user_name"].(string)
	messageID, _ := args["message_id"].(string)

	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		if !first {
			return runner.TurnOutput{}, errors.New("thread_id is required")
		}
		threadID = uuid.NewString()
	}

	req := workflow.TurnRequest{
		SessionID:      threadID,
		Start:          first,
		UserName:       userName,
		IdempotencyKey: messageID,
	}
	if !first {
		clean, err := runner.SanitizeInput(message)
		if err != nil {
			s.logger.Warn("MCP send_message: input rejected", "err", err, "size", len(message))
			return runner.TurnOutput{}, fmt.Errorf("input rejected: %w", err)
		}
		req.Input = &clean
	}

	res, err := s.engine.Advance(ctx, req)
	if err != nil {
		return runner.TurnOutput{}, fmt.Errorf("send_message failed: %w", err)
	}
	return runner.NewTurnOutput(res), nil
}

func (s *Server) handleGetSession(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (runner.SessionView, error) {
	threadID, _ := args["thread_id"].(string)
	st, err := s.engine.State(ctx, threadID)
	if err != nil {
		return runner.SessionView{}, fmt.Errorf("get_session failed: %w", err)
	}
	return runner.NewSessionView(st), nil
}

func (s *Server) handleGetGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var overlay *graph.GraphOverlay
	if threadID := request.GetString("thread_id", ""); threadID != "" {
		st, err := s.engine.State(ctx, threadID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("load session failed: %v", err)), nil
		}
		overlay = graph.OverlayFor(st)
	}
	return mcp.NewToolResultText(graph.Dialogue(overlay)), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(graphURI, "Dialogue State Machine",
		mcp.WithMIMEType("text/plain"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      graphURI,
				MIMEType: "text/plain",
				Text:     graph.Dialogue(nil),
			},
		}, nil
	})

	if s.catalog == nil {
		return
	}
	s.mcpServer.AddResource(mcp.NewResource(menuURI, "Active Menu",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		items, err := s.catalog.ListActiveItems(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list menu: %w", err)
		}
		jsonBytes, err := json.Marshal(items)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      menuURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
