package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/orderbot/internal/logging"
	"github.com/aretw0/orderbot/internal/presentation/graph"
	"github.com/aretw0/orderbot/pkg/domain"
	"github.com/aretw0/orderbot/pkg/runner"
	"github.com/aretw0/orderbot/pkg/workflow"
)

// Engine is the part of the dialogue engine the chat API drives.
type Engine interface {
	Advance(ctx context.Context, req workflow.TurnRequest) (*workflow.TurnResult, error)
	State(ctx context.Context, sessionID string) (*domain.ConversationState, error)
}

// HeaderThreadID carries the thread id minted for a first message sent without one.
const HeaderThreadID = "X-Thread-Id"

// Server serves the chat turn API.
type Server struct {
	engine       Engine
	streams      *StreamManager
	logger       *slog.Logger
	maxInputSize int
	gatherer     prometheus.Gatherer
	version      string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMaxInputSize caps the message size in bytes.
func WithMaxInputSize(n int) Option {
	return func(s *Server) { s.maxInputSize = n }
}

// WithMetrics serves g on /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithVersion is reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// NewServer creates a Server for engine.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine:       engine,
		streams:      NewStreamManager(),
		logger:       logging.NewNop(),
		maxInputSize: runner.DefaultMaxInputSize,
		version:      "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.streams.logger = s.logger
	return s
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	return NewServer(engine, opts...).Routes()
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Route("/chat", func(r chi.Router) {
		r.Post("/message", s.PostMessage)
		r.Post("/reset", s.Reset)
		r.Get("/events", s.SubscribeEvents)
		r.Get("/sessions/{threadID}", s.GetSession)
	})
	r.Get("/graph", s.GetGraph)
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Idempotency-Key")
		w.Header().Set("Access-Control-Expose-Headers", HeaderThreadID)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// chatRequest accepts both the snake_case and camelCase spellings the widget
// has used over time.
type chatRequest struct {
	Message        string `json:"message"`
	ThreadID       string `json:"thread_id"`
	ThreadIDCamel  string `json:"threadId"`
	IsFirst        *bool  `json:"is_first_message"`
	IsFirstCamel   *bool  `json:"isFirstMessage"`
	UserName       string `json:"user_name"`
	UserNameCamel  string `json:"userName"`
	MessageID      string `json:"message_id"`
	MessageIDCamel string `json:"messageId"`
}

func (c chatRequest) threadID() string {
	return strings.TrimSpace(firstNonEmpty(c.ThreadID, c.ThreadIDCamel))
}

func (c chatRequest) isFirst() bool {
	if c.IsFirst != nil {
		return *c.IsFirst
	}
	return c.IsFirstCamel != nil && *c.IsFirstCamel
}

func (c chatRequest) userName() string {
	return firstNonEmpty(c.UserName, c.UserNameCamel)
}

func (c chatRequest) messageID() string {
	return firstNonEmpty(c.MessageID, c.MessageIDCamel)
}

// PostMessage handles POST /chat/message: one turn, streamed as SSE.
func (s *Server) PostMessage(w http.ResponseWriter, r *http.Request) {
	var body chatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, int64(s.maxInputSize)*4+4096)).Decode(&body); err != nil {
		writeError(w, s.logger, fmt.Errorf("%w: invalid request body: %v", errBadRequest, err))
		return
	}

	first := body.isFirst()
	threadID := body.threadID()
	if threadID == "" {
		if !first {
			writeError(w, s.logger, fmt.Errorf("%w: thread_id is required", errBadRequest))
			return
		}
		threadID = uuid.NewString()
	}

	var input *string
	if !first {
		clean, err := runner.SanitizeInputLimit(body.Message, s.maxInputSize)
		if err != nil {
			s.logger.Warn("chat: input rejected", "session_id", threadID, "err", err, "size", len(body.Message))
			writeError(w, s.logger, err)
			return
		}
		input = &clean
	}

	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		key = body.messageID()
	}

	sse, ok := newSSEWriter(w)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("chat: streaming not supported")
		return
	}
	w.Header().Set(HeaderThreadID, threadID)

	res, err := s.engine.Advance(r.Context(), workflow.TurnRequest{
		SessionID:      threadID,
		Start:          first,
		Input:          input,
		UserName:       body.userName(),
		IdempotencyKey: key,
		Sink:           sse,
	})
	if err != nil {
		if !sse.hasStarted() {
			writeError(w, s.logger, err)
			return
		}
		s.logger.Warn("chat: turn failed after streaming", "session_id", threadID, "err", err)
		_ = sse.fail(clientMessage(err))
		return
	}

	// Replays and non-streaming models produce no chunks.
	if !sse.hasText() {
		for _, msg := range res.Messages {
			if err := sse.Write(msg); err != nil {
				s.logger.Debug("chat: client gone", "session_id", threadID, "err", err)
				return
			}
		}
	}
	if res.Status == domain.StatusTerminated && len(res.Cart) > 0 {
		if err := sse.cart(res.Cart); err != nil {
			s.logger.Error("chat: cart event failed", "session_id", threadID, "err", err)
		}
	}
	_ = sse.done()

	if res.Diff != nil {
		if data, err := json.Marshal(res.Diff); err == nil {
			s.streams.Broadcast(threadID, string(data))
		}
	}
}

// clientMessage hides internals from the widget.
func clientMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrGenerationFailed):
		return "generation failed, please try again"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return "session store unavailable, please try again"
	case errors.Is(err, domain.ErrVersionConflict):
		return "session changed concurrently, please try again"
	default:
		return "internal error"
	}
}

// Reset handles POST /chat/reset. The checkpoint is kept; a fresh
// conversation needs a new thread id.
func (s *Server) Reset(w http.ResponseWriter, r *http.Request) {
	threadID := r.URL.Query().Get("thread_id")
	if threadID == "" {
		var body chatRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&body); err == nil {
			threadID = body.threadID()
		}
	}
	s.logger.Info("chat: reset requested", "session_id", threadID)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Please use a new thread_id to start fresh.",
	})
}

// GetSession handles GET /chat/sessions/{threadID}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.State(r.Context(), chi.URLParam(r, "threadID"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, runner.NewSessionView(st))
}

// GetGraph handles GET /graph. With ?thread_id= the session's node is highlighted.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	var overlay *graph.GraphOverlay
	if id := r.URL.Query().Get("thread_id"); id != "" {
		st, err := s.engine.State(r.Context(), id)
		if err != nil {
			writeError(w, s.logger, err)
			return
		}
		overlay = graph.OverlayFor(st)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, graph.Dialogue(overlay))
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "orderbot-http",
		"version": strings.TrimSpace(s.version),
	})
}

// SubscribeEvents handles GET /chat/events?thread_id=: an SSE stream of the
// state diffs committed on that thread.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	threadID := r.URL.Query().Get("thread_id")
	if threadID == "" {
		writeError(w, s.logger, fmt.Errorf("%w: thread_id is required", errBadRequest))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.streams.Subscribe(threadID)
	defer cancel()

	s.logger.Info("SSE: subscribing to session updates", "session_id", threadID)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE: client disconnected", "session_id", threadID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: diff\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
