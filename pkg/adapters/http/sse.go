package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/orderbot/pkg/domain"
)

// SSE sentinels understood by the chat widget.
const (
	// EventDone ends a turn whose checkpoint was committed.
	EventDone = "[DONE]"
	// EventRetry tells the client to discard the partial reply of a retried attempt.
	EventRetry = "[RETRY]"
	// EventError ends a failed turn. The checkpoint was not advanced, so the
	// client must discard every chunk streamed since the request began; the
	// next request replays from the previous turn.
	EventError = "[ERROR]"
	// EventCartData carries the checkout cart as JSON, before EventDone.
	EventCartData = "[CART_DATA]"
)

var chunkEscaper = strings.NewReplacer("\n", `\n`, "\r", `\r`)

// sseWriter implements respond.Sink over a text/event-stream response.
// Headers go out with the first event, so a request that fails before
// anything is streamed can still answer with a plain status code.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher

	mu      sync.Mutex
	started bool
	wrote   bool
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, bool) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	return &sseWriter{w: w, flusher: f}, true
}

// Write streams one chunk of reply text.
func (s *sseWriter) Write(chunk string) error {
	if chunk == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wrote = true
	return s.event(chunkEscaper.Replace(chunk))
}

// Reset tells the client to drop the partial reply of a retried attempt.
func (s *sseWriter) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.event(EventRetry)
}

func (s *sseWriter) cart(lines []domain.CartLine) error {
	data, err := json.Marshal(lines)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.event(EventCartData + string(data))
}

func (s *sseWriter) done() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.event(EventDone)
}

func (s *sseWriter) fail(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.event(EventError + " " + chunkEscaper.Replace(msg))
}

// hasStarted reports whether any event went out.
func (s *sseWriter) hasStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// hasText reports whether reply text went out.
func (s *sseWriter) hasText() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wrote
}

func (s *sseWriter) event(data string) error {
	if !s.started {
		s.started = true
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		s.w.WriteHeader(http.StatusOK)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
