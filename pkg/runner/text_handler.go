package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/orderbot/pkg/cart"
	"github.com/aretw0/orderbot/pkg/domain"
	"github.com/aretw0/orderbot/pkg/respond"
	"github.com/aretw0/orderbot/pkg/workflow"
)

// ContentRenderer is a function that transforms reply text before it is printed.
// This allows for TUI rendering (markdown to ANSI) without coupling the core package.
type ContentRenderer func(string) (string, error)

// TextHandler implements the standard text-based interface.
type TextHandler struct {
	Reader   *bufio.Reader
	Writer   io.Writer
	Renderer ContentRenderer
	// Stream prints reply text as it arrives. Ignored when Renderer is set.
	Stream bool

	mu       sync.Mutex
	streamed bool

	inputChan chan inputResult
	startOnce sync.Once
}

type inputResult struct {
	text string
	err  error
}

// TextHandlerOption defines configuration for TextHandler.
type TextHandlerOption func(*TextHandler)

// WithTextHandlerRenderer configures the content renderer.
func WithTextHandlerRenderer(renderer ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = renderer
	}
}

// WithTextHandlerStreaming prints replies chunk by chunk.
func WithTextHandlerStreaming(stream bool) TextHandlerOption {
	return func(h *TextHandler) {
		h.Stream = stream
	}
}

// NewTextHandler creates a handler for standard text IO.
func NewTextHandler(r io.Reader, w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	h := &TextHandler{
		Reader: bufio.NewReader(r),
		Writer: w,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *TextHandler) initPump() {
	h.startOnce.Do(func() {
		h.inputChan = make(chan inputResult)
		go h.pump()
	})
}

// pump reads lines in the background so Input can return on cancellation
// while a read is still blocked.
func (h *TextHandler) pump() {
	for {
		text, err := h.Reader.ReadString('\n')

		// If we got text (even with EOF), send it
		if text != "" {
			h.inputChan <- inputResult{text: text}
		}

		if err != nil {
			if err == io.EOF {
				close(h.inputChan)
				return
			}
			h.inputChan <- inputResult{err: err}
			// Backoff for non-fatal errors to prevent CPU spikes on persistent failure
			time.Sleep(50 * time.Millisecond)
		}
	}
}

// Sink implements Streamer.
func (h *TextHandler) Sink() respond.Sink {
	if !h.Stream || h.Renderer != nil {
		return nil
	}
	return textSink{h}
}

type textSink struct{ h *TextHandler }

func (s textSink) Write(chunk string) error {
	s.h.mu.Lock()
	defer s.h.mu.Unlock()
	s.h.streamed = true
	_, err := io.WriteString(s.h.Writer, chunk)
	return err
}

func (s textSink) Reset() error {
	s.h.mu.Lock()
	defer s.h.mu.Unlock()
	_, err := fmt.Fprintln(s.h.Writer, "\n[retrying]")
	return err
}

func (h *TextHandler) Output(ctx context.Context, res *workflow.TurnResult) error {
	h.mu.Lock()
	streamed := h.streamed
	h.streamed = false
	h.mu.Unlock()

	if streamed {
		// The text is already on screen.
		fmt.Fprintln(h.Writer)
	} else {
		for _, msg := range res.Messages {
			output := msg
			if h.Renderer != nil {
				if rendered, err := h.Renderer(msg); err == nil {
					output = rendered
				}
			}
			fmt.Fprintln(h.Writer, strings.TrimSpace(output))
		}
	}

	if res.Status == domain.StatusTerminated && len(res.Cart) > 0 {
		fmt.Fprintf(h.Writer, "\n[Cart]\n%s\n", cart.Summary(res.Cart))
	}
	return nil
}

func (h *TextHandler) Input(ctx context.Context) (string, error) {
	h.initPump()

	for {
		// Only show prompt if context is not yet done
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
			fmt.Fprint(h.Writer, "> ")
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case res, ok := <-h.inputChan:
			if !ok {
				return "", io.EOF
			}
			if res.err != nil {
				return "", res.err
			}
			text := strings.TrimSpace(res.text)

			clean, err := SanitizeInput(text)
			if err != nil {
				fmt.Fprintf(h.Writer, "Error: %v. Please try again.\n", err)
				continue
			}
			return clean, nil
		}
	}
}

func (h *TextHandler) SystemOutput(ctx context.Context, msg string) error {
	_, err := fmt.Fprintf(h.Writer, "[System] %s\n", msg)
	return err
}
