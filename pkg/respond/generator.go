// Package respond produces the assistant's free-text replies for each branch
// of the dialogue.
package respond

import (
	"context"
	"log/slog"

	"github.com/tmc/langchaingo/llms"

	"github.com/aretw0/orderbot/internal/logging"
	"github.com/aretw0/orderbot/pkg/domain"
	"github.com/aretw0/orderbot/pkg/llm"
)

// Sink receives reply text while it is generated.
type Sink interface {
	Write(chunk string) error
	// Reset tells the consumer to drop what it received for the current
	// reply because the attempt failed and is being retried.
	Reset() error
}

// Generator calls the model for free text.
type Generator struct {
	client *llm.Client
	logger *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// New creates a Generator over client.
func New(client *llm.Client, opts ...Option) *Generator {
	g := &Generator{client: client, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate sends transcript plus instruction and returns the reply together
// with the transcript extended by the instruction and the reply. transcript
// itself is not modified. Failures after the client's retries are returned.
//
// sink may be nil. A sink that fails stops receiving chunks but does not fail
// the generation.
func (g *Generator) Generate(ctx context.Context, transcript []domain.Turn, instruction domain.Turn, sink Sink) (string, []domain.Turn, error) {
	request := make([]domain.Turn, 0, len(transcript)+2)
	request = append(request, transcript...)
	request = append(request, instruction)
	messages := llm.Messages(request)

	var (
		streamed bool
		broken   bool
	)
	text, err := llm.Call(ctx, g.client, "generate", func(ctx context.Context, attempt int) (string, error) {
		var opts []llms.CallOption
		if sink != nil && !broken {
			if attempt > 1 && streamed {
				if err := sink.Reset(); err != nil {
					g.logger.Warn("reply sink reset failed", "err", err)
					broken = true
				}
				streamed = false
			}
			opts = append(opts, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
				if broken {
					return nil
				}
				if err := sink.Write(string(chunk)); err != nil {
					g.logger.Warn("reply sink write failed", "err", err)
					broken = true
					return nil
				}
				streamed = true
				return nil
			}))
		}
		return g.client.GenerateOnce(ctx, messages, opts...)
	})
	if err != nil {
		return "", nil, err
	}

	return text, append(request, domain.AssistantTurn(text)), nil
}
