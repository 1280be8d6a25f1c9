// Package intent classifies a user utterance into BUY, NOT_BUY or UNCLEAR
// with an optional item reference and quantity.
package intent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/aretw0/orderbot/internal/logging"
	"github.com/aretw0/orderbot/pkg/domain"
	"github.com/aretw0/orderbot/pkg/llm"
)

const op = "extract_intent"

// Extractor runs the structured extraction call.
// It never returns an error: every failure folds to UNCLEAR.
type Extractor struct {
	client *llm.Client
	logger *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// New creates an Extractor over client. Retries follow the client's policy.
func New(client *llm.Client, opts ...Option) *Extractor {
	e := &Extractor{client: client, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract classifies latest in the context of transcript.
// The item id is not checked against catalog; that is the cart's job.
func (e *Extractor) Extract(ctx context.Context, transcript []domain.Turn, latest string, catalog domain.CatalogIndex) domain.ExtractedIntent {
	latest = strings.TrimSpace(latest)
	if latest == "" {
		return domain.Unclear()
	}

	messages := llm.Messages(Request(transcript, latest, catalog))
	got, err := llm.Call(ctx, e.client, op, func(ctx context.Context, _ int) (domain.ExtractedIntent, error) {
		text, err := e.client.GenerateOnce(ctx, messages, llms.WithJSONMode())
		if err != nil {
			return domain.ExtractedIntent{}, err
		}
		return Parse(text)
	})
	if err != nil {
		e.logger.Warn("intent extraction failed, treating as unclear", "err", err)
		return domain.Unclear()
	}

	validated := Validate(got)
	if validated.Intent != got.Intent {
		e.logger.Debug("buy intent missing item or quantity, downgraded", "intent", got.Intent)
	}
	return validated
}
