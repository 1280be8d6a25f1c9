package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/aretw0/orderbot/internal/logging"
)

// Observer receives call outcomes, typically to feed metrics.
type Observer interface {
	ObserveLLMCall(op string, err error)
	ObserveLLMRetry(op string)
}

// Client applies timeout and retry policy around a langchaingo model.
type Client struct {
	model       llms.Model
	retry       RetryConfig
	timeout     time.Duration
	temperature float64
	logger      *slog.Logger
	observer    Observer
}

// Option configures a Client.
type Option func(*Client)

// WithRetry sets the retry policy.
func WithRetry(cfg RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// WithTimeout bounds every single attempt. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithTemperature sets the sampling temperature sent on every call.
func WithTemperature(t float64) Option {
	return func(c *Client) { c.temperature = t }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithObserver registers a call observer.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// NewClient wraps model with DefaultRetry and a 30s per-attempt timeout.
func NewClient(model llms.Model, opts ...Option) *Client {
	c := &Client{
		model:       model,
		retry:       DefaultRetry,
		timeout:     30 * time.Second,
		temperature: 0.7,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the wrapped model.
func (c *Client) Model() llms.Model {
	return c.model
}

// Call runs fn under the client's policy. fn receives a context bounded by
// the per-attempt timeout and the 1-based attempt number.
func Call[T any](ctx context.Context, c *Client, op string, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	res, err := retry(ctx, c.retry, op, func(ctx context.Context, attempt int) (T, error) {
		if c.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		return fn(ctx, attempt)
	}, func(attempt int, err error) {
		c.logger.Warn("model call failed, retrying", "op", op, "attempt", attempt, "err", err)
		if c.observer != nil {
			c.observer.ObserveLLMRetry(op)
		}
	})

	if c.observer != nil {
		c.observer.ObserveLLMCall(op, err)
	}
	return res, err
}

// Generate sends messages and returns the text of the first choice.
func (c *Client) Generate(ctx context.Context, op string, messages []llms.MessageContent, opts ...llms.CallOption) (string, error) {
	return Call(ctx, c, op, func(ctx context.Context, _ int) (string, error) {
		return c.generateOnce(ctx, messages, opts...)
	})
}

// GenerateOnce performs a single attempt with the client's temperature and
// timeout but no retry. Callers that need per-attempt side effects use it
// inside Call.
func (c *Client) GenerateOnce(ctx context.Context, messages []llms.MessageContent, opts ...llms.CallOption) (string, error) {
	return c.generateOnce(ctx, messages, opts...)
}

func (c *Client) generateOnce(ctx context.Context, messages []llms.MessageContent, opts ...llms.CallOption) (string, error) {
	opts = append([]llms.CallOption{llms.WithTemperature(c.temperature)}, opts...)
	resp, err := c.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%w: %w", ctxErr, err)
		}
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Content, nil
}
