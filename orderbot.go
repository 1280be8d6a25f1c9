package orderbot

import (
	"log/slog"

	"github.com/tmc/langchaingo/llms"

	"github.com/aretw0/orderbot/internal/logging"
	"github.com/aretw0/orderbot/pkg/adapters/memory"
	"github.com/aretw0/orderbot/pkg/intent"
	"github.com/aretw0/orderbot/pkg/llm"
	"github.com/aretw0/orderbot/pkg/ports"
	"github.com/aretw0/orderbot/pkg/respond"
	"github.com/aretw0/orderbot/pkg/session"
	"github.com/aretw0/orderbot/pkg/workflow"
)

// Option configures New.
type Option func(*options)

type options struct {
	store      ports.CheckpointStore
	logger     *slog.Logger
	clientOpts []llm.Option
	engineOpts []workflow.Option
}

// WithStore sets the checkpoint store. The default keeps sessions in memory.
func WithStore(s ports.CheckpointStore) Option {
	return func(o *options) { o.store = s }
}

// WithLogger sets the logger shared by every component.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRetry sets the model call retry policy.
func WithRetry(cfg llm.RetryConfig) Option {
	return func(o *options) { o.clientOpts = append(o.clientOpts, llm.WithRetry(cfg)) }
}

// WithEngineOptions passes options through to the dialogue engine.
func WithEngineOptions(opts ...workflow.Option) Option {
	return func(o *options) { o.engineOpts = append(o.engineOpts, opts...) }
}

// New creates a dialogue engine over catalog and model.
func New(catalog ports.CatalogService, model llms.Model, opts ...Option) *workflow.Engine {
	o := options{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.store == nil {
		o.store = memory.NewStore()
	}

	client := llm.NewClient(model, append([]llm.Option{llm.WithLogger(o.logger)}, o.clientOpts...)...)
	engineOpts := append([]workflow.Option{workflow.WithLogger(o.logger)}, o.engineOpts...)

	return workflow.New(
		session.NewManager(o.store, session.WithLogger(o.logger)),
		catalog,
		intent.New(client, intent.WithLogger(o.logger)),
		respond.New(client, respond.WithLogger(o.logger)),
		engineOpts...,
	)
}
