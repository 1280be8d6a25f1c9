// Package cli is the composition root: it turns a config.Config into a
// running engine with its stores, catalog, model and telemetry.
package cli

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tmc/langchaingo/llms"
	"go.opentelemetry.io/otel"

	"github.com/aretw0/orderbot/internal/config"
	"github.com/aretw0/orderbot/internal/logging"
	natsadapter "github.com/aretw0/orderbot/pkg/adapters/nats"
	"github.com/aretw0/orderbot/pkg/intent"
	"github.com/aretw0/orderbot/pkg/llm"
	"github.com/aretw0/orderbot/pkg/observability"
	"github.com/aretw0/orderbot/pkg/persistence/middleware"
	"github.com/aretw0/orderbot/pkg/ports"
	"github.com/aretw0/orderbot/pkg/respond"
	"github.com/aretw0/orderbot/pkg/session"
	"github.com/aretw0/orderbot/pkg/workflow"
)

// App holds everything a command needs. Close releases it.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Engine   *workflow.Engine
	Catalog  ports.CatalogService
	Store    ports.CheckpointStore
	Metrics  *observability.Metrics
	Registry *prometheus.Registry

	res *resources
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() error {
	return a.res.close()
}

// BuildOption customises Build.
type BuildOption func(*buildOptions)

type buildOptions struct {
	model  llms.Model
	logger *slog.Logger
}

// WithModel skips provider construction and uses m.
func WithModel(m llms.Model) BuildOption {
	return func(o *buildOptions) { o.model = m }
}

// WithBuildLogger overrides the logger derived from the config.
func WithBuildLogger(l *slog.Logger) BuildOption {
	return func(o *buildOptions) { o.logger = l }
}

// NewLogger creates the process logger from cfg.
func NewLogger(cfg *config.Config) *slog.Logger {
	return logging.New(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
}

// Build wires the engine for cfg.
func Build(ctx context.Context, cfg *config.Config, opts ...BuildOption) (*App, error) {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = NewLogger(cfg)
	}

	app := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
		res:      &resources{logger: logger},
	}
	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.Metrics = observability.NewMetrics(app.Registry)

	fail := func(err error) (*App, error) {
		_ = app.res.close()
		return nil, err
	}

	store, locker, err := app.res.openStore(cfg.Store, app.Metrics)
	if err != nil {
		return fail(err)
	}
	app.Store = store

	catalog, err := app.res.openCatalog(cfg)
	if err != nil {
		return fail(err)
	}
	app.Catalog = catalog

	model := o.model
	if model == nil {
		model, err = llm.NewModel(ctx, llm.ProviderConfig{
			Provider: cfg.LLM.Provider,
			Model:    cfg.LLM.Model,
			APIKey:   cfg.LLM.APIKey,
		})
		if err != nil {
			return fail(fmt.Errorf("error initializing language model: %w", err))
		}
	}
	client := llm.NewClient(model,
		llm.WithRetry(llm.RetryConfig{
			MaxAttempts:    cfg.LLM.MaxAttempts,
			InitialBackoff: cfg.LLM.Backoff,
			MaxBackoff:     5 * time.Second,
			BackoffFactor:  2.0,
			Jitter:         0.1,
		}),
		llm.WithTimeout(cfg.LLM.Timeout),
		llm.WithTemperature(cfg.LLM.Temperature),
		llm.WithLogger(logger),
		llm.WithObserver(app.Metrics),
	)

	sessionOpts := []session.Option{session.WithLogger(logger)}
	if locker != nil {
		sessionOpts = append(sessionOpts,
			session.WithLocker(locker, cfg.Store.LockTTL),
			session.WithLockWait(cfg.Store.LockWait),
		)
	}

	engineOpts := []workflow.Option{
		workflow.WithLogger(logger),
		workflow.WithLifecycleHooks(observability.Hooks(logger, app.Metrics)),
		workflow.WithDefaultUserName(cfg.UserName),
		workflow.WithTracerProvider(otel.GetTracerProvider()),
	}
	if cfg.NATSURL != "" {
		conn, err := app.res.nats(cfg)
		if err != nil {
			return fail(err)
		}
		engineOpts = append(engineOpts, workflow.WithCheckoutPublisher(natsadapter.NewPublisher(conn, cfg.CheckoutSubject)))
	}

	app.Engine = workflow.New(
		session.NewManager(store, sessionOpts...),
		catalog,
		intent.New(client, intent.WithLogger(logger)),
		respond.New(client, respond.WithLogger(logger)),
		engineOpts...,
	)
	return app, nil
}

// OpenStore opens only the checkpoint store, for the session admin commands.
// extra middlewares wrap outside the instrumentation.
func OpenStore(cfg *config.Config, logger *slog.Logger, extra ...middleware.Middleware) (ports.CheckpointStore, func() error, error) {
	res := &resources{logger: logger}
	store, _, err := res.openStore(cfg.Store, observability.NewMetrics(nil))
	if err != nil {
		_ = res.close()
		return nil, nil, err
	}
	return middleware.Chain(store, extra...), res.close, nil
}

// OpenCatalog opens only the catalog, for the menu commands.
func OpenCatalog(cfg *config.Config, logger *slog.Logger) (ports.CatalogService, func() error, error) {
	res := &resources{logger: logger}
	catalog, err := res.openCatalog(cfg)
	if err != nil {
		_ = res.close()
		return nil, nil, err
	}
	return catalog, res.close, nil
}

// resources tracks what has to be closed and shares connections between
// components that point at the same backend.
type resources struct {
	logger  *slog.Logger
	closers []func() error
	dbs     map[string]*sql.DB
	conn    *nats.Conn
}

func (r *resources) onClose(fn func() error) {
	r.closers = append(r.closers, fn)
}

func (r *resources) close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

func (r *resources) nats(cfg *config.Config) (*nats.Conn, error) {
	if r.conn != nil {
		return r.conn, nil
	}
	conn, err := natsadapter.Connect(cfg.NATSURL, "orderbot", cfg.NATSTimeout)
	if err != nil {
		return nil, err
	}
	r.conn = conn
	r.onClose(func() error {
		conn.Close()
		return nil
	})
	return conn, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("ORDERBOT_STORE_KEY is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("ORDERBOT_STORE_KEY must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}
