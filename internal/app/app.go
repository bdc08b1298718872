// Package app wires configuration into a running ledger, pipeline and advice refresher.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/moliya/internal/advice"
	"github.com/dvloznov/moliya/internal/ai"
	"github.com/dvloznov/moliya/internal/balance"
	"github.com/dvloznov/moliya/internal/config"
	"github.com/dvloznov/moliya/internal/domain"
	"github.com/dvloznov/moliya/internal/gcs"
	"github.com/dvloznov/moliya/internal/jobs/inmemory"
	"github.com/dvloznov/moliya/internal/ledger"
	"github.com/dvloznov/moliya/internal/logger"
	"github.com/dvloznov/moliya/internal/pipeline"
	"github.com/dvloznov/moliya/internal/redisstore"
)

// JobRetention is the number of advice jobs kept for inspection.
const JobRetention = 100

// App owns every long-lived component of one ledger.
type App struct {
	Config    *config.Config
	Logger    zerolog.Logger
	Persister ledger.Persister
	Store     *ledger.Store
	Pipeline  *pipeline.Pipeline
	Advice    *advice.Refresher
	Jobs      *inmemory.Store

	advisor *ai.SafeAdvisor
	queue   *inmemory.Queue
	opts    options
	closers []func() error
}

type options struct {
	persister ledger.Persister
	generator ai.Generator
	resolver  ai.IntentResolver
	advisor   ai.AdviceGenerator
	warehouse warehouseFactory
	notion    notionFactory
}

// Option replaces a component that would otherwise be built from config.
type Option func(*options)

// WithPersister overrides the configured storage backend.
func WithPersister(p ledger.Persister) Option { return func(o *options) { o.persister = p } }

// WithGenerator supplies the model client used by the Gemini resolver and advisor.
func WithGenerator(g ai.Generator) Option { return func(o *options) { o.generator = g } }

// WithResolver overrides the intent resolver. It is still wrapped in ai.SafeResolver.
func WithResolver(r ai.IntentResolver) Option { return func(o *options) { o.resolver = r } }

// WithAdvisor overrides the advice generator. It is still wrapped in ai.SafeAdvisor.
func WithAdvisor(a ai.AdviceGenerator) Option { return func(o *options) { o.advisor = a } }

// New builds the application and loads the ledger. Components are idle until Start.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts ...Option) (*App, error) {
	a := &App{Config: cfg, Logger: log}
	for _, opt := range opts {
		opt(&a.opts)
	}

	persister := a.opts.persister
	if persister == nil {
		p, closeFn, err := OpenPersister(ctx, cfg, cfg.Store.Backend)
		if err != nil {
			return nil, fmt.Errorf("app.New: %w", err)
		}
		a.closers = append(a.closers, closeFn)
		persister = p
	}

	a.Persister = persister
	a.Store = ledger.NewStore(persister, ledger.WithLogger(logger.Component(log, "ledger")))
	a.Store.Load(ctx)

	resolver, advisor, err := a.newAI(ctx)
	if err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app.New: %w", err)
	}
	a.advisor = ai.NewSafeAdvisor(advisor, logger.Component(log, "advisor"))

	a.Pipeline = pipeline.New(
		ai.NewSafeResolver(resolver, logger.Component(log, "resolver")),
		a.Store,
		pipeline.WithLogger(logger.Component(log, "pipeline")),
	)

	a.Jobs = inmemory.NewStore(JobRetention)
	a.queue = inmemory.NewQueue(cfg.Advice.Buffer, cfg.Advice.Workers, a.Jobs, logger.Component(log, "queue"))
	a.queue.SetRetryBackoff(cfg.Advice.RetryBackoff)
	a.Advice = advice.NewRefresher(a.queue, advisor, cfg.Advice.Window, logger.Component(log, "advice"),
		advice.WithRetries(cfg.Advice.Retries))

	log.Info().
		Str("store_backend", cfg.Store.Backend).
		Bool("ai_enabled", a.opts.resolver != nil || cfg.AIEnabled()).
		Int("transactions", len(a.Store.Transactions())).
		Int("people", len(a.Store.People())).
		Msg("ledger loaded")

	return a, nil
}

// OpenPersister builds the persister for backend using cfg's connection
// settings. The returned func releases any client it opened.
func OpenPersister(ctx context.Context, cfg *config.Config, backend string) (ledger.Persister, func() error, error) {
	noop := func() error { return nil }
	switch backend {
	case config.BackendMemory:
		return ledger.NewMemoryPersister(), noop, nil

	case config.BackendRedis:
		rp, err := redisstore.New(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return rp, rp.Close, nil

	case config.BackendGCS:
		bucket, prefix, err := gcs.ParseLocation(cfg.GCS.Bucket)
		if err != nil {
			return nil, nil, err
		}
		if prefix == "" {
			prefix = cfg.GCS.Prefix
		}
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		return gcs.NewPersister(client, bucket, prefix), client.Close, nil

	case config.BackendFile, "":
		fp, err := ledger.NewFilePersister(cfg.Store.Dir)
		if err != nil {
			return nil, nil, err
		}
		return fp, noop, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

func (a *App) newAI(ctx context.Context) (ai.IntentResolver, ai.AdviceGenerator, error) {
	resolver, advisor := a.opts.resolver, a.opts.advisor
	if resolver != nil && advisor != nil {
		return resolver, advisor, nil
	}

	gen := a.opts.generator
	if gen == nil && a.Config.AIEnabled() {
		g, err := ai.NewGeminiGenerator(ctx, a.Config.Gemini.APIKey)
		if err != nil {
			return nil, nil, err
		}
		gen = g
	}

	if gen == nil {
		a.Logger.Warn().Msg("no Gemini API key configured, running in fallback-only mode")
		if resolver == nil {
			resolver = ai.Unavailable{}
		}
		if advisor == nil {
			advisor = ai.Unavailable{}
		}
		return resolver, advisor, nil
	}

	gopts := ai.GeminiOptions{
		Model:   a.Config.Gemini.Model,
		Timeout: a.Config.Gemini.Timeout,
		Window:  a.Config.Advice.Window,
		Logger:  logger.Component(a.Logger, "gemini"),
	}
	if resolver == nil {
		resolver = ai.NewGeminiResolver(gen, gopts)
	}
	if advisor == nil {
		advisor = ai.NewGeminiAdvisor(gen, gopts)
	}
	return resolver, advisor, nil
}

// Start launches the advice workers, subscribes the refresher to ledger
// changes and schedules the first refresh. ctx bounds the workers' lifetime.
// One-shot commands skip Start; their mutations then schedule no advice.
func (a *App) Start(ctx context.Context) error {
	if err := a.queue.Start(ctx, a.Advice.Handle); err != nil {
		return fmt.Errorf("App.Start: %w", err)
	}
	a.Store.Subscribe(a.Advice.OnLedgerChange)
	if err := a.Advice.Refresh(ctx, a.Store.Transactions()); err != nil {
		return fmt.Errorf("App.Start: %w", err)
	}
	return nil
}

// Close drains the advice queue and releases storage clients.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.queue != nil {
		if err := a.queue.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop advice queue: %w", err))
		}
	}
	if err := a.closeAll(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) closeAll() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Summary recomputes balances, per-person debts and the expense breakdown.
func (a *App) Summary() balance.Summary {
	return balance.Summarize(a.Store.Snapshot())
}

// AdviseNow asks the advisor directly, bypassing the queue.
func (a *App) AdviseNow(ctx context.Context) string {
	txs := a.Store.Transactions()
	if len(txs) == 0 {
		return ai.AdviceNoData
	}
	return a.advisor.Text(ctx, ai.Window(txs, a.Config.Advice.Window))
}

// EditTransaction replaces every editable field of transaction id.
func (a *App) EditTransaction(ctx context.Context, id string, in domain.EditInput) (domain.Transaction, error) {
	orig, ok := a.Store.Get(id)
	if !ok {
		return domain.Transaction{}, domain.ErrTransactionNotFound
	}
	edited, err := in.Apply(orig)
	if err != nil {
		return domain.Transaction{}, err
	}
	replaced, err := a.Store.Replace(ctx, id, edited)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("App.EditTransaction: %w", err)
	}
	if !replaced {
		return domain.Transaction{}, domain.ErrTransactionNotFound
	}
	a.Logger.Info().Str("transaction_id", id).Msg("transaction edited")
	return edited, nil
}

// DeleteTransaction removes transaction id. Callers confirm with the user first.
func (a *App) DeleteTransaction(ctx context.Context, id string) error {
	removed, err := a.Store.Remove(ctx, id)
	if err != nil {
		return fmt.Errorf("App.DeleteTransaction: %w", err)
	}
	if !removed {
		return domain.ErrTransactionNotFound
	}
	a.Logger.Info().Str("transaction_id", id).Msg("transaction deleted")
	return nil
}
