// Package app builds the engine from configuration in a fixed order and
// tears it down in reverse.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/chunker"
	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/embedding"
	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/ingest"
	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/rag"
	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/registry"
	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/semantic"
	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/synth"
	"github.com/yassine-youcefi/rasa-rag-chatbot/pkg/config"
	"github.com/yassine-youcefi/rasa-rag-chatbot/pkg/deepseek"
	"github.com/yassine-youcefi/rasa-rag-chatbot/pkg/fn"
	"github.com/yassine-youcefi/rasa-rag-chatbot/pkg/metrics"
	"github.com/yassine-youcefi/rasa-rag-chatbot/pkg/ollama"
	"github.com/yassine-youcefi/rasa-rag-chatbot/pkg/repo"
	"github.com/yassine-youcefi/rasa-rag-chatbot/pkg/resilience"
)

const (
	StoreAttempts = 10
	StoreWait     = 2 * time.Second
	// EmbedAttempts bounds tries per embedding batch during ingestion.
	EmbedAttempts = 3
)

// App holds every long-lived component.
type App struct {
	Config    config.Config
	Metrics   *metrics.RAG
	Index     *embedding.Index
	Store     semantic.Store
	Registry  *registry.Registry
	Synth     *synth.Synthesizer
	LLM       *deepseek.Client
	Searcher  rag.Searcher
	RAG       *rag.Service
	Processor *ingest.Processor
	Submitter ingest.Submitter
	NATS      *nats.Conn

	log     *slog.Logger
	closers []func(context.Context) error
}

// Option overrides a component, mostly for tests.
type Option func(*options)

type options struct {
	model embedding.Model
	sleep func(context.Context, time.Duration) error
	reg   *metrics.Registry
}

// WithModel replaces the Ollama embedding model.
func WithModel(m embedding.Model) Option { return func(o *options) { o.model = m } }

// WithSleep replaces the wait between retry attempts (vector store, LLM).
func WithSleep(f func(context.Context, time.Duration) error) Option {
	return func(o *options) { o.sleep = f }
}

// WithMetrics records into reg instead of a fresh registry.
func WithMetrics(reg *metrics.Registry) Option { return func(o *options) { o.reg = reg } }

// Open initialises embedding model, index, vector store, registry,
// synthesizer, orchestrator and ingestion, in that order. On failure the
// parts already built are closed.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	o := options{sleep: fn.SleepContext}
	for _, opt := range opts {
		opt(&o)
	}
	if o.reg == nil {
		o.reg = metrics.New()
	}

	a := &App{Config: cfg, Metrics: metrics.NewRAG(o.reg), log: logger}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	// --- Embedding ---
	model := o.model
	if model == nil {
		model = ollama.NewEmbedClient(cfg.OllamaURL, cfg.EmbedModel, cfg.EmbedDims)
	}
	a.Index = embedding.New(model)

	// --- Vector store ---
	if a.Store, err = a.openStore(ctx, o.sleep); err != nil {
		return nil, err
	}
	a.onClose(func(context.Context) error { return a.Store.Close() })

	// --- Registry ---
	if a.Registry, err = a.openRegistry(ctx); err != nil {
		return nil, err
	}

	// --- Synthesizer + orchestrator ---
	a.Synth, a.LLM = NewSynthesizer(cfg, logger, a.Metrics, WithSleep(o.sleep))
	a.Searcher = rag.NewIndexSearcher(a.Index, a.Store)
	a.RAG = rag.New(a.Searcher, a.Synth, rag.Options{
		TopK:    cfg.MaxSearchResults,
		Logger:  logger,
		Metrics: a.Metrics,
	})

	// --- Ingestion ---
	a.Processor = ingest.NewProcessor(ingest.Deps{
		Index:   a.Index,
		Store:   a.Store,
		Chunker: chunker.Options{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap},
		EmbedRetry: fn.RetryOpts{
			MaxAttempts: EmbedAttempts,
			InitialWait: 500 * time.Millisecond,
			MaxWait:     2 * time.Second,
			Sleep:       o.sleep,
		},
		Logger: logger,
	}, a.Registry, a.Metrics)

	if cfg.NATSURL != "" {
		if a.NATS, err = nats.Connect(cfg.NATSURL, nats.Name("rag")); err != nil {
			return nil, fmt.Errorf("app: nats connect %s: %w", cfg.NATSURL, err)
		}
		a.onClose(func(context.Context) error { return a.NATS.Drain() })
		a.Submitter = ingest.NewNATSSubmitter(a.NATS)
	} else {
		local := ingest.NewLocalSubmitter(a.Processor, 2)
		a.onClose(func(context.Context) error { local.Wait(); return nil })
		a.Submitter = local
	}

	logger.Info("app: ready",
		"vector_backend", cfg.VectorBackend,
		"registry_backend", cfg.RegistryBackend,
		"mode", a.Synth.Mode().String(),
		"queue", cfg.NATSURL != "",
	)
	return a, nil
}

func (a *App) onClose(f func(context.Context) error) {
	a.closers = append(a.closers, f)
}

// Close releases resources in reverse order of creation.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) openStore(ctx context.Context, sleep func(context.Context, time.Duration) error) (semantic.Store, error) {
	cfg := a.Config
	if cfg.VectorBackend == config.BackendMemory {
		return semantic.NewMemory(), nil
	}
	q, err := semantic.NewQdrant(cfg.QdrantURL, cfg.QdrantCollection)
	if err != nil {
		return nil, err
	}
	res := fn.Retry(ctx, fn.RetryOpts{
		MaxAttempts: StoreAttempts,
		InitialWait: StoreWait,
		MaxWait:     StoreWait,
		Sleep:       sleep,
		OnRetry: func(attempt int, err error, _ time.Duration) {
			a.log.Warn("app: vector store not ready", "attempt", attempt+1, "error", err)
		},
	}, func(ctx context.Context) fn.Result[struct{}] {
		return fn.FromPair(struct{}{}, q.EnsureCollection(ctx, a.Index.Dimensions()))
	})
	if _, err := res.Unwrap(); err != nil {
		_ = q.Close()
		return nil, fmt.Errorf("app: vector store %s: %w", cfg.QdrantURL, err)
	}
	return q, nil
}

func (a *App) openRegistry(ctx context.Context) (*registry.Registry, error) {
	cfg := a.Config
	if cfg.RegistryBackend != config.BackendNeo4j {
		return registry.NewMemory(), nil
	}
	driver, err := repo.OpenNeo4j(ctx, cfg.Neo4jURL, cfg.Neo4jUser, cfg.Neo4jPass)
	if err != nil {
		return nil, err
	}
	a.onClose(driver.Close)
	return registry.NewNeo4j(driver), nil
}

// NewSynthesizer builds the answer synthesizer for cfg. The returned client
// is nil outside generative mode. Only WithSleep is honoured from opts.
func NewSynthesizer(cfg config.Config, logger *slog.Logger, m *metrics.RAG, opts ...Option) (*synth.Synthesizer, *deepseek.Client) {
	if logger == nil {
		logger = slog.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	so := synth.Options{
		Mode:         synth.ParseMode(cfg.LLMType),
		Sleep:        o.sleep,
		MaxSentences: cfg.MaxRelevantSentences,
		SummaryWords: cfg.ContextSummaryWords,
		Logger:       logger,
		Metrics:      m,
	}
	var llm *deepseek.Client
	if so.Mode == synth.ModeGenerative {
		llm = deepseek.New(deepseek.Config{
			BaseURL:     cfg.DeepSeekBaseURL,
			APIKey:      cfg.DeepSeekAPIKey,
			Model:       cfg.DeepSeekModel,
			Temperature: cfg.DeepSeekTemperature,
			MaxTokens:   cfg.DeepSeekMaxTokens,
			Timeout:     cfg.DeepSeekTimeout,
		})
		if !llm.Enabled() {
			logger.Warn("app: generative mode without API key; answers will be extractive")
		}
		so.Generator = llm
		so.AttemptTimeout = cfg.DeepSeekTimeout
		if cfg.LLMBreaker {
			so.Breaker = resilience.NewBreaker(resilience.BreakerOpts{
				OnStateChange: func(_, to resilience.State) { m.BreakerChanged(to == resilience.StateClosed) },
			})
		}
	}
	return synth.New(so), llm
}
