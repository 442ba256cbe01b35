package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prismlab/course-tutor/internal/config"
	"github.com/prismlab/course-tutor/internal/core/engine"
	"github.com/prismlab/course-tutor/internal/core/ports"
	natspub "github.com/prismlab/course-tutor/internal/infrastructure/interaction/nats"
	interactionpg "github.com/prismlab/course-tutor/internal/infrastructure/interaction/postgres"
	"github.com/prismlab/course-tutor/internal/infrastructure/llm/openaicompat"
	"github.com/prismlab/course-tutor/internal/infrastructure/resilience"
	"github.com/prismlab/course-tutor/internal/infrastructure/search/tavily"
	"github.com/prismlab/course-tutor/internal/infrastructure/state/memory"
	"github.com/prismlab/course-tutor/internal/infrastructure/vector/pgvector"
	"github.com/prismlab/course-tutor/internal/infrastructure/vector/pinecone"
	"github.com/prismlab/course-tutor/internal/observability/metrics"
)

type App struct {
	Config  config.Config
	Tutor   ports.TutorService
	Metrics *metrics.HTTPServerMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	catalog, err := config.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig()).WithLogger(logger)

	llmClient := openaicompat.New(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMChatModel, cfg.LLMEmbedModel, openaicompat.Options{
		Executor: executor,
	})

	var closers []func()

	var vectors ports.VectorStore
	switch cfg.VectorBackend {
	case "pgvector":
		db, err := interactionpg.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		store := pgvector.NewStore(db, cfg.EmbeddingDimension)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure vector schema: %w", err)
		}
		closers = append(closers, func() { _ = db.Close() })
		vectors = store
	case "pinecone":
		vectors = pinecone.New(cfg.PineconeHost, cfg.PineconeAPIKey, pinecone.Options{
			Namespace: cfg.PineconeNamespace,
			Executor:  executor,
		})
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}

	web := tavily.New(cfg.TavilyAPIKey, tavily.Options{
		RequestsPerSecond: cfg.TavilyRequestsPerSecond,
		Executor:          executor,
	})

	var interactions ports.InteractionLogger
	switch cfg.InteractionSink {
	case "postgres":
		db, err := interactionpg.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		repo := interactionpg.NewRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure interaction schema: %w", err)
		}
		closers = append(closers, func() { _ = db.Close() })
		interactions = repo
	case "nats":
		publisher, err := natspub.Connect(cfg.NATSURL, natspub.Options{
			Subject:  cfg.NATSSubject,
			Executor: executor,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		closers = append(closers, publisher.Close)
		interactions = publisher
	case "none":
		interactions = nil
	default:
		return nil, fmt.Errorf("unknown interaction sink %q", cfg.InteractionSink)
	}

	tutor := engine.New(
		llmClient,
		llmClient,
		vectors,
		web,
		memory.NewStore(),
		interactions,
		logger,
		engine.Settings{
			TopK:                       cfg.RAGTopK,
			PassThreshold:              cfg.EvaluationThreshold,
			MaxHistoryTurns:            cfg.MaxHistoryTurns,
			ContextCharLimit:           cfg.ContextCharLimit,
			PersonalizationTemperature: cfg.GenerationTemperature,
			PersonalizationMaxTokens:   cfg.GenerationMaxTokens,
			RefinementTemperature:      cfg.RefinementTemperature,
			Greetings:                  catalog.Greetings,
			CourseDescriptions:         catalog.Courses,
		},
	)

	return &App{
		Config:  cfg,
		Tutor:   tutor,
		Metrics: metrics.NewHTTPServerMetrics("tutor-api"),

		closeFn: func() {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
