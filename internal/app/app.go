// Package app wires the processes: AI adapter, database pool, stores and the
// analysis services. cmd/server, cmd/worker and cmd/journeyctl share it.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/givance/webserver-sub009/internal/storage"
	"github.com/givance/webserver-sub009/internal/util"
	"github.com/givance/webserver-sub009/pkg/ai"
	oai "github.com/givance/webserver-sub009/pkg/ai/ollama"
	gai "github.com/givance/webserver-sub009/pkg/ai/openai"
	"github.com/givance/webserver-sub009/pkg/analysis"
	"github.com/givance/webserver-sub009/pkg/journey"
	"github.com/givance/webserver-sub009/pkg/leaselock"
	"github.com/givance/webserver-sub009/pkg/lifecycle"
	"github.com/givance/webserver-sub009/pkg/logger"
	pgxstore "github.com/givance/webserver-sub009/pkg/store/pgx"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

type App struct {
	Config Config

	Pool *pgxpool.Pool
	AI   ai.Client

	Store   *pgxstore.Store
	Archive *storage.JourneyArchive

	Lifecycle    *lifecycle.Service
	Generator    *journey.Generator
	Orchestrator *analysis.Orchestrator
	Locks        *leaselock.Client
}

// provider is what both AI adapters implement.
type provider interface {
	ai.Client
	ai.Embedder
	HasEmbeddings() bool
}

func New(ctx context.Context, cfg Config) (*App, error) {
	aiClient, err := newAIClient(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := connectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	storeOpts := []pgxstore.StoreOption{pgxstore.WithSimilarityThreshold(cfg.TodoSimilarity)}
	if aiClient.HasEmbeddings() {
		storeOpts = append(storeOpts, pgxstore.WithEmbedder(aiClient))
	}

	var archive *storage.JourneyArchive
	s3Client, err := storage.NewS3Client(ctx)
	if err != nil {
		logger.Warn("[App] S3 unavailable, journey archiving disabled", "err", err)
	} else if s3Client != nil {
		archive = storage.NewJourneyArchive(s3Client, cfg.Bucket)
		storeOpts = append(storeOpts, pgxstore.WithArchiver(archive))
	}

	lifecycleOpts := []lifecycle.Option{}
	if cfg.ClassifyModel != "" {
		lifecycleOpts = append(lifecycleOpts, lifecycle.WithClassificationModel(cfg.ClassifyModel))
	}

	st := pgxstore.NewStore(pool, storeOpts...)
	lc := lifecycle.NewService(aiClient, lifecycleOpts...)

	a := &App{
		Config:    cfg,
		Pool:      pool,
		AI:        aiClient,
		Store:     st,
		Archive:   archive,
		Lifecycle: lc,
		Generator: journey.NewGenerator(aiClient, generatorOptions(cfg)...),
		Orchestrator: analysis.NewOrchestrator(st, st, st, lc,
			analysis.WithConfig(cfg.Analysis),
		),
		Locks: leaselock.New(pool),
	}

	logger.Info("[App] Initialized",
		"ai_adapter", cfg.AIAdapter,
		"embeddings", aiClient.HasEmbeddings(),
		"archive", archive != nil,
		"parallel_donors", cfg.Analysis.ParallelDonors,
	)
	return a, nil
}

// generatorOptions enables reasoning for journey generation when AI_THINKING
// names an effort level.
func generatorOptions(cfg Config) []ai.GenerateOption {
	if cfg.Thinking == "" {
		return nil
	}
	return []ai.GenerateOption{ai.WithThinking(cfg.Thinking)}
}

// WarmUp preloads the chat model on adapters that keep models in memory.
func WarmUp(ctx context.Context, client ai.Client) {
	loader, ok := client.(ai.ModelLoader)
	if !ok {
		return
	}
	start := time.Now()
	if err := loader.LoadModel(ctx); err != nil {
		logger.Warn("[App] Failed to preload model", "err", err)
		return
	}
	logger.Info("[App] Model loaded", "duration", time.Since(start).Round(time.Millisecond))
}

func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}

func newAIClient(cfg Config) (provider, error) {
	switch cfg.AIAdapter {
	case "ollama":
		client, err := oai.NewClient(oai.NewClientParams{
			ChatModel:      cfg.ChatModel,
			EmbeddingModel: cfg.EmbedModel,
			EmbeddingDim:   cfg.EmbedDim,

			BaseURL: cfg.ChatURL,
			ApiKey:  cfg.ChatKey,

			MaxConcurrentRequests: int64(cfg.ParallelAIReq),
			TimeoutMin:            cfg.AITimeoutMin,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create ollama client: %w", err)
		}
		return client, nil
	case "openai", "":
		return gai.NewClient(gai.NewClientParams{
			ChatModel:      cfg.ChatModel,
			EmbeddingModel: cfg.EmbedModel,
			EmbeddingDim:   cfg.EmbedDim,

			ChatURL:      cfg.ChatURL,
			ChatKey:      cfg.ChatKey,
			EmbeddingURL: cfg.EmbedURL,
			EmbeddingKey: cfg.EmbedKey,

			MaxConcurrentRequests: int64(cfg.ParallelAIReq),
			TimeoutMin:            cfg.AITimeoutMin,
		}), nil
	default:
		return nil, fmt.Errorf("unknown AI_ADAPTER %q", cfg.AIAdapter)
	}
}

// connectDB opens the pool and waits for the database to answer.
func connectDB(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	_, err = util.RetryWithBackoff(ctx, 8, 500*time.Millisecond, 10*time.Second, func(ctx context.Context) (struct{}, error) {
		err := pool.Ping(ctx)
		if err != nil {
			logger.Warn("[App] Database not ready", "err", err)
		}
		return struct{}{}, err
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return pool, nil
}
