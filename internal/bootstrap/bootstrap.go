// Package bootstrap wires infrastructure into the use cases for each binary.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lexgo/statute-consult/internal/config"
	"github.com/lexgo/statute-consult/internal/core/ports"
	"github.com/lexgo/statute-consult/internal/core/usecase"
	"github.com/lexgo/statute-consult/internal/infrastructure/chunking"
	"github.com/lexgo/statute-consult/internal/infrastructure/llm/openaicompat"
	"github.com/lexgo/statute-consult/internal/infrastructure/queue/nats"
	"github.com/lexgo/statute-consult/internal/infrastructure/repository/postgres"
	"github.com/lexgo/statute-consult/internal/infrastructure/resilience"
	"github.com/lexgo/statute-consult/internal/infrastructure/session"
	"github.com/lexgo/statute-consult/internal/infrastructure/storage/localfs"
	"github.com/lexgo/statute-consult/internal/infrastructure/vector/flat"
)

// API holds the wired dependencies of the consultation server.
type API struct {
	Config config.Config

	ConsultUC  ports.ConsultationService
	SearchUC   ports.StatuteSearchService
	Queue      ports.ReindexQueue
	IndexSize  int
	SessionLen func() int

	closeFn func()
}

// NewAPI loads the index artifacts and wires the serving path. A missing
// index pair is fatal: the server refuses to start without artifacts.
func NewAPI(ctx context.Context, cfg config.Config, logger *slog.Logger) (*API, error) {
	index, err := flat.Load(cfg.IndexPath, cfg.MetadataPath)
	if err != nil {
		return nil, fmt.Errorf("load statute index: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	llm := openaicompat.New(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMGenModel, cfg.LLMEmbedModel, executor)
	embedder := openaicompat.NewEmbedder(llm)
	generator := openaicompat.NewGenerator(llm)

	store := session.NewStore()

	var archive ports.SessionArchive
	var closeDB func()
	if cfg.PostgresDSN != "" {
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		pgArchive := postgres.NewSessionArchive(db)
		if err := pgArchive.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure archive schema: %w", err)
		}
		archive = pgArchive
		closeDB = func() { _ = db.Close() }
	}

	var queue ports.ReindexQueue
	var closeQueue func()
	if cfg.NATSURL != "" {
		q, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			logger.Warn("reindex queue unavailable", slog.Any("error", err))
		} else {
			queue = q
			closeQueue = q.Close
		}
	}

	retrieveUC := usecase.NewRetrieveUseCase(embedder, index, cfg.TopK, logger)
	consultUC := usecase.NewConsultUseCase(retrieveUC, generator, store, archive, cfg.TopK, cfg.WindowPairs, logger)

	return &API{
		Config:     cfg,
		ConsultUC:  consultUC,
		SearchUC:   retrieveUC,
		Queue:      queue,
		IndexSize:  index.Len(),
		SessionLen: store.Count,

		closeFn: func() {
			if closeQueue != nil {
				closeQueue()
			}
			if closeDB != nil {
				closeDB()
			}
		},
	}, nil
}

func (a *API) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// Indexer holds the wired dependencies of the index build daemon.
type Indexer struct {
	Config config.Config

	BuildUC ports.IndexBuilder
	Queue   *nats.Queue

	closeFn func()
}

func NewIndexer(_ context.Context, cfg config.Config, logger *slog.Logger) (*Indexer, error) {
	source, err := localfs.New(cfg.StatutesDir)
	if err != nil {
		return nil, fmt.Errorf("init statute source: %w", err)
	}

	chunker, err := chunking.NewArticleSplitter(cfg.MarkerPattern, cfg.LawNameSuffix)
	if err != nil {
		return nil, fmt.Errorf("init article splitter: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	llm := openaicompat.New(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMGenModel, cfg.LLMEmbedModel, executor)
	embedder := openaicompat.NewEmbedder(llm)

	persister := flat.NewPersister(cfg.IndexPath, cfg.MetadataPath)
	buildUC := usecase.NewBuildIndexUseCase(source, chunker, embedder, persister, cfg.EmbedBatchSize, logger)

	var queue *nats.Queue
	var closeQueue func()
	if cfg.NATSURL != "" {
		q, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			logger.Warn("reindex queue unavailable", slog.Any("error", err))
		} else {
			queue = q
			closeQueue = q.Close
		}
	}

	return &Indexer{
		Config:  cfg,
		BuildUC: buildUC,
		Queue:   queue,

		closeFn: func() {
			if closeQueue != nil {
				closeQueue()
			}
		},
	}, nil
}

func (ix *Indexer) Close() {
	if ix.closeFn != nil {
		ix.closeFn()
	}
}
