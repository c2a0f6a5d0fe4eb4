package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lexgo/statute-consult/internal/core/domain"
	"github.com/lexgo/statute-consult/internal/core/ports"
)

const defaultEmbedBatchSize = 32

// BuildIndexUseCase is the offline pipeline: read every statute document,
// split it into article chunks, embed the chunks in batches and persist the
// index artifacts as a pair.
type BuildIndexUseCase struct {
	source    ports.StatuteSource
	chunker   ports.Chunker
	embedder  ports.Embedder
	persister ports.IndexPersister
	batchSize int
	logger    *slog.Logger
}

func NewBuildIndexUseCase(
	source ports.StatuteSource,
	chunker ports.Chunker,
	embedder ports.Embedder,
	persister ports.IndexPersister,
	batchSize int,
	logger *slog.Logger,
) *BuildIndexUseCase {
	if batchSize <= 0 {
		batchSize = defaultEmbedBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BuildIndexUseCase{
		source:    source,
		chunker:   chunker,
		embedder:  embedder,
		persister: persister,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Build runs the full pipeline. Documents that fail to read or produce no
// article chunks are logged and skipped; the rest of the corpus still
// indexes. A corpus that yields zero chunks overall is an error.
func (uc *BuildIndexUseCase) Build(ctx context.Context) (domain.BuildReport, error) {
	const op = "usecase.build_index"
	started := time.Now()

	var report domain.BuildReport

	names, err := uc.source.List(ctx)
	if err != nil {
		return report, fmt.Errorf("%s: %w", op, err)
	}

	var chunks []domain.StatuteChunk
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("%s: %w", op, err)
		}
		report.Documents++

		text, err := uc.source.Read(ctx, name)
		if err != nil {
			report.DroppedDocuments++
			uc.logger.Error("statute_read_failed", slog.String("file", name), slog.Any("error", err))
			continue
		}

		parts := uc.chunker.Split(text)
		if len(parts) == 0 {
			report.DroppedDocuments++
			uc.logger.Warn("no_article_markers", slog.String("file", name))
			continue
		}

		lawName := uc.chunker.LawName(name)
		for _, p := range parts {
			chunks = append(chunks, domain.StatuteChunk{
				Content:  p,
				Filename: name,
				LawName:  lawName,
			})
		}
		uc.logger.Info("statute_chunked",
			slog.String("file", name),
			slog.String("law", lawName),
			slog.Int("chunks", len(parts)),
		)
	}

	if len(chunks) == 0 {
		return report, fmt.Errorf("%s: %w", op, errors.New("no article chunks produced from corpus"))
	}
	report.Chunks = len(chunks)

	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += uc.batchSize {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("%s: %w", op, err)
		}
		end := start + uc.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Content)
		}

		batch, err := uc.embedder.Embed(ctx, texts)
		if err != nil {
			return report, fmt.Errorf("%s: embed batch at %d: %w", op, start, err)
		}
		if len(batch) != len(texts) {
			return report, fmt.Errorf("%s: embed batch at %d: got %d vectors for %d texts", op, start, len(batch), len(texts))
		}
		vectors = append(vectors, batch...)

		uc.logger.Info("embed_progress",
			slog.Int("embedded", len(vectors)),
			slog.Int("total", len(chunks)),
		)
	}

	dim, err := uc.persister.Persist(vectors, chunks)
	if err != nil {
		return report, fmt.Errorf("%s: %w", op, err)
	}
	report.Dimension = dim

	uc.logger.Info("index_built",
		slog.Int("documents", report.Documents),
		slog.Int("dropped_documents", report.DroppedDocuments),
		slog.Int("chunks", report.Chunks),
		slog.Int("dimension", report.Dimension),
		slog.Duration("took", time.Since(started)),
	)
	return report, nil
}
