package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lexgo/statute-consult/internal/core/domain"
	"github.com/lexgo/statute-consult/internal/core/ports"
)

const defaultTopK = 5

// RetrieveUseCase answers similarity queries against the statute index,
// optionally enriching the query with the session's current topic.
type RetrieveUseCase struct {
	embedder ports.Embedder
	index    ports.StatuteIndex
	topK     int
	logger   *slog.Logger
}

func NewRetrieveUseCase(embedder ports.Embedder, index ports.StatuteIndex, topK int, logger *slog.Logger) *RetrieveUseCase {
	if topK <= 0 {
		topK = defaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrieveUseCase{
		embedder: embedder,
		index:    index,
		topK:     topK,
		logger:   logger,
	}
}

func (uc *RetrieveUseCase) Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	return uc.SearchWithTopic(ctx, "", query, k)
}

func (uc *RetrieveUseCase) SearchWithTopic(ctx context.Context, topic, query string, k int) ([]domain.SearchResult, error) {
	const op = "usecase.retrieve"

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("empty query"))
	}
	if k <= 0 {
		k = uc.topK
	}

	enriched := query
	if topic = strings.TrimSpace(topic); topic != "" {
		enriched = topic + " " + query
	}

	vector, err := uc.embedder.EmbedQuery(ctx, enriched)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieval, op, err)
	}

	results, err := uc.index.Search(vector, k)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieval, op, err)
	}

	uc.logger.Debug("retrieval_done",
		slog.String("query", query),
		slog.Bool("topic_enriched", enriched != query),
		slog.Int("results", len(results)),
	)
	return results, nil
}
