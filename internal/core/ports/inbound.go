package ports

import (
	"context"

	"github.com/lexgo/statute-consult/internal/core/domain"
)

// ConsultationService is the inbound contract for the multi-turn
// query/answer/summarize protocol.
type ConsultationService interface {
	Query(ctx context.Context, question, sessionID, topic string) (domain.ConsultationAnswer, error)
	Summary(ctx context.Context, sessionID string) (string, error)
	Reset(ctx context.Context, sessionID string) error
	Delete(ctx context.Context, sessionID string) error
	ListSessions(ctx context.Context) []domain.SessionInfo
	Export(ctx context.Context, sessionID string) error
}

// StatuteSearchService is the inbound contract for raw fragment search.
type StatuteSearchService interface {
	Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error)
}

// IndexBuilder is the inbound contract for the offline indexing pipeline.
type IndexBuilder interface {
	Build(ctx context.Context) (domain.BuildReport, error)
}
