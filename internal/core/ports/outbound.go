package ports

import (
	"context"

	"github.com/lexgo/statute-consult/internal/core/domain"
)

// Embedder builds vectors for statute chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits one statute document into article-level chunks.
type Chunker interface {
	Split(text string) []string
	LawName(filename string) string
}

// StatuteIndex is the nearest-neighbor index over chunk embeddings. The
// vector data and chunk metadata are a matched, position-aligned pair.
// Implementations are read-only after Load/Build and safe for concurrent
// search.
type StatuteIndex interface {
	Search(queryVector []float32, k int) ([]domain.SearchResult, error)
	Len() int
}

// AnswerGenerator creates user-facing answers and conversation summaries.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question, history, fragments string) (string, error)
	GenerateSummary(ctx context.Context, conversation, keyPoints string) (string, error)
}

// SessionStore owns the session table. WithSession serializes whole turns
// per session id; distinct ids never block each other.
type SessionStore interface {
	// WithSession runs fn under the session's lock, creating an empty
	// context when create is true and the id is unknown. Returns
	// domain.ErrSessionNotFound when create is false and the id is unknown.
	WithSession(sessionID string, create bool, fn func(*domain.ConversationContext) error) error
	Reset(sessionID string) error
	Delete(sessionID string) error
	List() []domain.SessionInfo
}

// ReindexQueue carries rebuild requests from the API to the indexer.
type ReindexQueue interface {
	PublishReindexRequested(ctx context.Context, reason string) error
	SubscribeReindexRequested(ctx context.Context, handler func(context.Context, string) error) error
}

// SessionArchive persists a session transcript on explicit export.
type SessionArchive interface {
	ExportSession(ctx context.Context, snapshot domain.ConversationContext) error
}

// StatuteSource lists and reads raw statute documents for indexing.
type StatuteSource interface {
	List(ctx context.Context) ([]string, error)
	Read(ctx context.Context, filename string) (string, error)
}

// IndexPersister builds the index over the finished chunk/vector pair and
// writes both artifacts together. Returns the vector dimension.
type IndexPersister interface {
	Persist(vectors [][]float32, chunks []domain.StatuteChunk) (int, error)
}
