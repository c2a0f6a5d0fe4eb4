package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lexgo/statute-consult/internal/core/domain"
	"github.com/lexgo/statute-consult/internal/core/ports"
)

// NoConversationSummary is returned by Summary for sessions without any
// completed turns. The generator is not called in that case.
const NoConversationSummary = "No conversation history yet."

const fragmentRuneLimit = 500

// TopicRetriever is the retrieval dependency of the orchestrator.
type TopicRetriever interface {
	SearchWithTopic(ctx context.Context, topic, query string, k int) ([]domain.SearchResult, error)
}

// ConsultUseCase drives the multi-turn consultation protocol: it owns the
// session table interaction, retrieval enrichment and answer generation.
type ConsultUseCase struct {
	retriever   TopicRetriever
	generator   ports.AnswerGenerator
	sessions    ports.SessionStore
	archive     ports.SessionArchive
	topK        int
	windowPairs int
	logger      *slog.Logger
}

func NewConsultUseCase(
	retriever TopicRetriever,
	generator ports.AnswerGenerator,
	sessions ports.SessionStore,
	archive ports.SessionArchive,
	topK int,
	windowPairs int,
	logger *slog.Logger,
) *ConsultUseCase {
	if topK <= 0 {
		topK = defaultTopK
	}
	if windowPairs <= 0 {
		windowPairs = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsultUseCase{
		retriever:   retriever,
		generator:   generator,
		sessions:    sessions,
		archive:     archive,
		topK:        topK,
		windowPairs: windowPairs,
		logger:      logger,
	}
}

// Query runs one consultation turn. An empty sessionID starts a fresh
// session. Retrieved fragments are committed to the session before the
// generator runs, so a failed generation still leaves the retrieval state
// behind; the question/answer pair is appended only after the generator
// succeeds.
func (uc *ConsultUseCase) Query(ctx context.Context, question, sessionID, topic string) (domain.ConsultationAnswer, error) {
	const op = "usecase.consult.query"

	question = strings.TrimSpace(question)
	if question == "" {
		return domain.ConsultationAnswer{}, domain.WrapError(domain.ErrInvalidInput, op, errors.New("empty question"))
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	var answer string
	err := uc.sessions.WithSession(sessionID, true, func(c *domain.ConversationContext) error {
		if topic = strings.TrimSpace(topic); topic != "" {
			c.CurrentTopic = topic
		}

		results, err := uc.retriever.SearchWithTopic(ctx, c.CurrentTopic, question, uc.topK)
		if err != nil {
			return err
		}

		c.RetrievedContext = c.RetrievedContext[:0]
		for _, r := range results {
			c.RetrievedContext = append(c.RetrievedContext, truncateRunes(r.Content, fragmentRuneLimit))
		}
		c.LastQuery = question

		history := c.RecentWindow(uc.windowPairs)
		fragments := strings.Join(c.RetrievedContext, "\n\n")
		text, err := uc.generator.GenerateAnswer(ctx, question, history, fragments)
		if err != nil {
			return domain.WrapError(domain.ErrGeneration, op, err)
		}

		c.Append(domain.RoleUser, question)
		c.Append(domain.RoleAssistant, text)
		answer = text
		return nil
	})
	if err != nil {
		return domain.ConsultationAnswer{}, err
	}

	uc.logger.Info("consultation_turn",
		slog.String("session_id", sessionID),
		slog.Int("answer_len", len(answer)),
	)
	return domain.ConsultationAnswer{
		Answer:    answer,
		SessionID: sessionID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// Summary produces a conversation summary for an existing session.
func (uc *ConsultUseCase) Summary(ctx context.Context, sessionID string) (string, error) {
	const op = "usecase.consult.summary"

	var summary string
	err := uc.sessions.WithSession(sessionID, false, func(c *domain.ConversationContext) error {
		if len(c.History) == 0 {
			summary = NoConversationSummary
			return nil
		}

		var sb strings.Builder
		for _, m := range c.History {
			fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
		}
		keyPoints := c.RetrievedContext
		if len(keyPoints) > 3 {
			keyPoints = keyPoints[:3]
		}

		text, err := uc.generator.GenerateSummary(ctx, sb.String(), strings.Join(keyPoints, "\n"))
		if err != nil {
			return domain.WrapError(domain.ErrGeneration, op, err)
		}
		summary = text
		return nil
	})
	if err != nil {
		return "", err
	}
	return summary, nil
}

// Reset clears an existing session back to its initial state.
func (uc *ConsultUseCase) Reset(_ context.Context, sessionID string) error {
	return uc.sessions.Reset(sessionID)
}

// Delete removes a session entirely.
func (uc *ConsultUseCase) Delete(_ context.Context, sessionID string) error {
	return uc.sessions.Delete(sessionID)
}

// ListSessions reports all live sessions.
func (uc *ConsultUseCase) ListSessions(_ context.Context) []domain.SessionInfo {
	return uc.sessions.List()
}

// Export snapshots a session under its lock and hands the copy to the
// archive. Re-exporting the same session overwrites the archived copy.
func (uc *ConsultUseCase) Export(ctx context.Context, sessionID string) error {
	const op = "usecase.consult.export"

	if uc.archive == nil {
		return fmt.Errorf("%s: session archive is not configured", op)
	}

	var snapshot domain.ConversationContext
	err := uc.sessions.WithSession(sessionID, false, func(c *domain.ConversationContext) error {
		snapshot = *c
		snapshot.History = append([]domain.Message(nil), c.History...)
		snapshot.RetrievedContext = append([]string(nil), c.RetrievedContext...)
		return nil
	})
	if err != nil {
		return err
	}
	return uc.archive.ExportSession(ctx, snapshot)
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
