package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/lexgo/statute-consult/internal/core/domain"
	"github.com/lexgo/statute-consult/internal/core/ports"
)

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]*domain.ConversationContext
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: map[string]*domain.ConversationContext{}}
}

func (f *fakeSessions) WithSession(sessionID string, create bool, fn func(*domain.ConversationContext) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.sessions[sessionID]
	if !ok {
		if !create {
			return domain.WrapError(domain.ErrSessionNotFound, "lookup session", errors.New("no session "+sessionID))
		}
		c = domain.NewConversationContext(sessionID)
		f.sessions[sessionID] = c
	}
	return fn(c)
}

func (f *fakeSessions) Reset(sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[sessionID]; !ok {
		return domain.WrapError(domain.ErrSessionNotFound, "reset session", errors.New("no session "+sessionID))
	}
	f.sessions[sessionID] = domain.NewConversationContext(sessionID)
	return nil
}

func (f *fakeSessions) Delete(sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[sessionID]; !ok {
		return domain.WrapError(domain.ErrSessionNotFound, "delete session", errors.New("no session "+sessionID))
	}
	delete(f.sessions, sessionID)
	return nil
}

func (f *fakeSessions) List() []domain.SessionInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	var infos []domain.SessionInfo
	for id, c := range f.sessions {
		infos = append(infos, domain.SessionInfo{SessionID: id, MessageCount: len(c.History)})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].SessionID < infos[j].SessionID })
	return infos
}

type fakeTopicRetriever struct {
	lastTopic string
	lastQuery string
	lastK     int
	results   []domain.SearchResult
	err       error
}

func (f *fakeTopicRetriever) SearchWithTopic(_ context.Context, topic, query string, k int) ([]domain.SearchResult, error) {
	f.lastTopic = topic
	f.lastQuery = query
	f.lastK = k
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeGenerator struct {
	answer       string
	answerErr    error
	answerCalls  int
	lastQuestion string
	lastHistory  string
	lastFrags    string

	summary      string
	summaryErr   error
	summaryCalls int
	lastConvo    string
	lastPoints   string
}

func (f *fakeGenerator) GenerateAnswer(_ context.Context, question, history, fragments string) (string, error) {
	f.answerCalls++
	f.lastQuestion = question
	f.lastHistory = history
	f.lastFrags = fragments
	if f.answerErr != nil {
		return "", f.answerErr
	}
	return f.answer, nil
}

func (f *fakeGenerator) GenerateSummary(_ context.Context, conversation, keyPoints string) (string, error) {
	f.summaryCalls++
	f.lastConvo = conversation
	f.lastPoints = keyPoints
	if f.summaryErr != nil {
		return "", f.summaryErr
	}
	return f.summary, nil
}

type fakeArchive struct {
	exported []domain.ConversationContext
	err      error
}

func (f *fakeArchive) ExportSession(_ context.Context, snapshot domain.ConversationContext) error {
	if f.err != nil {
		return f.err
	}
	f.exported = append(f.exported, snapshot)
	return nil
}

func newConsult(r TopicRetriever, g *fakeGenerator, s *fakeSessions, a ports.SessionArchive) *ConsultUseCase {
	return NewConsultUseCase(r, g, s, a, 5, 3, nil)
}

func TestQueryStartsSessionWhenIDEmpty(t *testing.T) {
	sessions := newFakeSessions()
	gen := &fakeGenerator{answer: "an answer"}
	uc := newConsult(&fakeTopicRetriever{}, gen, sessions, nil)

	ans, err := uc.Query(context.Background(), "what is a lease", "", "")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if ans.SessionID == "" {
		t.Fatal("expected generated session id")
	}
	if ans.Answer != "an answer" {
		t.Fatalf("answer = %q", ans.Answer)
	}
	if ans.Timestamp == "" {
		t.Fatal("expected timestamp")
	}

	c := sessions.sessions[ans.SessionID]
	if c == nil {
		t.Fatal("session not created")
	}
	if len(c.History) != 2 {
		t.Fatalf("history length = %d, want 2", len(c.History))
	}
	if c.History[0].Role != domain.RoleUser || c.History[0].Content != "what is a lease" {
		t.Fatalf("first message = %+v", c.History[0])
	}
	if c.History[1].Role != domain.RoleAssistant || c.History[1].Content != "an answer" {
		t.Fatalf("second message = %+v", c.History[1])
	}
}

func TestQueryPassesTopicHistoryAndFragments(t *testing.T) {
	sessions := newFakeSessions()
	sessions.sessions["s-1"] = domain.NewConversationContext("s-1")
	prior := sessions.sessions["s-1"]
	prior.Append(domain.RoleUser, "first question")
	prior.Append(domain.RoleAssistant, "first answer")

	ret := &fakeTopicRetriever{results: []domain.SearchResult{
		{Content: "Article 1 text"},
		{Content: strings.Repeat("長", 600)},
	}}
	gen := &fakeGenerator{answer: "next answer"}
	uc := newConsult(ret, gen, sessions, nil)

	if _, err := uc.Query(context.Background(), "second question", "s-1", "tenancy"); err != nil {
		t.Fatalf("query: %v", err)
	}

	if ret.lastTopic != "tenancy" || ret.lastQuery != "second question" || ret.lastK != 5 {
		t.Fatalf("retriever call = topic %q query %q k %d", ret.lastTopic, ret.lastQuery, ret.lastK)
	}
	if gen.lastHistory != "user: first question\nassistant: first answer\n" {
		t.Fatalf("history = %q", gen.lastHistory)
	}
	fragParts := strings.Split(gen.lastFrags, "\n\n")
	if len(fragParts) != 2 {
		t.Fatalf("fragments = %d", len(fragParts))
	}
	if fragParts[0] != "Article 1 text" {
		t.Fatalf("fragment[0] = %q", fragParts[0])
	}
	if got := len([]rune(fragParts[1])); got != 500 {
		t.Fatalf("fragment[1] rune length = %d, want 500", got)
	}

	if prior.CurrentTopic != "tenancy" {
		t.Fatalf("topic = %q", prior.CurrentTopic)
	}
	if prior.LastQuery != "second question" {
		t.Fatalf("last query = %q", prior.LastQuery)
	}
}

func TestQueryEmptyQuestion(t *testing.T) {
	uc := newConsult(&fakeTopicRetriever{}, &fakeGenerator{}, newFakeSessions(), nil)

	_, err := uc.Query(context.Background(), "  ", "", "")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want invalid input kind", err)
	}
}

func TestQueryRetrievalFailureLeavesSessionClean(t *testing.T) {
	sessions := newFakeSessions()
	ret := &fakeTopicRetriever{err: domain.WrapError(domain.ErrRetrieval, "usecase.retrieve", errors.New("index error"))}
	gen := &fakeGenerator{}
	uc := newConsult(ret, gen, sessions, nil)

	_, err := uc.Query(context.Background(), "question", "s-1", "")
	if !domain.IsKind(err, domain.ErrRetrieval) {
		t.Fatalf("err = %v, want retrieval kind", err)
	}
	if gen.answerCalls != 0 {
		t.Fatalf("generator called %d times", gen.answerCalls)
	}
	c := sessions.sessions["s-1"]
	if len(c.History) != 0 || len(c.RetrievedContext) != 0 || c.LastQuery != "" {
		t.Fatalf("session mutated after retrieval failure: %+v", c)
	}
}

func TestQueryGenerationFailureCommitsRetrievalOnly(t *testing.T) {
	sessions := newFakeSessions()
	ret := &fakeTopicRetriever{results: []domain.SearchResult{{Content: "Article 9"}}}
	gen := &fakeGenerator{answerErr: errors.New("model unavailable")}
	uc := newConsult(ret, gen, sessions, nil)

	_, err := uc.Query(context.Background(), "question", "s-1", "")
	if !domain.IsKind(err, domain.ErrGeneration) {
		t.Fatalf("err = %v, want generation kind", err)
	}

	c := sessions.sessions["s-1"]
	if len(c.History) != 0 {
		t.Fatalf("history length = %d, want 0 after failed generation", len(c.History))
	}
	if len(c.RetrievedContext) != 1 || c.RetrievedContext[0] != "Article 9" {
		t.Fatalf("retrieved context = %v", c.RetrievedContext)
	}
	if c.LastQuery != "question" {
		t.Fatalf("last query = %q", c.LastQuery)
	}
}

func TestSummaryEmptyHistoryShortCircuits(t *testing.T) {
	sessions := newFakeSessions()
	sessions.sessions["s-1"] = domain.NewConversationContext("s-1")
	gen := &fakeGenerator{summary: "should not be used"}
	uc := newConsult(&fakeTopicRetriever{}, gen, sessions, nil)

	got, err := uc.Summary(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if got != NoConversationSummary {
		t.Fatalf("summary = %q", got)
	}
	if gen.summaryCalls != 0 {
		t.Fatalf("generator called %d times for empty history", gen.summaryCalls)
	}
}

func TestSummaryUsesHistoryAndKeyPoints(t *testing.T) {
	sessions := newFakeSessions()
	c := domain.NewConversationContext("s-1")
	c.Append(domain.RoleUser, "q1")
	c.Append(domain.RoleAssistant, "a1")
	c.RetrievedContext = []string{"p1", "p2", "p3", "p4"}
	sessions.sessions["s-1"] = c

	gen := &fakeGenerator{summary: "the summary"}
	uc := newConsult(&fakeTopicRetriever{}, gen, sessions, nil)

	got, err := uc.Summary(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if got != "the summary" {
		t.Fatalf("summary = %q", got)
	}
	if gen.lastConvo != "user: q1\nassistant: a1\n" {
		t.Fatalf("conversation = %q", gen.lastConvo)
	}
	if gen.lastPoints != "p1\np2\np3" {
		t.Fatalf("key points = %q", gen.lastPoints)
	}
}

func TestSummaryUnknownSession(t *testing.T) {
	uc := newConsult(&fakeTopicRetriever{}, &fakeGenerator{}, newFakeSessions(), nil)

	_, err := uc.Summary(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrSessionNotFound) {
		t.Fatalf("err = %v, want session not found kind", err)
	}
}

func TestResetThenQueryStartsSingleTurn(t *testing.T) {
	sessions := newFakeSessions()
	gen := &fakeGenerator{answer: "a"}
	uc := newConsult(&fakeTopicRetriever{}, gen, sessions, nil)

	for i := 0; i < 3; i++ {
		if _, err := uc.Query(context.Background(), "question", "s-1", ""); err != nil {
			t.Fatalf("query %d: %v", i, err)
		}
	}
	if err := uc.Reset(context.Background(), "s-1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := uc.Query(context.Background(), "fresh question", "s-1", ""); err != nil {
		t.Fatalf("query after reset: %v", err)
	}

	c := sessions.sessions["s-1"]
	if len(c.History) != 2 {
		t.Fatalf("history length after reset+query = %d, want 2", len(c.History))
	}
	if c.History[0].Content != "fresh question" {
		t.Fatalf("first message after reset = %q", c.History[0].Content)
	}
}

func TestDeleteAndList(t *testing.T) {
	sessions := newFakeSessions()
	gen := &fakeGenerator{answer: "a"}
	uc := newConsult(&fakeTopicRetriever{}, gen, sessions, nil)

	for _, id := range []string{"s-a", "s-b"} {
		if _, err := uc.Query(context.Background(), "q", id, ""); err != nil {
			t.Fatalf("query %s: %v", id, err)
		}
	}
	if err := uc.Delete(context.Background(), "s-a"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	infos := uc.ListSessions(context.Background())
	if len(infos) != 1 || infos[0].SessionID != "s-b" {
		t.Fatalf("list = %+v", infos)
	}
	if infos[0].MessageCount != 2 {
		t.Fatalf("message count = %d", infos[0].MessageCount)
	}
}

func TestExportSnapshotsSession(t *testing.T) {
	sessions := newFakeSessions()
	c := domain.NewConversationContext("s-1")
	c.Append(domain.RoleUser, "q1")
	c.Append(domain.RoleAssistant, "a1")
	c.RetrievedContext = []string{"p1"}
	sessions.sessions["s-1"] = c

	archive := &fakeArchive{}
	uc := newConsult(&fakeTopicRetriever{}, &fakeGenerator{}, sessions, archive)

	if err := uc.Export(context.Background(), "s-1"); err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(archive.exported) != 1 {
		t.Fatalf("exports = %d", len(archive.exported))
	}
	snap := archive.exported[0]
	if snap.SessionID != "s-1" || len(snap.History) != 2 || len(snap.RetrievedContext) != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}

	// The snapshot must not alias live session state.
	c.Append(domain.RoleUser, "q2")
	if len(archive.exported[0].History) != 2 {
		t.Fatal("snapshot aliases live history")
	}
}

func TestExportWithoutArchive(t *testing.T) {
	sessions := newFakeSessions()
	sessions.sessions["s-1"] = domain.NewConversationContext("s-1")
	uc := NewConsultUseCase(&fakeTopicRetriever{}, &fakeGenerator{}, sessions, nil, 5, 3, nil)

	if err := uc.Export(context.Background(), "s-1"); err == nil {
		t.Fatal("expected error when archive is not configured")
	}
}
