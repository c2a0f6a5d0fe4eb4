package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lexgo/statute-consult/internal/core/domain"
	"github.com/lexgo/statute-consult/internal/core/ports"
)

type fakeConsultService struct {
	answer     domain.ConsultationAnswer
	queryErr   error
	lastTopic  string
	summary    string
	summaryErr error
	resetErr   error
	deleteErr  error
	exportErr  error
	exported   []string
	sessions   []domain.SessionInfo
}

func (f *fakeConsultService) Query(_ context.Context, question, sessionID, topic string) (domain.ConsultationAnswer, error) {
	f.lastTopic = topic
	if f.queryErr != nil {
		return domain.ConsultationAnswer{}, f.queryErr
	}
	ans := f.answer
	if ans.SessionID == "" {
		ans.SessionID = sessionID
	}
	_ = question
	return ans, nil
}

func (f *fakeConsultService) Summary(_ context.Context, sessionID string) (string, error) {
	if f.summaryErr != nil {
		return "", f.summaryErr
	}
	_ = sessionID
	return f.summary, nil
}

func (f *fakeConsultService) Reset(_ context.Context, _ string) error  { return f.resetErr }
func (f *fakeConsultService) Delete(_ context.Context, _ string) error { return f.deleteErr }

func (f *fakeConsultService) ListSessions(_ context.Context) []domain.SessionInfo {
	return f.sessions
}

func (f *fakeConsultService) Export(_ context.Context, sessionID string) error {
	if f.exportErr != nil {
		return f.exportErr
	}
	f.exported = append(f.exported, sessionID)
	return nil
}

type fakeSearchService struct {
	results []domain.SearchResult
	err     error
}

func (f *fakeSearchService) Search(_ context.Context, _ string, _ int) ([]domain.SearchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeQueue struct {
	published []string
	err       error
}

func (f *fakeQueue) PublishReindexRequested(_ context.Context, reason string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, reason)
	return nil
}

func (f *fakeQueue) SubscribeReindexRequested(_ context.Context, _ func(context.Context, string) error) error {
	return nil
}

func newTestRouter(consult *fakeConsultService, search *fakeSearchService, queue *fakeQueue) http.Handler {
	var q ports.ReindexQueue
	if queue != nil {
		q = queue
	}
	rt := NewRouter(consult, search, q, nil, Options{})
	return rt.Handler()
}

func postJSON(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestConsultQueryReturnsAnswer(t *testing.T) {
	consult := &fakeConsultService{answer: domain.ConsultationAnswer{
		Answer:    "per article 12 the lease stands",
		SessionID: "s-1",
		Timestamp: "2026-01-02T03:04:05Z",
	}}
	handler := newTestRouter(consult, &fakeSearchService{}, nil)

	res := postJSON(t, handler, "/v1/consult/query", `{"question":"lease question","topic":"tenancy"}`)
	if res.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", res.Code, res.Body.String())
	}
	if consult.lastTopic != "tenancy" {
		t.Fatalf("topic passed = %q", consult.lastTopic)
	}

	var resp domain.ConsultationAnswer
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SessionID != "s-1" || resp.Answer == "" {
		t.Fatalf("response = %+v", resp)
	}
}

func TestConsultQueryBadJSON(t *testing.T) {
	handler := newTestRouter(&fakeConsultService{}, &fakeSearchService{}, nil)

	res := postJSON(t, handler, "/v1/consult/query", `{"question":`)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", res.Code)
	}
}

func TestConsultQueryMethodNotAllowed(t *testing.T) {
	handler := newTestRouter(&fakeConsultService{}, &fakeSearchService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/consult/query", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", res.Code)
	}
}

func TestErrorKindsMapToStatuses(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", domain.WrapError(domain.ErrInvalidInput, "q", errors.New("empty")), http.StatusBadRequest},
		{"session missing", domain.WrapError(domain.ErrSessionNotFound, "q", errors.New("gone")), http.StatusNotFound},
		{"index missing", domain.WrapError(domain.ErrIndexNotFound, "q", errors.New("no artifacts")), http.StatusServiceUnavailable},
		{"temporary", domain.WrapError(domain.ErrTemporary, "q", errors.New("overloaded")), http.StatusServiceUnavailable},
		{"retrieval", domain.WrapError(domain.ErrRetrieval, "q", errors.New("embed down")), http.StatusBadGateway},
		{"generation", domain.WrapError(domain.ErrGeneration, "q", errors.New("model down")), http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := newTestRouter(&fakeConsultService{queryErr: tc.err}, &fakeSearchService{}, nil)
			res := postJSON(t, handler, "/v1/consult/query", `{"question":"q"}`)
			if res.Code != tc.want {
				t.Fatalf("status = %d, want %d", res.Code, tc.want)
			}
			if !strings.Contains(res.Body.String(), "error") {
				t.Fatalf("body = %s", res.Body.String())
			}
		})
	}
}

func TestSearchReturnsResults(t *testing.T) {
	search := &fakeSearchService{results: []domain.SearchResult{
		{Content: "Article 3", Filename: "civil.txt", LawName: "civil", Score: 0.5, Distance: 1.0},
	}}
	handler := newTestRouter(&fakeConsultService{}, search, nil)

	res := postJSON(t, handler, "/v1/search", `{"query":"lease","top_k":3}`)
	if res.Code != http.StatusOK {
		t.Fatalf("status = %d", res.Code)
	}

	var resp struct {
		Results []domain.SearchResult `json:"results"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].LawName != "civil" {
		t.Fatalf("results = %+v", resp.Results)
	}
}

func TestListSessions(t *testing.T) {
	consult := &fakeConsultService{sessions: []domain.SessionInfo{
		{SessionID: "a", MessageCount: 4},
		{SessionID: "b", MessageCount: 2},
	}}
	handler := newTestRouter(consult, &fakeSearchService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("status = %d", res.Code)
	}

	var resp struct {
		Sessions []domain.SessionInfo `json:"sessions"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Sessions) != 2 {
		t.Fatalf("sessions = %+v", resp.Sessions)
	}
}

func TestSessionActions(t *testing.T) {
	consult := &fakeConsultService{summary: "two questions about leases"}
	handler := newTestRouter(consult, &fakeSearchService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/s-1/summary", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), "two questions") {
		t.Fatalf("summary: %d %s", res.Code, res.Body.String())
	}

	res = postJSON(t, handler, "/v1/sessions/s-1/reset", "")
	if res.Code != http.StatusOK {
		t.Fatalf("reset: %d", res.Code)
	}

	res = postJSON(t, handler, "/v1/sessions/s-1/export", "")
	if res.Code != http.StatusOK {
		t.Fatalf("export: %d", res.Code)
	}
	if len(consult.exported) != 1 || consult.exported[0] != "s-1" {
		t.Fatalf("exported = %v", consult.exported)
	}

	req = httptest.NewRequest(http.MethodDelete, "/v1/sessions/s-1", nil)
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("delete: %d", res.Code)
	}
}

func TestSessionUnknownAction(t *testing.T) {
	handler := newTestRouter(&fakeConsultService{}, &fakeSearchService{}, nil)

	res := postJSON(t, handler, "/v1/sessions/s-1/frobnicate", "")
	if res.Code != http.StatusNotFound {
		t.Fatalf("status = %d", res.Code)
	}
}

func TestReindexPublishes(t *testing.T) {
	queue := &fakeQueue{}
	handler := newTestRouter(&fakeConsultService{}, &fakeSearchService{}, queue)

	res := postJSON(t, handler, "/v1/admin/reindex", `{"reason":"new statutes"}`)
	if res.Code != http.StatusAccepted {
		t.Fatalf("status = %d", res.Code)
	}
	if len(queue.published) != 1 || queue.published[0] != "new statutes" {
		t.Fatalf("published = %v", queue.published)
	}
}

func TestReindexWithoutQueue(t *testing.T) {
	handler := newTestRouter(&fakeConsultService{}, &fakeSearchService{}, nil)

	res := postJSON(t, handler, "/v1/admin/reindex", "")
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", res.Code)
	}
}

func TestHealthz(t *testing.T) {
	handler := newTestRouter(&fakeConsultService{}, &fakeSearchService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("status = %d", res.Code)
	}
	if res.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected request id header")
	}
}
