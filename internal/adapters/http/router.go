// Package httpadapter exposes the consultation service over HTTP.
package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/lexgo/statute-consult/internal/core/domain"
	"github.com/lexgo/statute-consult/internal/core/ports"
	"github.com/lexgo/statute-consult/internal/observability/metrics"
)

const serviceName = "statute-consult-api"

type Options struct {
	RateLimitRPS   float64
	RateLimitBurst int
	MaxInFlight    int
	MaxWait        time.Duration
}

type Router struct {
	consult ports.ConsultationService
	search  ports.StatuteSearchService
	queue   ports.ReindexQueue
	metrics *metrics.HTTPServerMetrics
	opts    Options
}

func NewRouter(
	consult ports.ConsultationService,
	search ports.StatuteSearchService,
	queue ports.ReindexQueue,
	m *metrics.HTTPServerMetrics,
	opts Options,
) *Router {
	if opts.MaxWait <= 0 {
		opts.MaxWait = 2 * time.Second
	}
	return &Router{
		consult: consult,
		search:  search,
		queue:   queue,
		metrics: m,
		opts:    opts,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/consult/query", rt.consultQuery)
	mux.HandleFunc("/v1/search", rt.searchStatutes)
	mux.HandleFunc("/v1/sessions", rt.listSessions)
	mux.HandleFunc("/v1/sessions/", rt.sessionSubresource)
	mux.HandleFunc("/v1/admin/reindex", rt.requestReindex)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.opts.MaxInFlight, rt.opts.MaxWait)
	handler = rateLimitMiddleware(handler, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) consultQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Question  string `json:"question"`
		SessionID string `json:"session_id"`
		Topic     string `json:"topic"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	start := time.Now()
	answer, err := rt.consult.Query(r.Context(), req.Question, req.SessionID, req.Topic)
	if err != nil {
		rt.recordTurn("/v1/consult/query", "error", time.Since(start))
		writeError(w, err)
		return
	}
	rt.recordTurn("/v1/consult/query", "success", time.Since(start))

	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) searchStatutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Query string `json:"query"`
		TopK  int    `json:"top_k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	results, err := rt.search.Search(r.Context(), req.Query, req.TopK)
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordConsultTurn(serviceName, "/v1/search", "success", len(results), 0)
	}
	if results == nil {
		results = []domain.SearchResult{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results, "total": len(results)})
}

func (rt *Router) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	infos := rt.consult.ListSessions(r.Context())
	if infos == nil {
		infos = []domain.SessionInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": infos})
}

// sessionSubresource routes /v1/sessions/{session_id} and its actions:
// GET summary, POST reset, POST export, DELETE on the bare id.
func (rt *Router) sessionSubresource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
	sessionID, action, _ := strings.Cut(rest, "/")
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session id is required"})
		return
	}

	switch action {
	case "":
		if r.Method != http.MethodDelete {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}
		if err := rt.consult.Delete(r.Context(), sessionID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "session_id": sessionID})

	case "summary":
		if r.Method != http.MethodGet {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}
		summary, err := rt.consult.Summary(r.Context(), sessionID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"summary": summary, "session_id": sessionID})

	case "reset":
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}
		if err := rt.consult.Reset(r.Context(), sessionID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "reset", "session_id": sessionID})

	case "export":
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}
		if err := rt.consult.Export(r.Context(), sessionID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "exported", "session_id": sessionID})

	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown session action"})
	}
}

func (rt *Router) requestReindex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if rt.queue == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "reindex queue is not configured"})
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Reason == "" {
		req.Reason = "manual"
	}

	if err := rt.queue.PublishReindexRequested(r.Context(), req.Reason); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "reindex requested"})
}

func (rt *Router) recordTurn(endpoint, status string, took time.Duration) {
	if rt.metrics == nil {
		return
	}
	// Fragment counts live in the session, not the response; -1 skips the
	// histogram and keeps the counter.
	rt.metrics.RecordConsultTurn(serviceName, endpoint, status, -1, took)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
