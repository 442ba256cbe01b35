package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prismlab/course-tutor/internal/core/domain"
	"github.com/prismlab/course-tutor/internal/core/ports"
	"github.com/prismlab/course-tutor/internal/observability/metrics"
)

type Router struct {
	service     string
	tutor       ports.TutorService
	httpMetrics *metrics.HTTPServerMetrics
	logger      *slog.Logger
}

func NewRouter(service string, tutor ports.TutorService, httpMetrics *metrics.HTTPServerMetrics, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Router{
		service:     service,
		tutor:       tutor,
		httpMetrics: httpMetrics,
		logger:      logger,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/ask", rt.ask)
	mux.HandleFunc("/v1/threads/", rt.threadEvents)
	if rt.httpMetrics != nil {
		mux.Handle("/metrics", rt.httpMetrics.Handler())
	}

	var handler http.Handler = mux
	if rt.httpMetrics != nil {
		handler = rt.httpMetrics.Middleware(rt.service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(rt.logger, handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req domain.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}
	if req.ThreadID == "" {
		req.ThreadID = uuid.NewString()
	}

	start := time.Now()
	result, err := rt.tutor.Ask(r.Context(), req)
	if err != nil {
		status := mapErrorToHTTPStatus(err)
		rt.logger.Error("ask failed",
			slog.String("request_id", requestIDFromContext(r.Context())),
			slog.String("thread_id", req.ThreadID),
			slog.Int("status", status),
			slog.Any("error", err),
		)
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	rt.recordTurn(result, time.Since(start))
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) recordTurn(result *domain.AskResult, duration time.Duration) {
	if rt.httpMetrics == nil {
		return
	}
	rt.httpMetrics.RecordTurn(rt.service, string(result.Outcome), duration)

	switch result.Outcome {
	case domain.OutcomeFollowUp:
		rt.httpMetrics.RecordFollowUp(rt.service)
	case domain.OutcomeAnswered, domain.OutcomeBelowThreshold:
		rt.httpMetrics.RecordRefinementAttempts(rt.service, result.RefinementAttempts)
		if overall, ok := result.EvaluationScores["overall"]; ok {
			rt.httpMetrics.RecordEvaluationScore(rt.service, result.SourceType, overall)
		}
		if result.SourceType == domain.SourceTypeWeb {
			rt.httpMetrics.RecordWebFallback(rt.service)
		}
	}
}

func (rt *Router) threadEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/threads/")
	threadID, ok := strings.CutSuffix(rest, "/events")
	if !ok || threadID == "" || strings.Contains(threadID, "/") {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	events, err := rt.tutor.ThreadEvents(r.Context(), threadID)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"thread_id": threadID, "events": events})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
