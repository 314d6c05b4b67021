// Package httpapi wires the pipeline controller (C7) behind chi
// routes: a plain JSON search endpoint and a streaming WebSocket
// endpoint, plus health and metrics.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/lakeql/nlsearch/internal/domain"
	"github.com/lakeql/nlsearch/internal/pipeline"
	"github.com/lakeql/nlsearch/internal/pipelineerr"
)

// searchRequestBody is the wire shape of POST /search/natural-language.
type searchRequestBody struct {
	Query   string                `json:"query"`
	Context map[string]any        `json:"context,omitempty"`
	Options domain.RequestOptions `json:"options,omitempty"`
	UserID  *int64                `json:"user_id,omitempty"`
}

type executionResponse struct {
	SQLQuery        string         `json:"sql_query"`
	Parameters      map[string]any `json:"parameters"`
	ExecutionTimeMS int64          `json:"execution_time_ms"`
	RowsAffected    int            `json:"rows_affected"`
	StrategyUsed    string         `json:"strategy_used"`
}

type searchResponse struct {
	RequestID string              `json:"request_id"`
	Intent    domain.Intent       `json:"intent"`
	Execution executionResponse   `json:"execution"`
	Data      []domain.Row        `json:"data"`
	TotalRows int                 `json:"total_rows"`
	Success   bool                `json:"success"`
	Timestamp string              `json:"timestamp"`
	PageInfo  domain.PageInfo     `json:"page_info"`
}

type errorBody struct {
	Kind      domain.ErrorKind `json:"kind"`
	Message   string           `json:"message"`
	RequestID string           `json:"request_id"`
	Reasons   []string         `json:"reasons,omitempty"` // per-strategy reasons, populated for kind == generation_failed
}

type errorResponse struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

// Handler wires a Controller behind the HTTP surface.
type Handler struct {
	ctrl   *pipeline.Controller
	logger *slog.Logger
}

// New builds a Handler.
func New(ctrl *pipeline.Controller, logger *slog.Logger) *Handler {
	return &Handler{ctrl: ctrl, logger: logger}
}

// Search handles POST /search/natural-language.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var body searchRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: errorBody{
			Kind:    domain.ErrValidation,
			Message: "invalid request body: " + err.Error(),
		}})
		return
	}

	req := domain.Request{
		Query:   body.Query,
		Context: body.Context,
		Options: body.Options,
		UserID:  body.UserID,
	}

	requestID, result, err := h.ctrl.Run(r.Context(), pipeline.NoopSink, req)
	if err != nil {
		h.writeError(w, requestID, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{
		RequestID: requestID,
		Intent:    result.Intent,
		Execution: executionResponse{
			SQLQuery:        result.Artifact.SQL,
			Parameters:      result.Artifact.Parameters,
			ExecutionTimeMS: result.ExecutionTimeMS,
			RowsAffected:    result.RowCount,
			StrategyUsed:    string(result.StrategyUsed),
		},
		Data:      result.Rows,
		TotalRows: result.RowCount,
		Success:   true,
		Timestamp: nowRFC3339(),
		PageInfo:  result.PageInfo,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, requestID string, err error) {
	pe := err
	status := http.StatusInternalServerError
	switch pipelineerr.KindOf(pe) {
	case domain.ErrValidation, domain.ErrClassification, domain.ErrSecurity:
		status = http.StatusBadRequest
	case domain.ErrTimeout:
		status = http.StatusGatewayTimeout
	case domain.ErrGenerationFailed:
		status = http.StatusServiceUnavailable
	case domain.ErrRuntime, domain.ErrCanceled, domain.ErrBackpressure:
		status = http.StatusInternalServerError
	}

	h.logger.Error("search request failed", "request_id", requestID, "kind", pipelineerr.KindOf(pe), "error", pe)
	var reasons []string
	var pipeErr *pipelineerr.Error
	if errors.As(pe, &pipeErr) {
		reasons = pipeErr.GenReasons
	}
	writeJSON(w, status, errorResponse{Error: errorBody{
		Kind:      pipelineerr.KindOf(pe),
		Message:   pe.Error(),
		RequestID: requestID,
		Reasons:   reasons,
	}})
}

type suggestion struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

type suggestResponse struct {
	Suggestions []suggestion `json:"suggestions"`
}

// Suggest handles GET /search/suggest?q=...&limit=N, returning
// previously seen queries fuzzy-matched against q, most-similar and
// most-popular first.
func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	term := domain.Normalize(r.URL.Query().Get("q"))
	if term == "" {
		writeJSON(w, http.StatusOK, suggestResponse{})
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	matches := h.ctrl.Analytics().Suggest(term, limit)
	out := make([]suggestion, len(matches))
	for i, m := range matches {
		out[i] = suggestion{Query: m.NormalizedQuery, Count: m.Count}
	}
	writeJSON(w, http.StatusOK, suggestResponse{Suggestions: out})
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func nowRFC3339() string { return time.Now().UTC().Format(time.RFC3339) }
