package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/argo-explorer/dashboard/pkg/apperrors"
	"github.com/argo-explorer/dashboard/pkg/logging"
	"github.com/argo-explorer/dashboard/pkg/models"
	"github.com/argo-explorer/dashboard/pkg/query"
	"github.com/argo-explorer/dashboard/pkg/render"
	"github.com/argo-explorer/dashboard/pkg/session"
)

// maxResultBytes bounds a result posted back for re-rendering.
const maxResultBytes = 16 << 20

// ============================================================================
// Request/Response Types
// ============================================================================

// SubmitQueryRequest for POST /api/query
type SubmitQueryRequest struct {
	Query string `json:"query"`
}

// QueryResponse carries the backend's result verbatim next to the derived view.
type QueryResponse struct {
	SessionID   string              `json:"session_id"`
	Result      *models.QueryResult `json:"result"`
	View        render.View         `json:"view"`
	Suggestions []string            `json:"suggestions"`
}

// SuggestionsResponse for GET /api/query/suggestions
type SuggestionsResponse struct {
	Suggestions []string `json:"suggestions"`
}

// ============================================================================
// Handler
// ============================================================================

// QuerySubmitter sends natural-language questions.
type QuerySubmitter interface {
	Submit(ctx context.Context, text, sessionID string) (*models.QueryResult, error)
}

// SessionBackend is the backend's conversation memory.
type SessionBackend interface {
	SessionHistory(ctx context.Context, sessionID string) (*models.SessionHistory, error)
	ClearSession(ctx context.Context, sessionID string) (*models.SessionStatus, error)
}

// QueryHandler handles query submission, re-rendering and the conversation
// session.
type QueryHandler struct {
	submitter QuerySubmitter
	backend   SessionBackend
	sessions  *session.Store
	logger    *zap.Logger
}

func NewQueryHandler(submitter QuerySubmitter, backend SessionBackend, sessions *session.Store, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{
		submitter: submitter,
		backend:   backend,
		sessions:  sessions,
		logger:    logger,
	}
}

// RegisterRoutes registers the query handler's routes on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/query", h.Submit)
	mux.HandleFunc("POST /api/render", h.Render)
	mux.HandleFunc("GET /api/query/suggestions", h.Suggestions)
	mux.HandleFunc("GET /api/session/history", h.History)
	mux.HandleFunc("DELETE /api/session", h.ClearSession)
}

// Submit handles POST /api/query. Render options come from the query string.
func (h *QueryHandler) Submit(w http.ResponseWriter, r *http.Request) {
	opts, ok := ParseRenderOptions(w, r, h.logger)
	if !ok {
		return
	}
	var req SubmitQueryRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	sess := h.sessions.Get(r)
	sessionID := sess.EnsureID()

	result, err := h.submitter.Submit(r.Context(), req.Query, sessionID)
	if err != nil {
		h.save(w, r, sess)
		WriteError(w, h.logger, err)
		return
	}

	sess.SetID(result.SessionID)
	suggestions := query.Suggestions(result, sess.Suggestions())
	sess.SetSuggestions(suggestions)
	h.save(w, r, sess)

	view := render.Build(result, opts)
	view.Suggestions = suggestions

	respond(w, h.logger, QueryResponse{
		SessionID:   sess.ID(),
		Result:      result,
		View:        view,
		Suggestions: suggestions,
	})
}

// Render handles POST /api/render: derives the view of a result posted back
// by the client, e.g. after the date range or table page changed. The body
// is a result exactly as returned by the backend.
func (h *QueryHandler) Render(w http.ResponseWriter, r *http.Request) {
	opts, ok := ParseRenderOptions(w, r, h.logger)
	if !ok {
		return
	}
	result, ok := readResult(w, r, h.logger)
	if !ok {
		return
	}
	respond(w, h.logger, render.Build(result, opts))
}

// Suggestions handles GET /api/query/suggestions
func (h *QueryHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	current := h.sessions.Get(r).Suggestions()
	respond(w, h.logger, SuggestionsResponse{Suggestions: query.Suggestions(nil, current)})
}

// History handles GET /api/session/history. A browser without a session
// gets an empty history without a backend call.
func (h *QueryHandler) History(w http.ResponseWriter, r *http.Request) {
	sessionID := h.sessions.Get(r).ID()
	if sessionID == "" {
		respond(w, h.logger, models.SessionHistory{History: []map[string]any{}})
		return
	}

	history, err := h.backend.SessionHistory(r.Context(), sessionID)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	respond(w, h.logger, history)
}

// ClearSession handles DELETE /api/session. The local session is reset even
// when the backend no longer knows it.
func (h *QueryHandler) ClearSession(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Get(r)
	sessionID := sess.ID()
	sess.Reset()
	h.save(w, r, sess)

	status := &models.SessionStatus{Status: "cleared"}
	if sessionID != "" {
		backendStatus, err := h.backend.ClearSession(r.Context(), sessionID)
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
		case err != nil:
			WriteError(w, h.logger, err)
			return
		default:
			status = backendStatus
		}
	}
	respond(w, h.logger, status)
}

func (h *QueryHandler) save(w http.ResponseWriter, r *http.Request, sess *session.Dashboard) {
	if err := sess.Save(w, r); err != nil {
		h.logger.Error("Failed to save session", zap.Error(err))
	}
}

// readResult decodes a posted backend result, writing a 400 on failure.
func readResult(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (*models.QueryResult, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxResultBytes))
	if err == nil {
		var result *models.QueryResult
		if result, err = models.ParseQueryResult(body); err == nil {
			return result, true
		}
	}
	logger.Debug("Rejected posted result", zap.String("error", logging.SanitizeError(err)))
	if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Request body must be a JSON object"); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
	return nil, false
}
