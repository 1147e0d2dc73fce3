package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/argo-explorer/dashboard/pkg/models"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// StatusResponse is the connection indicator plus the URL settings behind it.
type StatusResponse struct {
	models.ConnectionState
	Label      string `json:"label"`
	DefaultURL string `json:"default_url"`
	Override   string `json:"override,omitempty"`
}

// SetBaseURLRequest for PUT /api/base-url. An empty base_url clears the override.
type SetBaseURLRequest struct {
	BaseURL string `json:"base_url"`
}

// ============================================================================
// Handler
// ============================================================================

// ConnectionProber is the part of the health prober the status endpoints need.
type ConnectionProber interface {
	State() models.ConnectionState
	Check(ctx context.Context) models.ConnectionState
	Override(ctx context.Context, baseURL string) (models.ConnectionState, error)
}

// BaseURLSource reports the resolver's configured values.
type BaseURLSource interface {
	Default() string
	Override() (string, bool)
}

// StatusHandler exposes the connection indicator, the manual re-check and
// the base-URL override.
type StatusHandler struct {
	prober ConnectionProber
	urls   BaseURLSource
	logger *zap.Logger
}

func NewStatusHandler(prober ConnectionProber, urls BaseURLSource, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{prober: prober, urls: urls, logger: logger}
}

// RegisterRoutes registers the status handler's routes on the given mux.
func (h *StatusHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/status", h.Get)
	mux.HandleFunc("POST /api/status/check", h.Check)
	mux.HandleFunc("PUT /api/base-url", h.SetBaseURL)
}

// Get handles GET /api/status
func (h *StatusHandler) Get(w http.ResponseWriter, r *http.Request) {
	respond(w, h.logger, h.response(h.prober.State()))
}

// Check handles POST /api/status/check: one probe cycle, right now.
func (h *StatusHandler) Check(w http.ResponseWriter, r *http.Request) {
	respond(w, h.logger, h.response(h.prober.Check(r.Context())))
}

// SetBaseURL handles PUT /api/base-url
func (h *StatusHandler) SetBaseURL(w http.ResponseWriter, r *http.Request) {
	var req SetBaseURLRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	state, err := h.prober.Override(r.Context(), req.BaseURL)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	respond(w, h.logger, h.response(state))
}

func (h *StatusHandler) response(state models.ConnectionState) StatusResponse {
	resp := StatusResponse{
		ConnectionState: state,
		Label:           state.Label(),
		DefaultURL:      h.urls.Default(),
	}
	if override, ok := h.urls.Override(); ok {
		resp.Override = override
	}
	return resp
}
