package handlers

import (
	"net/http"
	"os"
	"runtime"

	"go.uber.org/zap"

	"github.com/argo-explorer/dashboard/pkg/config"
	"github.com/argo-explorer/dashboard/pkg/models"
)

// StateSource reports the last known backend connection state.
type StateSource interface {
	State() models.ConnectionState
}

// PingResponse describes the dashboard process and the backend it last saw.
type PingResponse struct {
	Status      string      `json:"status"`
	Version     string      `json:"version"`
	Service     string      `json:"service"`
	GoVersion   string      `json:"go_version"`
	Hostname    string      `json:"hostname"`
	Environment string      `json:"environment"`
	Backend     BackendPing `json:"backend"`
}

// BackendPing is the cached connection state. Ping never probes.
type BackendPing struct {
	BaseURL string `json:"base_url"`
	State   string `json:"state"`
}

// HealthHandler reports the dashboard's own liveness. Backend reachability
// lives under /api/status. The liveness route is /healthz so that a probe of
// the page origin's /health never mistakes the dashboard for the backend.
type HealthHandler struct {
	cfg    *config.Config
	states StateSource
	logger *zap.Logger
}

func NewHealthHandler(cfg *config.Config, states StateSource, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, states: states, logger: logger}
}

func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health answers 200 while the process serves requests, whatever the backend state.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	state := h.states.State()
	response := PingResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     "argo-explorer",
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
		Backend: BackendPing{
			BaseURL: state.ResolvedBaseURL,
			State:   state.Label(),
		},
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}
