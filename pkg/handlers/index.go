package handlers

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"go.uber.org/zap"

	"github.com/argo-explorer/dashboard/pkg/models"
	"github.com/argo-explorer/dashboard/pkg/query"
	"github.com/argo-explorer/dashboard/pkg/session"
)

// indexData fills the index template.
type indexData struct {
	Version     string
	Connected   bool
	Label       string
	BaseURL     string
	DefaultURL  string
	Override    string
	Suggestions []string
}

// IndexHandler serves the dashboard page and its static assets.
type IndexHandler struct {
	tmpl     *template.Template
	assets   http.Handler
	prober   interface{ State() models.ConnectionState }
	urls     BaseURLSource
	sessions *session.Store
	version  string
	logger   *zap.Logger
}

// NewIndexHandler parses index.html from files, which holds the UI's dist
// directory, and serves assets/ from the same tree.
func NewIndexHandler(
	files fs.FS,
	prober interface{ State() models.ConnectionState },
	urls BaseURLSource,
	sessions *session.Store,
	version string,
	logger *zap.Logger,
) (*IndexHandler, error) {
	tmpl, err := template.ParseFS(files, "index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse index template: %w", err)
	}
	return &IndexHandler{
		tmpl:     tmpl,
		assets:   http.FileServerFS(files),
		prober:   prober,
		urls:     urls,
		sessions: sessions,
		version:  version,
		logger:   logger,
	}, nil
}

// RegisterRoutes registers the index handler's routes on the given mux.
func (h *IndexHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Index)
	mux.Handle("GET /assets/", h.assets)
}

// Index handles GET /
func (h *IndexHandler) Index(w http.ResponseWriter, r *http.Request) {
	state := h.prober.State()
	data := indexData{
		Version:     h.version,
		Connected:   state.IsConnected(),
		Label:       state.Label(),
		BaseURL:     state.ResolvedBaseURL,
		DefaultURL:  h.urls.Default(),
		Suggestions: query.Suggestions(nil, h.sessions.Get(r).Suggestions()),
	}
	if override, ok := h.urls.Override(); ok {
		data.Override = override
	}

	var buf bytes.Buffer
	if err := h.tmpl.Execute(&buf, data); err != nil {
		h.logger.Error("Failed to render index", zap.Error(err))
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Debug("Failed to write index", zap.Error(err))
	}
}
