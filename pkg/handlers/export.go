package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/argo-explorer/dashboard/pkg/backend"
	"github.com/argo-explorer/dashboard/pkg/export"
	"github.com/argo-explorer/dashboard/pkg/models"
)

// FileFetcher downloads backend exports.
type FileFetcher interface {
	Fetch(ctx context.Context, target string) (*export.File, error)
}

// ExportHandler turns backend exports and on-screen rows into downloads.
type ExportHandler struct {
	exporter FileFetcher
	logger   *zap.Logger
	now      func() time.Time
}

func NewExportHandler(exporter FileFetcher, logger *zap.Logger) *ExportHandler {
	return &ExportHandler{exporter: exporter, logger: logger, now: time.Now}
}

// RegisterRoutes registers the export handler's routes on the given mux.
func (h *ExportHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/export/{format}", h.Fetch)
	mux.HandleFunc("POST /api/export/csv", h.Rows)
}

// Fetch handles GET /api/export/{format}. An optional "url" query parameter
// names the export link offered with a result; without it the format's
// standard endpoint is used.
func (h *ExportHandler) Fetch(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.PathValue("format"))
	target := strings.TrimSpace(r.URL.Query().Get("url"))
	if target == "" {
		if _, ok := backend.ExportEndpoint(format); !ok {
			if err := ErrorResponse(w, http.StatusBadRequest, "unknown_format", "Unknown export format: "+format); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		target = format
	}

	file, err := h.exporter.Fetch(r.Context(), target)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	h.writeFile(w, file)
}

// Rows handles POST /api/export/csv. The body is either a JSON array of rows
// or a result object whose data array is exported.
func (h *ExportHandler) Rows(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxResultBytes))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	var rows []*models.Row
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		rows = models.ParseRows(trimmed)
	} else if result, err := models.ParseQueryResult(trimmed); err == nil {
		rows = result.Data
	}
	if len(rows) == 0 {
		if err := ErrorResponse(w, http.StatusBadRequest, "no_data", "There is no data to export"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	file, err := export.FromRows(rows, h.now())
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	h.writeFile(w, file)
}

func (h *ExportHandler) writeFile(w http.ResponseWriter, file *export.File) {
	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", file.ContentDisposition())
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(file.Data); err != nil {
		h.logger.Warn("Failed to write export", zap.String("filename", file.Name), zap.Error(err))
	}
}
