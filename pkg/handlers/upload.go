package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/argo-explorer/dashboard/pkg/logging"
	"github.com/argo-explorer/dashboard/pkg/models"
	"github.com/argo-explorer/dashboard/pkg/session"
	"github.com/argo-explorer/dashboard/pkg/upload"
)

// multipartOverhead allows for boundaries and part headers on top of the file.
const multipartOverhead = 1 << 20

// UploadResponse for POST /api/upload
type UploadResponse struct {
	Result *models.UploadResult `json:"result"`
	Status models.UploadStatus  `json:"status"`
}

// NetCDFUploader runs uploads and reports each session's widget state.
type NetCDFUploader interface {
	Ready(ctx context.Context) error
	Upload(ctx context.Context, sessionID, filename string, r io.Reader, size int64) (*models.UploadResult, error)
	Available(ctx context.Context) (bool, error)
	Status(sessionID string) models.UploadStatus
}

// UploadHandler serves the NetCDF upload widget.
type UploadHandler struct {
	uploader NetCDFUploader
	gate     interface{ Connected() bool }
	sessions *session.Store
	maxBytes int64
	logger   *zap.Logger
}

// NewUploadHandler creates an upload handler. maxBytes bounds the file size;
// zero disables the bound.
func NewUploadHandler(uploader NetCDFUploader, gate interface{ Connected() bool }, sessions *session.Store, maxBytes int64, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{uploader: uploader, gate: gate, sessions: sessions, maxBytes: maxBytes, logger: logger}
}

// RegisterRoutes registers the upload handler's routes on the given mux.
func (h *UploadHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/upload/status", h.Status)
	mux.HandleFunc("POST /api/upload", h.Upload)
}

// Status handles GET /api/upload/status for the caller's session. While the
// backend is connected and availability is still unknown, it runs the
// pre-flight first so the control can be enabled or disabled.
func (h *UploadHandler) Status(w http.ResponseWriter, r *http.Request) {
	sessionID := h.sessions.Get(r).ID()
	status := h.uploader.Status(sessionID)
	if status.Available == nil && (h.gate == nil || h.gate.Connected()) {
		if _, err := h.uploader.Available(r.Context()); err != nil {
			h.logger.Debug("Upload pre-flight failed", zap.String("error", logging.SanitizeError(err)))
		}
		status = h.uploader.Status(sessionID)
	}
	respond(w, h.logger, status)
}

// Upload handles POST /api/upload, a multipart form with the file under "file".
// The form is streamed: the file name is checked from the part header before
// any file content is read. The request returns once the backend has
// answered; progress is visible through Status meanwhile.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)
	}
	reader, err := r.MultipartReader()
	if err != nil {
		h.fail(w, http.StatusBadRequest, "invalid_request", "Expected a multipart form")
		return
	}

	part, err := nextFilePart(reader)
	if err != nil {
		h.readFailed(w, err)
		return
	}
	defer part.Close()

	if err := upload.ValidateFilename(part.FileName()); err != nil {
		WriteError(w, h.logger, err)
		return
	}
	if err := h.uploader.Ready(r.Context()); err != nil {
		WriteError(w, h.logger, err)
		return
	}

	spool, size, err := spoolPart(part)
	if errors.Is(err, errSpool) {
		WriteError(w, h.logger, err)
		return
	}
	if err != nil {
		h.readFailed(w, err)
		return
	}
	defer spool.Close()

	sess := h.sessions.Get(r)
	sessionID := sess.EnsureID()
	if err := sess.Save(w, r); err != nil {
		h.logger.Error("Failed to save session", zap.Error(err))
	}

	result, err := h.uploader.Upload(r.Context(), sessionID, part.FileName(), spool, size)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	respond(w, h.logger, UploadResponse{Result: result, Status: h.uploader.Status(sessionID)})
}

func (h *UploadHandler) readFailed(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		h.fail(w, http.StatusRequestEntityTooLarge, "file_too_large", "The file is larger than the upload limit")
	case errors.Is(err, errNoFilePart):
		h.fail(w, http.StatusBadRequest, "missing_file", "No file was selected")
	default:
		h.fail(w, http.StatusBadRequest, "invalid_request", "Expected a multipart form")
	}
}

func (h *UploadHandler) fail(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}

var (
	errNoFilePart = errors.New("no file part")
	errSpool      = errors.New("failed to spool upload")
)

// nextFilePart advances to the "file" part, skipping other fields.
func nextFilePart(reader *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errNoFilePart
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == "file" && part.FileName() != "" {
			return part, nil
		}
		_ = part.Close()
	}
}

// spooledFile is a part copied to a temporary file, removed on Close.
type spooledFile struct {
	*os.File
}

func (f spooledFile) Close() error {
	err := f.File.Close()
	_ = os.Remove(f.Name())
	return err
}

// spoolPart copies part to a temporary file so its size is known before the
// backend request starts. Local file errors wrap errSpool; anything else came
// from reading the request.
func spoolPart(part *multipart.Part) (spooledFile, int64, error) {
	tmp, err := os.CreateTemp("", "argo-upload-*.nc")
	if err != nil {
		return spooledFile{}, 0, fmt.Errorf("%w: %w", errSpool, err)
	}
	f := spooledFile{tmp}
	size, err := io.Copy(tmp, part)
	if err != nil {
		_ = f.Close()
		return spooledFile{}, 0, err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		_ = f.Close()
		return spooledFile{}, 0, fmt.Errorf("%w: rewind: %w", errSpool, err)
	}
	return f, size, nil
}
