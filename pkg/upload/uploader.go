// Package upload drives the NetCDF upload widget: file validation, the
// availability pre-flight, progress reporting and the post-upload reset.
package upload

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/argo-explorer/dashboard/pkg/apperrors"
	"github.com/argo-explorer/dashboard/pkg/config"
	"github.com/argo-explorer/dashboard/pkg/logging"
	"github.com/argo-explorer/dashboard/pkg/models"
)

// Extension is the only accepted file extension.
const Extension = ".nc"

// Backend is the part of the backend client the uploader needs.
type Backend interface {
	UploadAvailable(ctx context.Context) (bool, error)
	UploadNetCDF(ctx context.Context, filename string, r io.Reader, progress func(sent int64)) (*models.UploadResult, error)
}

// ConnectionGate reports whether the backend is currently reachable.
type ConnectionGate interface {
	Connected() bool
}

// Uploader runs uploads and exposes their progress. Widget state is kept per
// session: each browser sees only its own upload, and a session has at most
// one upload in flight. The availability answer is shared, it describes the
// backend rather than a browser.
type Uploader struct {
	backend Backend
	gate    ConnectionGate
	cfg     config.UploadConfig
	logger  *zap.Logger

	mu         sync.Mutex
	available  *bool
	widgets    map[string]*widget
	generation uint64
}

// widget is one session's upload control. A session without one is idle.
type widget struct {
	status     models.UploadStatus
	generation uint64
	resetTimer *time.Timer
}

func NewUploader(backend Backend, gate ConnectionGate, cfg config.UploadConfig, logger *zap.Logger) *Uploader {
	return &Uploader{
		backend: backend,
		gate:    gate,
		cfg:     cfg,
		logger:  logger.Named("upload"),
		widgets: make(map[string]*widget),
	}
}

// ValidateFilename rejects anything that is not a .nc file.
func ValidateFilename(name string) error {
	if !strings.EqualFold(filepath.Ext(strings.TrimSpace(name)), Extension) {
		return apperrors.ErrInvalidFileType
	}
	return nil
}

// Available reports whether the backend exposes the upload route. A definite
// answer is cached until Invalidate; probe failures are returned and not cached.
func (u *Uploader) Available(ctx context.Context) (bool, error) {
	u.mu.Lock()
	if u.available != nil {
		ok := *u.available
		u.mu.Unlock()
		return ok, nil
	}
	u.mu.Unlock()

	ok, err := u.backend.UploadAvailable(ctx)
	if err != nil {
		u.logger.Debug("Upload pre-flight failed", zap.String("error", logging.SanitizeError(err)))
		return false, err
	}

	u.mu.Lock()
	u.available = &ok
	u.mu.Unlock()
	return ok, nil
}

// Invalidate forgets the cached availability, e.g. after the backend URL changed.
func (u *Uploader) Invalidate() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.available = nil
}

// Status returns a snapshot of sessionID's widget.
func (u *Uploader) Status(sessionID string) models.UploadStatus {
	u.mu.Lock()
	defer u.mu.Unlock()
	s := models.UploadStatus{State: models.UploadIdle}
	if w, ok := u.widgets[sessionID]; ok {
		s = w.status
	}
	if u.available != nil {
		avail := *u.available
		s.Available = &avail
	}
	return s
}

// Ready reports why an upload cannot start right now: a disconnected backend
// or a backend without the upload route. It returns nil when one can.
func (u *Uploader) Ready(ctx context.Context) error {
	if u.gate != nil && !u.gate.Connected() {
		return apperrors.ErrNotConnected
	}
	available, err := u.Available(ctx)
	if err != nil {
		return fmt.Errorf("failed to check upload endpoint: %w", err)
	}
	if !available {
		return apperrors.ErrUploadUnavailable
	}
	return nil
}

// Upload sends r as filename for sessionID. size is the file length in bytes,
// or a value <= 0 when unknown. With a known size progress follows the bytes
// sent; without one a fixed ticker advances it. Either way it stops at the
// configured ceiling until the backend answers, then jumps to 100. The widget
// returns to idle ResetDelay after the outcome.
func (u *Uploader) Upload(ctx context.Context, sessionID, filename string, r io.Reader, size int64) (*models.UploadResult, error) {
	if err := ValidateFilename(filename); err != nil {
		return nil, err
	}
	if u.cfg.MaxBytes > 0 && size > u.cfg.MaxBytes {
		return nil, fmt.Errorf("%w: file is larger than %d bytes", apperrors.ErrInvalidRequest, u.cfg.MaxBytes)
	}
	if err := u.Ready(ctx); err != nil {
		return nil, err
	}

	gen, err := u.begin(sessionID, filename)
	if err != nil {
		return nil, err
	}

	var onSent func(int64)
	stopTicker := func() {}
	if size > 0 {
		onSent = func(sent int64) {
			u.advance(sessionID, gen, int(sent*100/size))
		}
	} else {
		stopTicker = u.tick(sessionID, gen)
	}

	result, err := u.backend.UploadNetCDF(ctx, filename, r, onSent)
	stopTicker()
	u.finish(sessionID, gen, filename, result, err)

	if err != nil {
		u.logger.Warn("Upload failed",
			zap.String("filename", filename),
			zap.String("error", logging.SanitizeError(err)))
		return nil, err
	}
	return result, nil
}

func (u *Uploader) begin(sessionID, filename string) (uint64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	w, ok := u.widgets[sessionID]
	if !ok {
		w = &widget{}
		u.widgets[sessionID] = w
	}
	if w.status.State == models.UploadUploading {
		return 0, apperrors.ErrUploadInFlight
	}
	if w.resetTimer != nil {
		w.resetTimer.Stop()
		w.resetTimer = nil
	}
	u.generation++
	w.generation = u.generation
	w.status = models.UploadStatus{
		State:    models.UploadUploading,
		Filename: filename,
	}
	return w.generation, nil
}

// current returns sessionID's widget while it still belongs to upload gen.
// Callers hold u.mu.
func (u *Uploader) current(sessionID string, gen uint64) (*widget, bool) {
	w, ok := u.widgets[sessionID]
	if !ok || w.generation != gen {
		return nil, false
	}
	return w, true
}

// advance raises progress to pct, capped at the ceiling. Progress never moves back.
func (u *Uploader) advance(sessionID string, gen uint64, pct int) {
	pct = min(pct, u.cfg.Ceiling)

	u.mu.Lock()
	defer u.mu.Unlock()
	w, ok := u.current(sessionID, gen)
	if !ok || w.status.State != models.UploadUploading {
		return
	}
	w.status.Progress = max(w.status.Progress, pct)
}

// tick advances progress by TickStep every TickInterval until stopped.
func (u *Uploader) tick(sessionID string, gen uint64) (stop func()) {
	interval := u.cfg.TickInterval
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				u.mu.Lock()
				next := u.cfg.TickStep
				if w, ok := u.current(sessionID, gen); ok {
					next += w.status.Progress
				}
				u.mu.Unlock()
				u.advance(sessionID, gen, next)
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

// finish records the outcome and schedules the widget's removal, which
// returns the session to idle.
func (u *Uploader) finish(sessionID string, gen uint64, filename string, result *models.UploadResult, err error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	w, ok := u.current(sessionID, gen)
	if !ok {
		return
	}

	w.status.Progress = 100
	if err != nil {
		w.status.State = models.UploadError
		w.status.Message = "There was an error uploading your NetCDF file: " + err.Error()
	} else {
		w.status.State = models.UploadSuccess
		w.status.Message = successMessage(filename, result)
	}

	w.resetTimer = time.AfterFunc(u.cfg.ResetDelay, func() {
		u.mu.Lock()
		defer u.mu.Unlock()
		if _, ok := u.current(sessionID, gen); ok {
			delete(u.widgets, sessionID)
		}
	})
}

func successMessage(filename string, result *models.UploadResult) string {
	if result == nil {
		return "Uploaded " + filename
	}
	switch {
	case result.FloatID != "" && result.ProfilesIngested != nil:
		return fmt.Sprintf("Float %s data uploaded with %d profiles.", result.FloatID, *result.ProfilesIngested)
	case result.FloatID != "":
		return fmt.Sprintf("Float %s data uploaded.", result.FloatID)
	case result.Message != "":
		return result.Message
	default:
		return "Uploaded " + filename
	}
}
