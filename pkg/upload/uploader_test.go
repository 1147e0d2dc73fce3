package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/argo-explorer/dashboard/pkg/apperrors"
	"github.com/argo-explorer/dashboard/pkg/backend"
	"github.com/argo-explorer/dashboard/pkg/config"
	"github.com/argo-explorer/dashboard/pkg/models"
	"github.com/argo-explorer/dashboard/pkg/testhelpers"
)

type staticGate bool

func (g staticGate) Connected() bool { return bool(g) }

type stubBackend struct {
	mu           sync.Mutex
	available    bool
	availableErr error
	probes       atomic.Int32
	uploads      atomic.Int32

	// upload, when set, replaces the default behaviour of draining r.
	upload func(ctx context.Context, r io.Reader, progress func(int64)) (*models.UploadResult, error)
}

func (s *stubBackend) UploadAvailable(ctx context.Context) (bool, error) {
	s.probes.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available, s.availableErr
}

func (s *stubBackend) UploadNetCDF(ctx context.Context, filename string, r io.Reader, progress func(int64)) (*models.UploadResult, error) {
	s.uploads.Add(1)
	if s.upload != nil {
		return s.upload(ctx, r, progress)
	}
	_, err := io.Copy(io.Discard, r)
	return &models.UploadResult{FloatID: "2902094"}, err
}

func testConfig() config.UploadConfig {
	return config.UploadConfig{
		MaxBytes:     1 << 20,
		ResetDelay:   50 * time.Millisecond,
		TickInterval: 5 * time.Millisecond,
		TickStep:     10,
		Ceiling:      90,
	}
}

func TestValidateFilename(t *testing.T) {
	for _, ok := range []string{"profile.nc", "R2902094_001.NC", " a.nc "} {
		assert.NoError(t, ValidateFilename(ok), ok)
	}
	for _, bad := range []string{"profile.csv", "nc", "profile.nc.zip", ""} {
		assert.ErrorIs(t, ValidateFilename(bad), apperrors.ErrInvalidFileType, bad)
	}
}

func TestUpload_RejectsNonNetCDFWithoutRequest(t *testing.T) {
	stub := &stubBackend{available: true}
	u := NewUploader(stub, staticGate(true), testConfig(), zap.NewNop())

	_, err := u.Upload(context.Background(), "sess", "data.csv", strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidFileType)
	assert.Zero(t, stub.probes.Load())
	assert.Zero(t, stub.uploads.Load())
	assert.Equal(t, models.UploadIdle, u.Status("sess").State)
}

func TestUpload_Gates(t *testing.T) {
	t.Run("disconnected", func(t *testing.T) {
		stub := &stubBackend{available: true}
		u := NewUploader(stub, staticGate(false), testConfig(), zap.NewNop())
		_, err := u.Upload(context.Background(), "sess", "a.nc", strings.NewReader("x"), 1)
		assert.ErrorIs(t, err, apperrors.ErrNotConnected)
		assert.Zero(t, stub.uploads.Load())
	})

	t.Run("route missing", func(t *testing.T) {
		stub := &stubBackend{available: false}
		u := NewUploader(stub, staticGate(true), testConfig(), zap.NewNop())
		_, err := u.Upload(context.Background(), "sess", "a.nc", strings.NewReader("x"), 1)
		assert.ErrorIs(t, err, apperrors.ErrUploadUnavailable)
		assert.Zero(t, stub.uploads.Load())
		require.NotNil(t, u.Status("sess").Available)
		assert.False(t, *u.Status("sess").Available)
	})

	t.Run("too large", func(t *testing.T) {
		stub := &stubBackend{available: true}
		u := NewUploader(stub, staticGate(true), testConfig(), zap.NewNop())
		_, err := u.Upload(context.Background(), "sess", "a.nc", strings.NewReader("x"), 2<<20)
		assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)
		assert.Zero(t, stub.probes.Load())
	})
}

func TestAvailable_CachesDefiniteAnswers(t *testing.T) {
	stub := &stubBackend{available: true}
	u := NewUploader(stub, nil, testConfig(), zap.NewNop())

	for range 3 {
		ok, err := u.Available(context.Background())
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, int32(1), stub.probes.Load())

	u.Invalidate()
	_, _ = u.Available(context.Background())
	assert.Equal(t, int32(2), stub.probes.Load())
}

func TestAvailable_ErrorsAreNotCached(t *testing.T) {
	stub := &stubBackend{availableErr: errors.New("connection refused")}
	u := NewUploader(stub, nil, testConfig(), zap.NewNop())

	_, err := u.Available(context.Background())
	require.Error(t, err)
	assert.Nil(t, u.Status("sess").Available)

	stub.mu.Lock()
	stub.availableErr = nil
	stub.available = true
	stub.mu.Unlock()

	ok, err := u.Available(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUpload_ByteProgressCappedAtCeiling(t *testing.T) {
	release := make(chan struct{})
	sentAll := make(chan struct{})
	stub := &stubBackend{available: true}
	stub.upload = func(ctx context.Context, r io.Reader, progress func(int64)) (*models.UploadResult, error) {
		data, _ := io.ReadAll(r)
		progress(int64(len(data)) / 2)
		progress(int64(len(data)))
		close(sentAll)
		<-release
		n := 12
		return &models.UploadResult{FloatID: "2902094", ProfilesIngested: &n}, nil
	}
	u := NewUploader(stub, staticGate(true), testConfig(), zap.NewNop())

	done := make(chan error, 1)
	go func() {
		_, err := u.Upload(context.Background(), "sess", "R2902094.nc", bytes.NewReader(make([]byte, 1000)), 1000)
		done <- err
	}()

	<-sentAll
	status := u.Status("sess")
	assert.Equal(t, models.UploadUploading, status.State)
	assert.Equal(t, 90, status.Progress, "all bytes sent but no response yet")

	_, err := u.Upload(context.Background(), "sess", "other.nc", strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, apperrors.ErrUploadInFlight)

	close(release)
	require.NoError(t, <-done)

	status = u.Status("sess")
	assert.Equal(t, models.UploadSuccess, status.State)
	assert.Equal(t, 100, status.Progress)
	assert.Equal(t, "Float 2902094 data uploaded with 12 profiles.", status.Message)

	assert.Eventually(t, func() bool {
		s := u.Status("sess")
		return s.State == models.UploadIdle && s.Progress == 0
	}, time.Second, 5*time.Millisecond)
}

func TestUpload_SyntheticProgressWhenSizeUnknown(t *testing.T) {
	release := make(chan struct{})
	stub := &stubBackend{available: true}
	stub.upload = func(ctx context.Context, r io.Reader, progress func(int64)) (*models.UploadResult, error) {
		assert.Nil(t, progress)
		<-release
		return &models.UploadResult{}, nil
	}
	u := NewUploader(stub, staticGate(true), testConfig(), zap.NewNop())

	done := make(chan error, 1)
	go func() {
		_, err := u.Upload(context.Background(), "sess", "a.nc", strings.NewReader("payload"), 0)
		done <- err
	}()

	assert.Eventually(t, func() bool { return u.Status("sess").Progress == 90 }, time.Second, time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 90, u.Status("sess").Progress, "the ticker stops at the ceiling")

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 100, u.Status("sess").Progress)
	assert.Equal(t, "Uploaded a.nc", u.Status("sess").Message)
}

func TestUpload_FailureResets(t *testing.T) {
	stub := &stubBackend{available: true}
	stub.upload = func(ctx context.Context, r io.Reader, progress func(int64)) (*models.UploadResult, error) {
		return nil, &apperrors.StatusError{Op: "upload", StatusCode: 500, Body: "ingest failed"}
	}
	u := NewUploader(stub, staticGate(true), testConfig(), zap.NewNop())

	_, err := u.Upload(context.Background(), "sess", "a.nc", strings.NewReader("x"), 1)
	require.Error(t, err)

	status := u.Status("sess")
	assert.Equal(t, models.UploadError, status.State)
	assert.Equal(t, 100, status.Progress)
	assert.Contains(t, status.Message, "ingest failed")

	assert.Eventually(t, func() bool { return u.Status("sess").State == models.UploadIdle }, time.Second, 5*time.Millisecond)
}

func TestUpload_NewUploadCancelsPendingReset(t *testing.T) {
	stub := &stubBackend{available: true}
	cfg := testConfig()
	cfg.ResetDelay = 40 * time.Millisecond
	u := NewUploader(stub, staticGate(true), cfg, zap.NewNop())

	_, err := u.Upload(context.Background(), "sess", "first.nc", strings.NewReader("x"), 1)
	require.NoError(t, err)

	release := make(chan struct{})
	stub.upload = func(ctx context.Context, r io.Reader, progress func(int64)) (*models.UploadResult, error) {
		<-release
		return &models.UploadResult{}, nil
	}
	done := make(chan struct{})
	go func() {
		_, _ = u.Upload(context.Background(), "sess", "second.nc", strings.NewReader("x"), 1)
		close(done)
	}()

	assert.Eventually(t, func() bool { return u.Status("sess").Filename == "second.nc" }, time.Second, time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, models.UploadUploading, u.Status("sess").State, "the first upload's reset must not clobber the second")

	close(release)
	<-done
}

func TestUpload_WidgetStatePerSession(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	stub := &stubBackend{available: true}
	stub.upload = func(ctx context.Context, r io.Reader, progress func(int64)) (*models.UploadResult, error) {
		data, _ := io.ReadAll(r)
		if string(data) == "slow" {
			close(started)
			<-release
		}
		return &models.UploadResult{FloatID: string(data)}, nil
	}
	u := NewUploader(stub, staticGate(true), testConfig(), zap.NewNop())

	done := make(chan error, 1)
	go func() {
		_, err := u.Upload(context.Background(), "browser-a", "a.nc", strings.NewReader("slow"), 4)
		done <- err
	}()
	<-started

	assert.Equal(t, models.UploadUploading, u.Status("browser-a").State)
	assert.Equal(t, models.UploadIdle, u.Status("browser-b").State, "another browser does not see the upload")
	assert.Empty(t, u.Status("browser-b").Filename)

	_, err := u.Upload(context.Background(), "browser-b", "b.nc", strings.NewReader("2902095"), 7)
	require.NoError(t, err, "one browser's upload does not block another's")
	assert.Equal(t, "Float 2902095 data uploaded.", u.Status("browser-b").Message)
	assert.Equal(t, models.UploadUploading, u.Status("browser-a").State)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, models.UploadSuccess, u.Status("browser-a").State)

	assert.Eventually(t, func() bool {
		u.mu.Lock()
		defer u.mu.Unlock()
		return len(u.widgets) == 0
	}, time.Second, 5*time.Millisecond, "finished widgets are dropped once idle")
}

func TestReady(t *testing.T) {
	assert.ErrorIs(t, NewUploader(&stubBackend{available: true}, staticGate(false), testConfig(), zap.NewNop()).Ready(context.Background()), apperrors.ErrNotConnected)
	assert.ErrorIs(t, NewUploader(&stubBackend{available: false}, staticGate(true), testConfig(), zap.NewNop()).Ready(context.Background()), apperrors.ErrUploadUnavailable)
	assert.NoError(t, NewUploader(&stubBackend{available: true}, staticGate(true), testConfig(), zap.NewNop()).Ready(context.Background()))
}

func TestUpload_ThroughBackendClient(t *testing.T) {
	fake := testhelpers.NewFakeBackend(t)
	fake.Status("OPTIONS /upload_netcdf", http.StatusMethodNotAllowed)
	fake.JSON("POST /upload_netcdf", http.StatusOK, map[string]any{"float_id": 2902094, "profiles_ingested": 3})

	client := backend.NewClient(fake.Resolver(), 0, zap.NewNop())
	u := NewUploader(client, staticGate(true), testConfig(), zap.NewNop())

	result, err := u.Upload(context.Background(), "sess", "R2902094_001.nc", bytes.NewReader([]byte("CDF\x01")), 4)
	require.NoError(t, err)
	assert.Equal(t, "2902094", result.FloatID)
	assert.Equal(t, 1, fake.Count("POST /upload_netcdf"))
}
