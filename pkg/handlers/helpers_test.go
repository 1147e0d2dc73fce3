package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/argo-explorer/dashboard/pkg/backend"
	"github.com/argo-explorer/dashboard/pkg/charts"
	"github.com/argo-explorer/dashboard/pkg/config"
	"github.com/argo-explorer/dashboard/pkg/export"
	"github.com/argo-explorer/dashboard/pkg/health"
	"github.com/argo-explorer/dashboard/pkg/query"
	"github.com/argo-explorer/dashboard/pkg/roster"
	"github.com/argo-explorer/dashboard/pkg/session"
	"github.com/argo-explorer/dashboard/pkg/testhelpers"
	"github.com/argo-explorer/dashboard/pkg/upload"
)

// testEnv wires every handler against a fake backend, the way main does.
type testEnv struct {
	fake     *testhelpers.FakeBackend
	client   *backend.Client
	prober   *health.Prober
	uploader *upload.Uploader
	sessions *session.Store
	mux      *http.ServeMux
	cookies  []*http.Cookie
}

var testIndexFS = fstest.MapFS{
	"index.html":    {Data: []byte(`<!DOCTYPE html><p id="status">{{.Label}}</p>{{range .Suggestions}}<li>{{.}}</li>{{end}}<span>{{.Override}}</span>`)},
	"assets/app.js": {Data: []byte(`console.log("argo")`)},
}

// newTestEnv builds the environment. connected runs one successful probe first.
func newTestEnv(t *testing.T, connected bool) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	fake := testhelpers.NewFakeBackend(t)
	resolver := fake.Resolver()
	client := backend.NewClient(resolver, 0, logger)
	prober := health.NewProber(resolver, config.HealthConfig{Interval: time.Hour, Timeout: time.Second, Path: "/health"}, logger)
	if connected {
		fake.Status("GET /health", http.StatusOK)
		prober.Check(context.Background())
		require.True(t, prober.Connected())
	}

	uploader := upload.NewUploader(client, prober, config.UploadConfig{
		MaxBytes:     1 << 20,
		ResetDelay:   time.Hour,
		TickInterval: 5 * time.Millisecond,
		TickStep:     10,
		Ceiling:      90,
	}, logger)
	prober.Subscribe(func(bool) { uploader.Invalidate() })
	sessions := session.NewStore(config.SessionConfig{Secret: "test-secret"}, false, logger)

	mux := http.NewServeMux()
	NewHealthHandler(&config.Config{Version: "test"}, prober, logger).RegisterRoutes(mux)
	NewStatusHandler(prober, resolver, logger).RegisterRoutes(mux)
	NewQueryHandler(query.NewSubmitter(client, prober, logger), client, sessions, logger).RegisterRoutes(mux)
	NewFloatHandler(roster.NewService(client, config.RosterConfig{Limit: 6, MaxConcurrent: 4, EnrichTimeout: time.Second}, logger), logger).RegisterRoutes(mux)
	NewUploadHandler(uploader, prober, sessions, 1<<20, logger).RegisterRoutes(mux)
	NewExportHandler(export.NewExporter(client, logger), logger).RegisterRoutes(mux)
	NewChartHandler(charts.NewRenderer(config.ChartsConfig{Width: 400, Height: 300}, logger), logger).RegisterRoutes(mux)
	NewDataHandler(client, prober, logger).RegisterRoutes(mux)
	index, err := NewIndexHandler(testIndexFS, prober, resolver, sessions, "test", logger)
	require.NoError(t, err)
	index.RegisterRoutes(mux)

	return &testEnv{
		fake:     fake,
		client:   client,
		prober:   prober,
		uploader: uploader,
		sessions: sessions,
		mux:      mux,
	}
}

// do serves one request, replaying and then updating the env's cookie jar.
func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.serve(req)
}

func (e *testEnv) serve(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range e.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	if cookies := rec.Result().Cookies(); len(cookies) > 0 {
		e.cookies = cookies
	}
	return rec
}

// payload decodes the ApiResponse envelope and its data into T.
func payload[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.True(t, envelope.Success)

	var out T
	require.NoError(t, json.Unmarshal(envelope.Data, &out))
	return out
}

// errorCode asserts status and returns the error body's code.
func errorCode(t *testing.T, rec *httptest.ResponseRecorder, status int) string {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}
