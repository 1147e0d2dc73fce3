package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/argo-explorer/dashboard/pkg/apiurl"
	"github.com/argo-explorer/dashboard/pkg/config"
	"github.com/argo-explorer/dashboard/pkg/testhelpers"
)

func hungServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newResolver(t *testing.T, override, origin string) (*apiurl.Resolver, *apiurl.MemoryStore) {
	t.Helper()
	store := apiurl.NewMemoryStore()
	if override != "" {
		require.NoError(t, store.Set(override))
	}
	return apiurl.NewResolver(apiurl.Options{
		Default:     "http://127.0.0.1:1",
		PageOrigin:  origin,
		Development: true,
		Store:       store,
	}), store
}

func testHealthConfig() config.HealthConfig {
	return config.HealthConfig{Interval: time.Hour, Timeout: 100 * time.Millisecond, Path: "/health"}
}

func TestProber_UnknownBeforeFirstProbe(t *testing.T) {
	resolver, _ := newResolver(t, "", "")
	p := NewProber(resolver, testHealthConfig(), zap.NewNop())

	state := p.State()
	assert.Nil(t, state.Connected)
	assert.True(t, state.LastCheckedAt.IsZero())
	assert.False(t, p.Connected())
}

func TestProber_ConfiguredBaseHealthy(t *testing.T) {
	fake := testhelpers.NewFakeBackend(t)
	fake.JSON("GET /health", http.StatusOK, map[string]string{"status": "healthy"})

	resolver, store := newResolver(t, fake.URL(), "")
	p := NewProber(resolver, testHealthConfig(), zap.NewNop())

	state := p.Check(context.Background())
	require.NotNil(t, state.Connected)
	assert.True(t, *state.Connected)
	assert.False(t, state.LastCheckedAt.IsZero())
	assert.Equal(t, fake.URL(), state.ResolvedBaseURL)

	stored, _ := store.Get()
	assert.Equal(t, fake.URL(), stored)
}

func TestProber_TimeoutThenOriginSucceeds_PersistsDiscoveredRoot(t *testing.T) {
	hung := hungServer(t)
	origin := testhelpers.NewFakeBackend(t)
	origin.Status("GET /health", http.StatusOK)

	resolver, store := newResolver(t, hung.URL, origin.URL())
	p := NewProber(resolver, testHealthConfig(), zap.NewNop())

	start := time.Now()
	state := p.Check(context.Background())

	require.NotNil(t, state.Connected)
	assert.True(t, *state.Connected)
	assert.Less(t, time.Since(start), time.Second)

	stored, _ := store.Get()
	assert.Equal(t, origin.URL(), stored)
	assert.Equal(t, origin.URL(), state.ResolvedBaseURL)
}

func TestProber_OriginAPIPrefixDiscovered(t *testing.T) {
	origin := testhelpers.NewFakeBackend(t)
	origin.Status("GET /api/health", http.StatusOK)

	resolver, _ := newResolver(t, "http://127.0.0.1:1", origin.URL())
	p := NewProber(resolver, testHealthConfig(), zap.NewNop())

	assert.Equal(t, []string{
		"http://127.0.0.1:1/health",
		origin.URL() + "/health",
		origin.URL() + "/api/health",
	}, p.Candidates())

	state := p.Check(context.Background())
	assert.True(t, state.IsConnected())
	assert.Equal(t, origin.URL()+"/api", resolver.BaseURL())
}

func TestProber_AllCandidatesFail(t *testing.T) {
	origin := testhelpers.NewFakeBackend(t)
	resolver, store := newResolver(t, "http://127.0.0.1:1", origin.URL())
	p := NewProber(resolver, testHealthConfig(), zap.NewNop())

	var mu sync.Mutex
	var notified []bool
	p.Subscribe(func(connected bool) {
		mu.Lock()
		defer mu.Unlock()
		notified = append(notified, connected)
	})

	state := p.Check(context.Background())
	require.NotNil(t, state.Connected)
	assert.False(t, *state.Connected)
	assert.False(t, state.LastCheckedAt.IsZero())

	p.Check(context.Background())

	mu.Lock()
	assert.Equal(t, []bool{false}, notified)
	mu.Unlock()

	stored, _ := store.Get()
	assert.Equal(t, "http://127.0.0.1:1", stored, "failed probes never rewrite the base URL")
}

func TestProber_NotifiesOnTransition(t *testing.T) {
	fake := testhelpers.NewFakeBackend(t)
	resolver, _ := newResolver(t, fake.URL(), "")
	p := NewProber(resolver, testHealthConfig(), zap.NewNop())

	var notified []bool
	p.Subscribe(func(connected bool) { notified = append(notified, connected) })

	p.Check(context.Background())
	fake.Status("GET /health", http.StatusOK)
	p.Check(context.Background())
	p.Check(context.Background())

	assert.Equal(t, []bool{false, true}, notified)
}

func TestProber_NotifiesOnBaseURLChange(t *testing.T) {
	first := testhelpers.NewFakeBackend(t)
	first.Status("GET /health", http.StatusOK)
	second := testhelpers.NewFakeBackend(t)
	second.Status("GET /health", http.StatusOK)

	resolver, _ := newResolver(t, first.URL(), "")
	p := NewProber(resolver, testHealthConfig(), zap.NewNop())

	var notified []bool
	p.Subscribe(func(connected bool) { notified = append(notified, connected) })

	p.Check(context.Background())
	_, err := p.Override(context.Background(), second.URL())
	require.NoError(t, err)
	p.Check(context.Background())

	assert.Equal(t, []bool{true, true}, notified, "a healthy-to-healthy switch still notifies once")
}

func TestProber_Override(t *testing.T) {
	fake := testhelpers.NewFakeBackend(t)
	fake.Status("GET /health", http.StatusOK)

	resolver, _ := newResolver(t, "", "")
	p := NewProber(resolver, testHealthConfig(), zap.NewNop())

	state, err := p.Override(context.Background(), fake.URL()+"/")
	require.NoError(t, err)
	assert.True(t, state.IsConnected())
	assert.Equal(t, fake.URL(), state.ResolvedBaseURL)

	_, err = p.Override(context.Background(), "http://bad host")
	assert.Error(t, err)
}

func TestProber_CancelledCheckKeepsState(t *testing.T) {
	resolver, _ := newResolver(t, "", "")
	p := NewProber(resolver, testHealthConfig(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	state := p.Check(ctx)
	assert.Nil(t, state.Connected)
	assert.False(t, state.Checking)
}

func TestProber_RunChecksOnStartAndInterval(t *testing.T) {
	fake := testhelpers.NewFakeBackend(t)
	fake.Status("GET /health", http.StatusOK)

	resolver, _ := newResolver(t, fake.URL(), "")
	cfg := testHealthConfig()
	cfg.Interval = 10 * time.Millisecond
	p := NewProber(resolver, cfg, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	assert.Eventually(t, func() bool { return fake.Count("GET /health") >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	assert.True(t, p.Connected())
}
