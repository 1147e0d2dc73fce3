// Package health tracks whether the ARGO backend is reachable.
package health

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/argo-explorer/dashboard/pkg/apiurl"
	"github.com/argo-explorer/dashboard/pkg/config"
	"github.com/argo-explorer/dashboard/pkg/logging"
	"github.com/argo-explorer/dashboard/pkg/models"
	"github.com/argo-explorer/dashboard/pkg/probe"
)

// Prober checks the backend's health endpoint on an interval and on demand.
//
// Candidates are tried in order: the configured base URL, the page origin, and
// the page origin under /api. When a candidate other than the configured base
// answers, its root becomes the new base URL override.
type Prober struct {
	client   *http.Client
	resolver *apiurl.Resolver
	cfg      config.HealthConfig
	logger   *zap.Logger
	now      func() time.Time

	// checkMu serializes probe cycles; manual and scheduled checks never overlap.
	checkMu sync.Mutex

	mu          sync.RWMutex
	state       models.ConnectionState
	subscribers []func(connected bool)
}

// NewProber creates a prober. Zero config values fall back to 30s / 5s / "/health".
func NewProber(resolver *apiurl.Resolver, cfg config.HealthConfig, logger *zap.Logger) *Prober {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Path == "" {
		cfg.Path = "/health"
	}
	return &Prober{
		client:   &http.Client{},
		resolver: resolver,
		cfg:      cfg,
		logger:   logger.Named("health-prober"),
		now:      time.Now,
		state:    models.ConnectionState{ResolvedBaseURL: resolver.BaseURL()},
	}
}

// State returns a snapshot of the connection state.
func (p *Prober) State() models.ConnectionState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Connected reports a definite connection. Unknown counts as disconnected.
func (p *Prober) Connected() bool {
	return p.State().IsConnected()
}

// Subscribe registers fn to be called whenever the connected flag or the
// resolved base URL changes, including the first probe result.
func (p *Prober) Subscribe(fn func(connected bool)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, fn)
}

// Run checks immediately and then every interval until ctx is done.
func (p *Prober) Run(ctx context.Context) error {
	p.logger.Info("Health prober started",
		zap.Duration("interval", p.cfg.Interval),
		zap.Duration("timeout", p.cfg.Timeout))

	p.Check(ctx)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Health prober stopped")
			return nil
		case <-ticker.C:
			p.Check(ctx)
		}
	}
}

// Override sets the base URL (empty clears it) and re-checks.
func (p *Prober) Override(ctx context.Context, baseURL string) (models.ConnectionState, error) {
	if err := p.resolver.SetBaseURL(baseURL); err != nil {
		return p.State(), err
	}
	return p.Check(ctx), nil
}

// Candidates returns the health URLs for the next probe, duplicates removed.
func (p *Prober) Candidates() []string {
	var candidates []string
	seen := make(map[string]bool)
	add := func(base string) {
		joined, err := apiurl.Join(base, p.cfg.Path, nil)
		if err != nil {
			return
		}
		abs, err := p.resolver.Absolute(joined)
		if err != nil || seen[abs] {
			return
		}
		seen[abs] = true
		candidates = append(candidates, abs)
	}

	add(p.resolver.BaseURL())
	if origin := p.resolver.PageOrigin(); origin != "" {
		add(origin)
		add(origin + "/api")
	}
	return candidates
}

// Check runs one probe cycle and returns the resulting state. A cancelled ctx
// leaves the previous state untouched.
func (p *Prober) Check(ctx context.Context) models.ConnectionState {
	p.checkMu.Lock()
	defer p.checkMu.Unlock()

	p.setChecking(true)

	configured := p.resolver.BaseURL()
	candidates := p.Candidates()

	res, err := probe.FirstSuccess(ctx, p.client, candidates, probe.Options{
		Timeout: p.cfg.Timeout,
		Header:  http.Header{"Accept": {"application/json"}},
	})
	if ctx.Err() != nil {
		p.setChecking(false)
		return p.State()
	}

	connected := err == nil
	if connected {
		if root := p.rootOf(res.URL); root != "" && !p.isConfigured(configured, res.URL) {
			p.logger.Info("Discovered backend at alternate URL",
				zap.String("previous", logging.SanitizeURL(configured)),
				zap.String("discovered", logging.SanitizeURL(root)))
			if setErr := p.resolver.SetBaseURL(root); setErr != nil {
				p.logger.Warn("Failed to persist discovered base URL", zap.Error(setErr))
			}
		}
	} else {
		p.logger.Debug("Backend health check failed",
			zap.Int("candidates", len(candidates)),
			zap.String("error", logging.SanitizeError(err)))
	}

	return p.finish(connected)
}

func (p *Prober) setChecking(checking bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Checking = checking
}

func (p *Prober) finish(connected bool) models.ConnectionState {
	p.mu.Lock()
	baseURL := p.resolver.BaseURL()
	flipped := p.state.Connected == nil || *p.state.Connected != connected
	moved := p.state.ResolvedBaseURL != baseURL
	p.state.Connected = &connected
	p.state.LastCheckedAt = p.now()
	p.state.ResolvedBaseURL = baseURL
	p.state.Checking = false
	state := p.state
	subscribers := slices.Clone(p.subscribers)
	p.mu.Unlock()

	if flipped || moved {
		p.logger.Info("Backend connection state changed",
			zap.Bool("connected", connected),
			zap.String("base_url", logging.SanitizeURL(state.ResolvedBaseURL)))
		for _, fn := range subscribers {
			fn(connected)
		}
	}
	return state
}

// rootOf strips the health path (and any query) from a candidate URL.
func (p *Prober) rootOf(candidate string) string {
	u, err := url.Parse(candidate)
	if err != nil {
		return ""
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/"+strings.TrimLeft(p.cfg.Path, "/"))
	u.RawPath = ""
	return strings.TrimRight(u.String(), "/")
}

// isConfigured reports whether candidate is the health URL of the configured base.
func (p *Prober) isConfigured(configured, candidate string) bool {
	joined, err := apiurl.Join(configured, p.cfg.Path, nil)
	if err != nil {
		return false
	}
	abs, err := p.resolver.Absolute(joined)
	if err != nil {
		return false
	}
	return abs == candidate
}
