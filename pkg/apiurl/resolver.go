// Package apiurl resolves and persists the backend's root URL and builds
// request URLs from endpoint paths.
package apiurl

import (
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/argo-explorer/dashboard/pkg/apperrors"
	"github.com/argo-explorer/dashboard/pkg/logging"
)

// Options configures a Resolver.
type Options struct {
	// Default is the compiled-in backend URL.
	Default string
	// PageOrigin is the origin the dashboard is served from.
	PageOrigin string
	// Development disables the page-origin fallback.
	Development bool
	Store       Store
	Logger      *zap.Logger
}

// Resolver is the single source of truth for the backend base URL.
// It is safe for concurrent use; concurrent writers race and the last one wins.
type Resolver struct {
	defaultURL  string
	pageOrigin  *url.URL
	development bool
	store       Store
	logger      *zap.Logger
}

// NewResolver creates a resolver. An unparseable page origin is treated as absent.
func NewResolver(opts Options) *Resolver {
	store := opts.Store
	if store == nil {
		store = NewMemoryStore()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Resolver{
		defaultURL:  Normalize(opts.Default),
		development: opts.Development,
		store:       store,
		logger:      logger.Named("apiurl"),
	}
	if origin := Normalize(opts.PageOrigin); origin != "" {
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			r.pageOrigin = &url.URL{Scheme: u.Scheme, Host: u.Host}
		}
	}
	return r
}

// BaseURL returns the override when one is persisted, otherwise the page origin
// when running outside development on a non-local host, otherwise the default.
func (r *Resolver) BaseURL() string {
	if override, ok := r.Override(); ok {
		return override
	}
	if !r.development && r.pageOrigin != nil && !isLocalHost(r.pageOrigin.Hostname()) {
		return r.pageOrigin.String()
	}
	return r.defaultURL
}

// Override returns the persisted override, if any.
func (r *Resolver) Override() (string, bool) {
	value, err := r.store.Get()
	if err != nil {
		r.logger.Warn("Failed to read base URL override, ignoring it", zap.Error(err))
		return "", false
	}
	value = Normalize(value)
	return value, value != ""
}

// Default returns the compiled-in base URL.
func (r *Resolver) Default() string {
	return r.defaultURL
}

// PageOrigin returns the dashboard's own origin, or "" when unknown.
func (r *Resolver) PageOrigin() string {
	if r.pageOrigin == nil {
		return ""
	}
	return r.pageOrigin.String()
}

// SetBaseURL normalizes and persists value. An empty value clears the override.
func (r *Resolver) SetBaseURL(value string) error {
	normalized := Normalize(value)
	if normalized == "" {
		if err := r.store.Clear(); err != nil {
			return fmt.Errorf("failed to clear base URL override: %w", err)
		}
		r.logger.Info("Cleared base URL override")
		return nil
	}

	if _, err := url.Parse(normalized); err != nil {
		return fmt.Errorf("%w: %q", apperrors.ErrInvalidBaseURL, value)
	}

	if err := r.store.Set(normalized); err != nil {
		return fmt.Errorf("failed to persist base URL override: %w", err)
	}
	r.logger.Info("Updated base URL override", zap.String("base_url", logging.SanitizeURL(normalized)))
	return nil
}

// BuildURL joins the current base URL with endpoint and appends params.
// An endpoint that is already absolute is used as is.
func (r *Resolver) BuildURL(endpoint string, params url.Values) (string, error) {
	return Join(r.BaseURL(), endpoint, params)
}

// AbsoluteURL is BuildURL with origin-relative results resolved against the page
// origin, for requests made from this process rather than from the browser.
func (r *Resolver) AbsoluteURL(endpoint string, params url.Values) (string, error) {
	built, err := r.BuildURL(endpoint, params)
	if err != nil {
		return "", err
	}
	return r.Absolute(built)
}

// Absolute resolves an already-built URL against the page origin.
func (r *Resolver) Absolute(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q", apperrors.ErrInvalidBaseURL, raw)
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	if r.pageOrigin == nil {
		return "", fmt.Errorf("%w: %q is relative and no page origin is configured", apperrors.ErrInvalidBaseURL, raw)
	}
	return r.pageOrigin.ResolveReference(u).String(), nil
}

// SameOrigin reports whether raw, once resolved, has the scheme and host of the
// current base URL. Links handed over by the backend are only followed when it
// holds, so a crafted link cannot point this process at another host.
func (r *Resolver) SameOrigin(raw string) bool {
	target, err := r.Absolute(raw)
	if err != nil {
		return false
	}
	base, err := r.Absolute(r.BaseURL())
	if err != nil {
		return false
	}
	t, err := url.Parse(target)
	if err != nil {
		return false
	}
	b, err := url.Parse(base)
	if err != nil {
		return false
	}
	return strings.EqualFold(t.Scheme, b.Scheme) && strings.EqualFold(t.Host, b.Host)
}

// Join joins base and endpoint with exactly one slash between them and sets
// each param once, URL-encoded and sorted by key. base may be absolute, an
// origin-relative prefix such as "/api", or empty.
func Join(base, endpoint string, params url.Values) (string, error) {
	var joined string
	if isAbsolute(endpoint) {
		joined = endpoint
	} else {
		trimmedBase := strings.TrimRight(base, "/")
		trimmedEndpoint := strings.TrimLeft(endpoint, "/")
		joined = trimmedBase + "/" + trimmedEndpoint
	}

	u, err := url.Parse(joined)
	if err != nil {
		return "", fmt.Errorf("%w: %q", apperrors.ErrInvalidBaseURL, joined)
	}

	if len(params) > 0 {
		q := u.Query()
		for key, values := range params {
			if key == "" {
				continue
			}
			q[key] = append([]string(nil), values...)
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Normalize trims whitespace, adds http:// to scheme-less hosts and strips
// trailing slashes. Origin-relative prefixes ("/api") are kept relative.
func Normalize(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}
	if strings.HasPrefix(value, "/") {
		trimmed := strings.TrimRight(value, "/")
		if trimmed == "" {
			return "/"
		}
		return trimmed
	}
	if !isAbsolute(value) {
		value = "http://" + value
	}
	return strings.TrimRight(value, "/")
}

func isAbsolute(raw string) bool {
	lower := strings.ToLower(raw)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func isLocalHost(host string) bool {
	return host == "localhost" || host == "127.0.0.1"
}
