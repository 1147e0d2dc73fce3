// Package session keeps per-browser dashboard state in a signed cookie: the
// conversation id sent to the backend with every query, and the suggestion
// chips currently on display.
package session

import (
	"crypto/sha256"
	"net/http"
	"slices"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"github.com/argo-explorer/dashboard/pkg/config"
)

// DefaultCookieName is used when the configuration leaves the name empty.
const DefaultCookieName = "argo_explorer"

// Session value keys.
const (
	KeySessionID   = "session_id"
	KeySuggestions = "suggestions"
)

// maxAge keeps a conversation for a week of inactivity.
const maxAge = 7 * 24 * 60 * 60

// Store issues and reads dashboard sessions.
type Store struct {
	store  sessions.Store
	name   string
	logger *zap.Logger
}

// NewStore creates a cookie-backed store.
//
// The secret can be any passphrase; it is SHA-256 hashed to derive a 32-byte
// key. Without a secret a random key is generated, so sessions do not survive
// a restart. secure marks the cookie HTTPS-only.
func NewStore(cfg config.SessionConfig, secure bool, logger *zap.Logger) *Store {
	logger = logger.Named("session")

	var key []byte
	if cfg.Secret != "" {
		sum := sha256.Sum256([]byte(cfg.Secret))
		key = sum[:]
	} else {
		key = securecookie.GenerateRandomKey(32)
		logger.Warn("SESSION_SECRET is not set; sessions will not survive a restart")
	}

	cs := sessions.NewCookieStore(key)
	cs.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}

	name := cfg.CookieName
	if name == "" {
		name = DefaultCookieName
	}
	return &Store{store: cs, name: name, logger: logger}
}

// Get returns the request's session. A missing, expired or tampered cookie
// yields a fresh session rather than an error.
func (s *Store) Get(r *http.Request) *Dashboard {
	sess, err := s.store.Get(r, s.name)
	if err != nil {
		s.logger.Debug("Discarding unreadable session cookie", zap.Error(err))
		sess = sessions.NewSession(s.store, s.name)
		sess.IsNew = true
		if cs, ok := s.store.(*sessions.CookieStore); ok {
			opts := *cs.Options
			sess.Options = &opts
		}
	}
	return &Dashboard{session: sess}
}

// Dashboard is one browser's session.
type Dashboard struct {
	session *sessions.Session
}

// ID returns the conversation id, or "" when none was issued yet.
func (d *Dashboard) ID() string {
	id, _ := d.session.Values[KeySessionID].(string)
	return id
}

// EnsureID returns the conversation id, issuing a new one when missing.
func (d *Dashboard) EnsureID() string {
	if id := d.ID(); id != "" {
		return id
	}
	id := uuid.NewString()
	d.session.Values[KeySessionID] = id
	return id
}

// SetID adopts an id chosen by the backend. Empty ids are ignored.
func (d *Dashboard) SetID(id string) {
	if id != "" {
		d.session.Values[KeySessionID] = id
	}
}

// Suggestions returns the chips on display, or nil.
func (d *Dashboard) Suggestions() []string {
	list, _ := d.session.Values[KeySuggestions].([]string)
	return slices.Clone(list)
}

func (d *Dashboard) SetSuggestions(list []string) {
	if len(list) == 0 {
		delete(d.session.Values, KeySuggestions)
		return
	}
	d.session.Values[KeySuggestions] = slices.Clone(list)
}

// Reset forgets the conversation and its suggestions.
func (d *Dashboard) Reset() {
	delete(d.session.Values, KeySessionID)
	delete(d.session.Values, KeySuggestions)
}

// Save writes the session cookie.
func (d *Dashboard) Save(w http.ResponseWriter, r *http.Request) error {
	return d.session.Save(r, w)
}
