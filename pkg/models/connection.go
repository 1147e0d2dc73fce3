package models

import "time"

// ConnectionState is the health prober's view of the backend.
// Connected is nil only until the first probe completes.
type ConnectionState struct {
	Connected       *bool     `json:"connected"`
	LastCheckedAt   time.Time `json:"last_checked_at,omitzero"`
	ResolvedBaseURL string    `json:"resolved_base_url"`
	Checking        bool      `json:"checking"`
}

// IsConnected reports a definite connected state. Unknown counts as disconnected.
func (s ConnectionState) IsConnected() bool {
	return s.Connected != nil && *s.Connected
}

// Label is the badge text shown next to the indicator.
func (s ConnectionState) Label() string {
	switch {
	case s.Checking && s.Connected == nil:
		return "Checking..."
	case s.Connected == nil:
		return "Unknown"
	case *s.Connected:
		return "Connected"
	default:
		return "Disconnected"
	}
}
