package models

// SessionHistory is the backend's conversation memory for one session.
type SessionHistory struct {
	SessionID string           `json:"session_id"`
	History   []map[string]any `json:"history"`
	Context   any              `json:"context,omitempty"`
}

// SessionStatus is returned when a session is cleared.
type SessionStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
