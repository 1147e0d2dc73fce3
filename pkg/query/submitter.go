// Package query submits natural-language questions to the backend.
package query

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/argo-explorer/dashboard/pkg/apperrors"
	"github.com/argo-explorer/dashboard/pkg/logging"
	"github.com/argo-explorer/dashboard/pkg/models"
)

// DefaultSuggestions are shown until a response supplies its own.
var DefaultSuggestions = []string{
	"How many floats are in the Arabian Sea?",
	"Show me temperature profiles for float 2902094",
	"Find floats near latitude 15.0, longitude 60.0",
}

// ConnectionGate reports whether the backend is currently reachable.
type ConnectionGate interface {
	Connected() bool
}

// Backend is the part of the backend client the submitter needs.
type Backend interface {
	Query(ctx context.Context, req models.QueryRequest) (*models.QueryResult, error)
}

// Submitter sends one query at a time per session. Submit is safe for
// concurrent use; a call made while the same session has one in flight
// returns ErrQueryInFlight without sending anything. Other sessions are not
// affected.
type Submitter struct {
	backend  Backend
	gate     ConnectionGate
	logger   *zap.Logger
	inFlight sync.Map // session id -> struct{}
}

func NewSubmitter(backend Backend, gate ConnectionGate, logger *zap.Logger) *Submitter {
	return &Submitter{
		backend: backend,
		gate:    gate,
		logger:  logger.Named("query"),
	}
}

// InFlight reports whether sessionID has a submission waiting for its response.
func (s *Submitter) InFlight(sessionID string) bool {
	_, ok := s.inFlight.Load(sessionID)
	return ok
}

// Submit sends text with sessionID. The checks run in order: empty text,
// a submission already in flight for the session, then a disconnected backend.
func (s *Submitter) Submit(ctx context.Context, text, sessionID string) (*models.QueryResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.ErrEmptyQuery
	}
	if _, busy := s.inFlight.LoadOrStore(sessionID, struct{}{}); busy {
		return nil, apperrors.ErrQueryInFlight
	}
	defer s.inFlight.Delete(sessionID)

	if s.gate != nil && !s.gate.Connected() {
		return nil, apperrors.ErrNotConnected
	}

	result, err := s.backend.Query(ctx, models.QueryRequest{Query: text, SessionID: sessionID})
	if err != nil {
		s.logger.Warn("Query failed",
			zap.String("query", logging.SanitizeQueryText(text)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, err
	}

	s.logger.Info("Query answered",
		zap.String("query", logging.SanitizeQueryText(text)),
		zap.String("intent", result.Intent),
		zap.Int("rows", len(result.Data)))
	return result, nil
}

// Suggestions returns the suggestion chips to show after result: the
// response's own list when it has one, otherwise current.
func Suggestions(result *models.QueryResult, current []string) []string {
	if result != nil && len(result.Suggestions) > 0 {
		return append([]string(nil), result.Suggestions...)
	}
	if len(current) == 0 {
		return append([]string(nil), DefaultSuggestions...)
	}
	return current
}
