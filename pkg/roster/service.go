// Package roster loads the float network panel: a bounded list of float
// summaries, each enriched with its latest known position.
package roster

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/argo-explorer/dashboard/pkg/config"
	"github.com/argo-explorer/dashboard/pkg/logging"
	"github.com/argo-explorer/dashboard/pkg/models"
	"github.com/argo-explorer/dashboard/pkg/retry"
	"github.com/argo-explorer/dashboard/pkg/workerpool"
)

// CountQuery asks the backend for the network size when the listing omits it.
const CountQuery = "how many floats"

// Backend is the part of the backend client the roster needs.
type Backend interface {
	ListFloats(ctx context.Context, limit, offset int) (*models.FloatList, error)
	FloatDetails(ctx context.Context, floatID string) (*models.Row, error)
	Query(ctx context.Context, req models.QueryRequest) (*models.QueryResult, error)
}

// Roster is one loaded float panel.
type Roster struct {
	Floats     []models.FloatSummary `json:"floats"`
	TotalCount *int                  `json:"total_count,omitempty"`
	HasMore    bool                  `json:"has_more"`
	Enriched   int                   `json:"enriched"`
	LoadedAt   time.Time             `json:"loaded_at"`
}

// ActiveCount returns how many floats are classified active.
func (r *Roster) ActiveCount() int {
	n := 0
	for _, f := range r.Floats {
		if f.Active {
			n++
		}
	}
	return n
}

// Service loads rosters.
type Service struct {
	backend Backend
	pool    *workerpool.Pool
	retry   *retry.Config
	cfg     config.RosterConfig
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(backend Backend, cfg config.RosterConfig, logger *zap.Logger) *Service {
	return &Service{
		backend: backend,
		pool:    workerpool.New(workerpool.Config{MaxConcurrent: cfg.MaxConcurrent}, logger),
		retry:   retry.DefaultConfig(),
		cfg:     cfg,
		logger:  logger.Named("roster"),
		now:     time.Now,
	}
}

// Load fetches up to the configured number of floats and enriches each one
// concurrently. Only the listing itself can fail the load; a float whose
// details cannot be read keeps its deployment data and is marked inactive.
func (s *Service) Load(ctx context.Context) (*Roster, error) {
	list, err := retry.DoWithResultIfRetryable(ctx, s.retry, func() (*models.FloatList, error) {
		return s.backend.ListFloats(ctx, s.cfg.Limit, 0)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list floats: %w", err)
	}

	floats := list.Floats
	if len(floats) > s.cfg.Limit {
		floats = floats[:s.cfg.Limit]
	}
	roster := &Roster{
		Floats:     append([]models.FloatSummary(nil), floats...),
		TotalCount: list.TotalCount,
		HasMore:    list.HasMore,
	}

	roster.Enriched = s.enrich(ctx, roster.Floats)

	if roster.TotalCount == nil {
		roster.TotalCount = s.countFloats(ctx)
	}
	roster.LoadedAt = s.now()

	s.logger.Info("Roster loaded",
		zap.Int("floats", len(roster.Floats)),
		zap.Int("enriched", roster.Enriched),
		zap.Int("active", roster.ActiveCount()))
	return roster, nil
}

// enrich fills the latest position of each float in place and returns how
// many were enriched.
func (s *Service) enrich(ctx context.Context, floats []models.FloatSummary) int {
	items := make([]workerpool.Item[Latest], 0, len(floats))
	index := make([]int, 0, len(floats))
	for i := range floats {
		id := floats[i].FloatID
		if id == "" {
			floats[i].Active = false
			continue
		}
		index = append(index, i)
		items = append(items, workerpool.Item[Latest]{
			ID: id,
			Execute: func(ctx context.Context) (Latest, error) {
				if s.cfg.EnrichTimeout > 0 {
					var cancel context.CancelFunc
					ctx, cancel = context.WithTimeout(ctx, s.cfg.EnrichTimeout)
					defer cancel()
				}
				payload, err := s.backend.FloatDetails(ctx, id)
				if err != nil {
					return Latest{}, err
				}
				return ExtractLatest(payload), nil
			},
		})
	}

	enriched := 0
	for _, res := range workerpool.Process(ctx, s.pool, items, nil) {
		f := &floats[index[res.Index]]
		if res.Err != nil {
			s.logger.Debug("Float enrichment failed",
				zap.String("float_id", f.FloatID),
				zap.String("error", logging.SanitizeError(res.Err)))
			f.LatestLat, f.LatestLon, f.LatestDate = nil, nil, nil
			f.Active = false
			continue
		}
		latest := res.Value
		f.LatestLat, f.LatestLon, f.LatestDate = latest.Lat, latest.Lon, latest.Date
		f.Active = Classify(*f, latest)
		enriched++
	}
	return enriched
}

// countFloats falls back to a natural-language count query. Failures leave
// the count unknown.
func (s *Service) countFloats(ctx context.Context) *int {
	result, err := s.backend.Query(ctx, models.QueryRequest{Query: CountQuery})
	if err != nil {
		s.logger.Debug("Float count query failed", zap.String("error", logging.SanitizeError(err)))
		return nil
	}
	return result.DataCount
}
