package render

import (
	"sort"
	"time"

	"github.com/argo-explorer/dashboard/pkg/jsonutil"
	"github.com/argo-explorer/dashboard/pkg/models"
)

var (
	timeseriesXOrder = []string{"profile_date", "date", "timestamp", "time", "datetime"}
	timeseriesYOrder = []string{"avg_temperature", "avg_temp", "temperature", "avg_salinity", "avg_sal", "salinity", "value"}
)

// TimeseriesSpec names the time and value keys of a series.
type TimeseriesSpec struct {
	X string `json:"x"`
	Y string `json:"y"`
}

// InferTimeseriesSpec fills the x and y keys viz.spec leaves out.
func InferTimeseriesSpec(rows []*models.Row, viz *models.Viz) TimeseriesSpec {
	keys := firstKeys(rows)
	spec := TimeseriesSpec{X: viz.SpecString("x"), Y: viz.SpecString("y")}

	if spec.X == "" {
		spec.X = matchKey(keys, timeseriesXOrder, datePattern)
	}
	if spec.Y == "" {
		spec.Y = exactKey(keys, timeseriesYOrder)
	}
	if spec.Y == "" {
		if numeric := numericKeys(rows, spec.X); len(numeric) > 0 {
			spec.Y = numeric[0]
		}
	}
	return spec
}

// DateRange is an optional inclusive range of days.
type DateRange struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// DateBounds returns the earliest and latest parseable date under key.
func DateBounds(rows []*models.Row, key string) (DateRange, bool) {
	var lo, hi time.Time
	found := false
	for _, row := range rows {
		t, ok := jsonutil.Time(row.Value(key))
		if !ok {
			continue
		}
		if !found || t.Before(lo) {
			lo = t
		}
		if !found || t.After(hi) {
			hi = t
		}
		found = true
	}
	if !found {
		return DateRange{}, false
	}
	return DateRange{Start: &lo, End: &hi}, true
}

// dayStart truncates t to midnight UTC.
func dayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// dayEnd is 23:59:59.999 UTC on t's day.
func dayEnd(t time.Time) time.Time {
	return dayStart(t).Add(24*time.Hour - time.Millisecond)
}

// FilterByDate returns the rows whose date under key falls inside r, compared
// by whole UTC days at both ends. rows is never modified. With a bound set,
// rows whose date cannot be parsed are excluded.
func FilterByDate(rows []*models.Row, key string, r DateRange) []*models.Row {
	out := make([]*models.Row, 0, len(rows))
	if r.Start == nil && r.End == nil {
		return append(out, rows...)
	}
	var lo, hi time.Time
	if r.Start != nil {
		lo = dayStart(*r.Start)
	}
	if r.End != nil {
		hi = dayEnd(*r.End)
	}
	for _, row := range rows {
		t, ok := jsonutil.Time(row.Value(key))
		if !ok {
			continue
		}
		if r.Start != nil && t.Before(lo) {
			continue
		}
		if r.End != nil && t.After(hi) {
			continue
		}
		out = append(out, row)
	}
	return out
}

// TimePoint is one sample of a series.
type TimePoint struct {
	T time.Time `json:"t"`
	V float64   `json:"v"`
}

// TimeseriesView is the time-series section of a rendered result.
type TimeseriesView struct {
	Spec         TimeseriesSpec `json:"spec"`
	Unit         string         `json:"unit,omitempty"`
	Bounds       DateRange      `json:"bounds"`
	Filter       DateRange      `json:"filter"`
	Points       []TimePoint    `json:"points"`
	Stats        *Stats         `json:"stats,omitempty"`
	DurationDays float64        `json:"duration_days"`
}

// BuildTimeseries derives the time-series section, filtered by r. Bounds
// always cover the unfiltered rows so the filter controls keep their range.
// Returns nil when no x or y key can be inferred.
func BuildTimeseries(rows []*models.Row, viz *models.Viz, r DateRange) *TimeseriesView {
	spec := InferTimeseriesSpec(rows, viz)
	if spec.X == "" || spec.Y == "" {
		return nil
	}

	view := &TimeseriesView{Spec: spec, Unit: Unit(spec.Y), Filter: r}
	view.Bounds, _ = DateBounds(rows, spec.X)

	values := make([]float64, 0, len(rows))
	for _, row := range FilterByDate(rows, spec.X, r) {
		t, ok := jsonutil.Time(row.Value(spec.X))
		if !ok {
			continue
		}
		v, ok := jsonutil.Float(row.Value(spec.Y))
		if !ok {
			continue
		}
		view.Points = append(view.Points, TimePoint{T: t, V: v})
		values = append(values, v)
	}
	sort.SliceStable(view.Points, func(i, j int) bool {
		return view.Points[i].T.Before(view.Points[j].T)
	})

	if stats, ok := ComputeStats(values); ok {
		view.Stats = &stats
		first, last := view.Points[0].T, view.Points[len(view.Points)-1].T
		view.DurationDays = last.Sub(first).Hours() / 24
	}
	return view
}
