// Package render turns an opaque query result into the sections a dashboard
// can draw: map, depth profile, time series, table, semantic matches and
// export links. Every section is optional; a malformed field only empties
// its own section.
package render

import (
	"github.com/argo-explorer/dashboard/pkg/models"
)

// Options carry the user-controlled state of a render pass.
type Options struct {
	DateRange DateRange
	Search    string
	Page      int
	PageSize  int
}

// View is a fully derived result, ready for a template or JSON client.
type View struct {
	Kind        string                 `json:"kind,omitempty"`
	Intent      string                 `json:"intent,omitempty"`
	Analysis    string                 `json:"analysis,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Count       *int                   `json:"count,omitempty"`
	CountLabel  string                 `json:"count_label,omitempty"`
	Map         *MapView               `json:"map,omitempty"`
	Profile     *ProfileView           `json:"profile,omitempty"`
	Timeseries  *TimeseriesView        `json:"timeseries,omitempty"`
	Table       *TableView             `json:"table,omitempty"`
	Semantic    []models.SemanticMatch `json:"semantic,omitempty"`
	Exports     []models.ExportOption  `json:"exports,omitempty"`
	Suggestions []string               `json:"suggestions,omitempty"`
}

// Empty reports whether the view has nothing to show.
func (v View) Empty() bool {
	return v.Analysis == "" && v.Error == "" && v.Count == nil && v.Map == nil &&
		v.Profile == nil && v.Timeseries == nil && v.Table == nil &&
		len(v.Semantic) == 0 && len(v.Exports) == 0
}

// Build derives every section of result. A nil result gives an empty View.
func Build(result *models.QueryResult, opts Options) View {
	if result == nil {
		return View{}
	}

	view := View{
		Intent:      result.Intent,
		Analysis:    result.Analysis,
		Error:       result.Error,
		Count:       result.DataCount,
		Semantic:    result.SemanticResults,
		Exports:     result.ExportOptions,
		Suggestions: result.Suggestions,
	}
	if result.DataCount != nil {
		view.CountLabel = "Found " + Pluralize(*result.DataCount, "data point")
	}

	viz := result.Viz
	rows := result.Data
	if viz != nil {
		view.Kind = viz.Kind
	}

	switch view.Kind {
	case models.VizMap, models.VizTrajectory, models.VizFloatList:
		view.Map = BuildMap(rows, viz)
	case models.VizProfile, models.VizProfileComparison:
		view.Profile = BuildProfile(rows, viz)
	case models.VizTimeseries, models.VizTemporal:
		view.Timeseries = BuildTimeseries(rows, viz, opts.DateRange)
	case "":
		if FindCoordinateKeys(firstKeys(rows)).OK() {
			view.Map = BuildMap(rows, nil)
			if view.Map != nil {
				view.Kind = models.VizMap
			}
		}
	}

	if result.DataIsArray && len(rows) > 0 {
		view.Table = BuildTable(rows, opts.Search, opts.Page, opts.PageSize)
	}
	return view
}
