package render

import (
	"maps"
	"slices"

	"github.com/argo-explorer/dashboard/pkg/jsonutil"
	"github.com/argo-explorer/dashboard/pkg/models"
)

// MapPoint is one plottable position.
type MapPoint struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Label string  `json:"label,omitempty"`
}

// MapView is the map section of a rendered result.
type MapView struct {
	Keys   CoordinateKeys `json:"keys"`
	Points []MapPoint     `json:"points,omitempty"`
	Line   []MapPoint     `json:"line,omitempty"`
	Start  *MapPoint      `json:"start,omitempty"`
	End    *MapPoint      `json:"end,omitempty"`
}

// Empty reports whether there is nothing to draw.
func (m *MapView) Empty() bool {
	return m == nil || (len(m.Points) == 0 && len(m.Line) == 0)
}

var labelKeys = []string{"float_id", "platform_number", "id", "name"}

// ValidPosition reports whether lat/lon lie on the globe.
func ValidPosition(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// MapPoints converts rows to positions using the coordinate keys found on the
// first row. Rows whose coordinates are missing, non-finite or out of range
// are dropped.
func MapPoints(rows []*models.Row) ([]MapPoint, CoordinateKeys) {
	keys := FindCoordinateKeys(firstKeys(rows))
	if !keys.OK() {
		return nil, keys
	}
	return pointsWithKeys(rows, keys), keys
}

func pointsWithKeys(rows []*models.Row, keys CoordinateKeys) []MapPoint {
	var out []MapPoint
	for _, row := range rows {
		if p, ok := rowPoint(row, keys); ok {
			out = append(out, p)
		}
	}
	return out
}

func rowPoint(row *models.Row, keys CoordinateKeys) (MapPoint, bool) {
	lat, ok := jsonutil.Float(row.Value(keys.Lat))
	if !ok {
		return MapPoint{}, false
	}
	lon, ok := jsonutil.Float(row.Value(keys.Lon))
	if !ok || !ValidPosition(lat, lon) {
		return MapPoint{}, false
	}
	p := MapPoint{Lat: lat, Lon: lon}
	if k := exactKey(row.Keys(), labelKeys); k != "" {
		p.Label = jsonutil.StringValue(row.Value(k))
	}
	return p, true
}

// specPoints reads an array of position objects from a viz hint. Each object
// is matched on its own keys.
func specPoints(v any) []MapPoint {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []MapPoint
	for _, item := range list {
		if p, ok := specPoint(item); ok {
			out = append(out, *p)
		}
	}
	return out
}

func specPoint(v any) (*MapPoint, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	row := models.NewRow()
	for _, k := range slices.Sorted(maps.Keys(obj)) {
		row.Set(k, obj[k])
	}
	p, ok := rowPoint(row, FindCoordinateKeys(row.Keys()))
	if !ok {
		return nil, false
	}
	return &p, true
}

// BuildMap derives the map section. Explicit line/points/start/end hints in
// viz.spec win; otherwise the rows are used. Returns nil when nothing is plottable.
func BuildMap(rows []*models.Row, viz *models.Viz) *MapView {
	view := &MapView{Keys: CoordinateKeys{Lat: "lat", Lon: "lon"}}
	if viz != nil {
		view.Line = specPoints(viz.Spec["line"])
		view.Points = specPoints(viz.Spec["points"])
		view.Start, _ = specPoint(viz.Spec["start"])
		view.End, _ = specPoint(viz.Spec["end"])
	}

	if view.Empty() {
		points, keys := MapPoints(rows)
		view.Points = points
		view.Keys = keys
		if viz != nil && viz.Kind == models.VizTrajectory {
			view.Line = points
		}
	}
	if view.Empty() {
		return nil
	}

	path := view.Line
	if len(path) == 0 {
		path = view.Points
	}
	if view.Start == nil {
		start := path[0]
		view.Start = &start
	}
	if view.End == nil {
		end := path[len(path)-1]
		view.End = &end
	}
	return view
}
