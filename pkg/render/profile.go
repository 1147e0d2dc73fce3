package render

import (
	"github.com/argo-explorer/dashboard/pkg/jsonutil"
	"github.com/argo-explorer/dashboard/pkg/models"
)

// AllGroup is the single group used when rows are not partitioned.
const AllGroup = "all"

var profileParamOrder = []string{"temperature", "salinity", "pressure"}

// ProfileSpec says how to draw a depth profile.
type ProfileSpec struct {
	Y       string   `json:"y"`
	XOpts   []string `json:"x_opts"`
	InvertY bool     `json:"invert_y"`
	GroupBy string   `json:"group_by,omitempty"`
}

// InferProfileSpec fills every hint viz.spec leaves out from the row shape.
func InferProfileSpec(rows []*models.Row, viz *models.Viz) ProfileSpec {
	keys := firstKeys(rows)
	spec := ProfileSpec{
		Y:       viz.SpecString("y"),
		XOpts:   viz.SpecStrings("x_opts"),
		GroupBy: viz.SpecString("group_by"),
	}

	if spec.Y == "" {
		spec.Y = profileYKey(keys)
	}
	if len(spec.XOpts) == 0 {
		spec.XOpts = prioritize(numericKeys(rows, spec.Y), profileParamOrder)
	}
	if invert, ok := viz.SpecBool("invert_y"); ok {
		spec.InvertY = invert
	} else {
		spec.InvertY = spec.Y != "" && depthPattern.MatchString(spec.Y)
	}
	if spec.GroupBy == "" && viz != nil && viz.Kind == models.VizProfileComparison && hasKey(keys, "float_id") {
		spec.GroupBy = "float_id"
	}
	return spec
}

func profileYKey(keys []string) string {
	for _, want := range []string{"depth_m", "pressure"} {
		if hasKey(keys, want) {
			return want
		}
	}
	for _, k := range keys {
		if depthPattern.MatchString(k) {
			return k
		}
	}
	return ""
}

// Group is a partition of rows sharing one group-by value.
type Group struct {
	Key  string
	Rows []*models.Row
}

// GroupRows partitions rows by the string value of key, in order of first
// appearance. An empty key yields one AllGroup group. Rows missing the key
// land in "unknown".
func GroupRows(rows []*models.Row, key string) []Group {
	if key == "" {
		return []Group{{Key: AllGroup, Rows: rows}}
	}
	index := make(map[string]int)
	var groups []Group
	for _, row := range rows {
		name := jsonutil.StringValue(row.Value(key))
		if name == "" {
			name = "unknown"
		}
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, Group{Key: name})
		}
		groups[i].Rows = append(groups[i].Rows, row)
	}
	return groups
}

// Point is an (x, y) sample.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ProfileSeries is one parameter plotted against the y key.
type ProfileSeries struct {
	Param      string  `json:"param"`
	Unit       string  `json:"unit,omitempty"`
	Points     []Point `json:"points"`
	Stats      Stats   `json:"stats"`
	DepthRange Stats   `json:"depth_range"`
}

// ProfileGroup holds the series for one group.
type ProfileGroup struct {
	Key    string          `json:"key"`
	Series []ProfileSeries `json:"series"`
}

// ProfileView is the depth-profile section of a rendered result.
type ProfileView struct {
	Spec   ProfileSpec    `json:"spec"`
	Groups []ProfileGroup `json:"groups"`
}

// Series returns the series for param in group, or nil.
func (v *ProfileView) Series(group, param string) *ProfileSeries {
	if v == nil {
		return nil
	}
	for gi := range v.Groups {
		if v.Groups[gi].Key != group {
			continue
		}
		for si := range v.Groups[gi].Series {
			if v.Groups[gi].Series[si].Param == param {
				return &v.Groups[gi].Series[si]
			}
		}
	}
	return nil
}

// BuildProfile derives the profile section. Returns nil when no y key can be
// found or no parameter has a plottable point.
func BuildProfile(rows []*models.Row, viz *models.Viz) *ProfileView {
	spec := InferProfileSpec(rows, viz)
	if spec.Y == "" || len(spec.XOpts) == 0 {
		return nil
	}

	view := &ProfileView{Spec: spec}
	for _, group := range GroupRows(rows, spec.GroupBy) {
		pg := ProfileGroup{Key: group.Key}
		for _, param := range spec.XOpts {
			if s, ok := profileSeries(group.Rows, param, spec.Y); ok {
				pg.Series = append(pg.Series, s)
			}
		}
		if len(pg.Series) > 0 {
			view.Groups = append(view.Groups, pg)
		}
	}
	if len(view.Groups) == 0 {
		return nil
	}
	return view
}

func profileSeries(rows []*models.Row, param, yKey string) (ProfileSeries, bool) {
	var points []Point
	xs := make([]float64, 0, len(rows))
	ys := make([]float64, 0, len(rows))
	for _, row := range rows {
		x, ok := jsonutil.Float(row.Value(param))
		if !ok {
			continue
		}
		y, ok := jsonutil.Float(row.Value(yKey))
		if !ok {
			continue
		}
		points = append(points, Point{X: x, Y: y})
		xs = append(xs, x)
		ys = append(ys, y)
	}
	stats, ok := ComputeStats(xs)
	if !ok {
		return ProfileSeries{}, false
	}
	depth, _ := ComputeStats(ys)
	return ProfileSeries{
		Param:      param,
		Unit:       Unit(param),
		Points:     points,
		Stats:      stats,
		DepthRange: depth,
	}, true
}
