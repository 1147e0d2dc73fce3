package roster

import (
	"math"
	"time"

	"github.com/argo-explorer/dashboard/pkg/jsonutil"
	"github.com/argo-explorer/dashboard/pkg/models"
)

// PositionEpsilon is how far, in degrees, a float must drift from its
// deployment position to count as active.
const PositionEpsilon = 1e-4

// Latest is the most recent known position of a float. Any field may be nil.
type Latest struct {
	Lat  *float64
	Lon  *float64
	Date *time.Time
}

// Complete reports whether every field is resolved.
func (l Latest) Complete() bool {
	return l.Lat != nil && l.Lon != nil && l.Date != nil
}

var (
	latestLatKeys  = []string{"latest_lat", "last_lat", "latest_latitude", "last_latitude", "lat", "latitude"}
	latestLonKeys  = []string{"latest_lon", "last_lon", "latest_longitude", "last_longitude", "lon", "lng", "longitude"}
	latestDateKeys = []string{"latest_date", "last_date", "last_profile_date", "latest_profile_date", "profile_date", "date", "timestamp", "time"}

	positionObjectKeys = []string{"latest_position", "last_position", "position", "location", "latest", "last"}
	datedArrayKeys     = []string{"profiles", "measurements"}
)

// lookup reads a key from a decoded JSON object.
type lookup func(key string) (any, bool)

func mapLookup(m map[string]any) lookup {
	return func(key string) (any, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// ExtractLatest searches a float details payload for the latest position:
// top-level keys, then nested position objects, then the last entry of
// positions, then the most recently dated profile. The search stops as soon
// as lat, lon and date are all resolved. A payload wrapping a floats array
// is searched through its first entry.
func ExtractLatest(payload *models.Row) Latest {
	var l Latest
	if payload == nil {
		return l
	}
	extract(&l, payload.Get)
	if !l.Complete() {
		if floats, ok := payload.Value("floats").([]any); ok && len(floats) > 0 {
			if first, ok := floats[0].(map[string]any); ok {
				extract(&l, mapLookup(first))
			}
		}
	}
	return l
}

func extract(l *Latest, get lookup) {
	fill(l, get)

	for _, key := range positionObjectKeys {
		if l.Complete() {
			return
		}
		if obj, ok := value(get, key).(map[string]any); ok {
			fill(l, mapLookup(obj))
		}
	}

	if !l.Complete() {
		if positions, ok := value(get, "positions").([]any); ok {
			for i := len(positions) - 1; i >= 0; i-- {
				if obj, ok := positions[i].(map[string]any); ok {
					fill(l, mapLookup(obj))
					break
				}
			}
		}
	}

	for _, key := range datedArrayKeys {
		if l.Complete() {
			return
		}
		if entries, ok := value(get, key).([]any); ok {
			if newest := mostRecent(entries); newest != nil {
				fill(l, mapLookup(newest))
			}
		}
	}
}

func value(get lookup, key string) any {
	v, _ := get(key)
	return v
}

// fill resolves still-missing fields from one object.
func fill(l *Latest, get lookup) {
	if l.Lat == nil {
		l.Lat = firstCoordinate(get, latestLatKeys, 90)
	}
	if l.Lon == nil {
		l.Lon = firstCoordinate(get, latestLonKeys, 180)
	}
	if l.Date == nil {
		for _, k := range latestDateKeys {
			if t, ok := jsonutil.Time(value(get, k)); ok {
				l.Date = &t
				break
			}
		}
	}
}

func firstCoordinate(get lookup, keys []string, limit float64) *float64 {
	for _, k := range keys {
		if f, ok := jsonutil.Float(value(get, k)); ok && math.Abs(f) <= limit {
			return &f
		}
	}
	return nil
}

// mostRecent returns the entry with the latest date; undated entries lose.
func mostRecent(entries []any) map[string]any {
	var best map[string]any
	var bestDate time.Time
	for _, e := range entries {
		obj, ok := e.(map[string]any)
		if !ok {
			continue
		}
		var probe Latest
		fill(&probe, mapLookup(obj))
		if probe.Date == nil {
			if best == nil {
				best = obj
			}
			continue
		}
		if bestDate.IsZero() || probe.Date.After(bestDate) {
			best, bestDate = obj, *probe.Date
		}
	}
	return best
}

// Classify reports whether a float is active: its latest date falls on a
// different UTC day than its deployment, or its latest position moved more
// than PositionEpsilon in either coordinate. Each comparison needs both sides.
func Classify(s models.FloatSummary, l Latest) bool {
	if l.Date != nil && s.DeploymentDate != nil && !sameDay(*l.Date, *s.DeploymentDate) {
		return true
	}
	if l.Lat != nil && s.DeploymentLat != nil && math.Abs(*l.Lat-*s.DeploymentLat) > PositionEpsilon {
		return true
	}
	if l.Lon != nil && s.DeploymentLon != nil && math.Abs(*l.Lon-*s.DeploymentLon) > PositionEpsilon {
		return true
	}
	return false
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
