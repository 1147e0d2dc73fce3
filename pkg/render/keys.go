package render

import (
	"regexp"
	"strings"

	"github.com/argo-explorer/dashboard/pkg/jsonutil"
	"github.com/argo-explorer/dashboard/pkg/models"
)

var (
	latitudeExact  = []string{"latitude", "lat"}
	longitudeExact = []string{"longitude", "lon", "lng"}

	latitudePattern  = regexp.MustCompile(`(?i)latitude|(^|_)lat($|_)`)
	longitudePattern = regexp.MustCompile(`(?i)longitude|(^|_)(lon|lng)($|_)`)
	depthPattern     = regexp.MustCompile(`(?i)depth|press`)
	datePattern      = regexp.MustCompile(`(?i)date|time`)
)

// CoordinateKeys names the latitude and longitude fields of a row set.
type CoordinateKeys struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// OK reports whether both keys were found.
func (k CoordinateKeys) OK() bool {
	return k.Lat != "" && k.Lon != ""
}

// FindCoordinateKeys picks latitude/longitude keys: exact case-insensitive
// names first (latitude, lat / longitude, lon, lng), then the first key
// matching the latitude or longitude pattern.
func FindCoordinateKeys(keys []string) CoordinateKeys {
	return CoordinateKeys{
		Lat: matchKey(keys, latitudeExact, latitudePattern),
		Lon: matchKey(keys, longitudeExact, longitudePattern),
	}
}

func matchKey(keys, exact []string, pattern *regexp.Regexp) string {
	if k := exactKey(keys, exact); k != "" {
		return k
	}
	if pattern == nil {
		return ""
	}
	for _, k := range keys {
		if pattern.MatchString(k) {
			return k
		}
	}
	return ""
}

// exactKey returns the first key equal (case-insensitively) to a wanted name,
// honouring the order of wanted.
func exactKey(keys, wanted []string) string {
	for _, want := range wanted {
		for _, k := range keys {
			if strings.EqualFold(k, want) {
				return k
			}
		}
	}
	return ""
}

// firstKeys returns the keys of the first row, which define the columns.
func firstKeys(rows []*models.Row) []string {
	if len(rows) == 0 {
		return nil
	}
	return rows[0].Keys()
}

func hasKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

// isNumericKey reports whether the first non-null value under key parses as a number.
func isNumericKey(rows []*models.Row, key string) bool {
	for _, row := range rows {
		v, ok := row.Get(key)
		if !ok || v == nil {
			continue
		}
		_, isNum := jsonutil.Float(v)
		return isNum
	}
	return false
}

// numericKeys returns the numeric-looking keys of the first row, in row order.
func numericKeys(rows []*models.Row, exclude ...string) []string {
	var out []string
	for _, k := range firstKeys(rows) {
		if hasKey(exclude, k) {
			continue
		}
		if isNumericKey(rows, k) {
			out = append(out, k)
		}
	}
	return out
}

// prioritize moves the preferred keys present in keys to the front, in the
// order given, and keeps the rest in their original order.
func prioritize(keys, preferred []string) []string {
	out := make([]string, 0, len(keys))
	for _, p := range preferred {
		if hasKey(keys, p) {
			out = append(out, p)
		}
	}
	for _, k := range keys {
		if !hasKey(preferred, k) {
			out = append(out, k)
		}
	}
	return out
}
