package render

import (
	"fmt"
	"math"

	"github.com/jinzhu/inflection"
)

// Stats summarizes one parameter.
type Stats struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
}

// ComputeStats returns min/avg/max over values. ok is false for an empty slice.
func ComputeStats(values []float64) (Stats, bool) {
	if len(values) == 0 {
		return Stats{}, false
	}
	s := Stats{Count: len(values), Min: math.Inf(1), Max: math.Inf(-1)}
	sum := 0.0
	for _, v := range values {
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
		sum += v
	}
	s.Avg = sum / float64(len(values))
	return s, true
}

// Unit returns the display unit for an oceanographic parameter.
func Unit(param string) string {
	switch param {
	case "temperature", "avg_temperature", "avg_temp":
		return "°C"
	case "salinity", "avg_salinity", "avg_sal":
		return "psu"
	case "pressure":
		return "dbar"
	case "depth_m", "depth":
		return "m"
	default:
		return ""
	}
}

// Pluralize renders "1 float" / "6 floats".
func Pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %s", n, inflection.Plural(noun))
}
