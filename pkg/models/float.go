package models

import (
	"encoding/json"
	"time"

	"github.com/argo-explorer/dashboard/pkg/jsonutil"
)

// FloatSummary is one row of the float roster.
// Deployment fields come from the roster listing; Latest* fields are filled by
// enrichment and stay nil when no details payload could be read.
type FloatSummary struct {
	FloatID        string     `json:"float_id"`
	PIName         string     `json:"pi_name,omitempty"`
	Institution    string     `json:"institution,omitempty"`
	DeploymentLat  *float64   `json:"deployment_lat,omitempty"`
	DeploymentLon  *float64   `json:"deployment_lon,omitempty"`
	DeploymentDate *time.Time `json:"deployment_date,omitempty"`
	Project        string     `json:"project,omitempty"`
	DataCenter     string     `json:"data_center,omitempty"`

	LatestLat  *float64   `json:"latest_lat,omitempty"`
	LatestLon  *float64   `json:"latest_lon,omitempty"`
	LatestDate *time.Time `json:"latest_date,omitempty"`
	Active     bool       `json:"active"`
}

// floatAliases lists accepted source keys per field, in priority order.
// The second name of each pair is the one the ARGO backend emits today.
var floatAliases = struct {
	id, pi, institution, lat, lon, date, project, dataCenter, latestDate []string
}{
	id:          []string{"float_id", "platform_number", "id"},
	pi:          []string{"pi_name"},
	institution: []string{"institution", "operating_institute"},
	lat:         []string{"deployment_lat", "launch_latitude", "deployment_latitude"},
	lon:         []string{"deployment_lon", "launch_longitude", "deployment_longitude"},
	date:        []string{"deployment_date", "launch_date"},
	project:     []string{"project", "project_name"},
	dataCenter:  []string{"data_center", "data_centre"},
	latestDate:  []string{"latest_date", "last_profile_date"},
}

// UnmarshalJSON accepts both the summary's own field names and the backend's
// platform_* / launch_* names. Unparseable values are left empty.
func (f *FloatSummary) UnmarshalJSON(data []byte) error {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*f = FloatSummaryFromMap(fields)
	return nil
}

// FloatSummaryFromMap builds a summary from a decoded JSON object.
func FloatSummaryFromMap(fields map[string]any) FloatSummary {
	pick := func(keys []string) any {
		for _, k := range keys {
			if v, ok := fields[k]; ok && v != nil {
				return v
			}
		}
		return nil
	}
	str := func(keys []string) string {
		return jsonutil.StringValue(pick(keys))
	}
	num := func(keys []string) *float64 {
		if v, ok := jsonutil.Float(pick(keys)); ok {
			return &v
		}
		return nil
	}
	date := func(keys []string) *time.Time {
		if t, ok := jsonutil.Time(pick(keys)); ok {
			return &t
		}
		return nil
	}

	s := FloatSummary{
		FloatID:        str(floatAliases.id),
		PIName:         str(floatAliases.pi),
		Institution:    str(floatAliases.institution),
		DeploymentLat:  num(floatAliases.lat),
		DeploymentLon:  num(floatAliases.lon),
		DeploymentDate: date(floatAliases.date),
		Project:        str(floatAliases.project),
		DataCenter:     str(floatAliases.dataCenter),
		LatestLat:      num([]string{"latest_lat"}),
		LatestLon:      num([]string{"latest_lon"}),
		LatestDate:     date(floatAliases.latestDate),
	}
	if active, ok := fields["active"].(bool); ok {
		s.Active = active
	}
	return s
}

// FloatList is the body of GET /floats.
type FloatList struct {
	Floats     []FloatSummary `json:"floats"`
	TotalCount *int           `json:"total_count,omitempty"`
	HasMore    bool           `json:"has_more"`
}

// UnmarshalJSON tolerates a missing or malformed floats array.
func (l *FloatList) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*l = FloatList{}
	for _, row := range ParseRows(fields["floats"]) {
		raw, err := row.MarshalJSON()
		if err != nil {
			continue
		}
		var s FloatSummary
		if err := json.Unmarshal(raw, &s); err != nil {
			continue
		}
		l.Floats = append(l.Floats, s)
	}

	if raw, ok := fields["total_count"]; ok {
		var v any
		if json.Unmarshal(raw, &v) == nil {
			if n, ok := jsonutil.Float(v); ok {
				count := int(n)
				l.TotalCount = &count
			}
		}
	}
	if raw, ok := fields["has_more"]; ok {
		_ = json.Unmarshal(raw, &l.HasMore)
	}
	return nil
}
