package models

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/argo-explorer/dashboard/pkg/jsonutil"
)

// Visualization kinds the backend may ask for.
const (
	VizMap               = "map"
	VizProfile           = "profile"
	VizProfileComparison = "profile_comparison"
	VizTimeseries        = "timeseries"
	VizTemporal          = "temporal"
	VizFloatList         = "float_list"
	VizTrajectory        = "trajectory"
)

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

// Viz is the backend's visualization descriptor: a kind plus renderer hints.
type Viz struct {
	Kind string         `json:"kind"`
	Spec map[string]any `json:"spec,omitempty"`
}

// SpecString returns a string hint, or "" when absent or not a string.
func (v *Viz) SpecString(key string) string {
	if v == nil {
		return ""
	}
	s, _ := v.Spec[key].(string)
	return strings.TrimSpace(s)
}

// SpecBool returns a boolean hint and whether it was present as a boolean.
func (v *Viz) SpecBool(key string) (bool, bool) {
	if v == nil {
		return false, false
	}
	b, ok := v.Spec[key].(bool)
	return b, ok
}

// SpecStrings returns a list-of-strings hint; non-string entries are skipped.
func (v *Viz) SpecStrings(key string) []string {
	if v == nil {
		return nil
	}
	list, ok := v.Spec[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// SemanticMatch is one entry of semantic_results.
type SemanticMatch struct {
	ID   string         `json:"id,omitempty"`
	Text string         `json:"text"`
	Meta map[string]any `json:"meta,omitempty"`
}

// ExportOption is one export link offered with a result.
type ExportOption struct {
	Format string `json:"format"`
	URL    string `json:"url"`
}

// QueryResult is the open-ended record returned by the backend for a query.
// Every field is optional; decoding never fails on a malformed field, it only
// leaves that field empty. The original body is kept verbatim.
type QueryResult struct {
	Analysis        string
	Intent          string
	DataCount       *int
	SessionID       string
	Query           string
	Error           string
	Viz             *Viz
	Data            []*Row
	DataIsArray     bool
	SemanticResults []SemanticMatch
	ExportOptions   []ExportOption
	Suggestions     []string

	raw json.RawMessage
}

// dataKeys are the row-array fields in priority order. The direct data
// endpoints name their arrays after the view they feed.
var dataKeys = []string{"data", "plot_data", "timeseries_data", "map_data", "measurements", "floats"}

// ErrResultNotObject is returned when a response body is valid JSON but not an object.
var ErrResultNotObject = errors.New("query result is not a JSON object")

// ParseQueryResult decodes a backend response body.
func ParseQueryResult(body []byte) (*QueryResult, error) {
	var r QueryResult
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Raw returns the response body exactly as received.
func (r *QueryResult) Raw() json.RawMessage {
	return r.raw
}

// MarshalJSON returns the verbatim body so results pass through unchanged.
func (r *QueryResult) MarshalJSON() ([]byte, error) {
	if len(r.raw) == 0 {
		return []byte("{}"), nil
	}
	return r.raw, nil
}

// UnmarshalJSON decodes leniently; see QueryResult.
func (r *QueryResult) UnmarshalJSON(data []byte) error {
	if !isJSONObject(data) {
		return ErrResultNotObject
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*r = QueryResult{raw: append(json.RawMessage(nil), data...)}

	r.Analysis = firstString(fields, "rag_analysis", "ai_analysis", "analysis")
	r.Intent = jsonutil.FlexibleStringValue(fields["intent"])
	r.SessionID = jsonutil.FlexibleStringValue(fields["session_id"])
	r.Query = jsonutil.FlexibleStringValue(fields["query"])
	r.Error = jsonutil.FlexibleStringValue(fields["error"])

	if raw, ok := fields["data_count"]; ok {
		var v any
		if json.Unmarshal(raw, &v) == nil {
			if f, ok := jsonutil.Float(v); ok {
				n := int(f)
				r.DataCount = &n
			}
		}
	}

	r.Viz = parseViz(fields["viz"])

	for _, key := range dataKeys {
		if raw, ok := fields[key]; ok && isJSONArray(raw) {
			r.DataIsArray = true
			r.Data = ParseRows(raw)
			break
		}
	}

	r.SemanticResults = parseSemantic(fields["semantic_results"])
	r.ExportOptions = parseExportOptions(fields["export_options"])
	r.Suggestions = parseStrings(fields["suggestions"])

	return nil
}

// WithDefaultViz sets the visualization kind when the backend did not name one.
func (r *QueryResult) WithDefaultViz(kind string) *QueryResult {
	if r.Viz == nil {
		r.Viz = &Viz{Kind: kind}
	} else if r.Viz.Kind == "" {
		r.Viz.Kind = kind
	}
	return r
}

func firstString(fields map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		if s := jsonutil.FlexibleStringValue(fields[k]); s != "" {
			return s
		}
	}
	return ""
}

func parseViz(raw json.RawMessage) *Viz {
	if !isJSONObject(raw) {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}

	viz := &Viz{Kind: strings.ToLower(strings.TrimSpace(jsonutil.FlexibleStringValue(fields["kind"])))}
	if spec := fields["spec"]; isJSONObject(spec) {
		_ = json.Unmarshal(spec, &viz.Spec)
	}
	if viz.Kind == "" && viz.Spec == nil {
		return nil
	}
	return viz
}

func parseSemantic(raw json.RawMessage) []SemanticMatch {
	rows := ParseRows(raw)
	if len(rows) == 0 {
		return nil
	}
	out := make([]SemanticMatch, 0, len(rows))
	for _, row := range rows {
		m := SemanticMatch{
			ID:   jsonutil.StringValue(row.Value("id")),
			Text: jsonutil.StringValue(row.Value("text")),
		}
		if meta, ok := row.Value("meta").(map[string]any); ok {
			m.Meta = meta
		}
		if m.Text == "" && m.ID == "" {
			continue
		}
		out = append(out, m)
	}
	return out
}

func parseExportOptions(raw json.RawMessage) []ExportOption {
	if !isJSONObject(raw) {
		return nil
	}
	row := NewRow()
	if err := row.UnmarshalJSON(raw); err != nil {
		return nil
	}
	out := make([]ExportOption, 0, row.Len())
	for _, format := range row.Keys() {
		target := jsonutil.StringValue(row.Value(format))
		if format == "" || target == "" {
			continue
		}
		out = append(out, ExportOption{Format: format, URL: target})
	}
	return out
}

func parseStrings(raw json.RawMessage) []string {
	if !isJSONArray(raw) {
		return nil
	}
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}
