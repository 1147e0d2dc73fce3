package render

import (
	"strconv"
	"strings"

	"github.com/argo-explorer/dashboard/pkg/jsonutil"
	"github.com/argo-explorer/dashboard/pkg/models"
)

// DefaultPageSize is the number of table rows per page.
const DefaultPageSize = 10

// Column type badges.
const (
	ColumnID          = "ID"
	ColumnCoordinate  = "Coordinate"
	ColumnTemperature = "Temperature"
	ColumnSalinity    = "Salinity"
	ColumnPressure    = "Pressure"
	ColumnDate        = "Date"
	ColumnText        = "Text"
)

// Column describes one table column.
type Column struct {
	Key  string `json:"key"`
	Type string `json:"type"`
}

// TableView is one page of the tabular section.
type TableView struct {
	Columns    []Column   `json:"columns"`
	Rows       [][]string `json:"rows"`
	Search     string     `json:"search,omitempty"`
	Matched    int        `json:"matched"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalPages int        `json:"total_pages"`
}

// ColumnType classifies a column by its name.
func ColumnType(key string) string {
	k := strings.ToLower(key)
	switch {
	case strings.Contains(k, "id"):
		return ColumnID
	case strings.Contains(k, "lat"), strings.Contains(k, "lon"):
		return ColumnCoordinate
	case strings.Contains(k, "temp"):
		return ColumnTemperature
	case strings.Contains(k, "sal"):
		return ColumnSalinity
	case strings.Contains(k, "press"):
		return ColumnPressure
	case strings.Contains(k, "date"), strings.Contains(k, "time"):
		return ColumnDate
	default:
		return ColumnText
	}
}

// FormatCell renders a value for display: "-" for null, three decimals for
// coordinates, temperature and salinity, one for pressure, and dates in a
// fixed UTC layout.
func FormatCell(key string, v any) string {
	if v == nil {
		return "-"
	}
	k := strings.ToLower(key)
	if f, ok := v.(float64); ok {
		switch {
		case strings.Contains(k, "lat"), strings.Contains(k, "lon"),
			strings.Contains(k, "temperature"), strings.Contains(k, "salinity"):
			return strconv.FormatFloat(f, 'f', 3, 64)
		case strings.Contains(k, "pressure"):
			return strconv.FormatFloat(f, 'f', 1, 64)
		}
	}
	if s, ok := v.(string); ok && (strings.Contains(k, "date") || strings.Contains(k, "time")) {
		if t, ok := jsonutil.Time(s); ok {
			return t.Format("2006-01-02 15:04:05") + " UTC"
		}
	}
	return jsonutil.StringValue(v)
}

// MatchesSearch reports whether any value of row contains term, ignoring case.
func MatchesSearch(row *models.Row, term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	for _, k := range row.Keys() {
		v := row.Value(k)
		if v == nil {
			continue
		}
		if strings.Contains(strings.ToLower(jsonutil.StringValue(v)), term) {
			return true
		}
	}
	return false
}

// BuildTable filters rows by search and returns the requested page. Columns
// come from the first row. page is clamped into range.
func BuildTable(rows []*models.Row, search string, page, pageSize int) *TableView {
	keys := firstKeys(rows)
	if len(keys) == 0 {
		return nil
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	view := &TableView{Search: search, Total: len(rows), PageSize: pageSize}
	for _, k := range keys {
		view.Columns = append(view.Columns, Column{Key: k, Type: ColumnType(k)})
	}

	matched := make([]*models.Row, 0, len(rows))
	for _, row := range rows {
		if MatchesSearch(row, search) {
			matched = append(matched, row)
		}
	}
	view.Matched = len(matched)
	view.TotalPages = (len(matched) + pageSize - 1) / pageSize

	view.Page = max(page, 1)
	if view.TotalPages > 0 {
		view.Page = min(view.Page, view.TotalPages)
	}
	from := min((view.Page-1)*pageSize, len(matched))
	to := min(from+pageSize, len(matched))

	for _, row := range matched[from:to] {
		cells := make([]string, len(keys))
		for i, k := range keys {
			cells[i] = FormatCell(k, row.Value(k))
		}
		view.Rows = append(view.Rows, cells)
	}
	return view
}
