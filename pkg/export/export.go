// Package export produces downloadable files from backend export links or
// from rows already on screen.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/argo-explorer/dashboard/pkg/backend"
	"github.com/argo-explorer/dashboard/pkg/jsonutil"
	"github.com/argo-explorer/dashboard/pkg/models"
)

const (
	ContentTypeCSV    = "text/csv; charset=utf-8"
	ContentTypeBinary = "application/octet-stream"
)

// inlineKeys hold export content embedded in a JSON response, in priority order.
var inlineKeys = []string{"content", "csv", "data"}

// File is a download ready to hand to the browser.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// ContentDisposition returns the attachment header value for the file.
func (f *File) ContentDisposition() string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": f.Name})
}

// ============================================================================
// CSV
// ============================================================================

// WriteCSV writes rows with a header taken from the first row's keys. Fields
// containing a comma, quote or newline are quoted with embedded quotes doubled.
// Missing and null values become empty fields; nested values are written as JSON.
func WriteCSV(w io.Writer, rows []*models.Row) error {
	if len(rows) == 0 {
		return nil
	}
	header := rows[0].Keys()

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	record := make([]string, len(header))
	for _, row := range rows {
		for i, key := range header {
			record[i] = jsonutil.StringValue(row.Value(key))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// FromRows serializes rows as a CSV download named data_export_<unix ms>.csv.
func FromRows(rows []*models.Row, now time.Time) (*File, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows); err != nil {
		return nil, err
	}
	return &File{
		Name:        fmt.Sprintf("data_export_%d.csv", now.UnixMilli()),
		ContentType: ContentTypeCSV,
		Data:        buf.Bytes(),
	}, nil
}

// ============================================================================
// Backend exports
// ============================================================================

// Backend is the part of the backend client the exporter needs.
type Backend interface {
	Export(ctx context.Context, target string, params url.Values) (*backend.ExportResponse, error)
}

// Exporter downloads backend exports.
type Exporter struct {
	backend Backend
	logger  *zap.Logger
	now     func() time.Time
}

func NewExporter(b Backend, logger *zap.Logger) *Exporter {
	return &Exporter{
		backend: b,
		logger:  logger.Named("export"),
		now:     time.Now,
	}
}

// Fetch downloads target, a format name (csv, parquet, netcdf) or an export
// link. A JSON response carrying inline content becomes a CSV file; any other
// body is passed through as an opaque blob.
func (e *Exporter) Fetch(ctx context.Context, target string) (*File, error) {
	resp, err := e.backend.Export(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch export: %w", err)
	}

	format := formatOf(target, resp.URL)
	if file, ok, err := e.inline(resp, format); ok || err != nil {
		return file, err
	}

	file := &File{
		Name:        filenameFromDisposition(resp.ContentDisposition),
		ContentType: resp.ContentType,
		Data:        resp.Body,
	}
	if file.Name == "" {
		file.Name = e.defaultName(format, extension(format))
	}
	if file.ContentType == "" {
		file.ContentType = ContentTypeBinary
	}

	e.logger.Debug("Export fetched",
		zap.String("format", format),
		zap.String("filename", file.Name),
		zap.Int("bytes", len(file.Data)))
	return file, nil
}

// inline unwraps JSON export responses. ok is false when the body is not a
// JSON object with inline content.
func (e *Exporter) inline(resp *backend.ExportResponse, format string) (*File, bool, error) {
	body := bytes.TrimSpace(resp.Body)
	if len(body) == 0 || body[0] != '{' {
		return nil, false, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, false, nil
	}

	for _, key := range inlineKeys {
		raw, present := fields[key]
		if !present {
			continue
		}
		var data []byte
		if rows := models.ParseRows(raw); rows != nil {
			var buf bytes.Buffer
			if err := WriteCSV(&buf, rows); err != nil {
				return nil, false, err
			}
			data = buf.Bytes()
		} else if s := jsonutil.FlexibleStringValue(raw); s != "" {
			data = []byte(s)
		} else {
			continue
		}

		name := filepath.Base(jsonutil.FlexibleStringValue(fields["filename"]))
		if name == "." || name == "/" || name == "" {
			name = e.defaultName(format, "csv")
		}
		return &File{Name: name, ContentType: ContentTypeCSV, Data: data}, true, nil
	}
	return nil, false, nil
}

func (e *Exporter) defaultName(format, ext string) string {
	return fmt.Sprintf("argo_export_%s_%d.%s", format, e.now().Unix(), ext)
}

// formatOf names the export for generated filenames: the format itself, or
// the link's file extension, or "data".
func formatOf(target, resolved string) string {
	t := strings.ToLower(strings.TrimSpace(target))
	if _, ok := backend.ExportEndpoint(t); ok {
		if t == "nc" {
			return "netcdf"
		}
		return t
	}
	for _, candidate := range []string{target, resolved} {
		u, err := url.Parse(candidate)
		if err != nil {
			continue
		}
		base := path.Base(u.Path)
		if ext := strings.TrimPrefix(path.Ext(base), "."); ext != "" {
			return strings.ToLower(ext)
		}
		if rest, ok := strings.CutPrefix(base, "export_"); ok && rest != "" {
			return strings.ToLower(rest)
		}
	}
	return "data"
}

func extension(format string) string {
	switch format {
	case "csv":
		return "csv"
	case "parquet":
		return "parquet"
	case "netcdf", "nc":
		return "nc"
	case "json":
		return "json"
	default:
		return "bin"
	}
}

// filenameFromDisposition extracts a safe base filename, or "".
func filenameFromDisposition(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	name := filepath.Base(strings.TrimSpace(params["filename"]))
	if name == "." || name == "/" || name == "" {
		return ""
	}
	return name
}
