// Package charts draws rendered result views as SVG or PNG images.
package charts

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"go.uber.org/zap"

	"github.com/argo-explorer/dashboard/pkg/config"
	"github.com/argo-explorer/dashboard/pkg/render"
)

// ErrNotEnoughData is returned when a view has too few points to draw.
var ErrNotEnoughData = errors.New("not enough data to draw chart")

// ErrUnknownFormat is returned for image formats other than svg and png.
var ErrUnknownFormat = errors.New("unknown chart format")

// Format is an output image format.
type Format string

const (
	FormatSVG Format = "svg"
	FormatPNG Format = "png"
)

// ParseFormat accepts "svg", "png" or "" (svg).
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatSVG:
		return FormatSVG, nil
	case FormatPNG:
		return FormatPNG, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// ContentType is the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatPNG {
		return "image/png"
	}
	return "image/svg+xml"
}

func (f Format) provider() chart.RendererProvider {
	if f == FormatPNG {
		return chart.PNG
	}
	return chart.SVG
}

var palette = []drawing.Color{
	chart.ColorBlue,
	chart.ColorRed,
	chart.ColorGreen,
	chart.ColorOrange,
	chart.ColorCyan,
	chart.ColorAlternateGray,
}

func paletteColor(i int) drawing.Color {
	return palette[i%len(palette)]
}

// Renderer draws chart images at a fixed size.
type Renderer struct {
	width  int
	height int
	logger *zap.Logger
}

func NewRenderer(cfg config.ChartsConfig, logger *zap.Logger) *Renderer {
	return &Renderer{
		width:  cfg.Width,
		height: cfg.Height,
		logger: logger.Named("charts"),
	}
}

// ============================================================================
// Depth profile
// ============================================================================

// Profile draws param against depth with one series per group. The depth
// axis runs downward when the view asks for an inverted y axis.
func (r *Renderer) Profile(view *render.ProfileView, param string, w io.Writer, format Format) error {
	if view == nil {
		return ErrNotEnoughData
	}

	var series []chart.Series
	var xs, ys []float64
	for i, group := range view.Groups {
		s := view.Series(group.Key, param)
		if s == nil {
			continue
		}
		sx := make([]float64, len(s.Points))
		sy := make([]float64, len(s.Points))
		for j, p := range s.Points {
			sx[j], sy[j] = p.X, p.Y
		}
		xs = append(xs, sx...)
		ys = append(ys, sy...)
		series = append(series, chart.ContinuousSeries{
			Name:    group.Key,
			XValues: sx,
			YValues: sy,
			Style: chart.Style{
				StrokeColor: paletteColor(i),
				StrokeWidth: 2,
				DotColor:    paletteColor(i),
				DotWidth:    3,
			},
		})
	}
	if len(xs) < 2 {
		return ErrNotEnoughData
	}

	yRange := paddedRange(ys)
	yRange.Descending = view.Spec.InvertY

	ch := chart.Chart{
		Title:      fmt.Sprintf("%s profile", label(param)),
		Width:      r.width,
		Height:     r.height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{Name: withUnit(param), Range: paddedRange(xs)},
		YAxis:      chart.YAxis{Name: withUnit(view.Spec.Y), Range: yRange},
		Series:     series,
	}
	if len(series) > 1 {
		ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	}
	return r.render(&ch, "profile", w, format)
}

// ============================================================================
// Time series
// ============================================================================

// Timeseries draws the view's filtered points over time.
func (r *Renderer) Timeseries(view *render.TimeseriesView, w io.Writer, format Format) error {
	if view == nil || len(view.Points) < 2 {
		return ErrNotEnoughData
	}

	series := chart.TimeSeries{
		Name:    view.Spec.Y,
		XValues: make([]time.Time, len(view.Points)),
		YValues: make([]float64, len(view.Points)),
		Style: chart.Style{
			StrokeColor: paletteColor(0),
			StrokeWidth: 2,
			DotColor:    paletteColor(0),
			DotWidth:    3,
		},
	}
	for i, p := range view.Points {
		series.XValues[i] = p.T
		series.YValues[i] = p.V
	}

	ch := chart.Chart{
		Title:      fmt.Sprintf("%s over time", label(view.Spec.Y)),
		Width:      r.width,
		Height:     r.height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{Name: label(view.Spec.X), ValueFormatter: chart.TimeDateValueFormatter},
		YAxis:      chart.YAxis{Name: withUnit(view.Spec.Y), Range: paddedRange(series.YValues)},
		Series:     []chart.Series{series},
	}
	return r.render(&ch, "timeseries", w, format)
}

// ============================================================================
// Map
// ============================================================================

// Map draws positions on a longitude/latitude plane: the track as a line,
// scattered points as dots, start and end as larger markers.
func (r *Renderer) Map(view *render.MapView, w io.Writer, format Format) error {
	if view.Empty() {
		return ErrNotEnoughData
	}

	var series []chart.Series
	var lats, lons []float64
	add := func(name string, points []render.MapPoint, style chart.Style) {
		if len(points) == 0 {
			return
		}
		s := chart.ContinuousSeries{Name: name, Style: style}
		for _, p := range points {
			s.XValues = append(s.XValues, p.Lon)
			s.YValues = append(s.YValues, p.Lat)
		}
		lons = append(lons, s.XValues...)
		lats = append(lats, s.YValues...)
		series = append(series, s)
	}

	add("Track", view.Line, chart.Style{StrokeColor: paletteColor(0), StrokeWidth: 2})
	add("Floats", view.Points, dotStyle(paletteColor(0), 4))
	if view.Start != nil {
		add("Start", []render.MapPoint{*view.Start}, dotStyle(chart.ColorGreen, 7))
	}
	if view.End != nil {
		add("End", []render.MapPoint{*view.End}, dotStyle(chart.ColorRed, 7))
	}

	lonRange := clampRange(paddedRange(lons), -180, 180)
	latRange := clampRange(paddedRange(lats), -90, 90)

	ch := chart.Chart{
		Title:      "Float positions",
		Width:      r.width,
		Height:     r.height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{Name: "Longitude", Range: lonRange},
		YAxis:      chart.YAxis{Name: "Latitude", Range: latRange},
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return r.render(&ch, "map", w, format)
}

func dotStyle(c drawing.Color, width float64) chart.Style {
	return chart.Style{
		StrokeColor: drawing.ColorTransparent,
		DotColor:    c,
		DotWidth:    width,
	}
}

// ============================================================================
// Helpers
// ============================================================================

func (r *Renderer) render(ch *chart.Chart, kind string, w io.Writer, format Format) error {
	if err := ch.Render(format.provider(), w); err != nil {
		r.logger.Debug("Chart render failed", zap.String("kind", kind), zap.Error(err))
		return fmt.Errorf("failed to render %s chart: %w", kind, err)
	}
	return nil
}

// paddedRange spans values with 5% headroom. A flat set of values gets one
// unit either side so the axis never has zero width.
func paddedRange(values []float64) *chart.ContinuousRange {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if math.IsInf(lo, 0) {
		return &chart.ContinuousRange{Min: 0, Max: 1}
	}
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = 1
	}
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}

func clampRange(r *chart.ContinuousRange, lo, hi float64) *chart.ContinuousRange {
	r.Min = math.Max(r.Min, lo)
	r.Max = math.Min(r.Max, hi)
	return r
}

func label(key string) string {
	s := strings.ReplaceAll(key, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func withUnit(key string) string {
	if unit := render.Unit(key); unit != "" {
		return fmt.Sprintf("%s (%s)", label(key), unit)
	}
	return label(key)
}
