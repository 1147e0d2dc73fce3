package charts

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/argo-explorer/dashboard/pkg/config"
	"github.com/argo-explorer/dashboard/pkg/render"
)

func newTestRenderer() *Renderer {
	return NewRenderer(config.ChartsConfig{Width: 640, Height: 400}, zap.NewNop())
}

func profileView() *render.ProfileView {
	return &render.ProfileView{
		Spec: render.ProfileSpec{Y: "pressure", XOpts: []string{"temperature"}, InvertY: true},
		Groups: []render.ProfileGroup{{
			Key: render.AllGroup,
			Series: []render.ProfileSeries{{
				Param:  "temperature",
				Points: []render.Point{{X: 28, Y: 5}, {X: 20, Y: 100}, {X: 12, Y: 500}},
			}},
		}},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatSVG, f)

	f, err = ParseFormat(" PNG ")
	require.NoError(t, err)
	assert.Equal(t, FormatPNG, f)
	assert.Equal(t, "image/png", f.ContentType())

	_, err = ParseFormat("gif")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestRenderer_ProfileSVG(t *testing.T) {
	var buf bytes.Buffer
	err := newTestRenderer().Profile(profileView(), "temperature", &buf, FormatSVG)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "<svg")
	assert.Contains(t, out, "Temperature profile")
}

func TestRenderer_ProfilePNG(t *testing.T) {
	var buf bytes.Buffer
	err := newTestRenderer().Profile(profileView(), "temperature", &buf, FormatPNG)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
}

func TestRenderer_ProfileNotEnoughData(t *testing.T) {
	r := newTestRenderer()
	var buf bytes.Buffer

	assert.ErrorIs(t, r.Profile(nil, "temperature", &buf, FormatSVG), ErrNotEnoughData)
	assert.ErrorIs(t, r.Profile(profileView(), "salinity", &buf, FormatSVG), ErrNotEnoughData)

	single := profileView()
	single.Groups[0].Series[0].Points = single.Groups[0].Series[0].Points[:1]
	assert.ErrorIs(t, r.Profile(single, "temperature", &buf, FormatSVG), ErrNotEnoughData)
	assert.Zero(t, buf.Len())
}

func TestRenderer_Timeseries(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	view := &render.TimeseriesView{
		Spec: render.TimeseriesSpec{X: "date", Y: "temperature"},
		Points: []render.TimePoint{
			{T: start, V: 20},
			{T: start.AddDate(0, 0, 10), V: 21},
			{T: start.AddDate(0, 0, 20), V: 21},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, newTestRenderer().Timeseries(view, &buf, FormatSVG))
	assert.Contains(t, buf.String(), "Temperature over time")

	view.Points = view.Points[:1]
	assert.ErrorIs(t, newTestRenderer().Timeseries(view, &buf, FormatSVG), ErrNotEnoughData)
}

func TestRenderer_Map(t *testing.T) {
	view := render.BuildMap(nil, nil)
	assert.ErrorIs(t, newTestRenderer().Map(view, &bytes.Buffer{}, FormatSVG), ErrNotEnoughData)

	start := render.MapPoint{Lat: 15, Lon: 60}
	end := render.MapPoint{Lat: 16.5, Lon: 62}
	view = &render.MapView{
		Line:  []render.MapPoint{start, {Lat: 15.8, Lon: 61}, end},
		Start: &start,
		End:   &end,
	}

	var buf bytes.Buffer
	require.NoError(t, newTestRenderer().Map(view, &buf, FormatSVG))
	assert.Contains(t, buf.String(), "Float positions")
}

func TestRenderer_MapSinglePoint(t *testing.T) {
	p := render.MapPoint{Lat: 90, Lon: 180}
	view := &render.MapView{Points: []render.MapPoint{p}, Start: &p, End: &p}

	var buf bytes.Buffer
	require.NoError(t, newTestRenderer().Map(view, &buf, FormatPNG))
	assert.NotZero(t, buf.Len())
}

func TestPaddedRange(t *testing.T) {
	r := paddedRange([]float64{10, 20})
	assert.InDelta(t, 9.5, r.Min, 1e-9)
	assert.InDelta(t, 20.5, r.Max, 1e-9)

	flat := paddedRange([]float64{3, 3})
	assert.Equal(t, 2.0, flat.Min)
	assert.Equal(t, 4.0, flat.Max)

	empty := paddedRange(nil)
	assert.Equal(t, 0.0, empty.Min)
	assert.Equal(t, 1.0, empty.Max)
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "Depth m (m)", withUnit("depth_m"))
	assert.Equal(t, "Avg temperature (°C)", withUnit("avg_temperature"))
	assert.Equal(t, "Cycle", withUnit("cycle"))
}
