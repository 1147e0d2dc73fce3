package handlers

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const profileResult = `{
	"viz": {"kind": "profile"},
	"data": [
		{"pressure": 5, "temperature": 28.1, "salinity": 36.2},
		{"pressure": 50, "temperature": 26.4, "salinity": 36.3},
		{"pressure": 200, "temperature": 18.9, "salinity": 35.8}
	]
}`

const trajectoryResult = `{
	"viz": {"kind": "trajectory"},
	"data": [
		{"latitude": 15.0, "longitude": 60.0, "date": "2024-01-01T00:00:00Z"},
		{"latitude": 15.4, "longitude": 60.7, "date": "2024-01-11T00:00:00Z"},
		{"latitude": 15.9, "longitude": 61.3, "date": "2024-01-21T00:00:00Z"}
	]
}`

func TestChartHandler_Draw(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		body        string
		contentType string
		prefix      string
	}{
		{"profile svg", "/api/charts/profile", profileResult, "image/svg+xml", "<svg"},
		{"profile salinity png", "/api/charts/profile?param=salinity&format=png", profileResult, "image/png", "\x89PNG"},
		{"map svg", "/api/charts/map", trajectoryResult, "image/svg+xml", "<svg"},
		{"timeseries svg", "/api/charts/timeseries", `{
			"viz": {"kind": "timeseries"},
			"data": [
				{"date": "2024-01-01", "temperature": 20.5},
				{"date": "2024-02-01", "temperature": 21.0},
				{"date": "2024-03-01", "temperature": 22.5}
			]
		}`, "image/svg+xml", "<svg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, false)

			rec := env.do(t, http.MethodPost, tt.path, tt.body)

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.contentType, rec.Header().Get("Content-Type"))
			assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
			assert.True(t, bytes.Contains(rec.Body.Bytes()[:min(rec.Body.Len(), 512)], []byte(tt.prefix)))
		})
	}
}

func TestChartHandler_Draw_Errors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{"unknown format", "/api/charts/profile?format=gif", profileResult, http.StatusBadRequest, "unknown_format"},
		{"unknown kind", "/api/charts/histogram", profileResult, http.StatusNotFound, "unknown_chart"},
		{"not an object", "/api/charts/map", `"map"`, http.StatusBadRequest, "invalid_request"},
		{"no positions", "/api/charts/map", profileResult, http.StatusUnprocessableEntity, "not_enough_data"},
		{"missing parameter", "/api/charts/profile?param=oxygen", profileResult, http.StatusUnprocessableEntity, "not_enough_data"},
		{"filtered out", "/api/charts/timeseries?date_start=2030-01-01", `{
			"data": [{"date": "2024-01-01", "temperature": 20.5}, {"date": "2024-02-01", "temperature": 21.0}]
		}`, http.StatusUnprocessableEntity, "not_enough_data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, false)

			rec := env.do(t, http.MethodPost, tt.path, tt.body)

			assert.Equal(t, tt.code, errorCode(t, rec, tt.status))
		})
	}
}
