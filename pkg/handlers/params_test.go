package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseFloatID(t *testing.T) {
	tests := []struct {
		name      string
		pathValue string
		wantOK    bool
	}{
		{"numeric platform number", "2902094", true},
		{"alphanumeric", "WMO_5904-A", true},
		{"empty", "", false},
		{"path traversal", "../etc", false},
		{"too long", "123456789012345678901234567890123", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.SetPathValue("id", tt.pathValue)
			rec := httptest.NewRecorder()

			id, ok := ParseFloatID(rec, req, zap.NewNop())
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.pathValue, id)
				return
			}

			assert.Empty(t, id)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var body map[string]string
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, "invalid_float_id", body["error"])
		})
	}
}

func TestValidFloatIDs(t *testing.T) {
	assert.True(t, ValidFloatIDs([]string{"1", " 2 "}))
	assert.False(t, ValidFloatIDs([]string{"1", "a b"}))
	assert.True(t, ValidFloatIDs(nil))
}

func TestParseRenderOptions(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x?search=+Arabian+&page=3&page_size=25&date_start=2024-01-01&date_end=2024-03-31T12:00:00Z", nil)
	rec := httptest.NewRecorder()

	opts, ok := ParseRenderOptions(rec, req, zap.NewNop())
	require.True(t, ok)
	assert.Equal(t, "Arabian", opts.Search)
	assert.Equal(t, 3, opts.Page)
	assert.Equal(t, 25, opts.PageSize)
	require.NotNil(t, opts.DateRange.Start)
	require.NotNil(t, opts.DateRange.End)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *opts.DateRange.Start)
	assert.Equal(t, time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC), *opts.DateRange.End)
}

func TestParseRenderOptions_Defaults(t *testing.T) {
	opts, ok := ParseRenderOptions(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil), zap.NewNop())
	require.True(t, ok)
	assert.Zero(t, opts.Page)
	assert.Zero(t, opts.PageSize)
	assert.Nil(t, opts.DateRange.Start)
	assert.Nil(t, opts.DateRange.End)
}

func TestParseRenderOptions_Invalid(t *testing.T) {
	for query, field := range map[string]string{
		"page=0":              "page",
		"page=two":            "page",
		"page_size=1000":      "page_size",
		"date_start=tomorrow": "date_start",
		"date_end=31/12/2024": "date_end",
	} {
		t.Run(query, func(t *testing.T) {
			rec := httptest.NewRecorder()
			_, ok := ParseRenderOptions(rec, httptest.NewRequest(http.MethodGet, "/x?"+query, nil), zap.NewNop())
			require.False(t, ok)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var body map[string]string
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, "invalid_parameter", body["error"])
			assert.Equal(t, "Invalid value for "+field, body["message"])
		})
	}
}
