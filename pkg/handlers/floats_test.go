package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argo-explorer/dashboard/pkg/testhelpers"
)

func TestFloatHandler_List(t *testing.T) {
	env := newTestEnv(t, true)
	env.fake.Handle("GET /floats", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("float_id") {
			testhelpers.WriteJSON(w, http.StatusNotFound, map[string]string{"detail": "Not Found"})
			return
		}
		testhelpers.WriteJSON(w, http.StatusOK, map[string]any{
			"floats": []map[string]any{
				{"platform_number": "2902094", "launch_latitude": 15.0, "launch_longitude": 60.0, "launch_date": "2023-01-10T00:00:00Z"},
				{"platform_number": "2902095", "launch_latitude": 12.0, "launch_longitude": 58.0, "launch_date": "2023-02-01T00:00:00Z"},
			},
			"total_count": 42,
			"has_more":    true,
		})
	})
	env.fake.JSON("GET /float/2902094", http.StatusOK, map[string]any{
		"latest_position": map[string]any{"latitude": 15.8, "longitude": 61.2, "date": "2024-06-01T00:00:00Z"},
	})

	resp := payload[FloatsResponse](t, env.do(t, http.MethodGet, "/api/floats", ""))

	require.Len(t, resp.Floats, 2)
	assert.Equal(t, "2902094", resp.Floats[0].FloatID)
	assert.True(t, resp.Floats[0].Active)
	require.NotNil(t, resp.Floats[0].LatestLat)
	assert.InDelta(t, 15.8, *resp.Floats[0].LatestLat, 1e-9)
	assert.False(t, resp.Floats[1].Active)
	assert.Nil(t, resp.Floats[1].LatestLat)

	assert.Equal(t, 1, resp.ActiveCount)
	assert.Equal(t, "42 floats", resp.Label)
	assert.Equal(t, "1 active float", resp.ActiveLabel)
	assert.True(t, resp.HasMore)
	assert.Equal(t, 0, env.fake.Count("POST /query"), "total_count was present")
}

func TestFloatHandler_List_CountFallback(t *testing.T) {
	env := newTestEnv(t, true)
	env.fake.JSON("GET /floats", http.StatusOK, map[string]any{"floats": []map[string]any{}})
	env.fake.JSON("POST /query", http.StatusOK, map[string]any{"data_count": 1})

	resp := payload[FloatsResponse](t, env.do(t, http.MethodGet, "/api/floats", ""))

	assert.Empty(t, resp.Floats)
	assert.Equal(t, "1 float", resp.Label)
	assert.Equal(t, "0 active floats", resp.ActiveLabel)
}

func TestFloatHandler_List_BackendError(t *testing.T) {
	env := newTestEnv(t, true)
	env.fake.JSON("GET /floats", http.StatusBadRequest, map[string]string{"detail": "limit too large"})

	rec := env.do(t, http.MethodGet, "/api/floats", "")

	assert.Equal(t, "backend_error", errorCode(t, rec, http.StatusBadGateway))
}
