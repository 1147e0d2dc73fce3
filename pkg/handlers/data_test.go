package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argo-explorer/dashboard/pkg/models"
)

func TestDataHandler_Trajectory(t *testing.T) {
	env := newTestEnv(t, true)
	env.fake.JSON("GET /data/trajectory/2902094", http.StatusOK, map[string]any{
		"float_id": "2902094",
		"data": []map[string]any{
			{"latitude": 15.0, "longitude": 60.0},
			{"latitude": 15.5, "longitude": 60.8},
		},
	})

	resp := payload[DataResponse](t, env.do(t, http.MethodGet, "/api/data/trajectory/2902094", ""))

	assert.Equal(t, models.VizMap, resp.View.Kind)
	require.NotNil(t, resp.View.Map)
	assert.False(t, resp.View.Map.Empty())
	require.NotNil(t, resp.View.Table)
	assert.Equal(t, 2, resp.View.Table.Total)
}

func TestDataHandler_DepthProfile(t *testing.T) {
	env := newTestEnv(t, true)
	env.fake.JSON("GET /data/depth_profile/2902094", http.StatusOK, map[string]any{
		"plot_data": []map[string]any{
			{"pressure": 10, "salinity": 36.1},
			{"pressure": 100, "salinity": 35.9},
		},
	})

	resp := payload[DataResponse](t, env.do(t, http.MethodGet, "/api/data/depth_profile/2902094?parameter=salinity", ""))

	assert.Equal(t, models.VizProfile, resp.View.Kind)
	require.NotNil(t, resp.View.Profile)
	assert.Equal(t, []string{"salinity"}, resp.View.Profile.Spec.XOpts)

	sent, ok := env.fake.LastRequest("GET /data/depth_profile/2902094")
	require.True(t, ok)
	assert.Equal(t, "salinity", sent.Query.Get("parameter"))
}

func TestDataHandler_Region(t *testing.T) {
	env := newTestEnv(t, true)
	env.fake.JSON("GET /data/region/arabian_sea", http.StatusOK, map[string]any{
		"map_data": []map[string]any{{"float_id": "2902094", "latitude": 15.0, "longitude": 60.0}},
	})

	resp := payload[DataResponse](t, env.do(t, http.MethodGet, "/api/data/region/arabian_sea", ""))

	require.NotNil(t, resp.View.Map)
	require.Len(t, resp.View.Map.Points, 1)
	assert.Equal(t, "2902094", resp.View.Map.Points[0].Label)
}

func TestDataHandler_Get_Rejected(t *testing.T) {
	tests := []struct {
		name      string
		connected bool
		path      string
		status    int
		code      string
	}{
		{"bad float id", true, "/api/data/trajectory/2902094;drop", http.StatusBadRequest, "invalid_float_id"},
		{"unknown view", true, "/api/data/histogram/2902094", http.StatusNotFound, "unknown_view"},
		{"region too long", true, "/api/data/region/" + strings.Repeat("a", 65), http.StatusBadRequest, "invalid_region"},
		{"not connected", false, "/api/data/trajectory/2902094", http.StatusServiceUnavailable, "not_connected"},
		{"bad page", true, "/api/data/trajectory/2902094?page=-1", http.StatusBadRequest, "invalid_parameter"},
		{"backend 404", true, "/api/data/timeseries/2902094", http.StatusNotFound, "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.connected)

			rec := env.do(t, http.MethodGet, tt.path, "")

			assert.Equal(t, tt.code, errorCode(t, rec, tt.status))
		})
	}
}

func TestDataHandler_Compare(t *testing.T) {
	env := newTestEnv(t, true)
	env.fake.JSON("POST /compare", http.StatusOK, map[string]any{
		"data": []map[string]any{
			{"float_id": "2902094", "pressure": 10, "temperature": 28.0},
			{"float_id": "2902095", "pressure": 10, "temperature": 27.1},
		},
	})

	resp := payload[DataResponse](t, env.do(t, http.MethodPost, "/api/compare", `{"float_ids":["2902094","2902095"],"parameter":"temperature"}`))

	assert.Equal(t, models.VizProfileComparison, resp.View.Kind)
	require.NotNil(t, resp.View.Profile)
	assert.Equal(t, "float_id", resp.View.Profile.Spec.GroupBy)
	assert.Len(t, resp.View.Profile.Groups, 2)

	sent, ok := env.fake.LastRequest("POST /compare")
	require.True(t, ok)
	var body map[string]any
	require.NoError(t, json.Unmarshal(sent.Body, &body))
	assert.Equal(t, []any{2902094.0, 2902095.0}, body["float_ids"])
	assert.Equal(t, "temperature", body["parameter"])
}

func TestDataHandler_Trajectories(t *testing.T) {
	env := newTestEnv(t, true)
	env.fake.JSON("POST /trajectories/multiple", http.StatusOK, map[string]any{
		"data": []map[string]any{
			{"float_id": "2902094", "latitude": 15.0, "longitude": 60.0},
			{"float_id": "2902095", "latitude": 12.0, "longitude": 58.0},
		},
	})

	resp := payload[DataResponse](t, env.do(t, http.MethodPost, "/api/trajectories", `{"float_ids":["2902094","2902095"]}`))

	assert.Equal(t, models.VizMap, resp.View.Kind)
	require.NotNil(t, resp.View.Map)
	assert.False(t, resp.View.Map.Empty())
}

func TestDataHandler_Compare_Rejected(t *testing.T) {
	tests := []struct {
		name      string
		connected bool
		body      string
		status    int
		code      string
	}{
		{"single float", true, `{"float_ids":["2902094"]}`, http.StatusBadRequest, "invalid_request"},
		{"malformed id", true, `{"float_ids":["2902094","../etc"]}`, http.StatusBadRequest, "invalid_request"},
		{"malformed body", true, `{"float_ids":`, http.StatusBadRequest, "invalid_request"},
		{"not connected", false, `{"float_ids":["2902094","2902095"]}`, http.StatusServiceUnavailable, "not_connected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.connected)

			rec := env.do(t, http.MethodPost, "/api/compare", tt.body)

			assert.Equal(t, tt.code, errorCode(t, rec, tt.status))
			assert.Equal(t, 0, env.fake.Count("POST /compare"))
		})
	}
}
