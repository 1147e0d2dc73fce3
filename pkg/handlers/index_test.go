package handlers

import (
	"net/http"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/argo-explorer/dashboard/pkg/query"
)

func TestIndexHandler_Index(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodGet, "/", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, `<p id="status">Connected</p>`)
	assert.Contains(t, body, "<li>"+query.DefaultSuggestions[0]+"</li>")
	assert.Contains(t, body, "<span>"+env.fake.URL()+"</span>")
}

func TestIndexHandler_SessionSuggestions(t *testing.T) {
	env := newTestEnv(t, true)
	env.fake.JSON("POST /query", http.StatusOK, mapResult)
	payload[QueryResponse](t, env.do(t, http.MethodPost, "/api/query", `{"query":"floats"}`))

	rec := env.do(t, http.MethodGet, "/", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<li>Show trajectories for these floats</li>")
}

func TestIndexHandler_OnlyRoot(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodGet, "/nope", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIndexHandler_Assets(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodGet, "/assets/app.js", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `console.log("argo")`, rec.Body.String())
}

func TestNewIndexHandler_MissingTemplate(t *testing.T) {
	env := newTestEnv(t, false)

	_, err := NewIndexHandler(fstest.MapFS{}, env.prober, env.fake.Resolver(), env.sessions, "test", zap.NewNop())

	assert.Error(t, err)
}
