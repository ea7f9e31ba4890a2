package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"task-service/bootstrap"
	"task-service/config"
	"task-service/middleware/ratelimit"
	"task-service/resources"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	st, err := bootstrap.Build(context.Background(), config.Default(), bootstrap.Options{
		Registerer: prometheus.NewRegistry(),
		RouteFn:    ratelimit.ChiRouteFunc,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(newRouter(st, resources.NewHandler(resources.NewStore(), nil)))
	t.Cleanup(srv.Close)
	return srv
}

func createTask(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Post(url+"/tasks", "application/json", strings.NewReader(`{"title": "t"}`))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestServer_PostTasksBurstLimit(t *testing.T) {
	srv := newTestServer(t)

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusCreated, createTask(t, srv.URL).StatusCode, "request %d", i+1)
	}

	resp := createTask(t, srv.URL)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Too Many Requests", body["error"])
	assert.Equal(t, "burst limit exceeded, retry later", body["message"])

	// rota sem regra própria continua liberada
	get, err := http.Get(srv.URL + "/users")
	require.NoError(t, err)
	defer get.Body.Close()
	assert.Equal(t, http.StatusOK, get.StatusCode)
}

func TestServer_AdminStats(t *testing.T) {
	srv := newTestServer(t)
	createTask(t, srv.URL)

	resp, err := http.Get(srv.URL + "/admin/ratelimit/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		ByRoute map[string]map[string]int64 `json:"by_route"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.EqualValues(t, 1, body.ByRoute["POST /tasks"]["allowed"])
}

func TestWarnUnroutedRules(t *testing.T) {
	cfg, err := config.Parse([]byte(`{"ratelimit": {"routes": {
		"POST /tasks": [{"limit": "5 per 10 seconds"}],
		"POST /tasks/": [{"limit": "1 per second"}]
	}}}`), "json")
	require.NoError(t, err)

	st, err := bootstrap.Build(context.Background(), cfg, bootstrap.Options{RouteFn: ratelimit.ChiRouteFunc})
	require.NoError(t, err)
	defer st.Close()

	core, logs := observer.New(zapcore.WarnLevel)
	router := newRouter(st, resources.NewHandler(resources.NewStore(), nil))
	warnUnroutedRules(zap.New(core), router, st)

	entries := logs.FilterMessage("route rules never applied: no matching route registered").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "POST /tasks/", entries[0].ContextMap()["route"])
}
