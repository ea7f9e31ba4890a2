package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"

	"task-service/bootstrap"
	"task-service/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateway_ProxiesAndEnforcesRules(t *testing.T) {
	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, "upstream:"+r.URL.Path)
	}))
	defer upstream.Close()

	rules, err := config.Parse([]byte(`{"ratelimit": {"routes": {"GET /slow": [{"limit": "1 per minute"}]}}, "stats": {"backend": "none"}}`), "json")
	require.NoError(t, err)

	routeFn, err := gatewayRouteFunc(rules)
	require.NoError(t, err)
	st, err := bootstrap.Build(context.Background(), rules, bootstrap.Options{RouteFn: routeFn})
	require.NoError(t, err)

	target, err := url.Parse(upstream.URL)
	require.NoError(t, err)
	gw := httptest.NewServer(newHandler(gatewayConfig{rateEnabled: true}, st, newProxy(target, nil)))
	defer gw.Close()

	get := func(path string) (int, string) {
		resp, err := http.Get(gw.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(b)
	}

	code, body := get("/slow")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "upstream:/slow", body)

	code, body = get("/slow")
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, `{"error": "Too Many Requests", "message": "throttle limit exceeded, retry later"}`, body)

	code, _ = get("/fast")
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, hits.Load())
}

func TestGateway_StatsRoutesStayBounded(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	defer upstream.Close()

	rules, err := config.Parse([]byte(`{"ratelimit": {"routes": {"GET /slow": [{"limit": "1 per minute"}]}}}`), "json")
	require.NoError(t, err)
	routeFn, err := gatewayRouteFunc(rules)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	st, err := bootstrap.Build(context.Background(), rules, bootstrap.Options{RouteFn: routeFn, Registerer: reg})
	require.NoError(t, err)
	defer st.Close()
	require.NotNil(t, st.Memory)

	target, err := url.Parse(upstream.URL)
	require.NoError(t, err)
	h := newHandler(gatewayConfig{rateEnabled: true}, st, newProxy(target, nil))

	for i := 0; i < 50; i++ {
		r := httptest.NewRequest(http.MethodGet, "/x/"+strconv.Itoa(i), nil)
		r.RemoteAddr = "10.0.0.1:1234"
		h.ServeHTTP(httptest.NewRecorder(), r)
	}
	r := httptest.NewRequest(http.MethodGet, "/slow", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	h.ServeHTTP(httptest.NewRecorder(), r)

	byRoute := st.Memory.ByRoute()
	assert.Len(t, byRoute, 2)
	assert.EqualValues(t, 50, byRoute["GET *"].Allowed)
	assert.EqualValues(t, 1, byRoute["GET /slow"].Allowed)

	series, err := testutil.GatherAndCount(reg, "admission_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series)
}

func TestReadConfig_RequiresUpstream(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "")
	_, err := readConfig()
	assert.Error(t, err)

	t.Setenv("UPSTREAM_URL", "http://localhost:9000")
	t.Setenv("RATE_ENABLED", "false")
	cfg, err := readConfig()
	require.NoError(t, err)
	assert.False(t, cfg.rateEnabled)
	assert.Equal(t, "/_gateway/metrics", cfg.metricsPath)
}
