// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestServer_Metrics(t *testing.T) {
	s := NewServer("127.0.0.1:0")
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "pluginhost_test_total", Help: "test"})
	s.Registry().MustRegister(counter)
	counter.Inc()

	code, body := get(t, s.Handler(), "/metrics")

	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "# HELP")
	assert.Contains(t, body, "go_")
	assert.Contains(t, body, "process_")
	assert.Contains(t, body, "pluginhost_test_total 1")
}

func TestServer_Liveness(t *testing.T) {
	code, body := get(t, NewServer("").Handler(), "/healthz/liveness")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok\n", body)
}

func TestServer_Readiness(t *testing.T) {
	var ready atomic.Bool
	h := NewServer("", WithReadiness(ready.Load)).Handler()

	code, body := get(t, h, "/healthz/readiness")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not ready\n", body)

	ready.Store(true)
	code, _ = get(t, h, "/healthz/readiness")
	assert.Equal(t, http.StatusOK, code)
}

func TestServer_ReadinessDefaultsToReady(t *testing.T) {
	code, _ := get(t, NewServer("").Handler(), "/healthz/readiness")
	assert.Equal(t, http.StatusOK, code)
}

func TestServer_Plugins(t *testing.T) {
	h := NewServer("", WithPlugins(func() []PluginInfo {
		return []PluginInfo{{ID: "host-plugin-echo", Name: "Echo", Version: "1.0.0"}}
	})).Handler()

	code, body := get(t, h, "/plugins")
	require.Equal(t, http.StatusOK, code)

	var got []PluginInfo
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, []PluginInfo{{ID: "host-plugin-echo", Name: "Echo", Version: "1.0.0"}}, got)
}

func TestServer_PluginsEmptyListIsArray(t *testing.T) {
	h := NewServer("", WithPlugins(func() []PluginInfo { return nil })).Handler()
	_, body := get(t, h, "/plugins")
	assert.JSONEq(t, "[]", body)
}

func TestServer_PluginsDisabledWithoutLister(t *testing.T) {
	code, _ := get(t, NewServer("").Handler(), "/plugins")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestServer_StartStop(t *testing.T) {
	s := NewServer("127.0.0.1:0")

	errCh, err := s.Start()
	require.NoError(t, err)
	require.NotEmpty(t, s.Addr())

	_, err = s.Start()
	assert.ErrorContains(t, err, "already running")

	resp, err := http.Get("http://" + s.Addr() + "/healthz/liveness")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx), "stopping twice is a no-op")

	_, open := <-errCh
	assert.False(t, open, "error channel closes on graceful stop")
}

func TestServer_StartInvalidAddr(t *testing.T) {
	_, err := NewServer("not-an-address").Start()
	assert.Error(t, err)
}
