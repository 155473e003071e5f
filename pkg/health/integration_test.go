package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_Probes(t *testing.T) {
	stepping := true
	hc := NewHealthChecker()
	hc.AddCheck(NewSimulationHealthCheck(func() bool { return stepping }))
	hc.AddCheck(NewStepBudgetHealthCheck(time.Second, func() time.Duration { return time.Millisecond }))

	srv := httptest.NewServer(NewServer("", hc, 0, nil).Handler())
	defer srv.Close()

	t.Run("liveness endpoint", func(t *testing.T) {
		resp, err := http.Get(srv.URL + LivePath)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("readiness endpoint", func(t *testing.T) {
		resp, err := http.Get(srv.URL + ReadyPath)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var status HealthStatus
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
		assert.Equal(t, "healthy", status.Status)
		assert.Len(t, status.Checks, 2)
	})

	t.Run("readiness endpoint after close", func(t *testing.T) {
		stepping = false
		defer func() { stepping = true }()

		resp, err := http.Get(srv.URL + ReadyPath)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var status HealthStatus
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
		assert.Equal(t, "unhealthy", status.Checks["simulation"].Status)
		assert.Equal(t, "healthy", status.Checks["step_budget"].Status)
	})
}

func TestServer_RateLimit(t *testing.T) {
	s := NewServer("", NewHealthChecker(), 2, nil)
	h := s.Handler()

	probe := func(remote string) int {
		req := httptest.NewRequest("GET", LivePath, nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, probe("10.0.0.1:5000"))
	assert.Equal(t, http.StatusOK, probe("10.0.0.1:5001"))
	assert.Equal(t, http.StatusTooManyRequests, probe("10.0.0.1:5002"), "ports share the host budget")
	assert.Equal(t, http.StatusOK, probe("10.0.0.2:5000"))
}

func TestServer_StartAndShutdown(t *testing.T) {
	s := NewServer("127.0.0.1:0", NewHealthChecker(), 0, nil)
	assert.Empty(t, s.Addr())
	require.NoError(t, s.Start())

	resp, err := http.Get(fmt.Sprintf("http://%s%s", s.Addr(), LivePath))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Shutdown(ctx))
}

func TestRateLimiter_Refill(t *testing.T) {
	now := time.Unix(0, 0)
	rl := NewRateLimiter(4, time.Minute)
	rl.now = func() time.Time { return now }

	for i := 0; i < 4; i++ {
		require.True(t, rl.Allow("a"), "request %d", i)
	}
	assert.False(t, rl.Allow("a"))

	now = now.Add(15 * time.Second)
	assert.True(t, rl.Allow("a"), "a quarter window refills one token")
	assert.False(t, rl.Allow("a"))

	now = now.Add(3 * time.Minute)
	assert.True(t, rl.Allow("b"))
	assert.Equal(t, 1, rl.Clients(), "idle clients are pruned when a new client arrives")
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := NewRateLimiter(0, time.Minute)
	for i := 0; i < 100; i++ {
		if !rl.Allow("a") {
			t.Fatal("disabled limiter rejected a request")
		}
	}
}
