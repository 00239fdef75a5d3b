// SPDX-License-Identifier: MIT
package status

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tonband/aircheck/internal/metrics"
	"github.com/tonband/aircheck/internal/session"
)

func testServer(progress func() session.Progress) *Server {
	return New(Options{
		Addr:     "127.0.0.1:0",
		Version:  "v1.2.3-test",
		Progress: progress,
	})
}

func TestHealthEndpoint(t *testing.T) {
	srv := httptest.NewServer(testServer(nil).Handler())
	defer srv.Close()

	res, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = res.Body.Close() }()

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "application/json", res.Header.Get("Content-Type"))

	var body struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	require.Equal(t, "ok", body.Status)
	require.Equal(t, "v1.2.3-test", body.Version)
}

func TestStatusEndpointReportsProgress(t *testing.T) {
	snapshot := session.Progress{
		RunID:     "run-42",
		Country:   "Norway",
		Streams:   12,
		Completed: 7,
		Succeeded: 6,
		Failed:    1,
		Bytes:     4096,
		Running:   true,
	}
	srv := httptest.NewServer(testServer(func() session.Progress { return snapshot }).Handler())
	defer srv.Close()

	res, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer func() { _ = res.Body.Close() }()

	require.Equal(t, http.StatusOK, res.StatusCode)

	var got session.Progress
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	require.Equal(t, snapshot, got)
}

func TestStatusEndpointWithoutProgressFunc(t *testing.T) {
	srv := httptest.NewServer(testServer(nil).Handler())
	defer srv.Close()

	res, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer func() { _ = res.Body.Close() }()

	require.Equal(t, http.StatusOK, res.StatusCode)

	var got session.Progress
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	require.False(t, got.Running)
	require.Empty(t, got.RunID)
}

func TestMetricsEndpoint(t *testing.T) {
	// Touch a counter so at least one aircheck series is exposed.
	metrics.IncPoolSubmitted()

	srv := httptest.NewServer(testServer(nil).Handler())
	defer srv.Close()

	res, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = res.Body.Close() }()

	require.Equal(t, http.StatusOK, res.StatusCode)

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "aircheck_pool_tasks_total")
}

func TestRateLimitReturns429(t *testing.T) {
	handler := testServer(nil).Handler()

	status := 0
	var retryAfter string
	for i := 0; i < rateLimitRequests+1; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "203.0.113.7:4711"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		status = rec.Code
		retryAfter = rec.Header().Get("Retry-After")
	}

	require.Equal(t, http.StatusTooManyRequests, status)
	require.Equal(t, "60", retryAfter)
}

func TestRunWithoutAddrReturnsImmediately(t *testing.T) {
	s := New(Options{Addr: ""})

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return for empty address")
	}
}

func TestRunShutsDownOnContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := testServer(nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// Give the listener a moment to come up before canceling.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not shut down after cancel")
	}
}
