package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/wikipath-crawler/internal/controller"
	"github.com/JakeFAU/wikipath-crawler/internal/crawler"
)

type fakeStatus struct {
	snap controller.StatsSnapshot
}

func (f *fakeStatus) Snapshot() controller.StatsSnapshot { return f.snap }

func serve(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	rec := serve(t, NewServer(nil, nil, nil), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDIsPropagated(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	NewServer(nil, nil, nil).Handler().ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
}

func TestReadyzReflectsStopFlag(t *testing.T) {
	t.Parallel()

	status := &fakeStatus{}
	s := NewServer(status, nil, nil)

	rec := serve(t, s, "/readyz")
	require.Equal(t, http.StatusOK, rec.Code)

	status.snap.Stopped = true
	status.snap.StopReason = controller.ReasonStorageCeiling
	rec = serve(t, s, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), controller.ReasonStorageCeiling)

	rec = serve(t, NewServer(nil, nil, nil), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatusReturnsSnapshot(t *testing.T) {
	t.Parallel()

	status := &fakeStatus{snap: controller.StatsSnapshot{
		JobsCompleted:    4,
		Stored:           3,
		Discarded:        1,
		VisitedTitles:    17,
		StorageSizeGB:    0.25,
		StorageCeilingGB: 2,
		Outcomes:         map[crawler.OutcomeKind]int{crawler.OutcomeCompleted: 3, crawler.OutcomeDeadEnd: 1},
	}}
	rec := serve(t, NewServer(status, nil, nil), "/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status controller.StatsSnapshot `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 4, body.Status.JobsCompleted)
	assert.Equal(t, 3, body.Status.Stored)
	assert.Equal(t, 17, body.Status.VisitedTitles)
	assert.Equal(t, 3, body.Status.Outcomes[crawler.OutcomeCompleted])
	assert.InDelta(t, 0.25, body.Status.StorageSizeGB, 1e-9)
}

func TestStatusUnavailableWithoutController(t *testing.T) {
	t.Parallel()

	rec := serve(t, NewServer(nil, nil, nil), "/v1/status")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestVisitedLookup(t *testing.T) {
	t.Parallel()

	visited := controller.NewVisitedSet("Quantum mechanics", "Physics")
	s := NewServer(&fakeStatus{}, visited, nil)

	rec := serve(t, s, "/v1/visited/Quantum%20mechanics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"title":"Quantum mechanics","visited":true,"total":2}`, rec.Body.String())

	rec = serve(t, s, "/v1/visited/Chemistry")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"title":"Chemistry","visited":false,"total":2}`, rec.Body.String())

	rec = serve(t, NewServer(nil, nil, nil), "/v1/visited/Chemistry")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	rec := serve(t, NewServer(nil, nil, nil), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestUnknownRoute(t *testing.T) {
	t.Parallel()

	rec := serve(t, NewServer(nil, nil, nil), "/v1/jobs")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer(nil, nil, nil).ListenAndServe(ctx, addr) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
