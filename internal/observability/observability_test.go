package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rndlabs/daily-stoic-waku/internal/storage"
)

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics()
	m.ObserveBroadcast("schedule", nil, 10*time.Millisecond)
	m.ObserveBroadcast("request", nil, time.Millisecond)
	m.ObserveBroadcast("request", errors.New("down"), time.Millisecond)
	m.ObserveRequest(ResultAccepted)
	m.ObserveRequest(ResultRejected)
	m.ObserveRequest(ResultRejected)
	m.SetQueueDepth(4)
	m.SetPeers(2)
	m.SetState(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.broadcasts.WithLabelValues("schedule", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.broadcasts.WithLabelValues("request", ResultError)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues(ResultRejected)))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.queueDepth))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.peers))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.state))
	assert.Equal(t, 1, testutil.CollectAndCount(m.publishDuration))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveBroadcast("schedule", nil, 0)
		m.ObserveRequest(ResultFiltered)
		m.SetQueueDepth(1)
		m.SetPeers(1)
		m.SetState(1)
	})
	assert.Nil(t, m.Registry())
}

type fakeJournal struct {
	recs []storage.BroadcastRecord
	err  error
	got  int
}

func (f *fakeJournal) RecentBroadcasts(ctx context.Context, limit int) ([]storage.BroadcastRecord, error) {
	f.got = limit
	return f.recs, f.err
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	running := false
	srv := NewServer(ServerConfig{}, WithHealth(func() (bool, string) { return running, "connecting" }))
	h := srv.Handler()

	rec := get(t, h, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	running = true
	rec = get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["ok"])
}

func TestMetricsEndpoint(t *testing.T) {
	m := NewMetrics()
	m.ObserveRequest(ResultAccepted)
	h := NewServer(ServerConfig{}, WithMetrics(m)).Handler()

	rec := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `dailystoic_requests_total{result="accepted"} 1`)
}

func TestBroadcastsEndpoint(t *testing.T) {
	j := &fakeJournal{recs: []storage.BroadcastRecord{{ID: "x", Trigger: "request", OK: true}}}
	h := NewServer(ServerConfig{}, WithJournal(j)).Handler()

	rec := get(t, h, "/broadcasts?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, j.got)
	var out []storage.BroadcastRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "x", out[0].ID)

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/broadcasts?limit=x").Code)

	j.err = errors.New("disk")
	assert.Equal(t, http.StatusInternalServerError, get(t, h, "/broadcasts").Code)

	noJournal := NewServer(ServerConfig{}).Handler()
	assert.Equal(t, http.StatusNotFound, get(t, noJournal, "/broadcasts").Code)
}

func TestPprofOnlyWhenEnabled(t *testing.T) {
	off := NewServer(ServerConfig{}).Handler()
	assert.Equal(t, http.StatusNotFound, get(t, off, "/debug/pprof/").Code)

	on := NewServer(ServerConfig{Pprof: true}).Handler()
	rec := get(t, on, "/debug/pprof/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "goroutine"))
}

func TestTokenAuth(t *testing.T) {
	h := NewServer(ServerConfig{Token: "s3cret"}).Handler()
	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/healthz").Code)
	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/healthz?token=nope").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/healthz?token=s3cret").Code)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRunRefusesPublicAddrWithoutToken(t *testing.T) {
	err := NewServer(ServerConfig{Addr: "0.0.0.0:0"}).Run(context.Background())
	assert.Error(t, err)
}

func TestRunServesUntilCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer(ServerConfig{Addr: "127.0.0.1:0"}).Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	assert.True(t, isLoopbackAddr("127.0.0.1:9464"))
	assert.True(t, isLoopbackAddr("localhost:1"))
	assert.True(t, isLoopbackAddr("[::1]:1"))
	assert.False(t, isLoopbackAddr(":9464"))
	assert.False(t, isLoopbackAddr("10.0.0.1:1"))
}
