package app

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rndlabs/daily-stoic-waku/internal/broadcaster"
	"github.com/rndlabs/daily-stoic-waku/internal/catalog"
	"github.com/rndlabs/daily-stoic-waku/internal/protocol"
	"github.com/rndlabs/daily-stoic-waku/internal/storage"
	"github.com/rndlabs/daily-stoic-waku/internal/transport/memory"
	logx "github.com/rndlabs/daily-stoic-waku/pkg/logx"
)

const quotesJSON = `[{"author":"Marcus Aurelius","quote":"The impediment to action advances action."}]`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func testConfig(dir string, maxAttempts int) string {
	return strings.Join([]string{
		"logging:",
		"  level: debug",
		"  console: false",
		"transport:",
		"  driver: memory",
		"broadcast:",
		"  schedule: 24h",
		"  on_start: true",
		"  publish_timeout: 1s",
		"readiness:",
		"  min_peers: 1",
		"  max_attempts: " + strconv.Itoa(maxAttempts),
		"  backoff: 5ms",
		"  max_backoff: 10ms",
		"journal:",
		"  driver: file",
		"  path: " + filepath.Join(dir, "journal.jsonl"),
		"http:",
		"  enabled: false",
		"",
	}, "\n")
}

type fakeNotify struct {
	mu     sync.Mutex
	states []string
}

func (f *fakeNotify) send(_ bool, state string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, state)
	return true, nil
}

func (f *fakeNotify) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.states...)
}

func TestNewAppRequiresCatalog(t *testing.T) {
	_, err := NewApp(Options{})
	require.Error(t, err)
}

func TestNewAppRejectsUnreadableCatalog(t *testing.T) {
	dir := t.TempDir()
	_, err := NewApp(Options{
		ConfigPath:  writeFile(t, dir, "config.yaml", testConfig(dir, 1)),
		CatalogPath: filepath.Join(dir, "missing.json"),
	})
	var le *catalog.LoadError
	require.ErrorAs(t, err, &le)
}

func TestNewAppRejectsBadLogLevel(t *testing.T) {
	dir := t.TempDir()
	_, err := NewApp(Options{
		CatalogPath: writeFile(t, dir, "quotes.json", quotesJSON),
		LogLevel:    "loud",
	})
	require.Error(t, err)
}

func TestAppBroadcastsOnStart(t *testing.T) {
	dir := t.TempDir()
	hub := memory.NewHub()
	daemon, client := hub.Join(), hub.Join()
	defer client.Close()

	got := make(chan []byte, 4)
	unsub, err := client.Subscribe(context.Background(), []string{protocol.BroadcastTopic.String()}, func(_ string, payload []byte) {
		got <- payload
	})
	require.NoError(t, err)
	defer unsub()

	a, err := NewApp(Options{
		ConfigPath:  writeFile(t, dir, "config.yaml", testConfig(dir, 3)),
		CatalogPath: writeFile(t, dir, "quotes.json", quotesJSON),
		Transport:   daemon,
	})
	require.NoError(t, err)
	sd := &fakeNotify{}
	a.sd.send = sd.send

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx))

	ok, state := a.health()
	assert.True(t, ok)
	assert.Equal(t, "running", state)

	select {
	case payload := <-got:
		msg, err := protocol.UnmarshalDailyStoic(payload)
		require.NoError(t, err)
		assert.Equal(t, "Marcus Aurelius", msg.Author)
	case <-time.After(2 * time.Second):
		t.Fatal("no broadcast received")
	}

	// a request from the client is answered
	require.NoError(t, client.Publish(context.Background(), protocol.RequestTopic.String(), protocol.NewRequest(time.Now()).Marshal()))
	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("request not answered")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	require.NoError(t, a.Stop(stopCtx, StopSIGTERM))
	assert.Equal(t, broadcaster.StateShuttingDown, a.Broadcaster().State())

	states := sd.all()
	require.NotEmpty(t, states)
	assert.Contains(t, states, "READY=1\nSTATUS=broadcasting")
	assert.Equal(t, "STOPPING=1\nSTATUS=shutting down", states[len(states)-1])

	st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(dir, "journal.jsonl")}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()
	recs, err := st.RecentBroadcasts(context.Background(), 10)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(recs), 2)
}

func TestAppStartNotReady(t *testing.T) {
	dir := t.TempDir()
	hub := memory.NewHub()
	lonely := hub.Join()

	a, err := NewApp(Options{
		ConfigPath:  writeFile(t, dir, "config.yaml", testConfig(dir, 2)),
		CatalogPath: writeFile(t, dir, "quotes.json", quotesJSON),
		Transport:   lonely,
	})
	require.NoError(t, err)
	a.sd.send = (&fakeNotify{}).send

	err = a.Start(context.Background())
	require.ErrorIs(t, err, broadcaster.ErrNotReady)
	assert.Equal(t, broadcaster.StateFailed, a.Broadcaster().State())

	ok, _ := a.health()
	assert.False(t, ok)

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Stop(stopCtx, StopStartFail))
}

func TestSdNotifierStates(t *testing.T) {
	sd := &fakeNotify{}
	n := &sdNotifier{log: logx.Nop(), send: sd.send}

	n.onState(broadcaster.StateConnecting)
	n.onState(broadcaster.StateRunning)
	n.onState(broadcaster.StateShuttingDown)

	assert.Equal(t, []string{
		"STATUS=connecting",
		"READY=1\nSTATUS=broadcasting",
		"STOPPING=1\nSTATUS=shutting down",
	}, sd.all())
}
