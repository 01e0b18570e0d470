package manager

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/The-Promised-Neverland/kiro/internal/codec"
	"github.com/The-Promised-Neverland/kiro/internal/errs"
	"github.com/The-Promised-Neverland/kiro/internal/metrics"
	"github.com/The-Promised-Neverland/kiro/internal/models"
	"github.com/The-Promised-Neverland/kiro/internal/nodes"
	"github.com/The-Promised-Neverland/kiro/internal/ws"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedSampler struct {
	host string
	cpu  float64
}

func (f fixedSampler) Sample(context.Context) models.MetricsSnapshot {
	return models.MetricsSnapshot{
		OS: "Ubuntu 24.04", Kernel: "6.8.0", HostName: f.host, LocalIP: "10.0.0.1",
		Uptime: 100, UsedMemory: 256, FreeMemory: 768, TotalMemory: 1024, CPUUsage: f.cpu,
	}
}

func hubServer(t *testing.T, hub *ws.Hub) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = hub.Serve(r.Context(), conn)
	}))
	t.Cleanup(func() {
		hub.Shutdown()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func identities(t *testing.T, addrs ...string) []nodes.Identity {
	t.Helper()
	alloc := nodes.NewAllocator(0)
	out := make([]nodes.Identity, 0, len(addrs))
	for i, addr := range addrs {
		id, err := nodes.New(alloc, []string{"Timeline", "Incubator", "Ledger"}[i], addr)
		require.NoError(t, err)
		out = append(out, id)
	}
	return out
}

func TestOneNodeFailingLeavesOthersRunning(t *testing.T) {
	hubA := ws.NewHub(fixedSampler{host: "timeline", cpu: 10}, 10*time.Millisecond, metrics.New())
	hubB := ws.NewHub(fixedSampler{host: "incubator", cpu: 20}, 10*time.Millisecond, metrics.New())
	ids := identities(t, hubServer(t, hubA), hubServer(t, hubB))

	m := New(Options{})
	require.NoError(t, m.Start(context.Background(), ids))
	defer m.Close()

	for _, id := range ids {
		_, ok := m.Lookup(id.ID)
		require.True(t, ok)
	}
	require.Eventually(t, func() bool {
		return m.CPU().Get(ids[0].ID).Len() > 0 && m.CPU().Get(ids[1].ID).Len() > 0
	}, 5*time.Second, 10*time.Millisecond)

	hubA.Shutdown()

	a, _ := m.Lookup(ids[0].ID)
	select {
	case <-a.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session for the stopped node did not terminate")
	}
	assert.ErrorIs(t, a.Err(), errs.ErrTransport)

	b, ok := m.Lookup(ids[1].ID)
	require.True(t, ok)
	assert.True(t, b.Alive())
	before := m.CPU().Get(ids[1].ID).Len()
	assert.Eventually(t, func() bool { return m.CPU().Get(ids[1].ID).Len() > before }, 5*time.Second, 10*time.Millisecond)

	last, ok := m.Memory().Get(ids[1].ID).Last()
	require.True(t, ok)
	assert.InDelta(t, 25.0, last.Value, 1e-9)
	cpu, _ := m.CPU().Get(ids[1].ID).Last()
	assert.InDelta(t, 20.0, cpu.Value, 1e-9)
}

func TestUnknownIDIsNotFound(t *testing.T) {
	m := New(Options{})
	defer m.Close()
	_, ok := m.Lookup(42)
	assert.False(t, ok)
	assert.Empty(t, m.Sessions())
}

func TestSessionsKeepStartOrder(t *testing.T) {
	ids := []nodes.Identity{
		{ID: 30, Hostname: "c", Address: "ws://127.0.0.1:1"},
		{ID: 10, Hostname: "a", Address: "ws://127.0.0.1:1"},
		{ID: 20, Hostname: "b", Address: "ws://127.0.0.1:1"},
	}
	m := New(Options{})
	require.NoError(t, m.Start(context.Background(), ids))
	defer m.Close()

	got := m.Sessions()
	require.Len(t, got, 3)
	for i, s := range got {
		assert.Equal(t, ids[i].ID, s.Identity.ID)
	}
}

func TestStartRejectsDuplicatesAndRestart(t *testing.T) {
	m := New(Options{})
	defer m.Close()

	dup := []nodes.Identity{{ID: 1, Address: "ws://127.0.0.1:1"}, {ID: 1, Address: "ws://127.0.0.1:2"}}
	assert.ErrorIs(t, m.Start(context.Background(), dup), ErrDuplicateNode)

	require.NoError(t, m.Start(context.Background(), nil))
	assert.ErrorIs(t, m.Start(context.Background(), nil), ErrAlreadyStarted)
}

func TestCloseStopsAllSessions(t *testing.T) {
	hub := ws.NewHub(fixedSampler{host: "timeline"}, 10*time.Millisecond, metrics.New())
	ids := identities(t, hubServer(t, hub), hubServer(t, ws.NewHub(fixedSampler{host: "incubator"}, 10*time.Millisecond, nil)))

	m := New(Options{})
	require.NoError(t, m.Start(context.Background(), ids))
	require.Eventually(t, func() bool { return hub.Active() == 1 }, 5*time.Second, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		_ = m.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}
	for _, s := range m.Sessions() {
		assert.False(t, s.Alive())
	}
}

func TestParentContextStopsManager(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := ws.NewHub(fixedSampler{host: "timeline"}, 10*time.Millisecond, metrics.New())
	ids := identities(t, hubServer(t, hub))

	m := New(Options{})
	require.NoError(t, m.Start(ctx, ids))
	s, _ := m.Lookup(ids[0].ID)
	require.Eventually(t, func() bool { return s.EverConnected() }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("cancelling the parent context did not stop the session")
	}
	require.NoError(t, m.Close())
}

func TestReconnectKeepsHistoryUnderSameID(t *testing.T) {
	var accepted atomic.Int32
	payload, err := codec.Encode(fixedSampler{host: "flaky", cpu: 5}.Sample(context.Background()))
	require.NoError(t, err)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accepted.Add(1)
		_ = conn.WriteMessage(websocket.TextMessage, payload)
		_ = conn.Close()
	}))
	defer srv.Close()
	ids := identities(t, "ws"+strings.TrimPrefix(srv.URL, "http"))

	m := New(Options{
		Reconnect:                true,
		ReconnectInitialInterval: 5 * time.Millisecond,
		ReconnectMaxInterval:     20 * time.Millisecond,
	})
	require.NoError(t, m.Start(context.Background(), ids))
	defer m.Close()

	require.Eventually(t, func() bool { return accepted.Load() >= 3 }, 5*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return m.CPU().Get(ids[0].ID).Len() >= 2 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []int{ids[0].ID}, m.CPU().Nodes())
}
