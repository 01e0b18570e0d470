// Package ws is the server side of the telemetry stream: every accepted
// websocket gets its own tick loop fed by its own sampler.
package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/The-Promised-Neverland/kiro/internal/metrics"
	"github.com/The-Promised-Neverland/kiro/internal/models"
	"github.com/The-Promised-Neverland/kiro/pkg/logger"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const DefaultInterval = time.Second

var ErrHubClosed = errors.New("hub is shut down")

type Sampler interface {
	Sample(ctx context.Context) models.MetricsSnapshot
}

// SamplerFactory yields the sampler for one new stream.
type SamplerFactory func() Sampler

type Hub struct {
	Connections map[string]*Connection
	Mutex       sync.RWMutex
	newSampler  SamplerFactory
	interval    time.Duration
	metrics     *metrics.Metrics
	closed      bool
	wg          sync.WaitGroup
}

// NewHub serves every stream from the same sampler. Use NewStreamHub when
// the sampler keeps state between calls.
func NewHub(sampler Sampler, interval time.Duration, m *metrics.Metrics) *Hub {
	return NewStreamHub(func() Sampler { return sampler }, interval, m)
}

// NewStreamHub calls newSampler once per accepted stream.
func NewStreamHub(newSampler SamplerFactory, interval time.Duration, m *metrics.Metrics) *Hub {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if m == nil {
		m = metrics.New()
	}
	return &Hub{
		Connections: make(map[string]*Connection),
		newSampler:  newSampler,
		interval:    interval,
		metrics:     m,
	}
}

// Serve streams snapshots over conn until the peer leaves, a write fails
// or the hub shuts down. It never retries; the peer has to reconnect.
// The connection is closed on return.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn) error {
	c, err := h.register(ctx, conn)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer h.unregister(c)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.ReadPump(c)
	}()
	return h.tickLoop(c, h.newSampler())
}

func (h *Hub) register(ctx context.Context, conn *websocket.Conn) (*Connection, error) {
	h.Mutex.Lock()
	defer h.Mutex.Unlock()
	if h.closed {
		return nil, ErrHubClosed
	}
	c := NewConnection(ctx, uuid.New().String(), conn)
	h.Connections[c.ID] = c
	h.wg.Add(1)
	h.metrics.StreamOpened()
	logger.Log.Info("Stream opened", "stream", c.ID, "remote", c.RemoteAddr)
	return c, nil
}

func (h *Hub) unregister(c *Connection) {
	c.cancel()
	_ = c.Conn.Close()
	h.Mutex.Lock()
	delete(h.Connections, c.ID)
	h.Mutex.Unlock()
	h.metrics.StreamClosed()
	logger.Log.Info("Stream closed", "stream", c.ID, "remote", c.RemoteAddr, "duration", time.Since(c.ConnectedAt).String())
	h.wg.Done()
}

// Active returns the number of streams being served.
func (h *Hub) Active() int {
	h.Mutex.RLock()
	defer h.Mutex.RUnlock()
	return len(h.Connections)
}

func (h *Hub) Interval() time.Duration {
	return h.interval
}

// Shutdown stops every stream, refuses new ones and waits for every tick
// loop and reader to return.
func (h *Hub) Shutdown() {
	h.Mutex.Lock()
	h.closed = true
	for _, c := range h.Connections {
		c.cancel()
	}
	h.Mutex.Unlock()
	h.wg.Wait()
}
