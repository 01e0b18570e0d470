package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/The-Promised-Neverland/kiro/internal/codec"
	"github.com/The-Promised-Neverland/kiro/internal/errs"
	"github.com/The-Promised-Neverland/kiro/internal/history"
	"github.com/The-Promised-Neverland/kiro/internal/models"
	"github.com/The-Promised-Neverland/kiro/pkg/logger"
	"github.com/gorilla/websocket"
)

const (
	readDeadline = 70 * time.Second
	writeWait    = 10 * time.Second
)

// connectionMonitor keeps the read deadline fresh on server pings and
// answers them, which is what keeps the server's own deadline alive.
func (s *Session) connectionMonitor() {
	_ = s.conn.SetReadDeadline(time.Now().Add(s.opts.ReadDeadline))
	s.conn.SetPingHandler(func(appData string) error {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.opts.ReadDeadline))
		err := s.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
		if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			return err
		}
		return nil
	})
}

// readPump returns only on transport failure. A message that fails to
// decode is logged and dropped.
func (s *Session) readPump() error {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("%w: read %s: %v", errs.ErrTransport, s.Identity.Address, err)
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(s.opts.ReadDeadline))

		res := codec.Decode(data)
		if !res.OK() {
			s.mu.Lock()
			s.decodeFailures++
			s.mu.Unlock()
			logger.Log.Warn("Failed to decode message", "node", s.Identity.Hostname, "bytes", len(data), "err", res.Err)
			continue
		}
		s.record(res.Snapshot)
	}
}

func (s *Session) record(snap models.MetricsSnapshot) {
	elapsed := s.opts.Clock.Elapsed()

	s.mu.Lock()
	s.latest = &snap
	s.mu.Unlock()

	if s.opts.Memory != nil {
		if pct, ok := snap.MemoryUsagePercent(); ok {
			s.appendSample(s.opts.Memory, history.Sample{Elapsed: elapsed, Value: pct})
		}
	}
	if s.opts.CPU != nil {
		s.appendSample(s.opts.CPU, history.Sample{Elapsed: elapsed, Value: snap.CPUUsage})
	}
}

func (s *Session) appendSample(store *history.Store, sample history.Sample) {
	if err := store.Append(s.Identity.ID, sample); err != nil {
		logger.Log.Warn("Sample rejected", "node", s.Identity.Hostname, "elapsed", sample.Elapsed.String(), "err", err)
	}
}
