// Package session owns the client side of one node's telemetry stream.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/The-Promised-Neverland/kiro/internal/errs"
	"github.com/The-Promised-Neverland/kiro/internal/history"
	"github.com/The-Promised-Neverland/kiro/internal/models"
	"github.com/The-Promised-Neverland/kiro/internal/nodes"
	"github.com/The-Promised-Neverland/kiro/pkg/logger"
	"github.com/The-Promised-Neverland/kiro/pkg/system"
	"github.com/gorilla/websocket"
)

// ErrClosed is the terminal error of a session that was shut down on
// purpose rather than by a transport failure.
var ErrClosed = errors.New("session closed")

type State int32

const (
	StateConnecting State = iota
	StateConnected
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateTerminated:
		return "terminated"
	default:
		return "invalid"
	}
}

type Options struct {
	// Clock stamps history samples. Sessions of one client share it.
	Clock system.Clock
	// Memory receives memory usage percentages, CPU receives cpu_usage.
	// Either may be nil.
	Memory *history.Store
	CPU    *history.Store
	Dialer *websocket.Dialer
	// ReadDeadline bounds the silence tolerated between inbound frames.
	ReadDeadline time.Duration
}

// Session is the only writer of its node's history. It is created once,
// runs once and is never restarted.
type Session struct {
	Identity nodes.Identity

	opts   Options
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu             sync.RWMutex
	conn           *websocket.Conn
	state          State
	lastErr        error
	latest         *models.MetricsSnapshot
	decodeFailures uint64
	everConnected  bool
	started        bool
}

func New(parentCtx context.Context, identity nodes.Identity, opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = system.NewClock()
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.ReadDeadline <= 0 {
		opts.ReadDeadline = readDeadline
	}
	ctx, cancel := context.WithCancel(parentCtx)
	return &Session{
		Identity: identity,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		state:    StateConnecting,
	}
}

// Run connects and then receives until the connection fails or the
// session is closed. It blocks; callers start it on its own goroutine.
func (s *Session) Run() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()
	defer close(s.done)
	if err := s.connect(); err != nil {
		s.terminate(err)
		return
	}
	// Closing the socket is what unblocks a pending read.
	stop := context.AfterFunc(s.ctx, func() {
		_ = s.conn.Close()
	})
	defer stop()

	s.connectionMonitor()
	s.terminate(s.readPump())
	_ = s.conn.Close()
}

func (s *Session) connect() error {
	addr := s.Identity.Address
	logger.Log.Info("Attempting connection", "node", s.Identity.Hostname, "url", addr)
	conn, _, err := s.opts.Dialer.DialContext(s.ctx, addr, nil)
	if err != nil {
		logger.Log.Error("Connection error", "node", s.Identity.Hostname, "url", addr, "err", err)
		return fmt.Errorf("%w: dial %s: %v", errs.ErrTransport, addr, err)
	}
	s.mu.Lock()
	s.conn = conn
	s.state = StateConnected
	s.everConnected = true
	s.mu.Unlock()
	logger.Log.Info("Connected to node", "node", s.Identity.Hostname, "url", addr)
	return nil
}

func (s *Session) terminate(err error) {
	if s.ctx.Err() != nil {
		err = ErrClosed
	}
	s.mu.Lock()
	s.state = StateTerminated
	s.lastErr = err
	s.mu.Unlock()
	s.cancel()
	if errors.Is(err, ErrClosed) {
		logger.Log.Info("Session closed", "node", s.Identity.Hostname)
	} else {
		logger.Log.Error("Session terminated", "node", s.Identity.Hostname, "err", err)
	}
}

// Close stops the session and waits for its receive loop to exit. Safe to
// call more than once and before Run.
func (s *Session) Close() error {
	s.cancel()
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if started {
		<-s.done
	}
	return nil
}

// Done is closed once Run has returned.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Alive reports whether the session has not terminated yet.
func (s *Session) Alive() bool {
	return s.State() != StateTerminated
}

// Err returns why the session terminated, or nil while it is alive.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Latest returns the most recently decoded snapshot. It stays available
// after the session terminates.
func (s *Session) Latest() (models.MetricsSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return models.MetricsSnapshot{}, false
	}
	return *s.latest, true
}

func (s *Session) DecodeFailures() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.decodeFailures
}

// EverConnected reports whether the dial succeeded at some point.
func (s *Session) EverConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.everConnected
}
