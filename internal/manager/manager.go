// Package manager runs one session per configured node and owns the
// history stores those sessions write into.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/The-Promised-Neverland/kiro/internal/history"
	"github.com/The-Promised-Neverland/kiro/internal/nodes"
	"github.com/The-Promised-Neverland/kiro/internal/session"
	"github.com/The-Promised-Neverland/kiro/pkg/logger"
	"github.com/The-Promised-Neverland/kiro/pkg/system"
	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

var (
	ErrAlreadyStarted = errors.New("manager already started")
	ErrDuplicateNode  = errors.New("duplicate node id")
)

type Options struct {
	// Window bounds both history stores. Zero means history.DefaultWindow.
	Window time.Duration
	Clock  system.Clock
	Dialer *websocket.Dialer

	// Reconnect replaces a terminated session with a fresh one for the same
	// node after an exponential backoff. Off by default.
	Reconnect                bool
	ReconnectInitialInterval time.Duration
	ReconnectMaxInterval     time.Duration
}

type Manager struct {
	opts   Options
	memory *history.Store
	cpu    *history.Store

	mu       sync.RWMutex
	sessions map[int]*session.Session
	order    []int
	started  bool

	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group
}

func New(opts Options) *Manager {
	if opts.Clock == nil {
		opts.Clock = system.NewClock()
	}
	if opts.ReconnectInitialInterval <= 0 {
		opts.ReconnectInitialInterval = 500 * time.Millisecond
	}
	if opts.ReconnectMaxInterval <= 0 {
		opts.ReconnectMaxInterval = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		opts:     opts,
		memory:   history.NewStore(opts.Window),
		cpu:      history.NewStore(opts.Window),
		sessions: make(map[int]*session.Session),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches a session per identity and returns without waiting for
// any of them to connect. A node that fails to connect does not affect
// the others.
func (m *Manager) Start(ctx context.Context, identities []nodes.Identity) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	seen := make(map[int]struct{}, len(identities))
	for _, id := range identities {
		if _, dup := seen[id.ID]; dup {
			m.mu.Unlock()
			return fmt.Errorf("%w: %d", ErrDuplicateNode, id.ID)
		}
		seen[id.ID] = struct{}{}
	}
	m.started = true
	m.mu.Unlock()

	// The caller's context also stops every session.
	stop := context.AfterFunc(ctx, m.cancel)
	m.group.Go(func() error {
		<-m.ctx.Done()
		stop()
		return nil
	})

	// Sessions are registered before Start returns so Lookup sees every node.
	for _, identity := range identities {
		first := m.newSession(identity)
		m.group.Go(func() error {
			m.supervise(identity, first)
			return nil
		})
	}
	logger.Log.Info("Connection manager started", "nodes", len(identities), "reconnect", m.opts.Reconnect)
	return nil
}

func (m *Manager) newSession(identity nodes.Identity) *session.Session {
	s := session.New(m.ctx, identity, session.Options{
		Clock:  m.opts.Clock,
		Memory: m.memory,
		CPU:    m.cpu,
		Dialer: m.opts.Dialer,
	})
	m.put(identity, s)
	return s
}

func (m *Manager) supervise(identity nodes.Identity, s *session.Session) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = m.opts.ReconnectInitialInterval
	bo.MaxInterval = m.opts.ReconnectMaxInterval
	bo.MaxElapsedTime = 0

	for {
		s.Run()

		if !m.opts.Reconnect || m.ctx.Err() != nil {
			return
		}
		if s.EverConnected() {
			bo.Reset()
		}
		wait := bo.NextBackOff()
		logger.Log.Info("Reconnecting to node", "node", identity.Hostname, "in", wait.String(), "err", s.Err())
		select {
		case <-m.ctx.Done():
			return
		case <-time.After(wait):
		}
		s = m.newSession(identity)
	}
}

func (m *Manager) put(identity nodes.Identity, s *session.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[identity.ID]; !ok {
		m.order = append(m.order, identity.ID)
	}
	m.sessions[identity.ID] = s
}

// Lookup returns the current session for a node id.
func (m *Manager) Lookup(id int) (*session.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Sessions returns the current sessions in the order they were started.
func (m *Manager) Sessions() []*session.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*session.Session, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.sessions[id])
	}
	return out
}

// Memory holds memory usage percentages per node.
func (m *Manager) Memory() *history.Store { return m.memory }

// CPU holds cpu usage percentages per node.
func (m *Manager) CPU() *history.Store { return m.cpu }

// Close stops every session and waits for their goroutines to exit.
func (m *Manager) Close() error {
	m.cancel()
	err := m.group.Wait()
	logger.Log.Info("Connection manager stopped")
	return err
}
