// Package daemon runs the publishing server in the foreground or as an
// OS service.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/The-Promised-Neverland/kiro/internal/config"
	"github.com/The-Promised-Neverland/kiro/pkg/logger"
	kardianos "github.com/kardianos/service"
)

type DaemonManager struct {
	cfg *config.Config
	app *Application

	mu        sync.Mutex
	appCancel context.CancelFunc
	done      chan struct{}
	runErr    error
}

func NewDaemonManager(cfg *config.Config, app *Application) *DaemonManager {
	return &DaemonManager{
		cfg: cfg,
		app: app,
	}
}

func (m *DaemonManager) newService() (kardianos.Service, error) {
	if m.app == nil {
		return nil, fmt.Errorf("application cannot be nil")
	}
	return kardianos.New(m, &kardianos.Config{
		Name:        m.cfg.ServiceName(),
		DisplayName: m.cfg.ServiceDisplayName(),
		Description: m.cfg.ServiceDescription(),
		// The installed unit re-enters the binary through its run subcommand.
		Arguments: []string{"run"},
		Option: kardianos.KeyValue{
			"Restart":     "always",
			"OnFailure":   "restart",
			"LimitNOFILE": 65536,
		},
	})
}

// Start implements kardianos.Interface. It must not block.
func (m *DaemonManager) Start(s kardianos.Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done != nil {
		return errors.New("daemon already running")
	}
	logger.Log.Info("Kardianos starting service", "service", describe(s))
	ctx, cancel := context.WithCancel(context.Background())
	m.appCancel = cancel
	m.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		if err := m.app.Run(ctx); err != nil {
			logger.Log.Error("Server stopped with error", "err", err)
			m.mu.Lock()
			m.runErr = err
			m.mu.Unlock()
		}
	}(m.done)
	return nil
}

// Stop implements kardianos.Interface and waits for the server to drain.
func (m *DaemonManager) Stop(s kardianos.Service) error {
	logger.Log.Info("Kardianos stopping service", "service", describe(s))
	m.mu.Lock()
	cancel, done := m.appCancel, m.done
	m.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done

	m.mu.Lock()
	defer m.mu.Unlock()
	m.appCancel, m.done = nil, nil
	return m.runErr
}

// describe tolerates a nil service for callers driving Start/Stop directly.
func describe(s kardianos.Service) string {
	if s == nil {
		return "foreground"
	}
	return s.String() + " (" + s.Platform() + ")"
}

func (m *DaemonManager) InstallDaemon() error {
	s, err := m.newService()
	if err != nil {
		return err
	}
	if err := s.Install(); err != nil {
		if runtime.GOOS == "windows" {
			return fmt.Errorf("failed to install Windows service (requires administrator privileges): %w", err)
		}
		return fmt.Errorf("failed to install service: %w", err)
	}
	return nil
}

func (m *DaemonManager) UninstallDaemon() error {
	s, err := m.newService()
	if err != nil {
		return err
	}
	if err := s.Stop(); err != nil {
		logger.Log.Warn("Failed to stop service before uninstall", "err", err)
	}
	return s.Uninstall()
}

// RunDaemon blocks under the service manager, or until interrupted when
// started from a terminal.
func (m *DaemonManager) RunDaemon() error {
	s, err := m.newService()
	if err != nil {
		return err
	}
	return s.Run()
}
