package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/The-Promised-Neverland/kiro/internal/config"
	"github.com/The-Promised-Neverland/kiro/internal/errs"
	"github.com/The-Promised-Neverland/kiro/internal/ws"
	"github.com/The-Promised-Neverland/kiro/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// Application is the publishing server: an HTTP listener whose stream
// endpoint is backed by a Hub.
type Application struct {
	config  *config.Config
	hub     *ws.Hub
	handler http.Handler
}

func NewApplication(cfg *config.Config, hub *ws.Hub, handler http.Handler) *Application {
	return &Application{
		config:  cfg,
		hub:     hub,
		handler: handler,
	}
}

// Listen binds the configured address. Nothing is served until Serve.
func (app *Application) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", app.config.ListenAddr())
	if err != nil {
		return nil, fmt.Errorf("%w: bind %s: %v", errs.ErrStartup, app.config.ListenAddr(), err)
	}
	return ln, nil
}

// Run binds and serves until ctx is cancelled.
func (app *Application) Run(ctx context.Context) error {
	ln, err := app.Listen()
	if err != nil {
		return err
	}
	return app.Serve(ctx, ln)
}

// Serve accepts on ln until ctx is cancelled or the listener fails. Open
// streams are closed before the HTTP server drains.
func (app *Application) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Log.Info("Server started", "addr", ln.Addr().String(), "path", app.config.WSPath(), "interval", app.hub.Interval().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%w: serve: %v", errs.ErrTransport, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Log.Info("Shutting down server")
		app.hub.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
