package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/The-Promised-Neverland/kiro/internal/api/handlers"
	"github.com/The-Promised-Neverland/kiro/internal/api/routers"
	"github.com/The-Promised-Neverland/kiro/internal/config"
	"github.com/The-Promised-Neverland/kiro/internal/daemon"
	"github.com/The-Promised-Neverland/kiro/internal/localip"
	"github.com/The-Promised-Neverland/kiro/internal/metrics"
	"github.com/The-Promised-Neverland/kiro/internal/service"
	"github.com/The-Promised-Neverland/kiro/internal/ws"
	"github.com/The-Promised-Neverland/kiro/pkg/logger"
	"github.com/The-Promised-Neverland/kiro/pkg/system"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "kiro-server",
		Short:         "Stream live host metrics to websocket clients",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, _, err := build()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := app.Run(ctx); err != nil {
				logger.Log.Error("❌ Server failed", "err", err)
				return err
			}
			return nil
		},
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "install",
			Short: "Install the server as an OS service",
			RunE: func(*cobra.Command, []string) error {
				_, manager, err := build()
				if err != nil {
					return err
				}
				if err := manager.InstallDaemon(); err != nil {
					logger.Log.Error("❌ Install failed", "err", err)
					return err
				}
				logger.Log.Info("✅ Service installed")
				return nil
			},
		},
		&cobra.Command{
			Use:   "uninstall",
			Short: "Stop and remove the OS service",
			RunE: func(*cobra.Command, []string) error {
				_, manager, err := build()
				if err != nil {
					return err
				}
				if err := manager.UninstallDaemon(); err != nil {
					logger.Log.Error("❌ Uninstall failed", "err", err)
					return err
				}
				logger.Log.Info("✅ Service uninstalled")
				return nil
			},
		},
		&cobra.Command{
			Use:   "run",
			Short: "Run under the OS service manager",
			RunE: func(*cobra.Command, []string) error {
				_, manager, err := build()
				if err != nil {
					return err
				}
				if err := manager.RunDaemon(); err != nil {
					logger.Log.Error("❌ Service failed", "err", err)
					return err
				}
				return nil
			},
		},
	)
	return root
}

func build() (*daemon.Application, *daemon.DaemonManager, error) {
	cfg := config.New()
	logger.Init(cfg.LogFile(), logger.ParseLevel(cfg.LogLevel()))
	system.InitStartTime()
	gin.SetMode(gin.ReleaseMode)

	resolver, err := localip.New(cfg.IPResolver(), cfg.IPProbeAddr(), cfg.StunServerAddr())
	if err != nil {
		return nil, nil, fmt.Errorf("configure ip resolver: %w", err)
	}
	m := metrics.New()
	sampler := service.NewSampler(service.NewSystemProvider(), resolver, cfg.FactsTTL())
	hub := ws.NewStreamHub(func() ws.Sampler { return sampler.ForStream() }, cfg.TickInterval(), m)
	router := routers.NewRouter(handlers.NewHandler(hub), handlers.NewWebSocketHandler(hub), m, cfg.WSPath()).SetupRouter()

	app := daemon.NewApplication(cfg, hub, router)
	return app, daemon.NewDaemonManager(cfg, app), nil
}
