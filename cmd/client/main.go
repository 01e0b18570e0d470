package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/The-Promised-Neverland/kiro/internal/config"
	"github.com/The-Promised-Neverland/kiro/internal/manager"
	"github.com/The-Promised-Neverland/kiro/internal/nodes"
	"github.com/The-Promised-Neverland/kiro/pkg/logger"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		nodesFile string
		window    time.Duration
		reconnect bool
	)
	cmd := &cobra.Command{
		Use:           "kiro-client",
		Short:         "Follow live metrics from a set of kiro servers",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.NewClient()
			if cmd.Flags().Changed("nodes") {
				cfg = cfg.WithNodesFile(nodesFile)
			}
			if cmd.Flags().Changed("window") {
				cfg = cfg.WithHistoryWindow(window)
			}
			if !cmd.Flags().Changed("reconnect") {
				reconnect = cfg.Reconnect()
			}
			// The terminal belongs to the status lines.
			logger.Init(cfg.LogFile(), logger.ParseLevel(cfg.LogLevel()), logger.WithConsole(nil))
			return run(cmd, cfg, reconnect)
		},
	}
	cmd.Flags().StringVar(&nodesFile, "nodes", "", "path to the node list (yaml)")
	cmd.Flags().DurationVar(&window, "window", config.DefaultHistoryWindow, "how much history to retain per node")
	cmd.Flags().BoolVar(&reconnect, "reconnect", false, "reconnect to nodes whose stream ended")
	return cmd
}

func run(cmd *cobra.Command, cfg *config.ClientConfig, reconnect bool) error {
	entries, err := config.LoadNodes(cfg.NodesFile())
	if err != nil {
		return err
	}
	identities, err := allocate(entries)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := manager.New(manager.Options{
		Window:               cfg.HistoryWindow(),
		Reconnect:            reconnect,
		ReconnectMaxInterval: cfg.ReconnectMaxInterval(),
	})
	if err := m.Start(ctx, identities); err != nil {
		return err
	}
	defer m.Close()

	out := cmd.OutOrStdout()
	ticker := time.NewTicker(cfg.RefreshInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("Shutting down client")
			return nil
		case <-ticker.C:
			printStatus(out, m)
			fmt.Fprintln(out)
		}
	}
}

func allocate(entries []config.NodeEntry) ([]nodes.Identity, error) {
	alloc := nodes.NewAllocator(0)
	out := make([]nodes.Identity, 0, len(entries))
	for _, e := range entries {
		id, err := nodes.New(alloc, e.Name, e.Address)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
