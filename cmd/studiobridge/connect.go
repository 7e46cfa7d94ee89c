package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/studiobridge/studiobridge/internal/config"
	"github.com/studiobridge/studiobridge/internal/statusd"
	"github.com/studiobridge/studiobridge/pkg/bridge"
	"github.com/studiobridge/studiobridge/pkg/completion"
	"github.com/studiobridge/studiobridge/pkg/discovery"
)

func connectCmd() *cobra.Command {
	var (
		descriptorPath string
		configDir      string
	)

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect to a running Designer and stay attached",
		Long: `Connect loads the Designer's descriptor file, establishes the bridge
connection and keeps it alive (with automatic reconnection) until
interrupted. While running it serves local status endpoints:

  GET /healthz   liveness
  GET /status    connection snapshot
  GET /metrics   Prometheus metrics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configDir)
			if err != nil {
				return err
			}

			logger := newLogger(cfg)
			desc, err := discovery.LoadDescriptor(descriptorPath)
			if err != nil {
				return err
			}

			metrics := bridge.NewMetrics(prometheus.DefaultRegisterer)
			manager := bridge.NewManager(nil, cfg.BridgeConfig(version), logger, metrics)
			cache := completion.NewCache(manager, cfg.CompletionConfig(), logger, metrics).Bind(manager)
			defer cache.Close()

			manager.OnDebugEvent(func(event string, _ json.RawMessage) {
				logger.Info("debug event", "event", event)
			})

			var status *statusd.Server
			if cfg.Status.Addr != "" {
				status = statusd.New(cfg.Status.Addr, manager, logger)
				go func() {
					if err := status.Start(); err != nil {
						logger.Error("status server failed", "error", err)
					}
				}()
			}

			if err := manager.Connect(cmd.Context(), desc); err != nil {
				return err
			}
			fmt.Printf("Connected to %s (project %q)\n", desc.Address(), manager.Peer().Project)

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			<-stop

			manager.Disconnect()
			if status != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				status.Shutdown(ctx)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&descriptorPath, "descriptor", "d", "", "Path to the Designer descriptor file (required)")
	cmd.Flags().StringVarP(&configDir, "config", "c", "", "Directory containing studiobridge.json")
	cmd.MarkFlagRequired("descriptor")

	return cmd
}

func loadConfig(dir string) (*config.Config, error) {
	if dir != "" {
		return config.Load(dir)
	}
	return config.LoadFromWorkingDir()
}

func newLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel(),
	}))
}
