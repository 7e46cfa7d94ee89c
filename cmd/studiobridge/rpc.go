package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/studiobridge/studiobridge/pkg/bridge"
	"github.com/studiobridge/studiobridge/pkg/discovery"
)

// withConnection runs fn over a short-lived connection for one-shot
// commands. Automatic reconnection is disabled; there is nothing to keep
// alive afterwards.
func withConnection(ctx context.Context, descriptorPath, configDir string, fn func(ctx context.Context, m *bridge.Manager) error) error {
	cfg, err := loadConfig(configDir)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	desc, err := discovery.LoadDescriptor(descriptorPath)
	if err != nil {
		return err
	}

	bcfg := cfg.BridgeConfig(version)
	bcfg.ReconnectDelay = 0
	bcfg.HeartbeatInterval = 0

	manager := bridge.NewManager(nil, bcfg, logger, nil)
	if err := manager.Connect(ctx, desc); err != nil {
		return err
	}
	defer manager.Disconnect()

	return fn(ctx, manager)
}

func pingCmd() *cobra.Command {
	var (
		descriptorPath string
		configDir      string
	)

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Round-trip check against a running Designer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConnection(cmd.Context(), descriptorPath, configDir, func(ctx context.Context, m *bridge.Manager) error {
				start := time.Now()
				result, err := m.Ping(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("pong in %s (peer time %s)\n",
					time.Since(start).Round(time.Millisecond),
					time.UnixMilli(result.ServerTime).Format(time.RFC3339))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&descriptorPath, "descriptor", "d", "", "Path to the Designer descriptor file (required)")
	cmd.Flags().StringVarP(&configDir, "config", "c", "", "Directory containing studiobridge.json")
	cmd.MarkFlagRequired("descriptor")

	return cmd
}

func execCmd() *cobra.Command {
	var (
		descriptorPath string
		configDir      string
		scope          string
	)

	cmd := &cobra.Command{
		Use:   "exec <script>",
		Short: "Run a script in the Designer scripting scope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConnection(cmd.Context(), descriptorPath, configDir, func(ctx context.Context, m *bridge.Manager) error {
				result, err := m.ExecuteScript(ctx, args[0], scope)
				if err != nil {
					return err
				}
				fmt.Print(result.Output)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&descriptorPath, "descriptor", "d", "", "Path to the Designer descriptor file (required)")
	cmd.Flags().StringVarP(&configDir, "config", "c", "", "Directory containing studiobridge.json")
	cmd.Flags().StringVarP(&scope, "scope", "s", "", "Scripting scope to run in")
	cmd.MarkFlagRequired("descriptor")

	return cmd
}
