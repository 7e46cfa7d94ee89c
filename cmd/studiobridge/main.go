package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "studiobridge",
		Short: "Bridge an editor to a running Designer instance",
		Long: `StudioBridge connects an editor to a running Designer over its
advertised loopback WebSocket port and speaks the Designer's JSON-RPC
protocol: script execution, project scans, resource listings, completion
lookups and debug-session events.

A running Designer writes a descriptor file (address, shared secret,
project metadata); point studiobridge at it and go.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		connectCmd(),
		pingCmd(),
		execCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
