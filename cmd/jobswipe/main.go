// Package main is the jobswipe command line client.
//
// Watch notifications (and optionally one chat room), serving the gRPC
// status service and /metrics while running:
//
//	jobswipe watch --room 7
//
// Re-send decisions and read marks the server never confirmed:
//
//	jobswipe replay
//
// Configuration comes from the environment, see internal/config.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oggyb/jobswipe/internal/logger"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		logger.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "jobswipe",
		Short: "Headless JobSwipe client",
		Long: `Headless JobSwipe client.

Keeps the live notification and chat channels of the signed-in user open,
mirrors the unread badge to Redis and keeps unconfirmed actions in a local
outbox.`,
		Version:      fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildWatchCmd(),
		buildReplayCmd(),
		buildStatusCmd(),
	)
	return rootCmd
}
