package main

import (
	"fmt"
	"log/slog"

	"github.com/cwbudde/minuitgrad/internal/server"
	"github.com/cwbudde/minuitgrad/internal/store"
	"github.com/spf13/cobra"
)

var (
	serveAddr    string
	serveDataDir string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gradient-run monitor server",
	Long: `Starts an HTTP server that accepts gradient-evaluation runs against a
named objective, dispatches them through an mptm.Manager, and exposes
their status and progress over REST and SSE. There is no minimizer
behind it; a run is a (possibly repeated) Differentiate call, not an
optimization loop.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "HTTP listen address")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "./data", "Base directory for checkpoint storage")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	checkpointStore, err := store.NewFSStore(serveDataDir)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint store: %w", err)
	}

	srv := server.NewServer(serveAddr, checkpointStore)

	slog.Info("Starting monitor server", "addr", serveAddr, "data_dir", serveDataDir)
	return srv.Start()
}
