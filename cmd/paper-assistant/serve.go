// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/paper-assistant/internal/scheduler"
	"github.com/pdiddy/paper-assistant/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Serve exposes the paper lifecycle over HTTP: listing and filtering,
catalog fetch, processing, explanation, full-text search, and streaming
chat. When the scheduler is enabled, a daily job fetches and processes
the configured categories.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("host", "", "listen host (default 0.0.0.0)")
	serveCmd.Flags().Int("port", 0, "listen port (default 8000)")
	serveCmd.Flags().Bool("debug", false, "enable debug logging and gin debug mode")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.log.Sync()

	if host, _ := cmd.Flags().GetString("host"); host != "" {
		a.cfg.Server.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		a.cfg.Server.Port = port
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		a.cfg.Server.Debug = true
	}

	idx, err := a.openIndex()
	if err != nil {
		return err
	}
	defer idx.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(a.pipe, idx, a.cfg.Scheduler, a.log)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	srv := server.New(a.pipe, idx, a.cfg.Server, a.log)
	if err := srv.Run(ctx); err != nil {
		a.log.Error("server exited", zap.Error(err))
		return err
	}
	return nil
}
