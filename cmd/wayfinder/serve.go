// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the search API over HTTP",
		Long:  "Wire all subsystems and serve POST /api/v1/search, provider health and Prometheus metrics until interrupted.",
		RunE:  runServe,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	_ = viper.BindPFlag("server.listen", cmd.Flags().Lookup("listen"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := WireApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	srv, err := app.NewServer()
	if err != nil {
		return err
	}
	defer func() { _ = srv.Close() }()

	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Serving wayfinder on %s\n", cfg.Server.Listen); err != nil {
		return err
	}
	slog.Info("server starting",
		"listen", cfg.Server.Listen,
		"providers", app.Providers.Names(),
		"metrics", app.Metrics != nil,
		"submit", cfg.Submit.Enabled,
	)
	return srv.Start(ctx)
}
