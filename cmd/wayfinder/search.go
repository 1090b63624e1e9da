// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sigil-dev/wayfinder/internal/planner"
	"github.com/sigil-dev/wayfinder/internal/search"
)

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search [target]",
		Short: "Run one search and print the answer",
		Long:  "Load the seed document, search for the target and, when submission is enabled, send the answer to the grading endpoint.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSearch,
	}

	cmd.Flags().String("target", "", "entity to locate (default from search.target)")
	cmd.Flags().String("seed-file", "", "path of the seed document")
	cmd.Flags().String("seed-url", "", "URL the seed document is fetched from")
	cmd.Flags().Bool("refresh", false, "fetch the seed document even when the file exists")
	cmd.Flags().Int("max-rounds", 0, "maximum planner rounds")
	cmd.Flags().Bool("no-submit", false, "do not submit the answer")
	cmd.Flags().Bool("json", false, "print the result as JSON")
	cmd.Flags().Bool("graph", false, "print the discovered relations")

	_ = viper.BindPFlag("search.target", cmd.Flags().Lookup("target"))
	_ = viper.BindPFlag("seed.path", cmd.Flags().Lookup("seed-file"))
	_ = viper.BindPFlag("seed.url", cmd.Flags().Lookup("seed-url"))
	_ = viper.BindPFlag("seed.refresh", cmd.Flags().Lookup("refresh"))
	_ = viper.BindPFlag("search.max_rounds", cmd.Flags().Lookup("max-rounds"))

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
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

	req := search.Request{Target: cfg.Search.Target}
	if len(args) == 1 {
		req.Target = args[0]
	}
	noSubmit, _ := cmd.Flags().GetBool("no-submit")
	req.Submit = !noSubmit

	res, err := app.Search.Run(ctx, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	showGraph, _ := cmd.Flags().GetBool("graph")
	return printResult(out, res, showGraph)
}

func printResult(w io.Writer, res search.Result, showGraph bool) error {
	var lines []string
	if res.Found {
		lines = append(lines, fmt.Sprintf("Answer:     %s (after %d planner rounds)", res.Answer, res.Rounds))
	} else {
		lines = append(lines, fmt.Sprintf("Answer:     not found after %d planner rounds", res.Rounds))
	}
	lines = append(lines,
		fmt.Sprintf("Visited:    %d entities", len(res.Visited)),
		fmt.Sprintf("Graph:      %d nodes", len(res.Graph)),
		fmt.Sprintf("Run:        %s", res.RunID),
	)
	if sub := res.Submission; sub != nil {
		if sub.Error != "" {
			lines = append(lines, fmt.Sprintf("Submission: failed: %s", sub.Error))
		} else {
			lines = append(lines, fmt.Sprintf("Submission: HTTP %d %s", sub.Status, sub.Body))
		}
	}

	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	if showGraph && len(res.Graph) > 0 {
		if _, err := fmt.Fprintf(w, "\n%s", planner.RenderRelations(res.Graph)); err != nil {
			return err
		}
	}
	return nil
}
