// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sigil-dev/wayfinder/internal/config"
	"github.com/sigil-dev/wayfinder/internal/store"
	wferr "github.com/sigil-dev/wayfinder/pkg/errors"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded searches",
		Long:  "Print the run journal, newest first. Only run summaries are kept; relation graphs are not stored.",
		Args:  cobra.NoArgs,
		RunE:  runListRuns,
	}

	cmd.Flags().String("target", "", "only runs for this target")
	cmd.Flags().String("outcome", "", "only runs with this outcome (found, exhausted, failed)")
	cmd.Flags().Int("limit", 20, "maximum runs listed")
	cmd.Flags().Bool("json", false, "print runs as JSON")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show one recorded search",
		Args:  cobra.ExactArgs(1),
		RunE:  runShowRun,
	})

	return cmd
}

// openJournalFromConfig opens the journal without wiring the rest of the
// app, so reading history needs no provider or oracle keys.
func openJournalFromConfig() (store.RunStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	runs, err := openJournal(cfg.Storage)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		return nil, wferr.New(wferr.CodeCLIInputInvalid, "run journal is disabled (storage.backend is none)")
	}
	return runs, nil
}

func runListRuns(cmd *cobra.Command, _ []string) error {
	outcome, _ := cmd.Flags().GetString("outcome")
	if outcome != "" && !store.Outcome(outcome).Valid() {
		return wferr.Errorf(wferr.CodeCLIInputInvalid, "unknown outcome %q: want found, exhausted or failed", outcome)
	}
	target, _ := cmd.Flags().GetString("target")
	limit, _ := cmd.Flags().GetInt("limit")

	journal, err := openJournalFromConfig()
	if err != nil {
		return err
	}
	defer func() { _ = journal.Close() }()

	runs, err := journal.List(cmd.Context(), store.RunFilter{
		Target:  target,
		Outcome: store.Outcome(outcome),
		Limit:   limit,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		if runs == nil {
			runs = []*store.Run{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}
	return printRuns(out, runs)
}

func runShowRun(cmd *cobra.Command, args []string) error {
	journal, err := openJournalFromConfig()
	if err != nil {
		return err
	}
	defer func() { _ = journal.Close() }()

	run, err := journal.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printRun(cmd.OutOrStdout(), run)
}

func printRuns(w io.Writer, runs []*store.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "STARTED\tTARGET\tOUTCOME\tANSWER\tROUNDS\tID")
	for _, r := range runs {
		answer := r.Answer
		if answer == "" {
			answer = "-"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			r.StartedAt.Local().Format(time.DateTime), r.Target, r.Outcome, answer, r.Rounds, r.ID)
	}
	return tw.Flush()
}

func printRun(w io.Writer, r *store.Run) error {
	lines := []string{
		fmt.Sprintf("Run:        %s", r.ID),
		fmt.Sprintf("Target:     %s", r.Target),
		fmt.Sprintf("Outcome:    %s", r.Outcome),
	}
	if r.Answer != "" {
		lines = append(lines, fmt.Sprintf("Answer:     %s", r.Answer))
	}
	lines = append(lines,
		fmt.Sprintf("Rounds:     %d", r.Rounds),
		fmt.Sprintf("Visited:    %d entities", r.Visited),
		fmt.Sprintf("Graph:      %d nodes", r.GraphSize),
		fmt.Sprintf("Started:    %s", r.StartedAt.Local().Format(time.RFC3339)),
		fmt.Sprintf("Duration:   %s", r.Duration().Round(time.Millisecond)),
	)
	if r.SubmitStatus != 0 {
		lines = append(lines, fmt.Sprintf("Submission: HTTP %d", r.SubmitStatus))
	}
	if r.Error != "" {
		lines = append(lines, fmt.Sprintf("Error:      %s", r.Error))
	}

	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}

// journalPath reports where the sqlite journal lives for cfg, for doctor.
func journalPath(sc config.StorageConfig) string {
	if sc.Path != "" {
		return sc.Path
	}
	p, err := config.DefaultJournalPath()
	if err != nil {
		return ""
	}
	return p
}
