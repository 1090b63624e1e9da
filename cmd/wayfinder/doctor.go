// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sys/unix"

	"github.com/sigil-dev/wayfinder/internal/config"
	"github.com/sigil-dev/wayfinder/internal/provider"
	"github.com/sigil-dev/wayfinder/internal/store"
)

// doctorHTTPClient is used for provider key and oracle checks.
var doctorHTTPClient = &http.Client{Timeout: 10 * time.Second}

type doctorCheck struct {
	name string
	fn   func() string
}

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics",
		Long:  "Check the config, provider API keys, oracle reachability, the seed document and disk space.",
		RunE:  runDoctor,
	}

	cmd.Flags().Bool("offline", false, "skip checks that call provider or oracle endpoints")

	return cmd
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	offline, _ := cmd.Flags().GetBool("offline")
	ctx := cmd.Context()

	cfg, cfgErr := loadConfig()

	checks := []doctorCheck{
		{"Binary", checkBinary},
		{"Platform", checkPlatform},
		{"Config", func() string { return checkConfig(cfgErr) }},
	}
	if cfg != nil {
		checks = append(checks,
			doctorCheck{"Search", func() string { return checkSearchReady(cfg) }},
			doctorCheck{"Seed", func() string { return checkSeed(cfg) }},
			doctorCheck{"Run Journal", func() string { return checkJournal(ctx, cfg.Storage) }},
		)
		if offline {
			checks = append(checks, doctorCheck{"Network", func() string { return "skipped (--offline)" }})
		} else {
			checks = append(checks, doctorCheck{"Oracle", func() string { return checkOracle(ctx, cfg) }})
			checks = append(checks, providerChecks(ctx, cfg)...)
		}
		checks = append(checks, doctorCheck{"Disk Space", func() string { return checkDiskSpace(cfg.Seed.Path) }})
	}

	for _, c := range checks {
		if _, err := fmt.Fprintf(w, "%-20s %s\n", c.name+":", c.fn()); err != nil {
			return err
		}
	}

	return nil
}

func checkBinary() string {
	return fmt.Sprintf("wayfinder %s (%s/%s)", version, runtime.GOOS, runtime.GOARCH)
}

func checkPlatform() string {
	return fmt.Sprintf("%s/%s, Go %s", runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func checkConfig(loadErr error) string {
	if loadErr != nil {
		return fmt.Sprintf("invalid: %s", loadErr)
	}
	if cfgFile := viper.ConfigFileUsed(); cfgFile != "" {
		if perm, exposed := config.ExposedPermissions(cfgFile); exposed {
			return fmt.Sprintf("loaded from %s (warning: mode %s is readable by other users, run chmod 600)", cfgFile, perm)
		}
		return fmt.Sprintf("loaded from %s", cfgFile)
	}
	return "using defaults (no config file found)"
}

func checkSearchReady(cfg *config.Config) string {
	if err := cfg.CheckSearchReady(); err != nil {
		return fmt.Sprintf("not ready: %s", err)
	}
	return fmt.Sprintf("ready, target %s, planner %s", cfg.Search.Target, cfg.Models.Planner)
}

func checkSeed(cfg *config.Config) string {
	if cfg.Seed.Path != "" {
		if info, err := os.Stat(cfg.Seed.Path); err == nil {
			return fmt.Sprintf("%s (%s)", cfg.Seed.Path, formatBytes(uint64(info.Size())))
		}
	}
	if cfg.Seed.URL != "" {
		return fmt.Sprintf("will fetch from %s", cfg.Seed.URL)
	}
	return fmt.Sprintf("missing: %s does not exist and seed.url is unset", cfg.Seed.Path)
}

func checkJournal(ctx context.Context, sc config.StorageConfig) string {
	switch sc.Backend {
	case store.BackendNone:
		return "disabled"
	case store.BackendMemory:
		return "in memory (not kept between runs)"
	}

	path := journalPath(sc)
	runs, err := openJournal(sc)
	if err != nil {
		return fmt.Sprintf("error: %s", err)
	}
	defer func() { _ = runs.Close() }()

	latest, err := runs.List(ctx, store.RunFilter{Limit: 1})
	if err != nil {
		return fmt.Sprintf("error: %s", err)
	}
	if len(latest) == 0 {
		return fmt.Sprintf("%s (empty)", path)
	}
	return fmt.Sprintf("%s (last run %s)", path, latest[0].StartedAt.Local().Format(time.DateTime))
}

// checkOracle only confirms the endpoints answer HTTP; any status counts,
// since a real query would spend oracle quota.
func checkOracle(ctx context.Context, cfg *config.Config) string {
	urls := []string{cfg.Oracle.PlacesURL, cfg.Oracle.PeopleURL}
	for _, u := range urls {
		if u == "" {
			return "not configured"
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, u, nil)
		if err != nil {
			return fmt.Sprintf("error: %s", err)
		}
		resp, err := doctorHTTPClient.Do(req)
		if err != nil {
			return fmt.Sprintf("unreachable: %s", err)
		}
		_ = resp.Body.Close()
	}
	return "reachable"
}

func providerChecks(ctx context.Context, cfg *config.Config) []doctorCheck {
	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) == 0 {
		return []doctorCheck{{"Providers", func() string { return "none configured" }}}
	}

	checks := make([]doctorCheck, 0, len(names))
	for _, name := range names {
		pc := cfg.Providers[name]
		checks = append(checks, doctorCheck{
			name: "Provider " + name,
			fn:   func() string { return checkProviderKey(ctx, name, pc) },
		})
	}
	return checks
}

func checkProviderKey(ctx context.Context, name string, pc config.ProviderConfig) string {
	if pc.APIKey == "" {
		return "no api_key set"
	}
	if err := provider.ValidateKey(ctx, doctorHTTPClient, provider.ProviderName(name), pc.APIKey, pc.Endpoint); err != nil {
		return fmt.Sprintf("error: %s", err)
	}
	return "key valid"
}

func checkDiskSpace(seedPath string) string {
	path := filepath.Dir(seedPath)
	if _, err := os.Stat(path); err != nil {
		path, _ = os.UserHomeDir()
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return fmt.Sprintf("unable to check: %s", err)
	}

	availBytes := stat.Bavail * uint64(stat.Bsize)
	return formatBytes(availBytes) + " available"
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(b uint64) string {
	const (
		gb = 1024 * 1024 * 1024
		mb = 1024 * 1024
		kb = 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%d bytes", b)
	}
}
