// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"log/slog"
	"net/http"
	"sort"

	"github.com/sigil-dev/wayfinder/internal/config"
	"github.com/sigil-dev/wayfinder/internal/metrics"
	"github.com/sigil-dev/wayfinder/internal/oracle"
	"github.com/sigil-dev/wayfinder/internal/planner"
	"github.com/sigil-dev/wayfinder/internal/provider"
	anthropicprov "github.com/sigil-dev/wayfinder/internal/provider/anthropic"
	googleprov "github.com/sigil-dev/wayfinder/internal/provider/google"
	openaiprov "github.com/sigil-dev/wayfinder/internal/provider/openai"
	"github.com/sigil-dev/wayfinder/internal/search"
	"github.com/sigil-dev/wayfinder/internal/seed"
	"github.com/sigil-dev/wayfinder/internal/server"
	"github.com/sigil-dev/wayfinder/internal/store"
	_ "github.com/sigil-dev/wayfinder/internal/store/sqlite" // register sqlite backend
	"github.com/sigil-dev/wayfinder/internal/submit"
	wferr "github.com/sigil-dev/wayfinder/pkg/errors"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// App holds the wired subsystems.
type App struct {
	Config    *config.Config
	Providers *provider.Registry
	Oracle    *oracle.Client
	// Metrics is nil when metrics are disabled.
	Metrics *metrics.Prometheus
	Search  *search.Service
	// Runs is nil when storage.backend is "none".
	Runs store.RunStore
}

// wireHTTPClient is shared by the oracle, seed and submit clients. Tests
// point it at httptest servers.
var wireHTTPClient = http.DefaultClient

// WireApp builds every subsystem a search needs from cfg.
func WireApp(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.CheckSearchReady(); err != nil {
		return nil, err
	}

	app := &App{Config: cfg}
	var rec metrics.Recorder = metrics.Nop{}
	if cfg.Metrics.Enabled {
		app.Metrics = metrics.NewPrometheus()
		rec = app.Metrics
	}

	// 1. Provider registry with the planner model as default.
	reg := provider.NewRegistry()
	registerBuiltinProviders(ctx, cfg, reg)
	if len(reg.Names()) == 0 {
		return nil, wferr.New(wferr.CodeCLISetupFailure, "no LLM provider configured: set providers.<name>.api_key")
	}
	if err := reg.SetDefault(cfg.Models.Planner); err != nil {
		_ = reg.Close()
		return nil, wferr.Wrapf(err, wferr.CodeCLISetupFailure, "setting planner model: %s", cfg.Models.Planner)
	}
	if len(cfg.Models.Failover) > 0 {
		if err := reg.SetFailover(cfg.Models.Failover); err != nil {
			_ = reg.Close()
			return nil, wferr.Wrap(err, wferr.CodeCLISetupFailure, "setting failover chain")
		}
	}
	app.Providers = reg

	// 2. Planner.
	pl, err := newPlanner(cfg, reg, rec)
	if err != nil {
		_ = reg.Close()
		return nil, err
	}

	// 3. Oracle.
	oc, err := oracle.New(oracle.Config{
		APIKey:             cfg.Oracle.APIKey,
		PlacesURL:          cfg.Oracle.PlacesURL,
		PeopleURL:          cfg.Oracle.PeopleURL,
		Method:             cfg.Oracle.Method,
		Timeout:            cfg.Oracle.Timeout,
		RestrictedMarker:   cfg.Oracle.RestrictedMarker,
		BreakerMaxFailures: cfg.Oracle.Breaker.MaxFailures,
		BreakerCooldown:    cfg.Oracle.Breaker.Cooldown,
	}, oracle.WithHTTPClient(wireHTTPClient), oracle.WithRecorder(rec))
	if err != nil {
		_ = reg.Close()
		return nil, wferr.Wrap(err, wferr.CodeCLISetupFailure, "creating oracle client")
	}

	app.Oracle = oc

	// 4. Search loop, seed loader and optional submitter.
	searcher, err := search.NewSearcher(oc, pl, search.Config{
		MaxRounds:   cfg.Search.MaxRounds,
		Concurrency: cfg.Search.Concurrency,
	}, search.WithRecorder(rec))
	if err != nil {
		_ = reg.Close()
		return nil, err
	}

	seeds, err := seed.New(seed.Config{
		Path:    cfg.Seed.Path,
		URL:     cfg.Seed.URL,
		Refresh: cfg.Seed.Refresh,
		Timeout: cfg.Seed.Timeout,
	}, seed.WithHTTPClient(wireHTTPClient))
	if err != nil {
		_ = reg.Close()
		return nil, err
	}

	svcCfg := search.ServiceConfig{
		Seeds:         seeds,
		Searcher:      searcher,
		DefaultTarget: cfg.Search.Target,
	}
	if cfg.Submit.Enabled {
		sub, err := submit.New(submit.Config{
			URL:     cfg.Submit.URL,
			APIKey:  cfg.Submit.APIKey,
			Task:    cfg.Submit.Task,
			Timeout: cfg.Submit.Timeout,
		}, submit.WithHTTPClient(wireHTTPClient))
		if err != nil {
			_ = reg.Close()
			return nil, err
		}
		svcCfg.Submitter = sub
	}

	// 5. Run journal.
	runs, err := openJournal(cfg.Storage)
	if err != nil {
		_ = reg.Close()
		return nil, err
	}
	if runs != nil {
		app.Runs = runs
		svcCfg.Journal = runs
	}

	app.Search, err = search.NewService(svcCfg)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

// openJournal opens the configured run journal, or returns nil when it is
// disabled.
func openJournal(sc config.StorageConfig) (store.RunStore, error) {
	cfg := store.Config{Backend: sc.Backend, Path: sc.Path}
	if !cfg.Enabled() {
		return nil, nil
	}
	if cfg.Path == "" && cfg.Backend != store.BackendMemory {
		p, err := config.DefaultJournalPath()
		if err != nil {
			return nil, err
		}
		cfg.Path = p
	}

	runs, err := store.New(cfg)
	if err != nil {
		return nil, wferr.Wrap(err, wferr.CodeCLISetupFailure, "opening run journal")
	}
	slog.Debug("run journal opened", "backend", sc.Backend, "path", cfg.Path)
	return runs, nil
}

func newPlanner(cfg *config.Config, reg *provider.Registry, rec metrics.Recorder) (*planner.Planner, error) {
	seedPrompt, err := planner.LoadPrompt(cfg.Prompts.SeedFile, planner.DefaultSeedPrompt)
	if err != nil {
		return nil, err
	}
	planPrompt, err := planner.LoadPrompt(cfg.Prompts.PlanFile, planner.DefaultPlanPrompt)
	if err != nil {
		return nil, err
	}

	temp := float32(cfg.Models.Temperature)
	return planner.New(reg, planner.Config{
		Model:       cfg.Models.Planner,
		Temperature: &temp,
		MaxTokens:   cfg.Models.MaxTokens,
		SeedPrompt:  seedPrompt,
		PlanPrompt:  planPrompt,
	}, planner.WithRecorder(rec))
}

// NewServer wraps app in the HTTP API.
func (a *App) NewServer() (*server.Server, error) {
	var history server.RunHistory
	if a.Runs != nil {
		history = a.Runs
	}
	services, err := server.NewServices(a.Search, a.Providers, history)
	if err != nil {
		return nil, err
	}
	if a.Oracle != nil {
		services.WithOracle(a.Oracle)
	}

	cfg := server.Config{
		ListenAddr:  a.Config.Server.Listen,
		CORSOrigins: a.Config.Server.CORSOrigins,
		RateLimit: server.RateLimitConfig{
			RequestsPerSecond: a.Config.Server.RateLimitRPS,
			Burst:             a.Config.Server.RateLimitBurst,
		},
		Services: services,
		Version:  version,
	}
	if a.Metrics != nil {
		cfg.Metrics = a.Metrics.Handler()
	}
	return server.New(cfg)
}

// Close releases provider clients and the run journal.
func (a *App) Close() error {
	var errs []error
	if a.Providers != nil {
		if err := a.Providers.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Runs != nil {
		if err := a.Runs.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return wferr.Join(errs...)
}

// providerFactory builds a provider.Provider from a ProviderConfig.
type providerFactory func(context.Context, config.ProviderConfig) (provider.Provider, error)

// builtinProviderFactories maps provider names to their constructors.
// Declared as a variable so tests can inject fakes.
var builtinProviderFactories = map[string]providerFactory{
	"anthropic": func(_ context.Context, pc config.ProviderConfig) (provider.Provider, error) {
		return anthropicprov.New(anthropicprov.Config{APIKey: pc.APIKey, BaseURL: pc.Endpoint})
	},
	"google": func(ctx context.Context, pc config.ProviderConfig) (provider.Provider, error) {
		return googleprov.New(ctx, googleprov.Config{APIKey: pc.APIKey, BaseURL: pc.Endpoint})
	},
	"openai": func(_ context.Context, pc config.ProviderConfig) (provider.Provider, error) {
		return openaiprov.New(openaiprov.Config{APIKey: pc.APIKey, BaseURL: pc.Endpoint})
	},
	"openrouter": func(_ context.Context, pc config.ProviderConfig) (provider.Provider, error) {
		base := pc.Endpoint
		if base == "" {
			base = openRouterBaseURL
		}
		return openaiprov.New(openaiprov.Config{
			Name:    string(provider.ProviderOpenRouter),
			APIKey:  pc.APIKey,
			BaseURL: base,
		})
	},
}

// registerBuiltinProviders registers every configured provider with a
// matching built-in implementation. Unknown names and empty keys are
// logged and skipped.
func registerBuiltinProviders(ctx context.Context, cfg *config.Config, reg *provider.Registry) {
	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		pc := cfg.Providers[name]
		if pc.APIKey == "" {
			slog.Warn("skipping provider with empty API key", "provider", name)
			continue
		}
		factory, ok := builtinProviderFactories[name]
		if !ok {
			slog.Warn("unknown provider in config, skipping", "provider", name)
			continue
		}
		p, err := factory(ctx, pc)
		if err != nil {
			slog.Warn("failed to create provider", "provider", name, "error", err)
			continue
		}
		reg.Register(name, p)
		slog.Debug("registered provider", "provider", name)
	}
}
