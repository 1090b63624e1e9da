// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"context"

	"github.com/sigil-dev/wayfinder/internal/search"
	"github.com/sigil-dev/wayfinder/internal/store"
	wferr "github.com/sigil-dev/wayfinder/pkg/errors"
	"github.com/sigil-dev/wayfinder/pkg/health"
)

// SearchService runs one search. *search.Service satisfies it.
type SearchService interface {
	Run(ctx context.Context, req search.Request) (search.Result, error)
}

// ProviderService reports LLM provider health. *provider.Registry
// satisfies it.
type ProviderService interface {
	Health(ctx context.Context) map[string]health.Metrics
}

// OracleService reports per-endpoint oracle health. *oracle.Client
// satisfies it.
type OracleService interface {
	Health() map[string]health.Metrics
}

// RunHistory reads the run journal. store.RunStore satisfies it.
type RunHistory interface {
	Get(ctx context.Context, id string) (*store.Run, error)
	List(ctx context.Context, filter store.RunFilter) ([]*store.Run, error)
}

// Services holds the dependencies injected into route handlers.
type Services struct {
	search    SearchService
	providers ProviderService // optional; nil hides /api/v1/providers
	runs      RunHistory      // optional; nil hides /api/v1/runs
	oracle    OracleService   // optional; nil hides /api/v1/oracle
}

// NewServices validates and bundles the route dependencies.
func NewServices(s SearchService, providers ProviderService, runs RunHistory) (*Services, error) {
	if s == nil {
		return nil, wferr.New(wferr.CodeServerConfigInvalid, "search service is required")
	}
	return &Services{search: s, providers: providers, runs: runs}, nil
}

// WithOracle attaches the oracle health reporter.
func (s *Services) WithOracle(o OracleService) *Services {
	s.oracle = o
	return s
}

// Search returns the search service.
func (s *Services) Search() SearchService { return s.search }

// Providers returns the provider health service, or nil.
func (s *Services) Providers() ProviderService { return s.providers }

// Runs returns the run journal reader, or nil.
func (s *Services) Runs() RunHistory { return s.runs }

// Oracle returns the oracle health reporter, or nil.
func (s *Services) Oracle() OracleService { return s.oracle }
