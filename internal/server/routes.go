// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sigil-dev/wayfinder/internal/search"
	"github.com/sigil-dev/wayfinder/internal/store"
	wferr "github.com/sigil-dev/wayfinder/pkg/errors"
	"github.com/sigil-dev/wayfinder/pkg/health"
)

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "run-search",
		Method:        http.MethodPost,
		Path:          "/api/v1/search",
		Summary:       "Run a search",
		Description:   "Loads the seed document, searches for the target and optionally submits the answer.",
		Tags:          []string{"search"},
		DefaultStatus: http.StatusOK,
	}, s.handleSearch)

	if s.services.Providers() != nil {
		huma.Register(s.api, huma.Operation{
			OperationID: "list-providers",
			Method:      http.MethodGet,
			Path:        "/api/v1/providers",
			Summary:     "LLM provider health",
			Tags:        []string{"system"},
		}, s.handleProviders)
	}

	if s.services.Oracle() != nil {
		huma.Register(s.api, huma.Operation{
			OperationID: "oracle-health",
			Method:      http.MethodGet,
			Path:        "/api/v1/oracle",
			Summary:     "Oracle endpoint health",
			Description: "Circuit breaker state and failure counts for the places and people endpoints.",
			Tags:        []string{"system"},
		}, s.handleOracle)
	}

	if s.services.Runs() != nil {
		huma.Register(s.api, huma.Operation{
			OperationID: "list-runs",
			Method:      http.MethodGet,
			Path:        "/api/v1/runs",
			Summary:     "List recorded runs",
			Description: "Returns journal entries for finished searches, newest first.",
			Tags:        []string{"runs"},
		}, s.handleListRuns)

		huma.Register(s.api, huma.Operation{
			OperationID: "get-run",
			Method:      http.MethodGet,
			Path:        "/api/v1/runs/{id}",
			Summary:     "Get a recorded run",
			Tags:        []string{"runs"},
		}, s.handleGetRun)
	}
}

// --- Request/Response types for huma ---

type searchInput struct {
	Body struct {
		Target string `json:"target,omitempty" example:"BARBARA" doc:"Entity to locate; empty uses the configured default"`
		Submit bool   `json:"submit,omitempty" doc:"Submit the answer to the grading endpoint"`
	}
}

type searchOutput struct {
	Body search.Result
}

type providersOutput struct {
	Body struct {
		Providers []health.Report `json:"providers"`
	}
}

type oracleOutput struct {
	Body struct {
		Endpoints []health.Report `json:"endpoints"`
	}
}

type listRunsInput struct {
	Target  string `query:"target" doc:"Only runs for this target"`
	Outcome string `query:"outcome" enum:"found,exhausted,failed" doc:"Only runs with this outcome"`
	Limit   int    `query:"limit" minimum:"0" maximum:"1000" default:"20" doc:"Maximum runs returned"`
	Offset  int    `query:"offset" minimum:"0" doc:"Runs to skip"`
}

type listRunsOutput struct {
	Body struct {
		Runs []*store.Run `json:"runs"`
	}
}

type getRunInput struct {
	ID string `path:"id" doc:"Run ID"`
}

type getRunOutput struct {
	Body *store.Run
}

func (s *Server) handleSearch(ctx context.Context, in *searchInput) (*searchOutput, error) {
	res, err := s.services.Search().Run(ctx, search.Request{
		Target: in.Body.Target,
		Submit: in.Body.Submit,
	})
	if err != nil {
		return nil, toHumaError("search failed", err)
	}
	return &searchOutput{Body: res}, nil
}

func (s *Server) handleProviders(ctx context.Context, _ *struct{}) (*providersOutput, error) {
	out := &providersOutput{}
	out.Body.Providers = health.Sorted(s.services.Providers().Health(ctx))
	return out, nil
}

func (s *Server) handleOracle(_ context.Context, _ *struct{}) (*oracleOutput, error) {
	out := &oracleOutput{}
	out.Body.Endpoints = health.Sorted(s.services.Oracle().Health())
	return out, nil
}

func (s *Server) handleListRuns(ctx context.Context, in *listRunsInput) (*listRunsOutput, error) {
	runs, err := s.services.Runs().List(ctx, store.RunFilter{
		Target:  in.Target,
		Outcome: store.Outcome(in.Outcome),
		Limit:   in.Limit,
		Offset:  in.Offset,
	})
	if err != nil {
		return nil, toHumaError("listing runs failed", err)
	}

	out := &listRunsOutput{}
	out.Body.Runs = runs
	if out.Body.Runs == nil {
		out.Body.Runs = []*store.Run{}
	}
	return out, nil
}

func (s *Server) handleGetRun(ctx context.Context, in *getRunInput) (*getRunOutput, error) {
	run, err := s.services.Runs().Get(ctx, in.ID)
	if err != nil {
		return nil, toHumaError("run lookup failed", err)
	}
	return &getRunOutput{Body: run}, nil
}

// toHumaError maps a coded error to its HTTP status.
func toHumaError(msg string, err error) error {
	if errors.Is(err, context.Canceled) {
		return huma.NewError(499, "request cancelled")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return huma.Error504GatewayTimeout(msg, err)
	}

	status := wferr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error(msg, "code", wferr.CodeOf(err), "error", err)
	}
	return huma.NewError(status, msg, err)
}
