// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Command openapi-gen writes the OpenAPI document huma derives from the
// server's route types.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sigil-dev/wayfinder/internal/search"
	"github.com/sigil-dev/wayfinder/internal/server"
	"github.com/sigil-dev/wayfinder/internal/store"
	wferr "github.com/sigil-dev/wayfinder/pkg/errors"
	"github.com/sigil-dev/wayfinder/pkg/health"
)

func main() {
	spec, err := generateSpec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	outPath := "api/openapi/wayfinder.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI document written to %s\n", outPath)
}

// generateSpec registers every route against stub services and marshals
// the resulting OpenAPI document. Handlers are never invoked.
func generateSpec() ([]byte, error) {
	svc, err := server.NewServices(stubSearch{}, stubProviders{}, store.NewMemoryStore())
	if err != nil {
		return nil, err
	}
	svc.WithOracle(stubOracle{})

	srv, err := server.New(server.Config{
		ListenAddr: "127.0.0.1:0",
		Services:   svc,
	})
	if err != nil {
		return nil, wferr.Errorf(wferr.CodeCLISetupFailure, "creating server: %w", err)
	}
	defer func() { _ = srv.Close() }()

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}

type stubSearch struct{}

func (stubSearch) Run(context.Context, search.Request) (search.Result, error) {
	return search.Result{}, nil
}

type stubProviders struct{}

func (stubProviders) Health(context.Context) map[string]health.Metrics { return nil }

type stubOracle struct{}

func (stubOracle) Health() map[string]health.Metrics { return nil }
