// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package search runs the iterative discovery loop: extract seed entities,
// expand them through the relation oracle, check the graph for the goal, and
// ask the planner where to look next.
package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sigil-dev/wayfinder/internal/graph"
	"github.com/sigil-dev/wayfinder/internal/metrics"
	"github.com/sigil-dev/wayfinder/internal/planner"
	wferr "github.com/sigil-dev/wayfinder/pkg/errors"
)

const (
	// DefaultMaxRounds bounds planner calls per search.
	DefaultMaxRounds = 10
	// DefaultConcurrency bounds parallel oracle lookups within one round.
	DefaultConcurrency = 4
)

// Oracle resolves an entity to its association. *oracle.Client satisfies it.
type Oracle interface {
	Lookup(ctx context.Context, kind graph.Kind, name string) graph.Association
}

// Planner extracts seed entities and proposes the next ones to query.
// *planner.Planner satisfies it.
type Planner interface {
	ExtractSeed(ctx context.Context, text string) (planner.Candidates, error)
	Plan(ctx context.Context, req planner.PlanRequest) (planner.Candidates, error)
}

// Config bounds the loop.
type Config struct {
	MaxRounds   int
	Concurrency int
}

// Result is the outcome of one search. Found is false when the round limit
// was reached without a goal; that is not an error.
type Result struct {
	Answer     string       `json:"answer"`
	Found      bool         `json:"found"`
	Rounds     int          `json:"rounds"`
	Graph      []graph.Node `json:"graph"`
	Visited    []string     `json:"visited"`
	RunID      string       `json:"run_id"`
	Submission *Submission  `json:"submission,omitempty"`
}

// Searcher holds only immutable collaborators, so concurrent searches on
// one Searcher each get their own state.
type Searcher struct {
	oracle  Oracle
	planner Planner
	cfg     Config
	rec     metrics.Recorder
	newID   func() string
}

// Option customizes a Searcher.
type Option func(*Searcher)

// WithRecorder installs a metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Searcher) { s.rec = metrics.OrNop(r) }
}

// NewSearcher returns a Searcher. Zero config values take the defaults.
func NewSearcher(o Oracle, p Planner, cfg Config, opts ...Option) (*Searcher, error) {
	if o == nil {
		return nil, wferr.New(wferr.CodeSearchInvalidInput, "searcher: oracle is required")
	}
	if p == nil {
		return nil, wferr.New(wferr.CodeSearchInvalidInput, "searcher: planner is required")
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}

	s := &Searcher{
		oracle:  o,
		planner: p,
		cfg:     cfg,
		rec:     metrics.Nop{},
		newID:   func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// state is owned by a single Search call.
type state struct {
	runID   string
	target  string
	seed    string
	graph   *graph.Graph
	visited *graph.Visited
	round   int
	notes   string
}

// Search runs SEED, then EXPAND, CHECK and PLAN until the goal is found or
// the round limit is reached.
func (s *Searcher) Search(ctx context.Context, seedText, target string) (Result, error) {
	if strings.TrimSpace(target) == "" {
		return Result{}, wferr.New(wferr.CodeSearchInvalidInput, "search target is required")
	}
	if strings.TrimSpace(seedText) == "" {
		return Result{}, wferr.New(wferr.CodeSearchInvalidInput, "seed document is empty")
	}

	start := time.Now()
	st := &state{
		runID:   s.newID(),
		target:  target,
		seed:    seedText,
		graph:   graph.New(),
		visited: graph.NewVisited(),
	}
	log := slog.With("run_id", st.runID, "target", target)
	log.Info("search started")

	res, err := s.run(ctx, st, log)
	if err != nil {
		log.Warn("search failed", "round", st.round, "error", err)
		return Result{}, wferr.With(err, wferr.FieldRunID(st.runID))
	}

	s.rec.ObserveSearch(res.Found, res.Rounds, time.Since(start))
	log.Info("search finished",
		"found", res.Found,
		"answer", res.Answer,
		"rounds", res.Rounds,
		"graph_size", len(res.Graph),
		"visited", len(res.Visited),
	)
	return res, nil
}

func (s *Searcher) run(ctx context.Context, st *state, log *slog.Logger) (Result, error) {
	// SEED: the seed entities are the origin and form the first frontier.
	seed, err := s.planner.ExtractSeed(ctx, st.seed)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, wferr.Wrap(err, wferr.CodeSearchSeedFailure, "extracting seed entities")
	}
	candidates := seed.Entities()
	if len(candidates) == 0 {
		return Result{}, wferr.New(wferr.CodeSearchSeedFailure, "seed document named no cities or people")
	}
	log.Info("seed extracted", "cities", len(seed.Cities), "people", len(seed.People))
	st.visited.MarkVisited(candidates...)
	st.notes = seed.Summary

	for {
		frontier := st.visited.Snapshot()

		// EXPAND
		upgraded, err := s.expand(ctx, st, candidates)
		if err != nil {
			return Result{}, err
		}
		if len(upgraded) > 0 {
			frontier = st.visited.SnapshotExcept(upgraded...)
		}

		// CHECK
		if answer, ok := FindAnswer(st.graph, frontier, st.target); ok {
			log.Info("goal found", "entity", answer.Name, "kind", answer.Kind, "round", st.round)
			return s.result(st, answer.Name, true), nil
		}

		// PLAN
		if st.round >= s.cfg.MaxRounds {
			log.Info("round limit reached", "rounds", st.round)
			return s.result(st, "", false), nil
		}
		next, err := s.planner.Plan(ctx, planner.PlanRequest{
			Question: st.target,
			Graph:    st.graph.Snapshot(),
			Visited:  st.visited.Names(),
			Document: st.seed,
			Notes:    st.notes,
		})
		st.round++
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return Result{}, ctx.Err()
		case wferr.HasCode(err, wferr.CodePlannerParseInvalid), wferr.HasCode(err, wferr.CodePlannerResponseEmpty):
			log.Warn("planner reply unusable, round consumed", "round", st.round, "error", err)
		default:
			// Provider outages degrade like unusable replies: the graph so
			// far is kept and the next round asks again.
			log.Warn("planner call failed, round consumed", "round", st.round, "error", err)
		}

		// MERGE
		candidates = next.Entities()
		if next.Summary != "" {
			st.notes = next.Summary
		}
		log.Debug("planner proposed", "round", st.round, "candidates", len(candidates))
	}
}

type lookup struct {
	entity graph.Entity
	assoc  graph.Association
	asked  bool
}

// expand queries every candidate whose graph entry is absent or unknown,
// merges the answers in candidate order and marks all candidates visited.
// Candidates whose lookup an open circuit breaker rejected are marked too,
// although nothing reached the oracle; their entry stays unknown, so a
// later proposal queries them again.
// It returns the candidates that were already visited and just gained a
// known association.
func (s *Searcher) expand(ctx context.Context, st *state, candidates []graph.Entity) ([]graph.Entity, error) {
	results := make([]lookup, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, c := range candidates {
		results[i].entity = c
		if assoc, ok := st.graph.Get(c); ok && assoc.Known {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i].assoc = s.oracle.Lookup(gctx, c.Kind, c.Name)
			results[i].asked = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var upgraded []graph.Entity
	for _, r := range results {
		if !r.asked {
			continue
		}
		wasVisited := st.visited.IsVisited(r.entity.Name)
		_, present := st.graph.Get(r.entity)
		if st.graph.Merge(r.entity, r.assoc) && present && wasVisited {
			upgraded = append(upgraded, r.entity)
		}
	}
	st.visited.MarkVisited(candidates...)
	return upgraded, nil
}

func (s *Searcher) result(st *state, answer string, found bool) Result {
	return Result{
		Answer:  answer,
		Found:   found,
		Rounds:  st.round,
		Graph:   st.graph.Snapshot(),
		Visited: st.visited.Names(),
		RunID:   st.runID,
	}
}
