// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package planner asks an LLM which entities to query next and parses its
// YAML replies into typed candidates.
package planner

import (
	"context"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/sigil-dev/wayfinder/internal/graph"
	"github.com/sigil-dev/wayfinder/internal/metrics"
	"github.com/sigil-dev/wayfinder/internal/provider"
	wferr "github.com/sigil-dev/wayfinder/pkg/errors"
)

// Completer runs one chat completion. *provider.Registry satisfies it.
type Completer interface {
	Complete(ctx context.Context, req provider.ChatRequest) (provider.Completion, error)
}

// Config controls the model call and prompt templates.
type Config struct {
	// Model is a "provider/model" reference; empty uses the registry default.
	Model       string
	Temperature *float32
	MaxTokens   int
	// SeedPrompt and PlanPrompt override the built-in templates when set.
	SeedPrompt string
	PlanPrompt string
}

// PlanRequest carries what the planner sees in a round.
type PlanRequest struct {
	// Question names the entity being searched for.
	Question string
	Graph    []graph.Node
	Visited  []string
	// Document is the seed document, given as background.
	Document string
	// Notes is the summary the planner returned in the previous round.
	Notes string
}

// Planner is safe for concurrent use.
type Planner struct {
	llm  Completer
	cfg  Config
	rec  metrics.Recorder
	seed *template.Template
	plan *template.Template
}

// Option customizes a Planner.
type Option func(*Planner)

// WithRecorder installs a metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(p *Planner) { p.rec = metrics.OrNop(r) }
}

// New parses the prompt templates and returns a planner.
func New(llm Completer, cfg Config, opts ...Option) (*Planner, error) {
	if llm == nil {
		return nil, wferr.New(wferr.CodePlannerTemplateInvalid, "planner: completer is required")
	}
	if cfg.SeedPrompt == "" {
		cfg.SeedPrompt = DefaultSeedPrompt
	}
	if cfg.PlanPrompt == "" {
		cfg.PlanPrompt = DefaultPlanPrompt
	}

	seed, err := parseTemplate("seed", cfg.SeedPrompt)
	if err != nil {
		return nil, err
	}
	plan, err := parseTemplate("plan", cfg.PlanPrompt)
	if err != nil {
		return nil, err
	}

	p := &Planner{llm: llm, cfg: cfg, rec: metrics.Nop{}, seed: seed, plan: plan}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// ExtractSeed pulls the initial cities and people out of the seed document.
func (p *Planner) ExtractSeed(ctx context.Context, text string) (Candidates, error) {
	system, err := render(p.seed, SeedData{Document: text})
	if err != nil {
		return Candidates{}, err
	}
	return p.ask(ctx, "seed", system, "List the cities and people from the note.")
}

// Plan proposes the next entities to query given the graph so far.
func (p *Planner) Plan(ctx context.Context, req PlanRequest) (Candidates, error) {
	system, err := render(p.plan, PlanData{
		Question:  req.Question,
		Document:  req.Document,
		Relations: RenderRelations(req.Graph),
		Visited:   strings.Join(req.Visited, ", "),
		Notes:     req.Notes,
	})
	if err != nil {
		return Candidates{}, err
	}
	return p.ask(ctx, "plan", system, "Where is "+req.Question+"? Which cities and people should we check next?")
}

func (p *Planner) ask(ctx context.Context, op, system, user string) (Candidates, error) {
	start := time.Now()

	c, err := p.llm.Complete(ctx, provider.ChatRequest{
		Model:        p.cfg.Model,
		SystemPrompt: system,
		Messages:     []provider.Message{{Role: provider.MessageRoleUser, Content: user}},
		Options: provider.ChatOptions{
			Temperature: p.cfg.Temperature,
			MaxTokens:   p.cfg.MaxTokens,
		},
	})
	if err != nil {
		p.rec.ObservePlan(op, false, time.Since(start))
		if ctx.Err() != nil {
			return Candidates{}, ctx.Err()
		}
		return Candidates{}, wferr.Wrap(err, wferr.CodePlannerUpstreamFailure, "planner "+op+" call failed")
	}

	slog.Debug("planner reply",
		"op", op,
		"provider", c.Provider,
		"model", c.Model,
		"input_tokens", c.Usage.InputTokens,
		"output_tokens", c.Usage.OutputTokens,
		"reply", c.Text,
	)

	out, err := Parse(c.Text)
	p.rec.ObservePlan(op, err == nil, time.Since(start))
	return out, err
}
