// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sigil-dev/wayfinder/internal/store"
	wferr "github.com/sigil-dev/wayfinder/pkg/errors"
)

// SeedLoader fetches the seed document. *seed.Loader satisfies it.
type SeedLoader interface {
	Load(ctx context.Context) (string, error)
}

// Submitter sends an answer to the grading endpoint and returns its HTTP
// status and body. *submit.Client satisfies it.
type Submitter interface {
	Submit(ctx context.Context, answer string) (int, string, error)
}

// Journal records finished runs. store.RunStore satisfies it.
type Journal interface {
	Append(ctx context.Context, run *store.Run) error
}

// Submission reports what happened when the answer was sent.
type Submission struct {
	Status int    `json:"status,omitempty"`
	Body   string `json:"body,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Request is one end-to-end run.
type Request struct {
	// Target is the entity to locate; empty uses the service default.
	Target string
	// Submit sends the answer when a submitter is configured.
	Submit bool
}

// Service ties seed loading, the search loop and answer submission together.
type Service struct {
	seeds         SeedLoader
	searcher      *Searcher
	submitter     Submitter
	journal       Journal
	defaultTarget string
	now           func() time.Time
}

// ServiceConfig holds the Service collaborators. Submitter and Journal may
// be nil.
type ServiceConfig struct {
	Seeds         SeedLoader
	Searcher      *Searcher
	Submitter     Submitter
	Journal       Journal
	DefaultTarget string
}

// NewService validates the collaborators and returns a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Seeds == nil {
		return nil, wferr.New(wferr.CodeSearchInvalidInput, "service: seed loader is required")
	}
	if cfg.Searcher == nil {
		return nil, wferr.New(wferr.CodeSearchInvalidInput, "service: searcher is required")
	}
	return &Service{
		seeds:         cfg.Seeds,
		searcher:      cfg.Searcher,
		submitter:     cfg.Submitter,
		journal:       cfg.Journal,
		defaultTarget: cfg.DefaultTarget,
		now:           time.Now,
	}, nil
}

// DefaultTarget is the target used when a request leaves it empty.
func (s *Service) DefaultTarget() string { return s.defaultTarget }

// CanSubmit reports whether a submitter is configured.
func (s *Service) CanSubmit() bool { return s.submitter != nil }

// FindMissingPerson loads the seed, searches for target and submits the
// answer when a submitter is configured.
func (s *Service) FindMissingPerson(ctx context.Context, target string) (Result, error) {
	return s.Run(ctx, Request{Target: target, Submit: true})
}

// Run executes req. A failed submission is reported in Result.Submission
// and never turns a finished search into an error.
func (s *Service) Run(ctx context.Context, req Request) (Result, error) {
	target := strings.TrimSpace(req.Target)
	if target == "" {
		target = s.defaultTarget
	}
	if target == "" {
		return Result{}, wferr.New(wferr.CodeSearchInvalidInput, "no search target given and no default configured")
	}

	started := s.now()
	res, err := s.run(ctx, req, target)
	s.record(ctx, target, started, res, err)
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

func (s *Service) run(ctx context.Context, req Request, target string) (Result, error) {
	doc, err := s.seeds.Load(ctx)
	if err != nil {
		return Result{}, err
	}

	res, err := s.searcher.Search(ctx, doc, target)
	if err != nil {
		return Result{}, err
	}

	if req.Submit && s.submitter != nil {
		res.Submission = s.submit(ctx, res)
	}
	return res, nil
}

// record appends the run to the journal. Journal failures are logged and
// never change the run's outcome.
func (s *Service) record(ctx context.Context, target string, started time.Time, res Result, runErr error) {
	if s.journal == nil {
		return
	}

	run := &store.Run{
		ID:         res.RunID,
		Target:     target,
		Answer:     res.Answer,
		Rounds:     res.Rounds,
		GraphSize:  len(res.Graph),
		Visited:    len(res.Visited),
		StartedAt:  started,
		FinishedAt: s.now(),
	}
	switch {
	case runErr != nil:
		run.Outcome = store.OutcomeFailed
		run.Error = runErr.Error()
		if id, ok := wferr.FieldsOf(runErr)["run_id"].(string); ok {
			run.ID = id
		}
	case res.Found:
		run.Outcome = store.OutcomeFound
	default:
		run.Outcome = store.OutcomeExhausted
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if res.Submission != nil {
		run.SubmitStatus = res.Submission.Status
	}

	// The caller's context may already be cancelled; the entry should still land.
	if err := s.journal.Append(context.WithoutCancel(ctx), run); err != nil {
		slog.Warn("recording run failed", "run_id", run.ID, "error", err)
	}
}

func (s *Service) submit(ctx context.Context, res Result) *Submission {
	status, body, err := s.submitter.Submit(ctx, res.Answer)
	sub := &Submission{Status: status, Body: body}
	if err != nil {
		sub.Error = err.Error()
		slog.Warn("answer submission failed", "run_id", res.RunID, "answer", res.Answer, "error", err)
		return sub
	}
	slog.Info("answer submitted", "run_id", res.RunID, "answer", res.Answer, "status", status)
	return sub
}
