// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package store keeps a journal of finished searches. Only the run summary
// is recorded; relation graphs stay in memory and die with the run.
package store

import (
	"context"
	"strings"
	"time"

	wferr "github.com/sigil-dev/wayfinder/pkg/errors"
)

// Outcome classifies how a run ended.
type Outcome string

const (
	OutcomeFound     Outcome = "found"
	OutcomeExhausted Outcome = "exhausted"
	OutcomeFailed    Outcome = "failed"
)

// Valid reports whether o is one of the known outcomes.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeFound, OutcomeExhausted, OutcomeFailed:
		return true
	}
	return false
}

// Run is one journal entry.
type Run struct {
	ID        string  `json:"id"`
	Target    string  `json:"target"`
	Outcome   Outcome `json:"outcome"`
	Answer    string  `json:"answer,omitempty"`
	Rounds    int     `json:"rounds"`
	GraphSize int     `json:"graph_size"`
	Visited   int     `json:"visited"`
	// SubmitStatus is the grading endpoint's HTTP status, zero when the
	// answer was not submitted.
	SubmitStatus int       `json:"submit_status,omitempty"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// Duration is the wall time the run took.
func (r *Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Validate checks the fields every backend relies on.
func (r *Run) Validate() error {
	if r == nil {
		return wferr.New(wferr.CodeStoreRunInvalidInput, "run must not be nil")
	}
	if strings.TrimSpace(r.ID) == "" {
		return wferr.New(wferr.CodeStoreRunInvalidInput, "run id must not be empty")
	}
	if strings.TrimSpace(r.Target) == "" {
		return wferr.New(wferr.CodeStoreRunInvalidInput, "run target must not be empty", wferr.FieldRunID(r.ID))
	}
	if !r.Outcome.Valid() {
		return wferr.Errorf(wferr.CodeStoreRunInvalidInput, "run %s: unknown outcome %q", r.ID, r.Outcome)
	}
	if r.StartedAt.IsZero() {
		return wferr.New(wferr.CodeStoreRunInvalidInput, "run start time must be set", wferr.FieldRunID(r.ID))
	}
	if r.FinishedAt.Before(r.StartedAt) {
		return wferr.New(wferr.CodeStoreRunInvalidInput, "run finished before it started", wferr.FieldRunID(r.ID))
	}
	return nil
}

// DefaultListLimit caps List when the filter sets no limit.
const DefaultListLimit = 100

// RunFilter narrows List. Zero fields match everything.
type RunFilter struct {
	Target  string
	Outcome Outcome
	From    time.Time // inclusive, on StartedAt
	To      time.Time // exclusive, on StartedAt
	Limit   int
	Offset  int
}

// RunStore persists run summaries.
type RunStore interface {
	// Append records a run. IDs are unique; appending an existing ID fails.
	Append(ctx context.Context, run *Run) error
	// Get returns the run with id or a not_found error.
	Get(ctx context.Context, id string) (*Run, error)
	// List returns matching runs, newest first.
	List(ctx context.Context, filter RunFilter) ([]*Run, error)
	Close() error
}
