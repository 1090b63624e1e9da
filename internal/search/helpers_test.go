// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package search_test

import (
	"context"
	"sync"
	"time"

	"github.com/sigil-dev/wayfinder/internal/graph"
	"github.com/sigil-dev/wayfinder/internal/normalize"
	"github.com/sigil-dev/wayfinder/internal/planner"
)

// fakeOracle answers from a script keyed by query form. Each key's answers
// are consumed in order and the last one repeats. Unscripted names are unknown.
type fakeOracle struct {
	mu      sync.Mutex
	answers map[string][]graph.Association
	calls   map[string]int
	delay   time.Duration

	inFlight    int
	maxInFlight int
}

func newFakeOracle(answers map[string]string) *fakeOracle {
	o := &fakeOracle{answers: map[string][]graph.Association{}, calls: map[string]int{}}
	for k, v := range answers {
		o.answers[k] = []graph.Association{graph.Known(v)}
	}
	return o
}

func (o *fakeOracle) script(query string, seq ...graph.Association) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.answers[query] = seq
}

func (o *fakeOracle) Lookup(ctx context.Context, _ graph.Kind, name string) graph.Association {
	q := normalize.Query(name)

	o.mu.Lock()
	o.calls[q]++
	n := o.calls[q]
	o.inFlight++
	if o.inFlight > o.maxInFlight {
		o.maxInFlight = o.inFlight
	}
	seq := o.answers[q]
	delay := o.delay
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.inFlight--
		o.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return graph.Unknown
		}
	}
	if len(seq) == 0 {
		return graph.Unknown
	}
	if n > len(seq) {
		return seq[len(seq)-1]
	}
	return seq[n-1]
}

func (o *fakeOracle) callsFor(query string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls[query]
}

type planReply struct {
	candidates planner.Candidates
	err        error
}

// scriptedPlanner returns the seed reply, then plan replies in order.
// Once the script runs out it proposes nothing.
type scriptedPlanner struct {
	mu       sync.Mutex
	seed     planner.Candidates
	seedErr  error
	plans    []planReply
	requests []planner.PlanRequest
}

func (p *scriptedPlanner) ExtractSeed(_ context.Context, _ string) (planner.Candidates, error) {
	return p.seed, p.seedErr
}

func (p *scriptedPlanner) Plan(ctx context.Context, req planner.PlanRequest) (planner.Candidates, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, req)
	if err := ctx.Err(); err != nil {
		return planner.Candidates{}, err
	}
	if len(p.plans) == 0 {
		return planner.Candidates{}, nil
	}
	r := p.plans[0]
	p.plans = p.plans[1:]
	return r.candidates, r.err
}

func (p *scriptedPlanner) planCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func cities(names ...string) planReply {
	return planReply{candidates: planner.Candidates{Cities: names, People: []string{}}}
}

type searchObservation struct {
	found  bool
	rounds int
}

type recordingRecorder struct {
	mu       sync.Mutex
	searches []searchObservation
}

func (r *recordingRecorder) ObserveLookup(string, string, time.Duration) {}
func (r *recordingRecorder) ObservePlan(string, bool, time.Duration)     {}
func (r *recordingRecorder) SetBreakerState(string, string)              {}

func (r *recordingRecorder) ObserveSearch(found bool, rounds int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.searches = append(r.searches, searchObservation{found: found, rounds: rounds})
}
