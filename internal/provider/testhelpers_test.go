// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package provider_test

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sigil-dev/wayfinder/internal/provider"
	"github.com/sigil-dev/wayfinder/pkg/health"
)

// scriptedProvider replays a fixed reply or error and counts calls.
type scriptedProvider struct {
	name      string
	reply     string
	err       string
	available bool
	calls     atomic.Int32
	lastModel atomic.Value
	tracker   *provider.HealthTracker
}

func newScripted(name, reply string) *scriptedProvider {
	tr, _ := provider.NewHealthTracker(time.Minute)
	return &scriptedProvider{name: name, reply: reply, available: true, tracker: tr}
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Available(context.Context) bool {
	return p.available && p.tracker.IsHealthy()
}

func (p *scriptedProvider) Chat(_ context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	p.calls.Add(1)
	p.lastModel.Store(req.Model)

	ch := make(chan provider.ChatEvent, 4)
	if p.err != "" {
		ch <- provider.ChatEvent{Type: provider.EventTypeError, Error: p.err}
		close(ch)
		return ch, nil
	}
	half := len(p.reply) / 2
	ch <- provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: p.reply[:half]}
	ch <- provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: p.reply[half:]}
	ch <- provider.ChatEvent{Type: provider.EventTypeUsage, Usage: &provider.Usage{InputTokens: 10, OutputTokens: 5}}
	ch <- provider.ChatEvent{Type: provider.EventTypeDone}
	close(ch)
	return ch, nil
}

func (p *scriptedProvider) Close() error { return nil }

func (p *scriptedProvider) HealthMetrics() health.Metrics { return p.tracker.HealthMetrics() }
func (p *scriptedProvider) RecordSuccess()                { p.tracker.RecordSuccess() }
func (p *scriptedProvider) RecordFailure()                { p.tracker.RecordFailure() }
