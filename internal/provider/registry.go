// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package provider

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"

	wferr "github.com/sigil-dev/wayfinder/pkg/errors"
	"github.com/sigil-dev/wayfinder/pkg/health"
)

// Registry manages provider registration and routes "provider/model"
// references with an ordered failover chain.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	names     []string

	defaultRef string   // "provider/model"
	failover   []string // ordered "provider/model" refs
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider under name, replacing any previous one.
func (r *Registry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[name]; !ok {
		r.names = append(r.names, name)
	}
	r.providers[name] = p
}

// Get retrieves a provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, wferr.New(wferr.CodeProviderNotFound, "provider not found: "+name, wferr.FieldProvider(name))
	}
	return p, nil
}

// Names returns registered provider names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.names)
}

// SetDefault sets the "provider/model" reference used when a request names
// no model.
func (r *Registry) SetDefault(ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkRefLocked(ref); err != nil {
		return err
	}
	r.defaultRef = ref
	return nil
}

// SetFailover sets the ordered failover chain.
func (r *Registry) SetFailover(chain []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ref := range chain {
		if err := r.checkRefLocked(ref); err != nil {
			return err
		}
	}
	r.failover = slices.Clone(chain)
	return nil
}

// MaxAttempts is the primary plus every failover entry.
func (r *Registry) MaxAttempts() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return 1 + len(r.failover)
}

// Route picks a provider for modelRef ("provider/model", or empty for the
// default), skipping providers named in exclude and unhealthy ones.
func (r *Registry) Route(ctx context.Context, modelRef string, exclude []string) (Provider, string, error) {
	_, p, model, err := r.route(ctx, modelRef, exclude)
	return p, model, err
}

func (r *Registry) route(ctx context.Context, modelRef string, exclude []string) (string, Provider, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ref, err := r.resolveRef(modelRef)
	if err != nil {
		return "", nil, "", err
	}

	for _, candidate := range append([]string{ref}, r.failover...) {
		name, _ := parseRef(candidate)
		if slices.Contains(exclude, name) {
			continue
		}
		p, model, err := r.tryRef(ctx, candidate)
		if err == nil {
			return name, p, model, nil
		}
	}

	return "", nil, "", wferr.New(wferr.CodeProviderAllUnavailable, "all providers unavailable: no healthy provider found")
}

// Complete routes req, drains the stream, and on failure walks the failover
// chain. Providers implementing HealthReporter get their health updated.
func (r *Registry) Complete(ctx context.Context, req ChatRequest) (Completion, error) {
	var (
		exclude []string
		lastErr error
	)
	for range r.MaxAttempts() {
		name, p, model, err := r.route(ctx, req.Model, exclude)
		if err != nil {
			if lastErr != nil {
				return Completion{}, wferr.Wrap(lastErr, wferr.CodeProviderAllUnavailable, "all providers failed")
			}
			return Completion{}, err
		}

		attempt := req
		attempt.Model = model
		c, err := chat(ctx, p, attempt)
		hr, tracked := p.(HealthReporter)
		if err == nil {
			if tracked {
				hr.RecordSuccess()
			}
			c.Provider = name
			c.Model = model
			return c, nil
		}
		if ctx.Err() != nil {
			return Completion{}, ctx.Err()
		}

		if tracked {
			hr.RecordFailure()
		}
		slog.Warn("provider chat failed, trying failover",
			"provider", name,
			"model", model,
			"error", err,
		)
		lastErr = err
		exclude = append(exclude, name)
	}
	return Completion{}, wferr.Wrap(lastErr, wferr.CodeProviderAllUnavailable, "all providers failed")
}

func chat(ctx context.Context, p Provider, req ChatRequest) (Completion, error) {
	events, err := p.Chat(ctx, req)
	if err != nil {
		return Completion{}, err
	}
	return Drain(ctx, events)
}

// Health reports per-provider health. Providers without a tracker report
// only availability.
func (r *Registry) Health(ctx context.Context) map[string]health.Metrics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]health.Metrics, len(r.providers))
	for name, p := range r.providers {
		if hr, ok := p.(HealthReporter); ok {
			out[name] = hr.HealthMetrics()
			continue
		}
		out[name] = health.Metrics{Available: p.Available(ctx)}
	}
	return out
}

// Close shuts down all registered providers.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, p := range r.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return wferr.Join(errs...)
	}
	return nil
}

// caller holds r.mu
func (r *Registry) checkRefLocked(ref string) error {
	name, model := parseRef(ref)
	if model == "" {
		return wferr.Errorf(wferr.CodeProviderInvalidModelRef, "model reference %q must use provider/model format", ref)
	}
	if _, ok := r.providers[name]; !ok {
		return wferr.New(wferr.CodeProviderNotFound, "provider not registered: "+name, wferr.FieldProvider(name))
	}
	return nil
}

// caller holds r.mu
func (r *Registry) resolveRef(modelRef string) (string, error) {
	if modelRef != "" && modelRef != "default" {
		if !strings.Contains(modelRef, "/") {
			return "", wferr.Errorf(wferr.CodeProviderInvalidModelRef, "model name %q must use provider/model format", modelRef)
		}
		return modelRef, nil
	}
	if r.defaultRef == "" {
		return "", wferr.New(wferr.CodeProviderNoDefault, "no default provider configured")
	}
	return r.defaultRef, nil
}

// caller holds r.mu
func (r *Registry) tryRef(ctx context.Context, ref string) (Provider, string, error) {
	name, model := parseRef(ref)

	p, ok := r.providers[name]
	if !ok {
		return nil, "", wferr.New(wferr.CodeProviderNotFound, "provider not found: "+name, wferr.FieldProvider(name))
	}
	if !p.Available(ctx) {
		return nil, "", wferr.New(wferr.CodeProviderUpstreamFailure, "provider unavailable: "+name, wferr.FieldProvider(name))
	}
	return p, model, nil
}

// parseRef splits a "provider/model" reference on the first "/".
func parseRef(ref string) (providerName, model string) {
	idx := strings.Index(ref, "/")
	if idx < 0 {
		return ref, ""
	}
	return ref[:idx], ref[idx+1:]
}
