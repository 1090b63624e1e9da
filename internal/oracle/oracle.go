// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package oracle queries the external relation oracle: given a place it
// returns the people seen there, given a person it returns the places they
// were seen at.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/sigil-dev/wayfinder/internal/graph"
	"github.com/sigil-dev/wayfinder/internal/metrics"
	"github.com/sigil-dev/wayfinder/internal/normalize"
	wferr "github.com/sigil-dev/wayfinder/pkg/errors"
	"github.com/sigil-dev/wayfinder/pkg/health"
)

// DefaultRestrictedMarker is the message the oracle returns for entities it
// refuses to describe.
const DefaultRestrictedMarker = "[**RESTRICTED DATA**]"

const maxResponseBytes = 1 << 20

// Outcome classifies a lookup for logs and metrics. Control flow only ever
// looks at the returned association.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeRestricted  Outcome = "restricted"
	OutcomeUnavailable Outcome = "unavailable"
)

// LookupResult is the detailed form of a lookup.
type LookupResult struct {
	Association graph.Association
	Outcome     Outcome
	// Err is set for OutcomeUnavailable and explains the degradation.
	Err error
}

// Config holds the oracle endpoints and client behaviour.
type Config struct {
	APIKey           string
	PlacesURL        string
	PeopleURL        string
	Method           string
	Timeout          time.Duration
	RestrictedMarker string

	// BreakerMaxFailures consecutive failures open an endpoint's breaker for
	// BreakerCooldown.
	BreakerMaxFailures uint32
	BreakerCooldown    time.Duration
}

// Client talks to the places and people endpoints. It is safe for
// concurrent use.
type Client struct {
	cfg      Config
	http     *http.Client
	rec      metrics.Recorder
	breakers map[graph.Kind]*gobreaker.CircuitBreaker
	urls     map[graph.Kind]string

	mu        sync.Mutex
	endpoints map[string]*endpointHealth
}

// endpointHealth accumulates failures across breaker generations, which
// gobreaker resets on every state change.
type endpointHealth struct {
	failures    int64
	lastFailure time.Time
	openedAt    time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRecorder installs a metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(c *Client) { c.rec = metrics.OrNop(r) }
}

// New validates cfg and builds a client with one circuit breaker per
// endpoint.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg = withDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:  cfg,
		http: &http.Client{},
		rec:  metrics.Nop{},
		urls: map[graph.Kind]string{
			graph.KindPlace:  cfg.PlacesURL,
			graph.KindPerson: cfg.PeopleURL,
		},
	}
	for _, opt := range opts {
		opt(c)
	}

	c.endpoints = map[string]*endpointHealth{"places": {}, "people": {}}
	c.breakers = map[graph.Kind]*gobreaker.CircuitBreaker{
		graph.KindPlace:  c.newBreaker("places"),
		graph.KindPerson: c.newBreaker("people"),
	}
	return c, nil
}

func withDefaults(cfg Config) Config {
	if cfg.Method == "" {
		cfg.Method = http.MethodPost
	}
	cfg.Method = strings.ToUpper(cfg.Method)
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RestrictedMarker == "" {
		cfg.RestrictedMarker = DefaultRestrictedMarker
	}
	if cfg.BreakerMaxFailures == 0 {
		cfg.BreakerMaxFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}
	return cfg
}

func validate(cfg Config) error {
	if cfg.Method != http.MethodPost && cfg.Method != http.MethodGet {
		return wferr.Errorf(wferr.CodeOracleRequestInvalid, "oracle: method must be GET or POST, got %q", cfg.Method)
	}
	for name, raw := range map[string]string{"places_url": cfg.PlacesURL, "people_url": cfg.PeopleURL} {
		if raw == "" {
			return wferr.Errorf(wferr.CodeOracleRequestInvalid, "oracle: %s is required", name)
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return wferr.Errorf(wferr.CodeOracleRequestInvalid, "oracle: %s must be an absolute URL, got %q", name, raw)
		}
	}
	return nil
}

func (c *Client) newBreaker(endpoint string) *gobreaker.CircuitBreaker {
	maxFailures := c.cfg.BreakerMaxFailures
	c.rec.SetBreakerState(endpoint, gobreaker.StateClosed.String())

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        endpoint,
		MaxRequests: 1,
		Timeout:     c.cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return !isEndpointFailure(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("oracle circuit breaker state changed",
				"endpoint", name,
				"from", from.String(),
				"to", to.String(),
			)
			c.rec.SetBreakerState(name, to.String())
			if to == gobreaker.StateOpen {
				c.mu.Lock()
				c.endpoints[name].openedAt = time.Now()
				c.mu.Unlock()
			}
		},
	})
}

// Lookup returns what the oracle knows about name. It never fails: every
// problem degrades to an unknown association.
func (c *Client) Lookup(ctx context.Context, kind graph.Kind, name string) graph.Association {
	return c.LookupDetailed(ctx, kind, name).Association
}

// LookupDetailed is Lookup with the outcome classification attached.
func (c *Client) LookupDetailed(ctx context.Context, kind graph.Kind, name string) LookupResult {
	start := time.Now()
	res := c.lookup(ctx, kind, name)
	c.rec.ObserveLookup(string(kind), string(res.Outcome), time.Since(start))

	switch res.Outcome {
	case OutcomeOK:
		slog.Debug("oracle lookup", "kind", kind, "entity", name, "outcome", res.Outcome)
	case OutcomeRestricted:
		slog.Info("oracle lookup", "kind", kind, "entity", name, "outcome", res.Outcome)
	default:
		slog.Warn("oracle lookup", "kind", kind, "entity", name, "outcome", res.Outcome, "error", res.Err)
	}
	return res
}

func (c *Client) lookup(ctx context.Context, kind graph.Kind, name string) LookupResult {
	query := normalize.Query(name)
	if query == "" {
		return unavailable(wferr.New(wferr.CodeOracleRequestInvalid, "empty entity name"))
	}

	cb, ok := c.breakers[kind]
	if !ok {
		return unavailable(wferr.Errorf(wferr.CodeOracleRequestInvalid, "unknown entity kind %q", kind))
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	out, err := cb.Execute(func() (any, error) {
		msg, err := c.query(ctx, c.urls[kind], query)
		if isEndpointFailure(err) {
			c.recordFailure(cb.Name())
		}
		return msg, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = wferr.Wrap(err, wferr.CodeOracleUpstreamFailure, "circuit breaker rejected lookup",
				wferr.Field("endpoint", cb.Name()))
		}
		return unavailable(err)
	}

	message := out.(string)
	if message == c.cfg.RestrictedMarker {
		return LookupResult{Association: graph.Unknown, Outcome: OutcomeRestricted}
	}
	return LookupResult{Association: graph.Known(message), Outcome: OutcomeOK}
}

// Client-side problems (4xx, malformed bodies) say nothing about endpoint
// health.
func isEndpointFailure(err error) bool {
	return err != nil && (wferr.IsUpstreamFailure(err) || wferr.IsTimeout(err))
}

func (c *Client) recordFailure(endpoint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.endpoints[endpoint]
	e.failures++
	e.lastFailure = time.Now()
}

// Health reports each endpoint's breaker state and failure history, keyed
// by endpoint name (places, people).
func (c *Client) Health() map[string]health.Metrics {
	// Breaker state first: OnStateChange takes c.mu while holding the
	// breaker's own lock.
	states := make(map[string]gobreaker.State, len(c.breakers))
	for _, cb := range c.breakers {
		states[cb.Name()] = cb.State()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]health.Metrics, len(states))
	for name, state := range states {
		e := c.endpoints[name]
		m := health.Metrics{
			FailureCount: e.failures,
			State:        state.String(),
			Available:    state != gobreaker.StateOpen,
		}
		if e.failures > 0 {
			t := e.lastFailure
			m.LastFailureAt = &t
		}
		if state == gobreaker.StateOpen {
			until := e.openedAt.Add(c.cfg.BreakerCooldown)
			m.CooldownUntil = &until
		}
		out[name] = m
	}
	return out
}

func unavailable(err error) LookupResult {
	return LookupResult{Association: graph.Unknown, Outcome: OutcomeUnavailable, Err: err}
}

type request struct {
	APIKey string `json:"apikey"`
	Query  string `json:"query"`
}

type response struct {
	Code    int             `json:"code"`
	Message json.RawMessage `json:"message"`
}

// query performs one round trip and returns the trimmed message text.
func (c *Client) query(ctx context.Context, endpoint, q string) (string, error) {
	body, err := json.Marshal(request{APIKey: c.cfg.APIKey, Query: q})
	if err != nil {
		return "", wferr.Errorf(wferr.CodeOracleRequestInvalid, "encoding oracle request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, c.cfg.Method, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", wferr.Errorf(wferr.CodeOracleRequestInvalid, "building oracle request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return "", wferr.Wrap(err, wferr.CodeOracleTimeout, "oracle request timed out", wferr.FieldURL(endpoint))
		}
		return "", wferr.Wrap(err, wferr.CodeOracleUpstreamFailure, "oracle request failed", wferr.FieldURL(endpoint))
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", wferr.Wrap(err, wferr.CodeOracleUpstreamFailure, "reading oracle response", wferr.FieldURL(endpoint))
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return "", wferr.Errorf(wferr.CodeOracleUpstreamFailure, "oracle returned HTTP %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", wferr.Errorf(wferr.CodeOracleResponseInvalid, "oracle returned HTTP %d", resp.StatusCode)
	}

	var decoded response
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", wferr.Errorf(wferr.CodeOracleResponseInvalid, "decoding oracle response: %w", err)
	}

	var message string
	if len(decoded.Message) == 0 || json.Unmarshal(decoded.Message, &message) != nil {
		return "", wferr.New(wferr.CodeOracleResponseInvalid, "oracle response has no message text")
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return "", wferr.New(wferr.CodeOracleResponseInvalid, "oracle response message is empty")
	}
	return message, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

