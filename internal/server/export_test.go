// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"net/http"
	"time"
)

// IPLimiter exposes the per-IP limiter with a controllable clock.
type IPLimiter struct{ l *ipLimiter }

// NewIPLimiter returns a limiter whose clock is read from now.
func NewIPLimiter(cfg RateLimitConfig, now func() time.Time) *IPLimiter {
	l := newIPLimiter(cfg)
	l.now = now
	return &IPLimiter{l: l}
}

func (l *IPLimiter) Allow(ip string) bool { return l.l.allow(ip) }
func (l *IPLimiter) Sweep() { l.l.sweep() }
func (l *IPLimiter) Size() int { return l.l.size() }
func (l *IPLimiter) Middleware(next http.Handler) http.Handler { return l.l.middleware(next) }
