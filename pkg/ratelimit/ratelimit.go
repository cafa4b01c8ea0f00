/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and storeplatform contributors
SPDX-License-Identifier: Apache-2.0
*/

// Package ratelimit implements the per-identity token bucket guarding the
// intent layer's write endpoints, grounded on the r3e-network-service_layer
// middleware.RateLimiter shape: a mutex-guarded map of per-key
// golang.org/x/time/rate limiters, keyed here by caller identity instead of
// by remote address.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// PerIdentityLimiter buckets requests per caller identity at a fixed
// requests-per-window budget.
type PerIdentityLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// New builds a PerIdentityLimiter allowing limit requests per window, with
// bursts up to burst (spec: create = 10/min, delete = 30/min).
func New(limit int, window time.Duration, burst int) *PerIdentityLimiter {
	if window <= 0 {
		window = time.Minute
	}
	if burst <= 0 {
		burst = limit
	}
	return &PerIdentityLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(float64(limit) / window.Seconds()),
		burst:    burst,
	}
}

// Allow reports whether identity may perform one more request right now,
// consuming a token if so.
func (l *PerIdentityLimiter) Allow(identity string) bool {
	return l.limiterFor(identity).Allow()
}

func (l *PerIdentityLimiter) limiterFor(identity string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[identity]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[identity] = lim
	}
	return lim
}

// TrackedIdentities returns the number of distinct identities with an
// allocated bucket, for diagnostics.
func (l *PerIdentityLimiter) TrackedIdentities() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
