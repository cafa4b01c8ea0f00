/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and storeplatform contributors
SPDX-License-Identifier: Apache-2.0
*/

package api

import (
	"context"
	"net/http"

	"github.com/sap-labs-oss/storeplatform/pkg/ratelimit"
)

type identityKey struct{}

// identityHeader is the trusted header the boundary is expected to set;
// no authentication happens in-core (spec §4.6).
const identityHeader = "X-User-Id"

// identityMiddleware extracts the caller identity and stashes it on the
// request context, defaulting to "default" when absent.
func identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(identityHeader)
		if id == "" {
			id = "default"
		}
		ctx := context.WithValue(r.Context(), identityKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func callerIdentity(r *http.Request) string {
	id, _ := r.Context().Value(identityKey{}).(string)
	if id == "" {
		return "default"
	}
	return id
}

// rateLimited rejects a request with 429 once identity has exhausted its
// token bucket for this endpoint.
func rateLimited(limiter *ratelimit.PerIdentityLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(callerIdentity(r)) {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
