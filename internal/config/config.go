/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and storeplatform contributors
SPDX-License-Identifier: Apache-2.0
*/

// Package config binds the platform's tunables to pflag, the way the
// teacher's clm/cmd commands bind their own flags, instead of a
// viper/env-driven layer the examples don't otherwise use.
package config

import (
	"time"

	"github.com/spf13/pflag"
)

// Config holds every knob named in the external interfaces, all with the
// defaults spec'd there.
type Config struct {
	MaxConcurrentReconciles int
	DriftIntervalSeconds    int
	ReconcileBackoffInitial time.Duration
	ReconcileBackoffFactor  float64
	ReconcileBackoffCap     time.Duration
	PerOwnerStoreCap        int
	ActivityLogCapacity     int
	DurableStreamRetention  int
	ReadinessSliceSeconds   int
	RendererTimeoutSeconds  int
	APITimeoutSeconds       int

	DomainSuffix   string
	ListenAddress  string
	MetricsAddress string
	HealthAddress  string

	// PrivilegedIdentities bypass ownership scoping on Get/List/Logs.
	PrivilegedIdentities []string
}

// IsPrivileged reports whether identity is exempt from ownership scoping.
func (c *Config) IsPrivileged(identity string) bool {
	for _, p := range c.PrivilegedIdentities {
		if p == identity {
			return true
		}
	}
	return false
}

// Default returns a Config populated with the spec's stated defaults.
func Default() *Config {
	return &Config{
		MaxConcurrentReconciles: 3,
		DriftIntervalSeconds:    120,
		ReconcileBackoffInitial: 5 * time.Second,
		ReconcileBackoffFactor:  2,
		ReconcileBackoffCap:     60 * time.Second,
		PerOwnerStoreCap:        5,
		ActivityLogCapacity:     15,
		DurableStreamRetention:  256,
		ReadinessSliceSeconds:   5,
		RendererTimeoutSeconds:  60,
		APITimeoutSeconds:       10,
		DomainSuffix:            "stores.platform.example",
		ListenAddress:           ":8080",
		MetricsAddress:          ":8081",
		HealthAddress:           ":8082",
	}
}

// BindFlags registers every knob on fs, so cmd/storeplatform's subcommands
// can override any default from the command line.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.IntVar(&c.MaxConcurrentReconciles, "max-concurrent-reconciles", c.MaxConcurrentReconciles, "platform-wide cap on concurrent reconciles")
	fs.IntVar(&c.DriftIntervalSeconds, "drift-interval-seconds", c.DriftIntervalSeconds, "interval between drift presence checks for Ready stores")
	fs.DurationVar(&c.ReconcileBackoffInitial, "reconcile-backoff-initial", c.ReconcileBackoffInitial, "initial per-stage retry backoff")
	fs.Float64Var(&c.ReconcileBackoffFactor, "reconcile-backoff-factor", c.ReconcileBackoffFactor, "retry backoff growth factor")
	fs.DurationVar(&c.ReconcileBackoffCap, "reconcile-backoff-cap", c.ReconcileBackoffCap, "retry backoff ceiling")
	fs.IntVar(&c.PerOwnerStoreCap, "per-owner-store-cap", c.PerOwnerStoreCap, "maximum stores a single owner may hold")
	fs.IntVar(&c.ActivityLogCapacity, "activity-log-capacity", c.ActivityLogCapacity, "bound on a store's status.activityLog length")
	fs.IntVar(&c.DurableStreamRetention, "durable-stream-retention", c.DurableStreamRetention, "bound on the event bus's durable backlog per store")
	fs.IntVar(&c.ReadinessSliceSeconds, "readiness-slice-seconds", c.ReadinessSliceSeconds, "maximum time a readiness probe may block")
	fs.IntVar(&c.RendererTimeoutSeconds, "renderer-timeout-seconds", c.RendererTimeoutSeconds, "maximum time to wait on the template renderer")
	fs.IntVar(&c.APITimeoutSeconds, "api-timeout-seconds", c.APITimeoutSeconds, "intent layer HTTP request deadline")
	fs.StringVar(&c.DomainSuffix, "domain-suffix", c.DomainSuffix, "domain suffix public store URLs are minted under")
	fs.StringVar(&c.ListenAddress, "listen-address", c.ListenAddress, "intent layer HTTP listen address")
	fs.StringVar(&c.MetricsAddress, "metrics-address", c.MetricsAddress, "prometheus metrics listen address")
	fs.StringVar(&c.HealthAddress, "health-address", c.HealthAddress, "health probe listen address")
	fs.StringSliceVar(&c.PrivilegedIdentities, "privileged-identities", c.PrivilegedIdentities, "identities exempt from ownership scoping on Get/List/Logs")
}

// ReadinessSlice returns ReadinessSliceSeconds as a time.Duration.
func (c *Config) ReadinessSlice() time.Duration {
	return time.Duration(c.ReadinessSliceSeconds) * time.Second
}

// RendererTimeout returns RendererTimeoutSeconds as a time.Duration.
func (c *Config) RendererTimeout() time.Duration {
	return time.Duration(c.RendererTimeoutSeconds) * time.Second
}

// APITimeout returns APITimeoutSeconds as a time.Duration.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.APITimeoutSeconds) * time.Second
}

// DriftInterval returns DriftIntervalSeconds as a time.Duration.
func (c *Config) DriftInterval() time.Duration {
	return time.Duration(c.DriftIntervalSeconds) * time.Second
}
