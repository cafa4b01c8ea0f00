/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and storeplatform contributors
SPDX-License-Identifier: Apache-2.0
*/

// Package metrics registers the platform's prometheus series against
// controller-runtime's metrics.Registry, the same registration idiom the
// teacher's internal/metrics package uses.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	StoresCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stores_created_total",
		Help: "Total number of Store resources accepted by the intent layer",
	})
	StoresDeletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stores_deleted_total",
		Help: "Total number of Store resources fully torn down",
	})
	ProvisioningFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provisioning_failures_total",
			Help: "Total number of fatal stage failures, by stage",
		},
		[]string{"stage"},
	)
	StoresTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stores_total",
			Help: "Current number of Store resources, by phase",
		},
		[]string{"phase"},
	)
	ReconcileDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reconcile_duration_seconds",
			Help:    "Reconcile() wall-clock duration, by outcome",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
	ConcurrencyGateWaiters = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "concurrency_gate_waiters",
		Help: "Current number of reconciles queued behind the concurrency gate",
	})
)

func init() {
	metrics.Registry.MustRegister(
		StoresCreatedTotal,
		StoresDeletedTotal,
		ProvisioningFailuresTotal,
		StoresTotal,
		ReconcileDurationSeconds,
		ConcurrencyGateWaiters,
	)
}
