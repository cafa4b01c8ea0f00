/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and storeplatform contributors
SPDX-License-Identifier: Apache-2.0
*/

package reconciler

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/manager"

	storev1alpha1 "github.com/sap-labs-oss/storeplatform/api/v1alpha1"
	"github.com/sap-labs-oss/storeplatform/internal/metrics"
)

// gaugeRefreshInterval is how often StoresTotal is recomputed from a
// fresh list. The gauge reflects a point-in-time snapshot, so it is set
// wholesale rather than incremented from Reconcile.
const gaugeRefreshInterval = 30 * time.Second

// phases enumerates every value StoresTotal is labelled by, so a phase
// that currently has zero stores still reports 0 instead of going
// missing from the metric.
var phases = []storev1alpha1.Phase{
	storev1alpha1.PhasePending,
	storev1alpha1.PhaseProvisioning,
	storev1alpha1.PhaseReady,
	storev1alpha1.PhaseFailed,
	storev1alpha1.PhaseComingSoon,
	storev1alpha1.PhaseDeleting,
}

// GaugeRefresher implements manager.Runnable, periodically listing every
// Store and setting internal/metrics.StoresTotal to the current count
// per phase.
type GaugeRefresher struct {
	client client.Reader
}

// NewGaugeRefresher builds a GaugeRefresher reading through clnt.
func NewGaugeRefresher(clnt client.Reader) *GaugeRefresher {
	return &GaugeRefresher{client: clnt}
}

var _ manager.Runnable = (*GaugeRefresher)(nil)

// Start runs until ctx is cancelled, refreshing the gauge on a fixed
// interval and once more immediately on entry.
func (g *GaugeRefresher) Start(ctx context.Context) error {
	logger := log.FromContext(ctx).WithName("gauge-refresher")
	ticker := time.NewTicker(gaugeRefreshInterval)
	defer ticker.Stop()

	g.refresh(ctx, logger)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			g.refresh(ctx, logger)
		}
	}
}

func (g *GaugeRefresher) refresh(ctx context.Context, logger logr.Logger) {
	list := &storev1alpha1.StoreList{}
	if err := g.client.List(ctx, list); err != nil {
		logger.Error(err, "error listing stores for gauge refresh")
		return
	}

	counts := make(map[storev1alpha1.Phase]int, len(phases))
	for _, store := range list.Items {
		counts[store.Status.Phase]++
	}
	for _, phase := range phases {
		metrics.StoresTotal.WithLabelValues(string(phase)).Set(float64(counts[phase]))
	}
}
