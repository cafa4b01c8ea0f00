/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and storeplatform contributors
SPDX-License-Identifier: Apache-2.0
*/

package reconciler

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	storev1alpha1 "github.com/sap-labs-oss/storeplatform/api/v1alpha1"
	"github.com/sap-labs-oss/storeplatform/pkg/status"
)

// driftConditionByWorkload maps a tenant partition's workload name (as
// pkg/cluster.CheckPresence reports it) to the single pipeline condition
// it backs, so a missing workload demotes only its own condition rather
// than the whole pipeline.
var driftConditionByWorkload = map[string]storev1alpha1.ConditionType{
	"database":   storev1alpha1.ConditionDatabaseReady,
	"backend":    storev1alpha1.ConditionBackendReady,
	"storefront": storev1alpha1.ConditionStorefrontReady,
}

// CheckDrift runs the presence check for a Ready store and, only for the
// workloads it finds missing or under-replicated, demotes the matching
// condition so the pipeline re-executes just that stage on the next
// Reconcile. A passing check leaves status untouched — no
// lastTransitionTime churn, and an unaffected condition's
// lastTransitionTime never advances either. Demoted conditions move to
// Unknown rather than False: False is reserved for a stage that has
// exhausted its retries and become permanently Failed, and a
// drift-affected store is expected to self-heal, not to be reported as
// failed. The caller (Reconcile's deferred status patch) is responsible
// for persisting the mutated status; CheckDrift only mutates the
// in-memory object.
func (r *Reconciler) CheckDrift(ctx context.Context, store *storev1alpha1.Store) error {
	if store.Status.Phase != storev1alpha1.PhaseReady {
		return nil
	}

	missing, err := r.partitions.CheckPresence(ctx, store)
	if err != nil {
		return errors.Wrap(err, "error running drift presence check")
	}
	if len(missing) == 0 {
		return nil
	}

	now := metav1.Now()
	for _, workload := range missing {
		t, ok := driftConditionByWorkload[workload]
		if !ok {
			continue
		}
		status.ApplyCondition(&store.Status, status.ConditionDelta{
			Type: t, Status: storev1alpha1.ConditionUnknown,
			Reason: "Drift", Message: fmt.Sprintf("presence check found the %s workload missing or under-replicated", workload),
		}, now)
	}
	store.Status.Phase = status.ComputePhase(&store.Status)
	entry := status.AppendActivity(&store.Status, storev1alpha1.EventDriftDetected, "drift detected; re-applying release", now, r.cfg.ActivityLogCapacity)
	r.bus.Record(store.Name, entry)

	if _, err := r.releases.Reconcile(ctx, store); err != nil {
		return errors.Wrap(err, "error re-applying release after drift")
	}
	return nil
}
