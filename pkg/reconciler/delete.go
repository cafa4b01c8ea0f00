/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and storeplatform contributors
SPDX-License-Identifier: Apache-2.0
*/

package reconciler

import (
	"context"
	"time"

	"github.com/pkg/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	storev1alpha1 "github.com/sap-labs-oss/storeplatform/api/v1alpha1"
	"github.com/sap-labs-oss/storeplatform/internal/metrics"
	"github.com/sap-labs-oss/storeplatform/pkg/status"
)

// volumeReleaseBudget bounds how long the cleanup path waits for a
// tenant's persistent volumes to be released before proceeding anyway.
const volumeReleaseBudget = 60 * time.Second

// volumeRecheckInterval is the requeue delay while waiting on volumes.
const volumeRecheckInterval = 2 * time.Second

// reconcileDelete runs the cleanup path in reverse pipeline order:
// workloads, then a bounded wait for volume release, then the partition
// itself, then the finalizer. Every step is idempotent; not-found at any
// step is treated as already-done.
func (r *Reconciler) reconcileDelete(ctx context.Context, store *storev1alpha1.Store) (ctrl.Result, error) {
	if !controllerutil.ContainsFinalizer(store, storev1alpha1.Finalizer) {
		return ctrl.Result{}, nil
	}

	now := metav1.Now()
	if store.Status.Phase != storev1alpha1.PhaseDeleting {
		store.Status.Phase = storev1alpha1.PhaseDeleting
		entry := status.AppendActivity(&store.Status, storev1alpha1.EventCleanupStarted, "tearing down tenant partition", now, r.cfg.ActivityLogCapacity)
		r.bus.Record(store.Name, entry)
	}

	if err := r.partitions.DeleteWorkloads(ctx, store); err != nil {
		return ctrl.Result{}, errors.Wrap(err, "error deleting workloads")
	}

	released, err := r.partitions.VolumesReleased(ctx, store)
	if err != nil {
		return ctrl.Result{}, errors.Wrap(err, "error checking volume release")
	}
	if !released && time.Since(cleanupStartedAt(store)) < volumeReleaseBudget {
		return ctrl.Result{RequeueAfter: volumeRecheckInterval}, nil
	}

	if err := r.partitions.DeletePartition(ctx, store); err != nil {
		return ctrl.Result{}, errors.Wrap(err, "error deleting partition")
	}

	if err := r.releases.Forget(ctx, store.Name); err != nil {
		return ctrl.Result{}, errors.Wrap(err, "error forgetting release record")
	}
	r.bus.Forget(store.Name)

	entry := status.AppendActivity(&store.Status, storev1alpha1.EventCleanupComplete, "tenant partition removed", metav1.Now(), r.cfg.ActivityLogCapacity)
	r.bus.Record(store.Name, entry)

	if removed := controllerutil.RemoveFinalizer(store, storev1alpha1.Finalizer); removed {
		if err := r.client.Update(ctx, store); err != nil {
			return ctrl.Result{}, errors.Wrap(err, "error removing finalizer")
		}
	}

	r.quota.Release(store.Spec.Owner)
	metrics.StoresDeletedTotal.Inc()
	return ctrl.Result{}, nil
}

// cleanupStartedAt returns the timestamp of the store's CLEANUP_STARTED
// activity-log entry, or the current time if cleanup only just began this
// reconcile (in which case the volume-release budget has not yet elapsed).
func cleanupStartedAt(store *storev1alpha1.Store) time.Time {
	for _, entry := range store.Status.ActivityLog {
		if entry.Event == storev1alpha1.EventCleanupStarted {
			return entry.Timestamp.Time
		}
	}
	return time.Now()
}
