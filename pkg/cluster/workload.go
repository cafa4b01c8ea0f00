/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and storeplatform contributors
SPDX-License-Identifier: Apache-2.0
*/

package cluster

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	apitypes "k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	storev1alpha1 "github.com/sap-labs-oss/storeplatform/api/v1alpha1"
)

// expectedWorkloads are the Deployments a healthy tenant partition carries,
// in the order the drift presence-check reports on them.
var expectedWorkloads = []string{"database", "backend", "storefront"}

// WorkloadReady reports whether workload's Deployment inside store's
// partition has at least one ready replica. Implements
// pipeline.WorkloadProber; ctx is expected to already carry the caller's
// readiness-slice deadline.
func (p *Provisioner) WorkloadReady(ctx context.Context, store *storev1alpha1.Store, workload string) (bool, string, string, error) {
	dep := &appsv1.Deployment{}
	key := apitypes.NamespacedName{Namespace: PartitionName(store), Name: workload}
	if err := p.client.Get(ctx, key, dep); err != nil {
		if apierrors.IsNotFound(err) {
			return false, "WorkloadMissing", fmt.Sprintf("%s deployment not yet present", workload), nil
		}
		return false, "", "", errors.Wrapf(err, "error reading %s deployment for store %s", workload, store.Name)
	}
	if dep.Status.ReadyReplicas < 1 {
		return false, "WaitingForReplica", fmt.Sprintf("%s has %d/%d ready replicas", workload, dep.Status.ReadyReplicas, replicaCount(dep)), nil
	}
	return true, "", fmt.Sprintf("%s has %d ready replicas", workload, dep.Status.ReadyReplicas), nil
}

func replicaCount(dep *appsv1.Deployment) int32 {
	if dep.Spec.Replicas == nil {
		return 1
	}
	return *dep.Spec.Replicas
}

// CheckPresence is the drift path's presence check: it probes every
// expected workload in store's partition and returns the names of those
// found missing or under-replicated, without mutating anything. Every
// workload is checked even after an earlier one is found missing, so the
// caller can demote exactly the conditions affected instead of every
// pipeline condition at once.
func (p *Provisioner) CheckPresence(ctx context.Context, store *storev1alpha1.Store) ([]string, error) {
	var missing []string
	for _, workload := range expectedWorkloads {
		dep := &appsv1.Deployment{}
		key := apitypes.NamespacedName{Namespace: PartitionName(store), Name: workload}
		if err := p.client.Get(ctx, key, dep); err != nil {
			if apierrors.IsNotFound(err) {
				missing = append(missing, workload)
				continue
			}
			return nil, errors.Wrapf(err, "error reading %s deployment for store %s", workload, store.Name)
		}
		if dep.Status.ReadyReplicas < replicaCount(dep) {
			missing = append(missing, workload)
		}
	}
	return missing, nil
}

// DeleteWorkloads removes every Deployment the renderer installed into
// store's partition, the first step of the cleanup path. Not-found is
// success (idempotence).
func (p *Provisioner) DeleteWorkloads(ctx context.Context, store *storev1alpha1.Store) error {
	for _, workload := range expectedWorkloads {
		dep := &appsv1.Deployment{}
		dep.Namespace = PartitionName(store)
		dep.Name = workload
		if err := p.client.Delete(ctx, dep); err != nil && !apierrors.IsNotFound(err) {
			return errors.Wrapf(err, "error deleting %s deployment for store %s", workload, store.Name)
		}
	}
	return nil
}

// VolumesReleased reports whether every PersistentVolumeClaim in store's
// partition has been released (i.e. none remain), polled by the cleanup
// path before the partition itself is deleted.
func (p *Provisioner) VolumesReleased(ctx context.Context, store *storev1alpha1.Store) (bool, error) {
	list := &corev1.PersistentVolumeClaimList{}
	if err := p.client.List(ctx, list, client.InNamespace(PartitionName(store))); err != nil {
		return false, errors.Wrapf(err, "error listing persistent volume claims for store %s", store.Name)
	}
	return len(list.Items) == 0, nil
}
