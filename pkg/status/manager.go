/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and storeplatform contributors
SPDX-License-Identifier: Apache-2.0
*/

// Package status centralizes every mutation of a Store's status into pure,
// independently testable functions, mirroring the way the teacher's
// reconcile loop computes a single State before ever touching the API
// server: callers supply condition deltas, never a raw phase.
package status

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sap/go-generics/slices"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	storev1alpha1 "github.com/sap-labs-oss/storeplatform/api/v1alpha1"
)

// DefaultActivityLogCapacity is the bound on Store.Status.ActivityLog
// entries (spec: activity_log_capacity, default 15).
const DefaultActivityLogCapacity = 15

// ConditionDelta describes a single stage outcome to upsert.
type ConditionDelta struct {
	Type    storev1alpha1.ConditionType
	Status  storev1alpha1.ConditionStatus
	Reason  string
	Message string
}

// ApplyCondition upserts delta into status.Conditions. If a condition with
// the same Type exists and Status is unchanged, only Reason/Message are
// updated and LastTransitionTime is left untouched; otherwise a new row is
// appended (or the existing one replaced) with LastTransitionTime advanced.
// Returns true if the condition's Status flipped (i.e. a transition
// genuinely occurred).
func ApplyCondition(status *storev1alpha1.StoreStatus, delta ConditionDelta, now metav1.Time) bool {
	for i := range status.Conditions {
		c := &status.Conditions[i]
		if c.Type != delta.Type {
			continue
		}
		if c.Status == delta.Status {
			c.Reason = delta.Reason
			c.Message = delta.Message
			return false
		}
		c.Status = delta.Status
		c.Reason = delta.Reason
		c.Message = delta.Message
		c.LastTransitionTime = now
		return true
	}
	status.Conditions = append(status.Conditions, storev1alpha1.Condition{
		Type:               delta.Type,
		Status:             delta.Status,
		Reason:             delta.Reason,
		Message:            delta.Message,
		LastTransitionTime: now,
	})
	return true
}

// AppendActivity pushes entry to the tail of status.ActivityLog, dropping
// the head once the length exceeds capacity. Returns the appended entry so
// callers can forward it to the event bus with the same timestamp.
func AppendActivity(status *storev1alpha1.StoreStatus, event string, message string, now metav1.Time, capacity int) storev1alpha1.ActivityLogEntry {
	if capacity <= 0 {
		capacity = DefaultActivityLogCapacity
	}
	entry := storev1alpha1.ActivityLogEntry{Timestamp: now, Event: event, Message: message}
	status.ActivityLog = append(status.ActivityLog, entry)
	if len(status.ActivityLog) > capacity {
		status.ActivityLog = status.ActivityLog[len(status.ActivityLog)-capacity:]
	}
	return entry
}

// ComputePhase recomputes status.Phase from its conditions, per the data
// model invariants: Ready iff all five conditions are True; Failed iff at
// least one condition is False; otherwise Provisioning. Callers are
// responsible for the woocommerce ComingSoon short-circuit and the
// Pending/Deleting states, which fall outside the condition-driven part of
// the lifecycle.
func ComputePhase(status *storev1alpha1.StoreStatus) storev1alpha1.Phase {
	byType := make(map[storev1alpha1.ConditionType]storev1alpha1.Condition, len(status.Conditions))
	for _, c := range status.Conditions {
		byType[c.Type] = c
	}

	anyFalse := slices.Count(status.Conditions, func(c storev1alpha1.Condition) bool {
		return c.Status == storev1alpha1.ConditionFalse
	}) > 0

	allTrue := len(byType) >= len(storev1alpha1.PipelineConditions)
	for _, t := range storev1alpha1.PipelineConditions {
		c, ok := byType[t]
		if !ok {
			allTrue = false
			continue
		}
		if c.Status != storev1alpha1.ConditionTrue {
			allTrue = false
		}
	}

	switch {
	case allTrue:
		return storev1alpha1.PhaseReady
	case anyFalse:
		return storev1alpha1.PhaseFailed
	default:
		return storev1alpha1.PhaseProvisioning
	}
}

// WriteStatus persists store's in-memory status with a single
// Status().Update call. On an optimistic-concurrency conflict it rereads
// the object, reapplies the same status onto the fresh copy, and retries
// exactly once; a second conflict is wrapped and returned as a transient
// failure rather than retried further, so the caller's normal
// error-return-triggers-requeue path handles it.
func WriteStatus(ctx context.Context, clnt client.Client, store *storev1alpha1.Store) error {
	wantStatus := *store.Status.DeepCopy()

	err := clnt.Status().Update(ctx, store)
	if err == nil {
		return nil
	}
	if !apierrors.IsConflict(err) {
		return err
	}

	fresh := &storev1alpha1.Store{}
	if getErr := clnt.Get(ctx, client.ObjectKeyFromObject(store), fresh); getErr != nil {
		return errors.Wrap(getErr, "error rereading store after status conflict")
	}
	fresh.Status = wantStatus
	if err := clnt.Status().Update(ctx, fresh); err != nil {
		if apierrors.IsConflict(err) {
			return errors.Wrap(err, "transient: status write conflicted twice")
		}
		return errors.Wrap(err, "error retrying status update after conflict")
	}
	*store = *fresh
	return nil
}

// AllTrue reports whether every known pipeline condition is currently True.
func AllTrue(status *storev1alpha1.StoreStatus) bool {
	return ComputePhase(status) == storev1alpha1.PhaseReady
}

// FirstFalse returns the first (in pipeline order) condition with status
// False, or false if none exists.
func FirstFalse(status *storev1alpha1.StoreStatus) (storev1alpha1.Condition, bool) {
	byType := make(map[storev1alpha1.ConditionType]storev1alpha1.Condition, len(status.Conditions))
	for _, c := range status.Conditions {
		byType[c.Type] = c
	}
	for _, t := range storev1alpha1.PipelineConditions {
		if c, ok := byType[t]; ok && c.Status == storev1alpha1.ConditionFalse {
			return c, true
		}
	}
	return storev1alpha1.Condition{}, false
}

// NextStage returns the lowest-indexed pipeline condition type that is not
// currently True, i.e. the stage the reconciler should execute next. Returns
// false if every stage is already True.
func NextStage(status *storev1alpha1.StoreStatus) (storev1alpha1.ConditionType, bool) {
	byType := make(map[storev1alpha1.ConditionType]storev1alpha1.ConditionStatus, len(status.Conditions))
	for _, c := range status.Conditions {
		byType[c.Type] = c.Status
	}
	for _, t := range storev1alpha1.PipelineConditions {
		if byType[t] != storev1alpha1.ConditionTrue {
			return t, true
		}
	}
	return "", false
}
