/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and storeplatform contributors
SPDX-License-Identifier: Apache-2.0
*/

// Package pipeline holds the five ordered provisioning stages a Store
// advances through. It replaces the teacher's manifest-inventory
// reconcile step (pkg/component.Reconciler's single Apply call) with a
// fixed table of named stages, each an idempotent Action returning an
// explicit Outcome instead of throwing across the reconciler — the
// exception-for-control-flow substitution spec'd for this system.
package pipeline

import (
	"context"
	"time"

	storev1alpha1 "github.com/sap-labs-oss/storeplatform/api/v1alpha1"
)

// Kind classifies a stage's result for the reconciler: whether to mark the
// condition True, retry with backoff, or fail the store outright.
type Kind int

const (
	// Ok means the stage's success criterion is met; its condition becomes True.
	Ok Kind = iota
	// Transient means the stage isn't done yet and should be retried with backoff.
	Transient
	// FatalUser means the stage failed due to the store's own spec or quota; no retry.
	FatalUser
	// FatalSystem means the stage failed for a reason outside the caller's control; no retry.
	FatalSystem
)

func (k Kind) String() string {
	switch k {
	case Ok:
		return "Ok"
	case Transient:
		return "Transient"
	case FatalUser:
		return "FatalUser"
	case FatalSystem:
		return "FatalSystem"
	default:
		return "Unknown"
	}
}

// Outcome is what a stage Action reports back to the reconciler: the kind
// of result, a machine reason and human message for the condition/activity
// log, and any fields the stage assigned onto the Store's status.
type Outcome struct {
	Kind    Kind
	Reason  string
	Message string

	// URL and AdminURL are set only by StorefrontReady, on first success.
	URL      string
	AdminURL string
}

// Transientf builds a Transient Outcome.
func Transientf(reason, message string) Outcome {
	return Outcome{Kind: Transient, Reason: reason, Message: message}
}

// FatalUserf builds a FatalUser Outcome.
func FatalUserf(reason, message string) Outcome {
	return Outcome{Kind: FatalUser, Reason: reason, Message: message}
}

// FatalSystemf builds a FatalSystem Outcome.
func FatalSystemf(reason, message string) Outcome {
	return Outcome{Kind: FatalSystem, Reason: reason, Message: message}
}

// Okf builds an Ok Outcome.
func Okf(reason, message string) Outcome {
	return Outcome{Kind: Ok, Reason: reason, Message: message}
}

// PartitionProvisioner ensures a Store's tenant partition (namespace,
// resource quota, limit range, network policy) exists and is labelled.
// Satisfied by *pkg/cluster.Provisioner.
type PartitionProvisioner interface {
	EnsurePartition(ctx context.Context, store *storev1alpha1.Store) error
}

// ReleaseManager invokes the opaque template renderer and reports whether
// its output is fully reconciled into the partition. Satisfied by
// *pkg/renderer.Manager.
type ReleaseManager interface {
	// Reconcile purges a stuck prior release (pending-install, pending-upgrade,
	// failed) if present, then installs or upgrades. It returns installed=true
	// only once the renderer itself reports the release as settled.
	Reconcile(ctx context.Context, store *storev1alpha1.Store) (installed bool, err error)
}

// WorkloadProber polls a named workload's readiness within a store's
// partition, bounded to one slice before returning. Satisfied by
// *pkg/cluster.Provisioner.
type WorkloadProber interface {
	WorkloadReady(ctx context.Context, store *storev1alpha1.Store, workload string) (ready bool, reason, message string, err error)
}

// URLResolver computes the public and admin URLs for a store once its
// storefront is first ready. Satisfied by *pkg/cluster.Provisioner.
type URLResolver interface {
	ResolveURLs(ctx context.Context, store *storev1alpha1.Store) (url, adminURL string, err error)
}

// Dependencies bundles everything a stage Action needs, narrowed to the
// interfaces above so pipeline has no compile-time dependency on the
// concrete pkg/cluster or pkg/renderer types — only on what it actually
// calls.
type Dependencies struct {
	Partitions     PartitionProvisioner
	Releases       ReleaseManager
	Workloads      WorkloadProber
	URLs           URLResolver
	ReadinessSlice time.Duration // readiness_slice_seconds, default 5s
}

// Action is one stage's idempotent unit of work.
type Action func(ctx context.Context, deps Dependencies, store *storev1alpha1.Store) Outcome

// Stage pairs a pipeline condition with the Action that advances it.
type Stage struct {
	Condition storev1alpha1.ConditionType
	Event     string // activity-log event token emitted on Ok
	Run       Action
}

// Stages is the fixed, ordered provisioning pipeline. Index order is
// execution order; NextStage in pkg/status picks the lowest-indexed
// condition not yet True, so this slice and
// storev1alpha1.PipelineConditions must stay in lockstep.
var Stages = []Stage{
	{Condition: storev1alpha1.ConditionNamespaceReady, Event: storev1alpha1.EventNamespaceReady, Run: namespaceReady},
	{Condition: storev1alpha1.ConditionHelmInstalled, Event: storev1alpha1.EventHelmInstalled, Run: helmInstalled},
	{Condition: storev1alpha1.ConditionDatabaseReady, Event: storev1alpha1.EventDatabaseReady, Run: databaseReady},
	{Condition: storev1alpha1.ConditionBackendReady, Event: storev1alpha1.EventBackendReady, Run: backendReady},
	{Condition: storev1alpha1.ConditionStorefrontReady, Event: storev1alpha1.EventStorefrontReady, Run: storefrontReady},
}

// ForCondition returns the Stage for a given condition type.
func ForCondition(t storev1alpha1.ConditionType) (Stage, bool) {
	for _, s := range Stages {
		if s.Condition == t {
			return s, true
		}
	}
	return Stage{}, false
}

func namespaceReady(ctx context.Context, deps Dependencies, store *storev1alpha1.Store) Outcome {
	if err := deps.Partitions.EnsurePartition(ctx, store); err != nil {
		return Transientf("PartitionNotReady", err.Error())
	}
	return Okf("PartitionReady", "tenant partition present and labelled")
}

func helmInstalled(ctx context.Context, deps Dependencies, store *storev1alpha1.Store) Outcome {
	installed, err := deps.Releases.Reconcile(ctx, store)
	if err != nil {
		return Transientf("ReleasePending", err.Error())
	}
	if !installed {
		return Transientf("ReleasePending", "renderer has not yet reported the release as settled")
	}
	return Okf("ReleaseInstalled", "renderer reports the release installed")
}

func databaseReady(ctx context.Context, deps Dependencies, store *storev1alpha1.Store) Outcome {
	return readinessProbe(ctx, deps, store, "database")
}

func backendReady(ctx context.Context, deps Dependencies, store *storev1alpha1.Store) Outcome {
	return readinessProbe(ctx, deps, store, "backend")
}

func storefrontReady(ctx context.Context, deps Dependencies, store *storev1alpha1.Store) Outcome {
	outcome := readinessProbe(ctx, deps, store, "storefront")
	if outcome.Kind != Ok {
		return outcome
	}
	url, adminURL, err := deps.URLs.ResolveURLs(ctx, store)
	if err != nil {
		return Transientf("URLNotAssignable", err.Error())
	}
	outcome.URL = url
	outcome.AdminURL = adminURL
	return outcome
}

// readinessProbe is shared by stages 3-5: it polls workload's readiness
// within one slice and never blocks past deps.ReadinessSlice before
// returning a "not yet" Transient outcome for the reconciler to requeue.
func readinessProbe(ctx context.Context, deps Dependencies, store *storev1alpha1.Store, workload string) Outcome {
	slice := deps.ReadinessSlice
	if slice <= 0 {
		slice = 5 * time.Second
	}
	sliceCtx, cancel := context.WithTimeout(ctx, slice)
	defer cancel()

	ready, reason, message, err := deps.Workloads.WorkloadReady(sliceCtx, store, workload)
	if err != nil {
		return Transientf("ProbeError", err.Error())
	}
	if !ready {
		if reason == "" {
			reason = "NotYetReady"
		}
		return Transientf(reason, message)
	}
	return Okf("WorkloadReady", message)
}
