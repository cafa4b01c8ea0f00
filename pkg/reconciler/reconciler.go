/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and storeplatform contributors
SPDX-License-Identifier: Apache-2.0
*/

// Package reconciler drives a Store through the provisioning pipeline.
// It keeps the teacher's pkg/component.Reconciler shape — fetch, defer a
// status patch that always fires, finalizer add-then-requeue, exponential
// per-stage backoff, deduplicated event recording — but replaces "apply a
// manifest inventory" with "advance the fixed five-stage pipeline" and
// adds a platform-wide concurrency gate the teacher's single
// MaxConcurrentReconciles option doesn't model, since that option only
// bounds this one controller's workers, not deletion and drift timers
// sharing the same cap.
package reconciler

import (
	"context"
	"reflect"
	"time"

	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/controller"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"
	"sigs.k8s.io/controller-runtime/pkg/handler"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/predicate"
	"sigs.k8s.io/controller-runtime/pkg/source"

	storev1alpha1 "github.com/sap-labs-oss/storeplatform/api/v1alpha1"
	"github.com/sap-labs-oss/storeplatform/internal/backoff"
	"github.com/sap-labs-oss/storeplatform/internal/config"
	"github.com/sap-labs-oss/storeplatform/internal/events"
	"github.com/sap-labs-oss/storeplatform/internal/metrics"
	"github.com/sap-labs-oss/storeplatform/pkg/cluster"
	"github.com/sap-labs-oss/storeplatform/pkg/eventbus"
	"github.com/sap-labs-oss/storeplatform/pkg/gate"
	"github.com/sap-labs-oss/storeplatform/pkg/pipeline"
	"github.com/sap-labs-oss/storeplatform/pkg/quota"
	"github.com/sap-labs-oss/storeplatform/pkg/renderer"
	"github.com/sap-labs-oss/storeplatform/pkg/status"
)

// gateWait is how long Reconcile requeues a request that could not get a
// concurrency gate slot, matching the spec's "requeue with 1 s delay".
const gateWait = time.Second

// maxStageRetries is how many consecutive transient outcomes a single
// stage may accumulate before it is escalated to a fatal failure.
const maxStageRetries = 3

// Reconciler implements reconcile.Reconciler for Store.
type Reconciler struct {
	client     cluster.Client
	partitions *cluster.Provisioner
	releases   *renderer.Manager
	bus        *eventbus.Bus
	gate       *gate.Gate
	quota      *quota.Tracker
	backoff    *backoff.Backoff
	recorder   *events.DeduplicatingRecorder
	cfg        *config.Config
}

// New builds a Reconciler wiring the shared platform-process singletons
// (gate, event bus, quota tracker) constructed once in cmd/storeplatform
// and shared with the intent layer in the same process, so a deletion
// driven through this reconciler can release the same owner count the
// intent layer reserved against.
func New(clnt cluster.Client, partitions *cluster.Provisioner, releases *renderer.Manager, bus *eventbus.Bus, g *gate.Gate, q *quota.Tracker, cfg *config.Config) *Reconciler {
	return &Reconciler{
		client:     clnt,
		partitions: partitions,
		releases:   releases,
		bus:        bus,
		gate:       g,
		quota:      q,
		backoff:    backoff.NewBackoff(cfg.ReconcileBackoffInitial, cfg.ReconcileBackoffFactor, cfg.ReconcileBackoffCap),
		recorder:   events.NewDeduplicatingRecorder(clnt.EventRecorder()),
		cfg:        cfg,
	}
}

// Reconcile implements the per-invocation contract: acquire the
// concurrency gate, branch into the deletion path, the woocommerce
// short-circuit, or the pipeline dispatch, and always attempt a status
// patch on the way out.
func (r *Reconciler) Reconcile(ctx context.Context, req ctrl.Request) (result ctrl.Result, reconcileErr error) {
	logger := log.FromContext(ctx)

	release, err := r.gate.Acquire(ctx, req.Name)
	if err != nil {
		if errors.Is(err, gate.ErrSuperseded) {
			return ctrl.Result{}, nil
		}
		return ctrl.Result{RequeueAfter: gateWait}, nil
	}
	defer release()
	metrics.ConcurrencyGateWaiters.Set(float64(r.gate.Waiting()))

	store := &storev1alpha1.Store{}
	if err := r.client.Get(ctx, req.NamespacedName, store); err != nil {
		if apierrors.IsNotFound(err) {
			return ctrl.Result{}, nil
		}
		return ctrl.Result{}, errors.Wrap(err, "error getting store")
	}

	savedStatus := store.Status.DeepCopy()
	start := time.Now()
	outcomeLabel := "ok"

	defer func() {
		metrics.ReconcileDurationSeconds.WithLabelValues(outcomeLabel).Observe(time.Since(start).Seconds())
		if reflect.DeepEqual(&store.Status, savedStatus) {
			return
		}
		// A store whose last finalizer was just removed is already gone.
		if updateErr := status.WriteStatus(ctx, r.client, store); updateErr != nil && !apierrors.IsNotFound(updateErr) {
			logger.Error(updateErr, "error updating store status")
			reconcileErr = errors.Wrap(updateErr, "error updating store status")
			result = ctrl.Result{}
		}
	}()

	if !store.DeletionTimestamp.IsZero() {
		return r.reconcileDelete(ctx, store)
	}

	if store.Spec.Engine == storev1alpha1.EngineWooCommerce {
		return r.reconcileComingSoon(ctx, store)
	}

	if added := controllerutil.AddFinalizer(store, storev1alpha1.Finalizer); added {
		if err := r.client.Update(ctx, store); err != nil {
			return ctrl.Result{}, errors.Wrap(err, "error adding finalizer")
		}
		return ctrl.Result{Requeue: true}, nil
	}

	store.Status.ObservedGeneration = store.Generation

	stageType, hasNext := status.NextStage(&store.Status)
	if !hasNext {
		store.Status.Phase = status.ComputePhase(&store.Status)
		if err := r.CheckDrift(ctx, store); err != nil {
			logger.Error(err, "error checking drift")
		}
		if store.Status.Phase != storev1alpha1.PhaseReady {
			// Drift demoted a stage; the driftTicker skips non-Ready
			// stores, so requeue to run that stage again.
			return ctrl.Result{Requeue: true}, nil
		}
		// No RequeueAfter here: periodic drift rechecks for a settled
		// Ready store arrive through the driftTicker's GenericEvent
		// source, not this request's own requeue.
		return ctrl.Result{}, nil
	}

	stage, ok := pipeline.ForCondition(stageType)
	if !ok {
		return ctrl.Result{}, errors.Errorf("no pipeline stage registered for condition %s", stageType)
	}

	outcome := stage.Run(ctx, r.dependencies(), store)
	result, outcomeLabel = r.applyOutcome(store, stage, outcome, req)
	return result, nil
}

func (r *Reconciler) dependencies() pipeline.Dependencies {
	return pipeline.Dependencies{
		Partitions:     r.partitions,
		Releases:       r.releases,
		Workloads:      r.partitions,
		URLs:           r.partitions,
		ReadinessSlice: r.cfg.ReadinessSlice(),
	}
}

// applyOutcome folds a stage's Outcome into the store's status and
// activity log and decides the requeue directive, returning a metrics
// outcome label alongside the ctrl.Result.
func (r *Reconciler) applyOutcome(store *storev1alpha1.Store, stage pipeline.Stage, outcome pipeline.Outcome, req ctrl.Request) (ctrl.Result, string) {
	now := metav1.Now()

	switch outcome.Kind {
	case pipeline.Ok:
		status.ApplyCondition(&store.Status, status.ConditionDelta{
			Type: stage.Condition, Status: storev1alpha1.ConditionTrue,
			Reason: outcome.Reason, Message: outcome.Message,
		}, now)
		if outcome.URL != "" {
			store.Status.URL = outcome.URL
		}
		if outcome.AdminURL != "" {
			store.Status.AdminURL = outcome.AdminURL
		}
		if store.Status.CreatedAt == nil {
			store.Status.CreatedAt = &now
			metrics.StoresCreatedTotal.Inc()
		}
		entry := status.AppendActivity(&store.Status, stage.Event, outcome.Message, now, r.cfg.ActivityLogCapacity)
		r.bus.Record(store.Name, entry)
		r.backoff.Forget(req)
		store.Status.RetryCount = 0
		store.Status.Phase = status.ComputePhase(&store.Status)
		r.recorder.Event(store, corev1.EventTypeNormal, outcome.Reason, outcome.Message)

		if store.Status.Phase == storev1alpha1.PhaseReady {
			// Further periodic rechecks arrive via the driftTicker source.
			return ctrl.Result{}, "ok"
		}
		return ctrl.Result{Requeue: true}, "ok"

	case pipeline.Transient:
		store.Status.RetryCount++
		if store.Status.RetryCount > maxStageRetries {
			return r.escalate(store, stage, outcome, req), "fatal"
		}
		status.ApplyCondition(&store.Status, status.ConditionDelta{
			Type: stage.Condition, Status: storev1alpha1.ConditionUnknown,
			Reason: outcome.Reason, Message: outcome.Message,
		}, now)
		store.Status.Phase = storev1alpha1.PhaseProvisioning
		r.recorder.Event(store, corev1.EventTypeWarning, outcome.Reason, outcome.Message)
		return ctrl.Result{RequeueAfter: r.backoff.Next(req, stage.Condition)}, "transient"

	default: // pipeline.FatalUser, pipeline.FatalSystem
		return r.escalate(store, stage, outcome, req), "fatal"
	}
}

// escalate marks stage permanently failed: no further automatic retry.
func (r *Reconciler) escalate(store *storev1alpha1.Store, stage pipeline.Stage, outcome pipeline.Outcome, req ctrl.Request) ctrl.Result {
	now := metav1.Now()
	status.ApplyCondition(&store.Status, status.ConditionDelta{
		Type: stage.Condition, Status: storev1alpha1.ConditionFalse,
		Reason: outcome.Reason, Message: outcome.Message,
	}, now)
	entry := status.AppendActivity(&store.Status, storev1alpha1.EventProvisioningFailed, outcome.Message, now, r.cfg.ActivityLogCapacity)
	r.bus.Record(store.Name, entry)
	store.Status.Phase = storev1alpha1.PhaseFailed
	metrics.ProvisioningFailuresTotal.WithLabelValues(string(stage.Condition)).Inc()
	r.recorder.Event(store, corev1.EventTypeWarning, outcome.Reason, outcome.Message)
	r.backoff.Forget(req)
	return ctrl.Result{}
}

func (r *Reconciler) reconcileComingSoon(ctx context.Context, store *storev1alpha1.Store) (ctrl.Result, error) {
	if store.Status.Phase == storev1alpha1.PhaseComingSoon {
		return ctrl.Result{}, nil
	}
	store.Status.Phase = storev1alpha1.PhaseComingSoon
	store.Status.ObservedGeneration = store.Generation
	entry := status.AppendActivity(&store.Status, storev1alpha1.EventComingSoon, "woocommerce is not yet available", metav1.Now(), r.cfg.ActivityLogCapacity)
	r.bus.Record(store.Name, entry)
	return ctrl.Result{}, nil
}

// SetupWithManager registers the controller, filtering to generation
// changes only (status-only updates must not re-trigger Reconcile,
// matching the teacher's event filter), bounded by MaxConcurrentReconciles.
// It also adds the gauge-refresher runnable, so stores_total stays a
// snapshot rather than something Reconcile increments in place, and a
// driftTicker source feeding periodic drift rechecks for Ready stores.
func (r *Reconciler) SetupWithManager(mgr ctrl.Manager) error {
	if err := mgr.Add(NewGaugeRefresher(mgr.GetClient())); err != nil {
		return errors.Wrap(err, "error adding gauge refresher")
	}

	ticker := newDriftTicker(mgr.GetClient(), r.cfg.DriftInterval())
	if err := mgr.Add(ticker); err != nil {
		return errors.Wrap(err, "error adding drift ticker")
	}

	return ctrl.NewControllerManagedBy(mgr).
		For(&storev1alpha1.Store{}).
		WithEventFilter(predicate.GenerationChangedPredicate{}).
		WithOptions(controller.Options{MaxConcurrentReconciles: r.cfg.MaxConcurrentReconciles}).
		WatchesRawSource(source.Channel(ticker.ch, &handler.EnqueueRequestForObject{})).
		Complete(r)
}
