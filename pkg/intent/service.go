/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and storeplatform contributors
SPDX-License-Identifier: Apache-2.0
*/

// Package intent implements the thin layer between a caller's declared
// intent and the cluster API: validate, enforce identity scoping and
// per-owner quota, then CRUD the Store resource. It never touches
// provisioning state directly — that is pkg/reconciler's job, driven by
// watching the same resource this package writes.
package intent

import (
	"context"
	"fmt"
	"sort"

	"github.com/pkg/errors"
	apierrors2 "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	apitypes "k8s.io/apimachinery/pkg/types"

	storev1alpha1 "github.com/sap-labs-oss/storeplatform/api/v1alpha1"
	"github.com/sap-labs-oss/storeplatform/internal/config"
	"github.com/sap-labs-oss/storeplatform/pkg/apierrors"
	"github.com/sap-labs-oss/storeplatform/pkg/cluster"
	"github.com/sap-labs-oss/storeplatform/pkg/eventbus"
	"github.com/sap-labs-oss/storeplatform/pkg/quota"
	"github.com/sap-labs-oss/storeplatform/pkg/status"
)

// defaultOwner is used when both the request body's owner and the
// caller's identity are empty.
const defaultOwner = "default"

// Snapshot is the JSON-facing view of a Store, the shape every intent
// layer read operation returns.
type Snapshot struct {
	Name               string                            `json:"name"`
	Engine             string                            `json:"engine"`
	Owner              string                            `json:"owner"`
	Phase              string                            `json:"phase"`
	Conditions         []storev1alpha1.Condition         `json:"conditions,omitempty"`
	ActivityLog        []storev1alpha1.ActivityLogEntry  `json:"activityLog,omitempty"`
	URL                string                            `json:"url,omitempty"`
	AdminURL           string                            `json:"adminUrl,omitempty"`
	RetryCount         int                               `json:"retryCount"`
	ObservedGeneration int64                              `json:"observedGeneration"`
	CreatedAt          *metav1.Time                      `json:"createdAt,omitempty"`
}

func snapshotFrom(store *storev1alpha1.Store) Snapshot {
	return Snapshot{
		Name:               store.Name,
		Engine:             string(store.Spec.Engine),
		Owner:              store.Spec.Owner,
		Phase:              string(store.Status.Phase),
		Conditions:         store.Status.Conditions,
		ActivityLog:        store.Status.ActivityLog,
		URL:                store.Status.URL,
		AdminURL:           store.Status.AdminURL,
		RetryCount:         store.Status.RetryCount,
		ObservedGeneration: store.Status.ObservedGeneration,
		CreatedAt:          store.Status.CreatedAt,
	}
}

// Service implements Create/Get/List/Delete/Subscribe/Logs against the
// cluster API, enforcing identity scoping and the owner quota before any
// write reaches the Store resource.
type Service struct {
	client cluster.Client
	quota  *quota.Tracker
	bus    *eventbus.Bus
	cfg    *config.Config
}

// New builds a Service.
func New(clnt cluster.Client, q *quota.Tracker, bus *eventbus.Bus, cfg *config.Config) *Service {
	return &Service{client: clnt, quota: q, bus: bus, cfg: cfg}
}

// resolveOwner applies the spec's identity/owner conflation rule: an
// explicit owner wins, otherwise the caller's own identity, otherwise
// "default".
func resolveOwner(owner, callerIdentity string) string {
	if owner != "" {
		return owner
	}
	if callerIdentity != "" {
		return callerIdentity
	}
	return defaultOwner
}

// Create validates name/engine/owner, enforces the per-owner quota, and
// creates the Store resource. Returns created=false when an identical
// resource already exists (idempotent 201); returns a *apierrors.Error of
// kind Conflict if the name is already claimed by a different owner or
// engine.
func (s *Service) Create(ctx context.Context, name, engine, owner, callerIdentity string) (Snapshot, bool, error) {
	if err := storev1alpha1.ValidateName(name); err != nil {
		return Snapshot{}, false, apierrors.Validation(err.Error())
	}
	eng := storev1alpha1.Engine(engine)
	if err := storev1alpha1.ValidateEngine(eng); err != nil {
		return Snapshot{}, false, apierrors.Validation(err.Error())
	}
	resolvedOwner := resolveOwner(owner, callerIdentity)
	if err := storev1alpha1.ValidateOwner(resolvedOwner); err != nil {
		return Snapshot{}, false, apierrors.Validation(err.Error())
	}

	existing := &storev1alpha1.Store{}
	err := s.client.Get(ctx, apitypes.NamespacedName{Name: name}, existing)
	switch {
	case err == nil:
		if existing.Spec.Owner == resolvedOwner && existing.Spec.Engine == eng {
			return snapshotFrom(existing), false, nil
		}
		return Snapshot{}, false, apierrors.Conflict(fmt.Sprintf("store %q already exists under a different owner or engine", name))
	case apierrors2.IsNotFound(err):
		// fall through to create
	default:
		return Snapshot{}, false, errors.Wrapf(err, "error reading store %s", name)
	}

	if !s.quota.TryReserve(resolvedOwner) {
		return Snapshot{}, false, apierrors.Validation(fmt.Sprintf("owner %q is at its store quota", resolvedOwner))
	}

	store := &storev1alpha1.Store{
		ObjectMeta: metav1.ObjectMeta{Name: name},
		Spec:       storev1alpha1.StoreSpec{Engine: eng, Owner: resolvedOwner},
		Status:     storev1alpha1.StoreStatus{Phase: storev1alpha1.PhasePending},
	}
	if err := s.client.Create(ctx, store); err != nil {
		s.quota.Release(resolvedOwner)
		return Snapshot{}, false, errors.Wrapf(err, "error creating store %s", name)
	}

	entry := status.AppendActivity(&store.Status, storev1alpha1.EventProvisioningStart, "store accepted", metav1.Now(), s.cfg.ActivityLogCapacity)
	if err := s.client.Status().Update(ctx, store); err != nil {
		return Snapshot{}, false, errors.Wrapf(err, "error initializing status for store %s", name)
	}
	s.bus.Record(name, entry)

	return snapshotFrom(store), true, nil
}

// Get returns the current snapshot for name, enforcing ownership scoping.
func (s *Service) Get(ctx context.Context, name, callerIdentity string) (Snapshot, error) {
	store := &storev1alpha1.Store{}
	if err := s.client.Get(ctx, apitypes.NamespacedName{Name: name}, store); err != nil {
		if apierrors2.IsNotFound(err) {
			return Snapshot{}, apierrors.NotFound(fmt.Sprintf("store %q not found", name))
		}
		return Snapshot{}, errors.Wrapf(err, "error reading store %s", name)
	}
	if !s.visibleTo(store, callerIdentity) {
		return Snapshot{}, apierrors.Forbidden(fmt.Sprintf("caller does not own store %q", name))
	}
	return snapshotFrom(store), nil
}

// List returns every store visible to callerIdentity.
func (s *Service) List(ctx context.Context, callerIdentity string) ([]Snapshot, error) {
	list := &storev1alpha1.StoreList{}
	if err := s.client.List(ctx, list); err != nil {
		return nil, errors.Wrap(err, "error listing stores")
	}
	snapshots := make([]Snapshot, 0, len(list.Items))
	for i := range list.Items {
		store := &list.Items[i]
		if !s.visibleTo(store, callerIdentity) {
			continue
		}
		snapshots = append(snapshots, snapshotFrom(store))
	}
	return snapshots, nil
}

// Delete marks name for deletion. A not-found store is treated as already
// deleted (idempotent success).
func (s *Service) Delete(ctx context.Context, name, callerIdentity string) error {
	store := &storev1alpha1.Store{}
	if err := s.client.Get(ctx, apitypes.NamespacedName{Name: name}, store); err != nil {
		if apierrors2.IsNotFound(err) {
			return nil
		}
		return errors.Wrapf(err, "error reading store %s", name)
	}
	if !s.visibleTo(store, callerIdentity) {
		return apierrors.Forbidden(fmt.Sprintf("caller does not own store %q", name))
	}
	if !store.DeletionTimestamp.IsZero() {
		return nil
	}
	if err := s.client.Delete(ctx, store); err != nil {
		if apierrors2.IsNotFound(err) {
			return nil
		}
		return errors.Wrapf(err, "error deleting store %s", name)
	}
	return nil
}

// Logs returns name's activity log merged with the durable stream's tail,
// most recent first, deduplicated by timestamp+event.
func (s *Service) Logs(ctx context.Context, name, callerIdentity string) ([]storev1alpha1.ActivityLogEntry, error) {
	store := &storev1alpha1.Store{}
	if err := s.client.Get(ctx, apitypes.NamespacedName{Name: name}, store); err != nil {
		if apierrors2.IsNotFound(err) {
			return nil, apierrors.NotFound(fmt.Sprintf("store %q not found", name))
		}
		return nil, errors.Wrapf(err, "error reading store %s", name)
	}
	if !s.visibleTo(store, callerIdentity) {
		return nil, apierrors.Forbidden(fmt.Sprintf("caller does not own store %q", name))
	}

	seen := make(map[string]struct{}, len(store.Status.ActivityLog))
	merged := make([]storev1alpha1.ActivityLogEntry, 0, len(store.Status.ActivityLog))
	key := func(e storev1alpha1.ActivityLogEntry) string {
		return fmt.Sprintf("%d|%s", e.Timestamp.Unix(), e.Event)
	}
	for _, e := range store.Status.ActivityLog {
		seen[key(e)] = struct{}{}
		merged = append(merged, e)
	}
	for _, e := range s.bus.Durable.Since(name, metav1.Time{}.Time) {
		if _, ok := seen[key(e)]; ok {
			continue
		}
		seen[key(e)] = struct{}{}
		merged = append(merged, e)
	}

	for i, j := 0, len(merged)-1; i < j; i, j = i+1, j-1 {
		merged[i], merged[j] = merged[j], merged[i]
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[j].Timestamp.Before(&merged[i].Timestamp)
	})
	return merged, nil
}

// SubscribeAllResult is what Subscribe hands to its caller: an initial
// snapshot of every visible store, a live channel of subsequent events
// restricted to stores visible to callerIdentity, and an unsubscribe func.
type SubscribeAllResult struct {
	Initial []Snapshot
	Events  <-chan eventbus.Event
	Close   func()
}

// Subscribe opens a live stream: the caller first receives a snapshot of
// every store currently visible to it, then every subsequent bus event
// for a store it is allowed to see.
func (s *Service) Subscribe(ctx context.Context, callerIdentity string) (SubscribeAllResult, error) {
	initial, err := s.List(ctx, callerIdentity)
	if err != nil {
		return SubscribeAllResult{}, err
	}

	raw, unsub := s.bus.SubscribeAll()
	filtered := make(chan eventbus.Event, subscribeAllBuffer)
	go func() {
		defer close(filtered)
		for ev := range raw {
			store := &storev1alpha1.Store{}
			if err := s.client.Get(ctx, apitypes.NamespacedName{Name: ev.Store}, store); err != nil {
				continue
			}
			if !s.visibleTo(store, callerIdentity) {
				continue
			}
			select {
			case filtered <- ev:
			default:
			}
		}
	}()

	return SubscribeAllResult{Initial: initial, Events: filtered, Close: unsub}, nil
}

// subscribeAllBuffer bounds the filtered relay channel Subscribe hands
// back; a full buffer drops the event rather than blocking the bus.
const subscribeAllBuffer = 32

// visibleTo reports whether callerIdentity may see store: it owns it, or
// it is a privileged identity.
func (s *Service) visibleTo(store *storev1alpha1.Store, callerIdentity string) bool {
	if s.cfg.IsPrivileged(callerIdentity) {
		return true
	}
	return store.Spec.Owner == callerIdentity
}
