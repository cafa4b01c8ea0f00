/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and storeplatform contributors
SPDX-License-Identifier: Apache-2.0
*/

package renderer

import (
	"context"
	"time"

	"github.com/pkg/errors"

	storev1alpha1 "github.com/sap-labs-oss/storeplatform/api/v1alpha1"
)

// DefaultTimeout bounds one Manager.Reconcile call (spec:
// renderer_timeout_seconds, default 60).
const DefaultTimeout = 60 * time.Second

// Manager drives one store's release to Deployed: detect a prior stuck
// state, purge it, apply, and persist whatever state the engine reports.
// It implements pipeline.ReleaseManager.
type Manager struct {
	engine  Renderer
	tracker *Tracker
	timeout time.Duration
}

// NewManager builds a Manager calling engine through tracker's persisted
// state, bounding each Reconcile call to timeout (DefaultTimeout if <= 0).
func NewManager(engine Renderer, tracker *Tracker, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Manager{engine: engine, tracker: tracker, timeout: timeout}
}

// Reconcile implements pipeline.ReleaseManager: it purges a stuck prior
// release if one is on record, applies store's release, persists the
// engine's reported state, and reports installed=true only once that
// state is Deployed.
func (m *Manager) Reconcile(ctx context.Context, store *storev1alpha1.Store) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	req := Request{Name: store.Name, Engine: string(store.Spec.Engine), Partition: store.Name}

	rec, err := m.tracker.Get(ctx, store.Name)
	if err != nil {
		return false, errors.Wrap(err, "error loading release record")
	}

	if rec.State.Stuck() {
		if err := m.engine.Purge(ctx, req); err != nil {
			return false, errors.Wrap(err, "error purging stuck release")
		}
		rec.State = StateUninstalled
	}

	state, err := m.engine.Apply(ctx, req)
	if err != nil {
		return false, errors.Wrap(err, "error applying release")
	}

	rec.State = state
	rec.Revision++
	if err := m.tracker.Save(ctx, rec); err != nil {
		return false, errors.Wrap(err, "error persisting release record")
	}

	return state == StateDeployed, nil
}

// Forget drops the release record for store, called from the reconciler's
// cleanup path once the tenant partition has been torn down.
func (m *Manager) Forget(ctx context.Context, store string) error {
	return m.tracker.Forget(ctx, store)
}
