/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and storeplatform contributors
SPDX-License-Identifier: Apache-2.0
*/

package reconciler

import (
	"context"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/event"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/manager"

	storev1alpha1 "github.com/sap-labs-oss/storeplatform/api/v1alpha1"
)

// driftTicker feeds a GenericEvent per Ready store into ch on every tick,
// the source.Channel idiom for injecting a non-watch trigger into the
// controller's workqueue: a drift recheck must fire on a timer even though
// nothing about the object itself changed, which a normal watch can't
// express.
type driftTicker struct {
	client   client.Reader
	interval time.Duration
	ch       chan event.GenericEvent
}

// newDriftTicker builds a driftTicker; its channel is handed to
// WatchesRawSource by SetupWithManager.
func newDriftTicker(clnt client.Reader, interval time.Duration) *driftTicker {
	if interval <= 0 {
		interval = 120 * time.Second
	}
	return &driftTicker{client: clnt, interval: interval, ch: make(chan event.GenericEvent)}
}

var _ manager.Runnable = (*driftTicker)(nil)

// Start runs until ctx is cancelled, listing every store on each tick and
// emitting one event per Ready store. Stores not yet Ready are already
// being driven by their own pipeline requeue and don't need a drift poke.
func (d *driftTicker) Start(ctx context.Context) error {
	logger := log.FromContext(ctx).WithName("drift-ticker")
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			list := &storev1alpha1.StoreList{}
			if err := d.client.List(ctx, list); err != nil {
				logger.Error(err, "error listing stores for drift tick")
				continue
			}
			for i := range list.Items {
				store := &list.Items[i]
				if store.Status.Phase != storev1alpha1.PhaseReady {
					continue
				}
				select {
				case d.ch <- event.GenericEvent{Object: store}:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}
