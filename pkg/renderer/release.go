/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and storeplatform contributors
SPDX-License-Identifier: Apache-2.0
*/

package renderer

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	apitypes "k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

const (
	labelKeyRelease = "release.storeplatform.sap.com/store"

	dataKeyState    = "state"
	dataKeyRevision = "revision"
	dataKeyUpdated  = "updateTimestamp"
)

// Tracker persists, per store, the last release State the engine reported,
// the same ConfigMap-as-state-store shape as the teacher's
// clm/internal/release.Client: no separate storage backend, the cluster
// API itself is the source of truth.
type Tracker struct {
	namespace string
	client    client.Client
}

// NewTracker builds a Tracker persisting release records as ConfigMaps in
// namespace (the platform's own operator namespace, not a tenant
// partition, so tracker state survives a tenant partition being recreated).
func NewTracker(clnt client.Client, namespace string) *Tracker {
	return &Tracker{namespace: namespace, client: clnt}
}

// Record is one store's last-known release state.
type Record struct {
	Store    string
	State    State
	Revision int64
	Updated  time.Time

	configMap *corev1.ConfigMap
}

func (t *Tracker) configMapName(store string) string {
	return fmt.Sprintf("%s.release", store)
}

// Get loads store's release record, returning a zero-value Record with
// State == StateUnknown (not an error) if none has been recorded yet.
func (t *Tracker) Get(ctx context.Context, store string) (*Record, error) {
	cm := &corev1.ConfigMap{}
	key := apitypes.NamespacedName{Namespace: t.namespace, Name: t.configMapName(store)}
	if err := t.client.Get(ctx, key, cm); err != nil {
		if apierrors.IsNotFound(err) {
			return &Record{Store: store, State: StateUnknown}, nil
		}
		return nil, errors.Wrapf(err, "error reading release record for store %s", store)
	}
	rec, err := recordFromConfigMap(store, cm)
	if err != nil {
		return nil, errors.Wrapf(err, "error decoding release record for store %s", store)
	}
	return rec, nil
}

// Save persists rec, creating its backing ConfigMap on first write and
// updating it thereafter.
func (t *Tracker) Save(ctx context.Context, rec *Record) error {
	rec.Updated = time.Now()
	if rec.configMap == nil {
		rec.configMap = &corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{
				Namespace: t.namespace,
				Name:      t.configMapName(rec.Store),
				Labels:    map[string]string{labelKeyRelease: rec.Store},
			},
		}
		rec.configMap.Data = recordToData(rec)
		if err := t.client.Create(ctx, rec.configMap); err != nil {
			return errors.Wrapf(err, "error creating release record for store %s", rec.Store)
		}
		return nil
	}
	rec.configMap.Data = recordToData(rec)
	if err := t.client.Update(ctx, rec.configMap); err != nil {
		return errors.Wrapf(err, "error updating release record for store %s", rec.Store)
	}
	return nil
}

// Forget deletes store's release record, idempotently (not-found is
// treated as already forgotten).
func (t *Tracker) Forget(ctx context.Context, store string) error {
	cm := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{Namespace: t.namespace, Name: t.configMapName(store)},
	}
	if err := t.client.Delete(ctx, cm); err != nil && !apierrors.IsNotFound(err) {
		return errors.Wrapf(err, "error deleting release record for store %s", store)
	}
	return nil
}

func recordToData(rec *Record) map[string]string {
	return map[string]string{
		dataKeyState:    string(rec.State),
		dataKeyRevision: strconv.FormatInt(rec.Revision, 10),
		dataKeyUpdated:  rec.Updated.UTC().Format(time.RFC3339),
	}
}

func recordFromConfigMap(store string, cm *corev1.ConfigMap) (*Record, error) {
	rec := &Record{Store: store, configMap: cm, State: State(cm.Data[dataKeyState])}
	if v, ok := cm.Data[dataKeyRevision]; ok {
		revision, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, err
		}
		rec.Revision = revision
	}
	if v, ok := cm.Data[dataKeyUpdated]; ok {
		updated, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, err
		}
		rec.Updated = updated
	}
	return rec, nil
}
