/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and storeplatform contributors
SPDX-License-Identifier: Apache-2.0
*/

package cluster

import (
	"context"

	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	storev1alpha1 "github.com/sap-labs-oss/storeplatform/api/v1alpha1"
)

const (
	labelStore = "store.platform/store"
	labelOwner = "store.platform/owner"
)

// Default resource quota and limit range figures for a tenant partition.
// The spec calls these "fixed defaults" — there is no per-store override.
var (
	defaultQuotaCPU      = resource.MustParse("4")
	defaultQuotaMemory   = resource.MustParse("8Gi")
	defaultQuotaPods     = resource.MustParse("20")
	defaultLimitCPU      = resource.MustParse("500m")
	defaultLimitMemory   = resource.MustParse("512Mi")
	defaultRequestCPU    = resource.MustParse("100m")
	defaultRequestMemory = resource.MustParse("128Mi")
)

// Provisioner implements pipeline.PartitionProvisioner, pipeline.WorkloadProber,
// and pipeline.URLResolver against a live cluster Client, plus the extra
// cleanup-path operations the reconciler's deletion flow needs.
type Provisioner struct {
	client       Client
	domainSuffix string
}

// NewProvisioner builds a Provisioner reaching the cluster through clnt,
// minting public URLs under domainSuffix (e.g. "stores.platform.example").
func NewProvisioner(clnt Client, domainSuffix string) *Provisioner {
	if domainSuffix == "" {
		domainSuffix = "stores.platform.example"
	}
	return &Provisioner{client: clnt, domainSuffix: domainSuffix}
}

// PartitionName is the tenant namespace name for store, identical to the
// store's own name since Store is cluster-scoped and names are already
// validated to be DNS-1123 label safe.
func PartitionName(store *storev1alpha1.Store) string {
	return store.Name
}

// EnsurePartition creates or updates store's tenant namespace, resource
// quota, limit range, and default-deny network policy, all labelled
// {store=name, owner=owner}. Implements pipeline.PartitionProvisioner.
func (p *Provisioner) EnsurePartition(ctx context.Context, store *storev1alpha1.Store) error {
	partition := PartitionName(store)
	labels := map[string]string{labelStore: store.Name, labelOwner: store.Spec.Owner}

	ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: partition}}
	if _, err := controllerutil.CreateOrUpdate(ctx, p.client, ns, func() error {
		if ns.Labels == nil {
			ns.Labels = map[string]string{}
		}
		for k, v := range labels {
			ns.Labels[k] = v
		}
		return nil
	}); err != nil {
		return errors.Wrapf(err, "error ensuring namespace for store %s", store.Name)
	}

	quota := &corev1.ResourceQuota{ObjectMeta: metav1.ObjectMeta{Name: "default", Namespace: partition}}
	if _, err := controllerutil.CreateOrUpdate(ctx, p.client, quota, func() error {
		quota.Labels = labels
		quota.Spec.Hard = corev1.ResourceList{
			corev1.ResourceRequestsCPU:    defaultQuotaCPU,
			corev1.ResourceRequestsMemory: defaultQuotaMemory,
			corev1.ResourcePods:           defaultQuotaPods,
		}
		return nil
	}); err != nil {
		return errors.Wrapf(err, "error ensuring resource quota for store %s", store.Name)
	}

	limitRange := &corev1.LimitRange{ObjectMeta: metav1.ObjectMeta{Name: "default", Namespace: partition}}
	if _, err := controllerutil.CreateOrUpdate(ctx, p.client, limitRange, func() error {
		limitRange.Labels = labels
		limitRange.Spec.Limits = []corev1.LimitRangeItem{{
			Type: corev1.LimitTypeContainer,
			Default: corev1.ResourceList{
				corev1.ResourceCPU:    defaultLimitCPU,
				corev1.ResourceMemory: defaultLimitMemory,
			},
			DefaultRequest: corev1.ResourceList{
				corev1.ResourceCPU:    defaultRequestCPU,
				corev1.ResourceMemory: defaultRequestMemory,
			},
		}}
		return nil
	}); err != nil {
		return errors.Wrapf(err, "error ensuring limit range for store %s", store.Name)
	}

	netpol := &networkingv1.NetworkPolicy{ObjectMeta: metav1.ObjectMeta{Name: "default-isolation", Namespace: partition}}
	if _, err := controllerutil.CreateOrUpdate(ctx, p.client, netpol, func() error {
		netpol.Labels = labels
		netpol.Spec.PodSelector = metav1.LabelSelector{}
		netpol.Spec.PolicyTypes = []networkingv1.PolicyType{networkingv1.PolicyTypeIngress}
		netpol.Spec.Ingress = []networkingv1.NetworkPolicyIngressRule{{
			From: []networkingv1.NetworkPolicyPeer{{
				NamespaceSelector: &metav1.LabelSelector{
					MatchLabels: map[string]string{labelStore: store.Name},
				},
			}},
		}}
		return nil
	}); err != nil {
		return errors.Wrapf(err, "error ensuring network policy for store %s", store.Name)
	}

	return nil
}

// DeletePartition deletes store's tenant namespace, treating not-found as
// success (the cleanup path's idempotence requirement).
func (p *Provisioner) DeletePartition(ctx context.Context, store *storev1alpha1.Store) error {
	ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: PartitionName(store)}}
	if err := p.client.Delete(ctx, ns); err != nil && !apierrors.IsNotFound(err) {
		return errors.Wrapf(err, "error deleting partition for store %s", store.Name)
	}
	return nil
}
