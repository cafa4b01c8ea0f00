/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and storeplatform contributors
SPDX-License-Identifier: Apache-2.0
*/

package cluster_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	apitypes "k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/tools/record"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	storev1alpha1 "github.com/sap-labs-oss/storeplatform/api/v1alpha1"
	"github.com/sap-labs-oss/storeplatform/pkg/cluster"
)

func newScheme() *runtime.Scheme {
	scheme := runtime.NewScheme()
	Expect(corev1.AddToScheme(scheme)).To(Succeed())
	Expect(appsv1.AddToScheme(scheme)).To(Succeed())
	Expect(networkingv1.AddToScheme(scheme)).To(Succeed())
	return scheme
}

func newProvisioner(objs ...client.Object) (*cluster.Provisioner, client.Client) {
	clnt := fake.NewClientBuilder().WithScheme(newScheme()).WithObjects(objs...).WithStatusSubresource(&appsv1.Deployment{}).Build()
	wrapped := cluster.NewClient(clnt, nil, record.NewFakeRecorder(10))
	return cluster.NewProvisioner(wrapped, "stores.example.test"), clnt
}

func testStore(name string) *storev1alpha1.Store {
	return &storev1alpha1.Store{
		ObjectMeta: metav1.ObjectMeta{Name: name},
		Spec:       storev1alpha1.StoreSpec{Engine: storev1alpha1.EngineMedusa, Owner: "alice"},
	}
}

var _ = Describe("testing: partition.go EnsurePartition", func() {
	It("creates the namespace, quota, limit range, and network policy", func() {
		p, clnt := newProvisioner()
		store := testStore("acme")

		Expect(p.EnsurePartition(context.Background(), store)).To(Succeed())

		ns := &corev1.Namespace{}
		Expect(clnt.Get(context.Background(), apitypes.NamespacedName{Name: "acme"}, ns)).To(Succeed())
		Expect(ns.Labels).To(HaveKeyWithValue("store.platform/store", "acme"))
		Expect(ns.Labels).To(HaveKeyWithValue("store.platform/owner", "alice"))

		quota := &corev1.ResourceQuota{}
		Expect(clnt.Get(context.Background(), apitypes.NamespacedName{Namespace: "acme", Name: "default"}, quota)).To(Succeed())

		limitRange := &corev1.LimitRange{}
		Expect(clnt.Get(context.Background(), apitypes.NamespacedName{Namespace: "acme", Name: "default"}, limitRange)).To(Succeed())

		netpol := &networkingv1.NetworkPolicy{}
		Expect(clnt.Get(context.Background(), apitypes.NamespacedName{Namespace: "acme", Name: "default-isolation"}, netpol)).To(Succeed())
	})

	It("is idempotent when called twice", func() {
		p, _ := newProvisioner()
		store := testStore("acme")
		Expect(p.EnsurePartition(context.Background(), store)).To(Succeed())
		Expect(p.EnsurePartition(context.Background(), store)).To(Succeed())
	})
})

var _ = Describe("testing: partition.go DeletePartition", func() {
	It("treats a missing namespace as success", func() {
		p, _ := newProvisioner()
		Expect(p.DeletePartition(context.Background(), testStore("gone"))).To(Succeed())
	})
})

var _ = Describe("testing: workload.go WorkloadReady", func() {
	It("reports not-ready when the deployment is missing", func() {
		p, _ := newProvisioner()
		ready, reason, _, err := p.WorkloadReady(context.Background(), testStore("acme"), "backend")
		Expect(err).NotTo(HaveOccurred())
		Expect(ready).To(BeFalse())
		Expect(reason).To(Equal("WorkloadMissing"))
	})

	It("reports ready once the deployment has a ready replica", func() {
		dep := &appsv1.Deployment{
			ObjectMeta: metav1.ObjectMeta{Namespace: "acme", Name: "backend"},
		}
		p, clnt := newProvisioner(dep)
		dep.Status.ReadyReplicas = 1
		Expect(clnt.Status().Update(context.Background(), dep)).To(Succeed())

		ready, _, _, err := p.WorkloadReady(context.Background(), testStore("acme"), "backend")
		Expect(err).NotTo(HaveOccurred())
		Expect(ready).To(BeTrue())
	})
})

var _ = Describe("testing: workload.go CheckPresence", func() {
	It("reports every expected workload missing when none exist", func() {
		p, _ := newProvisioner()
		missing, err := p.CheckPresence(context.Background(), testStore("acme"))
		Expect(err).NotTo(HaveOccurred())
		Expect(missing).To(ConsistOf("database", "backend", "storefront"))
	})

	It("reports only the workload that went missing", func() {
		ready := func(name string) *appsv1.Deployment {
			dep := &appsv1.Deployment{ObjectMeta: metav1.ObjectMeta{Namespace: "acme", Name: name}}
			return dep
		}
		p, clnt := newProvisioner(ready("database"), ready("storefront"))
		for _, name := range []string{"database", "storefront"} {
			dep := &appsv1.Deployment{}
			Expect(clnt.Get(context.Background(), apitypes.NamespacedName{Namespace: "acme", Name: name}, dep)).To(Succeed())
			dep.Status.ReadyReplicas = 1
			Expect(clnt.Status().Update(context.Background(), dep)).To(Succeed())
		}

		missing, err := p.CheckPresence(context.Background(), testStore("acme"))
		Expect(err).NotTo(HaveOccurred())
		Expect(missing).To(ConsistOf("backend"))
	})

	It("reports nothing missing once every workload is ready", func() {
		names := []string{"database", "backend", "storefront"}
		objs := make([]client.Object, 0, len(names))
		for _, name := range names {
			objs = append(objs, &appsv1.Deployment{ObjectMeta: metav1.ObjectMeta{Namespace: "acme", Name: name}})
		}
		p, clnt := newProvisioner(objs...)
		for _, name := range names {
			dep := &appsv1.Deployment{}
			Expect(clnt.Get(context.Background(), apitypes.NamespacedName{Namespace: "acme", Name: name}, dep)).To(Succeed())
			dep.Status.ReadyReplicas = 1
			Expect(clnt.Status().Update(context.Background(), dep)).To(Succeed())
		}

		missing, err := p.CheckPresence(context.Background(), testStore("acme"))
		Expect(err).NotTo(HaveOccurred())
		Expect(missing).To(BeEmpty())
	})
})

var _ = Describe("testing: urls.go ResolveURLs", func() {
	It("computes deterministic public and admin URLs from the domain suffix", func() {
		p, _ := newProvisioner()
		url, adminURL, err := p.ResolveURLs(context.Background(), testStore("acme"))
		Expect(err).NotTo(HaveOccurred())
		Expect(url).To(Equal("https://acme.stores.example.test"))
		Expect(adminURL).To(Equal("https://acme.stores.example.test/admin"))
	})
})
