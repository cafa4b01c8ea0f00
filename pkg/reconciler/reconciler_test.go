/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and storeplatform contributors
SPDX-License-Identifier: Apache-2.0
*/

package reconciler_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	apitypes "k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/tools/record"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	storev1alpha1 "github.com/sap-labs-oss/storeplatform/api/v1alpha1"
	"github.com/sap-labs-oss/storeplatform/internal/config"
	"github.com/sap-labs-oss/storeplatform/pkg/cluster"
	"github.com/sap-labs-oss/storeplatform/pkg/eventbus"
	"github.com/sap-labs-oss/storeplatform/pkg/gate"
	"github.com/sap-labs-oss/storeplatform/pkg/quota"
	"github.com/sap-labs-oss/storeplatform/pkg/reconciler"
	"github.com/sap-labs-oss/storeplatform/pkg/renderer"
)

func newScheme() *runtime.Scheme {
	scheme := runtime.NewScheme()
	Expect(corev1.AddToScheme(scheme)).To(Succeed())
	Expect(appsv1.AddToScheme(scheme)).To(Succeed())
	Expect(networkingv1.AddToScheme(scheme)).To(Succeed())
	Expect(storev1alpha1.AddToScheme(scheme)).To(Succeed())
	return scheme
}

func newHarness(store *storev1alpha1.Store) (*reconciler.Reconciler, client.Client) {
	r, clnt, _ := newHarnessWithQuota(store, quota.NewTracker(5))
	return r, clnt
}

func newHarnessWithQuota(store *storev1alpha1.Store, q *quota.Tracker) (*reconciler.Reconciler, client.Client, *quota.Tracker) {
	clnt := fake.NewClientBuilder().
		WithScheme(newScheme()).
		WithObjects(store).
		WithStatusSubresource(&storev1alpha1.Store{}).
		Build()
	wrapped := cluster.NewClient(clnt, nil, record.NewFakeRecorder(20))
	partitions := cluster.NewProvisioner(wrapped, "stores.example.test")
	fakeEngine := renderer.NewFake()
	fakeEngine.Results["acme"] = []renderer.State{renderer.StateDeployed}
	tracker := renderer.NewTracker(wrapped, "store-system")
	releases := renderer.NewManager(fakeEngine, tracker, time.Second)
	bus := eventbus.New(32)
	g := gate.New(3)
	cfg := config.Default()
	cfg.ReadinessSliceSeconds = 1

	r := reconciler.New(wrapped, partitions, releases, bus, g, q, cfg)
	return r, clnt, q
}

func newStore(name string) *storev1alpha1.Store {
	return &storev1alpha1.Store{
		ObjectMeta: metav1.ObjectMeta{Name: name, Generation: 1},
		Spec:       storev1alpha1.StoreSpec{Engine: storev1alpha1.EngineMedusa, Owner: "alice"},
	}
}

func fetch(clnt client.Client, name string) *storev1alpha1.Store {
	store := &storev1alpha1.Store{}
	Expect(clnt.Get(context.Background(), apitypes.NamespacedName{Name: name}, store)).To(Succeed())
	return store
}

var _ = Describe("testing: reconciler.go finalizer and namespace stage", func() {
	It("adds the finalizer on the first reconcile and requeues immediately", func() {
		store := newStore("acme")
		r, clnt := newHarness(store)

		result, err := r.Reconcile(context.Background(), ctrl.Request{NamespacedName: apitypes.NamespacedName{Name: "acme"}})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Requeue).To(BeTrue())

		Expect(fetch(clnt, "acme").Finalizers).To(ContainElement(storev1alpha1.Finalizer))
	})

	It("advances NamespaceReady to True on the next reconcile", func() {
		store := newStore("acme")
		r, clnt := newHarness(store)
		ctx := context.Background()
		req := ctrl.Request{NamespacedName: apitypes.NamespacedName{Name: "acme"}}

		_, err := r.Reconcile(ctx, req)
		Expect(err).NotTo(HaveOccurred())
		_, err = r.Reconcile(ctx, req)
		Expect(err).NotTo(HaveOccurred())

		updated := fetch(clnt, "acme")
		Expect(updated.Status.Conditions).To(ContainElement(And(
			HaveField("Type", storev1alpha1.ConditionNamespaceReady),
			HaveField("Status", storev1alpha1.ConditionTrue),
		)))
		Expect(updated.Status.ActivityLog).To(ContainElement(HaveField("Event", storev1alpha1.EventNamespaceReady)))
	})
})

var _ = Describe("testing: reconciler.go woocommerce short-circuit", func() {
	It("sets ComingSoon and never adds a finalizer", func() {
		store := newStore("acme")
		store.Spec.Engine = storev1alpha1.EngineWooCommerce
		r, clnt := newHarness(store)

		_, err := r.Reconcile(context.Background(), ctrl.Request{NamespacedName: apitypes.NamespacedName{Name: "acme"}})
		Expect(err).NotTo(HaveOccurred())

		updated := fetch(clnt, "acme")
		Expect(updated.Status.Phase).To(Equal(storev1alpha1.PhaseComingSoon))
		Expect(updated.Finalizers).To(BeEmpty())
	})
})

var _ = Describe("testing: reconciler.go full pipeline to Ready", func() {
	It("drives a store through all five stages and resolves URLs", func() {
		store := newStore("acme")
		r, clnt := newHarness(store)
		ctx := context.Background()
		req := ctrl.Request{NamespacedName: apitypes.NamespacedName{Name: "acme"}}

		// finalizer add, then one reconcile per stage, then two settling reconciles.
		for i := 0; i < 8; i++ {
			_, err := r.Reconcile(ctx, req)
			Expect(err).NotTo(HaveOccurred())

			// workloads never actually appear in the fake client, so stages
			// 3-5 would spin forever; install ready deployments once helm
			// has been marked installed so the remaining loop iterations
			// converge within the test's fixed budget.
			current := fetch(clnt, "acme")
			if hasCondition(current, storev1alpha1.ConditionHelmInstalled, storev1alpha1.ConditionTrue) {
				ensureReadyDeployment(clnt, "database")
				ensureReadyDeployment(clnt, "backend")
				ensureReadyDeployment(clnt, "storefront")
			}
		}

		final := fetch(clnt, "acme")
		Expect(final.Status.Phase).To(Equal(storev1alpha1.PhaseReady))
		Expect(final.Status.URL).To(Equal("https://acme.stores.example.test"))
		Expect(final.Status.AdminURL).To(Equal("https://acme.stores.example.test/admin"))
	})
})

func hasCondition(store *storev1alpha1.Store, t storev1alpha1.ConditionType, status storev1alpha1.ConditionStatus) bool {
	for _, c := range store.Status.Conditions {
		if c.Type == t && c.Status == status {
			return true
		}
	}
	return false
}

func ensureReadyDeployment(clnt client.Client, name string) {
	ctx := context.Background()
	dep := &appsv1.Deployment{}
	err := clnt.Get(ctx, apitypes.NamespacedName{Namespace: "acme", Name: name}, dep)
	if err != nil {
		dep = &appsv1.Deployment{ObjectMeta: metav1.ObjectMeta{Namespace: "acme", Name: name}}
		Expect(clnt.Create(ctx, dep)).To(Succeed())
	}
	dep.Status.ReadyReplicas = 1
	Expect(clnt.Status().Update(ctx, dep)).To(Succeed())
}

var _ = Describe("testing: reconciler.go deletion path", func() {
	It("removes the finalizer once cleanup completes", func() {
		store := newStore("acme")
		now := metav1.Now()
		store.DeletionTimestamp = &now
		store.Finalizers = []string{storev1alpha1.Finalizer}
		r, clnt := newHarness(store)
		ctx := context.Background()
		req := ctrl.Request{NamespacedName: apitypes.NamespacedName{Name: "acme"}}

		// first pass: starts cleanup, deletes workloads (none present),
		// volumes already released (none present) so it proceeds straight
		// through partition deletion and finalizer removal.
		_, err := r.Reconcile(ctx, req)
		Expect(err).NotTo(HaveOccurred())

		remaining := &storev1alpha1.Store{}
		err = clnt.Get(ctx, apitypes.NamespacedName{Name: "acme"}, remaining)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("testing: reconciler.go drift detection", func() {
	It("demotes only the conditions backed by a missing workload", func() {
		store := newStore("acme")
		for _, t := range storev1alpha1.PipelineConditions {
			store.Status.Conditions = append(store.Status.Conditions, storev1alpha1.Condition{
				Type: t, Status: storev1alpha1.ConditionTrue, Reason: "Ready",
			})
		}
		store.Status.Phase = storev1alpha1.PhaseReady
		store.Finalizers = []string{storev1alpha1.Finalizer}

		r, clnt := newHarness(store)
		ensureReadyDeployment(clnt, "database")
		ensureReadyDeployment(clnt, "storefront")
		// backend is deliberately left absent.

		before := fetch(clnt, "acme")
		unaffected := map[storev1alpha1.ConditionType]metav1.Time{}
		for _, c := range before.Status.Conditions {
			unaffected[c.Type] = c.LastTransitionTime
		}

		_, err := r.Reconcile(context.Background(), ctrl.Request{NamespacedName: apitypes.NamespacedName{Name: "acme"}})
		Expect(err).NotTo(HaveOccurred())

		updated := fetch(clnt, "acme")
		Expect(updated.Status.Phase).NotTo(Equal(storev1alpha1.PhaseFailed))
		for _, c := range updated.Status.Conditions {
			if c.Type == storev1alpha1.ConditionBackendReady {
				Expect(c.Status).To(Equal(storev1alpha1.ConditionUnknown))
				Expect(c.Reason).To(Equal("Drift"))
				continue
			}
			Expect(c.Status).To(Equal(storev1alpha1.ConditionTrue))
			Expect(c.LastTransitionTime).To(Equal(unaffected[c.Type]))
		}
	})
})

var _ = Describe("testing: reconciler.go quota release on deletion", func() {
	It("releases the owner's quota count once cleanup completes", func() {
		store := newStore("acme")
		store.Spec.Owner = "alice"
		now := metav1.Now()
		store.DeletionTimestamp = &now
		store.Finalizers = []string{storev1alpha1.Finalizer}

		q := quota.NewTracker(5)
		Expect(q.TryReserve("alice")).To(BeTrue())
		r, _, _ := newHarnessWithQuota(store, q)

		_, err := r.Reconcile(context.Background(), ctrl.Request{NamespacedName: apitypes.NamespacedName{Name: "acme"}})
		Expect(err).NotTo(HaveOccurred())

		Expect(q.Count("alice")).To(Equal(0))
	})
})
