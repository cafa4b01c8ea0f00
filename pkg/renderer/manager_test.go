/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and storeplatform contributors
SPDX-License-Identifier: Apache-2.0
*/

package renderer_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	storev1alpha1 "github.com/sap-labs-oss/storeplatform/api/v1alpha1"
	"github.com/sap-labs-oss/storeplatform/pkg/renderer"
)

func newTracker() *renderer.Tracker {
	scheme := runtime.NewScheme()
	Expect(corev1.AddToScheme(scheme)).To(Succeed())
	clnt := fake.NewClientBuilder().WithScheme(scheme).Build()
	return renderer.NewTracker(clnt, "storeplatform-system")
}

func newStore(name string) *storev1alpha1.Store {
	return &storev1alpha1.Store{
		ObjectMeta: metav1.ObjectMeta{Name: name},
		Spec:       storev1alpha1.StoreSpec{Engine: storev1alpha1.EngineMedusa, Owner: "alice"},
	}
}

var _ = Describe("testing: manager.go", func() {
	It("reports installed once the engine reaches deployed", func() {
		engine := renderer.NewFake()
		engine.Results["acme"] = []renderer.State{renderer.StatePendingInstall, renderer.StateDeployed}
		mgr := renderer.NewManager(engine, newTracker(), 0)
		store := newStore("acme")

		installed, err := mgr.Reconcile(context.Background(), store)
		Expect(err).NotTo(HaveOccurred())
		Expect(installed).To(BeFalse())

		installed, err = mgr.Reconcile(context.Background(), store)
		Expect(err).NotTo(HaveOccurred())
		Expect(installed).To(BeTrue())
	})

	It("purges a stuck prior release before applying again", func() {
		engine := renderer.NewFake()
		engine.Results["acme"] = []renderer.State{renderer.StateFailed}
		tracker := newTracker()
		mgr := renderer.NewManager(engine, tracker, 0)
		store := newStore("acme")

		_, err := mgr.Reconcile(context.Background(), store)
		Expect(err).NotTo(HaveOccurred())
		Expect(engine.Purged["acme"]).To(Equal(0))

		engine.Results["acme"] = []renderer.State{renderer.StateFailed, renderer.StateDeployed}
		_, err = mgr.Reconcile(context.Background(), store)
		Expect(err).NotTo(HaveOccurred())
		Expect(engine.Purged["acme"]).To(Equal(1))
	})

	It("surfaces an engine error without persisting a new state", func() {
		engine := renderer.NewFake()
		engine.ApplyErr["acme"] = errors.New("engine timeout")
		mgr := renderer.NewManager(engine, newTracker(), 0)

		_, err := mgr.Reconcile(context.Background(), newStore("acme"))
		Expect(err).To(HaveOccurred())
	})
})
