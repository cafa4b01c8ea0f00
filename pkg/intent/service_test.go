/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and storeplatform contributors
SPDX-License-Identifier: Apache-2.0
*/

package intent_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/tools/record"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	storev1alpha1 "github.com/sap-labs-oss/storeplatform/api/v1alpha1"
	"github.com/sap-labs-oss/storeplatform/internal/config"
	"github.com/sap-labs-oss/storeplatform/pkg/apierrors"
	"github.com/sap-labs-oss/storeplatform/pkg/cluster"
	"github.com/sap-labs-oss/storeplatform/pkg/eventbus"
	"github.com/sap-labs-oss/storeplatform/pkg/intent"
	"github.com/sap-labs-oss/storeplatform/pkg/quota"
)

func newScheme() *runtime.Scheme {
	scheme := runtime.NewScheme()
	Expect(corev1.AddToScheme(scheme)).To(Succeed())
	Expect(appsv1.AddToScheme(scheme)).To(Succeed())
	Expect(networkingv1.AddToScheme(scheme)).To(Succeed())
	Expect(storev1alpha1.AddToScheme(scheme)).To(Succeed())
	return scheme
}

func newHarness() (*intent.Service, *eventbus.Bus) {
	clnt := fake.NewClientBuilder().
		WithScheme(newScheme()).
		WithStatusSubresource(&storev1alpha1.Store{}).
		Build()
	wrapped := cluster.NewClient(clnt, nil, record.NewFakeRecorder(20))
	q := quota.NewTracker(2)
	bus := eventbus.New(32)
	cfg := config.Default()
	cfg.PrivilegedIdentities = []string{"platform-admin"}
	return intent.New(wrapped, q, bus, cfg), bus
}

var _ = Describe("testing: service.go Create", func() {
	It("creates a new store and records an activity entry", func() {
		svc, bus := newHarness()
		defer bus.Close()

		snap, created, err := svc.Create(context.Background(), "acme", "woocommerce", "", "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(created).To(BeTrue())
		Expect(snap.Owner).To(Equal("alice"))
		Expect(snap.Phase).To(Equal(string(storev1alpha1.PhasePending)))

		log := bus.Durable.Since("acme", time.Time{})
		Expect(log).To(HaveLen(1))
		Expect(log[0].Event).To(Equal(storev1alpha1.EventProvisioningStart))
	})

	It("resolves an empty owner to the caller identity, then to default", func() {
		svc, bus := newHarness()
		defer bus.Close()

		snap, _, err := svc.Create(context.Background(), "store-a", "woocommerce", "", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(snap.Owner).To(Equal("default"))
	})

	It("is idempotent on an identical resend", func() {
		svc, bus := newHarness()
		defer bus.Close()

		_, created1, err := svc.Create(context.Background(), "acme", "woocommerce", "", "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(created1).To(BeTrue())

		snap2, created2, err := svc.Create(context.Background(), "acme", "woocommerce", "", "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(created2).To(BeFalse())
		Expect(snap2.Owner).To(Equal("alice"))
	})

	It("rejects a resend that changes owner with a conflict", func() {
		svc, bus := newHarness()
		defer bus.Close()

		_, _, err := svc.Create(context.Background(), "acme", "woocommerce", "", "alice")
		Expect(err).NotTo(HaveOccurred())

		_, _, err = svc.Create(context.Background(), "acme", "woocommerce", "", "bob")
		Expect(apierrors.HTTPStatus(err)).To(Equal(409))
	})

	It("rejects an invalid engine", func() {
		svc, bus := newHarness()
		defer bus.Close()

		_, _, err := svc.Create(context.Background(), "acme", "not-a-real-engine", "", "alice")
		Expect(apierrors.HTTPStatus(err)).To(Equal(400))
	})

	It("rejects a create once the owner's quota is exhausted", func() {
		svc, bus := newHarness()
		defer bus.Close()

		_, _, err := svc.Create(context.Background(), "store-1", "woocommerce", "", "alice")
		Expect(err).NotTo(HaveOccurred())
		_, _, err = svc.Create(context.Background(), "store-2", "woocommerce", "", "alice")
		Expect(err).NotTo(HaveOccurred())

		_, _, err = svc.Create(context.Background(), "store-3", "woocommerce", "", "alice")
		Expect(apierrors.HTTPStatus(err)).To(Equal(400))
	})
})

var _ = Describe("testing: service.go Get/List/Delete ownership scoping", func() {
	It("forbids a caller who does not own the store", func() {
		svc, bus := newHarness()
		defer bus.Close()

		_, _, err := svc.Create(context.Background(), "acme", "woocommerce", "", "alice")
		Expect(err).NotTo(HaveOccurred())

		_, err = svc.Get(context.Background(), "acme", "mallory")
		Expect(apierrors.HTTPStatus(err)).To(Equal(403))
	})

	It("allows a privileged identity to see any store", func() {
		svc, bus := newHarness()
		defer bus.Close()

		_, _, err := svc.Create(context.Background(), "acme", "woocommerce", "", "alice")
		Expect(err).NotTo(HaveOccurred())

		snap, err := svc.Get(context.Background(), "acme", "platform-admin")
		Expect(err).NotTo(HaveOccurred())
		Expect(snap.Name).To(Equal("acme"))
	})

	It("lists only the stores visible to the caller", func() {
		svc, bus := newHarness()
		defer bus.Close()

		_, _, err := svc.Create(context.Background(), "acme", "woocommerce", "", "alice")
		Expect(err).NotTo(HaveOccurred())
		_, _, err = svc.Create(context.Background(), "bobco", "woocommerce", "", "bob")
		Expect(err).NotTo(HaveOccurred())

		list, err := svc.List(context.Background(), "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(list).To(HaveLen(1))
		Expect(list[0].Name).To(Equal("acme"))
	})

	It("treats deleting an already-gone store as success", func() {
		svc, bus := newHarness()
		defer bus.Close()

		Expect(svc.Delete(context.Background(), "ghost", "alice")).To(Succeed())
	})

	It("deletes a store the caller owns", func() {
		svc, bus := newHarness()
		defer bus.Close()

		_, _, err := svc.Create(context.Background(), "acme", "woocommerce", "", "alice")
		Expect(err).NotTo(HaveOccurred())

		Expect(svc.Delete(context.Background(), "acme", "alice")).To(Succeed())
	})
})

var _ = Describe("testing: service.go Subscribe", func() {
	It("streams an initial snapshot then subsequent visible events", func() {
		svc, bus := newHarness()
		defer bus.Close()

		_, _, err := svc.Create(context.Background(), "acme", "woocommerce", "", "alice")
		Expect(err).NotTo(HaveOccurred())

		result, err := svc.Subscribe(context.Background(), "alice")
		Expect(err).NotTo(HaveOccurred())
		defer result.Close()
		Expect(result.Initial).To(HaveLen(1))

		bus.Record("acme", storev1alpha1.ActivityLogEntry{Event: storev1alpha1.EventHelmInstalled, Message: "helm installed"})
		Eventually(result.Events).Should(Receive(WithTransform(
			func(e eventbus.Event) string { return e.Store },
			Equal("acme"),
		)))
	})
})
