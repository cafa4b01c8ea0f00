/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and storeplatform contributors
SPDX-License-Identifier: Apache-2.0
*/

package reconciler_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	storev1alpha1 "github.com/sap-labs-oss/storeplatform/api/v1alpha1"
	"github.com/sap-labs-oss/storeplatform/internal/metrics"
	"github.com/sap-labs-oss/storeplatform/pkg/reconciler"
)

var _ = Describe("testing: gauge.go GaugeRefresher", func() {
	It("sets stores_total from a fresh list", func() {
		clnt := fake.NewClientBuilder().
			WithScheme(newScheme()).
			WithObjects(
				&storev1alpha1.Store{ObjectMeta: metav1.ObjectMeta{Name: "ready-1"}, Status: storev1alpha1.StoreStatus{Phase: storev1alpha1.PhaseReady}},
				&storev1alpha1.Store{ObjectMeta: metav1.ObjectMeta{Name: "ready-2"}, Status: storev1alpha1.StoreStatus{Phase: storev1alpha1.PhaseReady}},
				&storev1alpha1.Store{ObjectMeta: metav1.ObjectMeta{Name: "failed-1"}, Status: storev1alpha1.StoreStatus{Phase: storev1alpha1.PhaseFailed}},
			).
			Build()

		g := reconciler.NewGaugeRefresher(clnt)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		Expect(g.Start(ctx)).To(Succeed())

		Expect(testutil.ToFloat64(metrics.StoresTotal.WithLabelValues(string(storev1alpha1.PhaseReady)))).To(Equal(2.0))
		Expect(testutil.ToFloat64(metrics.StoresTotal.WithLabelValues(string(storev1alpha1.PhaseFailed)))).To(Equal(1.0))
		Expect(testutil.ToFloat64(metrics.StoresTotal.WithLabelValues(string(storev1alpha1.PhasePending)))).To(Equal(0.0))
	})
})
