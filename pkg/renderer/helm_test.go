/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and storeplatform contributors
SPDX-License-Identifier: Apache-2.0
*/

package renderer_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sap-labs-oss/storeplatform/pkg/renderer"
)

var _ = Describe("testing: helm.go NewHelmRenderer", func() {
	It("satisfies the Renderer interface", func() {
		var r renderer.Renderer = renderer.NewHelmRenderer(map[string]string{"woocommerce": "/charts/woocommerce"})
		Expect(r).NotTo(BeNil())
	})
})
