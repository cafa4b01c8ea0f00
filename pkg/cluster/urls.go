/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and storeplatform contributors
SPDX-License-Identifier: Apache-2.0
*/

package cluster

import (
	"context"
	"fmt"

	storev1alpha1 "github.com/sap-labs-oss/storeplatform/api/v1alpha1"
)

// ResolveURLs computes store's public storefront and admin URLs from the
// Provisioner's configured domain suffix. Implements pipeline.URLResolver;
// called once, on StorefrontReady's first success.
func (p *Provisioner) ResolveURLs(ctx context.Context, store *storev1alpha1.Store) (string, string, error) {
	url := fmt.Sprintf("https://%s.%s", store.Name, p.domainSuffix)
	adminURL := fmt.Sprintf("https://%s.%s/admin", store.Name, p.domainSuffix)
	return url, adminURL, nil
}
