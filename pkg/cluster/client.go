/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and storeplatform contributors
SPDX-License-Identifier: Apache-2.0
*/

// Package cluster wraps the controller-runtime client with the
// discovery and event-recording capabilities the reconciler needs, and
// layers the tenant-partition domain operations (Provisioner) on top of
// it: every external object a Store owns is reached through this
// package, never directly from pkg/reconciler or pkg/pipeline.
package cluster

import (
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/tools/record"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// Client extends the controller-runtime client by discovery and event
// recording capabilities.
type Client interface {
	client.Client
	DiscoveryClient() discovery.DiscoveryInterface
	EventRecorder() record.EventRecorder
}

// NewClient wraps clnt with the given discovery client and event recorder.
func NewClient(clnt client.Client, discoveryClient discovery.DiscoveryInterface, eventRecorder record.EventRecorder) Client {
	return &clientImpl{
		Client:          clnt,
		discoveryClient: discoveryClient,
		eventRecorder:   eventRecorder,
	}
}

type clientImpl struct {
	client.Client
	discoveryClient discovery.DiscoveryInterface
	eventRecorder   record.EventRecorder
}

func (c *clientImpl) DiscoveryClient() discovery.DiscoveryInterface {
	return c.discoveryClient
}

func (c *clientImpl) EventRecorder() record.EventRecorder {
	return c.eventRecorder
}
