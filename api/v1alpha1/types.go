/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and storeplatform contributors
SPDX-License-Identifier: Apache-2.0
*/

// Package v1alpha1 contains the Store custom resource definition: the
// declared intent for one tenant e-commerce deployment.
package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Finalizer is attached to a Store for the entire lifetime of the tenant
// partition it owns.
const Finalizer = "store.platform/finalizer"

// Engine is the e-commerce backend a Store is provisioned against.
type Engine string

const (
	EngineMedusa      Engine = "medusa"
	EngineWooCommerce Engine = "woocommerce"
)

// Phase is the coarse-grained lifecycle state of a Store, derived by the
// status manager from its conditions; never set directly by callers.
type Phase string

const (
	PhasePending      Phase = "Pending"
	PhaseProvisioning Phase = "Provisioning"
	PhaseReady        Phase = "Ready"
	PhaseFailed       Phase = "Failed"
	PhaseComingSoon   Phase = "ComingSoon"
	PhaseDeleting     Phase = "Deleting"
)

// ConditionType is one of the five pipeline stages, in pipeline order.
type ConditionType string

const (
	ConditionNamespaceReady  ConditionType = "NamespaceReady"
	ConditionHelmInstalled   ConditionType = "HelmInstalled"
	ConditionDatabaseReady   ConditionType = "DatabaseReady"
	ConditionBackendReady    ConditionType = "BackendReady"
	ConditionStorefrontReady ConditionType = "StorefrontReady"
)

// PipelineConditions lists the five known condition types in the fixed
// order the pipeline executes them.
var PipelineConditions = []ConditionType{
	ConditionNamespaceReady,
	ConditionHelmInstalled,
	ConditionDatabaseReady,
	ConditionBackendReady,
	ConditionStorefrontReady,
}

// ConditionStatus mirrors the three-valued status of a Condition.
type ConditionStatus string

const (
	ConditionTrue    ConditionStatus = "True"
	ConditionFalse   ConditionStatus = "False"
	ConditionUnknown ConditionStatus = "Unknown"
)

// Condition is a structured status row recording one orthogonal aspect of
// a Store's readiness.
type Condition struct {
	Type               ConditionType   `json:"type"`
	Status             ConditionStatus `json:"status"`
	Reason             string          `json:"reason,omitempty"`
	Message            string          `json:"message,omitempty"`
	LastTransitionTime metav1.Time     `json:"lastTransitionTime,omitempty"`
}

// ActivityLogEntry is one narrative, time-ordered event in a Store's
// bounded activity log.
type ActivityLogEntry struct {
	Timestamp metav1.Time `json:"timestamp"`
	Event     string      `json:"event"`
	Message   string      `json:"message,omitempty"`
}

// Known activity-log event tokens. Not exhaustive — stage implementations
// may emit additional uppercase tokens describing their own outcome.
const (
	EventProvisioningStart  = "PROVISIONING_START"
	EventNamespaceReady     = "NAMESPACE_READY"
	EventHelmInstalled      = "HELM_INSTALLED"
	EventHelmFailed         = "HELM_FAILED"
	EventDatabaseReady      = "DATABASE_READY"
	EventBackendReady       = "BACKEND_READY"
	EventStorefrontReady    = "STOREFRONT_READY"
	EventDriftDetected      = "DRIFT_DETECTED"
	EventCleanupStarted     = "CLEANUP_STARTED"
	EventCleanupComplete    = "CLEANUP_COMPLETE"
	EventComingSoon         = "COMING_SOON"
	EventProvisioningFailed = "PROVISIONING_FAILED"
)

// StoreSpec is set at creation and, apart from what's noted, immutable.
type StoreSpec struct {
	// Engine is the e-commerce backend; immutable after creation.
	Engine Engine `json:"engine"`
	// Owner is an opaque identity string, at most 64 characters; immutable
	// after creation.
	Owner string `json:"owner"`
}

// StoreStatus is mutated only by the reconciler.
type StoreStatus struct {
	Phase              Phase              `json:"phase,omitempty"`
	Conditions         []Condition        `json:"conditions,omitempty"`
	ActivityLog        []ActivityLogEntry `json:"activityLog,omitempty"`
	URL                string             `json:"url,omitempty"`
	AdminURL           string             `json:"adminUrl,omitempty"`
	RetryCount         int                `json:"retryCount,omitempty"`
	ObservedGeneration int64              `json:"observedGeneration,omitempty"`
	CreatedAt          *metav1.Time       `json:"createdAt,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:scope=Cluster

// Store is the declared intent for one tenant e-commerce deployment.
type Store struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   StoreSpec   `json:"spec,omitempty"`
	Status StoreStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// StoreList is a list of Store resources.
type StoreList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`

	Items []Store `json:"items"`
}
