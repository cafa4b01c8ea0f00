/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and storeplatform contributors
SPDX-License-Identifier: Apache-2.0
*/

package cmd

import (
	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	typedcorev1 "k8s.io/client-go/kubernetes/typed/core/v1"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/record"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	storev1alpha1 "github.com/sap-labs-oss/storeplatform/api/v1alpha1"
	"github.com/sap-labs-oss/storeplatform/internal/version"
	"github.com/sap-labs-oss/storeplatform/pkg/cluster"
)

// componentName is the event source component reported on recorded
// Kubernetes events.
const componentName = "storeplatform"

func newScheme() (*runtime.Scheme, error) {
	scheme := runtime.NewScheme()
	for _, add := range []func(*runtime.Scheme) error{
		clientgoscheme.AddToScheme,
		storev1alpha1.AddToScheme,
	} {
		if err := add(scheme); err != nil {
			return nil, errors.Wrap(err, "error building scheme")
		}
	}
	return scheme, nil
}

// buildClient wraps the in-cluster (or kubeconfig-resolved) REST config
// into a pkg/cluster.Client, the same discovery-client-plus-event-recorder
// shape the teacher's internal/clientfactory produces.
func buildClient(restConfig *rest.Config) (cluster.Client, error) {
	scheme, err := newScheme()
	if err != nil {
		return nil, err
	}

	httpClient, err := rest.HTTPClientFor(restConfig)
	if err != nil {
		return nil, errors.Wrap(err, "error building http client")
	}
	ctrlClient, err := client.New(restConfig, client.Options{HTTPClient: httpClient, Scheme: scheme})
	if err != nil {
		return nil, errors.Wrap(err, "error building controller-runtime client")
	}
	clientset, err := kubernetes.NewForConfigAndClient(restConfig, httpClient)
	if err != nil {
		return nil, errors.Wrap(err, "error building clientset")
	}

	broadcaster := record.NewBroadcaster()
	broadcaster.StartRecordingToSink(&typedcorev1.EventSinkImpl{Interface: clientset.CoreV1().Events("")})
	recorder := broadcaster.NewRecorder(scheme, corev1.EventSource{Component: componentName + "/" + version.GetVersion()})

	return cluster.NewClient(ctrlClient, clientset.Discovery(), recorder), nil
}

func restConfigOrDie() *rest.Config {
	return ctrl.GetConfigOrDie()
}
