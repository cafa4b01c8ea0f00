/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and storeplatform contributors
SPDX-License-Identifier: Apache-2.0
*/

package cmd

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	storev1alpha1 "github.com/sap-labs-oss/storeplatform/api/v1alpha1"
	"github.com/sap-labs-oss/storeplatform/internal/api"
	"github.com/sap-labs-oss/storeplatform/internal/config"
	"github.com/sap-labs-oss/storeplatform/pkg/cluster"
	"github.com/sap-labs-oss/storeplatform/pkg/eventbus"
	"github.com/sap-labs-oss/storeplatform/pkg/gate"
	"github.com/sap-labs-oss/storeplatform/pkg/intent"
	"github.com/sap-labs-oss/storeplatform/pkg/quota"
	"github.com/sap-labs-oss/storeplatform/pkg/reconciler"
	"github.com/sap-labs-oss/storeplatform/pkg/renderer"
)

const controllerUsage = `Run the store provisioning control plane: the reconciling controller
and the intent layer's HTTP API in a single process, sharing one event
bus and one per-owner quota tracker so a websocket subscriber sees every
pipeline event the reconciler emits, and a deletion the intent layer
drives is reflected back into the same quota count.`

func newControllerCmd() *cobra.Command {
	cfg := config.Default()
	var chartPaths map[string]string
	var releaseNamespace string

	cmd := &cobra.Command{
		Use:          "controller",
		Short:        "Run the store provisioning control plane",
		Long:         controllerUsage,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return runController(cfg, chartPaths, releaseNamespace)
		},
	}

	flags := cmd.Flags()
	cfg.BindFlags(flags)
	flags.StringToStringVar(&chartPaths, "chart-path", map[string]string{"medusa": "/charts/medusa", "woocommerce": "/charts/woocommerce"}, "engine to Helm chart path mapping")
	flags.StringVar(&releaseNamespace, "release-namespace", "storeplatform-system", "namespace release-state ConfigMaps are persisted in")

	return cmd
}

func runController(cfg *config.Config, chartPaths map[string]string, releaseNamespace string) error {
	log.SetLogger(zap.New(zap.UseDevMode(false)))
	logger := log.Log.WithName("controller")

	scheme, err := newScheme()
	if err != nil {
		return err
	}

	mgr, err := ctrl.NewManager(restConfigOrDie(), ctrl.Options{
		Scheme:                 scheme,
		Metrics:                metricsserver.Options{BindAddress: cfg.MetricsAddress},
		HealthProbeBindAddress: cfg.HealthAddress,
	})
	if err != nil {
		return errors.Wrap(err, "error creating manager")
	}

	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		return errors.Wrap(err, "error adding healthz check")
	}
	if err := mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		return errors.Wrap(err, "error adding readyz check")
	}

	clnt, err := buildClient(mgr.GetConfig())
	if err != nil {
		return err
	}

	// One bus, one quota tracker, one gate: the reconciler and the
	// intent layer share every platform-wide singleton because they
	// run in this one process, not two.
	partitions := cluster.NewProvisioner(clnt, cfg.DomainSuffix)
	tracker := renderer.NewTracker(clnt, releaseNamespace)
	engine := renderer.NewHelmRenderer(chartPaths)
	releases := renderer.NewManager(engine, tracker, cfg.RendererTimeout())
	bus := eventbus.New(cfg.DurableStreamRetention)
	defer bus.Close()
	g := gate.New(cfg.MaxConcurrentReconciles)
	q := quota.NewTracker(cfg.PerOwnerStoreCap)

	if err := resyncQuota(context.Background(), clnt, q); err != nil {
		return errors.Wrap(err, "error resyncing quota tracker")
	}

	r := reconciler.New(clnt, partitions, releases, bus, g, q, cfg)
	if err := r.SetupWithManager(mgr); err != nil {
		return errors.Wrap(err, "error setting up reconciler")
	}

	svc := intent.New(clnt, q, bus, cfg)
	srv := api.NewServer(cfg.ListenAddress, svc, bus, cfg)
	if err := mgr.Add(srv); err != nil {
		return errors.Wrap(err, "error adding intent API server")
	}

	logger.Info("starting manager",
		"driftInterval", cfg.DriftInterval().String(),
		"listenAddress", cfg.ListenAddress,
		"startedAt", time.Now().UTC().Format(time.RFC3339))
	if err := mgr.Start(ctrl.SetupSignalHandler()); err != nil {
		return errors.Wrap(err, "error running manager")
	}
	return nil
}

// resyncQuota lists every existing Store and replaces q's tracked counts
// wholesale (spec: "on process restart"), so a restart doesn't silently
// stop enforcing the per-owner cap against stores that already exist.
func resyncQuota(ctx context.Context, clnt cluster.Client, q *quota.Tracker) error {
	list := &storev1alpha1.StoreList{}
	if err := clnt.List(ctx, list); err != nil {
		return errors.Wrap(err, "error listing stores")
	}
	counts := make(map[string]int, len(list.Items))
	for _, store := range list.Items {
		if !store.DeletionTimestamp.IsZero() {
			continue
		}
		counts[store.Spec.Owner]++
	}
	q.Resync(counts)
	return nil
}
