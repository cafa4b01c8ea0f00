/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and storeplatform contributors
SPDX-License-Identifier: Apache-2.0
*/

package renderer

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"

	"github.com/pkg/errors"
)

// HelmRenderer is the one production Renderer: it shells out to the helm
// binary to install/upgrade and uninstall a store's chart release into its
// tenant partition, the teacher's clm/internal/release state-tracking
// pattern paired with an actual chart engine invocation rather than a
// second in-cluster reimplementation of Helm.
type HelmRenderer struct {
	// binary is the helm executable path, usually just "helm" resolved
	// against PATH.
	binary string
	// chartPath maps an engine name to the local chart directory or
	// chart reference helm install accepts.
	chartPath map[string]string
}

// NewHelmRenderer builds a HelmRenderer resolving engine to chart via
// chartPath (e.g. {"medusa": "/charts/medusa", "woocommerce":
// "/charts/woocommerce"}).
func NewHelmRenderer(chartPath map[string]string) *HelmRenderer {
	return &HelmRenderer{binary: "helm", chartPath: chartPath}
}

var _ Renderer = (*HelmRenderer)(nil)

// Apply runs `helm upgrade --install` for req, the same call whether this
// is the release's first install or a later reconcile, and reports the
// state Helm leaves the release in.
func (h *HelmRenderer) Apply(ctx context.Context, req Request) (State, error) {
	chart, ok := h.chartPath[req.Engine]
	if !ok {
		return StateUnknown, errors.Errorf("no chart configured for engine %q", req.Engine)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, h.binary,
		"upgrade", "--install", req.Name, chart,
		"--namespace", req.Partition,
		"--wait=false",
		"--output", "json",
	)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return StateFailed, errors.Wrapf(ErrEngineUnavailable, "helm upgrade --install failed for %s: %v: %s", req.Name, err, stderr.String())
	}

	state, err := h.status(ctx, req)
	if err != nil {
		return StateUnknown, err
	}
	return state, nil
}

// Purge runs `helm uninstall` for req, clearing a stuck release so a
// fresh Apply starts from nothing.
func (h *HelmRenderer) Purge(ctx context.Context, req Request) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, h.binary, "uninstall", req.Name, "--namespace", req.Partition, "--wait")
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if bytes.Contains(stderr.Bytes(), []byte("release: not found")) {
			return nil
		}
		return errors.Wrapf(ErrEngineUnavailable, "helm uninstall failed for %s: %v: %s", req.Name, err, stderr.String())
	}
	return nil
}

// status asks helm for the release's current status, the call Apply makes
// immediately after upgrade --install to translate Helm's own status enum
// into the renderer.State this package tracks.
func (h *HelmRenderer) status(ctx context.Context, req Request) (State, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, h.binary, "status", req.Name, "--namespace", req.Partition, "--output", "json")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return StateUnknown, errors.Wrapf(ErrEngineUnavailable, "helm status failed for %s: %v: %s", req.Name, err, stderr.String())
	}
	return parseHelmStatus(stdout.Bytes())
}

// helmStatusJSON is the slice of `helm status --output json` this package
// actually reads.
type helmStatusJSON struct {
	Info struct {
		Status string `json:"status"`
	} `json:"info"`
}

func parseHelmStatus(out []byte) (State, error) {
	var parsed helmStatusJSON
	if err := json.Unmarshal(out, &parsed); err != nil {
		return StateUnknown, errors.Wrap(err, "error parsing helm status output")
	}
	switch parsed.Info.Status {
	case "deployed":
		return StateDeployed, nil
	case "pending-install":
		return StatePendingInstall, nil
	case "pending-upgrade":
		return StatePendingUpgrade, nil
	case "failed":
		return StateFailed, nil
	case "uninstalled":
		return StateUninstalled, nil
	default:
		return StateUnknown, errors.Errorf("unrecognized helm release status %q", parsed.Info.Status)
	}
}
