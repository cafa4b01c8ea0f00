/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and storeplatform contributors
SPDX-License-Identifier: Apache-2.0
*/

// Package renderer draws the boundary around the opaque template/chart
// engine the platform delegates to for stage 2 (HelmInstalled). The
// engine itself is out of scope: this package only tracks, per store,
// which release state the engine last reported and purges a stuck one
// before asking the engine to try again.
package renderer

import (
	"context"

	"github.com/pkg/errors"
)

// State mirrors the lifecycle states the teacher's clm/internal/release
// package persists for a Helm-managed release.
type State string

const (
	StateUnknown        State = ""
	StatePendingInstall State = "pending-install"
	StatePendingUpgrade State = "pending-upgrade"
	StateFailed         State = "failed"
	StateDeployed       State = "deployed"
	StateUninstalled    State = "uninstalled"
)

// Stuck reports whether a release in this state must be purged before the
// engine can be asked to install or upgrade again (spec stage 2).
func (s State) Stuck() bool {
	switch s {
	case StatePendingInstall, StatePendingUpgrade, StateFailed:
		return true
	default:
		return false
	}
}

// Request carries everything the engine needs to render and apply one
// store's release into its tenant partition.
type Request struct {
	Name      string
	Engine    string
	Partition string
}

// Renderer is the opaque external template engine boundary named as a
// Non-goal collaborator: this package never implements templating itself,
// only calls out to one.
type Renderer interface {
	// Apply renders req's inputs and applies the result into req.Partition,
	// returning the state the engine reports once the call returns (which
	// may still be pending, not necessarily Deployed).
	Apply(ctx context.Context, req Request) (State, error)
	// Purge removes a stuck release so a fresh Apply can proceed cleanly.
	Purge(ctx context.Context, req Request) error
}

// ErrEngineUnavailable wraps a Renderer error the caller should treat as
// retryable rather than a permanent failure of the store itself.
var ErrEngineUnavailable = errors.New("renderer: engine unavailable")
