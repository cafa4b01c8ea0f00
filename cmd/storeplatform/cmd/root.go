/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and storeplatform contributors
SPDX-License-Identifier: Apache-2.0
*/

package cmd

import (
	"github.com/spf13/cobra"
)

const rootUsage = `The store provisioning control plane

Common actions for storeplatform:
- storeplatform controller   Run the reconciler and the intent layer HTTP API
- storeplatform version      Show build version
`

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "storeplatform",
		Short:        "Store provisioning control plane",
		Long:         rootUsage,
		SilenceUsage: true,
	}

	cmd.AddCommand(
		newVersionCmd(),
		newControllerCmd(),
	)

	return cmd
}

// Execute runs the storeplatform root command.
func Execute() error {
	return newRootCmd().Execute()
}
