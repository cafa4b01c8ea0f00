/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and storeplatform contributors
SPDX-License-Identifier: Apache-2.0
*/

// Command storeplatform runs the store provisioning control plane: its
// controller command runs the reconciling controller and the intent
// layer's HTTP server together in one process; a version command prints
// build information.
package main

import (
	"fmt"
	"os"

	"github.com/sap-labs-oss/storeplatform/cmd/storeplatform/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
