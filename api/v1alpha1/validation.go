/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and storeplatform contributors
SPDX-License-Identifier: Apache-2.0
*/

package v1alpha1

import (
	"fmt"
	"regexp"
)

// namePattern enforces: 3-30 chars, lowercase alphanumeric with hyphens,
// must start with a letter, must not end with a hyphen.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9-]{1,28}[a-z0-9]$`)

// ValidateName checks the Store identity constraints from the data model.
func ValidateName(name string) error {
	if len(name) < 3 || len(name) > 30 {
		return fmt.Errorf("name must be between 3 and 30 characters, got %d", len(name))
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("name %q must start with a letter, contain only lowercase alphanumerics and hyphens, and not end with a hyphen", name)
	}
	return nil
}

// ValidateEngine checks that engine is one of the known enum values.
func ValidateEngine(engine Engine) error {
	switch engine {
	case EngineMedusa, EngineWooCommerce:
		return nil
	default:
		return fmt.Errorf("unknown engine %q", engine)
	}
}

// ValidateOwner checks the owner field's length constraint.
func ValidateOwner(owner string) error {
	if len(owner) > 64 {
		return fmt.Errorf("owner must be at most 64 characters, got %d", len(owner))
	}
	return nil
}
