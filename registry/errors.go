// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

package registry

import "errors"

var (
	// ErrNotFound is returned when no workflow matches the requested
	// name and version.
	ErrNotFound = errors.New("workflow not found")

	// ErrInactive is returned when the matched workflow exists but has
	// been deactivated.
	ErrInactive = errors.New("workflow is inactive")

	// ErrDuplicate is returned when registering a name and version that
	// already exists.
	ErrDuplicate = errors.New("workflow already registered")

	// ErrInvalidDefinition is returned when a workflow definition fails
	// validation.
	ErrInvalidDefinition = errors.New("invalid workflow definition")
)
