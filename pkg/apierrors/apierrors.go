/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and storeplatform contributors
SPDX-License-Identifier: Apache-2.0
*/

// Package apierrors gives the intent layer a small set of structured
// errors it can map straight to an HTTP status, grounded on the
// r3e-network-service_layer errors package's code+status+message shape,
// trimmed to four kinds: validation, conflict, not-found and forbidden.
package apierrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an apierrors.Error for HTTP status mapping.
type Kind int

const (
	KindValidation Kind = iota
	KindConflict
	KindNotFound
	KindForbidden
)

// Error is a structured error the intent layer's HTTP transport can map
// directly to a status code without re-inspecting business logic.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Validation builds a 4xx error for a bad request: unknown name pattern,
// unknown engine, or a quota that has been exceeded.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// Conflict builds a 409 error: a store name already claimed by a
// different owner.
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// NotFound builds a 404 error.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Forbidden builds a 403 error: the caller's identity doesn't own the
// resource and isn't privileged.
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// HTTPStatus maps err to a status code, defaulting to 500 for anything
// that isn't an *Error.
func HTTPStatus(err error) int {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return http.StatusInternalServerError
	}
	switch apiErr.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
