// Package services defines the business logic for form-location binding and
// sequential patient identifier generation. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer.
package services

import "errors"

var (
	// ErrInvalidForm is returned when a nil or not-yet-persisted form is
	// passed to a bind or unbind operation. Forms only receive their
	// identity on first insert, so binding must wait for it.
	ErrInvalidForm = errors.New("form must be saved before binding")

	// ErrInvalidIdentifierFormat is returned when a patient's stored
	// identifier, after stripping the configured prefix, does not parse as
	// an integer. This aborts the triggering save; it is never retried.
	ErrInvalidIdentifierFormat = errors.New("invalid patient identifier format")
)
