// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// ErrorCategory classifies command errors so the exit status tells a
// script whether to fix its input or try again.
type ErrorCategory string

const (
	// CategoryValidation indicates invalid input: bad flags, an
	// undecodable token, an unreadable config file. Retrying with the
	// same input will not help.
	CategoryValidation ErrorCategory = "validation"

	// CategoryTransient indicates a failure that may succeed on retry:
	// relay unreachable, ICE failed, gathering timed out.
	CategoryTransient ErrorCategory = "transient"

	// CategoryInternal indicates an unexpected failure: PTY allocation,
	// peer connection construction, I/O on the local terminal.
	CategoryInternal ErrorCategory = "internal"
)

// Exit codes per category. 1 is left for uncategorized errors.
const (
	exitValidation = 2
	exitTransient  = 3
	exitInternal   = 4
)

// ToolError is a categorized error returned by commands. It wraps the
// inner error so errors.As still reaches typed errors underneath.
type ToolError struct {
	// Category classifies the error for the exit status.
	Category ErrorCategory

	// Err is the underlying error with the human-readable message.
	Err error

	// Hint is an optional next step printed after the message.
	Hint string
}

// Error returns the message, followed by the hint when one is set.
func (e *ToolError) Error() string {
	if e.Hint == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + "\n\n" + e.Hint
}

// Unwrap returns the underlying error.
func (e *ToolError) Unwrap() error { return e.Err }

// WithHint sets the hint and returns the receiver for chaining.
func (e *ToolError) WithHint(hint string) *ToolError {
	e.Hint = hint
	return e
}

// ExitCode maps the category to the process exit status.
func (e *ToolError) ExitCode() int {
	switch e.Category {
	case CategoryValidation:
		return exitValidation
	case CategoryTransient:
		return exitTransient
	case CategoryInternal:
		return exitInternal
	default:
		return 1
	}
}

// Validation creates a validation error: the caller provided bad input.
func Validation(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryValidation, Err: fmt.Errorf(format, args...)}
}

// Transient creates a transient error: a failure that may succeed on retry.
func Transient(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryTransient, Err: fmt.Errorf(format, args...)}
}

// Internal creates an internal error: an unexpected failure or I/O error.
func Internal(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryInternal, Err: fmt.Errorf(format, args...)}
}
