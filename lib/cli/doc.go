// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli holds the pieces of command-line plumbing shared by
// webtty commands: categorized errors that map to exit codes, and the
// command logger.
//
// Commands return [*ToolError] values built with [Validation],
// [Transient], or [Internal]. main inspects the chain with errors.As
// and exits with [ToolError.ExitCode], printing the message and an
// optional hint.
package cli
