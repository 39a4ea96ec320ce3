// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads webtty's optional configuration file.
//
// The file is named by the --config flag or the WEBTTY_CONFIG
// environment variable. There is no automatic discovery: without
// either, [Default] is used as is. YAML is the native format; files
// ending in .json or .jsonc are accepted too, with comments and
// trailing commas stripped by tidwall/jsonc before parsing.
//
// Command-line flags are applied on top of the loaded values by the
// command itself; this package only knows about the file.
package config
