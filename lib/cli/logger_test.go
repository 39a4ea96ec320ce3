// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLoggerJSONWhenNotTerminal(t *testing.T) {
	var output bytes.Buffer
	logger := newLogger(&output, false, false)
	logger.Info("offer ready", "fingerprint", "abcd")

	var record map[string]any
	if err := json.Unmarshal(output.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, output.String())
	}
	if record["msg"] != "offer ready" || record["fingerprint"] != "abcd" {
		t.Errorf("record = %v", record)
	}
}

func TestLoggerTextOnTerminal(t *testing.T) {
	var output bytes.Buffer
	logger := newLogger(&output, true, false)
	logger.Info("offer ready")
	if !strings.Contains(output.String(), "msg=\"offer ready\"") {
		t.Errorf("text output = %q", output.String())
	}
}

func TestLoggerVerboseEnablesDebug(t *testing.T) {
	var quiet, verbose bytes.Buffer
	newLogger(&quiet, false, false).Debug("ice state", "state", "checking")
	newLogger(&verbose, false, true).Debug("ice state", "state", "checking")

	if quiet.Len() != 0 {
		t.Errorf("debug record emitted without verbose: %q", quiet.String())
	}
	if verbose.Len() == 0 {
		t.Error("debug record suppressed with verbose")
	}
}
