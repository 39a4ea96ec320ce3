// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts the time operations used by webtty's
// timer-driven code: the bridge's output flush debounce and the relay
// client's poll loop.
//
// Production code receives Real(). Tests receive Fake(), whose time
// only moves when Advance is called, so a 10 ms flush or a 300 ms poll
// interval can be stepped through deterministically without sleeping.
package clock
