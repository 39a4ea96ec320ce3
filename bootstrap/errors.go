// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bootstrap

import "fmt"

// Step names a negotiation call.
type Step string

const (
	StepSetRemoteDescription Step = "SetRemoteDescription"
	StepCreateAnswer         Step = "CreateAnswer"
	StepSetLocalDescription  Step = "SetLocalDescription"
)

// NegotiationError reports that the peer connection rejected a step.
// The bootstrap stays in AwaitingToken.
type NegotiationError struct {
	Step Step
	Err  error
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("negotiation failed at %s: %v", e.Step, e.Err)
}

func (e *NegotiationError) Unwrap() error { return e.Err }
