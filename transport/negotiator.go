// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/bureau-foundation/webtty/bootstrap"
)

var _ bootstrap.Negotiator = (*Negotiator)(nil)

// Negotiator drives the answering side of a PeerConnection.
type Negotiator struct {
	pc     *webrtc.PeerConnection
	logger *slog.Logger

	mu                sync.Mutex
	gatheringComplete func(localSDP string)
}

// NewNegotiator wraps pc.
func NewNegotiator(pc *webrtc.PeerConnection, logger *slog.Logger) *Negotiator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Negotiator{pc: pc, logger: logger}
}

func (n *Negotiator) SetRemoteDescription(sdp string) error {
	return n.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  sdp,
	})
}

func (n *Negotiator) CreateAnswer() (string, error) {
	answer, err := n.pc.CreateAnswer(nil)
	if err != nil {
		return "", err
	}
	return answer.SDP, nil
}

// SetLocalDescription applies the answer and starts ICE gathering. The
// OnGatheringComplete handler receives the final SDP when gathering
// finishes. If gathering outlasts the timeout the handler receives
// whatever candidates were gathered by then.
func (n *Negotiator) SetLocalDescription(sdp string) error {
	gatherComplete := webrtc.GatheringCompletePromise(n.pc)
	if err := n.pc.SetLocalDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  sdp,
	}); err != nil {
		return err
	}

	go func() {
		select {
		case <-gatherComplete:
		case <-time.After(iceGatherTimeout):
			n.logger.Warn("ICE gathering timed out, answering with partial candidates",
				"timeout", iceGatherTimeout)
		}
		local := n.pc.LocalDescription()
		if local == nil {
			return
		}
		n.mu.Lock()
		handler := n.gatheringComplete
		n.mu.Unlock()
		if handler != nil {
			handler(local.SDP)
		}
	}()
	return nil
}

func (n *Negotiator) OnGatheringComplete(handler func(localSDP string)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.gatheringComplete = handler
}

func (n *Negotiator) OnSignalingStateChange(handler func(state string)) {
	n.pc.OnSignalingStateChange(func(state webrtc.SignalingState) {
		handler(state.String())
	})
}

func (n *Negotiator) OnICEConnectionStateChange(handler func(state string)) {
	n.pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		handler(state.String())
	})
}

// OnDataChannel calls handler with each data channel the offering side
// opens, wrapped as a DataChannel.
func (n *Negotiator) OnDataChannel(handler func(*DataChannel)) {
	n.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		n.logger.Debug("inbound data channel received", "label", dc.Label())
		handler(NewDataChannel(dc, n.logger))
	})
}
