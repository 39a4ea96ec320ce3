// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pion/webrtc/v4"
)

// DataChannelLabel is the label of the terminal data channel.
const DataChannelLabel = "data"

// iceGatherTimeout is the maximum time to wait for ICE candidate
// gathering to complete before giving up on a description.
const iceGatherTimeout = 15 * time.Second

// NewPeerConnection creates a pion PeerConnection for config. pion's
// internal logs go to logger.
func NewPeerConnection(config ICEConfig, logger *slog.Logger) (*webrtc.PeerConnection, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	settingEngine := webrtc.SettingEngine{
		LoggerFactory: newLoggerFactory(logger),
	}
	settingEngine.SetIncludeLoopbackCandidate(config.IncludeLoopback)

	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine))
	pc, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers: config.Servers,
	})
	if err != nil {
		return nil, fmt.Errorf("creating PeerConnection: %w", err)
	}
	return pc, nil
}

// OpenDataChannel creates the ordered, reliable terminal channel on
// the offering side. It must be called before CreateOffer so the offer
// carries a data channel section.
func OpenDataChannel(pc *webrtc.PeerConnection, logger *slog.Logger) (*DataChannel, error) {
	ordered := true
	dc, err := pc.CreateDataChannel(DataChannelLabel, &webrtc.DataChannelInit{
		Ordered: &ordered,
	})
	if err != nil {
		return nil, fmt.Errorf("creating data channel %s: %w", DataChannelLabel, err)
	}
	return NewDataChannel(dc, logger), nil
}

// CreateOffer creates and sets the local offer, waits for ICE gathering
// to finish, and returns the complete SDP.
func CreateOffer(ctx context.Context, pc *webrtc.PeerConnection) (string, error) {
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("creating SDP offer: %w", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("setting local description: %w", err)
	}

	select {
	case <-gatherComplete:
	case <-time.After(iceGatherTimeout):
		return "", fmt.Errorf("ICE gathering timed out after %s", iceGatherTimeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return pc.LocalDescription().SDP, nil
}

// AcceptAnswer applies the remote answer on the offering side.
func AcceptAnswer(pc *webrtc.PeerConnection, sdp string) error {
	answer := webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  sdp,
	}
	if err := pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("setting remote description: %w", err)
	}
	return nil
}
