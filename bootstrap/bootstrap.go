// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bureau-foundation/webtty/relay"
	"github.com/bureau-foundation/webtty/signaling"
)

// State is a bootstrap phase.
type State int

const (
	AwaitingToken State = iota
	Negotiating
	AwaitingAnswerDelivery
	Delivered
	Failed
)

func (s State) String() string {
	switch s {
	case AwaitingToken:
		return "awaiting-token"
	case Negotiating:
		return "negotiating"
	case AwaitingAnswerDelivery:
		return "awaiting-answer-delivery"
	case Delivered:
		return "delivered"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// iceFailed is the ICE connection state that ends a bootstrap.
const iceFailed = "failed"

// Negotiator is the peer connection, reduced to what answering needs.
type Negotiator interface {
	SetRemoteDescription(sdp string) error
	CreateAnswer() (sdp string, err error)
	SetLocalDescription(sdp string) error

	// OnGatheringComplete is called with the final local SDP, all
	// candidates included, once ICE gathering finishes.
	OnGatheringComplete(handler func(localSDP string))
	OnSignalingStateChange(handler func(state string))
	OnICEConnectionStateChange(handler func(state string))
}

// Uploader deposits a token at a relay location.
type Uploader interface {
	Upload(ctx context.Context, location, body string) error
}

// Presenter is the user-facing side.
type Presenter interface {
	// ShowAnswer displays the answer token for the user to carry back.
	ShowAnswer(token string)

	// ShowRelayed reports that the answer was uploaded to location.
	ShowRelayed(location string)

	// PromptRetry reports a rejected token and asks for another.
	PromptRetry(err error)

	// Log shows a progress or failure message.
	Log(message string)
}

// Options configures a Bootstrap.
type Options struct {
	// Logger receives structured records. Default: discard.
	Logger *slog.Logger

	// Encode configures the answer token. When the offer carries a
	// reply key the answer is sealed to it and Encode.Passphrase is
	// not used.
	Encode signaling.EncodeOptions

	// Decode supplies keys for sealed offers.
	Decode signaling.DecodeOptions
}

// Bootstrap is the answering-side session setup state machine.
type Bootstrap struct {
	negotiator Negotiator
	presenter  Presenter
	uploader   Uploader
	logger     *slog.Logger
	options    Options

	mu            sync.Mutex
	state         State
	beginning     bool
	pendingLocal  *string
	relayLocation string
	replyKey      string
	ctx           context.Context
	done          chan struct{}
	doneOnce      sync.Once
}

// New creates a Bootstrap in AwaitingToken and registers its handlers
// on negotiator. uploader may be nil when no relay is available; an
// offer naming a relay location then fails delivery with a RelayError.
func New(negotiator Negotiator, presenter Presenter, uploader Uploader, options Options) *Bootstrap {
	b := &Bootstrap{
		negotiator: negotiator,
		presenter:  presenter,
		uploader:   uploader,
		logger:     options.Logger,
		options:    options,
		state:      AwaitingToken,
		ctx:        context.Background(),
		done:       make(chan struct{}),
	}
	if b.logger == nil {
		b.logger = slog.New(slog.DiscardHandler)
	}

	negotiator.OnGatheringComplete(b.gatheringComplete)
	negotiator.OnSignalingStateChange(func(state string) {
		b.logger.Debug("signaling state changed", "state", state)
		b.presenter.Log("signaling state: " + state)
	})
	negotiator.OnICEConnectionStateChange(b.iceConnectionStateChange)
	return b
}

// State returns the current phase.
func (b *Bootstrap) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Done is closed when the bootstrap reaches Delivered or Failed.
func (b *Bootstrap) Done() <-chan struct{} {
	return b.done
}

// Begin starts negotiation from an offer token. It acts only in
// AwaitingToken with no other Begin in progress; otherwise the token
// is ignored and Begin returns nil.
//
// A token that fails to decode returns the *signaling.DecodeError; a
// rejected negotiation step returns a
// *NegotiationError. Both leave the state at AwaitingToken and are
// passed to Presenter.PromptRetry.
func (b *Bootstrap) Begin(ctx context.Context, token string) error {
	b.mu.Lock()
	if b.state != AwaitingToken || b.beginning {
		state := b.state
		b.mu.Unlock()
		b.logger.Debug("ignoring token", "state", state)
		return nil
	}
	b.beginning = true
	b.mu.Unlock()

	descriptor, err := b.negotiate(token)

	b.mu.Lock()
	b.beginning = false
	if err != nil {
		b.mu.Unlock()
		b.presenter.PromptRetry(err)
		return err
	}
	if b.state != AwaitingToken {
		// ICE failed while the steps ran.
		b.mu.Unlock()
		return nil
	}
	b.state = Negotiating
	b.relayLocation = descriptor.RelayLocation
	b.replyKey = descriptor.ReplyKey
	b.ctx = ctx
	pending := b.pendingLocal
	b.pendingLocal = nil
	b.mu.Unlock()

	b.logger.Info("negotiating",
		"fingerprint", signaling.Fingerprint(token),
		"relay", descriptor.RelayLocation != "",
		"sealed_reply", descriptor.ReplyKey != "")

	if pending != nil {
		b.gatheringComplete(*pending)
	}
	return nil
}

// negotiate decodes token and issues the three negotiation calls in
// order. It touches no Bootstrap state.
func (b *Bootstrap) negotiate(token string) (signaling.SessionDescriptor, error) {
	descriptor, err := signaling.Decode(signaling.ExtractToken(token), b.options.Decode)
	if err != nil {
		b.logger.Info("rejected offer token", "error", err)
		return signaling.SessionDescriptor{}, err
	}
	if descriptor.SDP == "" {
		err := &signaling.DecodeError{Stage: signaling.StageStructure, Err: errors.New("offer has an empty sdp")}
		b.logger.Info("rejected offer token", "error", err)
		return signaling.SessionDescriptor{}, err
	}

	fail := func(step Step, err error) (signaling.SessionDescriptor, error) {
		negotiationErr := &NegotiationError{Step: step, Err: err}
		b.logger.Warn("negotiation failed", "step", step, "error", err)
		b.presenter.Log(negotiationErr.Error())
		return signaling.SessionDescriptor{}, negotiationErr
	}

	if err := b.negotiator.SetRemoteDescription(descriptor.SDP); err != nil {
		return fail(StepSetRemoteDescription, err)
	}
	answer, err := b.negotiator.CreateAnswer()
	if err != nil {
		return fail(StepCreateAnswer, err)
	}
	if err := b.negotiator.SetLocalDescription(answer); err != nil {
		return fail(StepSetLocalDescription, err)
	}
	return descriptor, nil
}

// gatheringComplete moves Negotiating to AwaitingAnswerDelivery and
// delivers the answer.
func (b *Bootstrap) gatheringComplete(localSDP string) {
	b.mu.Lock()
	if b.beginning {
		b.pendingLocal = &localSDP
		b.mu.Unlock()
		return
	}
	if b.state != Negotiating {
		state := b.state
		b.mu.Unlock()
		b.logger.Debug("ignoring gathering complete", "state", state)
		return
	}
	b.state = AwaitingAnswerDelivery
	location, replyKey, ctx := b.relayLocation, b.replyKey, b.ctx
	b.mu.Unlock()

	b.deliver(ctx, localSDP, location, replyKey)
}

func (b *Bootstrap) deliver(ctx context.Context, localSDP, location, replyKey string) {
	options := b.options.Encode
	if replyKey != "" {
		options.Recipient = replyKey
		options.Passphrase = ""
	}
	token, err := signaling.Encode(signaling.SessionDescriptor{SDP: localSDP}, options)
	if err != nil {
		b.logger.Error("encoding answer", "error", err)
		b.presenter.Log(fmt.Sprintf("encoding answer: %v", err))
		return
	}

	if location == "" {
		b.presenter.ShowAnswer(token)
		b.finish(Delivered)
		return
	}

	if err := b.upload(ctx, location, token); err != nil {
		b.logger.Warn("relaying answer failed", "location", location, "error", err)
		b.presenter.Log(err.Error())
		return
	}
	b.logger.Info("answer relayed", "location", location, "fingerprint", signaling.Fingerprint(token))
	b.presenter.ShowRelayed(location)
	b.finish(Delivered)
}

// upload returns a *relay.RelayError on failure.
func (b *Bootstrap) upload(ctx context.Context, location, token string) error {
	if b.uploader == nil {
		return &relay.RelayError{Location: location, Err: errors.New("no relay configured")}
	}
	err := b.uploader.Upload(ctx, location, token)
	if err == nil {
		return nil
	}
	var relayErr *relay.RelayError
	if errors.As(err, &relayErr) {
		return relayErr
	}
	return &relay.RelayError{Location: location, Err: err}
}

// finish moves to a terminal state unless the bootstrap already failed.
func (b *Bootstrap) finish(state State) {
	b.mu.Lock()
	if b.state == Failed {
		b.mu.Unlock()
		return
	}
	b.state = state
	b.mu.Unlock()
	b.doneOnce.Do(func() { close(b.done) })
}

func (b *Bootstrap) iceConnectionStateChange(state string) {
	b.logger.Debug("ICE connection state changed", "state", state)
	b.presenter.Log("ICE connection state: " + state)
	if state != iceFailed {
		return
	}

	b.mu.Lock()
	previous := b.state
	b.state = Failed
	b.mu.Unlock()

	b.logger.Warn("ICE connection failed", "previous_state", previous)
	b.doneOnce.Do(func() { close(b.done) })
}

// BeginFirst tries preSupplied first (a URL fragment or command-line
// token), then falls back to interactive input until a token is
// accepted, interactive returns an error, or ctx ends. Blank input
// lines are skipped. Returns nil once negotiation has begun.
func (b *Bootstrap) BeginFirst(ctx context.Context, preSupplied string, interactive func() (string, error)) error {
	if strings.TrimSpace(preSupplied) != "" {
		err := b.Begin(ctx, preSupplied)
		if err == nil {
			return nil
		}
		b.logger.Info("pre-supplied token rejected, waiting for input", "error", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if b.State() != AwaitingToken {
			return nil
		}
		input, err := interactive()
		if err != nil {
			return fmt.Errorf("reading token: %w", err)
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		if err := b.Begin(ctx, input); err == nil {
			return nil
		}
	}
}
