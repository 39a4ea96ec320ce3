// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/bureau-foundation/webtty/console"
	"github.com/bureau-foundation/webtty/host"
	"github.com/bureau-foundation/webtty/lib/cli"
	"github.com/bureau-foundation/webtty/lib/sealed"
	"github.com/bureau-foundation/webtty/relay"
	"github.com/bureau-foundation/webtty/signaling"
	"github.com/bureau-foundation/webtty/transport"
)

// channelOpenTimeout bounds the wait between applying the answer and
// the data channel opening.
const channelOpenTimeout = 30 * time.Second

// answerSource produces the client's answer for the host.
type answerSource func(ctx context.Context) (signaling.SessionDescriptor, error)

func runHost(ctx context.Context, settings *sessionSettings, logger *slog.Logger) error {
	out := newStyles(os.Stderr)
	stdin := newLineReader(os.Stdin)

	out.headingf("Setting up a webtty session.")

	pc, err := transport.NewPeerConnection(settings.ice, logger)
	if err != nil {
		return cli.Internal("%w", err)
	}
	defer pc.Close()

	iceFailed := make(chan struct{})
	var iceFailedOnce sync.Once
	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		logger.Debug("ICE connection state changed", "state", state.String())
		if state == webrtc.ICEConnectionStateFailed {
			iceFailedOnce.Do(func() { close(iceFailed) })
		}
	})

	channel, err := transport.OpenDataChannel(pc, logger)
	if err != nil {
		return cli.Internal("%w", err)
	}

	descriptor := signaling.SessionDescriptor{}
	var awaitAnswer answerSource
	if settings.options.oneWay {
		awaitAnswer, err = prepareRelayedAnswer(settings, &descriptor, logger)
		if err != nil {
			return err
		}
		out.warningf("One-way sessions rely on a third-party relay (%s) to carry the answer.", settings.config.Relay.URL)
	} else {
		awaitAnswer = pastedAnswer(stdin, settings.decode, out)
	}

	descriptor.SDP, err = transport.CreateOffer(ctx, pc)
	if err != nil {
		return cli.Transient("%w", err).WithHint("Check network access to the configured STUN servers, or pass --stun with a reachable server.")
	}
	token, err := signaling.Encode(descriptor, settings.encode)
	if err != nil {
		return cli.Internal("encoding offer: %w", err)
	}
	logger.Info("offer ready", "fingerprint", signaling.Fingerprint(token), "bytes", len(token))

	out.headingf("Connection ready. Here is your offer token:")
	out.showToken(token, signaling.Fingerprint(token))
	out.hintf("Run 'webtty <token>' on the other machine.")
	if !settings.options.oneWay {
		out.headingf("When you have the answer, paste it below and press enter:")
	}

	answer, err := awaitAnswer(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	if err := transport.AcceptAnswer(pc, answer.SDP); err != nil {
		return cli.Validation("%w", err).WithHint("The answer does not match this offer. Start a new session.")
	}
	out.hintf("Answer received, connecting...")

	select {
	case <-channel.Opened():
	case <-iceFailed:
		return cli.Transient("ICE connection failed").
			WithHint("The peers could not reach each other. Both sides may need a STUN server the other can use.")
	case <-time.After(channelOpenTimeout):
		return cli.Transient("data channel did not open within %s", channelOpenTimeout)
	case <-ctx.Done():
		return nil
	}

	return serveHost(ctx, settings, channel, stdin, out, logger)
}

// prepareRelayedAnswer fills the offer's relay location and reply key
// and returns a source that polls the relay for the sealed answer.
func prepareRelayedAnswer(settings *sessionSettings, descriptor *signaling.SessionDescriptor, logger *slog.Logger) (answerSource, error) {
	pollInterval, err := settings.config.PollIntervalDuration()
	if err != nil {
		return nil, cli.Validation("%w", err)
	}
	client, err := relay.New(relay.Options{
		BaseURL:      settings.config.Relay.URL,
		PollInterval: pollInterval,
		Logger:       logger,
	})
	if err != nil {
		return nil, cli.Validation("%w", err)
	}
	keypair, err := sealed.GenerateKeypair()
	if err != nil {
		return nil, cli.Internal("%w", err)
	}
	location, err := relay.NewLocation()
	if err != nil {
		return nil, cli.Internal("%w", err)
	}
	descriptor.RelayLocation = location
	descriptor.ReplyKey = keypair.PublicKey
	logger.Debug("relay location reserved", "url", client.URL(location))

	decode := settings.decode
	decode.Identities = []string{keypair.PrivateKey}
	return func(ctx context.Context) (signaling.SessionDescriptor, error) {
		body, err := client.Poll(ctx, location)
		if err != nil {
			return signaling.SessionDescriptor{}, cli.Transient("%w", err).
				WithHint("The relay could not be reached. Retry, or run without -o and paste the answer.")
		}
		answer, err := signaling.Decode(signaling.ExtractToken(body), decode)
		if err != nil {
			return signaling.SessionDescriptor{}, cli.Validation("relayed answer: %w", err)
		}
		return answer, nil
	}, nil
}

// pastedAnswer reads answer tokens from input until one decodes.
func pastedAnswer(input *lineReader, decode signaling.DecodeOptions, out *styles) answerSource {
	return func(ctx context.Context) (signaling.SessionDescriptor, error) {
		for {
			line, err := input.ReadLine(ctx)
			if errors.Is(err, context.Canceled) {
				return signaling.SessionDescriptor{}, err
			}
			if err != nil {
				return signaling.SessionDescriptor{}, cli.Validation("reading answer: %w", err)
			}
			if line == "" {
				continue
			}
			answer, err := signaling.Decode(signaling.ExtractToken(line), decode)
			if err == nil && answer.SDP == "" {
				err = errors.New("answer has an empty sdp")
			}
			if err == nil {
				return answer, nil
			}
			out.failuref("There was an error with the answer: %v", err)
			out.headingf("Paste the answer again and press enter:")
		}
	}
}

// serveHost runs the PTY session on the open channel.
func serveHost(ctx context.Context, settings *sessionSettings, channel *transport.DataChannel, stdin io.Reader, out *styles, logger *slog.Logger) error {
	options := host.Options{
		Command: settings.config.Host.Command,
		Logger:  logger,
	}

	local := console.Stdio(logger)
	if !settings.options.nonInteractive && local.IsTerminal() {
		out.headingf("Terminal session started:")
		if err := local.MakeRaw(); err != nil {
			return cli.Internal("%w", err)
		}
		defer local.Restore()
		local.Reset()
		local.SetTitle("webtty host")

		options.Mirror = true
		options.Output = os.Stdout
		options.Input = stdin
		options.Size = local.Size
	}

	if err := host.Serve(ctx, channel, options); err != nil {
		return cli.Internal("%w", err)
	}
	logger.Info("session ended")
	return nil
}
