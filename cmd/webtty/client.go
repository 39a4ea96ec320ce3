// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/bureau-foundation/webtty/bootstrap"
	"github.com/bureau-foundation/webtty/bridge"
	"github.com/bureau-foundation/webtty/console"
	"github.com/bureau-foundation/webtty/lib/cli"
	"github.com/bureau-foundation/webtty/relay"
	"github.com/bureau-foundation/webtty/transport"
)

func runClient(ctx context.Context, settings *sessionSettings, logger *slog.Logger) error {
	out := newStyles(os.Stderr)
	stdin := newLineReader(os.Stdin)

	pc, err := transport.NewPeerConnection(settings.ice, logger)
	if err != nil {
		return cli.Internal("%w", err)
	}
	defer pc.Close()

	negotiator := transport.NewNegotiator(pc, logger)
	channels := make(chan *transport.DataChannel, 1)
	negotiator.OnDataChannel(func(channel *transport.DataChannel) {
		select {
		case channels <- channel:
		default:
			logger.Warn("ignoring extra data channel", "label", channel.Label())
			channel.Close()
		}
	})

	var uploader bootstrap.Uploader
	if pollInterval, err := settings.config.PollIntervalDuration(); err == nil {
		client, err := relay.New(relay.Options{
			BaseURL:      settings.config.Relay.URL,
			PollInterval: pollInterval,
			Logger:       logger,
		})
		if err != nil {
			return cli.Validation("%w", err)
		}
		uploader = client
	}

	presenter := &consolePresenter{styles: out, logger: logger}
	session := bootstrap.New(negotiator, presenter, uploader, bootstrap.Options{
		Logger: logger,
		Encode: settings.encode,
		Decode: settings.decode,
	})

	err = session.BeginFirst(ctx, settings.options.token, func() (string, error) {
		return stdin.ReadLine(ctx)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return cli.Validation("no usable offer token: %w", err)
	}

	channel, err := awaitChannel(ctx, session, channels)
	if err != nil || channel == nil {
		return err
	}

	select {
	case <-channel.Opened():
	case <-ctx.Done():
		return nil
	}
	return attachConsole(ctx, settings, channel, stdin, logger)
}

// awaitChannel waits for the host's data channel. A nil channel with a
// nil error means ctx ended.
func awaitChannel(ctx context.Context, session *bootstrap.Bootstrap, channels <-chan *transport.DataChannel) (*transport.DataChannel, error) {
	done := session.Done()
	for {
		select {
		case channel := <-channels:
			return channel, nil
		case <-done:
			if session.State() == bootstrap.Failed {
				return nil, cli.Transient("ICE connection failed").
					WithHint("The peers could not reach each other. Both sides may need a STUN server the other can use.")
			}
			// Delivered; keep waiting for the host.
			done = nil
		case <-ctx.Done():
			return nil, nil
		}
	}
}

// attachConsole bridges the local terminal to channel until either
// side ends the session. Keystrokes are read through stdin so anything
// typed ahead during token entry reaches the host.
func attachConsole(ctx context.Context, settings *sessionSettings, channel *transport.DataChannel, stdin io.Reader, logger *slog.Logger) error {
	local := console.NewWithReader(os.Stdin, stdin, os.Stdout, logger)
	if local.IsTerminal() {
		if err := local.MakeRaw(); err != nil {
			return cli.Internal("%w", err)
		}
		defer local.Restore()
	}
	local.SetTitle("webtty")
	local.Reset()

	consoleContext, stopConsole := context.WithCancel(ctx)
	defer stopConsole()
	local.Start(consoleContext)

	sessions := bridge.New(bridge.Options{Logger: logger})
	session := sessions.Attach(local, channel, bridge.AttachOptions{
		Bidirectional: !settings.options.readOnly,
		Buffered:      settings.config.Client.Buffered,
	})

	select {
	case <-session.Done():
		logger.Info("session ended by host")
	case <-ctx.Done():
		session.Detach()
	}
	if err := channel.Close(); err != nil {
		logger.Debug("closing channel", "error", err)
	}
	return nil
}
