// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// webtty shares a terminal session over a WebRTC data channel.
//
// With no token argument, webtty hosts: it starts a command on a PTY,
// prints an offer token, and waits for the answer. With a token (or a
// URL whose fragment is a token) it joins: it answers the offer and
// attaches the local terminal to the remote session.
//
// Usage:
//
//	webtty [flags]                 host a session
//	webtty [flags] <token|url>     join a session
//
// In one-way mode (-o) the host's offer names a relay location and a
// reply key; the client seals its answer to that key and uploads it, so
// nothing has to be pasted back to the host.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/webtty/lib/cli"
	"github.com/bureau-foundation/webtty/lib/config"
	"github.com/bureau-foundation/webtty/lib/version"
	"github.com/bureau-foundation/webtty/signaling"
	"github.com/bureau-foundation/webtty/transport"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "webtty: %v\n", err)
		var toolErr *cli.ToolError
		if errors.As(err, &toolErr) {
			os.Exit(toolErr.ExitCode())
		}
		os.Exit(1)
	}
}

// options holds the parsed command line.
type options struct {
	configPath     string
	command        string
	oneWay         bool
	nonInteractive bool
	readOnly       bool
	stunServers    []string
	relayURL       string
	passphraseFile string
	buffered       bool
	verbose        bool
	version        bool
	help           bool

	// token is the positional offer token or URL; empty means host.
	token string

	flagSet *pflag.FlagSet
}

func newFlagSet(opts *options) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("webtty", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "path to a YAML or JSONC config file (default: $"+config.EnvironmentVariable+")")
	flagSet.StringVarP(&opts.command, "cmd", "c", "bash", "command to run on the host PTY")
	flagSet.BoolVarP(&opts.oneWay, "one-way", "o", false, "exchange the answer through the relay instead of pasting it back")
	flagSet.BoolVar(&opts.nonInteractive, "non-interactive", false, "host without mirroring the session to the local terminal or reading local input")
	flagSet.BoolVar(&opts.readOnly, "read-only", false, "join without sending keystrokes")
	flagSet.StringArrayVar(&opts.stunServers, "stun", nil, "STUN server URL (repeatable; replaces the configured list)")
	flagSet.StringVar(&opts.relayURL, "relay-url", "", "relay base URL for one-way mode")
	flagSet.StringVar(&opts.passphraseFile, "passphrase-file", "", "seal tokens with the passphrase in this file")
	flagSet.BoolVar(&opts.buffered, "buffered", false, "coalesce remote output into one write per 10ms")
	flagSet.BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")
	flagSet.BoolVar(&opts.version, "version", false, "print version information and exit")
	flagSet.BoolVarP(&opts.help, "help", "h", false, "show help")
	flagSet.SortFlags = false
	return flagSet
}

// parseOptions parses arguments. It returns pflag.ErrHelp when help
// was requested.
func parseOptions(arguments []string) (*options, error) {
	opts := &options{}
	opts.flagSet = newFlagSet(opts)
	opts.flagSet.SetOutput(io.Discard)
	if err := opts.flagSet.Parse(arguments); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return opts, pflag.ErrHelp
		}
		return nil, cli.Validation("%w", err).WithHint("Run 'webtty --help' for usage.")
	}
	if opts.help {
		return opts, pflag.ErrHelp
	}

	switch positional := opts.flagSet.Args(); len(positional) {
	case 0:
	case 1:
		opts.token = positional[0]
	default:
		return nil, cli.Validation("expected at most one token argument, got %d", len(positional))
	}
	return opts, nil
}

// loadConfig loads the config file and applies flags that were set
// explicitly on top of it.
func (o *options) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, cli.Validation("%w", err).
			WithHint("Check the file against the documented sections: ice, relay, host, client, codec.")
	}

	if o.flagSet.Changed("cmd") {
		cfg.Host.Command = o.command
	}
	if o.flagSet.Changed("stun") {
		cfg.ICE.STUNServers = o.stunServers
	}
	if o.flagSet.Changed("relay-url") {
		cfg.Relay.URL = o.relayURL
	}
	if o.buffered {
		cfg.Client.Buffered = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, cli.Validation("%w", err)
	}
	return cfg, nil
}

// readPassphrase returns the first line of path, or "" when path is
// empty.
func readPassphrase(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", cli.Validation("reading passphrase: %w", err)
	}
	passphrase, _, _ := strings.Cut(string(data), "\n")
	passphrase = strings.TrimRight(passphrase, "\r")
	if passphrase == "" {
		return "", cli.Validation("passphrase file %s is empty", path)
	}
	return passphrase, nil
}

// sessionSettings is the resolved configuration both modes run with.
type sessionSettings struct {
	options    *options
	config     *config.Config
	passphrase string
	ice        transport.ICEConfig
	encode     signaling.EncodeOptions
	decode     signaling.DecodeOptions
}

func resolveSettings(opts *options) (*sessionSettings, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}
	passphrase, err := readPassphrase(opts.passphraseFile)
	if err != nil {
		return nil, err
	}
	compression, err := signaling.ParseCompression(cfg.Codec.Compression)
	if err != nil {
		return nil, cli.Validation("%w", err)
	}

	ice := transport.ICEConfigFromURLs(cfg.ICE.STUNServers)
	ice.IncludeLoopback = cfg.ICE.IncludeLoopback

	return &sessionSettings{
		options:    opts,
		config:     cfg,
		passphrase: passphrase,
		ice:        ice,
		encode:     signaling.EncodeOptions{Compression: compression, Passphrase: passphrase},
		decode:     signaling.DecodeOptions{Passphrase: passphrase},
	}, nil
}

func run(arguments []string) error {
	opts, err := parseOptions(arguments)
	if errors.Is(err, pflag.ErrHelp) {
		printHelp(opts.flagSet)
		return nil
	}
	if err != nil {
		return err
	}
	if opts.version {
		fmt.Println(version.Info())
		return nil
	}

	settings, err := resolveSettings(opts)
	if err != nil {
		return err
	}

	mode := "host"
	if opts.token != "" {
		mode = "client"
	}
	logger := cli.NewCommandLogger(opts.verbose).With("mode", mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.token == "" {
		return runHost(ctx, settings, logger)
	}
	return runClient(ctx, settings, logger)
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `webtty - share a terminal over WebRTC

Usage:
  webtty [flags]                 host a session and print an offer token
  webtty [flags] <token|url>     join the session the token describes

Examples:
  # Host bash; paste the answer back when the client prints it
  webtty

  # Host with the answer returned through the relay
  webtty -o

  # Join from a token, or from a link whose fragment is the token
  webtty 4Hq9...
  webtty 'https://example.org/webtty/#4Hq9...'

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
