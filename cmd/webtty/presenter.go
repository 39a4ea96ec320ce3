// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"log/slog"

	"github.com/bureau-foundation/webtty/bootstrap"
	"github.com/bureau-foundation/webtty/signaling"
)

var _ bootstrap.Presenter = (*consolePresenter)(nil)

// consolePresenter shows bootstrap progress on the terminal.
type consolePresenter struct {
	styles *styles
	logger *slog.Logger
}

func (p *consolePresenter) ShowAnswer(token string) {
	p.styles.headingf("Answer created. Send the following answer to the host:")
	p.styles.showToken(token, signaling.Fingerprint(token))
	p.styles.hintf("Waiting for the host to connect...")
}

func (p *consolePresenter) ShowRelayed(location string) {
	p.styles.headingf("Answer sent through the relay. Waiting for the host to connect...")
}

func (p *consolePresenter) PromptRetry(err error) {
	p.styles.failuref("There was an error with the offer: %v", err)
	p.styles.headingf("Paste the offer token again and press enter:")
}

func (p *consolePresenter) Log(message string) {
	p.logger.Info(message)
}
