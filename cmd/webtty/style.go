// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// styles renders the banners printed around token exchange. The
// renderer detects color support on its own writer, so piped output
// stays plain.
type styles struct {
	output io.Writer

	heading lipgloss.Style
	token   lipgloss.Style
	hint    lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
}

func newStyles(output io.Writer) *styles {
	renderer := lipgloss.NewRenderer(output)
	return &styles{
		output:  output,
		heading: renderer.NewStyle().Bold(true),
		token:   renderer.NewStyle().Foreground(lipgloss.Color("12")),
		hint:    renderer.NewStyle().Faint(true),
		warning: renderer.NewStyle().Foreground(lipgloss.Color("11")),
		failure: renderer.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	}
}

func (s *styles) headingf(format string, args ...any) {
	fmt.Fprintln(s.output, s.heading.Render(fmt.Sprintf(format, args...)))
}

func (s *styles) hintf(format string, args ...any) {
	fmt.Fprintln(s.output, s.hint.Render(fmt.Sprintf(format, args...)))
}

func (s *styles) warningf(format string, args ...any) {
	fmt.Fprintln(s.output, s.warning.Render(fmt.Sprintf(format, args...)))
}

func (s *styles) failuref(format string, args ...any) {
	fmt.Fprintln(s.output, s.failure.Render(fmt.Sprintf(format, args...)))
}

// showToken prints a token on its own line with blank lines around it
// so it can be selected cleanly, followed by its fingerprint.
func (s *styles) showToken(token, fingerprint string) {
	fmt.Fprintf(s.output, "\n%s\n\n", s.token.Render(token))
	s.hintf("fingerprint %s", fingerprint)
	fmt.Fprintln(s.output)
}
