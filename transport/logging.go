// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pion/logging"
)

// LevelTrace is the slog level pion's trace records are written at.
const LevelTrace = slog.LevelDebug - 4

// slogLoggerFactory hands pion a LeveledLogger per subsystem scope
// (ice, dtls, sctp, ...), each writing to the same slog.Logger with a
// "pion" attribute naming the scope.
type slogLoggerFactory struct {
	logger *slog.Logger
}

var _ logging.LoggerFactory = (*slogLoggerFactory)(nil)

func newLoggerFactory(logger *slog.Logger) *slogLoggerFactory {
	return &slogLoggerFactory{logger: logger}
}

func (f *slogLoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &slogLeveledLogger{logger: f.logger.With("pion", scope)}
}

type slogLeveledLogger struct {
	logger *slog.Logger
}

var _ logging.LeveledLogger = (*slogLeveledLogger)(nil)

func (l *slogLeveledLogger) log(level slog.Level, message string) {
	l.logger.Log(context.Background(), level, message)
}

func (l *slogLeveledLogger) logf(level slog.Level, format string, args ...any) {
	if !l.logger.Enabled(context.Background(), level) {
		return
	}
	l.logger.Log(context.Background(), level, fmt.Sprintf(format, args...))
}

func (l *slogLeveledLogger) Trace(message string) { l.log(LevelTrace, message) }
func (l *slogLeveledLogger) Tracef(format string, args ...any) {
	l.logf(LevelTrace, format, args...)
}
func (l *slogLeveledLogger) Debug(message string) { l.log(slog.LevelDebug, message) }
func (l *slogLeveledLogger) Debugf(format string, args ...any) {
	l.logf(slog.LevelDebug, format, args...)
}
func (l *slogLeveledLogger) Info(message string) { l.log(slog.LevelInfo, message) }
func (l *slogLeveledLogger) Infof(format string, args ...any) {
	l.logf(slog.LevelInfo, format, args...)
}
func (l *slogLeveledLogger) Warn(message string) { l.log(slog.LevelWarn, message) }
func (l *slogLeveledLogger) Warnf(format string, args ...any) {
	l.logf(slog.LevelWarn, format, args...)
}
func (l *slogLeveledLogger) Error(message string) { l.log(slog.LevelError, message) }
func (l *slogLeveledLogger) Errorf(format string, args ...any) {
	l.logf(slog.LevelError, format, args...)
}
