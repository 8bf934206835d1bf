// SPDX-License-Identifier: Apache-2.0

// Package logging provides the structured logger used across the loader
// daemon. It mirrors the shape of a CLI-facing logger: a handful of
// named events plus a generic leveled Info/Warn/Error, so call sites read
// as "what happened" rather than "format this string".
package logging

import "github.com/pterm/pterm"

// Logger is the logging surface consumed by the loader components (C6-C9).
type Logger interface {
	LogDiscovery(folder string)
	LogStage(folder, stage string)
	LogSuccess(folder string, attempts int)
	LogAlert(severity, message, folder string)
	LogRetry(attempt int, delay string, err error)

	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type ptermLogger struct {
	logger pterm.Logger
}

type noopLogger struct{}

// New returns the production logger, backed by pterm's structured logger.
func New() Logger {
	return &ptermLogger{logger: pterm.DefaultLogger}
}

// NewNoop returns a logger that discards everything, for tests and the
// in-memory fakes used by the loader/dispatch unit tests.
func NewNoop() Logger {
	return &noopLogger{}
}

func (l *ptermLogger) LogDiscovery(folder string) {
	l.logger.Info("discovered folder", l.logger.Args("folder", folder))
}

func (l *ptermLogger) LogStage(folder, stage string) {
	l.logger.Info("load stage", l.logger.Args("folder", folder, "stage", stage))
}

func (l *ptermLogger) LogSuccess(folder string, attempts int) {
	l.logger.Info("load succeeded", l.logger.Args("folder", folder, "attempts", attempts))
}

func (l *ptermLogger) LogAlert(severity, message, folder string) {
	l.logger.Warn("alert", l.logger.Args("severity", severity, "message", message, "folder", folder))
}

func (l *ptermLogger) LogRetry(attempt int, delay string, err error) {
	l.logger.Warn("retrying after transient failure", l.logger.Args("attempt", attempt, "delay", delay, "error", err))
}

func (l *ptermLogger) Info(msg string, args ...any)  { l.logger.Info(msg, l.logger.Args(args...)) }
func (l *ptermLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, l.logger.Args(args...)) }
func (l *ptermLogger) Error(msg string, args ...any) { l.logger.Error(msg, l.logger.Args(args...)) }

func (l *noopLogger) LogDiscovery(folder string)                    {}
func (l *noopLogger) LogStage(folder, stage string)                 {}
func (l *noopLogger) LogSuccess(folder string, attempts int)        {}
func (l *noopLogger) LogAlert(severity, message, folder string)     {}
func (l *noopLogger) LogRetry(attempt int, delay string, err error) {}
func (l *noopLogger) Info(msg string, args ...any)                  {}
func (l *noopLogger) Warn(msg string, args ...any)                  {}
func (l *noopLogger) Error(msg string, args ...any)                 {}
