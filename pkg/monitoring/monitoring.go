// SPDX-License-Identifier: Apache-2.0

// Package monitoring defines the outbound payload shapes and the pure
// delivery interface: transport (Snowplow tracker, Sentry, StatsD) is
// out of scope, only the contract matters.
package monitoring

import "time"

// Severity is one of the three AlertPayload levels.
type Severity string

const (
	SeverityInfo    Severity = "Info"
	SeverityWarning Severity = "Warning"
	SeverityError   Severity = "Error"
)

// SuccessPayload reports a completed load.
type SuccessPayload struct {
	App                string
	Base               string
	Ingestion          time.Time
	Started            time.Time
	Attempts           int
	ShreddingStarted   time.Time
	ShreddingCompleted time.Time
	Metrics            KVMetrics
}

// AlertPayload reports a non-fatal or fatal condition worth surfacing:
// duplicate delivery, orphaned folder, migration failure.
type AlertPayload struct {
	Severity Severity
	Message  string
	Folder   string // empty when not folder-scoped
	Tags     map[string]string
}

func Info(message, folder string) AlertPayload {
	return AlertPayload{Severity: SeverityInfo, Message: message, Folder: folder}
}

func Warning(message, folder string) AlertPayload {
	return AlertPayload{Severity: SeverityWarning, Message: message, Folder: folder}
}

func Error(message, folder string) AlertPayload {
	return AlertPayload{Severity: SeverityError, Message: message, Folder: folder}
}

// KVMetrics is a flat key/value metrics snapshot, shaped for a StatsD
// or stdout sink.
type KVMetrics map[string]float64

// Reporter is the pure delivery contract the load state machine, the
// dispatch loop, and the folder monitor all depend on. A concrete
// implementation (tracker/Sentry/StatsD) is out of scope; tests and the
// CLI wiring use Noop or a recording fake.
type Reporter interface {
	Success(SuccessPayload)
	Alert(AlertPayload)
	Metrics(KVMetrics)
}

// Noop discards every payload; used when no monitoring sink is configured.
type Noop struct{}

func (Noop) Success(SuccessPayload) {}
func (Noop) Alert(AlertPayload)     {}
func (Noop) Metrics(KVMetrics)      {}

var _ Reporter = Noop{}
