// SPDX-License-Identifier: Apache-2.0

package monitoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	successes []SuccessPayload
	alerts    []AlertPayload
}

func (r *recordingReporter) Success(p SuccessPayload) { r.successes = append(r.successes, p) }
func (r *recordingReporter) Alert(p AlertPayload)     { r.alerts = append(r.alerts, p) }
func (r *recordingReporter) Metrics(KVMetrics)        {}

func TestInfoWarningError_SetSeverity(t *testing.T) {
	assert.Equal(t, SeverityInfo, Info("already loaded", "s3://b/r=1/").Severity)
	assert.Equal(t, SeverityWarning, Warning("unloaded folder found", "s3://b/r=1/").Severity)
	assert.Equal(t, SeverityError, Error("migration failed", "s3://b/r=1/").Severity)
}

func TestNoop_DiscardsEverything(t *testing.T) {
	var r Reporter = Noop{}
	r.Success(SuccessPayload{})
	r.Alert(Info("x", "y"))
	r.Metrics(KVMetrics{"a": 1})
}

func TestReporter_RecordsPayloads(t *testing.T) {
	r := &recordingReporter{}
	var reporter Reporter = r

	reporter.Alert(Info("Folder is already loaded", "s3://bucket/run=1/"))
	require.Len(t, r.alerts, 1)
	assert.Equal(t, "s3://bucket/run=1/", r.alerts[0].Folder)
}
