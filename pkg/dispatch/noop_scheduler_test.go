// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/drphrozen/snowplow-rdb-loader/pkg/control"
)

func TestNoopScheduler_PausesWithinWindowAndResumesAfter(t *testing.T) {
	c := control.New()
	s := NewNoopScheduler([]NoopWindow{{Name: "nightly", When: "02:00", Duration: time.Hour}}, c, nil)

	s.tick = func() time.Time { return time.Date(2026, 7, 30, 2, 30, 0, 0, time.UTC) }
	s.apply()
	got := c.Get()
	assert.Equal(t, control.PhasePaused, got.Phase)
	assert.Equal(t, "nightly", got.Owner)

	s.tick = func() time.Time { return time.Date(2026, 7, 30, 3, 30, 0, 0, time.UTC) }
	s.apply()
	assert.Equal(t, control.PhaseIdle, c.Get().Phase)
}

func TestNoopScheduler_DoesNotPauseOutsideWindow(t *testing.T) {
	c := control.New()
	s := NewNoopScheduler([]NoopWindow{{Name: "nightly", When: "02:00", Duration: time.Hour}}, c, nil)
	s.tick = func() time.Time { return time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC) }

	s.apply()
	assert.Equal(t, control.PhaseIdle, c.Get().Phase)
}

func TestNoopScheduler_SkipsInvalidWindowWithoutPanicking(t *testing.T) {
	c := control.New()
	s := NewNoopScheduler([]NoopWindow{{Name: "broken", When: "not-a-time", Duration: time.Hour}}, c, nil)
	s.tick = func() time.Time { return time.Now() }

	assert.NotPanics(t, func() { s.apply() })
	assert.Equal(t, control.PhaseIdle, c.Get().Phase)
}
