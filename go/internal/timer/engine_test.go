package timer

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/roomboard/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func at(d time.Duration) time.Time { return t0.Add(d) }

func countdown(target int64, startedAt int64, running bool) *models.Timer {
	return &models.Timer{Type: models.TimerTypeCountdown, TargetTime: target, StartedAt: startedAt, IsRunning: running, CurrentTime: target}
}

func TestDeriveNotConfigured(t *testing.T) {
	tests := []struct {
		name  string
		timer *models.Timer
	}{
		{"absent", nil},
		{"countdown without target", countdown(0, t0.UnixMilli(), true)},
		{"countdown negative target", countdown(-5, t0.UnixMilli(), true)},
		{"countup never started", &models.Timer{Type: models.TimerTypeCountup, IsRunning: true}},
		{"reset shape", &models.Timer{CurrentTime: 0, IsRunning: false, StartedAt: 0}},
		{"unknown type", &models.Timer{Type: "sideways", StartedAt: t0.UnixMilli()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := DeriveAt(at(time.Minute), tt.timer)
			assert.False(t, ok)
		})
	}
}

func TestDeriveCountdown(t *testing.T) {
	st, ok := DeriveAt(at(90*time.Second), countdown(120, t0.UnixMilli(), true))
	require.True(t, ok)
	assert.Equal(t, int64(30), st.CurrentTime)
	assert.True(t, st.IsRunning)
	assert.Equal(t, t0.UnixMilli(), st.StartedAt)
	assert.Equal(t, models.Countdown{TargetTime: 120}, st.Spec)

	// sub-second remainders floor the elapsed time
	st, _ = DeriveAt(at(90*time.Second+999*time.Millisecond), countdown(120, t0.UnixMilli(), true))
	assert.Equal(t, int64(30), st.CurrentTime)
}

func TestDeriveCountdownFinishedIsNotResurrected(t *testing.T) {
	st, ok := DeriveAt(at(125*time.Second), countdown(120, t0.UnixMilli(), true))
	require.True(t, ok)
	assert.Equal(t, int64(0), st.CurrentTime)
	assert.False(t, st.IsRunning)
	assert.Equal(t, t0.UnixMilli(), st.StartedAt)

	// persisted terminal shape
	st, ok = DeriveAt(at(time.Hour), countdown(120, 0, false))
	require.True(t, ok)
	assert.False(t, st.IsRunning)
	assert.Equal(t, int64(0), st.CurrentTime)
}

func TestDeriveLazyStart(t *testing.T) {
	now := at(10 * time.Second)
	st, ok := DeriveAt(now, countdown(60, 0, true))
	require.True(t, ok)
	assert.Equal(t, now.UnixMilli(), st.StartedAt)
	assert.Equal(t, int64(60), st.CurrentTime)
	assert.True(t, st.IsRunning)
}

func TestDeriveCountup(t *testing.T) {
	st, ok := DeriveAt(at(75*time.Second), &models.Timer{Type: models.TimerTypeCountup, StartedAt: t0.UnixMilli(), IsRunning: true})
	require.True(t, ok)
	assert.Equal(t, int64(75), st.CurrentTime)
	assert.True(t, st.IsRunning)
	assert.Equal(t, models.Countup{}, st.Spec)
}

func TestDeriveClampsFutureStart(t *testing.T) {
	// another client's clock is ahead of ours
	st, ok := DeriveAt(t0, countdown(30, at(5*time.Second).UnixMilli(), true))
	require.True(t, ok)
	assert.Equal(t, int64(30), st.CurrentTime)
}

func TestTickCountdownReachesTerminalOnce(t *testing.T) {
	st, _ := DeriveAt(t0, countdown(3, t0.UnixMilli(), true))

	st, up := TickAt(at(time.Second), st)
	assert.False(t, up)
	assert.Equal(t, int64(2), st.CurrentTime)

	// missed ticks self-correct from the anchor
	st, up = TickAt(at(3*time.Second), st)
	assert.True(t, up)
	assert.Equal(t, State{Spec: models.Countdown{TargetTime: 3}, CurrentTime: 0, IsRunning: false, StartedAt: 0}, st)

	again, up := TickAt(at(10*time.Second), st)
	assert.False(t, up)
	assert.Equal(t, st, again)
}

func TestTickCountupRecomputes(t *testing.T) {
	st, _ := DeriveAt(t0, &models.Timer{Type: models.TimerTypeCountup, StartedAt: t0.UnixMilli(), IsRunning: true})
	st, up := TickAt(at(time.Hour), st)
	assert.False(t, up)
	assert.Equal(t, int64(3600), st.CurrentTime)
	assert.True(t, st.IsRunning)
}

func TestStateFields(t *testing.T) {
	st := State{Spec: models.Countdown{TargetTime: 120}, CurrentTime: 30, IsRunning: true, StartedAt: 1000}
	assert.Equal(t, map[string]any{
		"currentTime": int64(30),
		"isRunning":   true,
		"startedAt":   int64(1000),
		"updatedAt":   int64(2000),
		"targetTime":  int64(120),
	}, st.Fields(2000))

	up := State{Spec: models.Countup{}, CurrentTime: 5, IsRunning: true, StartedAt: 1000}
	assert.NotContains(t, up.Fields(2000), "targetTime")
	assert.Equal(t, models.TimerTypeCountup, up.Timer(2000).Type)
}

func TestEngineUsesClock(t *testing.T) {
	fc := clockwork.NewFakeClockAt(t0)
	e := NewEngine(fc)

	st, ok := e.DeriveInitial(countdown(120, t0.UnixMilli(), true))
	require.True(t, ok)
	fc.Advance(90 * time.Second)
	st, up := e.Tick(st)
	assert.False(t, up)
	assert.Equal(t, int64(30), st.CurrentTime)
}
