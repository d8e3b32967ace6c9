//go:build property
// +build property

package timer

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/mcdev12/roomboard/go/internal/models"
)

// TestCountdownConvergence checks that ticking after any gap lands on the
// value computed directly from the anchor, and finishes at start+target.
func TestCountdownConvergence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("tick after a gap equals direct derivation", prop.ForAll(
		func(target int64, gapMs int64) bool {
			start := t0.UnixMilli()
			st, ok := DeriveAt(t0, countdown(target, start, true))
			if !ok || !st.IsRunning {
				return false
			}
			now := t0.Add(time.Duration(gapMs) * time.Millisecond)
			ticked, _ := TickAt(now, st)
			direct, _ := DeriveAt(now, countdown(target, start, true))
			return ticked.CurrentTime == direct.CurrentTime && ticked.IsRunning == direct.IsRunning
		},
		gen.Int64Range(1, 7200),
		gen.Int64Range(0, 3*7200*1000),
	))

	properties.Property("finishes at start + target", prop.ForAll(
		func(target int64) bool {
			st, _ := DeriveAt(t0, countdown(target, t0.UnixMilli(), true))
			before, up := TickAt(t0.Add(time.Duration(target)*time.Second-time.Millisecond), st)
			if up || !before.IsRunning || before.CurrentTime != 1 {
				return false
			}
			after, up := TickAt(t0.Add(time.Duration(target)*time.Second), before)
			return up && !after.IsRunning && after.CurrentTime == 0 && after.StartedAt == 0
		},
		gen.Int64Range(1, 7200),
	))

	properties.TestingRun(t)
}

// TestCountupMonotonic checks successive ticks never decrease and always
// equal floor((now-startedAt)/1000).
func TestCountupMonotonic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("countup is non-decreasing and exact", prop.ForAll(
		func(steps []int64) bool {
			start := t0.UnixMilli()
			st, ok := DeriveAt(t0, &models.Timer{Type: models.TimerTypeCountup, StartedAt: start, IsRunning: true})
			if !ok {
				return false
			}
			now := t0
			for _, step := range steps {
				now = now.Add(time.Duration(step) * time.Millisecond)
				next, up := TickAt(now, st)
				if up || next.CurrentTime < st.CurrentTime {
					return false
				}
				if next.CurrentTime != (now.UnixMilli()-start)/1000 {
					return false
				}
				st = next
			}
			return true
		},
		gen.SliceOf(gen.Int64Range(0, 5000)),
	))

	properties.TestingRun(t)
}

// TestTerminalIsIdempotent checks that a finished countdown never changes or re-signals.
func TestTerminalIsIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("terminal state is a fixed point", prop.ForAll(
		func(target int64, laterMs int64) bool {
			terminal := State{Spec: models.Countdown{TargetTime: target}, CurrentTime: 0, IsRunning: false, StartedAt: 0}
			next, up := TickAt(t0.Add(time.Duration(laterMs)*time.Millisecond), terminal)
			return !up && next == terminal
		},
		gen.Int64Range(1, 7200),
		gen.Int64Range(0, 1<<40),
	))

	properties.TestingRun(t)
}

// TestNotConfiguredDetection checks the three not-configured shapes.
func TestNotConfiguredDetection(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("zero target countdown and unstarted countup derive nothing", prop.ForAll(
		func(startedAt int64, running bool) bool {
			_, cd := DeriveAt(t0, &models.Timer{Type: models.TimerTypeCountdown, TargetTime: 0, StartedAt: startedAt, IsRunning: running})
			_, cu := DeriveAt(t0, &models.Timer{Type: models.TimerTypeCountup, StartedAt: 0, IsRunning: running})
			_, none := DeriveAt(t0, nil)
			return !cd && !cu && !none
		},
		gen.Int64Range(0, t0.UnixMilli()),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
