package timer

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/roomboard/go/internal/models"
	"github.com/mcdev12/roomboard/go/internal/store"
)

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) clockwork.Ticker
}

// State is the locally ticking view of a timer triple.
type State struct {
	Spec        models.TimerSpec
	CurrentTime int64 // seconds, never negative
	IsRunning   bool
	StartedAt   int64 // epoch ms, 0 once a countdown finished
}

// Timer converts the state back to its persisted shape
func (s State) Timer(updatedAt int64) models.Timer {
	t := models.Timer{
		Type:        s.Spec.Type(),
		CurrentTime: s.CurrentTime,
		IsRunning:   s.IsRunning,
		StartedAt:   s.StartedAt,
		UpdatedAt:   updatedAt,
	}
	if cd, ok := s.Spec.(models.Countdown); ok {
		t.TargetTime = cd.TargetTime
	}
	return t
}

// Fields are the leaves a write-back merges into .../rooms/{id}/timer.
// The type tag is never written.
func (s State) Fields(updatedAt int64) map[string]any {
	fields := map[string]any{
		"currentTime": s.CurrentTime,
		"isRunning":   s.IsRunning,
		"startedAt":   s.StartedAt,
		"updatedAt":   updatedAt,
	}
	if cd, ok := s.Spec.(models.Countdown); ok {
		fields["targetTime"] = cd.TargetTime
	}
	return fields
}

// anchor identifies one timer instance; ticks of the same instance share it.
type anchor struct {
	typ        models.TimerType
	targetTime int64
	startedAt  int64
	isRunning  bool
}

func anchorOf(s State) anchor {
	a := anchor{typ: s.Spec.Type(), startedAt: s.StartedAt, isRunning: s.IsRunning}
	if cd, ok := s.Spec.(models.Countdown); ok {
		a.targetTime = cd.TargetTime
	}
	return a
}

// heldBy reports whether the stored timer value is still the instance a is
// anchored on. An unstamped schedule also accepts the triple before its start
// was written.
func (a anchor) heldBy(current any, unstamped bool) bool {
	if current == nil {
		return false
	}
	var t models.Timer
	if err := store.Decode(current, &t); err != nil {
		return false
	}
	if t.Type != a.typ || t.TargetTime != a.targetTime {
		return false
	}
	return t.StartedAt == a.startedAt || (unstamped && t.StartedAt == 0)
}

// elapsedSeconds is floor((now-startedAt)/1000), never negative
func elapsedSeconds(now time.Time, startedAt int64) int64 {
	ms := now.UnixMilli() - startedAt
	if ms < 0 {
		return 0
	}
	return ms / 1000
}

// DeriveAt computes the state of a persisted triple at now. It reports false
// when there is no timer to show: an absent triple, an unknown type, a
// countdown without a positive target, or a countup that never started.
//
// A countdown that is meant to run but has no start is anchored at now.
// A countdown whose time has passed comes back finished and is never restarted.
func DeriveAt(now time.Time, t *models.Timer) (State, bool) {
	if t == nil {
		return State{}, false
	}
	spec, ok := models.SpecOf(*t)
	if !ok {
		return State{}, false
	}

	switch s := spec.(type) {
	case models.Countdown:
		if s.TargetTime <= 0 {
			return State{}, false
		}
		startedAt := t.StartedAt
		if startedAt == 0 {
			if !t.IsRunning {
				// finished or stopped
				return State{Spec: s, CurrentTime: 0, IsRunning: false, StartedAt: 0}, true
			}
			startedAt = now.UnixMilli()
		}
		remaining := s.TargetTime - elapsedSeconds(now, startedAt)
		if remaining <= 0 {
			return State{Spec: s, CurrentTime: 0, IsRunning: false, StartedAt: startedAt}, true
		}
		return State{Spec: s, CurrentTime: remaining, IsRunning: true, StartedAt: startedAt}, true

	case models.Countup:
		if t.StartedAt == 0 {
			return State{}, false
		}
		return State{Spec: s, CurrentTime: elapsedSeconds(now, t.StartedAt), IsRunning: true, StartedAt: t.StartedAt}, true
	}
	return State{}, false
}

// TickAt recomputes prev at now from its start. The second return is true
// exactly on the tick where a countdown reaches zero; finished states are
// returned unchanged.
func TickAt(now time.Time, prev State) (State, bool) {
	if !prev.IsRunning {
		return prev, false
	}

	switch s := prev.Spec.(type) {
	case models.Countdown:
		remaining := s.TargetTime - elapsedSeconds(now, prev.StartedAt)
		if remaining <= 0 {
			return State{Spec: s, CurrentTime: 0, IsRunning: false, StartedAt: 0}, true
		}
		return State{Spec: s, CurrentTime: remaining, IsRunning: true, StartedAt: prev.StartedAt}, false

	case models.Countup:
		return State{Spec: s, CurrentTime: elapsedSeconds(now, prev.StartedAt), IsRunning: true, StartedAt: prev.StartedAt}, false
	}
	return prev, false
}

// Engine binds DeriveAt and TickAt to a clock
type Engine struct {
	clock Clock
}

func NewEngine(clock Clock) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Engine{clock: clock}
}

func (e *Engine) DeriveInitial(t *models.Timer) (State, bool) {
	return DeriveAt(e.clock.Now(), t)
}

func (e *Engine) Tick(prev State) (next State, isTimeUp bool) {
	return TickAt(e.clock.Now(), prev)
}
