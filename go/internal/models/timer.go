package models

// TimerType is the persisted tag of a timer triple
type TimerType string

const (
	TimerTypeCountdown TimerType = "countdown"
	TimerTypeCountup   TimerType = "countup"
)

// Valid reports whether t is one of the known timer types
func (t TimerType) Valid() bool {
	return t == TimerTypeCountdown || t == TimerTypeCountup
}

// Timer is the timer triple persisted inside a room record.
// CurrentTime is a derived snapshot; StartedAt and TargetTime are the anchor.
type Timer struct {
	Type        TimerType `json:"type,omitempty"`
	CurrentTime int64     `json:"currentTime"`
	TargetTime  int64     `json:"targetTime,omitempty"` // seconds, countdown only
	IsRunning   bool      `json:"isRunning"`
	StartedAt   int64     `json:"startedAt"` // epoch ms, 0 means not started
	UpdatedAt   int64     `json:"updatedAt,omitempty"`
}

// ClearedTimer is the shape written on room reset
func ClearedTimer() Timer {
	return Timer{CurrentTime: 0, IsRunning: false, StartedAt: 0}
}

// TimerSpec is the closed set of timer kinds a status can carry.
type TimerSpec interface {
	Type() TimerType
	timerSpec()
}

// Countdown counts down from TargetTime seconds to zero
type Countdown struct {
	TargetTime int64
}

// Countup counts up from its start with no bound
type Countup struct{}

func (Countdown) Type() TimerType { return TimerTypeCountdown }
func (Countup) Type() TimerType   { return TimerTypeCountup }

func (Countdown) timerSpec() {}
func (Countup) timerSpec()   {}

// SpecOf recovers the spec from a persisted triple. The second return is false
// for triples without a known type tag.
func SpecOf(t Timer) (TimerSpec, bool) {
	switch t.Type {
	case TimerTypeCountdown:
		return Countdown{TargetTime: t.TargetTime}, true
	case TimerTypeCountup:
		return Countup{}, true
	default:
		return nil, false
	}
}

// NewTimer builds a fresh running triple anchored at startedAt (epoch ms)
func NewTimer(spec TimerSpec, startedAt int64) Timer {
	switch s := spec.(type) {
	case Countdown:
		return Timer{
			Type:        TimerTypeCountdown,
			CurrentTime: s.TargetTime,
			TargetTime:  s.TargetTime,
			IsRunning:   true,
			StartedAt:   startedAt,
			UpdatedAt:   startedAt,
		}
	case Countup:
		return Timer{
			Type:      TimerTypeCountup,
			IsRunning: true,
			StartedAt: startedAt,
			UpdatedAt: startedAt,
		}
	default:
		return ClearedTimer()
	}
}
