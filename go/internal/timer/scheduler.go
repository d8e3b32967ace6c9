package timer

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/roomboard/go/internal/models"
	"github.com/mcdev12/roomboard/go/internal/store"
	"github.com/rs/zerolog/log"
)

// RoomRef addresses one room in the store
type RoomRef struct {
	HospitalID   string
	DepartmentID string
	SectionID    string
	RoomID       string
}

func (r RoomRef) TimerPath() string {
	return store.RoomTimerPath(r.HospitalID, r.DepartmentID, r.SectionID, r.RoomID)
}

// Writer is the part of the store write-backs need. A write-back is only
// merged while match accepts the timer currently stored.
type Writer interface {
	UpdateIf(ctx context.Context, path string, match func(current any) bool, fields map[string]any) (bool, error)
}

// SchedulerConfig holds tick settings and callbacks
type SchedulerConfig struct {
	Clock    Clock
	Interval time.Duration
	// OnTick receives every locally computed state, including the first one.
	OnTick func(ref RoomRef, state State)
	// OnExpire is called once when a countdown reaches zero on this client.
	OnExpire func(ref RoomRef, state State)
	// WriteTimeout bounds each write-back.
	WriteTimeout time.Duration
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Clock:        clockwork.NewRealClock(),
		Interval:     time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

type schedule struct {
	anchor    anchor
	unstamped bool
	state     State
	cancel    context.CancelFunc
}

// Scheduler keeps at most one tick schedule per room.
type Scheduler struct {
	writer Writer
	cfg    SchedulerConfig

	mu     sync.Mutex
	active map[RoomRef]*schedule
	closed bool
	wg     sync.WaitGroup
}

func NewScheduler(writer Writer, cfg SchedulerConfig) *Scheduler {
	def := DefaultSchedulerConfig()
	if cfg.Clock == nil {
		cfg.Clock = def.Clock
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	return &Scheduler{
		writer: writer,
		cfg:    cfg,
		active: make(map[RoomRef]*schedule),
	}
}

// Observe applies an inbound timer triple for ref. The echo of this
// scheduler's own write-back carries the same anchor and keeps the running
// schedule; any other triple replaces it. It returns the derived state, or
// false when the room has no timer.
func (s *Scheduler) Observe(ref RoomRef, t *models.Timer) (State, bool) {
	now := s.cfg.Clock.Now()
	state, ok := DeriveAt(now, t)
	if !ok {
		s.Cancel(ref)
		return State{}, false
	}
	a := anchorOf(state)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return state, true
	}

	if cur, exists := s.active[ref]; exists {
		if cur.anchor == a {
			return cur.state, true
		}
		cur.cancel()
		delete(s.active, ref)
		log.Debug().Str("room_id", ref.RoomID).Msg("replaced tick schedule")
	}

	if !state.IsRunning {
		// finished while nobody was ticking; persist the terminal shape once
		if t.IsRunning || t.StartedAt != 0 {
			terminal := State{Spec: state.Spec, CurrentTime: 0, IsRunning: false, StartedAt: 0}
			from := anchor{typ: a.typ, targetTime: a.targetTime, startedAt: t.StartedAt}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.writeBack(context.Background(), ref, from, t.StartedAt == 0, terminal)
			}()
		}
		return state, true
	}

	ctx, cancel := context.WithCancel(context.Background())
	sched := &schedule{anchor: a, unstamped: t.StartedAt == 0, state: state, cancel: cancel}
	s.active[ref] = sched

	s.wg.Add(1)
	go s.run(ctx, ref, sched)

	log.Debug().
		Str("room_id", ref.RoomID).
		Str("timer_type", string(state.Spec.Type())).
		Int64("current_time", state.CurrentTime).
		Msg("started tick schedule")
	return state, true
}

// Cancel stops the schedule for ref, if any
func (s *Scheduler) Cancel(ref RoomRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, exists := s.active[ref]; exists {
		cur.cancel()
		delete(s.active, ref)
		log.Debug().Str("room_id", ref.RoomID).Msg("cancelled tick schedule")
	}
}

// State returns the latest local state of ref's running schedule
func (s *Scheduler) State(ref RoomRef) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, exists := s.active[ref]
	if !exists {
		return State{}, false
	}
	return cur.state, true
}

// Len is the number of running schedules
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Close cancels every schedule and waits for their goroutines to exit
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	for ref, cur := range s.active {
		cur.cancel()
		delete(s.active, ref)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context, ref RoomRef, sched *schedule) {
	defer s.wg.Done()
	defer sched.cancel()

	ticker := s.cfg.Clock.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	state := sched.state
	if sched.unstamped && !s.writeBack(ctx, ref, sched.anchor, true, state) {
		s.drop(ref, sched)
		return
	}
	s.emit(ctx, ref, state)

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.Chan():
			next, isTimeUp := TickAt(now, state)
			state = next
			if ctx.Err() != nil {
				return
			}

			s.mu.Lock()
			if s.active[ref] == sched {
				sched.state = state
				if isTimeUp {
					delete(s.active, ref)
				}
			}
			s.mu.Unlock()

			// a failed write-back never stops the local tick; a replaced timer does
			if !s.writeBack(ctx, ref, sched.anchor, sched.unstamped, state) {
				s.drop(ref, sched)
				return
			}
			s.emit(ctx, ref, state)

			if isTimeUp {
				log.Info().Str("room_id", ref.RoomID).Msg("countdown finished")
				if s.cfg.OnExpire != nil {
					s.cfg.OnExpire(ref, state)
				}
				return
			}
		}
	}
}

func (s *Scheduler) emit(ctx context.Context, ref RoomRef, state State) {
	if ctx.Err() != nil || s.cfg.OnTick == nil {
		return
	}
	s.cfg.OnTick(ref, state)
}

// drop forgets sched if it is still the one running for ref
func (s *Scheduler) drop(ref RoomRef, sched *schedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[ref] == sched {
		delete(s.active, ref)
	}
}

// writeBack merges state into the stored timer while it is still the instance
// identified by from. It reports false only when the stored timer was replaced.
func (s *Scheduler) writeBack(ctx context.Context, ref RoomRef, from anchor, unstamped bool, state State) bool {
	if s.writer == nil {
		return true
	}
	writeCtx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()

	now := s.cfg.Clock.Now().UnixMilli()
	match := func(current any) bool { return from.heldBy(current, unstamped) }
	applied, err := s.writer.UpdateIf(writeCtx, ref.TimerPath(), match, state.Fields(now))
	if err != nil {
		log.Warn().
			Err(err).
			Str("room_id", ref.RoomID).
			Str("path", ref.TimerPath()).
			Msg("timer write-back failed")
		return true
	}
	if !applied {
		log.Debug().
			Str("room_id", ref.RoomID).
			Str("path", ref.TimerPath()).
			Msg("stored timer was replaced, stopping tick schedule")
	}
	return applied
}
