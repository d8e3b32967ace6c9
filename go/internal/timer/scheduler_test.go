package timer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/roomboard/go/internal/models"
	"github.com/mcdev12/roomboard/go/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type update struct {
	path   string
	fields map[string]any
}

type recordingWriter struct {
	mu      sync.Mutex
	updates []update
	err     error
}

func (w *recordingWriter) UpdateIf(ctx context.Context, path string, match func(any) bool, fields map[string]any) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.updates = append(w.updates, update{path: path, fields: fields})
	return w.err == nil, w.err
}

func (w *recordingWriter) snapshot() []update {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]update(nil), w.updates...)
}

type harness struct {
	clock   *clockwork.FakeClock
	writer  *recordingWriter
	sched   *Scheduler
	ticks   chan State
	expired chan RoomRef
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:   clockwork.NewFakeClockAt(t0),
		writer:  &recordingWriter{},
		ticks:   make(chan State, 64),
		expired: make(chan RoomRef, 4),
	}
	h.sched = NewScheduler(h.writer, SchedulerConfig{
		Clock:    h.clock,
		Interval: time.Second,
		OnTick:   func(ref RoomRef, st State) { h.ticks <- st },
		OnExpire: func(ref RoomRef, st State) { h.expired <- ref },
	})
	t.Cleanup(h.sched.Close)
	return h
}

func (h *harness) nextTick(t *testing.T) State {
	t.Helper()
	select {
	case st := <-h.ticks:
		return st
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tick")
		return State{}
	}
}

// advance moves the fake clock one interval once n tickers are waiting
func (h *harness) advance(t *testing.T, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.clock.BlockUntilContext(ctx, n))
	h.clock.Advance(time.Second)
}

var room = RoomRef{HospitalID: "h1", DepartmentID: "d1", SectionID: "s1", RoomID: "r1"}

func TestSchedulerCountdownExpiresOnce(t *testing.T) {
	h := newHarness(t)

	st, ok := h.sched.Observe(room, countdown(2, t0.UnixMilli(), true))
	require.True(t, ok)
	assert.Equal(t, int64(2), st.CurrentTime)
	assert.Equal(t, int64(2), h.nextTick(t).CurrentTime)

	h.advance(t, 1)
	assert.Equal(t, int64(1), h.nextTick(t).CurrentTime)

	h.advance(t, 1)
	final := h.nextTick(t)
	assert.False(t, final.IsRunning)
	assert.Equal(t, int64(0), final.CurrentTime)
	assert.Equal(t, int64(0), final.StartedAt)

	select {
	case ref := <-h.expired:
		assert.Equal(t, room, ref)
	case <-time.After(time.Second):
		t.Fatal("expiry not signalled")
	}
	require.Eventually(t, func() bool { return h.sched.Len() == 0 }, time.Second, 10*time.Millisecond)

	updates := h.writer.snapshot()
	require.Len(t, updates, 2)
	assert.Equal(t, "sections/h1/d1/s1/rooms/r1/timer", updates[1].path)
	assert.Equal(t, false, updates[1].fields["isRunning"])
	assert.Equal(t, int64(0), updates[1].fields["startedAt"])

	assert.Empty(t, h.expired)
}

func TestSchedulerKeepsScheduleForEcho(t *testing.T) {
	h := newHarness(t)

	h.sched.Observe(room, countdown(60, t0.UnixMilli(), true))
	h.nextTick(t)
	h.advance(t, 1)
	h.nextTick(t)

	// echo of our own write-back has the same anchor
	echo := countdown(60, t0.UnixMilli(), true)
	echo.CurrentTime = 59
	st, ok := h.sched.Observe(room, echo)
	require.True(t, ok)
	assert.Equal(t, int64(59), st.CurrentTime)
	assert.Equal(t, 1, h.sched.Len())
	assert.Empty(t, h.ticks, "no restart means no fresh first tick")
}

func TestSchedulerReplacesOnFreshTriple(t *testing.T) {
	h := newHarness(t)

	h.sched.Observe(room, countdown(60, t0.UnixMilli(), true))
	h.nextTick(t)

	h.sched.Observe(room, &models.Timer{Type: models.TimerTypeCountup, StartedAt: t0.UnixMilli(), IsRunning: true})
	st := h.nextTick(t)
	assert.Equal(t, models.Countup{}, st.Spec)
	assert.Equal(t, 1, h.sched.Len())

	// only the replacement ticker is left waiting
	h.advance(t, 1)
	assert.Equal(t, int64(1), h.nextTick(t).CurrentTime)
}

func TestSchedulerStopsWhenCleared(t *testing.T) {
	h := newHarness(t)

	h.sched.Observe(room, countdown(60, t0.UnixMilli(), true))
	h.nextTick(t)

	_, ok := h.sched.Observe(room, &models.Timer{CurrentTime: 0, IsRunning: false, StartedAt: 0})
	assert.False(t, ok)
	assert.Equal(t, 0, h.sched.Len())

	h.clock.Advance(5 * time.Second)
	select {
	case st := <-h.ticks:
		t.Fatalf("tick after clear: %+v", st)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSchedulerLazyStartPersistsAnchor(t *testing.T) {
	h := newHarness(t)

	st, ok := h.sched.Observe(room, countdown(30, 0, true))
	require.True(t, ok)
	assert.Equal(t, t0.UnixMilli(), st.StartedAt)
	h.nextTick(t)

	updates := h.writer.snapshot()
	require.Len(t, updates, 1)
	assert.Equal(t, t0.UnixMilli(), updates[0].fields["startedAt"])

	// the persisted stamp comes back and keeps the schedule
	h.sched.Observe(room, countdown(30, t0.UnixMilli(), true))
	assert.Equal(t, 1, h.sched.Len())
	assert.Empty(t, h.ticks)
}

func TestSchedulerPersistsExpiryNobodyObserved(t *testing.T) {
	h := newHarness(t)
	h.clock.Advance(10 * time.Minute)

	st, ok := h.sched.Observe(room, countdown(60, t0.UnixMilli(), true))
	require.True(t, ok)
	assert.False(t, st.IsRunning)
	assert.Equal(t, 0, h.sched.Len())

	require.Eventually(t, func() bool { return len(h.writer.snapshot()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, false, h.writer.snapshot()[0].fields["isRunning"])
	assert.Empty(t, h.expired)
}

func TestSchedulerKeepsTickingWhenWritesFail(t *testing.T) {
	h := newHarness(t)
	h.writer.err = errors.New("offline")

	h.sched.Observe(room, &models.Timer{Type: models.TimerTypeCountup, StartedAt: t0.UnixMilli(), IsRunning: true})
	h.nextTick(t)
	for i := 1; i <= 3; i++ {
		h.advance(t, 1)
		assert.Equal(t, int64(i), h.nextTick(t).CurrentTime)
	}
	assert.Equal(t, 1, h.sched.Len())
}

func TestSchedulerOneSchedulePerRoom(t *testing.T) {
	h := newHarness(t)
	other := room
	other.RoomID = "r2"

	h.sched.Observe(room, countdown(60, t0.UnixMilli(), true))
	h.sched.Observe(other, countdown(60, t0.UnixMilli(), true))
	h.nextTick(t)
	h.nextTick(t)
	assert.Equal(t, 2, h.sched.Len())

	h.sched.Cancel(room)
	assert.Equal(t, 1, h.sched.Len())
	_, ok := h.sched.State(room)
	assert.False(t, ok)
	_, ok = h.sched.State(other)
	assert.True(t, ok)
}

func TestSchedulerLeavesReplacedTimerAlone(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(t0)
	docs := store.NewMemoryStore()
	sched := NewScheduler(docs, SchedulerConfig{Clock: clock, Interval: time.Second})
	t.Cleanup(sched.Close)

	started := t0.Add(-10 * time.Minute).UnixMilli()
	old := models.Timer{Type: models.TimerTypeCountup, IsRunning: true, StartedAt: started}
	require.NoError(t, docs.Set(ctx, room.TimerPath(), old))
	_, ok := sched.Observe(room, &old)
	require.True(t, ok)

	// another client saves a new status before this one hears about it
	fresh := models.NewTimer(models.Countdown{TargetTime: 120}, t0.UnixMilli())
	require.NoError(t, docs.Set(ctx, room.TimerPath(), fresh))

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	clock.Advance(time.Second)

	require.Eventually(t, func() bool { return sched.Len() == 0 }, 2*time.Second, 10*time.Millisecond)

	v, err := docs.Get(ctx, room.TimerPath())
	require.NoError(t, err)
	var stored models.Timer
	require.NoError(t, store.Decode(v, &stored))
	assert.Equal(t, fresh, stored)

	st, ok := DeriveAt(clock.Now(), &stored)
	require.True(t, ok)
	assert.True(t, st.IsRunning)
	assert.Equal(t, int64(119), st.CurrentTime)
}

func TestSchedulerStampsUnstartedCountdownOnce(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(t0)
	docs := store.NewMemoryStore()
	sched := NewScheduler(docs, SchedulerConfig{Clock: clock, Interval: time.Second})
	t.Cleanup(sched.Close)

	unstarted := models.Timer{Type: models.TimerTypeCountdown, TargetTime: 30, CurrentTime: 30, IsRunning: true}
	require.NoError(t, docs.Set(ctx, room.TimerPath(), unstarted))
	_, ok := sched.Observe(room, &unstarted)
	require.True(t, ok)

	require.Eventually(t, func() bool {
		v, err := docs.Get(ctx, room.TimerPath())
		if err != nil {
			return false
		}
		var stored models.Timer
		return store.Decode(v, &stored) == nil && stored.StartedAt == t0.UnixMilli()
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, sched.Len())
}
