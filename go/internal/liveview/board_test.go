package liveview

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/roomboard/go/internal/models"
	"github.com/mcdev12/roomboard/go/internal/rooms"
	"github.com/mcdev12/roomboard/go/internal/statuses"
	"github.com/mcdev12/roomboard/go/internal/store"
	"github.com/mcdev12/roomboard/go/internal/timer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	scope = models.Scope{HospitalID: "h1", DepartmentID: "d1"}
	t0    = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
)

const waitFor = 2 * time.Second

type flakyBackend struct {
	*store.MemoryBackend
	failLoad atomic.Bool
}

func (f *flakyBackend) Load(ctx context.Context, root string) ([]byte, error) {
	if f.failLoad.Load() {
		return nil, errors.New("connection reset")
	}
	return f.MemoryBackend.Load(ctx, root)
}

type env struct {
	backend *flakyBackend
	store   *store.DocumentStore
	clock   *clockwork.FakeClock
}

func newEnv(t *testing.T) *env {
	t.Helper()
	backend := &flakyBackend{MemoryBackend: store.NewMemoryBackend()}
	return &env{
		backend: backend,
		store:   store.NewDocumentStore(backend),
		clock:   clockwork.NewFakeClockAt(t0),
	}
}

func (e *env) section(t *testing.T, id string, createdAt int64) {
	t.Helper()
	sec := models.Section{ID: id, HospitalID: "h1", DepartmentID: "d1", Name: id, CreatedAt: createdAt}
	require.NoError(t, e.store.Set(context.Background(), store.SectionPath("h1", "d1", id), sec))
}

func (e *env) room(t *testing.T, sectionID, id string, createdAt int64, tm *models.Timer) {
	t.Helper()
	r := models.Room{ID: id, Name: id, Timer: tm, CreatedAt: createdAt}
	require.NoError(t, e.store.Set(context.Background(), store.RoomPath("h1", "d1", sectionID, id), r))
}

func (e *env) open(t *testing.T, cfg Config) *Board {
	t.Helper()
	cfg.Clock = e.clock
	if cfg.TickInterval == 0 {
		cfg.TickInterval = time.Second
	}
	b, err := Open(context.Background(), e.store, scope, cfg)
	require.NoError(t, err)
	t.Cleanup(b.Close)
	return b
}

func roomIDs(v View) map[string][]string {
	out := make(map[string][]string)
	for _, sec := range v.Sections {
		ids := []string{}
		for _, r := range sec.Rooms {
			ids = append(ids, r.Room.ID)
		}
		out[sec.ID] = ids
	}
	return out
}

func TestBoardReconcilesRoomSubscriptions(t *testing.T) {
	e := newEnv(t)
	e.section(t, "s1", 1)
	e.room(t, "s1", "r1", 1, nil)
	e.room(t, "s1", "r2", 2, nil)

	b := e.open(t, Config{})
	require.Eventually(t, func() bool { return b.Subscriptions() == 2 }, waitFor, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(map[string][]string{"s1": {"r1", "r2"}}, roomIDs(b.Snapshot()))
	}, waitFor, 10*time.Millisecond)

	require.NoError(t, e.store.Remove(context.Background(), store.RoomPath("h1", "d1", "s1", "r1")))
	require.Eventually(t, func() bool { return b.Subscriptions() == 1 }, waitFor, 10*time.Millisecond)

	e.section(t, "s2", 2)
	e.room(t, "s2", "r3", 3, nil)
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(map[string][]string{"s1": {"r2"}, "s2": {"r3"}}, roomIDs(b.Snapshot()))
	}, waitFor, 10*time.Millisecond)

	b.Close()
	require.Eventually(t, func() bool { return e.backend.Watchers() == 0 }, waitFor, 10*time.Millisecond)
	assert.Equal(t, 0, b.Subscriptions())
}

func TestBoardShallowMergeKeepsUnrelatedFields(t *testing.T) {
	e := newEnv(t)
	b := e.open(t, Config{})
	// wait for the first sections delivery so it cannot drop the entry below
	require.Eventually(t, func() bool { return b.Snapshot().Version > 0 }, waitFor, 10*time.Millisecond)

	key := roomKey{sectionID: "s1", roomID: "r1"}
	b.mu.Lock()
	entry := b.newEntry(key)
	b.rooms[key] = entry
	b.byTimerPath[entry.ref.TimerPath()] = entry
	b.mu.Unlock()

	t1 := map[string]any{"currentTime": float64(5), "isRunning": false, "startedAt": float64(0)}
	t2 := map[string]any{"currentTime": float64(7), "isRunning": false, "startedAt": float64(0)}

	b.onRoom(entry, map[string]any{"patientName": "A", "memo": "B", "timer": t1})
	b.onRoom(entry, map[string]any{"timer": t2})

	b.mu.Lock()
	assert.Equal(t, map[string]any{"patientName": "A", "memo": "B", "timer": t2}, entry.fields)
	b.mu.Unlock()

	b.onRoom(entry, map[string]any{"patientName": "C"})
	b.mu.Lock()
	assert.Equal(t, map[string]any{"patientName": "C", "memo": "B", "timer": t2}, entry.fields)
	b.mu.Unlock()
}

func TestBoardNullSnapshotEmptiesRoom(t *testing.T) {
	e := newEnv(t)
	e.section(t, "s1", 1)
	e.room(t, "s1", "r1", 1, &models.Timer{Type: models.TimerTypeCountup, StartedAt: t0.UnixMilli(), IsRunning: true})

	b := e.open(t, Config{})
	require.Eventually(t, func() bool {
		rv, ok := b.Snapshot().Room("s1", "r1")
		return ok && rv.HasTimer
	}, waitFor, 10*time.Millisecond)

	b.mu.Lock()
	entry := b.rooms[roomKey{sectionID: "s1", roomID: "r1"}]
	b.mu.Unlock()
	require.NotNil(t, entry)

	b.onRoom(entry, nil)

	rv, ok := b.Snapshot().Room("s1", "r1")
	require.True(t, ok)
	assert.False(t, rv.HasTimer)
	assert.Equal(t, models.Room{ID: "r1"}, rv.Room)
	_, running := b.sched.State(entry.ref)
	assert.False(t, running)
}

func TestBoardSubscriptionErrorsDoNotCloseIt(t *testing.T) {
	e := newEnv(t)
	e.backend.failLoad.Store(true)

	errs := make(chan error, 16)
	b := e.open(t, Config{OnError: func(err error) { errs <- err }})

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, models.ErrStoreOperationFailed)
	case <-time.After(waitFor):
		t.Fatal("no error reported")
	}

	e.backend.failLoad.Store(false)
	e.section(t, "s1", 1)
	e.room(t, "s1", "r1", 1, nil)
	require.Eventually(t, func() bool {
		_, ok := b.Snapshot().Room("s1", "r1")
		return ok
	}, waitFor, 10*time.Millisecond)
}

func TestBoardAppliesLocalTicks(t *testing.T) {
	e := newEnv(t)
	e.section(t, "s1", 1)
	e.room(t, "s1", "r1", 1, &models.Timer{Type: models.TimerTypeCountup, StartedAt: t0.UnixMilli(), IsRunning: true})

	b := e.open(t, Config{})
	views := make(chan View, 64)
	release := b.Listen(func(v View) { views <- v })
	defer release()

	require.Eventually(t, func() bool {
		rv, ok := b.Snapshot().Room("s1", "r1")
		return ok && rv.IsRunning
	}, waitFor, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, e.clock.BlockUntilContext(ctx, 1))
	e.clock.Advance(time.Second)

	require.Eventually(t, func() bool {
		rv, _ := b.Snapshot().Room("s1", "r1")
		return rv.CurrentTime == 1
	}, waitFor, 10*time.Millisecond)
	assert.NotEmpty(t, views)
}

func TestBoardSkipsWriteBackForRemovedRoom(t *testing.T) {
	e := newEnv(t)
	b := e.open(t, Config{})

	path := store.RoomTimerPath("h1", "d1", "s1", "gone")
	always := func(any) bool { return true }
	_, err := boardWriter{b}.UpdateIf(context.Background(), path, always, map[string]any{"currentTime": 3})
	require.NoError(t, err)

	v, err := e.store.Get(context.Background(), store.SectionsPath("h1", "d1"))
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestBoardResolvesStatusNames(t *testing.T) {
	e := newEnv(t)
	e.section(t, "s1", 1)
	ctx := context.Background()
	st := models.Status{ID: "st1", Name: "진료중", TimerType: models.TimerTypeCountup, Color: "#FF0000", SectionID: "s1"}
	require.NoError(t, e.store.Set(ctx, store.StatusPath("h1", "d1", "s1", "st1"), st))
	require.NoError(t, e.store.Set(ctx, store.RoomPath("h1", "d1", "s1", "r1"),
		models.Room{ID: "r1", Name: "1번방", StatusID: "st1", StatusColor: "#FF0000", CreatedAt: 1}))
	require.NoError(t, e.store.Set(ctx, store.RoomPath("h1", "d1", "s1", "r2"),
		models.Room{ID: "r2", Name: "2번방", StatusID: "deleted", StatusColor: "#00FF00", CreatedAt: 2}))

	b := e.open(t, Config{})
	require.Eventually(t, func() bool {
		r1, ok1 := b.Snapshot().Room("s1", "r1")
		_, ok2 := b.Snapshot().Room("s1", "r2")
		return ok1 && ok2 && r1.StatusName != ""
	}, waitFor, 10*time.Millisecond)

	view := b.Snapshot()
	r1, _ := view.Room("s1", "r1")
	r2, _ := view.Room("s1", "r2")
	assert.Equal(t, "진료중", r1.StatusName)
	assert.Equal(t, "", r2.StatusName)
	assert.Equal(t, "#00FF00", r2.Room.StatusColor)
	require.Len(t, view.Sections, 1)
	assert.Equal(t, []models.Status{st}, view.Sections[0].Statuses)
}

// A countdown assigned for two minutes at t0 reads 30s left on a client that
// loads at t0+90s, and is finished and persisted once t0+120s has passed.
func TestBoardCountdownEndToEnd(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.section(t, "s1", 1)

	statusApp := statuses.NewApp(statuses.NewRepository(e.store), nil)
	roomApp := rooms.NewApp(rooms.NewRepository(e.store), statusApp, e.clock)

	st, err := statusApp.CreateStatus(ctx, scope, "s1", statuses.CreateStatusRequest{
		Name: "진료중", TimerType: models.TimerTypeCountdown, Color: "#FF0000",
	})
	require.NoError(t, err)
	room, err := roomApp.CreateRoom(ctx, scope, "s1")
	require.NoError(t, err)
	_, err = roomApp.SaveStatus(ctx, scope, "s1", room.ID, rooms.SaveStatusRequest{
		PatientName: "김환자", StatusID: st.ID, Minutes: 2,
	})
	require.NoError(t, err)

	e.clock.Advance(90 * time.Second)

	var expired sync.WaitGroup
	expired.Add(1)
	var expiries atomic.Int32
	b := e.open(t, Config{OnExpire: func(ref timer.RoomRef, s timer.State) {
		if expiries.Add(1) == 1 {
			expired.Done()
		}
	}})

	require.Eventually(t, func() bool {
		rv, ok := b.Snapshot().Room("s1", room.ID)
		return ok && rv.HasTimer
	}, waitFor, 10*time.Millisecond)
	rv, _ := b.Snapshot().Room("s1", room.ID)
	assert.Equal(t, int64(30), rv.CurrentTime)
	assert.True(t, rv.IsRunning)

	waitCtx, cancel := context.WithTimeout(ctx, waitFor)
	defer cancel()
	require.NoError(t, e.clock.BlockUntilContext(waitCtx, 1))
	for left := int64(29); left >= 0; left-- {
		e.clock.Advance(time.Second)
		require.Eventually(t, func() bool {
			rv, _ := b.Snapshot().Room("s1", room.ID)
			return rv.CurrentTime == left
		}, waitFor, 5*time.Millisecond)
	}
	e.clock.Advance(5 * time.Second)

	expired.Wait()
	require.Eventually(t, func() bool {
		v, err := e.store.Get(ctx, store.RoomTimerPath("h1", "d1", "s1", room.ID))
		if err != nil {
			return false
		}
		m, _ := v.(map[string]any)
		return m["isRunning"] == false && m["currentTime"] == float64(0) && m["startedAt"] == float64(0)
	}, waitFor, 10*time.Millisecond)

	rv, _ = b.Snapshot().Room("s1", room.ID)
	assert.False(t, rv.IsRunning)
	assert.Equal(t, int64(0), rv.CurrentTime)
	assert.Equal(t, int32(1), expiries.Load())
	assert.Equal(t, "김환자", rv.Room.PatientName)
}

func TestLoadDerivesTimersWithoutSubscribing(t *testing.T) {
	e := newEnv(t)
	e.section(t, "s1", 1)
	startedAt := t0.Add(-20 * time.Second).UnixMilli()
	e.room(t, "s1", "r2", 2, &models.Timer{Type: models.TimerTypeCountup, IsRunning: true, StartedAt: startedAt})
	e.room(t, "s1", "r1", 1, &models.Timer{Type: models.TimerTypeCountdown, TargetTime: 60, CurrentTime: 60, IsRunning: true, StartedAt: startedAt})

	view, err := Load(context.Background(), e.store, scope, t0)
	require.NoError(t, err)
	require.Len(t, view.Sections, 1)
	require.Len(t, view.Sections[0].Rooms, 2)

	down, up := view.Sections[0].Rooms[0], view.Sections[0].Rooms[1]
	assert.Equal(t, "r1", down.Room.ID)
	assert.True(t, down.HasTimer)
	assert.Equal(t, int64(40), down.CurrentTime)
	assert.Equal(t, models.TimerTypeCountup, up.TimerType)
	assert.Equal(t, int64(20), up.CurrentTime)
	assert.Equal(t, 0, e.backend.Watchers())

	_, err = Load(context.Background(), e.store, models.Scope{}, t0)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}
