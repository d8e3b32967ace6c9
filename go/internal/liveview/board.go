package liveview

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/roomboard/go/internal/models"
	"github.com/mcdev12/roomboard/go/internal/statuses"
	"github.com/mcdev12/roomboard/go/internal/store"
	"github.com/mcdev12/roomboard/go/internal/timer"
	"github.com/rs/zerolog/log"
)

// Config holds the board's clock, tick cadence and hooks
type Config struct {
	Clock        clockwork.Clock
	TickInterval time.Duration
	WriteTimeout time.Duration
	// OnError receives subscription failures. They never close the board.
	OnError func(err error)
	// OnExpire is called once when a countdown finishes on this board.
	OnExpire func(ref timer.RoomRef, state timer.State)
}

type roomKey struct {
	sectionID string
	roomID    string
}

type roomEntry struct {
	key   roomKey
	ref   timer.RoomRef
	group store.Group
	// fields is the shallow-merged room record; nil after a null snapshot.
	fields map[string]any
	tick   *timer.State
}

type sectionEntry struct {
	id        string
	name      string
	createdAt int64
	statuses  map[string]models.Status
}

// Board keeps a live, merged view of every section and room of a department.
// It holds one store subscription per room and one tick schedule per timer.
type Board struct {
	store store.Store
	scope models.Scope
	cfg   Config
	sched *timer.Scheduler

	ctx    context.Context
	cancel context.CancelFunc
	group  store.Group

	mu          sync.Mutex
	closed      bool
	sections    map[string]*sectionEntry
	rooms       map[roomKey]*roomEntry
	byTimerPath map[string]*roomEntry
	version     uint64
	listeners   map[int]func(View)
	nextID      int

	notifyMu sync.Mutex
}

// Open subscribes to the department's sections and starts tracking rooms.
// The returned board fills in asynchronously; use Listen or Snapshot.
func Open(ctx context.Context, s store.Store, scope models.Scope, cfg Config) (*Board, error) {
	if s == nil {
		return nil, models.ErrNotInitialized
	}
	if !scope.Valid() {
		return nil, fmt.Errorf("open board: hospital and department are required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.OnError == nil {
		cfg.OnError = func(err error) {
			log.Warn().Err(err).Msg("board subscription error")
		}
	}

	b := &Board{
		store:       s,
		scope:       scope,
		cfg:         cfg,
		sections:    make(map[string]*sectionEntry),
		rooms:       make(map[roomKey]*roomEntry),
		byTimerPath: make(map[string]*roomEntry),
		listeners:   make(map[int]func(View)),
	}
	b.ctx, b.cancel = context.WithCancel(ctx)
	b.group.Add(b.cancel)

	b.sched = timer.NewScheduler(boardWriter{b}, timer.SchedulerConfig{
		Clock:        cfg.Clock,
		Interval:     cfg.TickInterval,
		WriteTimeout: cfg.WriteTimeout,
		OnTick:       b.onTick,
		OnExpire:     cfg.OnExpire,
	})
	b.group.Add(b.sched.Close)

	sub, err := s.Subscribe(b.ctx, store.SectionsPath(scope.HospitalID, scope.DepartmentID), b.onSections, b.onError)
	if err != nil {
		b.group.Release()
		return nil, fmt.Errorf("failed to subscribe to sections: %w", err)
	}
	b.group.AddSubscription(sub)

	log.Info().
		Str("hospital_id", scope.HospitalID).
		Str("department_id", scope.DepartmentID).
		Msg("opened board")
	return b, nil
}

// Scope is the hospital/department the board shows
func (b *Board) Scope() models.Scope {
	return b.scope
}

// Listen registers fn for every new view and returns its release function.
// fn is called without board locks held but must not call Close.
func (b *Board) Listen(fn func(View)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

// Snapshot returns the current view
func (b *Board) Snapshot() View {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.viewLocked()
}

// Subscriptions is the number of live room subscriptions
func (b *Board) Subscriptions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rooms)
}

// Close releases every subscription and stops every tick schedule.
func (b *Board) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	entries := make([]*roomEntry, 0, len(b.rooms))
	for _, e := range b.rooms {
		entries = append(entries, e)
	}
	b.rooms = make(map[roomKey]*roomEntry)
	b.byTimerPath = make(map[string]*roomEntry)
	b.listeners = make(map[int]func(View))
	b.mu.Unlock()

	for _, e := range entries {
		e.group.Release()
	}
	b.group.Release()

	log.Info().
		Str("hospital_id", b.scope.HospitalID).
		Str("department_id", b.scope.DepartmentID).
		Msg("closed board")
}

func (b *Board) onError(err error) {
	b.cfg.OnError(err)
}

// onSections reconciles room subscriptions against the department's sections.
func (b *Board) onSections(value any) {
	var raw map[string]struct {
		ID        string                   `json:"id"`
		Name      string                   `json:"name"`
		CreatedAt int64                    `json:"createdAt"`
		Statuses  map[string]models.Status `json:"statuses"`
		Rooms     map[string]any           `json:"rooms"`
	}
	if value != nil {
		if err := store.Decode(value, &raw); err != nil {
			b.onError(fmt.Errorf("decode sections: %w", err))
			return
		}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}

	sections := make(map[string]*sectionEntry, len(raw))
	wanted := make(map[roomKey]bool)
	for id, sec := range raw {
		sections[id] = &sectionEntry{id: id, name: sec.Name, createdAt: sec.CreatedAt, statuses: sec.Statuses}
		for roomID := range sec.Rooms {
			wanted[roomKey{sectionID: id, roomID: roomID}] = true
		}
	}
	b.sections = sections

	var released, added []*roomEntry
	for key, e := range b.rooms {
		if !wanted[key] {
			delete(b.rooms, key)
			delete(b.byTimerPath, e.ref.TimerPath())
			released = append(released, e)
		}
	}
	for key := range wanted {
		if _, ok := b.rooms[key]; ok {
			continue
		}
		e := b.newEntry(key)
		b.rooms[key] = e
		b.byTimerPath[e.ref.TimerPath()] = e
		added = append(added, e)
	}
	b.mu.Unlock()

	for _, e := range released {
		e.group.Release()
		log.Debug().Str("section_id", e.key.sectionID).Str("room_id", e.key.roomID).Msg("released room")
	}
	for _, e := range added {
		b.attach(e)
	}
	b.notify()
}

func (b *Board) newEntry(key roomKey) *roomEntry {
	e := &roomEntry{
		key: key,
		ref: timer.RoomRef{
			HospitalID:   b.scope.HospitalID,
			DepartmentID: b.scope.DepartmentID,
			SectionID:    key.sectionID,
			RoomID:       key.roomID,
		},
	}
	ref := e.ref
	e.group.Add(func() { b.sched.Cancel(ref) })
	return e
}

// attach subscribes to one room. A failed subscribe drops the entry so the
// next sections delivery retries it.
func (b *Board) attach(e *roomEntry) {
	path := store.RoomPath(b.scope.HospitalID, b.scope.DepartmentID, e.key.sectionID, e.key.roomID)
	sub, err := b.store.Subscribe(b.ctx, path, func(v any) { b.onRoom(e, v) }, b.onError)
	if err != nil {
		b.mu.Lock()
		if b.rooms[e.key] == e {
			delete(b.rooms, e.key)
			delete(b.byTimerPath, e.ref.TimerPath())
		}
		b.mu.Unlock()
		e.group.Release()
		b.onError(fmt.Errorf("subscribe room %s: %w", e.key.roomID, err))
		return
	}
	e.group.AddSubscription(sub)
}

// onRoom shallow-merges a room snapshot into the cache and feeds its timer
// to the scheduler. A null snapshot empties the room and stops its timer.
func (b *Board) onRoom(e *roomEntry, value any) {
	b.mu.Lock()
	if b.closed || b.rooms[e.key] != e {
		b.mu.Unlock()
		return
	}

	if value == nil {
		e.fields = nil
		e.tick = nil
		b.sched.Cancel(e.ref)
		b.mu.Unlock()
		b.notify()
		return
	}

	inbound, ok := value.(map[string]any)
	if !ok {
		b.mu.Unlock()
		b.onError(fmt.Errorf("room %s: unexpected snapshot %T", e.key.roomID, value))
		return
	}
	if e.fields == nil {
		e.fields = make(map[string]any, len(inbound))
	}
	for k, v := range inbound {
		e.fields[k] = v
	}

	var triple *models.Timer
	if rawTimer, ok := e.fields["timer"]; ok && rawTimer != nil {
		var t models.Timer
		if err := store.Decode(rawTimer, &t); err != nil {
			b.mu.Unlock()
			b.onError(fmt.Errorf("room %s: decode timer: %w", e.key.roomID, err))
			return
		}
		triple = &t
	}
	if state, ok := b.sched.Observe(e.ref, triple); ok {
		e.tick = &state
	} else {
		e.tick = nil
	}
	b.mu.Unlock()
	b.notify()
}

func (b *Board) onTick(ref timer.RoomRef, state timer.State) {
	b.mu.Lock()
	e, ok := b.rooms[roomKey{sectionID: ref.SectionID, roomID: ref.RoomID}]
	if b.closed || !ok || e.fields == nil {
		b.mu.Unlock()
		return
	}
	e.tick = &state
	b.mu.Unlock()
	b.notify()
}

// notify delivers one fresh view to every listener, in order.
func (b *Board) notify() {
	b.notifyMu.Lock()
	defer b.notifyMu.Unlock()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.version++
	view := b.viewLocked()
	listeners := make([]func(View), 0, len(b.listeners))
	for _, fn := range b.listeners {
		listeners = append(listeners, fn)
	}
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(view)
	}
}

func (b *Board) viewLocked() View {
	view := View{
		HospitalID:   b.scope.HospitalID,
		DepartmentID: b.scope.DepartmentID,
		Version:      b.version,
		Sections:     make([]SectionView, 0, len(b.sections)),
	}
	bySection := make(map[string][]RoomView, len(b.sections))
	for key, e := range b.rooms {
		room := models.Room{ID: key.roomID}
		if e.fields != nil {
			if err := store.Decode(e.fields, &room); err != nil {
				log.Warn().Err(err).Str("room_id", key.roomID).Msg("undecodable room record")
			}
			room.ID = key.roomID
		}
		var statusMap map[string]models.Status
		if sec, ok := b.sections[key.sectionID]; ok {
			statusMap = sec.statuses
		}
		var tick *timer.State
		if e.fields != nil {
			tick = e.tick
		}
		bySection[key.sectionID] = append(bySection[key.sectionID], newRoomView(key.sectionID, room, statusMap, tick))
	}
	for id, sec := range b.sections {
		rooms := bySection[id]
		if rooms == nil {
			rooms = []RoomView{}
		}
		sortRooms(rooms)
		view.Sections = append(view.Sections, SectionView{
			ID:        id,
			Name:      sec.name,
			CreatedAt: sec.createdAt,
			Statuses:  statuses.SortByName(sec.statuses),
			Rooms:     rooms,
		})
	}
	sortSections(view.Sections)
	return view
}

// boardWriter persists tick write-backs only for rooms the board still shows,
// so a late tick cannot recreate a deleted room.
type boardWriter struct {
	b *Board
}

func (w boardWriter) UpdateIf(ctx context.Context, path string, match func(current any) bool, fields map[string]any) (bool, error) {
	w.b.mu.Lock()
	e, ok := w.b.byTimerPath[path]
	live := ok && !w.b.closed && e.fields != nil
	w.b.mu.Unlock()
	if !live {
		log.Debug().Str("path", path).Msg("skipped write-back for untracked room")
		return true, nil
	}
	return w.b.store.UpdateIf(ctx, path, match, fields)
}
