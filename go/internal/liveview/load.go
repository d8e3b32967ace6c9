package liveview

import (
	"context"
	"fmt"
	"time"

	"github.com/mcdev12/roomboard/go/internal/models"
	"github.com/mcdev12/roomboard/go/internal/statuses"
	"github.com/mcdev12/roomboard/go/internal/store"
	"github.com/mcdev12/roomboard/go/internal/timer"
)

// Load reads the department's sections once and derives every timer at now.
// It keeps no subscriptions and writes nothing back.
func Load(ctx context.Context, s store.Store, scope models.Scope, now time.Time) (View, error) {
	if s == nil {
		return View{}, models.ErrNotInitialized
	}
	if !scope.Valid() {
		return View{}, models.ErrUnauthorized
	}

	value, err := s.Get(ctx, store.SectionsPath(scope.HospitalID, scope.DepartmentID))
	if err != nil {
		return View{}, fmt.Errorf("failed to load sections: %w", err)
	}
	var sections map[string]models.Section
	if value != nil {
		if err := store.Decode(value, &sections); err != nil {
			return View{}, fmt.Errorf("failed to decode sections: %w", err)
		}
	}

	view := View{
		HospitalID:   scope.HospitalID,
		DepartmentID: scope.DepartmentID,
		Sections:     make([]SectionView, 0, len(sections)),
	}
	for id, sec := range sections {
		rooms := make([]RoomView, 0, len(sec.Rooms))
		for roomID, room := range sec.Rooms {
			room.ID = roomID
			var tick *timer.State
			if state, ok := timer.DeriveAt(now, room.Timer); ok {
				tick = &state
			}
			rooms = append(rooms, newRoomView(id, room, sec.Statuses, tick))
		}
		sortRooms(rooms)
		view.Sections = append(view.Sections, SectionView{
			ID:        id,
			Name:      sec.Name,
			CreatedAt: sec.CreatedAt,
			Statuses:  statuses.SortByName(sec.Statuses),
			Rooms:     rooms,
		})
	}
	sortSections(view.Sections)
	return view, nil
}
