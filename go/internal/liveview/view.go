package liveview

import (
	"sort"

	"github.com/mcdev12/roomboard/go/internal/models"
	"github.com/mcdev12/roomboard/go/internal/timer"
)

// View is an immutable snapshot of one department's board.
type View struct {
	HospitalID   string        `json:"hospitalId"`
	DepartmentID string        `json:"departmentId"`
	Version      uint64        `json:"version"`
	Sections     []SectionView `json:"sections"`
}

// SectionView is one section with its rooms in creation order
type SectionView struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	CreatedAt int64           `json:"createdAt"`
	Statuses  []models.Status `json:"statuses"`
	Rooms     []RoomView      `json:"rooms"`
}

// RoomView is a room as displays render it. StatusName is empty when the
// room points at a deleted status.
type RoomView struct {
	SectionID   string           `json:"sectionId"`
	Room        models.Room      `json:"room"`
	StatusName  string           `json:"statusName"`
	HasTimer    bool             `json:"hasTimer"`
	TimerType   models.TimerType `json:"timerType,omitempty"`
	CurrentTime int64            `json:"currentTime"`
	IsRunning   bool             `json:"isRunning"`
}

// Room finds a room view by id
func (v View) Room(sectionID, roomID string) (RoomView, bool) {
	for _, sec := range v.Sections {
		if sec.ID != sectionID {
			continue
		}
		for _, r := range sec.Rooms {
			if r.Room.ID == roomID {
				return r, true
			}
		}
	}
	return RoomView{}, false
}

func newRoomView(sectionID string, room models.Room, statuses map[string]models.Status, tick *timer.State) RoomView {
	rv := RoomView{SectionID: sectionID, Room: room}
	if st, ok := statuses[room.StatusID]; ok {
		rv.StatusName = st.Name
	}
	if tick != nil {
		rv.HasTimer = true
		rv.TimerType = tick.Spec.Type()
		rv.CurrentTime = tick.CurrentTime
		rv.IsRunning = tick.IsRunning
	}
	return rv
}

func sortRooms(rooms []RoomView) {
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].Room.CreatedAt != rooms[j].Room.CreatedAt {
			return rooms[i].Room.CreatedAt < rooms[j].Room.CreatedAt
		}
		return rooms[i].Room.ID < rooms[j].Room.ID
	})
}

func sortSections(sections []SectionView) {
	sort.Slice(sections, func(i, j int) bool {
		if sections[i].CreatedAt != sections[j].CreatedAt {
			return sections[i].CreatedAt < sections[j].CreatedAt
		}
		return sections[i].ID < sections[j].ID
	})
}
