package gateway

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/roomboard/go/internal/liveview"
	"github.com/mcdev12/roomboard/go/internal/models"
)

// BoardEvent is the envelope of every message pushed to a display
type BoardEvent struct {
	ID        string          `json:"id"`        // Event UUID
	Board     string          `json:"board"`     // hospital/department
	Type      EventType       `json:"type"`      // Event type
	Version   uint64          `json:"version"`   // Board view version
	Timestamp time.Time       `json:"timestamp"` // Event creation time
	Data      json.RawMessage `json:"data"`      // Event-specific payload
}

// EventType represents the type of board event
type EventType string

const (
	// EventTypeBoardSnapshot carries a full liveview.View
	EventTypeBoardSnapshot EventType = "board.snapshot"
	// EventTypeRoomUpdated carries one liveview.RoomView
	EventTypeRoomUpdated EventType = "room.updated"
)

// ClientMessage is what displays may send back over the socket
type ClientMessage struct {
	Type string `json:"type"`
}

// clientResync asks for a fresh board.snapshot
const clientResync = "board.resync"

func boardName(scope models.Scope) string {
	return scope.HospitalID + "/" + scope.DepartmentID
}

func newEvent(scope models.Scope, typ EventType, version uint64, now time.Time, payload any) (*BoardEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", typ, err)
	}
	return &BoardEvent{
		ID:        uuid.New().String(),
		Board:     boardName(scope),
		Type:      typ,
		Version:   version,
		Timestamp: now.UTC(),
		Data:      data,
	}, nil
}

// ParseEventPayload parses event data into the appropriate payload struct
func ParseEventPayload(event *BoardEvent) (any, error) {
	switch event.Type {
	case EventTypeBoardSnapshot:
		var payload liveview.View
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeRoomUpdated:
		var payload liveview.RoomView
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, nil // Unknown event type
	}
}

type roomID struct {
	sectionID string
	roomID    string
}

// diffViews reports whether next changes the board's shape (sections, their
// names or statuses, or the set of rooms), and otherwise which rooms changed.
func diffViews(prev, next liveview.View) (structural bool, changed []liveview.RoomView) {
	if len(prev.Sections) != len(next.Sections) {
		return true, nil
	}
	before := make(map[roomID]liveview.RoomView)
	for i, sec := range prev.Sections {
		other := next.Sections[i]
		if sec.ID != other.ID || sec.Name != other.Name || len(sec.Rooms) != len(other.Rooms) ||
			!reflect.DeepEqual(sec.Statuses, other.Statuses) {
			return true, nil
		}
		for _, r := range sec.Rooms {
			before[roomID{sec.ID, r.Room.ID}] = r
		}
	}
	for _, sec := range next.Sections {
		for _, r := range sec.Rooms {
			old, ok := before[roomID{sec.ID, r.Room.ID}]
			if !ok {
				return true, nil
			}
			if !reflect.DeepEqual(old, r) {
				changed = append(changed, r)
			}
		}
	}
	return false, changed
}
