package rooms

import (
	"context"
	"fmt"

	"github.com/mcdev12/roomboard/go/internal/models"
	"github.com/mcdev12/roomboard/go/internal/store"
)

// Repository implements room data access on the shared store
type Repository struct {
	store store.Store
}

// NewRepository creates a new rooms repository
func NewRepository(s store.Store) *Repository {
	return &Repository{store: s}
}

// SectionExists reports whether the owning section is present
func (r *Repository) SectionExists(ctx context.Context, scope models.Scope, sectionID string) (bool, error) {
	path := store.JoinPath(store.SectionPath(scope.HospitalID, scope.DepartmentID, sectionID), "id")
	return store.Exists(ctx, r.store, path)
}

// CountRooms returns the number of rooms in the section
func (r *Repository) CountRooms(ctx context.Context, scope models.Scope, sectionID string) (int, error) {
	v, err := r.store.Get(ctx, store.RoomsPath(scope.HospitalID, scope.DepartmentID, sectionID))
	if err != nil {
		return 0, fmt.Errorf("failed to count rooms: %w", err)
	}
	byID, _ := v.(map[string]any)
	return len(byID), nil
}

// CreateRoom writes a whole room
func (r *Repository) CreateRoom(ctx context.Context, scope models.Scope, sectionID string, room models.Room) error {
	path := store.RoomPath(scope.HospitalID, scope.DepartmentID, sectionID, room.ID)
	if err := r.store.Set(ctx, path, room); err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}

// GetRoom returns nil when the room does not exist
func (r *Repository) GetRoom(ctx context.Context, scope models.Scope, sectionID, roomID string) (*models.Room, error) {
	v, err := r.store.Get(ctx, store.RoomPath(scope.HospitalID, scope.DepartmentID, sectionID, roomID))
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	if v == nil {
		return nil, nil
	}
	var room models.Room
	if err := store.Decode(v, &room); err != nil {
		return nil, fmt.Errorf("failed to decode room %s: %w", roomID, err)
	}
	return &room, nil
}

// UpdateRoom merges fields into the room in one store call
func (r *Repository) UpdateRoom(ctx context.Context, scope models.Scope, sectionID, roomID string, fields map[string]any) error {
	path := store.RoomPath(scope.HospitalID, scope.DepartmentID, sectionID, roomID)
	if err := r.store.Update(ctx, path, fields); err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}
	return nil
}

// DeleteRoom removes the room from the section map
func (r *Repository) DeleteRoom(ctx context.Context, scope models.Scope, sectionID, roomID string) error {
	path := store.RoomPath(scope.HospitalID, scope.DepartmentID, sectionID, roomID)
	if err := r.store.Remove(ctx, path); err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	return nil
}
