package statuses

import (
	"context"
	"fmt"

	"github.com/mcdev12/roomboard/go/internal/models"
	"github.com/mcdev12/roomboard/go/internal/store"
)

// Repository implements status template data access on the shared store
type Repository struct {
	store store.Store
}

// NewRepository creates a new statuses repository
func NewRepository(s store.Store) *Repository {
	return &Repository{store: s}
}

// SectionExists reports whether the owning section is present
func (r *Repository) SectionExists(ctx context.Context, scope models.Scope, sectionID string) (bool, error) {
	path := store.JoinPath(store.SectionPath(scope.HospitalID, scope.DepartmentID, sectionID), "id")
	return store.Exists(ctx, r.store, path)
}

// CreateStatus writes a whole status template
func (r *Repository) CreateStatus(ctx context.Context, scope models.Scope, status models.Status) error {
	path := store.StatusPath(scope.HospitalID, scope.DepartmentID, status.SectionID, status.ID)
	if err := r.store.Set(ctx, path, status); err != nil {
		return fmt.Errorf("failed to create status: %w", err)
	}
	return nil
}

// GetStatus returns nil when the status does not exist
func (r *Repository) GetStatus(ctx context.Context, scope models.Scope, sectionID, statusID string) (*models.Status, error) {
	v, err := r.store.Get(ctx, store.StatusPath(scope.HospitalID, scope.DepartmentID, sectionID, statusID))
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	if v == nil {
		return nil, nil
	}
	var status models.Status
	if err := store.Decode(v, &status); err != nil {
		return nil, fmt.Errorf("failed to decode status %s: %w", statusID, err)
	}
	return &status, nil
}

// UpdateStatus merges fields into an existing status
func (r *Repository) UpdateStatus(ctx context.Context, scope models.Scope, sectionID, statusID string, fields map[string]any) error {
	path := store.StatusPath(scope.HospitalID, scope.DepartmentID, sectionID, statusID)
	if err := r.store.Update(ctx, path, fields); err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	return nil
}

// DeleteStatus removes the status from the section map
func (r *Repository) DeleteStatus(ctx context.Context, scope models.Scope, sectionID, statusID string) error {
	path := store.StatusPath(scope.HospitalID, scope.DepartmentID, sectionID, statusID)
	if err := r.store.Remove(ctx, path); err != nil {
		return fmt.Errorf("failed to delete status: %w", err)
	}
	return nil
}

// ListStatuses returns the section's status map, empty when there is none
func (r *Repository) ListStatuses(ctx context.Context, scope models.Scope, sectionID string) (map[string]models.Status, error) {
	v, err := r.store.Get(ctx, store.StatusesPath(scope.HospitalID, scope.DepartmentID, sectionID))
	if err != nil {
		return nil, fmt.Errorf("failed to list statuses: %w", err)
	}
	out := make(map[string]models.Status)
	if v == nil {
		return out, nil
	}
	if err := store.Decode(v, &out); err != nil {
		return nil, fmt.Errorf("failed to decode statuses: %w", err)
	}
	return out, nil
}
