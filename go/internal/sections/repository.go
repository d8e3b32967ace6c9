package sections

import (
	"context"
	"fmt"

	"github.com/mcdev12/roomboard/go/internal/models"
	"github.com/mcdev12/roomboard/go/internal/store"
)

// Repository implements section data access on the shared store
type Repository struct {
	store store.Store
}

// NewRepository creates a new sections repository
func NewRepository(s store.Store) *Repository {
	return &Repository{store: s}
}

// CreateSection writes a whole section
func (r *Repository) CreateSection(ctx context.Context, section models.Section) error {
	path := store.SectionPath(section.HospitalID, section.DepartmentID, section.ID)
	if err := r.store.Set(ctx, path, section); err != nil {
		return fmt.Errorf("failed to create section: %w", err)
	}
	return nil
}

// GetSection returns nil when the section does not exist
func (r *Repository) GetSection(ctx context.Context, scope models.Scope, sectionID string) (*models.Section, error) {
	v, err := r.store.Get(ctx, store.SectionPath(scope.HospitalID, scope.DepartmentID, sectionID))
	if err != nil {
		return nil, fmt.Errorf("failed to get section: %w", err)
	}
	if v == nil {
		return nil, nil
	}
	var section models.Section
	if err := store.Decode(v, &section); err != nil {
		return nil, fmt.Errorf("failed to decode section %s: %w", sectionID, err)
	}
	return &section, nil
}

// ListSections returns every section of the department keyed by id
func (r *Repository) ListSections(ctx context.Context, scope models.Scope) (map[string]models.Section, error) {
	v, err := r.store.Get(ctx, store.SectionsPath(scope.HospitalID, scope.DepartmentID))
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}
	out := make(map[string]models.Section)
	if v == nil {
		return out, nil
	}
	if err := store.Decode(v, &out); err != nil {
		return nil, fmt.Errorf("failed to decode sections: %w", err)
	}
	return out, nil
}

// UpdateSection merges fields into the section
func (r *Repository) UpdateSection(ctx context.Context, scope models.Scope, sectionID string, fields map[string]any) error {
	path := store.SectionPath(scope.HospitalID, scope.DepartmentID, sectionID)
	if err := r.store.Update(ctx, path, fields); err != nil {
		return fmt.Errorf("failed to update section: %w", err)
	}
	return nil
}

// DeleteSection removes the section with its rooms and statuses
func (r *Repository) DeleteSection(ctx context.Context, scope models.Scope, sectionID string) error {
	if err := r.store.Remove(ctx, store.SectionPath(scope.HospitalID, scope.DepartmentID, sectionID)); err != nil {
		return fmt.Errorf("failed to delete section: %w", err)
	}
	return nil
}
