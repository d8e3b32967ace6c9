package sections

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/roomboard/go/internal/models"
	"github.com/rs/zerolog/log"
)

const msgNameRequired = "섹션 이름을 입력해주세요."

// SectionsRepository defines what the app layer needs from the repository
type SectionsRepository interface {
	CreateSection(ctx context.Context, section models.Section) error
	GetSection(ctx context.Context, scope models.Scope, sectionID string) (*models.Section, error)
	ListSections(ctx context.Context, scope models.Scope) (map[string]models.Section, error)
	UpdateSection(ctx context.Context, scope models.Scope, sectionID string, fields map[string]any) error
	DeleteSection(ctx context.Context, scope models.Scope, sectionID string) error
}

// PresetApplier seeds default statuses into a new section
type PresetApplier interface {
	ApplyPresets(ctx context.Context, scope models.Scope, sectionID string) error
}

// App handles section business logic
type App struct {
	repo    SectionsRepository
	presets PresetApplier
	clock   clockwork.Clock
}

// NewApp creates a new sections App. presets may be nil.
func NewApp(repo SectionsRepository, presets PresetApplier, clock clockwork.Clock) *App {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &App{
		repo:    repo,
		presets: presets,
		clock:   clock,
	}
}

// DefaultName is the name of the n-th section of a department
func DefaultName(n int) string {
	return fmt.Sprintf("시술실 %d", n)
}

// CreateSection adds a section to the department. A blank name gets the
// next default name.
func (a *App) CreateSection(ctx context.Context, scope models.Scope, name string) (*models.Section, error) {
	if !scope.Valid() {
		return nil, models.ErrUnauthorized
	}
	name = strings.TrimSpace(name)
	if name == "" {
		existing, err := a.repo.ListSections(ctx, scope)
		if err != nil {
			return nil, err
		}
		name = DefaultName(len(existing) + 1)
	}

	section := models.Section{
		ID:           uuid.NewString(),
		HospitalID:   scope.HospitalID,
		DepartmentID: scope.DepartmentID,
		Name:         name,
		CreatedAt:    a.clock.Now().UnixMilli(),
	}
	if err := a.repo.CreateSection(ctx, section); err != nil {
		return nil, err
	}

	if a.presets != nil {
		if err := a.presets.ApplyPresets(ctx, scope, section.ID); err != nil {
			log.Warn().Err(err).Str("section_id", section.ID).Msg("failed to apply status presets")
		}
	}

	log.Info().
		Str("hospital_id", scope.HospitalID).
		Str("department_id", scope.DepartmentID).
		Str("section_id", section.ID).
		Str("name", name).
		Msg("created section")
	return a.GetSection(ctx, scope, section.ID)
}

// GetSection returns one section with its rooms and statuses
func (a *App) GetSection(ctx context.Context, scope models.Scope, sectionID string) (*models.Section, error) {
	section, err := a.repo.GetSection(ctx, scope, sectionID)
	if err != nil {
		return nil, err
	}
	if section == nil {
		return nil, models.NotFound("section", sectionID)
	}
	return section, nil
}

// ListSections returns the department's sections in creation order
func (a *App) ListSections(ctx context.Context, scope models.Scope) ([]models.Section, error) {
	byID, err := a.repo.ListSections(ctx, scope)
	if err != nil {
		return nil, err
	}
	return SortByCreation(byID), nil
}

// RenameSection changes the name field only
func (a *App) RenameSection(ctx context.Context, scope models.Scope, sectionID, name string) (*models.Section, error) {
	name = strings.TrimSpace(name)
	var v models.Validation
	v.Check(name != "", msgNameRequired)
	if err := v.Err(); err != nil {
		return nil, err
	}
	if _, err := a.GetSection(ctx, scope, sectionID); err != nil {
		return nil, err
	}
	if err := a.repo.UpdateSection(ctx, scope, sectionID, map[string]any{"name": name}); err != nil {
		return nil, err
	}
	log.Info().Str("section_id", sectionID).Str("name", name).Msg("renamed section")
	return a.GetSection(ctx, scope, sectionID)
}

// DeleteSection removes a section and everything in it
func (a *App) DeleteSection(ctx context.Context, scope models.Scope, sectionID string) error {
	if _, err := a.GetSection(ctx, scope, sectionID); err != nil {
		return err
	}
	if err := a.repo.DeleteSection(ctx, scope, sectionID); err != nil {
		return err
	}
	log.Info().Str("section_id", sectionID).Msg("deleted section")
	return nil
}

// SortByCreation orders sections by createdAt, then id
func SortByCreation(byID map[string]models.Section) []models.Section {
	out := make([]models.Section, 0, len(byID))
	for _, s := range byID {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}
