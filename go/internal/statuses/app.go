package statuses

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/mcdev12/roomboard/go/internal/models"
	"github.com/rs/zerolog/log"
)

// StatusesRepository defines what the app layer needs from the repository
type StatusesRepository interface {
	SectionExists(ctx context.Context, scope models.Scope, sectionID string) (bool, error)
	CreateStatus(ctx context.Context, scope models.Scope, status models.Status) error
	GetStatus(ctx context.Context, scope models.Scope, sectionID, statusID string) (*models.Status, error)
	UpdateStatus(ctx context.Context, scope models.Scope, sectionID, statusID string, fields map[string]any) error
	DeleteStatus(ctx context.Context, scope models.Scope, sectionID, statusID string) error
	ListStatuses(ctx context.Context, scope models.Scope, sectionID string) (map[string]models.Status, error)
}

// App handles status template business logic
type App struct {
	repo    StatusesRepository
	presets []CreateStatusRequest
}

// NewApp creates a new statuses App. Presets are applied to new sections.
func NewApp(repo StatusesRepository, presets []CreateStatusRequest) *App {
	return &App{
		repo:    repo,
		presets: presets,
	}
}

// CreateStatus validates req and adds a status to the section
func (a *App) CreateStatus(ctx context.Context, scope models.Scope, sectionID string, req CreateStatusRequest) (*models.Status, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}
	if err := a.requireSection(ctx, scope, sectionID); err != nil {
		return nil, err
	}

	status := models.Status{
		ID:         uuid.NewString(),
		Name:       strings.TrimSpace(req.Name),
		TimerType:  req.TimerType,
		TargetTime: req.TargetTime,
		Color:      req.Color,
		SectionID:  sectionID,
	}
	if status.TimerType == models.TimerTypeCountup {
		status.TargetTime = 0
	}
	if err := a.repo.CreateStatus(ctx, scope, status); err != nil {
		return nil, err
	}

	log.Info().
		Str("section_id", sectionID).
		Str("status_id", status.ID).
		Str("timer_type", string(status.TimerType)).
		Msg("created status")
	return &status, nil
}

// UpdateStatus merges the non-nil fields of req into an existing status
func (a *App) UpdateStatus(ctx context.Context, scope models.Scope, sectionID, statusID string, req UpdateStatusRequest) (*models.Status, error) {
	if err := validateUpdate(req); err != nil {
		return nil, err
	}
	if err := a.requireSection(ctx, scope, sectionID); err != nil {
		return nil, err
	}
	current, err := a.repo.GetStatus(ctx, scope, sectionID, statusID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, models.NotFound("status", statusID)
	}

	fields := req.fields()
	if len(fields) > 0 {
		if err := a.repo.UpdateStatus(ctx, scope, sectionID, statusID, fields); err != nil {
			return nil, err
		}
	}

	updated, err := a.repo.GetStatus(ctx, scope, sectionID, statusID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, models.NotFound("status", statusID)
	}
	log.Info().Str("section_id", sectionID).Str("status_id", statusID).Msg("updated status")
	return updated, nil
}

// DeleteStatus removes a status. Rooms referencing it keep their statusId and color.
func (a *App) DeleteStatus(ctx context.Context, scope models.Scope, sectionID, statusID string) error {
	if err := a.requireSection(ctx, scope, sectionID); err != nil {
		return err
	}
	if err := a.repo.DeleteStatus(ctx, scope, sectionID, statusID); err != nil {
		return err
	}
	log.Info().Str("section_id", sectionID).Str("status_id", statusID).Msg("deleted status")
	return nil
}

// GetStatus returns one status or a NotFound error
func (a *App) GetStatus(ctx context.Context, scope models.Scope, sectionID, statusID string) (*models.Status, error) {
	status, err := a.repo.GetStatus(ctx, scope, sectionID, statusID)
	if err != nil {
		return nil, err
	}
	if status == nil {
		return nil, models.NotFound("status", statusID)
	}
	return status, nil
}

// ListStatuses returns every status of the section sorted by name
func (a *App) ListStatuses(ctx context.Context, scope models.Scope, sectionID string) ([]models.Status, error) {
	if err := a.requireSection(ctx, scope, sectionID); err != nil {
		return nil, err
	}
	byID, err := a.repo.ListStatuses(ctx, scope, sectionID)
	if err != nil {
		return nil, err
	}
	return SortByName(byID), nil
}

// ApplyPresets creates the configured default statuses in a new section
func (a *App) ApplyPresets(ctx context.Context, scope models.Scope, sectionID string) error {
	for _, preset := range a.presets {
		if _, err := a.CreateStatus(ctx, scope, sectionID, preset); err != nil {
			return fmt.Errorf("failed to apply preset %q: %w", preset.Name, err)
		}
	}
	return nil
}

func (a *App) requireSection(ctx context.Context, scope models.Scope, sectionID string) error {
	ok, err := a.repo.SectionExists(ctx, scope, sectionID)
	if err != nil {
		return err
	}
	if !ok {
		return models.NotFound("section", sectionID)
	}
	return nil
}

// SortByName orders a status map by name, then id
func SortByName(byID map[string]models.Status) []models.Status {
	out := make([]models.Status, 0, len(byID))
	for _, s := range byID {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func validateCreate(req CreateStatusRequest) error {
	var v models.Validation
	v.Check(strings.TrimSpace(req.Name) != "", msgNameRequired)
	v.Check(req.TimerType.Valid(), msgInvalidTimerType)
	v.Check(req.TargetTime >= 0, msgNegativeTarget)
	return v.Err()
}

func validateUpdate(req UpdateStatusRequest) error {
	var v models.Validation
	if req.Name != nil {
		v.Check(strings.TrimSpace(*req.Name) != "", msgNameRequired)
	}
	if req.TimerType != nil {
		v.Check(req.TimerType.Valid(), msgInvalidTimerType)
	}
	if req.TargetTime != nil {
		v.Check(*req.TargetTime >= 0, msgNegativeTarget)
	}
	return v.Err()
}
