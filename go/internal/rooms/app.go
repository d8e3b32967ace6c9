package rooms

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/roomboard/go/internal/models"
	"github.com/rs/zerolog/log"
)

// RoomsRepository defines what the app layer needs from the repository
type RoomsRepository interface {
	SectionExists(ctx context.Context, scope models.Scope, sectionID string) (bool, error)
	CountRooms(ctx context.Context, scope models.Scope, sectionID string) (int, error)
	CreateRoom(ctx context.Context, scope models.Scope, sectionID string, room models.Room) error
	GetRoom(ctx context.Context, scope models.Scope, sectionID, roomID string) (*models.Room, error)
	UpdateRoom(ctx context.Context, scope models.Scope, sectionID, roomID string, fields map[string]any) error
	DeleteRoom(ctx context.Context, scope models.Scope, sectionID, roomID string) error
}

// StatusLookup resolves the section's status templates
type StatusLookup interface {
	GetStatus(ctx context.Context, scope models.Scope, sectionID, statusID string) (*models.Status, error)
	ListStatuses(ctx context.Context, scope models.Scope, sectionID string) ([]models.Status, error)
}

// App handles room business logic
type App struct {
	repo     RoomsRepository
	statuses StatusLookup
	clock    clockwork.Clock
}

// NewApp creates a new rooms App
func NewApp(repo RoomsRepository, statuses StatusLookup, clock clockwork.Clock) *App {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &App{
		repo:     repo,
		statuses: statuses,
		clock:    clock,
	}
}

// DefaultName is the name of the n-th room of a section
func DefaultName(n int) string {
	return fmt.Sprintf("%d번방", n)
}

// CreateRoom adds an empty room named after its position in the section
func (a *App) CreateRoom(ctx context.Context, scope models.Scope, sectionID string) (*models.Room, error) {
	ok, err := a.repo.SectionExists(ctx, scope, sectionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NotFound("section", sectionID)
	}
	count, err := a.repo.CountRooms(ctx, scope, sectionID)
	if err != nil {
		return nil, err
	}

	cleared := models.ClearedTimer()
	room := models.Room{
		ID:        uuid.NewString(),
		Name:      DefaultName(count + 1),
		Timer:     &cleared,
		CreatedAt: a.clock.Now().UnixMilli(),
	}
	if err := a.repo.CreateRoom(ctx, scope, sectionID, room); err != nil {
		return nil, err
	}

	log.Info().Str("section_id", sectionID).Str("room_id", room.ID).Str("name", room.Name).Msg("created room")
	return &room, nil
}

// GetRoom returns one room
func (a *App) GetRoom(ctx context.Context, scope models.Scope, sectionID, roomID string) (*models.Room, error) {
	room, err := a.repo.GetRoom(ctx, scope, sectionID, roomID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, models.NotFound("room", roomID)
	}
	return room, nil
}

// RenameRoom merges the name field only
func (a *App) RenameRoom(ctx context.Context, scope models.Scope, sectionID, roomID, name string) (*models.Room, error) {
	name = strings.TrimSpace(name)
	var v models.Validation
	v.Check(name != "", msgRoomNameRequired)
	if err := v.Err(); err != nil {
		return nil, err
	}
	if _, err := a.GetRoom(ctx, scope, sectionID, roomID); err != nil {
		return nil, err
	}
	if err := a.repo.UpdateRoom(ctx, scope, sectionID, roomID, map[string]any{"name": name}); err != nil {
		return nil, err
	}
	log.Info().Str("section_id", sectionID).Str("room_id", roomID).Str("name", name).Msg("renamed room")
	return a.GetRoom(ctx, scope, sectionID, roomID)
}

// DeleteRoom removes the room. Live views observe the removal and stop its timer.
func (a *App) DeleteRoom(ctx context.Context, scope models.Scope, sectionID, roomID string) error {
	if _, err := a.GetRoom(ctx, scope, sectionID, roomID); err != nil {
		return err
	}
	if err := a.repo.DeleteRoom(ctx, scope, sectionID, roomID); err != nil {
		return err
	}
	log.Info().Str("section_id", sectionID).Str("room_id", roomID).Msg("deleted room")
	return nil
}

// SaveStatus assigns a patient and status to a room and starts a fresh timer.
// Every violated rule is reported before anything is written.
func (a *App) SaveStatus(ctx context.Context, scope models.Scope, sectionID, roomID string, req SaveStatusRequest) (*models.Room, error) {
	var status *models.Status
	if req.StatusID != "" {
		found, err := a.statuses.GetStatus(ctx, scope, sectionID, req.StatusID)
		switch {
		case err == nil:
			status = found
		case errors.Is(err, models.ErrNotFound):
		default:
			return nil, err
		}
	}

	timerType := req.TimerType
	if status != nil {
		timerType = status.TimerType
	}

	var v models.Validation
	v.Check(strings.TrimSpace(req.PatientName) != "", msgPatientNameRequired)
	v.Check(req.StatusID != "", msgStatusRequired)
	if timerType == models.TimerTypeCountdown {
		inRange := req.Minutes >= 0 && req.Seconds >= 0 && req.Seconds < 60
		v.Check(inRange, msgDurationOutOfRange)
		v.Check(!inRange || req.DurationSeconds() >= 1, msgDurationTooShort)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	if status == nil {
		return nil, models.NotFound("status", req.StatusID)
	}
	if _, err := a.GetRoom(ctx, scope, sectionID, roomID); err != nil {
		return nil, err
	}

	timer := models.NewTimer(status.Spec(req.DurationSeconds()), a.clock.Now().UnixMilli())

	fields := map[string]any{
		"patientName": strings.TrimSpace(req.PatientName),
		"memo":        req.Memo,
		"statusId":    status.ID,
		"statusColor": status.Color,
		"timer":       timer,
	}
	if err := a.repo.UpdateRoom(ctx, scope, sectionID, roomID, fields); err != nil {
		return nil, err
	}

	log.Info().
		Str("section_id", sectionID).
		Str("room_id", roomID).
		Str("status_id", status.ID).
		Str("timer_type", string(timer.Type)).
		Int64("target_time", timer.TargetTime).
		Msg("saved room status")
	return a.GetRoom(ctx, scope, sectionID, roomID)
}

// ResetRoom clears the patient, status and timer of a room
func (a *App) ResetRoom(ctx context.Context, scope models.Scope, sectionID, roomID string) (*models.Room, error) {
	if _, err := a.GetRoom(ctx, scope, sectionID, roomID); err != nil {
		return nil, err
	}
	fields := map[string]any{
		"patientName": "",
		"memo":        "",
		"statusId":    "",
		"statusColor": "",
		"timer":       models.ClearedTimer(),
	}
	if err := a.repo.UpdateRoom(ctx, scope, sectionID, roomID, fields); err != nil {
		return nil, err
	}
	log.Info().Str("section_id", sectionID).Str("room_id", roomID).Msg("reset room")
	return a.GetRoom(ctx, scope, sectionID, roomID)
}

// OpenForm prefills the status-assignment form from the room's current record
func (a *App) OpenForm(ctx context.Context, scope models.Scope, sectionID, roomID string) (*Form, error) {
	room, err := a.GetRoom(ctx, scope, sectionID, roomID)
	if err != nil {
		return nil, err
	}
	list, err := a.statuses.ListStatuses(ctx, scope, sectionID)
	if err != nil {
		return nil, err
	}
	form := NewForm(*room, list)
	return &form, nil
}

// NewForm builds the form once from room. The duration comes from the room's
// countdown target, or the selected template's default.
func NewForm(room models.Room, statuses []models.Status) Form {
	form := Form{
		RoomID:      room.ID,
		PatientName: room.PatientName,
		Memo:        room.Memo,
		Statuses:    statuses,
	}
	for _, st := range statuses {
		if st.ID == room.StatusID {
			form.StatusID = st.ID
			form.TimerType = st.TimerType
			if st.TimerType == models.TimerTypeCountdown {
				form.Minutes, form.Seconds = st.TargetTime/60, st.TargetTime%60
			}
			break
		}
	}
	if t := room.Timer; t != nil && t.Type == models.TimerTypeCountdown && t.TargetTime > 0 {
		form.Minutes, form.Seconds = t.TargetTime/60, t.TargetTime%60
	}
	return form
}

// Request turns the form back into a save request
func (f Form) Request() SaveStatusRequest {
	return SaveStatusRequest{
		PatientName: f.PatientName,
		Memo:        f.Memo,
		StatusID:    f.StatusID,
		TimerType:   f.TimerType,
		Minutes:     f.Minutes,
		Seconds:     f.Seconds,
	}
}

// SelectStatus switches the form to another template and its default duration
func (f *Form) SelectStatus(statusID string) {
	f.StatusID = statusID
	f.TimerType = ""
	for _, st := range f.Statuses {
		if st.ID == statusID {
			f.TimerType = st.TimerType
			if st.TimerType == models.TimerTypeCountdown && st.TargetTime > 0 {
				f.Minutes, f.Seconds = st.TargetTime/60, st.TargetTime%60
			}
			return
		}
	}
}
