package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/roomboard/go/internal/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// UsersRepository defines what the app layer needs from the repository
type UsersRepository interface {
	CreateHospital(ctx context.Context, hospital models.Hospital) error
	GetHospital(ctx context.Context, id string) (*models.Hospital, error)
	CreateUser(ctx context.Context, rec userRecord) error
	GetUser(ctx context.Context, id string) (*userRecord, error)
	GetUserIDByEmail(ctx context.Context, email string) (string, error)
}

// App handles account business logic
type App struct {
	repo       UsersRepository
	clock      clockwork.Clock
	bcryptCost int
}

// NewApp creates a new users App. A zero cost selects bcrypt.DefaultCost.
func NewApp(repo UsersRepository, clock clockwork.Clock, bcryptCost int) *App {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &App{
		repo:       repo,
		clock:      clock,
		bcryptCost: bcryptCost,
	}
}

// SignUp creates a hospital with one department and its first account
func (a *App) SignUp(ctx context.Context, req SignUpRequest) (*models.HospitalUser, error) {
	if err := validateSignUp(req); err != nil {
		return nil, err
	}
	email := strings.TrimSpace(req.Email)

	existing, err := a.repo.GetUserIDByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != "" {
		return nil, fmt.Errorf("email %s is already registered: %w", email, models.ErrConflict)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), a.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := a.clock.Now().UnixMilli()
	hospitalID := fmt.Sprintf("hospital-%d-%s", now, shortID())
	departmentID := fmt.Sprintf("dept-%d-%s", now, shortID())
	hospitalName := strings.TrimSpace(req.HospitalName)
	departmentName := strings.TrimSpace(req.DepartmentName)

	hospital := models.Hospital{
		ID:   hospitalID,
		Name: hospitalName,
		Departments: map[string]models.Department{
			departmentID: {ID: departmentID, Name: departmentName},
		},
		CreatedAt: now,
	}
	if err := a.repo.CreateHospital(ctx, hospital); err != nil {
		return nil, err
	}

	rec := userRecord{
		HospitalUser: models.HospitalUser{
			ID:             uuid.NewString(),
			Email:          email,
			HospitalID:     hospitalID,
			DepartmentID:   departmentID,
			Role:           models.RoleUser,
			HospitalName:   hospitalName,
			DepartmentName: departmentName,
			CreatedAt:      now,
		},
		PasswordHash: string(hash),
	}
	if err := a.repo.CreateUser(ctx, rec); err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", rec.ID).
		Str("hospital_id", hospitalID).
		Str("department_id", departmentID).
		Msg("signed up hospital account")
	user := rec.HospitalUser
	return &user, nil
}

// shortID is a random suffix that keeps same-millisecond IDs apart
func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Authenticate checks a password. Unknown emails return a NotFound error and
// wrong passwords ErrUnauthorized; callers must not tell them apart to users.
func (a *App) Authenticate(ctx context.Context, email, password string) (*models.HospitalUser, error) {
	id, err := a.repo.GetUserIDByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, models.NotFound("user", email)
	}
	rec, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, models.NotFound("user", id)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, models.ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to compare password: %w", err)
	}
	user := rec.HospitalUser
	return &user, nil
}

// GetUser retrieves an account by id
func (a *App) GetUser(ctx context.Context, id string) (*models.HospitalUser, error) {
	rec, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, models.NotFound("user", id)
	}
	user := rec.HospitalUser
	return &user, nil
}

// GetUserHospital joins an account with its hospital and department names.
// It returns nil when either record is missing.
func (a *App) GetUserHospital(ctx context.Context, userID string) (*models.UserHospital, error) {
	rec, err := a.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	hospital, err := a.repo.GetHospital(ctx, rec.HospitalID)
	if err != nil {
		return nil, err
	}
	if hospital == nil {
		return nil, nil
	}
	return &models.UserHospital{
		HospitalID:     rec.HospitalID,
		DepartmentID:   rec.DepartmentID,
		HospitalName:   hospital.Name,
		DepartmentName: hospital.Departments[rec.DepartmentID].Name,
	}, nil
}

func validateSignUp(req SignUpRequest) error {
	var v models.Validation
	email := strings.TrimSpace(req.Email)
	if email == "" {
		v.Check(false, msgEmailRequired)
	} else {
		_, err := mail.ParseAddress(email)
		v.Check(err == nil, msgEmailInvalid)
	}
	if req.Password == "" {
		v.Check(false, msgPasswordRequired)
	} else {
		v.Check(len(req.Password) >= minPasswordLength, msgPasswordTooShort)
	}
	v.Check(req.PasswordConfirm == "" || req.PasswordConfirm == req.Password, msgPasswordMismatch)
	v.Check(strings.TrimSpace(req.HospitalName) != "", msgHospitalRequired)
	v.Check(strings.TrimSpace(req.DepartmentName) != "", msgDepartmentRequired)
	return v.Err()
}
