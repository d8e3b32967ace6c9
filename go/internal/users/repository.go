package users

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/mcdev12/roomboard/go/internal/models"
	"github.com/mcdev12/roomboard/go/internal/store"
)

// emailIndexID is the users/{id} document that maps encoded emails to user ids
const emailIndexID = "_emails"

// Repository implements account data access on the shared store
type Repository struct {
	store store.Store
}

// NewRepository creates a new users repository
func NewRepository(s store.Store) *Repository {
	return &Repository{store: s}
}

func emailKey(email string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strings.ToLower(strings.TrimSpace(email))))
}

func emailIndexPath(email string) string {
	return store.JoinPath(store.UserPath(emailIndexID), emailKey(email))
}

// CreateHospital writes a hospital with its departments. It never replaces an
// existing hospital.
func (r *Repository) CreateHospital(ctx context.Context, hospital models.Hospital) error {
	v, err := store.ToValue(hospital)
	if err != nil {
		return fmt.Errorf("failed to encode hospital: %w", err)
	}
	fields, _ := v.(map[string]any)
	absent := func(current any) bool { return current == nil }
	created, err := r.store.UpdateIf(ctx, store.HospitalPath(hospital.ID), absent, fields)
	if err != nil {
		return fmt.Errorf("failed to create hospital: %w", err)
	}
	if !created {
		return fmt.Errorf("hospital %s already exists: %w", hospital.ID, models.ErrConflict)
	}
	return nil
}

// GetHospital returns nil when the hospital does not exist
func (r *Repository) GetHospital(ctx context.Context, id string) (*models.Hospital, error) {
	v, err := r.store.Get(ctx, store.HospitalPath(id))
	if err != nil {
		return nil, fmt.Errorf("failed to get hospital: %w", err)
	}
	if v == nil {
		return nil, nil
	}
	var hospital models.Hospital
	if err := store.Decode(v, &hospital); err != nil {
		return nil, fmt.Errorf("failed to decode hospital %s: %w", id, err)
	}
	return &hospital, nil
}

// CreateUser writes the account and indexes its email
func (r *Repository) CreateUser(ctx context.Context, rec userRecord) error {
	if err := r.store.Set(ctx, store.UserPath(rec.ID), rec); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	if err := r.store.Set(ctx, emailIndexPath(rec.Email), rec.ID); err != nil {
		return fmt.Errorf("failed to index user email: %w", err)
	}
	return nil
}

// GetUser returns nil when the account does not exist
func (r *Repository) GetUser(ctx context.Context, id string) (*userRecord, error) {
	if id == "" || id == emailIndexID {
		return nil, nil
	}
	v, err := r.store.Get(ctx, store.UserPath(id))
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if v == nil {
		return nil, nil
	}
	var rec userRecord
	if err := store.Decode(v, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode user %s: %w", id, err)
	}
	return &rec, nil
}

// GetUserIDByEmail returns "" when the email is not registered
func (r *Repository) GetUserIDByEmail(ctx context.Context, email string) (string, error) {
	v, err := r.store.Get(ctx, emailIndexPath(email))
	if err != nil {
		return "", fmt.Errorf("failed to look up email: %w", err)
	}
	id, _ := v.(string)
	return id, nil
}
