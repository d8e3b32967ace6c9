package models

import (
	"errors"
	"strings"
)

var (
	// ErrNotInitialized is returned when a store or auth handle is used before setup
	ErrNotInitialized = errors.New("not initialized")
	// ErrNotFound is matched by every NotFoundError
	ErrNotFound = errors.New("not found")
	// ErrStoreOperationFailed is matched by backend failures on get/set/update/remove
	ErrStoreOperationFailed = errors.New("store operation failed")
	// ErrUnauthorized covers missing, expired or rejected credentials
	ErrUnauthorized = errors.New("unauthorized")
	// ErrConflict is returned when a unique value such as an email is taken
	ErrConflict = errors.New("conflict")
)

// NotFoundError names the missing entity, e.g. "section not found"
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return e.Entity + " not found"
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NotFound builds a NotFoundError for entity/id
func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ValidationError carries every violated rule of a rejected request
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "\n")
}

// Validation collects problems; Err returns nil when there are none.
type Validation struct {
	problems []string
}

func (v *Validation) Check(ok bool, problem string) {
	if !ok {
		v.problems = append(v.problems, problem)
	}
}

func (v *Validation) Err() error {
	if len(v.problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: append([]string(nil), v.problems...)}
}

// IsValidation reports whether err carries a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
