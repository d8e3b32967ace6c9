package statuses

import (
	"context"
	"net/http"

	"github.com/mcdev12/roomboard/go/internal/auth"
	"github.com/mcdev12/roomboard/go/internal/httputil"
	"github.com/mcdev12/roomboard/go/internal/models"
)

// StatusesApp defines what the service layer needs from the statuses application
type StatusesApp interface {
	CreateStatus(ctx context.Context, scope models.Scope, sectionID string, req CreateStatusRequest) (*models.Status, error)
	UpdateStatus(ctx context.Context, scope models.Scope, sectionID, statusID string, req UpdateStatusRequest) (*models.Status, error)
	DeleteStatus(ctx context.Context, scope models.Scope, sectionID, statusID string) error
	ListStatuses(ctx context.Context, scope models.Scope, sectionID string) ([]models.Status, error)
}

// Service exposes status templates over HTTP
type Service struct {
	app StatusesApp
}

// NewService creates a new statuses HTTP service
func NewService(app StatusesApp) *Service {
	return &Service{app: app}
}

// RegisterRoutes mounts the handlers behind mw
func (s *Service) RegisterRoutes(mux *http.ServeMux, mw func(http.Handler) http.Handler) {
	mux.Handle("GET /api/sections/{sectionID}/statuses", mw(http.HandlerFunc(s.ListStatuses)))
	mux.Handle("POST /api/sections/{sectionID}/statuses", mw(http.HandlerFunc(s.CreateStatus)))
	mux.Handle("PATCH /api/sections/{sectionID}/statuses/{statusID}", mw(http.HandlerFunc(s.UpdateStatus)))
	mux.Handle("DELETE /api/sections/{sectionID}/statuses/{statusID}", mw(http.HandlerFunc(s.DeleteStatus)))
}

// ListStatuses returns the section's statuses sorted by name
func (s *Service) ListStatuses(w http.ResponseWriter, r *http.Request) {
	scope, err := auth.ScopeFrom(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	list, err := s.app.ListStatuses(r.Context(), scope, r.PathValue("sectionID"))
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"statuses": list})
}

// CreateStatus adds a status template
func (s *Service) CreateStatus(w http.ResponseWriter, r *http.Request) {
	scope, err := auth.ScopeFrom(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	var req CreateStatusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, httputil.BadRequest(err))
		return
	}
	status, err := s.app.CreateStatus(r.Context(), scope, r.PathValue("sectionID"), req)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, status)
}

// UpdateStatus applies a partial update
func (s *Service) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	scope, err := auth.ScopeFrom(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	var req UpdateStatusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, httputil.BadRequest(err))
		return
	}
	status, err := s.app.UpdateStatus(r.Context(), scope, r.PathValue("sectionID"), r.PathValue("statusID"), req)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

// DeleteStatus removes a status template
func (s *Service) DeleteStatus(w http.ResponseWriter, r *http.Request) {
	scope, err := auth.ScopeFrom(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if err := s.app.DeleteStatus(r.Context(), scope, r.PathValue("sectionID"), r.PathValue("statusID")); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
