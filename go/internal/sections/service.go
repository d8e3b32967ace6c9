package sections

import (
	"context"
	"net/http"

	"github.com/mcdev12/roomboard/go/internal/auth"
	"github.com/mcdev12/roomboard/go/internal/httputil"
	"github.com/mcdev12/roomboard/go/internal/models"
)

// SectionsApp defines what the service layer needs from the sections application
type SectionsApp interface {
	CreateSection(ctx context.Context, scope models.Scope, name string) (*models.Section, error)
	GetSection(ctx context.Context, scope models.Scope, sectionID string) (*models.Section, error)
	ListSections(ctx context.Context, scope models.Scope) ([]models.Section, error)
	RenameSection(ctx context.Context, scope models.Scope, sectionID, name string) (*models.Section, error)
	DeleteSection(ctx context.Context, scope models.Scope, sectionID string) error
}

// Service exposes sections over HTTP
type Service struct {
	app SectionsApp
}

// NewService creates a new sections HTTP service
func NewService(app SectionsApp) *Service {
	return &Service{app: app}
}

type nameRequest struct {
	Name string `json:"name"`
}

// RegisterRoutes mounts the handlers behind mw
func (s *Service) RegisterRoutes(mux *http.ServeMux, mw func(http.Handler) http.Handler) {
	mux.Handle("GET /api/sections", mw(http.HandlerFunc(s.ListSections)))
	mux.Handle("POST /api/sections", mw(http.HandlerFunc(s.CreateSection)))
	mux.Handle("GET /api/sections/{sectionID}", mw(http.HandlerFunc(s.GetSection)))
	mux.Handle("PATCH /api/sections/{sectionID}", mw(http.HandlerFunc(s.RenameSection)))
	mux.Handle("DELETE /api/sections/{sectionID}", mw(http.HandlerFunc(s.DeleteSection)))
}

func (s *Service) ListSections(w http.ResponseWriter, r *http.Request) {
	scope, err := auth.ScopeFrom(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	list, err := s.app.ListSections(r.Context(), scope)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"sections": list})
}

// CreateSection accepts an empty body for a default-named section
func (s *Service) CreateSection(w http.ResponseWriter, r *http.Request) {
	scope, err := auth.ScopeFrom(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	var req nameRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.WriteError(w, r, httputil.BadRequest(err))
			return
		}
	}
	section, err := s.app.CreateSection(r.Context(), scope, req.Name)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, section)
}

func (s *Service) GetSection(w http.ResponseWriter, r *http.Request) {
	scope, err := auth.ScopeFrom(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	section, err := s.app.GetSection(r.Context(), scope, r.PathValue("sectionID"))
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, section)
}

func (s *Service) RenameSection(w http.ResponseWriter, r *http.Request) {
	scope, err := auth.ScopeFrom(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	var req nameRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, httputil.BadRequest(err))
		return
	}
	section, err := s.app.RenameSection(r.Context(), scope, r.PathValue("sectionID"), req.Name)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, section)
}

func (s *Service) DeleteSection(w http.ResponseWriter, r *http.Request) {
	scope, err := auth.ScopeFrom(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if err := s.app.DeleteSection(r.Context(), scope, r.PathValue("sectionID")); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
