package rooms

import (
	"context"
	"net/http"

	"github.com/mcdev12/roomboard/go/internal/auth"
	"github.com/mcdev12/roomboard/go/internal/httputil"
	"github.com/mcdev12/roomboard/go/internal/models"
)

// RoomsApp defines what the service layer needs from the rooms application
type RoomsApp interface {
	CreateRoom(ctx context.Context, scope models.Scope, sectionID string) (*models.Room, error)
	GetRoom(ctx context.Context, scope models.Scope, sectionID, roomID string) (*models.Room, error)
	RenameRoom(ctx context.Context, scope models.Scope, sectionID, roomID, name string) (*models.Room, error)
	DeleteRoom(ctx context.Context, scope models.Scope, sectionID, roomID string) error
	SaveStatus(ctx context.Context, scope models.Scope, sectionID, roomID string, req SaveStatusRequest) (*models.Room, error)
	ResetRoom(ctx context.Context, scope models.Scope, sectionID, roomID string) (*models.Room, error)
	OpenForm(ctx context.Context, scope models.Scope, sectionID, roomID string) (*Form, error)
}

// Service exposes rooms over HTTP
type Service struct {
	app RoomsApp
}

// NewService creates a new rooms HTTP service
func NewService(app RoomsApp) *Service {
	return &Service{app: app}
}

// RegisterRoutes mounts the handlers behind mw
func (s *Service) RegisterRoutes(mux *http.ServeMux, mw func(http.Handler) http.Handler) {
	const room = "/api/sections/{sectionID}/rooms/{roomID}"
	mux.Handle("POST /api/sections/{sectionID}/rooms", mw(http.HandlerFunc(s.CreateRoom)))
	mux.Handle("GET "+room, mw(http.HandlerFunc(s.GetRoom)))
	mux.Handle("PATCH "+room, mw(http.HandlerFunc(s.RenameRoom)))
	mux.Handle("DELETE "+room, mw(http.HandlerFunc(s.DeleteRoom)))
	mux.Handle("PUT "+room+"/status", mw(http.HandlerFunc(s.SaveStatus)))
	mux.Handle("POST "+room+"/reset", mw(http.HandlerFunc(s.ResetRoom)))
	mux.Handle("GET "+room+"/form", mw(http.HandlerFunc(s.OpenForm)))
}

type roomHandler func(ctx context.Context, scope models.Scope, sectionID, roomID string, r *http.Request) (any, int, error)

// serve resolves the caller's scope and the path ids around h
func serve(w http.ResponseWriter, r *http.Request, h roomHandler) {
	scope, err := auth.ScopeFrom(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	body, status, err := h(r.Context(), scope, r.PathValue("sectionID"), r.PathValue("roomID"), r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if body == nil {
		w.WriteHeader(status)
		return
	}
	httputil.WriteJSON(w, status, body)
}

func (s *Service) CreateRoom(w http.ResponseWriter, r *http.Request) {
	serve(w, r, func(ctx context.Context, scope models.Scope, sectionID, _ string, _ *http.Request) (any, int, error) {
		room, err := s.app.CreateRoom(ctx, scope, sectionID)
		return room, http.StatusCreated, err
	})
}

func (s *Service) GetRoom(w http.ResponseWriter, r *http.Request) {
	serve(w, r, func(ctx context.Context, scope models.Scope, sectionID, roomID string, _ *http.Request) (any, int, error) {
		room, err := s.app.GetRoom(ctx, scope, sectionID, roomID)
		return room, http.StatusOK, err
	})
}

func (s *Service) RenameRoom(w http.ResponseWriter, r *http.Request) {
	serve(w, r, func(ctx context.Context, scope models.Scope, sectionID, roomID string, r *http.Request) (any, int, error) {
		var req struct {
			Name string `json:"name"`
		}
		if err := httputil.DecodeJSON(r, &req); err != nil {
			return nil, 0, httputil.BadRequest(err)
		}
		room, err := s.app.RenameRoom(ctx, scope, sectionID, roomID, req.Name)
		return room, http.StatusOK, err
	})
}

func (s *Service) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	serve(w, r, func(ctx context.Context, scope models.Scope, sectionID, roomID string, _ *http.Request) (any, int, error) {
		return nil, http.StatusNoContent, s.app.DeleteRoom(ctx, scope, sectionID, roomID)
	})
}

// SaveStatus answers 422 with every problem when the form is invalid
func (s *Service) SaveStatus(w http.ResponseWriter, r *http.Request) {
	serve(w, r, func(ctx context.Context, scope models.Scope, sectionID, roomID string, r *http.Request) (any, int, error) {
		var req SaveStatusRequest
		if err := httputil.DecodeJSON(r, &req); err != nil {
			return nil, 0, httputil.BadRequest(err)
		}
		room, err := s.app.SaveStatus(ctx, scope, sectionID, roomID, req)
		return room, http.StatusOK, err
	})
}

func (s *Service) ResetRoom(w http.ResponseWriter, r *http.Request) {
	serve(w, r, func(ctx context.Context, scope models.Scope, sectionID, roomID string, _ *http.Request) (any, int, error) {
		room, err := s.app.ResetRoom(ctx, scope, sectionID, roomID)
		return room, http.StatusOK, err
	})
}

func (s *Service) OpenForm(w http.ResponseWriter, r *http.Request) {
	serve(w, r, func(ctx context.Context, scope models.Scope, sectionID, roomID string, _ *http.Request) (any, int, error) {
		form, err := s.app.OpenForm(ctx, scope, sectionID, roomID)
		return form, http.StatusOK, err
	})
}
