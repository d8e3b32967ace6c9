package users

import (
	"context"
	"net/http"

	"github.com/mcdev12/roomboard/go/internal/auth"
	"github.com/mcdev12/roomboard/go/internal/httputil"
	"github.com/mcdev12/roomboard/go/internal/models"
)

// UsersApp defines what the service layer needs from the users application
type UsersApp interface {
	SignUp(ctx context.Context, req SignUpRequest) (*models.HospitalUser, error)
	GetUserHospital(ctx context.Context, userID string) (*models.UserHospital, error)
}

// SessionIssuer opens a session for a freshly created account
type SessionIssuer interface {
	NewSession(user models.HospitalUser) (*auth.Session, error)
}

// Service exposes sign-up and the account's hospital over HTTP
type Service struct {
	app      UsersApp
	sessions SessionIssuer
}

// NewService creates a new users HTTP service
func NewService(app UsersApp, sessions SessionIssuer) *Service {
	return &Service{
		app:      app,
		sessions: sessions,
	}
}

// RegisterRoutes mounts sign-up publicly and the hospital lookup behind mw
func (s *Service) RegisterRoutes(mux *http.ServeMux, mw func(http.Handler) http.Handler) {
	mux.HandleFunc("POST /api/auth/signup", s.SignUp)
	mux.Handle("GET /api/me/hospital", mw(http.HandlerFunc(s.GetUserHospital)))
}

// SignUp creates the account and logs it in
func (s *Service) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, httputil.BadRequest(err))
		return
	}
	user, err := s.app.SignUp(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	session, err := s.sessions.NewSession(*user)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, session)
}

// GetUserHospital returns the caller's hospital and department names
func (s *Service) GetUserHospital(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		httputil.WriteError(w, r, models.ErrUnauthorized)
		return
	}
	hospital, err := s.app.GetUserHospital(r.Context(), id.UserID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if hospital == nil {
		httputil.WriteError(w, r, models.NotFound("hospital", id.Scope.HospitalID))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, hospital)
}
