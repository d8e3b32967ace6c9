package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/mcdev12/roomboard/go/internal/httputil"
	"github.com/mcdev12/roomboard/go/internal/models"
	"github.com/rs/zerolog/log"
)

type credentialsError struct{}

func (credentialsError) Error() string { return "check your credentials" }

func (credentialsError) Is(target error) bool { return target == models.ErrUnauthorized }

// ErrInvalidCredentials never says whether the email or the password was wrong.
var ErrInvalidCredentials error = credentialsError{}

// Authenticator is the account directory the service checks passwords against
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*models.HospitalUser, error)
	GetUser(ctx context.Context, userID string) (*models.HospitalUser, error)
}

// Session is returned by login and sign-up
type Session struct {
	Token     string              `json:"token"`
	ExpiresAt time.Time           `json:"expiresAt"`
	User      models.HospitalUser `json:"user"`
}

// Service logs users in and guards the API
type Service struct {
	users  Authenticator
	tokens *TokenManager
}

func NewService(users Authenticator, tokens *TokenManager) *Service {
	return &Service{users: users, tokens: tokens}
}

// Login checks the credentials and opens a session
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	if s == nil || s.users == nil {
		return nil, models.ErrNotInitialized
	}
	user, err := s.users.Authenticate(ctx, strings.TrimSpace(email), password)
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) || errors.Is(err, models.ErrNotFound) {
			log.Info().Str("email", email).Msg("login rejected")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return s.NewSession(*user)
}

// NewSession issues a token for an already verified user
func (s *Service) NewSession(user models.HospitalUser) (*Session, error) {
	token, expires, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expires, User: user}, nil
}

// CurrentUser resolves the account behind a token
func (s *Service) CurrentUser(ctx context.Context, token string) (*models.HospitalUser, error) {
	id, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetUser(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		return nil, err
	}
	return user, nil
}

// Middleware resolves the caller from a Bearer header, or a token query
// parameter for websocket upgrades, and rejects the request otherwise.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			httputil.WriteError(w, r, models.ErrUnauthorized)
			return
		}
		id, err := s.tokens.Parse(token)
		if err != nil {
			httputil.WriteError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRoutes mounts login and the current-user endpoint
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/login", s.HandleLogin)
	mux.Handle("GET /api/me", s.Middleware(http.HandlerFunc(s.HandleMe)))
}

func (s *Service) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, httputil.BadRequest(err))
		return
	}
	session, err := s.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, session)
}

func (s *Service) HandleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		httputil.WriteError(w, r, models.ErrUnauthorized)
		return
	}
	user, err := s.users.GetUser(r.Context(), id.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			err = models.ErrUnauthorized
		}
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}
