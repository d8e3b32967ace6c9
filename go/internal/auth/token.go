package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/roomboard/go/internal/models"
)

const issuer = "roomboard"

// Claims are the JWT claims of a board session.
type Claims struct {
	jwt.RegisteredClaims
	Email        string      `json:"email"`
	HospitalID   string      `json:"hospital_id"`
	DepartmentID string      `json:"department_id"`
	Role         models.Role `json:"role"`
}

// TokenManager issues and validates HS256 session tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	clock  clockwork.Clock
}

func NewTokenManager(secret string, ttl time.Duration, clock clockwork.Clock) *TokenManager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, clock: clock}
}

// Issue signs a token for user and returns it with its expiry.
func (m *TokenManager) Issue(user models.HospitalUser) (string, time.Time, error) {
	if m == nil || len(m.secret) == 0 {
		return "", time.Time{}, models.ErrNotInitialized
	}
	now := m.clock.Now()
	expires := now.Add(m.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Email:        user.Email,
		HospitalID:   user.HospitalID,
		DepartmentID: user.DepartmentID,
		Role:         user.Role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expires, nil
}

// Parse validates token and returns the identity it carries.
func (m *TokenManager) Parse(token string) (Identity, error) {
	if m == nil || len(m.secret) == 0 {
		return Identity{}, models.ErrNotInitialized
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return m.secret, nil
		},
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.clock.Now),
	)
	if err != nil || !parsed.Valid {
		return Identity{}, fmt.Errorf("invalid token: %w", models.ErrUnauthorized)
	}
	if claims.Subject == "" || claims.HospitalID == "" || claims.DepartmentID == "" {
		return Identity{}, fmt.Errorf("token is missing its scope: %w", models.ErrUnauthorized)
	}
	return Identity{
		UserID: claims.Subject,
		Email:  claims.Email,
		Role:   claims.Role,
		Scope: models.Scope{
			HospitalID:   claims.HospitalID,
			DepartmentID: claims.DepartmentID,
		},
	}, nil
}
