package invite

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	invitemodel "github.com/lawha-app/lawha/backend/internal/model/invite"
)

var (
	ErrInvalidToken      = errors.New("invalid invite token")
	ErrExpiredToken      = errors.New("expired invite token")
	ErrInvalidPermission = errors.New("unknown permission level")
)

// Claims is the signed payload of an invite token.
type Claims struct {
	ProjectID  string                 `json:"project"`
	Permission invitemodel.Permission `json:"permission"`
	jwt.RegisteredClaims
}

// Service issues and validates shareable project invite links. Tokens are
// HMAC-SHA256 JWTs; a link works any number of times until it expires.
type Service struct {
	secret     []byte
	baseURL    string
	defaultTTL time.Duration
}

// NewService creates an invite service signing with secret. Links embed
// baseURL; ttl is used when the caller does not pick one.
func NewService(secret []byte, baseURL string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Service{secret: secret, baseURL: baseURL, defaultTTL: ttl}
}

// Generate issues an invite link for the project at the given permission
// level.
func (s *Service) Generate(projectID string, level invitemodel.Permission, ttl time.Duration) (invitemodel.Link, error) {
	if !level.Valid() {
		return invitemodel.Link{}, ErrInvalidPermission
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	expiresAt := time.Now().UTC().Add(ttl)
	claims := Claims{
		ProjectID:  projectID,
		Permission: level,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return invitemodel.Link{}, fmt.Errorf("sign invite token: %w", err)
	}

	return invitemodel.Link{
		Token:           token,
		URL:             fmt.Sprintf("%s/projects/%s/join?invite=%s", s.baseURL, projectID, token),
		ProjectID:       projectID,
		PermissionLevel: level,
		ExpiresAt:       expiresAt,
	}, nil
}

// Validate parses and verifies a token, returning the invite it encodes.
func (s *Service) Validate(token string) (invitemodel.Link, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return invitemodel.Link{}, ErrExpiredToken
		}
		return invitemodel.Link{}, ErrInvalidToken
	}
	if !parsed.Valid || claims.ProjectID == "" || !claims.Permission.Valid() {
		return invitemodel.Link{}, ErrInvalidToken
	}

	return invitemodel.Link{
		Token:           token,
		ProjectID:       claims.ProjectID,
		PermissionLevel: claims.Permission,
		ExpiresAt:       claims.ExpiresAt.Time,
	}, nil
}
