package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

var ErrAuthInvalidCredentials = errors.New("invalid username or password")

const (
	RoleAdmin  = "admin"
	RolePlayer = "player"
)

type AuthService interface {
	// LoginAdmin checks the configured operator credentials and returns a
	// signed token.
	LoginAdmin(ctx context.Context, username, password string) (string, error)

	// IssuePlayerToken mints a token for a player identity. Admin-only at
	// the route level; the engine itself does not verify the identity.
	IssuePlayerToken(ctx context.Context, userID, displayName string) (string, error)
}

type authService struct {
	adminUsername     string
	adminPasswordHash string
	jwtSecret         []byte
}

func NewAuthService(adminUsername, adminPasswordHash, jwtSecret string) AuthService {
	return &authService{
		adminUsername:     adminUsername,
		adminPasswordHash: adminPasswordHash,
		jwtSecret:         []byte(jwtSecret),
	}
}

func (s *authService) LoginAdmin(ctx context.Context, username, password string) (string, error) {
	if username != s.adminUsername {
		return "", ErrAuthInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.adminPasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return "", ErrAuthInvalidCredentials
		}
		return "", fmt.Errorf("failed to compare password hash: %w", err)
	}
	return s.sign(username, RoleAdmin, 24*time.Hour)
}

func (s *authService) IssuePlayerToken(ctx context.Context, userID, displayName string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: userId is required", ErrValidationFailed)
	}
	return s.sign(userID, RolePlayer, 7*24*time.Hour)
}

func (s *authService) sign(userID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"iat":     now.Unix(),
		"exp":     now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
