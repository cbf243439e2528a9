package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/thirtybees/blocknewsletter/internal/pkg/errors"
	"github.com/thirtybees/blocknewsletter/pkg/auth"
)

// LoginResult is returned to the back-office after a successful login.
type LoginResult struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// AuthService authenticates the back-office administrator.
type AuthService struct {
	username     string
	passwordHash []byte
	jwt          *auth.JWTService
	log          *zap.Logger
}

func NewAuthService(username, passwordHash string, jwt *auth.JWTService, log *zap.Logger) (*AuthService, error) {
	if username == "" || passwordHash == "" {
		return nil, fmt.Errorf("admin username and password hash are required")
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return nil, fmt.Errorf("admin password hash is not a bcrypt hash: %w", err)
	}
	return &AuthService{
		username:     username,
		passwordHash: []byte(passwordHash),
		jwt:          jwt,
		log:          log,
	}, nil
}

// Login checks the credentials and issues a bearer token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	// always run bcrypt so a wrong username costs the same as a wrong password
	passErr := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password))
	if !userOK || passErr != nil {
		s.log.Warn("admin login rejected", zap.String("username", username))
		return nil, fmt.Errorf("%w: invalid credentials", apperrors.ErrUnauthorized)
	}

	token, expiresAt, err := s.jwt.GenerateToken(s.username)
	if err != nil {
		return nil, err
	}
	s.log.Info("admin logged in", zap.String("username", username))
	return &LoginResult{AccessToken: token, TokenType: "Bearer", ExpiresAt: expiresAt}, nil
}

// ValidateToken returns the administrator name carried by a bearer token.
func (s *AuthService) ValidateToken(token string) (string, error) {
	claims, err := s.jwt.ParseToken(token)
	if err != nil {
		return "", err
	}
	return claims.Username, nil
}
