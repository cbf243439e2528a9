package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/thirtybees/blocknewsletter/internal/pkg/errors"
	"github.com/thirtybees/blocknewsletter/pkg/auth"
)

func newTestAuthService(t *testing.T) *AuthService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	jwtService, err := auth.NewJWTService("jwt-secret", 1)
	require.NoError(t, err)

	svc, err := NewAuthService("admin", string(hash), jwtService, zap.NewNop())
	require.NoError(t, err)
	return svc
}

func TestNewAuthService_RejectsNonBcryptHash(t *testing.T) {
	jwtService, err := auth.NewJWTService("jwt-secret", 1)
	require.NoError(t, err)

	_, err = NewAuthService("admin", "plain-text", jwtService, zap.NewNop())
	assert.Error(t, err)
}

func TestAuthService_Login(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		wantErr  bool
	}{
		{name: "valid credentials", username: "admin", password: "s3cret"},
		{name: "wrong password", username: "admin", password: "nope", wantErr: true},
		{name: "wrong username", username: "root", password: "s3cret", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			svc := newTestAuthService(t)

			// Act
			res, err := svc.Login(context.Background(), tt.username, tt.password)

			// Assert
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
				assert.Nil(t, res)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Bearer", res.TokenType)

			username, err := svc.ValidateToken(res.AccessToken)
			require.NoError(t, err)
			assert.Equal(t, "admin", username)
		})
	}
}
