package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/thirtybees/blocknewsletter/internal/pkg/errors"
)

// TokenValidator checks an admin bearer token and returns the admin name
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

// AuthMiddleware обеспечивает аутентификацию для back-office маршрутов
type AuthMiddleware struct {
	validator TokenValidator
	log       *zap.Logger
}

func NewAuthMiddleware(validator TokenValidator, log *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{validator: validator, log: log}
}

// RequireAdmin пропускает запрос только с валидным Bearer токеном администратора
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required", "error_type": "token_missing"})
			return
		}

		// Проверяем формат заголовка Bearer {token}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}", "error_type": "token_format"})
			return
		}

		username, err := m.validator.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			if errors.Is(err, apperrors.ErrExpiredToken) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token is expired", "error_type": "token_expired"})
				return
			}
			m.log.Debug("admin token rejected", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token", "error_type": "token_invalid"})
			return
		}

		c.Set(ContextKeyAdmin, username)
		c.Next()
	}
}
