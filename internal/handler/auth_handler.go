package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/thirtybees/blocknewsletter/internal/handler/dto"
	"github.com/thirtybees/blocknewsletter/internal/service"
)

// AdminAuthenticator checks back-office credentials
type AdminAuthenticator interface {
	Login(ctx context.Context, username, password string) (*service.LoginResult, error)
}

// AuthHandler обрабатывает вход в back-office
type AuthHandler struct {
	auth AdminAuthenticator
	log  *zap.Logger
}

// NewAuthHandler создает новый обработчик аутентификации
func NewAuthHandler(auth AdminAuthenticator, log *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, log: log}
}

// Login выдает JWT администратору
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, dto.AdminLoginResponse{
		AccessToken: result.AccessToken,
		TokenType:   result.TokenType,
		ExpiresAt:   result.ExpiresAt,
	})
}
