package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/thirtybees/blocknewsletter/internal/captcha"
	"github.com/thirtybees/blocknewsletter/internal/handler/dto"
	"github.com/thirtybees/blocknewsletter/internal/middleware"
	"github.com/thirtybees/blocknewsletter/internal/service"
)

// NewsletterUseCase is the visitor side of the newsletter service
type NewsletterUseCase interface {
	Register(ctx context.Context, req service.SubscriptionRequest) (*service.SubscriptionResult, error)
	ConfirmEmail(ctx context.Context, token, remoteIP string) (*service.SubscriptionResult, error)
}

// CaptchaRenderer renders the markup of the selected captcha provider
type CaptchaRenderer interface {
	Selected(ctx context.Context) (string, *captcha.Registration)
	Render(ctx context.Context, module string) (string, error)
}

// NewsletterHandler обрабатывает запросы блока подписки
type NewsletterHandler struct {
	newsletter NewsletterUseCase
	captcha    CaptchaRenderer
	log        *zap.Logger
}

// NewNewsletterHandler создает новый обработчик подписки
func NewNewsletterHandler(newsletter NewsletterUseCase, captcha CaptchaRenderer, log *zap.Logger) *NewsletterHandler {
	return &NewsletterHandler{newsletter: newsletter, captcha: captcha, log: log}
}

// Subscribe обрабатывает форму подписки и отписки
func (h *NewsletterHandler) Subscribe(c *gin.Context) {
	var req dto.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	scope, ok := middleware.ShopScopeFromContext(c)
	if !ok {
		h.log.Error("shop scope missing in context", zap.String("path", c.FullPath()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "error_type": "internal_error"})
		return
	}

	result, err := h.newsletter.Register(c.Request.Context(), service.SubscriptionRequest{
		Email:    req.Email,
		Action:   service.Action(req.Action),
		Scope:    scope,
		RemoteIP: c.ClientIP(),
		Referer:  c.Request.Referer(),
		Captcha:  req.Captcha,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, toSubscriptionResponse(result))
}

// Verify подтверждает email по ссылке из письма
func (h *NewsletterHandler) Verify(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required", "error_type": "invalid_request"})
		return
	}

	result, err := h.newsletter.ConfirmEmail(c.Request.Context(), token, c.ClientIP())
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, toSubscriptionResponse(result))
}

// Captcha возвращает разметку выбранного captcha-провайдера.
// Без провайдера ответ содержит пустую разметку.
func (h *NewsletterHandler) Captcha(c *gin.Context) {
	provider, _ := h.captcha.Selected(c.Request.Context())
	html, err := h.captcha.Render(c.Request.Context(), service.ModuleName)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, dto.CaptchaResponse{Provider: provider, HTML: html})
}

func toSubscriptionResponse(result *service.SubscriptionResult) dto.SubscriptionResponse {
	return dto.SubscriptionResponse{
		Message: result.Message,
		Status:  result.Status.String(),
		Pending: result.Pending,
	}
}
