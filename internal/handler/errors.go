package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/thirtybees/blocknewsletter/internal/pkg/errors"
	"github.com/thirtybees/blocknewsletter/internal/service"
)

type errorMapping struct {
	target    error
	status    int
	errorType string
}

// Порядок важен: первая подходящая ошибка определяет ответ
var errorMappings = []errorMapping{
	{service.ErrInvalidEmail, http.StatusBadRequest, "invalid_email"},
	{service.ErrInvalidVoucherCode, http.StatusBadRequest, "invalid_voucher_code"},
	{service.ErrUnknownAction, http.StatusBadRequest, "unknown_action"},
	{service.ErrAlreadyRegistered, http.StatusConflict, "already_registered"},
	{service.ErrNotRegistered, http.StatusConflict, "not_registered"},
	{service.ErrInvalidConfirmationToken, http.StatusNotFound, "invalid_token"},
	{service.ErrNoExportRecords, http.StatusNotFound, "no_records"},
	{service.ErrSubscriptionFailed, http.StatusInternalServerError, "subscription_failed"},
	{service.ErrUnsubscriptionFailed, http.StatusInternalServerError, "unsubscription_failed"},
	{apperrors.ErrExpiredToken, http.StatusUnauthorized, "token_expired"},
	{apperrors.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{apperrors.ErrNotFound, http.StatusNotFound, "not_found"},
}

// respondError maps a service error to a status code and a stable error_type.
// The visitor only sees the sentinel text, never the wrapped details.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	var captchaErr *service.CaptchaError
	if errors.As(err, &captchaErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": captchaErr.Message, "error_type": "captcha_failed"})
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			if m.status >= http.StatusInternalServerError {
				log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
			}
			c.JSON(m.status, gin.H{"error": m.target.Error(), "error_type": m.errorType})
			return
		}
	}

	log.Error("unexpected error", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "error_type": "internal_error"})
}

func respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "error_type": "invalid_request", "details": err.Error()})
}
