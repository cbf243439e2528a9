package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/thirtybees/blocknewsletter/internal/handler/dto"
)

// CustomerCreatedHook reacts to accounts created by the shop
type CustomerCreatedHook interface {
	HandleCustomerCreated(ctx context.Context, shopID uint, email string) (int64, error)
	ConfirmSubscription(ctx context.Context, email string) error
}

// HookHandler принимает события платформы магазина
type HookHandler struct {
	hook CustomerCreatedHook
	log  *zap.Logger
}

func NewHookHandler(hook CustomerCreatedHook, log *zap.Logger) *HookHandler {
	return &HookHandler{hook: hook, log: log}
}

// CustomerCreated удаляет гостевые подписки, перекрытые новым аккаунтом,
// и отправляет письма подписки, если клиент подписался при регистрации
func (h *HookHandler) CustomerCreated(c *gin.Context) {
	var req dto.CustomerCreatedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	removed, err := h.hook.HandleCustomerCreated(c.Request.Context(), req.ShopID, req.Email)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	if req.Newsletter {
		if err := h.hook.ConfirmSubscription(c.Request.Context(), req.Email); err != nil {
			respondError(c, h.log, err)
			return
		}
	}
	c.JSON(http.StatusOK, dto.CustomerCreatedResponse{Removed: removed})
}
