package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/thirtybees/blocknewsletter/internal/domain/entity"
	apperrors "github.com/thirtybees/blocknewsletter/internal/pkg/errors"
)

// ShopIDHeader selects the shop of a multistore installation
const ShopIDHeader = "X-Shop-ID"

// ShopResolver returns the scope of a shop id
type ShopResolver interface {
	Scope(ctx context.Context, shopID uint) (entity.ShopScope, error)
}

// ShopContext resolves the shop scope of the request and stores it in the context.
// Without the header the default shop is used.
func ShopContext(resolver ShopResolver, defaultShopID uint, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		shopID := defaultShopID
		if raw := c.GetHeader(ShopIDHeader); raw != "" {
			parsed, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || parsed == 0 {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid shop id", "error_type": "invalid_shop"})
				return
			}
			shopID = uint(parsed)
		}

		scope, err := resolver.Scope(c.Request.Context(), shopID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Shop not found", "error_type": "shop_not_found"})
				return
			}
			log.Error("failed to resolve shop", zap.Uint("shop_id", shopID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "error_type": "internal_error"})
			return
		}

		c.Set(ContextKeyShopScope, scope)
		c.Next()
	}
}

// ShopScopeFromContext returns the scope stored by ShopContext
func ShopScopeFromContext(c *gin.Context) (entity.ShopScope, bool) {
	v, ok := c.Get(ContextKeyShopScope)
	if !ok {
		return entity.ShopScope{}, false
	}
	scope, ok := v.(entity.ShopScope)
	return scope, ok
}
