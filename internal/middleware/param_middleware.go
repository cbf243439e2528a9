package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thirtybees/blocknewsletter/internal/domain/entity"
)

// ExtractMergedID создает middleware для разбора id из объединённого списка подписчиков.
// "N12" адресует гостевую подписку, "12" аккаунт покупателя.
func ExtractMergedID(paramName, contextKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := entity.ParseMergedID(c.Param(paramName))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid %s", paramName), "error_type": "invalid_request"})
			return
		}
		c.Set(contextKey, id)
		c.Next()
	}
}
