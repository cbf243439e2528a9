package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HookTokenHeader carries the shared secret of platform hooks
const HookTokenHeader = "X-Hook-Token"

// RequireHookToken accepts only requests signed with the shared hook secret
func RequireHookToken(secret string) gin.HandlerFunc {
	expected := []byte(secret)
	return func(c *gin.Context) {
		got := []byte(c.GetHeader(HookTokenHeader))
		if len(expected) == 0 || subtle.ConstantTimeCompare(got, expected) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid hook token", "error_type": "hook_unauthorized"})
			return
		}
		c.Next()
	}
}
