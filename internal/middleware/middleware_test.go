package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/thirtybees/blocknewsletter/internal/domain/entity"
	apperrors "github.com/thirtybees/blocknewsletter/internal/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(r http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type staticValidator map[string]error

func (s staticValidator) ValidateToken(token string) (string, error) {
	err, ok := s[token]
	if !ok {
		return "", apperrors.ErrUnauthorized
	}
	if err != nil {
		return "", err
	}
	return "admin", nil
}

func TestRequireAdmin(t *testing.T) {
	m := NewAuthMiddleware(staticValidator{"good": nil, "old": apperrors.ErrExpiredToken}, zap.NewNop())
	r := gin.New()
	r.GET("/admin", m.RequireAdmin(), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextKeyAdmin))
	})

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{name: "valid", header: "Bearer good", wantStatus: http.StatusOK, wantBody: "admin"},
		{name: "missing", header: "", wantStatus: http.StatusUnauthorized, wantBody: "token_missing"},
		{name: "wrong scheme", header: "Basic good", wantStatus: http.StatusUnauthorized, wantBody: "token_format"},
		{name: "expired", header: "Bearer old", wantStatus: http.StatusUnauthorized, wantBody: "token_expired"},
		{name: "invalid", header: "Bearer forged", wantStatus: http.StatusUnauthorized, wantBody: "token_invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.header != "" {
				headers["Authorization"] = tt.header
			}
			w := perform(r, http.MethodGet, "/admin", headers)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestRequireHookToken(t *testing.T) {
	r := gin.New()
	r.POST("/hook", RequireHookToken("s3cret"), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusNoContent, perform(r, http.MethodPost, "/hook", map[string]string{HookTokenHeader: "s3cret"}).Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodPost, "/hook", map[string]string{HookTokenHeader: "guess"}).Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodPost, "/hook", nil).Code)

	open := gin.New()
	open.POST("/hook", RequireHookToken(""), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	assert.Equal(t, http.StatusUnauthorized, perform(open, http.MethodPost, "/hook", map[string]string{HookTokenHeader: ""}).Code)
}

func TestExtractMergedID(t *testing.T) {
	r := gin.New()
	r.POST("/subscribers/:id/toggle", ExtractMergedID("id", ContextKeyMergedID), func(c *gin.Context) {
		id := c.MustGet(ContextKeyMergedID).(entity.MergedID)
		c.String(http.StatusOK, id.String())
	})

	w := perform(r, http.MethodPost, "/subscribers/N12/toggle", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "N12", w.Body.String())

	w = perform(r, http.MethodPost, "/subscribers/12/toggle", nil)
	assert.Equal(t, "12", w.Body.String())

	w = perform(r, http.MethodPost, "/subscribers/abc/toggle", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type stubShops map[uint]entity.ShopScope

func (s stubShops) Scope(_ context.Context, id uint) (entity.ShopScope, error) {
	if id == 99 {
		return entity.ShopScope{}, errors.New("db down")
	}
	scope, ok := s[id]
	if !ok {
		return entity.ShopScope{}, apperrors.ErrNotFound
	}
	return scope, nil
}

func TestShopContext(t *testing.T) {
	shops := stubShops{1: {ShopID: 1, ShopGroupID: 1}, 2: {ShopID: 2, ShopGroupID: 5}}
	r := gin.New()
	r.GET("/", ShopContext(shops, 1, zap.NewNop()), func(c *gin.Context) {
		scope, ok := ShopScopeFromContext(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, scope)
	})

	w := perform(r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ShopID":1,"ShopGroupID":1}`, w.Body.String())

	w = perform(r, http.MethodGet, "/", map[string]string{ShopIDHeader: "2"})
	assert.JSONEq(t, `{"ShopID":2,"ShopGroupID":5}`, w.Body.String())

	assert.Equal(t, http.StatusBadRequest, perform(r, http.MethodGet, "/", map[string]string{ShopIDHeader: "x"}).Code)
	assert.Equal(t, http.StatusNotFound, perform(r, http.MethodGet, "/", map[string]string{ShopIDHeader: "7"}).Code)
	assert.Equal(t, http.StatusInternalServerError, perform(r, http.MethodGet, "/", map[string]string{ShopIDHeader: "99"}).Code)
}

func TestRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	t.Cleanup(func() { _ = client.Close() })

	rl := NewRateLimiter(client, zap.NewNop())
	r := gin.New()
	r.POST("/newsletter", rl.Limit(NewsletterRateLimitConfig(2, time.Minute)), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, perform(r, http.MethodPost, "/newsletter", nil).Code)
	w := perform(r, http.MethodPost, "/newsletter", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = perform(r, http.MethodPost, "/newsletter", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	mr.FastForward(2 * time.Minute)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodPost, "/newsletter", nil).Code)
}

func TestRateLimiterFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	rl := NewRateLimiter(client, zap.NewNop())
	r := gin.New()
	r.POST("/login", rl.Limit(LoginRateLimitConfig()), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, perform(r, http.MethodPost, "/login", nil).Code)
}
