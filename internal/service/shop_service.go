package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/thirtybees/blocknewsletter/internal/domain/entity"
	"github.com/thirtybees/blocknewsletter/internal/domain/repository"
	apperrors "github.com/thirtybees/blocknewsletter/internal/pkg/errors"
)

const shopCacheTTL = 10 * time.Minute

// ShopService resolves shop scopes, caching them in redis.
type ShopService struct {
	shops repository.ShopRepository
	cache repository.CacheRepository
	log   *zap.Logger
}

func NewShopService(shops repository.ShopRepository, cache repository.CacheRepository, log *zap.Logger) *ShopService {
	return &ShopService{shops: shops, cache: cache, log: log}
}

func shopCacheKey(id uint) string {
	return fmt.Sprintf("newsletter:shop:%d", id)
}

// Scope returns the scope of a shop or apperrors.ErrNotFound.
func (s *ShopService) Scope(ctx context.Context, shopID uint) (entity.ShopScope, error) {
	var cached entity.ShopScope
	err := s.cache.GetJSON(ctx, shopCacheKey(shopID), &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		s.log.Warn("shop cache read failed", zap.Uint("shop_id", shopID), zap.Error(err))
	}

	shop, err := s.shops.GetByID(ctx, shopID)
	if err != nil {
		return entity.ShopScope{}, err
	}
	scope := shop.Scope()
	if err := s.cache.SetJSON(ctx, shopCacheKey(shopID), scope, shopCacheTTL); err != nil {
		s.log.Warn("shop cache write failed", zap.Uint("shop_id", shopID), zap.Error(err))
	}
	return scope, nil
}
