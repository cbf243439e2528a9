package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/thirtybees/blocknewsletter/internal/domain/entity"
	apperrors "github.com/thirtybees/blocknewsletter/internal/pkg/errors"
)

// ShopRepo реализует repository.ShopRepository
type ShopRepo struct {
	db *gorm.DB
}

func NewShopRepo(db *gorm.DB) *ShopRepo {
	return &ShopRepo{db: db}
}

// GetByID возвращает магазин по ID
func (r *ShopRepo) GetByID(ctx context.Context, id uint) (*entity.Shop, error) {
	var shop entity.Shop
	if err := r.db.WithContext(ctx).First(&shop, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get shop #%d: %w", id, err)
	}
	return &shop, nil
}
