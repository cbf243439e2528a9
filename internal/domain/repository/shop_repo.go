package repository

import (
	"context"

	"github.com/thirtybees/blocknewsletter/internal/domain/entity"
)

// ShopRepository resolves the shop a request runs in.
type ShopRepository interface {
	GetByID(ctx context.Context, id uint) (*entity.Shop, error)
}
