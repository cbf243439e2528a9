package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/thirtybees/blocknewsletter/internal/domain/entity"
	apperrors "github.com/thirtybees/blocknewsletter/internal/pkg/errors"
)

// MockShopRepository реализует repository.ShopRepository
type MockShopRepository struct {
	mock.Mock
}

func (m *MockShopRepository) GetByID(ctx context.Context, id uint) (*entity.Shop, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Shop), args.Error(1)
}

func TestShopService_ScopeIsCached(t *testing.T) {
	repo := new(MockShopRepository)
	repo.On("GetByID", mock.Anything, uint(3)).
		Return(&entity.Shop{ID: 3, ShopGroupID: 2, Name: "Outlet"}, nil).
		Once()

	svc := NewShopService(repo, newFakeCache(), zap.NewNop())
	ctx := context.Background()

	scope, err := svc.Scope(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, entity.ShopScope{ShopID: 3, ShopGroupID: 2}, scope)

	scope, err = svc.Scope(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, uint(2), scope.ShopGroupID)

	repo.AssertExpectations(t)
}

func TestShopService_UnknownShop(t *testing.T) {
	repo := new(MockShopRepository)
	repo.On("GetByID", mock.Anything, uint(9)).Return(nil, apperrors.ErrNotFound)

	svc := NewShopService(repo, newFakeCache(), zap.NewNop())
	_, err := svc.Scope(context.Background(), 9)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	repo.AssertExpectations(t)
}
