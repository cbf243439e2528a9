package repository

import (
	"context"
	"time"

	"github.com/thirtybees/blocknewsletter/internal/domain/entity"
)

// CustomerRepository gives access to the two newsletter columns of the
// externally owned customer table.
type CustomerRepository interface {
	GetByID(ctx context.Context, id uint) (*entity.Customer, error)
	FindByEmail(ctx context.Context, shopID uint, email string) (*entity.Customer, error)
	// ScanPending walks every account whose newsletter flag is off.
	ScanPending(ctx context.Context, batchSize int, fn func(batch []entity.Customer) error) error
	Subscribe(ctx context.Context, id uint, ip string, at time.Time) error
	Unsubscribe(ctx context.Context, id uint) error
	ListSubscribed(ctx context.Context, filter SubscriberListFilter) ([]entity.SubscriberRecord, error)
	ListForExport(ctx context.Context, filter CustomerExportFilter) ([]entity.SubscriberRecord, error)
}

// CustomerExportFilter describes the account side of an export.
type CustomerExportFilter struct {
	Subscribed bool
	Optin      *bool
	CountryID  uint
	ShopID     *uint
}
