package repository

import (
	"context"

	"github.com/thirtybees/blocknewsletter/internal/domain/entity"
)

// SubscriberRepository stores guest newsletter signups.
type SubscriberRepository interface {
	Create(ctx context.Context, subscriber *entity.NewsletterSubscriber) error
	// FindActiveByEmail returns the confirmed row for the email in a shop or apperrors.ErrNotFound.
	FindActiveByEmail(ctx context.Context, shopID uint, email string) (*entity.NewsletterSubscriber, error)
	// ScanPending walks every unconfirmed row in batches.
	ScanPending(ctx context.Context, batchSize int, fn func(batch []entity.NewsletterSubscriber) error) error
	// Activate confirms a row and removes the other pending rows of the same email in its shop.
	Activate(ctx context.Context, id uint) (*entity.NewsletterSubscriber, error)
	Deactivate(ctx context.Context, id uint) error
	DeleteByEmail(ctx context.Context, shopID uint, email string) (int64, error)
	ListActive(ctx context.Context, filter SubscriberListFilter) ([]entity.SubscriberRecord, error)
}

// SubscriberListFilter narrows listing queries. Zero values mean "no filter".
type SubscriberListFilter struct {
	EmailSearch string
	ShopID      *uint
}
