package service

import (
	"context"
	"errors"

	"github.com/thirtybees/blocknewsletter/internal/domain/entity"
	"github.com/thirtybees/blocknewsletter/internal/domain/repository"
	apperrors "github.com/thirtybees/blocknewsletter/internal/pkg/errors"
)

// Resolution is the registration status of an email and the records it was derived from.
type Resolution struct {
	Status     entity.RegistrationStatus
	Subscriber *entity.NewsletterSubscriber
	Customer   *entity.Customer
}

// IdentityResolver computes the registration status of an email within a shop.
// The status is derived on every call and never cached.
type IdentityResolver struct {
	subscribers repository.SubscriberRepository
	customers   repository.CustomerRepository
}

func NewIdentityResolver(subscribers repository.SubscriberRepository, customers repository.CustomerRepository) *IdentityResolver {
	return &IdentityResolver{subscribers: subscribers, customers: customers}
}

// StatusOf checks the guest store before the account store: an active guest row
// shadows whatever the account flag says.
func (r *IdentityResolver) StatusOf(ctx context.Context, email string, scope entity.ShopScope) (*Resolution, error) {
	subscriber, err := r.subscribers.FindActiveByEmail(ctx, scope.ShopID, email)
	switch {
	case err == nil:
		return &Resolution{Status: entity.GuestRegistered, Subscriber: subscriber}, nil
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, err
	}

	customer, err := r.customers.FindByEmail(ctx, scope.ShopID, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return &Resolution{Status: entity.GuestNotRegistered}, nil
		}
		return nil, err
	}
	if customer.Newsletter {
		return &Resolution{Status: entity.CustomerRegistered, Customer: customer}, nil
	}
	return &Resolution{Status: entity.CustomerNotRegistered, Customer: customer}, nil
}
