package service

import (
	"context"
	"strings"

	"github.com/thirtybees/blocknewsletter/internal/domain/entity"
	"github.com/thirtybees/blocknewsletter/internal/domain/repository"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 50
	MaxPageSize     = 1000
)

// SubscriberListQuery selects a page of the merged subscriber list.
type SubscriberListQuery struct {
	Search   string
	ShopID   *uint
	Page     int
	PageSize int
}

// SubscriberPage is one page of the merged list. Total counts the whole merged set.
type SubscriberPage struct {
	Items    []entity.SubscriberRecord `json:"items"`
	Total    int                       `json:"total"`
	Page     int                       `json:"page"`
	PageSize int                       `json:"page_size"`
}

// SubscriberListService merges subscribed accounts and active guests into one list.
type SubscriberListService struct {
	subscribers repository.SubscriberRepository
	customers   repository.CustomerRepository
}

func NewSubscriberListService(subscribers repository.SubscriberRepository, customers repository.CustomerRepository) *SubscriberListService {
	return &SubscriberListService{subscribers: subscribers, customers: customers}
}

// List loads both sets completely, puts accounts before guests and slices
// the result. The two queries share no sort key, so paging happens in memory.
func (s *SubscriberListService) List(ctx context.Context, q SubscriberListQuery) (*SubscriberPage, error) {
	page, pageSize := q.Page, q.PageSize
	if page < 1 {
		page = DefaultPage
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	filter := repository.SubscriberListFilter{
		EmailSearch: strings.TrimSpace(q.Search),
		ShopID:      q.ShopID,
	}

	customers, err := s.customers.ListSubscribed(ctx, filter)
	if err != nil {
		return nil, err
	}
	guests, err := s.subscribers.ListActive(ctx, filter)
	if err != nil {
		return nil, err
	}

	merged := make([]entity.SubscriberRecord, 0, len(customers)+len(guests))
	merged = append(merged, customers...)
	merged = append(merged, guests...)

	return &SubscriberPage{
		Items:    paginate(merged, page, pageSize),
		Total:    len(merged),
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// paginate only slices when the set is larger than one page.
func paginate(records []entity.SubscriberRecord, page, pageSize int) []entity.SubscriberRecord {
	if len(records) <= pageSize {
		return records
	}
	start := (page - 1) * pageSize
	if start >= len(records) {
		return []entity.SubscriberRecord{}
	}
	end := start + pageSize
	if end > len(records) {
		end = len(records)
	}
	return records[start:end]
}
