package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/thirtybees/blocknewsletter/internal/domain/entity"
	"github.com/thirtybees/blocknewsletter/internal/domain/repository"
	apperrors "github.com/thirtybees/blocknewsletter/internal/pkg/errors"
)

// SubscriberRepo реализует repository.SubscriberRepository
type SubscriberRepo struct {
	db *gorm.DB
}

// NewSubscriberRepo создает новый репозиторий гостевых подписчиков
func NewSubscriberRepo(db *gorm.DB) *SubscriberRepo {
	return &SubscriberRepo{db: db}
}

// Create сохраняет новую подписку
func (r *SubscriberRepo) Create(ctx context.Context, subscriber *entity.NewsletterSubscriber) error {
	if err := r.db.WithContext(ctx).Create(subscriber).Error; err != nil {
		return fmt.Errorf("failed to create newsletter subscriber: %w", err)
	}
	return nil
}

// FindActiveByEmail возвращает подтверждённую подписку email в магазине
func (r *SubscriberRepo) FindActiveByEmail(ctx context.Context, shopID uint, email string) (*entity.NewsletterSubscriber, error) {
	var subscriber entity.NewsletterSubscriber
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND LOWER(email) = LOWER(?) AND active = ?", shopID, email, true).
		First(&subscriber).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get active subscriber: %w", err)
	}
	return &subscriber, nil
}

// ScanPending проходит по всем неподтверждённым подпискам пачками
func (r *SubscriberRepo) ScanPending(ctx context.Context, batchSize int, fn func(batch []entity.NewsletterSubscriber) error) error {
	var batch []entity.NewsletterSubscriber
	err := r.db.WithContext(ctx).
		Where("active = ?", false).
		FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
			return fn(batch)
		}).Error
	if err != nil {
		return fmt.Errorf("failed to scan pending subscribers: %w", err)
	}
	return nil
}

// Activate подтверждает подписку и удаляет остальные ожидающие строки того же email
func (r *SubscriberRepo) Activate(ctx context.Context, id uint) (*entity.NewsletterSubscriber, error) {
	var subscriber entity.NewsletterSubscriber
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND active = ?", id, false).First(&subscriber).Error; err != nil {
			return err
		}
		if err := tx.Model(&entity.NewsletterSubscriber{}).
			Where("id = ?", subscriber.ID).
			Update("active", true).Error; err != nil {
			return err
		}
		return tx.Where("shop_id = ? AND LOWER(email) = LOWER(?) AND active = ? AND id <> ?",
			subscriber.ShopID, subscriber.Email, false, subscriber.ID).
			Delete(&entity.NewsletterSubscriber{}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to activate subscriber #%d: %w", id, err)
	}
	subscriber.Active = true
	return &subscriber, nil
}

// Deactivate снимает подтверждение с подписки (действие администратора)
func (r *SubscriberRepo) Deactivate(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).
		Model(&entity.NewsletterSubscriber{}).
		Where("id = ?", id).
		Update("active", false)
	if result.Error != nil {
		return fmt.Errorf("failed to deactivate subscriber #%d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// DeleteByEmail удаляет все строки email в магазине, включая ожидающие
func (r *SubscriberRepo) DeleteByEmail(ctx context.Context, shopID uint, email string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("shop_id = ? AND LOWER(email) = LOWER(?)", shopID, email).
		Delete(&entity.NewsletterSubscriber{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete subscriber rows: %w", result.Error)
	}
	return result.RowsAffected, nil
}

type subscriberRow struct {
	ID           uint
	ShopName     *string
	Email        string
	Active       bool
	SubscribedAt *time.Time
}

// ListActive возвращает подтверждённые гостевые подписки для списка и экспорта
func (r *SubscriberRepo) ListActive(ctx context.Context, filter repository.SubscriberListFilter) ([]entity.SubscriberRecord, error) {
	query := r.db.WithContext(ctx).
		Table("newsletter_subscribers AS n").
		Select("n.id, s.name AS shop_name, n.email, n.active, n.newsletter_date_add AS subscribed_at").
		Joins("LEFT JOIN shops s ON s.id = n.shop_id").
		Where("n.active = ?", true)
	if filter.EmailSearch != "" {
		query = query.Where("n.email ILIKE ?", containsPattern(filter.EmailSearch))
	}
	if filter.ShopID != nil {
		query = query.Where("n.shop_id = ?", *filter.ShopID)
	}

	var rows []subscriberRow
	if err := query.Order("n.id").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list active subscribers: %w", err)
	}

	records := make([]entity.SubscriberRecord, 0, len(rows))
	for _, row := range rows {
		record := entity.SubscriberRecord{
			ID:           entity.GuestRecordID(row.ID),
			Email:        row.Email,
			Subscribed:   row.Active,
			SubscribedOn: row.SubscribedAt,
		}
		if row.ShopName != nil {
			record.ShopName = *row.ShopName
		}
		records = append(records, record)
	}
	return records, nil
}
