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

// CustomerRepo реализует repository.CustomerRepository поверх таблицы customers
type CustomerRepo struct {
	db *gorm.DB
}

// NewCustomerRepo создает новый репозиторий аккаунтов
func NewCustomerRepo(db *gorm.DB) *CustomerRepo {
	return &CustomerRepo{db: db}
}

// GetByID возвращает аккаунт по ID
func (r *CustomerRepo) GetByID(ctx context.Context, id uint) (*entity.Customer, error) {
	var customer entity.Customer
	err := r.db.WithContext(ctx).First(&customer, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get customer #%d: %w", id, err)
	}
	return &customer, nil
}

// FindByEmail возвращает аккаунт по email в рамках магазина, регистр email не учитывается
func (r *CustomerRepo) FindByEmail(ctx context.Context, shopID uint, email string) (*entity.Customer, error) {
	var customer entity.Customer
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND LOWER(email) = LOWER(?)", shopID, email).
		First(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get customer by email: %w", err)
	}
	return &customer, nil
}

// ScanPending проходит по аккаунтам без подписки пачками
func (r *CustomerRepo) ScanPending(ctx context.Context, batchSize int, fn func(batch []entity.Customer) error) error {
	var batch []entity.Customer
	err := r.db.WithContext(ctx).
		Where("newsletter = ?", false).
		FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
			return fn(batch)
		}).Error
	if err != nil {
		return fmt.Errorf("failed to scan unsubscribed customers: %w", err)
	}
	return nil
}

// Subscribe включает флаг рассылки и фиксирует дату и IP подписки
func (r *CustomerRepo) Subscribe(ctx context.Context, id uint, ip string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&entity.Customer{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"newsletter":                 true,
			"newsletter_date_add":        at,
			"ip_registration_newsletter": ip,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to subscribe customer #%d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Unsubscribe выключает флаг рассылки
func (r *CustomerRepo) Unsubscribe(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).
		Model(&entity.Customer{}).
		Where("id = ?", id).
		Update("newsletter", false)
	if result.Error != nil {
		return fmt.Errorf("failed to unsubscribe customer #%d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

type customerRow struct {
	ID                uint
	ShopName          *string
	Gender            *string
	LastName          string
	FirstName         string
	Email             string
	Newsletter        bool
	NewsletterDateAdd *time.Time
}

func (r *CustomerRepo) recordQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("customers AS c").
		Select("c.id, s.name AS shop_name, g.name AS gender, c.last_name, c.first_name, c.email, c.newsletter, c.newsletter_date_add").
		Joins("LEFT JOIN shops s ON s.id = c.shop_id").
		Joins("LEFT JOIN genders g ON g.id = c.gender_id")
}

// ListSubscribed возвращает подписанные аккаунты для объединённого списка
func (r *CustomerRepo) ListSubscribed(ctx context.Context, filter repository.SubscriberListFilter) ([]entity.SubscriberRecord, error) {
	query := r.recordQuery(ctx).Where("c.newsletter = ?", true)
	if filter.EmailSearch != "" {
		query = query.Where("c.email ILIKE ?", containsPattern(filter.EmailSearch))
	}
	if filter.ShopID != nil {
		query = query.Where("c.shop_id = ?", *filter.ShopID)
	}
	return r.scanRecords(query)
}

// ListForExport возвращает аккаунты по фильтрам экспорта
func (r *CustomerRepo) ListForExport(ctx context.Context, filter repository.CustomerExportFilter) ([]entity.SubscriberRecord, error) {
	query := r.recordQuery(ctx).Where("c.newsletter = ?", filter.Subscribed)
	if filter.Optin != nil {
		query = query.Where("c.optin = ?", *filter.Optin)
	}
	if filter.CountryID != 0 {
		query = query.Where(
			"EXISTS (SELECT 1 FROM addresses a WHERE a.deleted = ? AND a.customer_id = c.id AND a.country_id = ?)",
			false, filter.CountryID,
		)
	}
	if filter.ShopID != nil {
		query = query.Where("c.shop_id = ?", *filter.ShopID)
	}
	return r.scanRecords(query)
}

func (r *CustomerRepo) scanRecords(query *gorm.DB) ([]entity.SubscriberRecord, error) {
	var rows []customerRow
	if err := query.Order("c.id").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}

	records := make([]entity.SubscriberRecord, 0, len(rows))
	for _, row := range rows {
		record := entity.SubscriberRecord{
			ID:           entity.CustomerRecordID(row.ID),
			LastName:     row.LastName,
			FirstName:    row.FirstName,
			Email:        row.Email,
			Subscribed:   row.Newsletter,
			SubscribedOn: row.NewsletterDateAdd,
		}
		if row.ShopName != nil {
			record.ShopName = *row.ShopName
		}
		if row.Gender != nil {
			record.Gender = *row.Gender
		}
		records = append(records, record)
	}
	return records, nil
}
