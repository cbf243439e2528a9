package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thirtybees/blocknewsletter/internal/domain/entity"
	apperrors "github.com/thirtybees/blocknewsletter/internal/pkg/errors"
)

// SettingRepo реализует repository.SettingRepository
type SettingRepo struct {
	db *gorm.DB
}

// NewSettingRepo создает новый репозиторий настроек
func NewSettingRepo(db *gorm.DB) *SettingRepo {
	return &SettingRepo{db: db}
}

// GetAll возвращает все настройки модуля
func (r *SettingRepo) GetAll(ctx context.Context) (map[string]string, error) {
	var settings []entity.Setting
	if err := r.db.WithContext(ctx).Find(&settings).Error; err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	values := make(map[string]string, len(settings))
	for _, s := range settings {
		values[s.Key] = s.Value
	}
	return values, nil
}

// Get возвращает значение настройки
func (r *SettingRepo) Get(ctx context.Context, key string) (string, error) {
	var setting entity.Setting
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperrors.ErrNotFound
		}
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return setting.Value, nil
}

// Set создаёт или перезаписывает значение настройки
func (r *SettingRepo) Set(ctx context.Context, key, value string) error {
	setting := entity.Setting{Key: key, Value: value, UpdatedAt: time.Now()}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&setting).Error
	if err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	return nil
}

// CreateIfAbsent сохраняет значение, только если ключа ещё нет.
// Конкурентная вставка с другого инстанса приходит как unique violation.
func (r *SettingRepo) CreateIfAbsent(ctx context.Context, key, value string) (bool, error) {
	setting := entity.Setting{Key: key, Value: value, UpdatedAt: time.Now()}
	err := r.db.WithContext(ctx).Create(&setting).Error
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create setting %s: %w", key, err)
	}
	return true, nil
}
