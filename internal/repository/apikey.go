package repository

import (
	"context"
	"time"

	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/models"
	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/storage"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type APIKeyRepository struct {
	db *storage.Postgres
}

func NewAPIKeyRepository(db *storage.Postgres) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

func (r *APIKeyRepository) Create(ctx context.Context, apiKey *models.APIKey) error {
	return r.db.DB.WithContext(ctx).Create(apiKey).Error
}

// FindBySecret resolves a key by its secret value. Disabled keys are still
// returned - the admission flow rejects them with a distinct reason instead
// of treating them as unknown.
func (r *APIKeyRepository) FindBySecret(ctx context.Context, secret string) (*models.APIKey, error) {
	var apiKey models.APIKey
	err := r.db.DB.WithContext(ctx).
		Where("key = ?", secret).
		First(&apiKey).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}

	return &apiKey, err
}

func (r *APIKeyRepository) FindByID(ctx context.Context, id string) (*models.APIKey, error) {
	var apiKey models.APIKey
	err := r.db.DB.WithContext(ctx).
		Where("id = ?", id).
		First(&apiKey).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}

	return &apiKey, err
}

func (r *APIKeyRepository) List(ctx context.Context) ([]models.APIKey, error) {
	var keys []models.APIKey
	err := r.db.DB.WithContext(ctx).
		Order("created_at DESC").
		Find(&keys).Error

	return keys, err
}

func (r *APIKeyRepository) FindByTier(ctx context.Context, tier string) ([]models.APIKey, error) {
	var keys []models.APIKey
	err := r.db.DB.WithContext(ctx).
		Where("tier = ?", tier).
		Find(&keys).Error

	return keys, err
}

// Field-level update, never a whole-object overwrite
func (r *APIKeyRepository) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	return r.db.DB.WithContext(ctx).
		Model(&models.APIKey{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// UpdateLimitsForTier rewrites the derived limits on every key of a tier
// after the tier itself is edited.
func (r *APIKeyRepository) UpdateLimitsForTier(ctx context.Context, tier string, perMinute, perDay int) error {
	return r.db.DB.WithContext(ctx).
		Model(&models.APIKey{}).
		Where("tier = ?", tier).
		Updates(map[string]interface{}{
			"requests_per_minute": perMinute,
			"requests_per_day":    perDay,
		}).Error
}

// RenameTier repoints every key referencing a renamed tier
func (r *APIKeyRepository) RenameTier(ctx context.Context, oldName, newName string) error {
	return r.db.DB.WithContext(ctx).
		Model(&models.APIKey{}).
		Where("tier = ?", oldName).
		Update("tier", newName).Error
}

func (r *APIKeyRepository) UpdateLastUsed(ctx context.Context, id uuid.UUID) error {
	return r.db.DB.WithContext(ctx).
		Model(&models.APIKey{}).
		Where("id = ?", id).
		Update("last_used_at", time.Now()).Error
}

func (r *APIKeyRepository) Delete(ctx context.Context, id string) error {
	return r.db.DB.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.APIKey{}).Error
}

func (r *APIKeyRepository) CountByTier(ctx context.Context, tier string) (int64, error) {
	var count int64
	err := r.db.DB.WithContext(ctx).
		Model(&models.APIKey{}).
		Where("tier = ? AND is_active = ?", tier, true).
		Count(&count).Error

	return count, err
}
