package repository

import (
	"context"

	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/models"
	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/storage"
	"gorm.io/gorm"
)

type TierRepository struct {
	db *storage.Postgres
}

func NewTierRepository(db *storage.Postgres) *TierRepository {
	return &TierRepository{db: db}
}

func (r *TierRepository) Create(ctx context.Context, tier *models.RateLimitTier) error {
	return r.db.DB.WithContext(ctx).Create(tier).Error
}

func (r *TierRepository) FindByID(ctx context.Context, id string) (*models.RateLimitTier, error) {
	var tier models.RateLimitTier
	err := r.db.DB.WithContext(ctx).
		Where("id = ?", id).
		First(&tier).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}

	return &tier, err
}

func (r *TierRepository) FindByName(ctx context.Context, name string) (*models.RateLimitTier, error) {
	var tier models.RateLimitTier
	err := r.db.DB.WithContext(ctx).
		Where("name = ?", name).
		First(&tier).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}

	return &tier, err
}

func (r *TierRepository) List(ctx context.Context) ([]models.RateLimitTier, error) {
	var tiers []models.RateLimitTier
	err := r.db.DB.WithContext(ctx).
		Order("requests_per_second ASC").
		Find(&tiers).Error

	return tiers, err
}

// Field-level update so concurrent edits to different fields of the same
// tier never clobber each other's whole row
func (r *TierRepository) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	return r.db.DB.WithContext(ctx).
		Model(&models.RateLimitTier{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// SeedDefaults creates the built-in tiers on first boot. Existing tiers are
// left untouched, including ones an administrator has retuned.
func (r *TierRepository) SeedDefaults(ctx context.Context) error {
	defaults := []models.RateLimitTier{
		{Name: "free", RequestsPerSecond: 5, Burst: 10},
		{Name: "basic", RequestsPerSecond: 20, Burst: 40},
		{Name: "pro", RequestsPerSecond: 100, Burst: 200},
	}

	for _, tier := range defaults {
		existing, err := r.FindByName(ctx, tier.Name)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}

		if err := r.Create(ctx, &tier); err != nil {
			return err
		}
	}

	return nil
}
