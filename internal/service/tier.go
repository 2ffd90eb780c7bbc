package service

import (
	"context"
	"errors"
	"log"

	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/cache"
	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/models"
	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/repository"
)

var (
	ErrTierExists      = errors.New("a tier with this name already exists")
	ErrInvalidTierRate = errors.New("rate and burst must be positive")
)

// TierService owns the runtime-mutable rate limit presets. Any tier edit
// fans out to every key on that tier: stored limits are rewritten and cache
// entries dropped, so the edit is visible on the next lookup.
type TierService struct {
	repository *repository.TierRepository
	keys       *repository.APIKeyRepository
	cache      *cache.Cache
}

func NewTierService(repo *repository.TierRepository, keys *repository.APIKeyRepository, metaCache *cache.Cache) *TierService {
	return &TierService{
		repository: repo,
		keys:       keys,
		cache:      metaCache,
	}
}

// TierSummary is a tier with the number of active keys provisioned under it
type TierSummary struct {
	models.RateLimitTier
	ActiveKeys int64 `json:"active_keys"`
}

func (s *TierService) List(ctx context.Context) ([]TierSummary, error) {
	tiers, err := s.repository.List(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]TierSummary, 0, len(tiers))
	for _, tier := range tiers {
		summary := TierSummary{RateLimitTier: tier}

		count, err := s.keys.CountByTier(ctx, tier.Name)
		if err != nil {
			// The count is decoration on this endpoint, not worth failing a list
			log.Printf("tier: key count failed for %s: %v", tier.Name, err)
		} else {
			summary.ActiveKeys = count
		}

		summaries = append(summaries, summary)
	}

	return summaries, nil
}

func (s *TierService) Get(ctx context.Context, id string) (*models.RateLimitTier, error) {
	return s.repository.FindByID(ctx, id)
}

func (s *TierService) Create(ctx context.Context, name string, requestsPerSecond, burst int) (*models.RateLimitTier, error) {
	if requestsPerSecond <= 0 || burst <= 0 {
		return nil, ErrInvalidTierRate
	}

	existing, err := s.repository.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrTierExists
	}

	tier := models.RateLimitTier{
		Name:              name,
		RequestsPerSecond: requestsPerSecond,
		Burst:             burst,
	}
	if err := s.repository.Create(ctx, &tier); err != nil {
		return nil, err
	}

	return &tier, nil
}

// Update edits a tier and propagates the change to its keys. Last writer
// wins, but each field is replaced individually so concurrent edits to
// different fields never race on the whole row.
func (s *TierService) Update(ctx context.Context, id string, name *string, requestsPerSecond, burst *int) (*models.RateLimitTier, error) {
	tier, err := s.repository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tier == nil {
		return nil, ErrTierNotFound
	}

	updates := make(map[string]interface{})
	if name != nil && *name != tier.Name {
		existing, err := s.repository.FindByName(ctx, *name)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, ErrTierExists
		}
		updates["name"] = *name
	}
	if requestsPerSecond != nil {
		if *requestsPerSecond <= 0 {
			return nil, ErrInvalidTierRate
		}
		updates["requests_per_second"] = *requestsPerSecond
	}
	if burst != nil {
		if *burst <= 0 {
			return nil, ErrInvalidTierRate
		}
		updates["burst"] = *burst
	}

	if len(updates) == 0 {
		return tier, nil
	}

	if err := s.repository.Update(ctx, id, updates); err != nil {
		return nil, err
	}

	oldName := tier.Name
	tier, err = s.repository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if oldName != tier.Name {
		if err := s.keys.RenameTier(ctx, oldName, tier.Name); err != nil {
			return nil, err
		}
	}

	if err := s.propagate(ctx, tier); err != nil {
		return nil, err
	}

	return tier, nil
}

// propagate rewrites the derived limits on every key of the tier and drops
// their cache entries so stale snapshots die immediately rather than at TTL.
func (s *TierService) propagate(ctx context.Context, tier *models.RateLimitTier) error {
	if err := s.keys.UpdateLimitsForTier(ctx, tier.Name, tier.PerMinute(), tier.PerDay()); err != nil {
		return err
	}

	keys, err := s.keys.FindByTier(ctx, tier.Name)
	if err != nil {
		return err
	}

	for _, key := range keys {
		if err := s.cache.Invalidate(ctx, key.Key); err != nil {
			log.Printf("tier: cache invalidation failed for key %s: %v", key.ID, err)
		}
	}

	return nil
}
