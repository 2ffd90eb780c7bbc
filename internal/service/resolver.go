package service

import (
	"context"
	"log"

	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/admission"
	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/cache"
	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/models"
)

type secretFinder interface {
	FindBySecret(ctx context.Context, secret string) (*models.APIKey, error)
}

type tierFinder interface {
	FindByName(ctx context.Context, name string) (*models.RateLimitTier, error)
}

// KeyResolver is the tiered credential lookup behind every admission check:
// metadata cache first, database on a miss, repairing the cache on the way
// out. The stored per-key limits are authoritative - a per-key limit
// override stays in force until the key's tier is next edited, at which
// point the tier propagation rewrites the row.
type KeyResolver struct {
	keys  secretFinder
	tiers tierFinder
	cache *cache.Cache
}

func NewKeyResolver(keys secretFinder, tiers tierFinder, metaCache *cache.Cache) *KeyResolver {
	return &KeyResolver{
		keys:  keys,
		tiers: tiers,
		cache: metaCache,
	}
}

func (r *KeyResolver) Resolve(ctx context.Context, secret string) (*admission.ResolvedKey, error) {
	entry, err := r.cache.Get(ctx, secret)
	if err != nil {
		// A broken cache degrades to database lookups, never to an error
		log.Printf("resolver: cache read failed, falling back to database: %v", err)
	}
	if entry != nil {
		return &admission.ResolvedKey{
			ID:                entry.ID,
			Name:              entry.Name,
			Tier:              entry.Tier,
			RequestsPerMinute: entry.RequestsPerMinute,
			RequestsPerDay:    entry.RequestsPerDay,
			IsActive:          entry.IsActive,
		}, nil
	}

	apiKey, err := r.keys.FindBySecret(ctx, secret)
	if err != nil {
		return nil, err
	}
	if apiKey == nil {
		return nil, nil
	}

	resolved := r.effective(ctx, apiKey)

	if err := r.cache.Put(ctx, secret, &cache.Entry{
		ID:                resolved.ID,
		Name:              resolved.Name,
		Tier:              resolved.Tier,
		RequestsPerMinute: resolved.RequestsPerMinute,
		RequestsPerDay:    resolved.RequestsPerDay,
		IsActive:          resolved.IsActive,
	}); err != nil {
		log.Printf("resolver: cache repopulation failed for key %s: %v", resolved.ID, err)
	}

	return resolved, nil
}

// effective reads the key's current limits. The stored row wins: per-key
// overrides written through the admin surface take effect on the next
// uncached lookup, and tier edits reach the row through propagation. The
// tier is only consulted to repair rows whose stored limits are unusable.
func (r *KeyResolver) effective(ctx context.Context, apiKey *models.APIKey) *admission.ResolvedKey {
	perMinute := apiKey.RequestsPerMinute
	perDay := apiKey.RequestsPerDay

	if perMinute <= 0 || perDay <= 0 {
		tier, err := r.tiers.FindByName(ctx, apiKey.Tier)
		if err != nil {
			log.Printf("resolver: tier lookup failed for %q, keeping stored limits: %v", apiKey.Tier, err)
		} else if tier != nil {
			perMinute = tier.PerMinute()
			perDay = tier.PerDay()
		}
	}

	return &admission.ResolvedKey{
		ID:                apiKey.ID.String(),
		Name:              apiKey.Name,
		Tier:              apiKey.Tier,
		RequestsPerMinute: perMinute,
		RequestsPerDay:    perDay,
		IsActive:          apiKey.IsActive,
	}
}
