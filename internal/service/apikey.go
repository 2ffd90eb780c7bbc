package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log"

	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/cache"
	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/counter"
	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/events"
	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/models"
	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/repository"
	"github.com/google/uuid"
)

var (
	ErrKeyNotFound   = errors.New("API key not found")
	ErrTierNotFound  = errors.New("tier not found")
	ErrInvalidLimits = errors.New("limits must be positive")
)

type APIKeyService struct {
	repository *repository.APIKeyRepository
	tiers      *repository.TierRepository
	cache      *cache.Cache
	counters   *counter.Store
	events     *events.Log
}

func NewAPIKeyService(repo *repository.APIKeyRepository, tiers *repository.TierRepository, metaCache *cache.Cache, counters *counter.Store, eventLog *events.Log) *APIKeyService {
	return &APIKeyService{
		repository: repo,
		tiers:      tiers,
		cache:      metaCache,
		counters:   counters,
		events:     eventLog,
	}
}

// KeySummary is an API key with its live usage, for the listing endpoints
type KeySummary struct {
	models.APIKey
	MinuteUsage int64 `json:"minute_usage"`
	DayUsage    int64 `json:"day_usage"`
}

// KeyDetail adds the recent decision stream and the derived blocked count
type KeyDetail struct {
	KeySummary
	BlockedCount int            `json:"blocked_count"`
	RecentEvents []events.Event `json:"recent_events"`
}

// Create provisions a new key under the given tier. The returned secret is
// shown exactly once - afterwards only its presence in the store remains.
func (s *APIKeyService) Create(ctx context.Context, name, createdBy, tierName string) (*models.APIKey, string, error) {
	tier, err := s.tiers.FindByName(ctx, tierName)
	if err != nil {
		return nil, "", err
	}
	if tier == nil {
		return nil, "", ErrTierNotFound
	}

	// Generate random key
	keyBytes := make([]byte, 32)
	if _, err := rand.Read(keyBytes); err != nil {
		return nil, "", fmt.Errorf("failed to generate random key: %w", err)
	}

	// Creating key with prefix
	secret := "gw_" + base64.URLEncoding.EncodeToString(keyBytes)

	// Hash the key for verification
	hash := sha256.Sum256([]byte(secret))
	keyHash := hex.EncodeToString(hash[:])

	apiKey := models.APIKey{
		Key:               secret,
		KeyHash:           keyHash,
		Name:              name,
		CreatedBy:         createdBy,
		Tier:              tier.Name,
		RequestsPerMinute: tier.PerMinute(),
		RequestsPerDay:    tier.PerDay(),
		IsActive:          true,
	}

	if err := s.repository.Create(ctx, &apiKey); err != nil {
		return nil, "", fmt.Errorf("failed to create API key: %w", err)
	}

	return &apiKey, secret, nil
}

func (s *APIKeyService) Get(ctx context.Context, id string) (*models.APIKey, error) {
	return s.repository.FindByID(ctx, id)
}

// List returns every key with its current minute/day usage
func (s *APIKeyService) List(ctx context.Context) ([]KeySummary, error) {
	keys, err := s.repository.List(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]KeySummary, 0, len(keys))
	for _, key := range keys {
		summary := KeySummary{APIKey: key}

		usage, err := s.counters.CurrentUsage(ctx, key.Key)
		if err != nil {
			// Usage is decoration on this endpoint, not worth failing a list
			log.Printf("apikey: usage read failed for %s: %v", key.ID, err)
		} else {
			summary.MinuteUsage = usage.Minute
			summary.DayUsage = usage.Day
		}

		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// Detail returns one key with usage, recent decisions, and the blocked count
// derived from its event stream.
func (s *APIKeyService) Detail(ctx context.Context, id string) (*KeyDetail, error) {
	apiKey, err := s.repository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if apiKey == nil {
		return nil, ErrKeyNotFound
	}

	detail := &KeyDetail{KeySummary: KeySummary{APIKey: *apiKey}}

	if usage, err := s.counters.CurrentUsage(ctx, apiKey.Key); err == nil {
		detail.MinuteUsage = usage.Minute
		detail.DayUsage = usage.Day
	}

	if recent, err := s.events.Recent(ctx, apiKey.Key, 50); err == nil {
		detail.RecentEvents = recent
	}

	if blocked, err := s.events.BlockedCount(ctx, apiKey.Key); err == nil {
		detail.BlockedCount = blocked
	}

	return detail, nil
}

// UpdateLimits overrides a key's limits until its tier is next edited
func (s *APIKeyService) UpdateLimits(ctx context.Context, id string, perMinute, perDay int) error {
	if perMinute <= 0 || perDay <= 0 {
		return ErrInvalidLimits
	}

	apiKey, err := s.repository.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if apiKey == nil {
		return ErrKeyNotFound
	}

	err = s.repository.Update(ctx, id, map[string]interface{}{
		"requests_per_minute": perMinute,
		"requests_per_day":    perDay,
	})
	if err != nil {
		return err
	}

	return s.invalidate(ctx, apiKey.Key)
}

// Disable soft-removes a key: history stays, the next admission check for it
// returns a disabled rejection.
func (s *APIKeyService) Disable(ctx context.Context, id string) error {
	apiKey, err := s.repository.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if apiKey == nil {
		return ErrKeyNotFound
	}

	if err := s.repository.Update(ctx, id, map[string]interface{}{"is_active": false}); err != nil {
		return err
	}

	return s.invalidate(ctx, apiKey.Key)
}

// Delete hard-removes the record and its cache entry
func (s *APIKeyService) Delete(ctx context.Context, id string) error {
	apiKey, err := s.repository.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if apiKey == nil {
		return ErrKeyNotFound
	}

	if err := s.invalidate(ctx, apiKey.Key); err != nil {
		log.Printf("apikey: cache invalidation before delete failed for %s: %v", id, err)
	}

	return s.repository.Delete(ctx, id)
}

// UpdateLastUsed stamps the key's last-used time. Callers run this off the
// request path on a detached context - the verdict never waits on it.
func (s *APIKeyService) UpdateLastUsed(ctx context.Context, id uuid.UUID) {
	if err := s.repository.UpdateLastUsed(ctx, id); err != nil {
		log.Printf("apikey: last-used update failed for %s: %v", id, err)
	}
}

func (s *APIKeyService) invalidate(ctx context.Context, secret string) error {
	return s.cache.Invalidate(ctx, secret)
}
