package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/clinical-clock-api/internal/models"
)

type siteRepository interface {
	FindByID(ctx context.Context, siteID string) (*models.SiteReference, error)
	FindByRotation(ctx context.Context, rotationID string) (*models.SiteReference, error)
}

// SiteCacheService is the read-through cache over site reference data.
// The TTL is short because administrators edit geofence radius and
// strictness; stale entries must age out within minutes.
type SiteCacheService struct {
	repo      siteRepository
	cache     *CacheService
	ttl       time.Duration
	keyPrefix string
	logger    *zap.Logger
}

// NewSiteCacheService constructs the service.
func NewSiteCacheService(repo siteRepository, cache *CacheService, ttl time.Duration, keyPrefix string, logger *zap.Logger) *SiteCacheService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if keyPrefix == "" {
		keyPrefix = "clock"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SiteCacheService{repo: repo, cache: cache, ttl: ttl, keyPrefix: keyPrefix, logger: logger}
}

// ResolveSite returns the site for an explicit siteID, or the site assigned
// to rotationID when siteID is empty. A cache miss falls through to the
// datastore and repopulates the cache; a repopulation write failure fails the
// lookup so callers see one consistent failure mode. Caching disabled or a
// degraded cache read are not write failures and fall through normally.
func (s *SiteCacheService) ResolveSite(ctx context.Context, siteID, rotationID string) (*models.SiteReference, error) {
	if siteID == "" && rotationID == "" {
		return nil, fmt.Errorf("resolve site: no site or rotation identifier")
	}

	key := s.siteKey(siteID, rotationID)
	var cached models.SiteReference
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	var site *models.SiteReference
	var err error
	if siteID != "" {
		site, err = s.repo.FindByID(ctx, siteID)
	} else {
		site, err = s.repo.FindByRotation(ctx, rotationID)
	}
	if err != nil {
		return nil, err
	}
	if site == nil {
		return nil, nil
	}

	if err := s.cache.Set(ctx, key, site, s.ttl); err != nil {
		s.logger.Warn("site cache repopulation failed", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("site cache repopulation for %s: %w", key, err)
	}
	return site, nil
}

func (s *SiteCacheService) siteKey(siteID, rotationID string) string {
	if siteID != "" {
		return fmt.Sprintf("%s:site:%s", s.keyPrefix, siteID)
	}
	return fmt.Sprintf("%s:rotation:%s", s.keyPrefix, rotationID)
}
