package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/clinical-clock-api/internal/models"
	appErrors "github.com/noah-isme/clinical-clock-api/pkg/errors"
)

type memoryCacheRepo struct {
	entries map[string][]byte
	ttls    map[string]time.Duration
	getErr  error
	setErr  error
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{entries: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	if m.getErr != nil {
		return m.getErr
	}
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	m.ttls[key] = ttl
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	for key := range m.entries {
		delete(m.entries, key)
	}
	return nil
}

type siteRepoStub struct {
	sitesByID       map[string]*models.SiteReference
	sitesByRotation map[string]*models.SiteReference
	err             error
	calls           int
}

func (s *siteRepoStub) FindByID(ctx context.Context, siteID string) (*models.SiteReference, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.sitesByID[siteID], nil
}

func (s *siteRepoStub) FindByRotation(ctx context.Context, rotationID string) (*models.SiteReference, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.sitesByRotation[rotationID], nil
}

func TestResolveSiteReadThrough(t *testing.T) {
	cacheRepo := newMemoryCacheRepo()
	cache := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	repo := &siteRepoStub{sitesByID: map[string]*models.SiteReference{"site-1": nycSite()}}
	svc := NewSiteCacheService(repo, cache, 5*time.Minute, "clock", zap.NewNop())

	// First resolution misses the cache and hits the datastore.
	site, err := svc.ResolveSite(context.Background(), "site-1", "")
	require.NoError(t, err)
	require.NotNil(t, site)
	assert.Equal(t, "Downtown Clinic", site.Name)
	assert.Equal(t, 1, repo.calls)
	assert.Equal(t, 5*time.Minute, cacheRepo.ttls["clock:site:site-1"])

	// Second resolution is served from cache.
	site, err = svc.ResolveSite(context.Background(), "site-1", "")
	require.NoError(t, err)
	require.NotNil(t, site)
	assert.Equal(t, "site-1", site.ID)
	assert.Equal(t, 1, repo.calls)
}

func TestResolveSiteByRotation(t *testing.T) {
	cacheRepo := newMemoryCacheRepo()
	cache := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	repo := &siteRepoStub{sitesByRotation: map[string]*models.SiteReference{"rot-1": nycSite()}}
	svc := NewSiteCacheService(repo, cache, 5*time.Minute, "clock", zap.NewNop())

	site, err := svc.ResolveSite(context.Background(), "", "rot-1")
	require.NoError(t, err)
	require.NotNil(t, site)
	assert.Contains(t, cacheRepo.entries, "clock:rotation:rot-1")
}

func TestResolveSiteUnknown(t *testing.T) {
	cacheRepo := newMemoryCacheRepo()
	cache := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	repo := &siteRepoStub{sitesByID: map[string]*models.SiteReference{}}
	svc := NewSiteCacheService(repo, cache, 5*time.Minute, "clock", zap.NewNop())

	site, err := svc.ResolveSite(context.Background(), "site-404", "")
	require.NoError(t, err)
	assert.Nil(t, site)
	assert.Empty(t, cacheRepo.entries, "unknown sites are not cached")
}

func TestResolveSiteDatastoreError(t *testing.T) {
	cache := NewCacheService(newMemoryCacheRepo(), nil, time.Minute, zap.NewNop(), true)
	repo := &siteRepoStub{err: errors.New("connection refused")}
	svc := NewSiteCacheService(repo, cache, 5*time.Minute, "clock", zap.NewNop())

	_, err := svc.ResolveSite(context.Background(), "site-1", "")
	assert.Error(t, err)
}

func TestResolveSiteCacheWriteFailureFailsLookup(t *testing.T) {
	cacheRepo := newMemoryCacheRepo()
	cacheRepo.setErr = errors.New("redis write refused")
	cache := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	repo := &siteRepoStub{sitesByID: map[string]*models.SiteReference{"site-1": nycSite()}}
	svc := NewSiteCacheService(repo, cache, 5*time.Minute, "clock", zap.NewNop())

	site, err := svc.ResolveSite(context.Background(), "site-1", "")
	require.Error(t, err)
	assert.Nil(t, site)
}

func TestResolveSiteCacheDisabledSkipsRepopulation(t *testing.T) {
	cacheRepo := newMemoryCacheRepo()
	cacheRepo.setErr = errors.New("redis write refused")
	cache := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), false)
	repo := &siteRepoStub{sitesByID: map[string]*models.SiteReference{"site-1": nycSite()}}
	svc := NewSiteCacheService(repo, cache, 5*time.Minute, "clock", zap.NewNop())

	site, err := svc.ResolveSite(context.Background(), "site-1", "")
	require.NoError(t, err)
	assert.NotNil(t, site)
}

func TestResolveSiteDegradedCacheFallsThrough(t *testing.T) {
	cacheRepo := newMemoryCacheRepo()
	cacheRepo.getErr = errors.New("redis down")
	cache := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	repo := &siteRepoStub{sitesByID: map[string]*models.SiteReference{"site-1": nycSite()}}
	svc := NewSiteCacheService(repo, cache, 5*time.Minute, "clock", zap.NewNop())

	site, err := svc.ResolveSite(context.Background(), "site-1", "")
	require.NoError(t, err)
	require.NotNil(t, site)
	assert.Equal(t, 1, repo.calls)
}

func TestResolveSiteRequiresIdentifier(t *testing.T) {
	cache := NewCacheService(newMemoryCacheRepo(), nil, time.Minute, zap.NewNop(), true)
	svc := NewSiteCacheService(&siteRepoStub{}, cache, 5*time.Minute, "clock", zap.NewNop())

	_, err := svc.ResolveSite(context.Background(), "", "")
	assert.Error(t, err)
}
