package store

import (
	"time"

	"github.com/nudgebot/nudge/internal/profile"
	"github.com/nudgebot/nudge/store/cache"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver

	// Cache settings
	cacheConfig cache.Config

	// contextCache holds assembled per-user personalization context.
	// Mutating operations invalidate entries instead of refreshing them.
	contextCache *cache.Cache
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	ttl := 2 * time.Minute
	if profile != nil && profile.ContextCacheTTL > 0 {
		ttl = profile.ContextCacheTTL
	}
	cacheConfig := cache.Config{
		DefaultTTL:      ttl,
		CleanupInterval: time.Minute,
		MaxItems:        1000,
	}

	return &Store{
		driver:       driver,
		profile:      profile,
		cacheConfig:  cacheConfig,
		contextCache: cache.New(cacheConfig),
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	s.contextCache.Close()
	return s.driver.Close()
}

// ContextCache exposes the per-user context cache.
func (s *Store) ContextCache() *cache.Cache {
	return s.contextCache
}

func (s *Store) invalidateUserContext(userID string) {
	s.contextCache.Delete(contextCacheKey(userID))
}

func contextCacheKey(userID string) string {
	return "context:" + userID
}

// ContextCacheKey returns the cache key used for a user's assembled context.
func ContextCacheKey(userID string) string {
	return contextCacheKey(userID)
}
