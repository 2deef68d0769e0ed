package store

import (
	"time"

	"github.com/hrygo/prefsync/internal/profile"
	"github.com/hrygo/prefsync/store/cache"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver

	// Cache settings
	cacheConfig cache.Config

	// Caches. Save tokens are deliberately not cached: they are
	// single-use and consumption must always see the database.
	userCache       *cache.Cache // cache for users
	userRecordCache *cache.Cache // cache for preference blobs
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	cacheConfig := cache.Config{
		DefaultTTL:      10 * time.Minute,
		CleanupInterval: 5 * time.Minute,
		MaxItems:        1000,
		OnEviction:      nil,
	}

	store := &Store{
		driver:          driver,
		profile:         profile,
		cacheConfig:     cacheConfig,
		userCache:       cache.New(cacheConfig),
		userRecordCache: cache.New(cacheConfig),
	}

	return store
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	// Stop all cache cleanup goroutines
	s.userCache.Close()
	s.userRecordCache.Close()

	return s.driver.Close()
}
