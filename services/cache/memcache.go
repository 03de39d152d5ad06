package cache

import (
	"errors"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	werrors "sjsage522/listingwatcher/pkg/errors"
)

// MemcacheService implements CacheService using memcache
type MemcacheService struct {
	client *memcache.Client
	addr   string
}

// NewMemcacheService creates a new memcache service
func NewMemcacheService(serverAddr string) *MemcacheService {
	client := memcache.New(serverAddr)
	client.Timeout = 500 * time.Millisecond
	return &MemcacheService{
		client: client,
		addr:   serverAddr,
	}
}

// Ping checks that every server is reachable
func (m *MemcacheService) Ping() error {
	if err := m.client.Ping(); err != nil {
		return werrors.NewCache(m.addr, "memcache ping failed", err)
	}
	return nil
}

// Get retrieves a value from memcache
func (m *MemcacheService) Get(key string) ([]byte, error) {
	item, err := m.client.Get(key)
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return nil, ErrCacheMiss
		}
		return nil, werrors.NewCache(m.addr, "memcache get failed", err)
	}
	return item.Value, nil
}

// Set stores a value in memcache with an expiration time
func (m *MemcacheService) Set(key string, value []byte, expiration time.Duration) error {
	err := m.client.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: memcacheExpiration(expiration, time.Now()),
	})
	if err != nil {
		return werrors.NewCache(m.addr, "memcache set failed", err)
	}
	return nil
}

// maxRelativeExpiration is the longest expiry memcached reads as relative;
// larger values are taken as unix timestamps
const maxRelativeExpiration = 30 * 24 * time.Hour

func memcacheExpiration(d time.Duration, now time.Time) int32 {
	switch {
	case d <= 0:
		return 0
	case d <= maxRelativeExpiration:
		return int32(d / time.Second)
	default:
		return int32(now.Add(d).Unix())
	}
}

// Delete removes a value from memcache. Deleting an absent key is not an error.
func (m *MemcacheService) Delete(key string) error {
	err := m.client.Delete(key)
	if err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		return werrors.NewCache(m.addr, "memcache delete failed", err)
	}
	return nil
}
