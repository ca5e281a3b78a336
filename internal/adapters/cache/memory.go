package cache

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/athebyme/gomarket-platform/itemsync-service/internal/utils"
	"github.com/athebyme/gomarket-platform/itemsync-service/pkg/interfaces"
)

// MemoryCache реализация CachePort в памяти процесса.
// Используется в тестовом профиле и при локальной разработке без Redis.
type MemoryCache struct {
	cache *gocache.Cache
}

func NewMemoryCache(defaultExpiration time.Duration) interfaces.CachePort {
	return &MemoryCache{
		cache: gocache.New(defaultExpiration, 2*defaultExpiration),
	}
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	if v, ok := m.cache.Get(key); ok {
		return v.([]byte), nil
	}
	return nil, utils.ErrCacheMiss
}

func (m *MemoryCache) GetMulti(_ context.Context, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	for _, key := range keys {
		if v, ok := m.cache.Get(key); ok {
			result[key] = v.([]byte)
		}
	}
	return result, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, value []byte, expiration time.Duration) error {
	if expiration == 0 {
		expiration = gocache.NoExpiration
	}
	m.cache.Set(key, value, expiration)
	return nil
}

func (m *MemoryCache) SetMulti(ctx context.Context, items map[string][]byte, expiration time.Duration) error {
	for key, value := range items {
		if err := m.Set(ctx, key, value, expiration); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.cache.Delete(key)
	return nil
}

func (m *MemoryCache) DeleteByPattern(_ context.Context, pattern string) error {
	// Поддерживается только шаблон вида "prefix:*", как и используется сервисом
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			m.cache.Delete(key)
		}
	}
	return nil
}

func (m *MemoryCache) Close() error {
	m.cache.Flush()
	return nil
}
