package interfaces

import (
	"context"
	"time"
)

// CachePort определяет интерфейс для работы с системой кэширования
// Реализация может использовать Redis, Memcached или любую другую систему кэширования
type CachePort interface {
	// Get получает значение из кэша по ключу
	Get(ctx context.Context, key string) ([]byte, error)

	// GetMulti получает несколько значений за один запрос (для оптимизации)
	// Возвращает map, где ключи - запрошенные ключи, а значения - данные из кэша
	// Если какой-то ключ не найден, он отсутствует в результирующей map
	GetMulti(ctx context.Context, keys []string) (map[string][]byte, error)

	// Set сохраняет значение в кэше с указанным сроком действия
	// Если expiration равно 0, срок действия не устанавливается
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error

	// SetMulti сохраняет несколько значений за один запрос
	SetMulti(ctx context.Context, items map[string][]byte, expiration time.Duration) error

	// Delete удаляет значение из кэша по ключу
	Delete(ctx context.Context, key string) error

	// DeleteByPattern удаляет все значения, соответствующие шаблону
	// Например, "item:*" удалит все ключи, начинающиеся с "item:"
	DeleteByPattern(ctx context.Context, pattern string) error

	// Close закрывает соединение с системой кэширования
	Close() error
}
