package storage

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/athebyme/gomarket-platform/itemsync-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/itemsync-service/pkg/interfaces"
)

// CachedWarehouse декоратор WarehousePort со сквозным чтением через кэш.
// Записи кэшируются по SKU; выборка последних товаров кэш не использует,
// чтобы не отдавать устаревший порядок.
type CachedWarehouse struct {
	inner      WarehousePort
	cache      interfaces.CachePort
	logger     interfaces.LoggerPort
	expiration time.Duration
}

// NewCachedWarehouse создает кэширующий декоратор поверх хранилища
func NewCachedWarehouse(inner WarehousePort, cache interfaces.CachePort, logger interfaces.LoggerPort, expiration time.Duration) *CachedWarehouse {
	return &CachedWarehouse{
		inner:      inner,
		cache:      cache,
		logger:     logger,
		expiration: expiration,
	}
}

func cacheKey(sku string) string {
	return "item:" + strings.ToLower(sku)
}

// FetchBySkus реализация WarehousePort: сначала кэш, недостающее - из хранилища
func (c *CachedWarehouse) FetchBySkus(ctx context.Context, skus []string) ([]*models.RawSourceItem, []string, error) {
	if len(skus) == 0 {
		return []*models.RawSourceItem{}, []string{}, nil
	}

	keys := make([]string, 0, len(skus))
	for _, sku := range skus {
		keys = append(keys, cacheKey(sku))
	}

	cached, err := c.cache.GetMulti(ctx, keys)
	if err != nil {
		// Недоступный кэш не ломает выборку, просто идем в хранилище
		c.logger.WarnWithContext(ctx, "Кэш недоступен, читаем из хранилища",
			interfaces.LogField{Key: "error", Value: err.Error()})
		cached = map[string][]byte{}
	}

	items := []*models.RawSourceItem{}
	var missing []string
	for i, sku := range skus {
		raw, ok := cached[keys[i]]
		if !ok {
			missing = append(missing, sku)
			continue
		}
		var item models.RawSourceItem
		if err := json.Unmarshal(raw, &item); err != nil {
			// Испорченная запись кэша перечитывается из хранилища
			missing = append(missing, sku)
			continue
		}
		items = append(items, &item)
	}

	if len(missing) == 0 {
		return items, []string{}, nil
	}

	fetched, notFound, err := c.inner.FetchBySkus(ctx, missing)
	if err != nil {
		return nil, nil, err
	}

	toCache := make(map[string][]byte, len(fetched))
	for _, item := range fetched {
		if raw, err := json.Marshal(item); err == nil {
			toCache[cacheKey(item.Sku)] = raw
		}
	}
	if len(toCache) > 0 {
		if err := c.cache.SetMulti(ctx, toCache, c.expiration); err != nil {
			c.logger.WarnWithContext(ctx, "Не удалось записать записи в кэш",
				interfaces.LogField{Key: "error", Value: err.Error()})
		}
	}

	return append(items, fetched...), notFound, nil
}

// FetchLatest реализация WarehousePort: всегда напрямую из хранилища
func (c *CachedWarehouse) FetchLatest(ctx context.Context, limit int) ([]*models.RawSourceItem, error) {
	return c.inner.FetchLatest(ctx, limit)
}

// Close закрывает нижележащее хранилище
func (c *CachedWarehouse) Close() error {
	return c.inner.Close()
}
