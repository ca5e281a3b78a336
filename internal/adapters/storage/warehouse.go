package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/athebyme/gomarket-platform/itemsync-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/itemsync-service/internal/utils"
)

// WarehouseStorage реализация WarehousePort для PostgreSQL
type WarehouseStorage struct {
	pool *pgxpool.Pool
}

// NewWarehouseStorage создает новый экземпляр WarehouseStorage
func NewWarehouseStorage(ctx context.Context, connectionString string) (*WarehouseStorage, error) {
	pool, err := pgxpool.New(ctx, connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return &WarehouseStorage{pool: pool}, nil
}

// NewWarehouseStorageWithPool создает WarehouseStorage поверх готового пула
func NewWarehouseStorageWithPool(ctx context.Context, pool *pgxpool.Pool) (*WarehouseStorage, error) {
	if pool == nil {
		return nil, errors.New("pool is nil")
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &WarehouseStorage{pool: pool}, nil
}

// Close закрывает соединение с БД
func (r *WarehouseStorage) Close() error {
	r.pool.Close()
	return nil
}

// Ping проверяет доступность хранилища
func (r *WarehouseStorage) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

const itemColumns = `
	sku, name, description,
	primary_barcode, secondary_barcode,
	hts_code, commodity_code, china_hts_code,
	country_of_origin_code,
	prices, costs, categories, attributes, links, images,
	source_system, created_at, updated_at
`

// FetchBySkus находит записи по набору SKU без учета регистра
func (r *WarehouseStorage) FetchBySkus(ctx context.Context, skus []string) ([]*models.RawSourceItem, []string, error) {
	if len(skus) == 0 {
		return []*models.RawSourceItem{}, []string{}, nil
	}

	// Дедупликация без учета регистра с сохранением исходного написания
	requested := make(map[string]string, len(skus))
	lowered := make([]string, 0, len(skus))
	for _, sku := range skus {
		key := strings.ToLower(strings.TrimSpace(sku))
		if key == "" {
			continue
		}
		if _, ok := requested[key]; !ok {
			requested[key] = strings.TrimSpace(sku)
			lowered = append(lowered, key)
		}
	}

	query := `
		SELECT ` + itemColumns + `
		FROM warehouse.items
		WHERE lower(sku) = ANY($1)
	`

	rows, err := r.pool.Query(ctx, query, lowered)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to fetch items by skus: %v", utils.ErrTransient, err)
	}
	defer rows.Close()

	found := make(map[string]struct{}, len(lowered))
	var items []*models.RawSourceItem
	for rows.Next() {
		item, err := scanRawItem(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: failed to scan item: %v", utils.ErrTransient, err)
		}
		items = append(items, item)
		found[strings.ToLower(item.Sku)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("%w: failed to read items: %v", utils.ErrTransient, err)
	}

	notFound := []string{}
	for _, key := range lowered {
		if _, ok := found[key]; !ok {
			notFound = append(notFound, requested[key])
		}
	}

	if items == nil {
		items = []*models.RawSourceItem{}
	}
	return items, notFound, nil
}

// FetchLatest возвращает до limit последних обновленных записей
func (r *WarehouseStorage) FetchLatest(ctx context.Context, limit int) ([]*models.RawSourceItem, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM warehouse.items
		ORDER BY updated_at DESC, sku ASC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch latest items: %v", utils.ErrTransient, err)
	}
	defer rows.Close()

	items := []*models.RawSourceItem{}
	for rows.Next() {
		item, err := scanRawItem(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan item: %v", utils.ErrTransient, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to read items: %v", utils.ErrTransient, err)
	}

	return items, nil
}

// scanRawItem читает одну строку выборки в модель
func scanRawItem(row pgx.Row) (*models.RawSourceItem, error) {
	var item models.RawSourceItem
	err := row.Scan(
		&item.Sku, &item.Name, &item.Description,
		&item.PrimaryBarcode, &item.SecondaryBarcode,
		&item.HtsCode, &item.CommodityCode, &item.ChinaHtsCode,
		&item.CountryOfOriginCode,
		&item.Prices, &item.Costs, &item.Categories, &item.Attributes, &item.Links, &item.Images,
		&item.SourceSystem, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}
