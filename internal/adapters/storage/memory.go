package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/athebyme/gomarket-platform/itemsync-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/itemsync-service/internal/utils"
)

// MemoryWarehouse реализация WarehousePort в памяти процесса.
// Выбирается драйвером storage.driver=memory; используется в тестах и локально.
type MemoryWarehouse struct {
	mu    sync.RWMutex
	items map[string]*models.RawSourceItem // ключ - SKU в нижнем регистре

	// FailFetch имитирует недоступность хранилища целиком
	FailFetch bool
}

// NewMemoryWarehouse создает пустое хранилище в памяти
func NewMemoryWarehouse() *MemoryWarehouse {
	return &MemoryWarehouse{items: make(map[string]*models.RawSourceItem)}
}

// Put добавляет или заменяет запись
func (m *MemoryWarehouse) Put(item *models.RawSourceItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[strings.ToLower(item.Sku)] = item
}

// FetchBySkus реализация WarehousePort
func (m *MemoryWarehouse) FetchBySkus(_ context.Context, skus []string) ([]*models.RawSourceItem, []string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.FailFetch {
		return nil, nil, fmt.Errorf("%w: warehouse is unreachable", utils.ErrTransient)
	}

	seen := make(map[string]struct{})
	items := []*models.RawSourceItem{}
	notFound := []string{}
	for _, sku := range skus {
		key := strings.ToLower(strings.TrimSpace(sku))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		if item, ok := m.items[key]; ok {
			items = append(items, item)
		} else {
			notFound = append(notFound, strings.TrimSpace(sku))
		}
	}
	return items, notFound, nil
}

// FetchLatest реализация WarehousePort
func (m *MemoryWarehouse) FetchLatest(_ context.Context, limit int) ([]*models.RawSourceItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.FailFetch {
		return nil, fmt.Errorf("%w: warehouse is unreachable", utils.ErrTransient)
	}

	items := make([]*models.RawSourceItem, 0, len(m.items))
	for _, item := range m.items {
		items = append(items, item)
	}

	// Сначала по времени обновления по убыванию, при равенстве - по SKU по возрастанию
	sort.Slice(items, func(i, j int) bool {
		if !items[i].UpdatedAt.Equal(items[j].UpdatedAt) {
			return items[i].UpdatedAt.After(items[j].UpdatedAt)
		}
		return items[i].Sku < items[j].Sku
	})

	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// Close реализация WarehousePort
func (m *MemoryWarehouse) Close() error {
	return nil
}

// MemoryAudit реализация AuditPort в памяти процесса
type MemoryAudit struct {
	mu      sync.Mutex
	records []*models.AuditRecord

	// FailAppend имитирует недоступность журнала
	FailAppend bool
}

// NewMemoryAudit создает пустой журнал в памяти
func NewMemoryAudit() *MemoryAudit {
	return &MemoryAudit{}
}

// Append реализация AuditPort
func (m *MemoryAudit) Append(_ context.Context, record *models.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailAppend {
		return fmt.Errorf("%w: audit store is unreachable", utils.ErrTransient)
	}

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	copied := *record
	m.records = append(m.records, &copied)
	return nil
}

// MarkDelivered реализация AuditPort: флаг меняется только у последней записи SKU
func (m *MemoryAudit) MarkDelivered(_ context.Context, skus []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, sku := range skus {
		key := strings.ToLower(strings.TrimSpace(sku))
		var latest *models.AuditRecord
		for _, rec := range m.records {
			if strings.ToLower(rec.Sku) != key {
				continue
			}
			if latest == nil || rec.CreatedAt.After(latest.CreatedAt) {
				latest = rec
			}
		}
		if latest != nil {
			latest.DeliveredToQueue = true
		}
	}
	return nil
}

// Records возвращает копию журнала (для тестов)
func (m *MemoryAudit) Records() []*models.AuditRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*models.AuditRecord, len(m.records))
	copy(out, m.records)
	return out
}

// LatestBySku возвращает последнюю запись по SKU без учета регистра (для тестов)
func (m *MemoryAudit) LatestBySku(sku string) *models.AuditRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(sku)
	var latest *models.AuditRecord
	for _, rec := range m.records {
		if strings.ToLower(rec.Sku) != key {
			continue
		}
		if latest == nil || rec.CreatedAt.After(latest.CreatedAt) {
			latest = rec
		}
	}
	return latest
}

// Close реализация AuditPort
func (m *MemoryAudit) Close() error {
	return nil
}
