package storage

import (
	"context"

	"github.com/athebyme/gomarket-platform/itemsync-service/internal/domain/models"
)

// WarehousePort определяет контракт чтения исходных записей из аналитического хранилища.
// Хранилище существует независимо от сервиса; ядро только читает.
type WarehousePort interface {
	// FetchBySkus находит записи по набору SKU без учета регистра.
	// Запрошенные SKU без записи в хранилище возвращаются вторым результатом
	// и не считаются ошибкой вызова. Ошибка возвращается только если
	// хранилище недоступно целиком.
	FetchBySkus(ctx context.Context, skus []string) ([]*models.RawSourceItem, []string, error)

	// FetchLatest возвращает до limit записей, упорядоченных по времени
	// обновления по убыванию; при равенстве - по SKU по возрастанию.
	FetchLatest(ctx context.Context, limit int) ([]*models.RawSourceItem, error)

	// Close закрывает соединение с хранилищем
	Close() error
}

// AuditPort определяет контракт журнала аудита обработки.
// На каждый обработанный SKU добавляется одна запись; записи не удаляются.
type AuditPort interface {
	// Append добавляет запись журнала
	Append(ctx context.Context, record *models.AuditRecord) error

	// MarkDelivered выставляет флаг доставки у последней записи каждого SKU.
	// Сопоставление без учета регистра; переход только false -> true,
	// повторный вызов для уже доставленного SKU безвреден.
	MarkDelivered(ctx context.Context, skus []string) error

	// Close закрывает соединение с журналом
	Close() error
}
