package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/athebyme/gomarket-platform/itemsync-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/itemsync-service/internal/utils"
	"github.com/athebyme/gomarket-platform/itemsync-service/pkg/tx"
)

// AuditStorage реализация AuditPort для PostgreSQL
type AuditStorage struct {
	pool *pgxpool.Pool
	txm  tx.TxManager
}

// NewAuditStorage создает новый экземпляр AuditStorage
func NewAuditStorage(pool *pgxpool.Pool, txm tx.TxManager) (*AuditStorage, error) {
	if pool == nil {
		return nil, errors.New("pool is nil")
	}
	return &AuditStorage{pool: pool, txm: txm}, nil
}

// Close закрывает соединение с журналом.
// Пул общий с хранилищем, закрывается владельцем в main.
func (r *AuditStorage) Close() error {
	return nil
}

// Append добавляет запись журнала аудита
func (r *AuditStorage) Append(ctx context.Context, record *models.AuditRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	query := `
		INSERT INTO itemsync.audit_records
			(id, sku, raw_data, status, canonical_data, error_text, delivered_to_queue, trace_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.pool.Exec(ctx, query,
		record.ID, record.Sku, record.RawData, record.Status,
		record.CanonicalData, record.ErrorText, record.DeliveredToQueue,
		record.TraceID, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to append audit record: %v", utils.ErrTransient, err)
	}
	return nil
}

// MarkDelivered выставляет флаг доставки у последней записи каждого SKU.
// Выполняется в транзакции: выбор последних записей и обновление флага
// должны видеть одно и то же состояние журнала.
func (r *AuditStorage) MarkDelivered(ctx context.Context, skus []string) error {
	if len(skus) == 0 {
		return nil
	}

	lowered := make([]string, 0, len(skus))
	for _, sku := range skus {
		lowered = append(lowered, strings.ToLower(strings.TrimSpace(sku)))
	}

	query := `
		UPDATE itemsync.audit_records
		SET delivered_to_queue = TRUE
		WHERE id IN (
			SELECT DISTINCT ON (lower(sku)) id
			FROM itemsync.audit_records
			WHERE lower(sku) = ANY($1)
			ORDER BY lower(sku), created_at DESC
		)
	`

	err := r.txm.Do(ctx, func(txCtx context.Context) error {
		if txConn, ok := tx.GetTxFromContext(txCtx); ok {
			_, err := txConn.Exec(txCtx, query, lowered)
			return err
		}
		_, err := r.pool.Exec(txCtx, query, lowered)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: failed to mark audit records delivered: %v", utils.ErrTransient, err)
	}
	return nil
}
