package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/athebyme/gomarket-platform/itemsync-service/internal/adapters/storage"
	"github.com/athebyme/gomarket-platform/itemsync-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/itemsync-service/internal/utils"
	"github.com/athebyme/gomarket-platform/itemsync-service/pkg/interfaces"
)

// ItemPublisher контракт публикации для оркестратора.
// Возвращает доставленные SKU и ошибку, если часть товаров не доставлена.
type ItemPublisher interface {
	Publish(ctx context.Context, items []*models.UnifiedItem) ([]string, error)
}

// ProcessingOrchestrator собирает конвейер обработки в единый проход:
// выборка, маппинг с валидацией, журнал аудита, публикация, сборка ответа.
type ProcessingOrchestrator struct {
	warehouse   storage.WarehousePort
	audit       storage.AuditPort
	mapper      *ItemMapper
	publisher   ItemPublisher
	clock       interfaces.Clock
	logger      interfaces.LoggerPort
	latestLimit int
}

// NewProcessingOrchestrator создает оркестратор обработки
func NewProcessingOrchestrator(
	warehouse storage.WarehousePort,
	audit storage.AuditPort,
	mapper *ItemMapper,
	publisher ItemPublisher,
	clock interfaces.Clock,
	logger interfaces.LoggerPort,
	latestLimit int,
) *ProcessingOrchestrator {
	return &ProcessingOrchestrator{
		warehouse:   warehouse,
		audit:       audit,
		mapper:      mapper,
		publisher:   publisher,
		clock:       clock,
		logger:      logger,
		latestLimit: latestLimit,
	}
}

// Process выполняет один вызов конвейера.
// Ошибка выборки прерывает весь вызов без частичного ответа.
// Ошибка публикации вызов не прерывает: уже записанные результаты аудита
// сохраняются, а сам отказ попадает в ответ отдельным полем.
func (o *ProcessingOrchestrator) Process(ctx context.Context, req *models.ProcessRequest) (*models.ProcessingResponse, error) {
	response := models.NewProcessingResponse()
	traceID := utils.TraceIDFromContext(ctx)

	items, notFound, err := o.fetch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки товаров: %w", err)
	}
	response.NotFoundSkus = append(response.NotFoundSkus, notFound...)

	toPublish := make([]*models.UnifiedItem, 0, len(items))
	for _, raw := range items {
		outcome := o.mapper.Map(raw)
		response.ItemsProcessed++

		o.appendAudit(ctx, raw, outcome, traceID)

		if outcome.Success() {
			toPublish = append(toPublish, outcome.Item)
			if len(outcome.SkippedFields) > 0 {
				o.logger.DebugWithContext(ctx, "Пропущены необязательные поля",
					interfaces.LogField{Key: "sku", Value: outcome.Sku},
					interfaces.LogField{Key: "fields", Value: strings.Join(outcome.SkippedFields, ",")})
			}
			continue
		}

		response.ItemsFailed++
		response.SkippedItems = append(response.SkippedItems, models.SkippedItem{
			Sku:               outcome.Sku,
			Reason:            "validation_failed",
			ValidationFailure: outcome.PrimaryFailure(),
			Errors:            outcome.Errors,
		})
	}

	published, pubErr := o.publisher.Publish(ctx, toPublish)
	response.PublishedSkus = append(response.PublishedSkus, published...)
	response.ItemsPublished = len(published)

	if pubErr != nil {
		response.PublishError = pubErr.Error()
		o.logger.ErrorWithContext(ctx, "Публикация завершилась с ошибкой",
			interfaces.LogField{Key: "published", Value: len(published)},
			interfaces.LogField{Key: "total", Value: len(toPublish)},
			interfaces.LogField{Key: "error", Value: pubErr.Error()})
	}

	if len(published) > 0 {
		// Перевод флага идемпотентен, повторная установка безопасна
		if err := o.audit.MarkDelivered(ctx, published); err != nil {
			o.logger.WarnWithContext(ctx, "Не удалось отметить доставку в журнале аудита",
				interfaces.LogField{Key: "error", Value: err.Error()})
		}
	}

	response.Success = true
	return response, nil
}

// fetch выбирает записи по запросу: явный набор SKU или последние обновленные
func (o *ProcessingOrchestrator) fetch(ctx context.Context, req *models.ProcessRequest) ([]*models.RawSourceItem, []string, error) {
	skus := req.ResolveSkus()
	if len(skus) == 0 {
		items, err := o.warehouse.FetchLatest(ctx, o.latestLimit)
		return items, []string{}, err
	}
	return o.warehouse.FetchBySkus(ctx, skus)
}

// appendAudit записывает исход обработки одной записи в журнал.
// Отказ журнала не прерывает вызов, товарные ошибки не должны зависеть
// от доступности аудита.
func (o *ProcessingOrchestrator) appendAudit(ctx context.Context, raw *models.RawSourceItem, outcome *models.MappingOutcome, traceID string) {
	record := &models.AuditRecord{
		Sku:       raw.Sku,
		Status:    models.AuditStatusValidated,
		TraceID:   traceID,
		CreatedAt: o.clock.Now(),
	}

	if rawData, err := json.Marshal(raw); err == nil {
		record.RawData = rawData
	}

	if outcome.Success() {
		if canonical, err := json.Marshal(outcome.Item); err == nil {
			record.CanonicalData = canonical
		}
	} else {
		record.Status = models.AuditStatusValidationFailed
		record.ErrorText = strings.Join(outcome.Errors, "; ")
	}

	if err := o.audit.Append(ctx, record); err != nil {
		o.logger.WarnWithContext(ctx, "Не удалось записать результат в журнал аудита",
			interfaces.LogField{Key: "sku", Value: raw.Sku},
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
}
