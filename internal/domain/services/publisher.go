package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/athebyme/gomarket-platform/itemsync-service/internal/adapters/messaging"
	"github.com/athebyme/gomarket-platform/itemsync-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/itemsync-service/internal/utils"
	"github.com/athebyme/gomarket-platform/itemsync-service/pkg/interfaces"
)

// PublisherSettings параметры отказоустойчивой публикации
type PublisherSettings struct {
	Topic             string
	MaxRetries        int
	BaseDelay         time.Duration
	BackoffMultiplier float64
	BatchSize         int
}

// ResilientPublisher доставляет канонические модели в очередь пакетами
// с ограниченными повторами и предохранителем поверх всех попыток.
// Частичный результат никогда не замалчивается: недоставленные товары
// возвращаются в итоговой ошибке с их количеством и причиной.
type ResilientPublisher struct {
	queue    interfaces.QueuePort
	breaker  *CircuitBreaker
	clock    interfaces.Clock
	logger   interfaces.LoggerPort
	settings PublisherSettings
}

// NewResilientPublisher создает публикатор
func NewResilientPublisher(
	queue interfaces.QueuePort,
	breaker *CircuitBreaker,
	clock interfaces.Clock,
	logger interfaces.LoggerPort,
	settings PublisherSettings,
) *ResilientPublisher {
	return &ResilientPublisher{
		queue:    queue,
		breaker:  breaker,
		clock:    clock,
		logger:   logger,
		settings: settings,
	}
}

// pendingEntry одна запись пакета, ожидающая доставки
type pendingEntry struct {
	sku     string
	message interfaces.QueueMessage
}

// Publish доставляет товары в очередь. Возвращает список доставленных SKU
// и ошибку, если хотя бы один товар доставить не удалось.
// Пустой вход тривиально успешен, очередь не вызывается.
func (p *ResilientPublisher) Publish(ctx context.Context, items []*models.UnifiedItem) ([]string, error) {
	if len(items) == 0 {
		return []string{}, nil
	}

	entries, err := p.buildEntries(ctx, items)
	if err != nil {
		return []string{}, err
	}

	published := []string{}
	var failedCount int
	var lastErr error

	// Пакеты отправляются строго последовательно: окно выборки предохранителя
	// отражает фактический порядок вызовов очереди
	for start := 0; start < len(entries); start += p.settings.BatchSize {
		end := start + p.settings.BatchSize
		if end > len(entries) {
			end = len(entries)
		}

		delivered, failed, batchErr := p.sendWithRetry(ctx, entries[start:end])
		published = append(published, delivered...)
		failedCount += failed
		if batchErr != nil {
			lastErr = batchErr
		}
	}

	if failedCount > 0 {
		return published, fmt.Errorf("не доставлено товаров: %d из %d, причина: %w",
			failedCount, len(entries), lastErr)
	}
	return published, nil
}

// buildEntries сериализует товары в сообщения очереди
func (p *ResilientPublisher) buildEntries(ctx context.Context, items []*models.UnifiedItem) ([]pendingEntry, error) {
	traceID := utils.TraceIDFromContext(ctx)

	entries := make([]pendingEntry, 0, len(items))
	for _, item := range items {
		value, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("ошибка сериализации товара %s: %w", item.Sku, err)
		}
		entries = append(entries, pendingEntry{
			sku: item.Sku,
			message: interfaces.QueueMessage{
				Key:   item.Sku,
				Value: value,
				Headers: map[string]string{
					messaging.HeaderEventType: messaging.ItemPublishedEvent,
					messaging.HeaderTraceID:   traceID,
				},
			},
		})
	}
	return entries, nil
}

// sendWithRetry отправляет один пакет, повторяя только отказавшие записи.
// Возвращает доставленные SKU, число недоставленных записей и последнюю ошибку.
func (p *ResilientPublisher) sendWithRetry(ctx context.Context, batch []pendingEntry) ([]string, int, error) {
	pending := batch
	delivered := []string{}
	var lastErr error

	// Попытка 1 - первичная отправка, далее до MaxRetries повторов.
	// Задержка перед повтором k: BaseDelay * BackoffMultiplier^(k-1).
	for attempt := 1; attempt <= p.settings.MaxRetries+1 && len(pending) > 0; attempt++ {
		if attempt > 1 {
			retryNumber := attempt - 1
			delay := time.Duration(float64(p.settings.BaseDelay) *
				math.Pow(p.settings.BackoffMultiplier, float64(retryNumber-1)))
			if err := p.clock.Sleep(ctx, delay); err != nil {
				// Бюджет времени вызова исчерпан, оставшиеся записи не доставлены
				lastErr = fmt.Errorf("%w: %v", utils.ErrTransient, err)
				break
			}
		}

		ok, retryable, err := p.sendOnce(ctx, pending)
		delivered = append(delivered, ok...)
		if err != nil {
			lastErr = err
		}

		if errors.Is(err, utils.ErrCircuitOpen) {
			// Предохранитель разомкнут: повторы бессмысленны до истечения паузы
			pending = retryable
			break
		}
		pending = retryable
	}

	// Недоставленным считается все, что не подтверждено очередью,
	// включая записи, отклоненные без права повтора
	return delivered, len(batch) - len(delivered), lastErr
}

// sendOnce одна попытка отправки под контролем предохранителя.
// Возвращает доставленные SKU, записи для повтора и ошибку попытки.
func (p *ResilientPublisher) sendOnce(ctx context.Context, pending []pendingEntry) ([]string, []pendingEntry, error) {
	if err := p.breaker.Allow(); err != nil {
		return nil, pending, err
	}

	messages := make([]interfaces.QueueMessage, len(pending))
	for i, e := range pending {
		messages[i] = e.message
	}

	results, err := p.queue.SendBatch(ctx, p.settings.Topic, messages)
	if err != nil {
		// Вызов не состоялся целиком: считаем одним отказом и повторяем весь пакет
		p.breaker.OnFailure()
		return nil, pending, err
	}

	var delivered []string
	var retryable []pendingEntry
	attemptFailed := false
	var entryErr error
	for i, res := range results {
		if !res.Failed() {
			delivered = append(delivered, pending[i].sku)
			continue
		}
		attemptFailed = true
		entryErr = res.Err
		if res.Retryable {
			retryable = append(retryable, pending[i])
		} else {
			p.logger.WarnWithContext(ctx, "Запись отклонена очередью без повтора",
				interfaces.LogField{Key: "sku", Value: pending[i].sku},
				interfaces.LogField{Key: "error", Value: res.Err.Error()})
		}
	}

	if attemptFailed {
		p.breaker.OnFailure()
		return delivered, retryable, entryErr
	}
	p.breaker.OnSuccess()
	return delivered, nil, nil
}
