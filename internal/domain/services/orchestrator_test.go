package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athebyme/gomarket-platform/itemsync-service/internal/adapters/logger"
	"github.com/athebyme/gomarket-platform/itemsync-service/internal/adapters/messaging"
	"github.com/athebyme/gomarket-platform/itemsync-service/internal/adapters/storage"
	"github.com/athebyme/gomarket-platform/itemsync-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/itemsync-service/internal/utils"
)

type pipelineFixture struct {
	warehouse    *storage.MemoryWarehouse
	audit        *storage.MemoryAudit
	queue        *messaging.MemoryQueue
	clock        *fakeClock
	orchestrator *ProcessingOrchestrator
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()

	warehouse := storage.NewMemoryWarehouse()
	audit := storage.NewMemoryAudit()
	queue := messaging.NewMemoryQueue()
	clock := newFakeClock()
	log := logger.NewNopLogger()

	publisher := NewResilientPublisher(queue, newTestBreaker(clock), clock, log, PublisherSettings{
		Topic:             "unified-items",
		MaxRetries:        2,
		BaseDelay:         time.Second,
		BackoffMultiplier: 2.0,
		BatchSize:         10,
	})
	mapper := newTestMapper()
	orchestrator := NewProcessingOrchestrator(warehouse, audit, mapper, publisher, clock, log, 100)

	return &pipelineFixture{
		warehouse:    warehouse,
		audit:        audit,
		queue:        queue,
		clock:        clock,
		orchestrator: orchestrator,
	}
}

func TestProcess_TwoValidSkus(t *testing.T) {
	f := newPipelineFixture(t)
	f.warehouse.Put(validRawItem("TEST-001"))
	f.warehouse.Put(validRawItem("TEST-002"))

	resp, err := f.orchestrator.Process(context.Background(),
		&models.ProcessRequest{Skus: []string{"TEST-001", "TEST-002"}})

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.ItemsProcessed)
	assert.Equal(t, 2, resp.ItemsPublished)
	assert.Equal(t, 0, resp.ItemsFailed)
	assert.Empty(t, resp.NotFoundSkus)
	assert.Empty(t, resp.PublishError)
	assert.ElementsMatch(t, []string{"TEST-001", "TEST-002"}, resp.PublishedSkus)
}

func TestProcess_AuditAndDeliveryFlags(t *testing.T) {
	f := newPipelineFixture(t)
	f.warehouse.Put(validRawItem("TEST-001"))

	ctx := utils.WithTraceID(context.Background(), "trace-42")
	_, err := f.orchestrator.Process(ctx, &models.ProcessRequest{Skus: []string{"TEST-001"}})
	require.NoError(t, err)

	rec := f.audit.LatestBySku("TEST-001")
	require.NotNil(t, rec)
	assert.Equal(t, models.AuditStatusValidated, rec.Status)
	assert.NotEmpty(t, rec.RawData)
	assert.NotEmpty(t, rec.CanonicalData)
	assert.Empty(t, rec.ErrorText)
	assert.Equal(t, "trace-42", rec.TraceID)
	assert.True(t, rec.DeliveredToQueue)
}

func TestProcess_MissingLandedCostSkipped(t *testing.T) {
	f := newPipelineFixture(t)

	raw := validRawItem("NO-LANDED-COST")
	raw.HtsCode = "8517.12"
	raw.Costs = nil
	f.warehouse.Put(raw)

	resp, err := f.orchestrator.Process(context.Background(),
		&models.ProcessRequest{Skus: []string{"NO-LANDED-COST"}})

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.ItemsProcessed)
	assert.Equal(t, 0, resp.ItemsPublished)
	assert.Equal(t, 1, resp.ItemsFailed)

	require.Len(t, resp.SkippedItems, 1)
	skipped := resp.SkippedItems[0]
	assert.Equal(t, "NO-LANDED-COST", skipped.Sku)
	assert.Contains(t, skipped.ValidationFailure, "LandedCost")
	assert.NotEmpty(t, skipped.Errors)

	// Очередь не трогалась, журнал получил запись об ошибке валидации
	assert.Equal(t, 0, f.queue.CallCount())
	rec := f.audit.LatestBySku("NO-LANDED-COST")
	require.NotNil(t, rec)
	assert.Equal(t, models.AuditStatusValidationFailed, rec.Status)
	assert.Contains(t, rec.ErrorText, "LandedCost")
	assert.Empty(t, rec.CanonicalData)
	assert.False(t, rec.DeliveredToQueue)
}

func TestProcess_NotFoundReported(t *testing.T) {
	f := newPipelineFixture(t)
	f.warehouse.Put(validRawItem("TEST-001"))

	resp, err := f.orchestrator.Process(context.Background(),
		&models.ProcessRequest{Skus: []string{"TEST-001", "MISSING-001"}})

	require.NoError(t, err)
	assert.Equal(t, 1, resp.ItemsProcessed)
	assert.Equal(t, []string{"MISSING-001"}, resp.NotFoundSkus)
}

func TestProcess_EmptyRequestUsesLatest(t *testing.T) {
	f := newPipelineFixture(t)
	f.warehouse.Put(validRawItem("TEST-001"))
	f.warehouse.Put(validRawItem("TEST-002"))
	f.warehouse.Put(validRawItem("TEST-003"))

	resp, err := f.orchestrator.Process(context.Background(), &models.ProcessRequest{})

	require.NoError(t, err)
	assert.Equal(t, 3, resp.ItemsProcessed)
	assert.Equal(t, resp.ItemsProcessed, resp.ItemsPublished)
	assert.Equal(t, 0, resp.ItemsFailed)
}

func TestProcess_FetchFailureAborts(t *testing.T) {
	f := newPipelineFixture(t)
	f.warehouse.FailFetch = true

	resp, err := f.orchestrator.Process(context.Background(),
		&models.ProcessRequest{Skus: []string{"TEST-001"}})

	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Empty(t, f.audit.Records())
	assert.Equal(t, 0, f.queue.CallCount())
}

func TestProcess_PublishFailureKeepsResponse(t *testing.T) {
	f := newPipelineFixture(t)
	f.warehouse.Put(validRawItem("TEST-001"))
	f.warehouse.Put(validRawItem("TEST-002"))
	f.queue.FailKeyAlways("TEST-002")

	resp, err := f.orchestrator.Process(context.Background(),
		&models.ProcessRequest{Skus: []string{"TEST-001", "TEST-002"}})

	// Отказ публикации не прерывает вызов
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.ItemsProcessed)
	assert.Equal(t, 1, resp.ItemsPublished)
	assert.NotEmpty(t, resp.PublishError)
	assert.Equal(t, []string{"TEST-001"}, resp.PublishedSkus)

	// Доставка отмечена только у реально доставленного SKU
	require.NotNil(t, f.audit.LatestBySku("TEST-001"))
	assert.True(t, f.audit.LatestBySku("TEST-001").DeliveredToQueue)
	assert.False(t, f.audit.LatestBySku("TEST-002").DeliveredToQueue)
}

func TestProcess_DuplicateSkusProcessedOnce(t *testing.T) {
	f := newPipelineFixture(t)
	f.warehouse.Put(validRawItem("TEST-001"))

	resp, err := f.orchestrator.Process(context.Background(),
		&models.ProcessRequest{Skus: []string{"TEST-001"}, SkuList: "test-001, TEST-001"})

	require.NoError(t, err)
	assert.Equal(t, 1, resp.ItemsProcessed)
	assert.Equal(t, 1, resp.ItemsPublished)
}

func TestProcess_MarkDeliveredTouchesLatestRecordOnly(t *testing.T) {
	f := newPipelineFixture(t)
	f.warehouse.Put(validRawItem("TEST-001"))

	// Первый проход оставляет историческую запись
	_, err := f.orchestrator.Process(context.Background(),
		&models.ProcessRequest{Skus: []string{"TEST-001"}})
	require.NoError(t, err)

	f.clock.Advance(time.Minute)

	_, err = f.orchestrator.Process(context.Background(),
		&models.ProcessRequest{Skus: []string{"TEST-001"}})
	require.NoError(t, err)

	records := f.audit.Records()
	require.Len(t, records, 2)
	latest := f.audit.LatestBySku("TEST-001")
	assert.True(t, latest.DeliveredToQueue)
}
