package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athebyme/gomarket-platform/itemsync-service/internal/adapters/logger"
	"github.com/athebyme/gomarket-platform/itemsync-service/internal/adapters/messaging"
	"github.com/athebyme/gomarket-platform/itemsync-service/internal/adapters/storage"
	"github.com/athebyme/gomarket-platform/itemsync-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/itemsync-service/internal/domain/services"
	"github.com/athebyme/gomarket-platform/itemsync-service/internal/utils"
	"github.com/athebyme/gomarket-platform/itemsync-service/pkg/interfaces"
)

type handlerFixture struct {
	warehouse *storage.MemoryWarehouse
	queue     *messaging.MemoryQueue
	handler   *ProcessHandler
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	warehouse := storage.NewMemoryWarehouse()
	audit := storage.NewMemoryAudit()
	queue := messaging.NewMemoryQueue()
	log := logger.NewNopLogger()
	clock := interfaces.SystemClock{}

	breaker := services.NewCircuitBreaker(services.CircuitBreakerSettings{
		FailureThreshold:  5,
		DurationOfBreak:   30 * time.Second,
		SamplingDuration:  60 * time.Second,
		MinimumThroughput: 3,
	}, clock)
	publisher := services.NewResilientPublisher(queue, breaker, clock, log, services.PublisherSettings{
		Topic:             "unified-items",
		MaxRetries:        0,
		BaseDelay:         time.Millisecond,
		BackoffMultiplier: 2.0,
		BatchSize:         10,
	})
	mapper := services.NewItemMapper(
		time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		[]string{"apparel", "clothing", "textile"},
	)
	orchestrator := services.NewProcessingOrchestrator(warehouse, audit, mapper, publisher, clock, log, 100)
	classifier := services.NewRequestClassifier("aws.events", "X-Scheduler-Event")

	return &handlerFixture{
		warehouse: warehouse,
		queue:     queue,
		handler:   NewProcessHandler(classifier, orchestrator, log, time.Second),
	}
}

func (f *handlerFixture) invoke(t *testing.T, body string, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/items/process", bytes.NewBufferString(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req = req.WithContext(utils.WithTraceID(context.Background(), "trace-test"))

	rec := httptest.NewRecorder()
	f.handler.Process(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func putValidItem(f *handlerFixture, sku string) {
	f.warehouse.Put(&models.RawSourceItem{
		Sku:                 sku,
		Name:                "Товар " + sku,
		PrimaryBarcode:      "4600000000001",
		CountryOfOriginCode: "RU",
		CreatedAt:           time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:           time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC),
	})
}

func TestProcessHandler_HealthCheckShortCircuit(t *testing.T) {
	f := newHandlerFixture(t)

	rec, env := f.invoke(t, "{}", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "trace-test", env.TraceID)

	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status": "healthy"}`, string(data))

	// Проверка здоровья не доходит до хранилища и очереди
	assert.Equal(t, 0, f.queue.CallCount())
}

func TestProcessHandler_DirectRequest(t *testing.T) {
	f := newHandlerFixture(t)
	putValidItem(f, "TEST-001")
	putValidItem(f, "TEST-002")

	rec, env := f.invoke(t, `{"skus": ["TEST-001", "TEST-002"]}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)

	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var resp models.ProcessingResponse
	require.NoError(t, json.Unmarshal(data, &resp))

	assert.Equal(t, 2, resp.ItemsProcessed)
	assert.Equal(t, 2, resp.ItemsPublished)
	assert.Equal(t, 0, resp.ItemsFailed)
}

func TestProcessHandler_GatewayWrappedBody(t *testing.T) {
	f := newHandlerFixture(t)
	putValidItem(f, "TEST-001")

	payload := `{
		"requestContext": {"requestId": "req-1", "stage": "prod"},
		"body": "{\"skus\": [\"TEST-001\"]}"
	}`

	rec, env := f.invoke(t, payload, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)

	data, _ := json.Marshal(env.Data)
	var resp models.ProcessingResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	assert.Equal(t, 1, resp.ItemsPublished)
}

func TestProcessHandler_MalformedBodyFallsBackToLatest(t *testing.T) {
	f := newHandlerFixture(t)
	putValidItem(f, "TEST-001")

	rec, env := f.invoke(t, "definitely not json", nil)

	// Неразбираемое тело обрабатывается как пустой запрос, а не как ошибка
	assert.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)

	data, _ := json.Marshal(env.Data)
	var resp models.ProcessingResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	assert.Equal(t, 1, resp.ItemsProcessed)
	assert.Equal(t, resp.ItemsProcessed, resp.ItemsPublished)
}

func TestProcessHandler_SchedulerHeaderUsesLatest(t *testing.T) {
	f := newHandlerFixture(t)
	putValidItem(f, "TEST-001")
	putValidItem(f, "TEST-002")

	headers := map[string]string{"X-Scheduler-Event": "cron"}
	rec, env := f.invoke(t, `{"anything": true}`, headers)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)

	data, _ := json.Marshal(env.Data)
	var resp models.ProcessingResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	assert.Equal(t, 2, resp.ItemsProcessed)
}

func TestProcessHandler_FetchFailureReturnsError(t *testing.T) {
	f := newHandlerFixture(t)
	f.warehouse.FailFetch = true

	rec, env := f.invoke(t, `{"skus": ["TEST-001"]}`, nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Error)
	assert.Equal(t, "trace-test", env.TraceID)
}
