package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/athebyme/gomarket-platform/itemsync-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/itemsync-service/internal/domain/services"
	"github.com/athebyme/gomarket-platform/itemsync-service/internal/utils"
	"github.com/athebyme/gomarket-platform/itemsync-service/pkg/interfaces"
)

// ProcessHandler обработчик запросов на обработку товаров
type ProcessHandler struct {
	classifier     *services.RequestClassifier
	orchestrator   *services.ProcessingOrchestrator
	logger         interfaces.LoggerPort
	deadlineMargin time.Duration
}

// NewProcessHandler создает новый обработчик обработки товаров
func NewProcessHandler(
	classifier *services.RequestClassifier,
	orchestrator *services.ProcessingOrchestrator,
	logger interfaces.LoggerPort,
	deadlineMargin time.Duration,
) *ProcessHandler {
	return &ProcessHandler{
		classifier:     classifier,
		orchestrator:   orchestrator,
		logger:         logger,
		deadlineMargin: deadlineMargin,
	}
}

// envelope представляет структуру ответа любого вызова
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	TraceID string      `json:"trace_id"`
	Error   string      `json:"error,omitempty"`
}

// healthData фиксированный ответ на проверку здоровья
type healthData struct {
	Status string `json:"status"`
}

// Process обрабатывает один вызов конвейера.
// Тело запроса намеренно непрозрачное: форма зависит от источника вызова
// и определяется классификатором, а не маршрутом.
func (h *ProcessHandler) Process(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	traceID := utils.TraceIDFromContext(ctx)

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.ErrorWithContext(ctx, "Ошибка чтения тела запроса",
			interfaces.LogField{Key: "error", Value: err.Error()})
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, envelope{TraceID: traceID, Error: "ошибка чтения тела запроса"})
		return
	}

	headers := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headers[k] = r.Header.Get(k)
	}

	source := h.classifier.Classify(payload, headers)
	h.logger.InfoWithContext(ctx, "Вызов классифицирован",
		interfaces.LogField{Key: "source", Value: string(source)})

	if source == models.SourceHealthCheck {
		// Проверка здоровья не доходит до выборки и публикации
		render.Status(r, http.StatusOK)
		render.JSON(w, r, envelope{Success: true, Data: healthData{Status: "healthy"}, TraceID: traceID})
		return
	}

	req := parseRequest(payload, source)

	// Часть бюджета оставляется на сборку и отдачу ответа
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline.Add(-h.deadlineMargin))
		defer cancel()
	}

	resp, err := h.orchestrator.Process(ctx, req)
	if err != nil {
		h.logger.ErrorWithContext(ctx, "Вызов завершился с ошибкой",
			interfaces.LogField{Key: "error", Value: err.Error()})
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, envelope{TraceID: traceID, Error: err.Error()})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, envelope{Success: true, Data: resp, TraceID: traceID})
}

// parseRequest разбирает тело вызова в запрос на обработку.
// Неразбираемое тело детерминированно превращается в пустой запрос,
// а не в ошибку вызова: сработает путь выборки последних товаров.
func parseRequest(payload []byte, source models.RequestSource) *models.ProcessRequest {
	var req models.ProcessRequest

	switch source {
	case models.SourceAPIGateway:
		// Запрос шлюза несет полезную нагрузку строкой во вложенном поле body
		var wrapper struct {
			Body string `json:"body"`
		}
		if err := json.Unmarshal(payload, &wrapper); err == nil && wrapper.Body != "" {
			_ = json.Unmarshal([]byte(wrapper.Body), &req)
		}
	case models.SourceDirect:
		_ = json.Unmarshal(payload, &req)
	default:
		// Планировщик и неопознанные вызовы обрабатываются как пустой запрос
	}

	return &req
}
