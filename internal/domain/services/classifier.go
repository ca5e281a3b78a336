package services

import (
	"encoding/json"
	"strings"

	"github.com/athebyme/gomarket-platform/itemsync-service/internal/domain/models"
)

// RequestClassifier определяет источник вызова по сырому телу запроса.
// Чистая функция от входа: не имеет побочных эффектов и никогда не возвращает ошибку,
// неразбираемое тело классифицируется, а не отвергается.
type RequestClassifier struct {
	schedulerSourcePrefix string
	schedulerHeader       string
}

// NewRequestClassifier создает классификатор вызовов
func NewRequestClassifier(schedulerSourcePrefix, schedulerHeader string) *RequestClassifier {
	return &RequestClassifier{
		schedulerSourcePrefix: schedulerSourcePrefix,
		schedulerHeader:       schedulerHeader,
	}
}

// SchedulerHeader возвращает имя служебного заголовка планировщика
func (c *RequestClassifier) SchedulerHeader() string {
	return c.schedulerHeader
}

// Classify определяет источник вызова. Правила применяются в порядке приоритета:
// проверка здоровья, планировщик, шлюз, прямой вызов.
func (c *RequestClassifier) Classify(payload []byte, headers map[string]string) models.RequestSource {
	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "" || trimmed == "{}" || trimmed == "null" {
		return models.SourceHealthCheck
	}

	if c.hasSchedulerHeader(headers) {
		return models.SourceEventBridge
	}

	var body map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &body); err != nil {
		// Тело есть, но структуру разобрать нельзя
		return models.SourceUnknown
	}

	if c.isSchedulerEvent(body) {
		return models.SourceEventBridge
	}

	if isGatewayRequest(body) {
		return models.SourceAPIGateway
	}

	return models.SourceDirect
}

func (c *RequestClassifier) hasSchedulerHeader(headers map[string]string) bool {
	if c.schedulerHeader == "" {
		return false
	}
	for k, v := range headers {
		if strings.EqualFold(k, c.schedulerHeader) && v != "" {
			return true
		}
	}
	return false
}

func (c *RequestClassifier) isSchedulerEvent(body map[string]interface{}) bool {
	if source, ok := body["source"].(string); ok &&
		c.schedulerSourcePrefix != "" &&
		strings.HasPrefix(source, c.schedulerSourcePrefix) {
		return true
	}
	if _, ok := body["detail-type"]; ok {
		return true
	}
	return false
}

func isGatewayRequest(body map[string]interface{}) bool {
	reqCtx, ok := body["requestContext"].(map[string]interface{})
	if !ok {
		return false
	}
	requestID, _ := reqCtx["requestId"].(string)
	stage, _ := reqCtx["stage"].(string)
	return requestID != "" && stage != ""
}
