package models

import (
	"strings"
)

// RequestSource определяет источник вызова сервиса
type RequestSource string

const (
	SourceHealthCheck RequestSource = "health_check"
	SourceEventBridge RequestSource = "event_bridge"
	SourceAPIGateway  RequestSource = "api_gateway"
	SourceDirect      RequestSource = "direct_invocation"
	SourceUnknown     RequestSource = "unknown"
)

// ProcessRequest представляет разобранный запрос на обработку SKU.
// SKU могут прийти явным списком, строкой с разделителями или обоими способами;
// пустой запрос означает обработку последних обновленных товаров.
type ProcessRequest struct {
	Skus    []string `json:"skus,omitempty"`
	SkuList string   `json:"sku_list,omitempty"` // разделители: запятая, точка с запятой, пробел
}

// ResolveSkus объединяет оба способа передачи SKU в один набор:
// без дубликатов (без учета регистра), с сохранением первого встреченного написания.
func (r *ProcessRequest) ResolveSkus() []string {
	seen := make(map[string]struct{})
	var result []string

	add := func(sku string) {
		sku = strings.TrimSpace(sku)
		if sku == "" {
			return
		}
		key := strings.ToLower(sku)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		result = append(result, sku)
	}

	for _, sku := range r.Skus {
		add(sku)
	}

	for _, sku := range strings.FieldsFunc(r.SkuList, func(c rune) bool {
		return c == ',' || c == ';' || c == ' ' || c == '\t' || c == '\n'
	}) {
		add(sku)
	}

	return result
}

// IsEmpty сообщает, не содержит ли запрос ни одного SKU
func (r *ProcessRequest) IsEmpty() bool {
	return len(r.ResolveSkus()) == 0
}

// SkippedItem описывает товар, исключенный из публикации из-за ошибок валидации
type SkippedItem struct {
	Sku               string   `json:"sku"`
	Reason            string   `json:"reason"`
	ValidationFailure string   `json:"validation_failure"` // краткая сводка по первой ошибке
	Errors            []string `json:"errors"`             // полный перечень нарушений
}

// ProcessingResponse представляет агрегированный результат одного вызова.
// Строится заново на каждый вызов и не сохраняется.
type ProcessingResponse struct {
	Success        bool          `json:"success"`
	ItemsProcessed int           `json:"items_processed"`
	ItemsPublished int           `json:"items_published"`
	ItemsFailed    int           `json:"items_failed"`
	NotFoundSkus   []string      `json:"not_found_skus"`
	SkippedItems   []SkippedItem `json:"skipped_items"`
	PublishedSkus  []string      `json:"published_skus"`
	// PublishError заполняется, если публикация не удалась после всех повторов;
	// уже записанные результаты аудита при этом сохраняются
	PublishError string `json:"publish_error,omitempty"`
}

// NewProcessingResponse создает ответ с инициализированными списками
func NewProcessingResponse() *ProcessingResponse {
	return &ProcessingResponse{
		NotFoundSkus:  []string{},
		SkippedItems:  []SkippedItem{},
		PublishedSkus: []string{},
	}
}
