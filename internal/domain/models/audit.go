package models

import (
	"encoding/json"
	"time"
)

// Статусы валидации в журнале аудита
const (
	AuditStatusValidated        = "validated"
	AuditStatusValidationFailed = "validation_failed"
)

// AuditRecord представляет долговременную запись журнала обработки одного SKU.
// Авторитетна только последняя запись по SKU; более старые записи исторические.
// Флаг DeliveredToQueue меняется только false -> true, записи не удаляются.
type AuditRecord struct {
	ID               string          `json:"id"`
	Sku              string          `json:"sku"`
	RawData          json.RawMessage `json:"raw_data"`
	Status           string          `json:"status"`
	CanonicalData    json.RawMessage `json:"canonical_data,omitempty"` // nil при неуспешной валидации
	ErrorText        string          `json:"error_text,omitempty"`
	DeliveredToQueue bool            `json:"delivered_to_queue"`
	TraceID          string          `json:"trace_id,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}
