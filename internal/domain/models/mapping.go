package models

// MappingOutcome представляет результат маппинга и валидации одной записи.
// Ровно один результат на SKU за вызов: либо каноническая модель с перечнем
// пропущенных необязательных полей, либо список ошибок валидации без модели.
type MappingOutcome struct {
	Sku           string       `json:"sku"`
	Item          *UnifiedItem `json:"item,omitempty"` // nil, если валидация не прошла
	SkippedFields []string     `json:"skipped_fields,omitempty"`
	Errors        []string     `json:"errors,omitempty"`
}

// Success сообщает, завершился ли маппинг канонической моделью
func (o *MappingOutcome) Success() bool {
	return o.Item != nil && len(o.Errors) == 0
}

// PrimaryFailure возвращает первую ошибку валидации для краткой сводки
func (o *MappingOutcome) PrimaryFailure() string {
	if len(o.Errors) == 0 {
		return ""
	}
	return o.Errors[0]
}
