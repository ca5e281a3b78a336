package messaging

// Типы событий, публикуемых сервисом
const (
	ItemPublishedEvent = "item_published"
)

// Служебные заголовки публикуемых сообщений
const (
	HeaderEventType = "event_type"
	HeaderTraceID   = "trace_id"
)
