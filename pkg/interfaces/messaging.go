package interfaces

import (
	"context"
)

// QueueMessage представляет одно сообщение для отправки в очередь
type QueueMessage struct {
	Key     string            `json:"key"`     // Ключ сообщения (SKU)
	Value   []byte            `json:"value"`   // Содержимое сообщения
	Headers map[string]string `json:"headers"` // Заголовки сообщения
}

// SendResult представляет результат доставки одного сообщения из пакета.
// Очередь может принять пакет частично: часть записей доставлена, часть нет.
type SendResult struct {
	Index     int   // Позиция сообщения в отправленном пакете
	Err       error // nil, если сообщение доставлено
	Retryable bool  // Ошибка временная, запись можно отправить повторно
}

// Failed сообщает, завершилась ли доставка записи ошибкой
func (r SendResult) Failed() bool {
	return r.Err != nil
}

// QueuePort определяет интерфейс отправки сообщений в очередь.
// Один вызов SendBatch соответствует одному сетевому обращению к очереди
// и возвращает по одному результату на каждое сообщение пакета.
type QueuePort interface {
	// SendBatch отправляет пакет сообщений в указанную тему.
	// Ошибка возвращается только если обращение к очереди не состоялось целиком;
	// частичные отказы описываются результатами по записям.
	SendBatch(ctx context.Context, topic string, messages []QueueMessage) ([]SendResult, error)

	// Close закрывает соединение с системой обмена сообщениями
	Close() error
}
