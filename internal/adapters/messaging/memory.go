package messaging

import (
	"context"
	"fmt"
	"sync"

	"github.com/athebyme/gomarket-platform/itemsync-service/internal/utils"
	"github.com/athebyme/gomarket-platform/itemsync-service/pkg/interfaces"
)

// SentBatch один принятый очередью пакет (для проверок в тестах)
type SentBatch struct {
	Topic    string
	Messages []interfaces.QueueMessage
}

// MemoryQueue реализация QueuePort в памяти процесса.
// Выбирается драйвером queue.driver=memory; используется в тестах и локально.
// Поведение отказов программируется по ключу сообщения.
type MemoryQueue struct {
	mu      sync.Mutex
	batches []SentBatch
	calls   int

	// FailBatch имитирует полную недоступность брокера
	FailBatch bool

	// failKeys задает число отказов по ключу сообщения:
	// первые N попыток отправки этого ключа завершаются временной ошибкой
	failKeys map[string]int

	// permanentKeys ключи, отправка которых всегда завершается постоянной ошибкой
	permanentKeys map[string]struct{}

	closed bool
}

// NewMemoryQueue создает пустую очередь в памяти
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		failKeys:      make(map[string]int),
		permanentKeys: make(map[string]struct{}),
	}
}

// FailKeyTimes первые times попыток отправки ключа завершатся временной ошибкой
func (q *MemoryQueue) FailKeyTimes(key string, times int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failKeys[key] = times
}

// FailKeyAlways отправка ключа всегда завершается постоянной ошибкой
func (q *MemoryQueue) FailKeyAlways(key string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.permanentKeys[key] = struct{}{}
}

// SendBatch реализация QueuePort
func (q *MemoryQueue) SendBatch(ctx context.Context, topic string, messages []interfaces.QueueMessage) ([]interfaces.SendResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrTransient, err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, fmt.Errorf("queue is closed")
	}
	q.calls++
	if q.FailBatch {
		return nil, fmt.Errorf("%w: broker is unreachable", utils.ErrTransient)
	}

	results := make([]interfaces.SendResult, len(messages))
	accepted := SentBatch{Topic: topic}
	for i, msg := range messages {
		if _, ok := q.permanentKeys[msg.Key]; ok {
			results[i] = interfaces.SendResult{
				Index:     i,
				Err:       fmt.Errorf("message rejected: key %s", msg.Key),
				Retryable: false,
			}
			continue
		}
		if left, ok := q.failKeys[msg.Key]; ok && left > 0 {
			q.failKeys[msg.Key] = left - 1
			results[i] = interfaces.SendResult{
				Index:     i,
				Err:       fmt.Errorf("%w: delivery failed: key %s", utils.ErrTransient, msg.Key),
				Retryable: true,
			}
			continue
		}
		results[i] = interfaces.SendResult{Index: i}
		accepted.Messages = append(accepted.Messages, msg)
	}

	if len(accepted.Messages) > 0 {
		q.batches = append(q.batches, accepted)
	}
	return results, nil
}

// Batches возвращает копию принятых пакетов (для тестов)
func (q *MemoryQueue) Batches() []SentBatch {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]SentBatch, len(q.batches))
	copy(out, q.batches)
	return out
}

// CallCount число вызовов SendBatch (для тестов)
func (q *MemoryQueue) CallCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.calls
}

// Delivered возвращает все принятые сообщения всех пакетов (для тестов)
func (q *MemoryQueue) Delivered() []interfaces.QueueMessage {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []interfaces.QueueMessage
	for _, b := range q.batches {
		out = append(out, b.Messages...)
	}
	return out
}

// Close реализация QueuePort
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}
