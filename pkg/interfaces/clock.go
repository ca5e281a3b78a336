package interfaces

import (
	"context"
	"time"
)

// Clock определяет интерфейс источника времени.
// Внедряется в сервисы, чтобы отметки времени и задержки были детерминированы в тестах.
type Clock interface {
	// Now возвращает текущее время
	Now() time.Time

	// Sleep приостанавливает выполнение на указанную длительность
	// или до отмены контекста, в зависимости от того, что наступит раньше
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock реализация Clock на основе системного времени
type SystemClock struct{}

// Now реализация интерфейса Clock
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// Sleep реализация интерфейса Clock
func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
