package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/athebyme/gomarket-platform/itemsync-service/internal/utils"
	"github.com/athebyme/gomarket-platform/itemsync-service/pkg/interfaces"
)

// BreakerState состояние предохранителя
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

// String возвращает текстовое представление состояния
func (s BreakerState) String() string {
	switch s {
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// CircuitBreakerSettings параметры предохранителя.
// Доля отказов выводится из порога: FailureThreshold/10.
type CircuitBreakerSettings struct {
	FailureThreshold  int
	DurationOfBreak   time.Duration
	SamplingDuration  time.Duration
	MinimumThroughput int
}

type breakerSample struct {
	at     time.Time
	failed bool
}

// CircuitBreaker предохранитель вызовов очереди.
// Состояние живет столько же, сколько процесс, и разделяется всеми вызовами,
// поэтому все переходы выполняются под мьютексом.
// Гранулярность учета: одна попытка отправки пакета, не один товар.
type CircuitBreaker struct {
	mu sync.Mutex

	state         BreakerState
	window        []breakerSample
	openedAt      time.Time
	probeInFlight bool

	failureRatio      float64
	durationOfBreak   time.Duration
	samplingDuration  time.Duration
	minimumThroughput int

	clock interfaces.Clock
}

// NewCircuitBreaker создает предохранитель в замкнутом состоянии
func NewCircuitBreaker(settings CircuitBreakerSettings, clock interfaces.Clock) *CircuitBreaker {
	return &CircuitBreaker{
		state:             BreakerClosed,
		failureRatio:      float64(settings.FailureThreshold) / 10.0,
		durationOfBreak:   settings.DurationOfBreak,
		samplingDuration:  settings.SamplingDuration,
		minimumThroughput: settings.MinimumThroughput,
		clock:             clock,
	}
}

// Allow решает, можно ли выполнить очередной вызов.
// В разомкнутом состоянии до истечения паузы возвращает ErrCircuitOpen,
// после истечения пропускает ровно один пробный вызов.
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()

	switch b.state {
	case BreakerClosed:
		return nil
	case BreakerOpen:
		if now.Sub(b.openedAt) < b.durationOfBreak {
			return fmt.Errorf("%w: очередь недоступна, пауза до %s",
				utils.ErrCircuitOpen, b.openedAt.Add(b.durationOfBreak).Format(time.RFC3339))
		}
		b.state = BreakerHalfOpen
		b.probeInFlight = true
		return nil
	default: // BreakerHalfOpen
		if b.probeInFlight {
			return fmt.Errorf("%w: пробный вызов уже выполняется", utils.ErrCircuitOpen)
		}
		b.probeInFlight = true
		return nil
	}
}

// OnSuccess фиксирует успешный вызов
func (b *CircuitBreaker) OnSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerHalfOpen {
		// Успешная проба замыкает предохранитель и сбрасывает окно выборки
		b.state = BreakerClosed
		b.probeInFlight = false
		b.window = nil
		return
	}
	b.record(false)
}

// OnFailure фиксирует неуспешный вызов
func (b *CircuitBreaker) OnFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerHalfOpen {
		// Неуспешная проба размыкает предохранитель заново
		b.state = BreakerOpen
		b.openedAt = b.clock.Now()
		b.probeInFlight = false
		return
	}

	b.record(true)
	if b.shouldTrip() {
		b.state = BreakerOpen
		b.openedAt = b.clock.Now()
		b.window = nil
	}
}

// State возвращает текущее состояние (для метрик и тестов)
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// record добавляет исход в скользящее окно. Вызывается под мьютексом.
func (b *CircuitBreaker) record(failed bool) {
	now := b.clock.Now()
	b.window = append(b.window, breakerSample{at: now, failed: failed})
	b.prune(now)
}

// prune выбрасывает исходы старше окна выборки. Вызывается под мьютексом.
func (b *CircuitBreaker) prune(now time.Time) {
	cutoff := now.Add(-b.samplingDuration)
	kept := b.window[:0]
	for _, s := range b.window {
		if s.at.After(cutoff) {
			kept = append(kept, s)
		}
	}
	b.window = kept
}

// shouldTrip проверяет условие размыкания. Вызывается под мьютексом.
func (b *CircuitBreaker) shouldTrip() bool {
	total := len(b.window)
	if total < b.minimumThroughput {
		return false
	}
	failures := 0
	for _, s := range b.window {
		if s.failed {
			failures++
		}
	}
	return float64(failures)/float64(total) >= b.failureRatio
}
