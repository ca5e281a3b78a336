package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athebyme/gomarket-platform/itemsync-service/internal/utils"
)

func newTestBreaker(clock *fakeClock) *CircuitBreaker {
	return NewCircuitBreaker(CircuitBreakerSettings{
		FailureThreshold:  5, // доля отказов 0.5
		DurationOfBreak:   30 * time.Second,
		SamplingDuration:  60 * time.Second,
		MinimumThroughput: 3,
	}, clock)
}

func TestBreaker_StaysClosedBelowThroughput(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(clock)

	// Двух отказов мало для минимальной пропускной способности
	for i := 0; i < 2; i++ {
		require.NoError(t, b.Allow())
		b.OnFailure()
	}

	assert.Equal(t, BreakerClosed, b.State())
	assert.NoError(t, b.Allow())
}

func TestBreaker_OpensOnFailures(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Allow())
		b.OnFailure()
	}

	assert.Equal(t, BreakerOpen, b.State())

	err := b.Allow()
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrCircuitOpen))
}

func TestBreaker_StaysClosedBelowFailureRatio(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(clock)

	// Доля отказов 2 из 5 ниже порога 0.5
	outcomes := []bool{true, true, false, false, false}
	for _, failed := range outcomes {
		require.NoError(t, b.Allow())
		if failed {
			b.OnFailure()
		} else {
			b.OnSuccess()
		}
	}

	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_SingleProbeAfterBreak(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Allow())
		b.OnFailure()
	}
	require.Equal(t, BreakerOpen, b.State())

	clock.Advance(31 * time.Second)

	// Пропускается ровно одна проба
	require.NoError(t, b.Allow())
	assert.Equal(t, BreakerHalfOpen, b.State())

	err := b.Allow()
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrCircuitOpen))
}

func TestBreaker_ProbeSuccessCloses(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Allow())
		b.OnFailure()
	}

	clock.Advance(31 * time.Second)
	require.NoError(t, b.Allow())
	b.OnSuccess()

	assert.Equal(t, BreakerClosed, b.State())
	assert.NoError(t, b.Allow())
}

func TestBreaker_ProbeFailureReopens(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Allow())
		b.OnFailure()
	}

	clock.Advance(31 * time.Second)
	require.NoError(t, b.Allow())
	b.OnFailure()

	assert.Equal(t, BreakerOpen, b.State())

	// Пауза отсчитывается заново с момента неуспешной пробы
	clock.Advance(29 * time.Second)
	err := b.Allow()
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrCircuitOpen))

	clock.Advance(2 * time.Second)
	assert.NoError(t, b.Allow())
}

func TestBreaker_OldSamplesExpire(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(clock)

	// Два старых отказа выпадают из окна выборки
	for i := 0; i < 2; i++ {
		require.NoError(t, b.Allow())
		b.OnFailure()
	}

	clock.Advance(61 * time.Second)

	require.NoError(t, b.Allow())
	b.OnFailure()

	// В окне один отказ, порог пропускной способности не достигнут
	assert.Equal(t, BreakerClosed, b.State())
}
