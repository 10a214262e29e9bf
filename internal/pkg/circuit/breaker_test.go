package circuit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_OpensAndRecovers(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cb := NewCircuitBreaker("relay", 2, 10*time.Second).WithClock(func() time.Time { return now })
	boom := errors.New("502")

	require.ErrorIs(t, cb.Do(func() error { return boom }, nil), boom)
	assert.Equal(t, StateClosed, cb.State())
	require.ErrorIs(t, cb.Do(func() error { return boom }, nil), boom)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Do(func() error { called = true; return nil }, nil)
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)

	now = now.Add(10 * time.Second)
	require.NoError(t, cb.Do(func() error { return nil }, nil))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cb := NewCircuitBreaker("relay", 1, time.Second).WithClock(func() time.Time { return now })

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	now = now.Add(2 * time.Second)
	assert.True(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.State())
	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestCircuitBreaker_UncountedErrorsKeepClosed(t *testing.T) {
	cb := NewCircuitBreaker("relay", 1, time.Minute)
	clientErr := errors.New("400")
	for i := 0; i < 3; i++ {
		err := cb.Do(func() error { return clientErr }, func(error) bool { return false })
		require.ErrorIs(t, err, clientErr)
	}
	assert.Equal(t, StateClosed, cb.State())
}
