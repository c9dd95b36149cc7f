package circuit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerDefaults(t *testing.T) {
	b := New("ratelimit")
	assert.Equal(t, "ratelimit", b.Name())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "closed", b.State().String())

	for range 4 {
		useFallback, _ := b.RecordFailure()
		require.False(t, useFallback)
	}
	useFallback, change := b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)
	assert.Equal(t, "open", b.State().String())
}

func TestBreakerLifecycle(t *testing.T) {
	b := New("sessions", WithFailureThreshold(2), WithSuccessThreshold(2))

	t.Run("a success between failures resets the streak", func(t *testing.T) {
		b.RecordFailure()
		trustPrimary, change := b.RecordSuccess()
		assert.True(t, trustPrimary)
		assert.Equal(t, StateChange{}, change)

		useFallback, _ := b.RecordFailure()
		assert.False(t, useFallback)
		assert.False(t, b.IsOpen())
	})

	t.Run("consecutive failures open it", func(t *testing.T) {
		useFallback, change := b.RecordFailure()
		assert.True(t, useFallback)
		assert.True(t, change.Opened)

		useFallback, change = b.RecordFailure()
		assert.True(t, useFallback)
		assert.False(t, change.Opened, "already open")
	})

	t.Run("a failed probe restarts the success count", func(t *testing.T) {
		trustPrimary, _ := b.RecordSuccess()
		assert.False(t, trustPrimary)
		b.RecordFailure()
		trustPrimary, _ = b.RecordSuccess()
		assert.False(t, trustPrimary)
		assert.True(t, b.IsOpen())
	})

	t.Run("enough successes close it", func(t *testing.T) {
		trustPrimary, change := b.RecordSuccess()
		assert.True(t, trustPrimary)
		assert.True(t, change.Closed)
		assert.False(t, b.IsOpen())
	})
}

func TestBreakerReset(t *testing.T) {
	b := New("kv", WithFailureThreshold(1))
	b.RecordFailure()
	require.True(t, b.IsOpen())

	b.Reset()
	assert.False(t, b.IsOpen())
	useFallback, change := b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)
}

func TestBreakerIgnoresInvalidThresholds(t *testing.T) {
	b := New("kv", WithFailureThreshold(0), WithSuccessThreshold(-1))
	for range 4 {
		b.RecordFailure()
	}
	assert.False(t, b.IsOpen())
}

func TestBreakerConcurrentUse(t *testing.T) {
	b := New("kv", WithFailureThreshold(50))
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.RecordFailure()
		}()
	}
	wg.Wait()
	assert.True(t, b.IsOpen())
}
