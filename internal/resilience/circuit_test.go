package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBreaker(threshold int, reset time.Duration) (*CircuitBreaker, *time.Time) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: threshold,
		ResetTimeout:     reset,
	})
	cb.nowFunc = func() time.Time { return now }
	return cb, &now
}

func tripBreaker(t *testing.T, cb *CircuitBreaker, failures int) {
	t.Helper()
	for i := 0; i < failures; i++ {
		_ = cb.Execute(context.Background(), func(context.Context) error {
			return eris.New("backend down")
		})
	}
}

func TestCircuitBreaker_ClosedPassesThrough(t *testing.T) {
	cb, _ := testBreaker(3, time.Minute)

	calls := 0
	err := cb.Execute(context.Background(), func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	cb, _ := testBreaker(3, time.Minute)

	tripBreaker(t, cb, 2)
	assert.Equal(t, CircuitClosed, cb.State())

	tripBreaker(t, cb, 1)
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestCircuitBreaker_OpenRejectsWithoutCalling(t *testing.T) {
	cb, _ := testBreaker(1, time.Minute)
	tripBreaker(t, cb, 1)

	calls := 0
	err := cb.Execute(context.Background(), func(context.Context) error {
		calls++
		return nil
	})

	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 0, calls)
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb, _ := testBreaker(3, time.Minute)

	tripBreaker(t, cb, 2)
	require.NoError(t, cb.Execute(context.Background(), func(context.Context) error { return nil }))

	// The counter restarted, so two more failures stay under the threshold.
	tripBreaker(t, cb, 2)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenAfterResetTimeout(t *testing.T) {
	cb, now := testBreaker(1, time.Minute)
	tripBreaker(t, cb, 1)
	require.Equal(t, CircuitOpen, cb.State())

	*now = now.Add(2 * time.Minute)
	assert.Equal(t, CircuitHalfOpen, cb.State())
}

func TestCircuitBreaker_ProbeSuccessCloses(t *testing.T) {
	cb, now := testBreaker(1, time.Minute)
	tripBreaker(t, cb, 1)
	*now = now.Add(2 * time.Minute)

	err := cb.Execute(context.Background(), func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_ProbeFailureReopens(t *testing.T) {
	cb, now := testBreaker(1, time.Minute)
	tripBreaker(t, cb, 1)
	*now = now.Add(2 * time.Minute)

	tripBreaker(t, cb, 1)
	assert.Equal(t, CircuitOpen, cb.State())

	// And the reset clock restarted, so the next call is rejected.
	err := cb.Execute(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_ShouldTripFilter(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
		ShouldTrip: func(err error) bool {
			return IsTransient(err)
		},
	})

	// A permanent error does not open the circuit.
	_ = cb.Execute(context.Background(), func(context.Context) error {
		return eris.New("bad request")
	})
	assert.Equal(t, CircuitClosed, cb.State())

	_ = cb.Execute(context.Background(), func(context.Context) error {
		return NewTransientError(eris.New("overloaded"), 529)
	})
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	var transitions [][2]CircuitState
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
		OnStateChange: func(from, to CircuitState) {
			transitions = append(transitions, [2]CircuitState{from, to})
		},
	})

	tripBreaker(t, cb, 1)
	cb.Reset()

	require.Len(t, transitions, 2)
	assert.Equal(t, [2]CircuitState{CircuitClosed, CircuitOpen}, transitions[0])
	assert.Equal(t, [2]CircuitState{CircuitOpen, CircuitClosed}, transitions[1])
}

func TestExecuteVal_PreservesValue(t *testing.T) {
	cb, _ := testBreaker(3, time.Minute)

	val, err := ExecuteVal(context.Background(), cb, func(context.Context) (string, error) {
		return "priced", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "priced", val)
}

func TestServiceBreakers_ReusesPerBackend(t *testing.T) {
	sb := NewServiceBreakers(DefaultCircuitBreakerConfig())

	a := sb.Get("anthropic")
	b := sb.Get("perplexity")
	assert.NotSame(t, a, b)
	assert.Same(t, a, sb.Get("anthropic"))
}

func TestServiceBreakers_States(t *testing.T) {
	sb := NewServiceBreakers(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute})

	_ = sb.Get("anthropic").Execute(context.Background(), func(context.Context) error {
		return eris.New("down")
	})
	_ = sb.Get("perplexity")

	states := sb.States()
	assert.Equal(t, CircuitOpen, states["anthropic"])
	assert.Equal(t, CircuitClosed, states["perplexity"])
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(9).String())
}
