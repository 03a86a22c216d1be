package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCollector struct {
	states   []float64
	failures int
}

func (r *recordingCollector) SetCircuitBreakerState(service, component string, state float64) {
	r.states = append(r.states, state)
}

func (r *recordingCollector) IncrementCircuitBreakerFailures(service, component string) {
	r.failures++
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(9).String())
	assert.Equal(t, 2.0, StateOpen.Value())
}

func TestFailFastOpensOnFirstFailure(t *testing.T) {
	cb := New("test", FailFastConfig())
	boom := errors.New("boom")

	var transitions [][2]State
	cb.OnStateChange(func(from, to State) {
		transitions = append(transitions, [2]State{from, to})
	})

	require.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
	assert.Empty(t, transitions)

	err := cb.Call(func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.True(t, cb.IsOpen())
	assert.Equal(t, [][2]State{{StateClosed, StateOpen}}, transitions)

	ran := false
	err = cb.Call(func() error { ran = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, ran)
	assert.Len(t, transitions, 1)
}

func TestHalfOpenAfterTimeout(t *testing.T) {
	cb := New("test", Config{FailureThreshold: 2, Timeout: 10 * time.Millisecond, MaxRequests: 1})
	fail := func() error { return errors.New("x") }

	_ = cb.Call(fail)
	assert.Equal(t, StateClosed, cb.State())
	_ = cb.Call(fail)
	assert.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestNewFailFastReportsStateChanges(t *testing.T) {
	rec := &recordingCollector{}
	cb := NewFailFast("geogrid", rec)

	_ = cb.Call(func() error { return errors.New("down") })

	assert.Equal(t, []float64{0, 2}, rec.states)
	assert.Equal(t, 1, rec.failures)
}

func TestNewFailFastWithoutCollector(t *testing.T) {
	cb := NewFailFast("geogrid", nil)
	assert.NotPanics(t, func() { _ = cb.Call(func() error { return errors.New("down") }) })
	assert.True(t, cb.IsOpen())
}
