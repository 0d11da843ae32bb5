package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/steveyegge/vitality/internal/types"
)

func TestCircuitBreakerTransitions(t *testing.T) {
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(BreakerConfig{Enabled: true, FailureThreshold: 3, SuccessThreshold: 2, OpenTimeout: time.Minute}, nil)
	cb.now = func() time.Time { return clock }

	assert.Equal(t, CircuitClosed, cb.State())
	assert.NoError(t, cb.Allow())

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess() // resets the count while closed
	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, CircuitClosed, cb.State())
	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)

	clock = clock.Add(2 * time.Minute)
	assert.NoError(t, cb.Allow())
	assert.Equal(t, CircuitHalfOpen, cb.State())

	// A failure while probing reopens
	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())

	clock = clock.Add(2 * time.Minute)
	assert.NoError(t, cb.Allow())
	cb.RecordSuccess()
	assert.Equal(t, CircuitHalfOpen, cb.State())
	cb.RecordSuccess()
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitStateString(t *testing.T) {
	assert.Equal(t, "CLOSED", CircuitClosed.String())
	assert.Equal(t, "OPEN", CircuitOpen.String())
	assert.Equal(t, "HALF_OPEN", CircuitHalfOpen.String())
	assert.Equal(t, "UNKNOWN", CircuitState(42).String())
}

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit permanent", Permanent(errors.New("bad address")), true},
		{"wrapped permanent", fmt.Errorf("send: %w", Permanent(errors.New("bad address"))), true},
		{"explicit transient", Transient(errors.New("503")), false},
		{"transient wrapping validation", Transient(types.NewValidationError("x", "y")), false},
		{"validation", types.NewValidationError("email", "missing"), true},
		{"not found", types.NewNotFoundError("subject", "s1"), true},
		{"deadline", context.DeadlineExceeded, false},
		{"net error", &net.DNSError{Err: "timeout", IsTimeout: true}, false},
		{"unknown", errors.New("something odd"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPermanent(tt.err))
		})
	}

	assert.Nil(t, Permanent(nil))
	assert.Nil(t, Transient(nil))
	inner := errors.New("inner")
	assert.ErrorIs(t, Permanent(inner), inner)
}
