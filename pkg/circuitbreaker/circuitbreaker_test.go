package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errDown = errors.New("down")

type manualClock struct{ now time.Time }

func (c *manualClock) Now() time.Time          { return c.now }
func (c *manualClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func failing(context.Context) error { return errDown }
func working(context.Context) error { return nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	clock := &manualClock{now: time.Unix(0, 0)}
	var transitions []string
	cb := New("store",
		WithFailureThreshold(2),
		WithCooldown(time.Second),
		WithClock(clock.Now),
		WithOnStateChange(func(_ string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		}),
	)

	assert.ErrorIs(t, cb.Execute(context.Background(), failing), errDown)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(context.Background(), failing), errDown)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
	assert.Equal(t, 1, cb.Counts().Rejected)

	clock.Advance(time.Second)
	assert.NoError(t, cb.Execute(context.Background(), working))
	assert.Equal(t, StateClosed, cb.State())

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := &manualClock{now: time.Unix(0, 0)}
	cb := New("store", WithFailureThreshold(1), WithCooldown(time.Second), WithClock(clock.Now))

	_ = cb.Execute(context.Background(), failing)
	clock.Advance(2 * time.Second)

	assert.ErrorIs(t, cb.Execute(context.Background(), failing), errDown)
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(context.Background(), working), ErrCircuitOpen)
}

func TestBreaker_IsFailureFilter(t *testing.T) {
	cb := New("store", WithFailureThreshold(1), WithIsFailure(func(err error) bool {
		return !errors.Is(err, errDown)
	}))

	_ = cb.Execute(context.Background(), failing)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 1, cb.Counts().TotalSuccesses)
}

func TestBreaker_Reset(t *testing.T) {
	cb := New("store", WithFailureThreshold(1))
	_ = cb.Execute(context.Background(), failing)
	assert.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, Counts{}, cb.Counts())
	assert.Equal(t, "store", cb.Name())
}
