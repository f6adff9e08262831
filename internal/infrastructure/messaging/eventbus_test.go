package messaging

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MirasRuslanJR/PyShark/internal/domain/shared"
)

var at = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

type observed struct {
	eventType shared.EventType
	origin    string
	err       error
}

type recordingObserver struct {
	mu        sync.Mutex
	published []observed
	handled   []observed
}

func (o *recordingObserver) ObserveEventPublished(t shared.EventType, origin string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.published = append(o.published, observed{eventType: t, origin: origin})
}

func (o *recordingObserver) ObserveHandler(t shared.EventType, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.handled = append(o.handled, observed{eventType: t, err: err})
}

func (o *recordingObserver) origins() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.published))
	for _, p := range o.published {
		out = append(out, p.origin)
	}
	return out
}

func TestInMemoryEventBus_DeliversInOrder(t *testing.T) {
	obs := &recordingObserver{}
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{Observer: obs})
	defer bus.Close()

	var typed, all []shared.EventType
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, func(e shared.Event) error {
		typed = append(typed, e.EventType())
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		all = append(all, e.EventType())
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("k", 2, at)))
	require.NoError(t, bus.Publish(shared.NewAchievementUnlockedEvent("k", "level_5", 50, at)))

	assert.Equal(t, []shared.EventType{shared.EventLevelUp}, typed)
	assert.Equal(t, []shared.EventType{shared.EventLevelUp, shared.EventAchievementUnlocked}, all)
	assert.Equal(t, []string{OriginLocal, OriginLocal}, obs.origins())
	assert.Len(t, obs.handled, 3)
}

func TestInMemoryEventBus_HandlerFailuresDoNotFailPublish(t *testing.T) {
	obs := &recordingObserver{}
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{Observer: obs})
	defer bus.Close()

	reached := false
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { return errors.New("boom") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { panic("bad handler") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		reached = true
		return nil
	}))

	assert.NoError(t, bus.Publish(shared.NewProgressResetEvent("k", at)))
	assert.True(t, reached)

	require.Len(t, obs.handled, 3)
	assert.EqualError(t, obs.handled[0].err, "boom")
	assert.ErrorIs(t, obs.handled[1].err, ErrHandlerPanic)
	assert.NoError(t, obs.handled[2].err)
}

func TestInMemoryEventBus_Closed(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(shared.NewProgressResetEvent("k", at)), ErrEventBusClosed)
	assert.ErrorIs(t, bus.SubscribeAll(func(shared.Event) error { return nil }), ErrEventBusClosed)
	assert.Error(t, bus.Publish(nil))
	assert.Error(t, bus.Subscribe(shared.EventLevelUp, nil))
}

func TestOrigin(t *testing.T) {
	assert.Equal(t, OriginLocal, Origin(shared.NewLevelUpEvent("k", 2, at)))
	assert.Equal(t, OriginRemote, Origin(&remoteEvent{}))
}
