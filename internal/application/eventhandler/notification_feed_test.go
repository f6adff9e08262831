package eventhandler

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MirasRuslanJR/PyShark/internal/domain/shared"
	"github.com/MirasRuslanJR/PyShark/internal/infrastructure/messaging"
)

var at = time.Date(2026, 10, 14, 18, 0, 0, 0, time.UTC)

func levels(envs []shared.EventEnvelope) []int {
	out := make([]int, 0, len(envs))
	for _, e := range envs {
		var p struct {
			NewLevel int `json:"newLevel"`
		}
		_ = json.Unmarshal(e.Payload, &p)
		out = append(out, p.NewLevel)
	}
	return out
}

func TestNotificationFeed_KeepsMostRecent(t *testing.T) {
	feed := NewNotificationFeed(3, nil)
	for lvl := 2; lvl <= 6; lvl++ {
		require.NoError(t, feed.Handle(shared.NewLevelUpEvent("k", lvl, at)))
	}

	assert.Equal(t, 3, feed.Len())
	assert.Equal(t, []int{4, 5, 6}, levels(feed.Recent(0)))
	assert.Equal(t, []int{5, 6}, levels(feed.Recent(2)))
	assert.Equal(t, []int{4, 5, 6}, levels(feed.Recent(10)))
}

func TestNotificationFeed_PartiallyFilled(t *testing.T) {
	feed := NewNotificationFeed(5, nil)
	assert.Empty(t, feed.Recent(0))

	require.NoError(t, feed.Handle(shared.NewLevelUpEvent("k", 2, at)))
	require.NoError(t, feed.Handle(shared.NewLevelUpEvent("k", 3, at)))

	assert.Equal(t, []int{2, 3}, levels(feed.Recent(0)))
	assert.Equal(t, []int{3}, levels(feed.Recent(1)))
}

func TestNotificationFeed_SubscribeClearsOnReset(t *testing.T) {
	bus := messaging.NewInMemoryEventBus(messaging.DefaultInMemoryEventBusConfig())
	defer bus.Close()

	feed := NewNotificationFeed(10, nil)
	require.NoError(t, feed.Subscribe(bus))

	require.NoError(t, bus.Publish(shared.NewAchievementUnlockedEvent("k", "first_lesson", 0, at)))
	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("k", 2, at)))
	assert.Equal(t, 2, feed.Len())

	require.NoError(t, bus.Publish(shared.NewProgressResetEvent("k", at)))
	recent := feed.Recent(0)
	require.Len(t, recent, 1)
	assert.Equal(t, shared.EventProgressReset, recent[0].Type)
}
