package shared

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of domain event.
type EventType string

// Presentation event types. The values are the names the front end listens for.
const (
	EventLevelUp             EventType = "levelUp"
	EventAchievementUnlocked EventType = "achievementUnlocked"
	EventDailyGoalCompleted  EventType = "dailyGoalCompleted"
	EventLessonCompleted     EventType = "lessonCompleted"
	EventProgressReset       EventType = "progressReset"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventID returns the unique identifier of this occurrence.
	EventID() string

	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event
	// (the storage key of the progress record).
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventID implements Event interface.
func (e BaseEvent) EventID() string {
	return e.ID
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event stamped with at.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		ID:          uuid.NewString(),
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// LevelUpEvent is emitted when derived level increases.
type LevelUpEvent struct {
	BaseEvent
	NewLevel int `json:"newLevel"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"newLevel": e.NewLevel,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(aggregateID string, newLevel int, at time.Time) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, aggregateID, at),
		NewLevel:  newLevel,
	}
}

// AchievementUnlockedEvent is emitted once per achievement, the first time its rule holds.
type AchievementUnlockedEvent struct {
	BaseEvent
	AchievementID string `json:"id"`
	RewardXP      int    `json:"rewardXP"`
}

// Payload implements Event interface.
func (e AchievementUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"id":       e.AchievementID,
		"rewardXP": e.RewardXP,
	}
}

// NewAchievementUnlockedEvent creates a new AchievementUnlockedEvent.
func NewAchievementUnlockedEvent(aggregateID, achievementID string, rewardXP int, at time.Time) AchievementUnlockedEvent {
	return AchievementUnlockedEvent{
		BaseEvent:     NewBaseEvent(EventAchievementUnlocked, aggregateID, at),
		AchievementID: achievementID,
		RewardXP:      rewardXP,
	}
}

// DailyGoalCompletedEvent is emitted when today's completions reach the target.
type DailyGoalCompletedEvent struct {
	BaseEvent
	Target   int `json:"target"`
	RewardXP int `json:"rewardXP"`
}

// Payload implements Event interface.
func (e DailyGoalCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"target":   e.Target,
		"rewardXP": e.RewardXP,
	}
}

// NewDailyGoalCompletedEvent creates a new DailyGoalCompletedEvent.
func NewDailyGoalCompletedEvent(aggregateID string, target, rewardXP int, at time.Time) DailyGoalCompletedEvent {
	return DailyGoalCompletedEvent{
		BaseEvent: NewBaseEvent(EventDailyGoalCompleted, aggregateID, at),
		Target:    target,
		RewardXP:  rewardXP,
	}
}

// LessonCompletedEvent is emitted on the first completion of a lesson.
type LessonCompletedEvent struct {
	BaseEvent
	LessonID  string `json:"lessonId"`
	Score     int    `json:"score"`
	XPAwarded int    `json:"xpAwarded"`
}

// Payload implements Event interface.
func (e LessonCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"lessonId":  e.LessonID,
		"score":     e.Score,
		"xpAwarded": e.XPAwarded,
	}
}

// NewLessonCompletedEvent creates a new LessonCompletedEvent.
func NewLessonCompletedEvent(aggregateID, lessonID string, score, xpAwarded int, at time.Time) LessonCompletedEvent {
	return LessonCompletedEvent{
		BaseEvent: NewBaseEvent(EventLessonCompleted, aggregateID, at),
		LessonID:  lessonID,
		Score:     score,
		XPAwarded: xpAwarded,
	}
}

// ProgressResetEvent is emitted after a confirmed reset.
type ProgressResetEvent struct {
	BaseEvent
}

// Payload implements Event interface.
func (e ProgressResetEvent) Payload() map[string]interface{} {
	return map[string]interface{}{}
}

// NewProgressResetEvent creates a new ProgressResetEvent.
func NewProgressResetEvent(aggregateID string, at time.Time) ProgressResetEvent {
	return ProgressResetEvent{
		BaseEvent: NewBaseEvent(EventProgressReset, aggregateID, at),
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// Envelope converts an event into its transport form.
func Envelope(event Event) (EventEnvelope, error) {
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return EventEnvelope{}, err
	}
	env := EventEnvelope{
		ID:          event.EventID(),
		Type:        event.EventType(),
		AggregateID: event.AggregateID(),
		Timestamp:   event.OccurredAt(),
		Version:     1,
		Payload:     payload,
	}
	if base, ok := baseOf(event); ok {
		env.Version = base.Version
		env.CorrelationID = base.CorrelationID
	}
	return env, nil
}

func baseOf(event Event) (BaseEvent, bool) {
	type based interface{ base() BaseEvent }
	if b, ok := event.(based); ok {
		return b.base(), true
	}
	return BaseEvent{}, false
}

func (e BaseEvent) base() BaseEvent { return e }

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
