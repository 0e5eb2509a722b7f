package shared

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of domain event.
type EventType string

const (
	EventStreakStarted   EventType = "streak.started"
	EventStreakIncreased EventType = "streak.increased"
	EventStreakBroken    EventType = "streak.broken"
	EventStreakFrozen    EventType = "streak.frozen"
	EventStreakUnfroze   EventType = "streak.unfroze"

	EventPointsIncreased EventType = "experience.points_increased"
	EventPointsDecreased EventType = "experience.points_decreased"
	EventUserLevelledUp  EventType = "experience.level_up"
)

// Event is the base interface for all domain events.
type Event interface {
	EventID() string
	EventType() EventType
	OccurredAt() time.Time
	// AggregateID is the user id for experience events and
	// "user:activity" for streak events.
	AggregateID() string
	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
	Version     int       `json:"version"`
}

func (e BaseEvent) EventID() string       { return e.ID }
func (e BaseEvent) EventType() EventType  { return e.Type }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }
func (e BaseEvent) AggregateID() string   { return e.AggregateId }

// NewBaseEvent creates a base event stamped with the operation's clock time.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		ID:          uuid.NewString(),
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
		Version:     1,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Streak Events
// ═══════════════════════════════════════════════════════════════════════════

// StreakSnapshot is the streak state carried by streak events.
type StreakSnapshot struct {
	UserID         UserID     `json:"user_id"`
	ActivityID     ActivityID `json:"activity_id"`
	Count          int        `json:"count"`
	StartedAt      time.Time  `json:"started_at"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	FrozenUntil    *time.Time `json:"frozen_until,omitempty"`
}

func (s StreakSnapshot) aggregateID() string {
	return string(s.UserID) + ":" + string(s.ActivityID)
}

func (s StreakSnapshot) payload() map[string]interface{} {
	p := map[string]interface{}{
		"user_id":          string(s.UserID),
		"activity_id":      string(s.ActivityID),
		"count":            s.Count,
		"started_at":       s.StartedAt.Format("2006-01-02"),
		"last_activity_at": s.LastActivityAt.Format("2006-01-02"),
	}
	if s.FrozenUntil != nil {
		p["frozen_until"] = s.FrozenUntil.Format("2006-01-02")
	}
	return p
}

// StreakStartedEvent is emitted when the first activity creates a streak.
type StreakStartedEvent struct {
	BaseEvent
	Streak StreakSnapshot `json:"streak"`
}

func (e StreakStartedEvent) Payload() map[string]interface{} {
	return e.Streak.payload()
}

func NewStreakStartedEvent(s StreakSnapshot, at time.Time) StreakStartedEvent {
	return StreakStartedEvent{
		BaseEvent: NewBaseEvent(EventStreakStarted, s.aggregateID(), at),
		Streak:    s,
	}
}

// StreakIncreasedEvent is emitted when a consecutive day extends a streak.
type StreakIncreasedEvent struct {
	BaseEvent
	Streak     StreakSnapshot `json:"streak"`
	FreezeUsed bool           `json:"freeze_used"`
}

func (e StreakIncreasedEvent) Payload() map[string]interface{} {
	p := e.Streak.payload()
	p["freeze_used"] = e.FreezeUsed
	return p
}

func NewStreakIncreasedEvent(s StreakSnapshot, freezeUsed bool, at time.Time) StreakIncreasedEvent {
	return StreakIncreasedEvent{
		BaseEvent:  NewBaseEvent(EventStreakIncreased, s.aggregateID(), at),
		Streak:     s,
		FreezeUsed: freezeUsed,
	}
}

// StreakBrokenEvent is emitted when a missed day restarts a streak.
type StreakBrokenEvent struct {
	BaseEvent
	Streak        StreakSnapshot `json:"streak"`
	PreviousCount int            `json:"previous_count"`
	MissedDays    int            `json:"missed_days"`
}

func (e StreakBrokenEvent) Payload() map[string]interface{} {
	p := e.Streak.payload()
	p["previous_count"] = e.PreviousCount
	p["missed_days"] = e.MissedDays
	return p
}

func NewStreakBrokenEvent(s StreakSnapshot, previousCount, missedDays int, at time.Time) StreakBrokenEvent {
	return StreakBrokenEvent{
		BaseEvent:     NewBaseEvent(EventStreakBroken, s.aggregateID(), at),
		Streak:        s,
		PreviousCount: previousCount,
		MissedDays:    missedDays,
	}
}

// StreakFrozenEvent is emitted when a streak is protected for some days.
type StreakFrozenEvent struct {
	BaseEvent
	Streak      StreakSnapshot `json:"streak"`
	Days        int            `json:"days"`
	FrozenUntil time.Time      `json:"frozen_until"`
}

func (e StreakFrozenEvent) Payload() map[string]interface{} {
	p := e.Streak.payload()
	p["days"] = e.Days
	p["frozen_until"] = e.FrozenUntil.Format("2006-01-02")
	return p
}

func NewStreakFrozenEvent(s StreakSnapshot, days int, until, at time.Time) StreakFrozenEvent {
	return StreakFrozenEvent{
		BaseEvent:   NewBaseEvent(EventStreakFrozen, s.aggregateID(), at),
		Streak:      s,
		Days:        days,
		FrozenUntil: until,
	}
}

// StreakUnfrozeEvent is emitted when a freeze is lifted explicitly.
type StreakUnfrozeEvent struct {
	BaseEvent
	Streak StreakSnapshot `json:"streak"`
}

func (e StreakUnfrozeEvent) Payload() map[string]interface{} {
	return e.Streak.payload()
}

func NewStreakUnfrozeEvent(s StreakSnapshot, at time.Time) StreakUnfrozeEvent {
	return StreakUnfrozeEvent{
		BaseEvent: NewBaseEvent(EventStreakUnfroze, s.aggregateID(), at),
		Streak:    s,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Experience Events
// ═══════════════════════════════════════════════════════════════════════════

// PointsIncreasedEvent is emitted when points are credited to an existing
// record. Amount is what was actually credited after multipliers and caps.
type PointsIncreasedEvent struct {
	BaseEvent
	UserID   UserID `json:"user_id"`
	Amount   int    `json:"amount"`
	NewTotal int    `json:"new_total"`
	Reason   string `json:"reason,omitempty"`
}

func (e PointsIncreasedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   string(e.UserID),
		"amount":    e.Amount,
		"new_total": e.NewTotal,
		"reason":    e.Reason,
	}
}

func NewPointsIncreasedEvent(userID UserID, amount, newTotal int, reason string, at time.Time) PointsIncreasedEvent {
	return PointsIncreasedEvent{
		BaseEvent: NewBaseEvent(EventPointsIncreased, string(userID), at),
		UserID:    userID,
		Amount:    amount,
		NewTotal:  newTotal,
		Reason:    reason,
	}
}

// PointsDecreasedEvent is emitted when points are deducted.
type PointsDecreasedEvent struct {
	BaseEvent
	UserID   UserID `json:"user_id"`
	Amount   int    `json:"amount"`
	NewTotal int    `json:"new_total"`
	Reason   string `json:"reason,omitempty"`
}

func (e PointsDecreasedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   string(e.UserID),
		"amount":    e.Amount,
		"new_total": e.NewTotal,
		"reason":    e.Reason,
	}
}

func NewPointsDecreasedEvent(userID UserID, amount, newTotal int, reason string, at time.Time) PointsDecreasedEvent {
	return PointsDecreasedEvent{
		BaseEvent: NewBaseEvent(EventPointsDecreased, string(userID), at),
		UserID:    userID,
		Amount:    amount,
		NewTotal:  newTotal,
		Reason:    reason,
	}
}

// UserLevelledUpEvent is emitted once per level climbed.
type UserLevelledUpEvent struct {
	BaseEvent
	UserID    UserID `json:"user_id"`
	FromLevel int    `json:"from_level"`
	ToLevel   int    `json:"to_level"`
	Points    int    `json:"points"`
}

func (e UserLevelledUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":    string(e.UserID),
		"from_level": e.FromLevel,
		"to_level":   e.ToLevel,
		"points":     e.Points,
	}
}

func NewUserLevelledUpEvent(userID UserID, from, to, points int, at time.Time) UserLevelledUpEvent {
	return UserLevelledUpEvent{
		BaseEvent: NewBaseEvent(EventUserLevelledUp, string(userID), at),
		UserID:    userID,
		FromLevel: from,
		ToLevel:   to,
		Points:    points,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport.
type EventEnvelope struct {
	ID          string          `json:"id"`
	Type        EventType       `json:"type"`
	AggregateID string          `json:"aggregate_id"`
	Timestamp   time.Time       `json:"timestamp"`
	Source      string          `json:"source,omitempty"`
	Payload     json.RawMessage `json:"payload"`
}

// NewEventEnvelope serializes event's payload into an envelope.
func NewEventEnvelope(event Event, source string) (EventEnvelope, error) {
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return EventEnvelope{}, err
	}
	return EventEnvelope{
		ID:          event.EventID(),
		Type:        event.EventType(),
		AggregateID: event.AggregateID(),
		Timestamp:   event.OccurredAt(),
		Source:      source,
		Payload:     payload,
	}, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Ports
// ═══════════════════════════════════════════════════════════════════════════

// EventSink receives events after the producing transaction committed.
// A failing sink never rolls back the state change.
type EventSink interface {
	Emit(ctx context.Context, event Event) error
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ctx context.Context, event Event) error

func (f EventSinkFunc) Emit(ctx context.Context, event Event) error { return f(ctx, event) }

// NopSink drops every event.
type NopSink struct{}

func (NopSink) Emit(context.Context, Event) error { return nil }

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	Subscribe(eventType EventType, handler EventHandler) error
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
