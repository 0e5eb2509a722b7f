// Package eventhandler contains the reactive side of the system: handlers
// subscribed to the event bus that run after a command committed.
package eventhandler

import (
	"github.com/alem-hub/levelup/internal/domain/shared"
	"github.com/alem-hub/levelup/pkg/logger"
)

// EventLogHandler writes one structured line per event. It is subscribed
// to every event type and never fails.
type EventLogHandler struct {
	logger *logger.Logger
}

// NewEventLogHandler creates a new EventLogHandler.
func NewEventLogHandler(log *logger.Logger) *EventLogHandler {
	if log == nil {
		log = logger.Default()
	}
	return &EventLogHandler{logger: log.With(logger.Component("event_log"))}
}

// Handle implements shared.EventHandler.
func (h *EventLogHandler) Handle(event shared.Event) error {
	fields := []logger.Field{
		logger.EventType(string(event.EventType())),
		logger.String("event_id", event.EventID()),
		logger.String("aggregate_id", event.AggregateID()),
		logger.Time("occurred_at", event.OccurredAt()),
	}
	switch e := event.(type) {
	case shared.StreakStartedEvent:
		fields = append(fields, logger.StreakCount(e.Streak.Count))
	case shared.StreakIncreasedEvent:
		fields = append(fields, logger.StreakCount(e.Streak.Count), logger.Bool("freeze_used", e.FreezeUsed))
	case shared.StreakBrokenEvent:
		fields = append(fields, logger.Int("previous_count", e.PreviousCount), logger.Int("missed_days", e.MissedDays))
	case shared.PointsIncreasedEvent:
		fields = append(fields, logger.Points(e.Amount), logger.Int("new_total", e.NewTotal))
	case shared.PointsDecreasedEvent:
		fields = append(fields, logger.Points(-e.Amount), logger.Int("new_total", e.NewTotal))
	case shared.UserLevelledUpEvent:
		fields = append(fields, logger.Int("from_level", e.FromLevel), logger.LevelNumber(e.ToLevel))
	}
	h.logger.Info("domain event", fields...)
	return nil
}
