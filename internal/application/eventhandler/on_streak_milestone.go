package eventhandler

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/levelup/internal/application/command"
	"github.com/alem-hub/levelup/internal/domain/shared"
	"github.com/alem-hub/levelup/pkg/logger"
)

// PointsAwarder credits points. *command.AddPointsHandler implements it.
type PointsAwarder interface {
	Handle(ctx context.Context, cmd command.AddPointsCommand) (*command.AddPointsResult, error)
}

// StreakMilestoneHandler awards bonus points when a streak reaches one of
// the configured lengths. Each milestone pays once per run: a broken
// streak has to climb back to it.
type StreakMilestoneHandler struct {
	awarder    PointsAwarder
	milestones map[int]int
	timeout    time.Duration
	logger     *logger.Logger
}

// NewStreakMilestoneHandler creates the handler. milestones maps a streak
// length to the bonus it pays; non-positive bonuses are ignored.
func NewStreakMilestoneHandler(awarder PointsAwarder, milestones map[int]int, log *logger.Logger) *StreakMilestoneHandler {
	if log == nil {
		log = logger.Default()
	}
	clean := make(map[int]int, len(milestones))
	for length, bonus := range milestones {
		if length > 0 && bonus > 0 {
			clean[length] = bonus
		}
	}
	return &StreakMilestoneHandler{
		awarder:    awarder,
		milestones: clean,
		timeout:    10 * time.Second,
		logger:     log.With(logger.Component("streak_milestone")),
	}
}

// Enabled reports whether any milestone is configured.
func (h *StreakMilestoneHandler) Enabled() bool {
	return len(h.milestones) > 0
}

// Handle implements shared.EventHandler for StreakStarted, StreakIncreased
// and StreakBroken events. A break restarts the run at count 1.
func (h *StreakMilestoneHandler) Handle(event shared.Event) error {
	var snap shared.StreakSnapshot
	switch e := event.(type) {
	case shared.StreakStartedEvent:
		snap = e.Streak
	case shared.StreakIncreasedEvent:
		snap = e.Streak
	case shared.StreakBrokenEvent:
		snap = e.Streak
	default:
		return nil
	}

	bonus, ok := h.milestones[snap.Count]
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	_, err := h.awarder.Handle(ctx, command.AddPointsCommand{
		UserID: string(snap.UserID),
		Amount: bonus,
		Reason: fmt.Sprintf("streak:%s:%d", snap.ActivityID, snap.Count),
	})
	if err != nil {
		h.logger.Error("milestone bonus failed",
			logger.UserID(string(snap.UserID)),
			logger.ActivityID(string(snap.ActivityID)),
			logger.StreakCount(snap.Count),
			logger.Err(err),
		)
		return err
	}

	h.logger.Info("milestone bonus awarded",
		logger.UserID(string(snap.UserID)),
		logger.ActivityID(string(snap.ActivityID)),
		logger.StreakCount(snap.Count),
		logger.Points(bonus),
	)
	return nil
}
