// Package command contains write operations (CQRS - Commands).
//
// Every handler follows the same shape: validate the command, read the
// clock once, take the per-key lock, run a single store transaction, then
// emit events after the commit. A failing event sink is logged and never
// undoes the state change.
package command

import (
	"context"
	"errors"

	"github.com/alem-hub/levelup/internal/domain/shared"
	"github.com/alem-hub/levelup/pkg/keylock"
	"github.com/alem-hub/levelup/pkg/logger"
	"github.com/alem-hub/levelup/pkg/timeutil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/alem-hub/levelup/internal/application/command")

// Deps are the collaborators shared by all handlers. Handlers that must
// serialize against each other need the same Locker instance.
type Deps struct {
	Locker keylock.Locker
	Clock  timeutil.Clock
	Events shared.EventSink
	Logger *logger.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Locker == nil {
		d.Locker = keylock.New()
	}
	if d.Clock == nil {
		d.Clock = timeutil.NewSystemClock(nil)
	}
	if d.Events == nil {
		d.Events = shared.NopSink{}
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	return d
}

func (d Deps) lock(ctx context.Context, key string) (func(), error) {
	unlock, err := d.Locker.Lock(ctx, key)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, shared.WrapError("lock", "Acquire", shared.ErrTimeout, "could not acquire "+key, err)
		}
		return nil, shared.WrapError("lock", "Acquire", shared.ErrConcurrentModification, "could not acquire "+key, err)
	}
	return unlock, nil
}

func (d Deps) emit(ctx context.Context, events []shared.Event) {
	log := d.Logger.WithSpan(ctx)
	for _, ev := range events {
		if err := d.Events.Emit(ctx, ev); err != nil {
			log.Warn("event delivery failed",
				logger.EventType(string(ev.EventType())),
				logger.String("aggregate_id", ev.AggregateID()),
				logger.Err(err),
			)
		}
	}
}

func streakLockKey(userID shared.UserID, activityID shared.ActivityID) string {
	return "streak:" + string(userID) + ":" + string(activityID)
}

func experienceLockKey(userID shared.UserID) string {
	return "experience:" + string(userID)
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
