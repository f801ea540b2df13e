// Package events adapts the engine's lifecycle event bus onto the
// structured logger, the same role internal/infrastructure/events played
// for the teacher's DomainEvent publisher before the engine rewrite
// replaced the event model with internal/engine.EventBus.
package events

import (
	"context"

	"github.com/orbyt/workflow-engine/internal/engine"
	"github.com/orbyt/workflow-engine/internal/ports"
)

// AttachLogger subscribes every canonical lifecycle event (spec 4.10) on bus
// to a structured log line, so a caller gets an execution trail for free
// without writing its own subscriber. A panic inside one of these
// subscribers is recovered by the EventBus and logged at error level
// through log.
func AttachLogger(bus *engine.EventBus, log ports.Logger) {
	if bus == nil || log == nil {
		return
	}
	for _, name := range []string{
		engine.EventEngineStarted,
		engine.EventEngineStopped,
		engine.EventWorkflowStarted,
		engine.EventWorkflowComplete,
		engine.EventWorkflowFailed,
		engine.EventStepStarted,
		engine.EventStepCompleted,
		engine.EventStepFailed,
	} {
		eventName := name
		bus.Subscribe(eventName, func(evt engine.Event) {
			logEvent(log, eventName, evt)
		}, func(err error) {
			log.Error(context.Background(), "event subscriber failed", "event", eventName, "error", err)
		})
	}
}

func logEvent(log ports.Logger, eventName string, evt engine.Event) {
	ctx := context.Background()
	fields := []interface{}{"event", eventName, "execution_id", evt.ExecutionID, "at", evt.At}
	for k, v := range evt.Payload {
		fields = append(fields, k, v)
	}

	switch eventName {
	case engine.EventWorkflowFailed, engine.EventStepFailed:
		log.Error(ctx, eventName, fields...)
	default:
		log.Info(ctx, eventName, fields...)
	}
}
