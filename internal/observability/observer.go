// Package observability carries workflow events to logs. Events are emitted
// on every workflow transition; the default observer discards them.
package observability

import (
	"context"
	"log/slog"
	"time"
)

// Level is the event severity.
type Level int

const (
	LevelVerbose Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelVerbose:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARN"
	default:
		return "ERROR"
	}
}

// SlogLevel maps the level to the slog level used for emission.
func (l Level) SlogLevel() slog.Level {
	switch l {
	case LevelVerbose:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// EventType identifies the kind of event, e.g. "workflow.generate.start".
type EventType string

const (
	EventImageSelected      EventType = "workflow.image.selected"
	EventImageRejected      EventType = "workflow.image.rejected"
	EventImageRemoved       EventType = "workflow.image.removed"
	EventGuardRejected      EventType = "workflow.guard.rejected"
	EventGenerateStart      EventType = "workflow.generate.start"
	EventGenerateSucceeded  EventType = "workflow.generate.succeeded"
	EventGenerateFailed     EventType = "workflow.generate.failed"
	EventReset              EventType = "workflow.reset"
	EventIntakeDecodeFailed EventType = "intake.decode.failed"
)

type Event struct {
	Type      EventType
	Level     Level
	Timestamp time.Time
	Source    string
	Data      map[string]any
}

// Observer receives events. Implementations must be safe for concurrent use.
type Observer interface {
	OnEvent(ctx context.Context, event Event)
}

// NoOpObserver discards all events.
type NoOpObserver struct{}

func (NoOpObserver) OnEvent(ctx context.Context, event Event) {}

// Emit fills in the timestamp and forwards to obs. A nil observer is a no-op.
func Emit(ctx context.Context, obs Observer, source string, typ EventType, level Level, data map[string]any) {
	if obs == nil {
		return
	}
	obs.OnEvent(ctx, Event{
		Type:      typ,
		Level:     level,
		Timestamp: time.Now(),
		Source:    source,
		Data:      data,
	})
}
