package contentunit

import (
	"context"
	"log/slog"
)

// NoopEventSink is a no-operation implementation of EventSink
// Useful for production when you don't need event handling or for testing
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

// UnitCreated does nothing and returns nil
func (n *NoopEventSink) UnitCreated(ctx context.Context, unit *Unit) error {
	return nil
}

// UnitUpdated does nothing and returns nil
func (n *NoopEventSink) UnitUpdated(ctx context.Context, unit *Unit) error {
	return nil
}

// UnitDeleted does nothing and returns nil
func (n *NoopEventSink) UnitDeleted(ctx context.Context, unitID string) error {
	return nil
}

// LoggingEventSink writes every lifecycle event to a structured logger
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates an event sink that logs at info level
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

func (l *LoggingEventSink) UnitCreated(ctx context.Context, unit *Unit) error {
	l.logger.InfoContext(ctx, "unit created", "unit_id", unit.ID, "asset_id", unit.AssetRef, "status", unit.Status)
	return nil
}

func (l *LoggingEventSink) UnitUpdated(ctx context.Context, unit *Unit) error {
	l.logger.InfoContext(ctx, "unit updated", "unit_id", unit.ID, "asset_id", unit.AssetRef, "status", unit.Status)
	return nil
}

func (l *LoggingEventSink) UnitDeleted(ctx context.Context, unitID string) error {
	l.logger.InfoContext(ctx, "unit deleted", "unit_id", unitID)
	return nil
}

type noopRecorder struct{}

func (noopRecorder) Workflow(op, outcome string)    {}
func (noopRecorder) Compensation(op, result string) {}
