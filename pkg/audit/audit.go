// Package audit records who changed what. Events are handed to a sink in
// the background; a failing or slow sink never fails the business operation
// that produced the event.
package audit

import (
	"context"
	"errors"
	"time"

	"intranet-portal/pkg/logging"

	"go.uber.org/zap"
)

// Event is a single audit record.
type Event struct {
	Type      string                 `json:"type"`
	Message   string                 `json:"message"`
	ActorID   int64                  `json:"actor_id"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Logger accepts audit events.
type Logger interface {
	Log(ctx context.Context, event Event) error
}

// Sink persists audit events.
type Sink interface {
	Write(ctx context.Context, event Event) error
	Name() string
}

// NoOp discards events.
type NoOp struct{}

// Log does nothing.
func (NoOp) Log(context.Context, Event) error { return nil }

// Errors returned by Writer.
var (
	// ErrQueueFull is returned when the event queue stayed full past MaxWaitTime
	ErrQueueFull = errors.New("audit: queue full, event dropped")

	// ErrWriterClosed is returned when logging to a closed writer
	ErrWriterClosed = errors.New("audit: writer is closed")

	// ErrFlushTimeout is returned when Flush() times out waiting for the queue to drain
	ErrFlushTimeout = errors.New("audit: flush timeout exceeded")
)

// LogSink writes events to a structured logger. It is the fallback sink
// when no database is configured.
type LogSink struct {
	logger *logging.Logger
}

// NewLogSink creates a sink writing to logger.
func NewLogSink(logger *logging.Logger) *LogSink {
	return &LogSink{logger: logger.Named("audit")}
}

// Write logs the event at info level.
func (s *LogSink) Write(ctx context.Context, event Event) error {
	s.logger.Info(event.Message,
		zap.String("event", event.Type),
		zap.Int64("actor_id", event.ActorID),
		zap.Any("metadata", event.Metadata),
		zap.Time("at", event.CreatedAt),
	)
	return nil
}

// Name returns "log".
func (s *LogSink) Name() string {
	return "log"
}
