// Package oplog records mutations to the external operation log. Writes are
// fire-and-forget: a failed write is logged and never surfaced to the caller.
package oplog

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Entry describes one recorded operation. TraceID correlates the row with
// downstream audit pipelines; it is generated when left empty.
type Entry struct {
	TraceID    string
	ActorID    int64
	Action     string
	ObjectType string
	ObjectID   string
	Details    map[string]any
}

// Recorder persists operation log entries.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

const recordTimeout = 5 * time.Second

// Log wraps a Recorder with best-effort, non-blocking semantics.
type Log struct {
	rec    Recorder
	logger *slog.Logger
}

// New returns a Log. A nil recorder disables recording entirely.
func New(rec Recorder, logger *slog.Logger) *Log {
	return &Log{rec: rec, logger: logger}
}

// Record writes the entry asynchronously, detached from the caller's deadline.
func (l *Log) Record(ctx context.Context, e Entry) {
	if l == nil || l.rec == nil {
		return
	}
	if e.TraceID == "" {
		e.TraceID = uuid.NewString()
	}
	go func() {
		recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
		defer cancel()
		if err := l.rec.Record(recCtx, e); err != nil && l.logger != nil {
			l.logger.Warn("operation log write failed",
				slog.String("action", e.Action),
				slog.String("object_type", e.ObjectType),
				slog.String("object_id", e.ObjectID),
				slog.Any("error", err),
			)
		}
	}()
}

func marshalDetails(details map[string]any) ([]byte, error) {
	if details == nil {
		details = map[string]any{}
	}
	return json.Marshal(details)
}
