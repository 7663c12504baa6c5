package oplog

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRecorder writes entries into the operation_logs table.
type PGRecorder struct {
	pool *pgxpool.Pool
}

// NewPGRecorder returns a PostgreSQL backed Recorder.
func NewPGRecorder(pool *pgxpool.Pool) *PGRecorder {
	return &PGRecorder{pool: pool}
}

// Record persists the entry.
func (r *PGRecorder) Record(ctx context.Context, e Entry) error {
	details, err := marshalDetails(e.Details)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO operation_logs (trace_id, actor_id, action, object_type, object_id, details, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		e.TraceID, e.ActorID, e.Action, e.ObjectType, e.ObjectID, details,
	)
	return err
}
