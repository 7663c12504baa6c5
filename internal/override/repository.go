package override

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sentra-authz/sentra/internal/platform/db"
	"github.com/sentra-authz/sentra/internal/shared"
)

// Repository defines persistence for user permission overrides.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Insert(ctx context.Context, o Override) (Override, error)
	Get(ctx context.Context, id int64) (Override, error)
	Delete(ctx context.Context, id int64) (bool, error)
	ListActive(ctx context.Context, userID int64, now time.Time) ([]Override, error)
	ListActiveGrants(ctx context.Context, userID int64, now time.Time) ([]Grant, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

// WithTx runs fn against a repository bound to a single transaction.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const overrideColumns = "id, user_id, permission_id, granted_by, reason, resource_type, resource_id, expires_at, granted_at"

func (r *repository) Insert(ctx context.Context, o Override) (Override, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO user_permission_overrides
			(user_id, permission_id, granted_by, reason, resource_type, resource_id, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+overrideColumns,
		o.UserID, o.PermissionID, o.GrantedBy, o.Reason, o.ResourceType, o.ResourceID, o.ExpiresAt)
	return scanOverride(row)
}

func (r *repository) Get(ctx context.Context, id int64) (Override, error) {
	row := r.db.QueryRow(ctx,
		"SELECT "+overrideColumns+" FROM user_permission_overrides WHERE id = $1", id)
	o, err := scanOverride(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Override{}, fmt.Errorf("%w: override %d", shared.ErrNotFound, id)
	}
	return o, err
}

func (r *repository) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, "DELETE FROM user_permission_overrides WHERE id = $1", id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListActive returns overrides that are live at the given instant. Expired
// rows stay in storage until swept but are never returned here.
func (r *repository) ListActive(ctx context.Context, userID int64, now time.Time) ([]Override, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+overrideColumns+`
		FROM user_permission_overrides
		WHERE user_id = $1 AND (expires_at IS NULL OR expires_at > $2)
		ORDER BY granted_at DESC`, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Override
	for rows.Next() {
		var o Override
		if err := rows.Scan(&o.ID, &o.UserID, &o.PermissionID, &o.GrantedBy, &o.Reason,
			&o.ResourceType, &o.ResourceID, &o.ExpiresAt, &o.GrantedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ListActiveGrants returns the resolver view of the user's live overrides.
func (r *repository) ListActiveGrants(ctx context.Context, userID int64, now time.Time) ([]Grant, error) {
	rows, err := r.db.Query(ctx, `
		SELECT o.id, o.permission_id, p.code, o.resource_type, o.resource_id, o.expires_at
		FROM user_permission_overrides o
		JOIN permissions p ON p.id = o.permission_id
		WHERE o.user_id = $1 AND (o.expires_at IS NULL OR o.expires_at > $2)`, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Grant
	for rows.Next() {
		var g Grant
		if err := rows.Scan(&g.OverrideID, &g.PermissionID, &g.Code, &g.ResourceType, &g.ResourceID, &g.ExpiresAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// DeleteExpiredBefore removes rows whose expiry passed before the cutoff.
func (r *repository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		"DELETE FROM user_permission_overrides WHERE expires_at IS NOT NULL AND expires_at < $1", cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanOverride(row pgx.Row) (Override, error) {
	var o Override
	err := row.Scan(&o.ID, &o.UserID, &o.PermissionID, &o.GrantedBy, &o.Reason,
		&o.ResourceType, &o.ResourceID, &o.ExpiresAt, &o.GrantedAt)
	return o, err
}
