package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sentra-authz/sentra/internal/platform/db"
	"github.com/sentra-authz/sentra/internal/shared"
)

// Filter narrows List results.
type Filter struct {
	Category *Category
	Scope    *Scope
	Status   *Status
	Limit    int
	Offset   int
}

// Repository defines persistence for catalog entries.
type Repository interface {
	Create(ctx context.Context, p Permission) (Permission, error)
	List(ctx context.Context, f Filter) ([]Permission, int, error)
	ListActive(ctx context.Context) ([]Permission, error)
	ListActiveByCodes(ctx context.Context, codes []string) ([]Permission, error)
	Get(ctx context.Context, id int64) (Permission, error)
	GetByCode(ctx context.Context, code string) (Permission, error)
	Update(ctx context.Context, id int64, updates map[string]any) (Permission, error)
	SetStatus(ctx context.Context, id int64, status Status) error
	Delete(ctx context.Context, id int64) error
	OverrideReferences(ctx context.Context, id int64) (int64, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const permissionColumns = "id, code, name, category, scope, status, description, created_at, updated_at"

func (r *repository) Create(ctx context.Context, p Permission) (Permission, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO permissions (code, name, category, scope, status, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+permissionColumns,
		p.Code, p.Name, p.Category, p.Scope, p.Status, p.Description,
	)
	created, err := scanPermission(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Permission{}, fmt.Errorf("%w: permission code %q already exists", shared.ErrConflict, p.Code)
		}
		return Permission{}, err
	}
	return created, nil
}

func (r *repository) List(ctx context.Context, f Filter) ([]Permission, int, error) {
	where := ""
	args := []any{}
	add := func(cond string, v any) {
		args = append(args, v)
		cond = fmt.Sprintf(cond, len(args))
		if where == "" {
			where = "WHERE " + cond
		} else {
			where += " AND " + cond
		}
	}
	if f.Category != nil {
		add("category = $%d", *f.Category)
	}
	if f.Scope != nil {
		add("scope = $%d", *f.Scope)
	}
	if f.Status != nil {
		add("status = $%d", *f.Status)
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM permissions "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, f.Offset)
	query := fmt.Sprintf(
		"SELECT %s FROM permissions %s ORDER BY category, scope, code LIMIT $%d OFFSET $%d",
		permissionColumns, where, len(args)-1, len(args),
	)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	perms, err := collectPermissions(rows)
	if err != nil {
		return nil, 0, err
	}
	return perms, total, nil
}

func (r *repository) ListActive(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+permissionColumns+" FROM permissions WHERE status = 'active' ORDER BY category, scope, code")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPermissions(rows)
}

func (r *repository) ListActiveByCodes(ctx context.Context, codes []string) ([]Permission, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx,
		"SELECT "+permissionColumns+" FROM permissions WHERE status = 'active' AND code = ANY($1)", codes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPermissions(rows)
}

func (r *repository) Get(ctx context.Context, id int64) (Permission, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+permissionColumns+" FROM permissions WHERE id = $1", id)
	p, err := scanPermission(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Permission{}, fmt.Errorf("%w: permission %d", shared.ErrNotFound, id)
	}
	return p, err
}

func (r *repository) GetByCode(ctx context.Context, code string) (Permission, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+permissionColumns+" FROM permissions WHERE code = $1", code)
	p, err := scanPermission(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Permission{}, fmt.Errorf("%w: permission code %q", shared.ErrNotFound, code)
	}
	return p, err
}

func (r *repository) Update(ctx context.Context, id int64, updates map[string]any) (Permission, error) {
	set := "updated_at = NOW()"
	args := []any{}
	for _, col := range []string{"name", "description", "category", "scope"} {
		if v, ok := updates[col]; ok {
			args = append(args, v)
			set += fmt.Sprintf(", %s = $%d", col, len(args))
		}
	}
	args = append(args, id)
	row := r.pool.QueryRow(ctx, fmt.Sprintf(
		"UPDATE permissions SET %s WHERE id = $%d RETURNING %s", set, len(args), permissionColumns,
	), args...)
	p, err := scanPermission(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Permission{}, fmt.Errorf("%w: permission %d", shared.ErrNotFound, id)
	}
	return p, err
}

func (r *repository) SetStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.pool.Exec(ctx,
		"UPDATE permissions SET status = $1, updated_at = NOW() WHERE id = $2", status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: permission %d", shared.ErrNotFound, id)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM permissions WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: permission %d", shared.ErrNotFound, id)
	}
	return nil
}

func (r *repository) OverrideReferences(ctx context.Context, id int64) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM user_permission_overrides WHERE permission_id = $1", id).Scan(&count)
	return count, err
}

func scanPermission(row pgx.Row) (Permission, error) {
	var p Permission
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Category, &p.Scope, &p.Status, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func collectPermissions(rows pgx.Rows) ([]Permission, error) {
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.Category, &p.Scope, &p.Status, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}
