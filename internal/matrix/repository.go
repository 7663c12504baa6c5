package matrix

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sentra-authz/sentra/internal/platform/db"
	"github.com/sentra-authz/sentra/internal/shared"
)

// Repository defines persistence for roles and role-permission grants.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	GetRole(ctx context.Context, id int64) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	CreateRole(ctx context.Context, code, name string, description *string) (Role, error)
	UpdateRole(ctx context.Context, id int64, name string, description *string) (Role, error)
	DeleteRole(ctx context.Context, id int64) error
	ActivePermissionIDs(ctx context.Context, ids []int64) (map[int64]struct{}, error)
	DeleteGrants(ctx context.Context, roleID int64) error
	InsertGrants(ctx context.Context, roleID int64, permissionIDs []int64, actorID int64) error
	DeleteGrant(ctx context.Context, roleID, permissionID int64) (bool, error)
	AnnotatedPermissions(ctx context.Context, roleID int64) ([]AnnotatedPermission, error)
	RoleGrantCodes(ctx context.Context, roleCode string) ([]string, error)
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

const roleColumns = "id, code, name, description, created_at, updated_at"

func (r *repository) GetRole(ctx context.Context, id int64) (Role, error) {
	row := r.db.QueryRow(ctx, "SELECT "+roleColumns+" FROM roles WHERE id = $1", id)
	role, err := scanRole(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, fmt.Errorf("%w: role %d", shared.ErrNotFound, id)
	}
	return role, err
}

func (r *repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.db.Query(ctx, "SELECT "+roleColumns+" FROM roles ORDER BY code")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Code, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *repository) CreateRole(ctx context.Context, code, name string, description *string) (Role, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO roles (code, name, description) VALUES ($1, $2, $3)
		RETURNING `+roleColumns, code, name, description)
	role, err := scanRole(row)
	if db.IsUniqueViolation(err) {
		return Role{}, fmt.Errorf("%w: role code %q already exists", shared.ErrConflict, code)
	}
	return role, err
}

func (r *repository) UpdateRole(ctx context.Context, id int64, name string, description *string) (Role, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE roles SET name = $1, description = $2, updated_at = NOW() WHERE id = $3
		RETURNING `+roleColumns, name, description, id)
	role, err := scanRole(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, fmt.Errorf("%w: role %d", shared.ErrNotFound, id)
	}
	return role, err
}

func (r *repository) DeleteRole(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM roles WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: role %d", shared.ErrNotFound, id)
	}
	return nil
}

// ActivePermissionIDs returns the subset of ids that exist and are active.
func (r *repository) ActivePermissionIDs(ctx context.Context, ids []int64) (map[int64]struct{}, error) {
	active := make(map[int64]struct{}, len(ids))
	if len(ids) == 0 {
		return active, nil
	}
	rows, err := r.db.Query(ctx,
		"SELECT id FROM permissions WHERE status = 'active' AND id = ANY($1)", ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		active[id] = struct{}{}
	}
	return active, rows.Err()
}

func (r *repository) DeleteGrants(ctx context.Context, roleID int64) error {
	_, err := r.db.Exec(ctx, "DELETE FROM role_permissions WHERE role_id = $1", roleID)
	return err
}

func (r *repository) InsertGrants(ctx context.Context, roleID int64, permissionIDs []int64, actorID int64) error {
	if len(permissionIDs) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_id, granted_by)
		SELECT $1, pid, $2 FROM unnest($3::bigint[]) AS pid
		ON CONFLICT (role_id, permission_id) DO NOTHING`,
		roleID, actorID, permissionIDs)
	return err
}

func (r *repository) DeleteGrant(ctx context.Context, roleID, permissionID int64) (bool, error) {
	tag, err := r.db.Exec(ctx,
		"DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2", roleID, permissionID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// AnnotatedPermissions returns every active catalog entry with an assigned
// flag reflecting the role's grant rows.
func (r *repository) AnnotatedPermissions(ctx context.Context, roleID int64) ([]AnnotatedPermission, error) {
	rows, err := r.db.Query(ctx, `
		SELECT p.id, p.code, p.name, p.category, p.scope, p.status, p.description,
		       p.created_at, p.updated_at, (rp.permission_id IS NOT NULL) AS assigned
		FROM permissions p
		LEFT JOIN role_permissions rp ON rp.permission_id = p.id AND rp.role_id = $1
		WHERE p.status = 'active'
		ORDER BY p.category, p.scope, p.code`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AnnotatedPermission
	for rows.Next() {
		var ap AnnotatedPermission
		if err := rows.Scan(&ap.ID, &ap.Code, &ap.Name, &ap.Category, &ap.Scope, &ap.Status,
			&ap.Description, &ap.CreatedAt, &ap.UpdatedAt, &ap.Assigned); err != nil {
			return nil, err
		}
		out = append(out, ap)
	}
	return out, rows.Err()
}

// RoleGrantCodes returns the permission codes granted to a role. Inactive
// entries are included: the resolver re-checks catalog status on every call.
func (r *repository) RoleGrantCodes(ctx context.Context, roleCode string) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT p.code
		FROM role_permissions rp
		JOIN roles ro ON ro.id = rp.role_id
		JOIN permissions p ON p.id = rp.permission_id
		WHERE ro.code = $1
		ORDER BY p.code`, roleCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Code, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	return role, err
}
