package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sentra-authz/sentra/internal/shared"
)

// PGDirectory reads users from the shared PostgreSQL user directory.
type PGDirectory struct {
	pool *pgxpool.Pool
}

// NewPGDirectory constructs a PostgreSQL backed Directory.
func NewPGDirectory(pool *pgxpool.Pool) *PGDirectory {
	return &PGDirectory{pool: pool}
}

// GetUser returns the user by id.
func (d *PGDirectory) GetUser(ctx context.Context, userID int64) (User, error) {
	var u User
	err := d.pool.QueryRow(ctx,
		"SELECT id, name, department_id, role_code FROM users WHERE id = $1", userID,
	).Scan(&u.ID, &u.Name, &u.DepartmentID, &u.RoleCode)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, fmt.Errorf("%w: user %d", shared.ErrNotFound, userID)
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// UserIDsByRole lists ids of users holding the role.
func (d *PGDirectory) UserIDsByRole(ctx context.Context, roleCode string) ([]int64, error) {
	rows, err := d.pool.Query(ctx, "SELECT id FROM users WHERE role_code = $1", roleCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
