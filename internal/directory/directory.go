// Package directory resolves users through the external user directory. The
// engine references users only by id; it never owns them.
package directory

import "context"

// User is the directory projection the engine needs for a decision.
type User struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	DepartmentID int64  `json:"department_id"`
	RoleCode     string `json:"role_code"`
}

// Directory is the consumed user directory interface.
type Directory interface {
	// GetUser returns the user's department and role. shared.ErrNotFound if absent.
	GetUser(ctx context.Context, userID int64) (User, error)
	// UserIDsByRole lists the ids of every user currently holding the role.
	UserIDsByRole(ctx context.Context, roleCode string) ([]int64, error)
}
