package matrix

import (
	"time"

	"github.com/sentra-authz/sentra/internal/catalog"
)

// Role is a named grouping of permissions.
type Role struct {
	ID          int64     `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// reservedRoleCodes cannot be created, renamed or deleted through this engine.
var reservedRoleCodes = map[string]struct{}{
	"admin":   {},
	"leader":  {},
	"member":  {},
	"auditor": {},
}

// IsReservedRole reports whether the role code is system-reserved.
func IsReservedRole(code string) bool {
	_, ok := reservedRoleCodes[code]
	return ok
}

// AnnotatedPermission is one active catalog entry annotated with whether a
// grant row exists for the role under inspection.
type AnnotatedPermission struct {
	catalog.Permission
	Assigned bool `json:"assigned"`
}
