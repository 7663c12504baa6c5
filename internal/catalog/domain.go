package catalog

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sentra-authz/sentra/internal/shared"
)

// Category classifies what kind of object a permission governs.
type Category string

const (
	CategoryDocument Category = "document"
	CategoryRecord   Category = "record"
	CategoryTask     Category = "task"
	CategoryApproval Category = "approval"
	CategorySystem   Category = "system"
)

// Scope describes the organisational breadth of a permission.
type Scope string

const (
	ScopeDepartment      Scope = "department"
	ScopeCrossDepartment Scope = "cross_department"
	ScopeGlobal          Scope = "global"
)

// Status is the lifecycle state of a catalog entry.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Permission is one authorizable action in the catalog.
type Permission struct {
	ID          int64     `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Category    Category  `json:"category"`
	Scope       Scope     `json:"scope"`
	Status      Status    `json:"status"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

var codePattern = regexp.MustCompile(`^[a-z_]+:[a-z_]+:[a-z_]+$`)

// ValidateCode checks the action:scope:resource code format.
func ValidateCode(code string) error {
	if !codePattern.MatchString(code) {
		return fmt.Errorf("%w: permission code %q must match action:scope:resource", shared.ErrValidation, code)
	}
	return nil
}

// SplitCode breaks a permission code into its action, scope and resource segments.
func SplitCode(code string) (action, scope, resource string, err error) {
	if err := ValidateCode(code); err != nil {
		return "", "", "", err
	}
	parts := strings.SplitN(code, ":", 3)
	return parts[0], parts[1], parts[2], nil
}

// ParseCategory converts a raw string into a closed Category value.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryDocument, CategoryRecord, CategoryTask, CategoryApproval, CategorySystem:
		return Category(s), nil
	}
	return "", fmt.Errorf("%w: unknown category %q", shared.ErrValidation, s)
}

// ParseScope converts a raw string into a closed Scope value.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeDepartment, ScopeCrossDepartment, ScopeGlobal:
		return Scope(s), nil
	}
	return "", fmt.Errorf("%w: unknown scope %q", shared.ErrValidation, s)
}

// ParseStatus converts a raw string into a closed Status value.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusActive, StatusInactive:
		return Status(s), nil
	}
	return "", fmt.Errorf("%w: unknown status %q", shared.ErrValidation, s)
}

// ScopeGroup collects active permissions sharing one scope.
type ScopeGroup struct {
	Scope       Scope        `json:"scope"`
	Permissions []Permission `json:"permissions"`
}

// CategoryGroup groups a category's permissions by scope, for inspection and
// bulk-assignment views.
type CategoryGroup struct {
	Category Category     `json:"category"`
	Scopes   []ScopeGroup `json:"scopes"`
}
