package matrix

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/sentra-authz/sentra/internal/oplog"
	"github.com/sentra-authz/sentra/internal/shared"
)

// Invalidator drops cached grant snapshots after matrix mutations.
type Invalidator interface {
	InvalidateRole(ctx context.Context, roleCode string)
}

// Service orchestrates role and role-permission matrix operations.
type Service struct {
	repo        Repository
	invalidator Invalidator
	audit       *oplog.Log
	logger      *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo Repository, invalidator Invalidator, audit *oplog.Log, logger *slog.Logger) *Service {
	return &Service{repo: repo, invalidator: invalidator, audit: audit, logger: logger}
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// CreateRole registers a non-reserved role.
func (s *Service) CreateRole(ctx context.Context, actorID int64, code, name string, description *string) (Role, error) {
	if code == "" || name == "" {
		return Role{}, fmt.Errorf("%w: role code and name required", shared.ErrValidation)
	}
	if IsReservedRole(code) {
		return Role{}, fmt.Errorf("%w: role code %q is reserved", shared.ErrForbidden, code)
	}
	role, err := s.repo.CreateRole(ctx, code, name, description)
	if err != nil {
		return Role{}, err
	}
	s.record(ctx, actorID, "role.create", role.ID, map[string]any{"code": role.Code})
	return role, nil
}

// UpdateRole renames a non-reserved role.
func (s *Service) UpdateRole(ctx context.Context, actorID, id int64, name string, description *string) (Role, error) {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if IsReservedRole(role.Code) {
		return Role{}, fmt.Errorf("%w: role %q is reserved", shared.ErrForbidden, role.Code)
	}
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name required", shared.ErrValidation)
	}
	updated, err := s.repo.UpdateRole(ctx, id, name, description)
	if err != nil {
		return Role{}, err
	}
	s.record(ctx, actorID, "role.update", id, nil)
	return updated, nil
}

// DeleteRole removes a non-reserved role; its grant rows cascade.
func (s *Service) DeleteRole(ctx context.Context, actorID, id int64) error {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if IsReservedRole(role.Code) {
		return fmt.Errorf("%w: role %q is reserved", shared.ErrForbidden, role.Code)
	}
	if err := s.repo.DeleteRole(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, role.Code)
	s.record(ctx, actorID, "role.delete", id, map[string]any{"code": role.Code})
	return nil
}

// SaveRolePermissions atomically replaces every grant of the role. All invalid
// ids are collected and reported at once; any invalid id aborts the whole
// replace with zero persisted changes.
func (s *Service) SaveRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64, actorID int64) error {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	ids := dedupe(permissionIDs)

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := validateActive(ctx, repo, ids); err != nil {
			return err
		}
		if err := repo.DeleteGrants(ctx, roleID); err != nil {
			return err
		}
		return repo.InsertGrants(ctx, roleID, ids, actorID)
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, role.Code)
	s.record(ctx, actorID, "role.permissions.replace", roleID, map[string]any{
		"role_code": role.Code, "count": len(ids),
	})
	return nil
}

// GetRolePermissions returns every active catalog entry annotated with the
// role's assignment state.
func (s *Service) GetRolePermissions(ctx context.Context, roleID int64) ([]AnnotatedPermission, error) {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return nil, err
	}
	return s.repo.AnnotatedPermissions(ctx, roleID)
}

// AssignPermissions adds grants to the role without touching existing ones.
func (s *Service) AssignPermissions(ctx context.Context, roleID int64, permissionIDs []int64, actorID int64) error {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	ids := dedupe(permissionIDs)
	if len(ids) == 0 {
		return fmt.Errorf("%w: no permission ids given", shared.ErrValidation)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := validateActive(ctx, repo, ids); err != nil {
			return err
		}
		return repo.InsertGrants(ctx, roleID, ids, actorID)
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, role.Code)
	s.record(ctx, actorID, "role.permissions.assign", roleID, map[string]any{
		"role_code": role.Code, "permission_ids": ids,
	})
	return nil
}

// RevokePermission removes one grant. NotFound if the link does not exist.
func (s *Service) RevokePermission(ctx context.Context, roleID, permissionID, actorID int64) error {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	deleted, err := s.repo.DeleteGrant(ctx, roleID, permissionID)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("%w: role %d has no grant for permission %d", shared.ErrNotFound, roleID, permissionID)
	}
	s.invalidate(ctx, role.Code)
	s.record(ctx, actorID, "role.permissions.revoke", roleID, map[string]any{
		"role_code": role.Code, "permission_id": permissionID,
	})
	return nil
}

func validateActive(ctx context.Context, repo Repository, ids []int64) error {
	active, err := repo.ActivePermissionIDs(ctx, ids)
	if err != nil {
		return err
	}
	var missing []int64
	for _, id := range ids {
		if _, ok := active[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
		return fmt.Errorf("%w: unknown or inactive permission ids %v", shared.ErrValidation, missing)
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, roleCode string) {
	if s.invalidator != nil {
		s.invalidator.InvalidateRole(ctx, roleCode)
	}
}

func (s *Service) record(ctx context.Context, actorID int64, action string, roleID int64, details map[string]any) {
	s.audit.Record(ctx, oplog.Entry{
		ActorID:    actorID,
		Action:     action,
		ObjectType: "role",
		ObjectID:   strconv.FormatInt(roleID, 10),
		Details:    details,
	})
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
