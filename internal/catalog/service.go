package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sentra-authz/sentra/internal/oplog"
	"github.com/sentra-authz/sentra/internal/shared"
)

// CreateInput carries the fields for a new catalog entry.
type CreateInput struct {
	Code        string
	Name        string
	Category    string
	Scope       string
	Description *string
}

// UpdateInput carries a partial catalog update; nil fields are untouched.
type UpdateInput struct {
	Name        *string
	Category    *string
	Scope       *string
	Description *string
}

// Service handles catalog business logic.
type Service struct {
	repo  Repository
	audit *oplog.Log
}

// NewService builds a Service instance.
func NewService(repo Repository, audit *oplog.Log) *Service {
	return &Service{repo: repo, audit: audit}
}

// Create registers a new permission. The code must match action:scope:resource
// and be unique.
func (s *Service) Create(ctx context.Context, actorID int64, in CreateInput) (Permission, error) {
	code := strings.TrimSpace(in.Code)
	if err := ValidateCode(code); err != nil {
		return Permission{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Permission{}, fmt.Errorf("%w: permission name required", shared.ErrValidation)
	}
	category, err := ParseCategory(in.Category)
	if err != nil {
		return Permission{}, err
	}
	scope, err := ParseScope(in.Scope)
	if err != nil {
		return Permission{}, err
	}

	created, err := s.repo.Create(ctx, Permission{
		Code:        code,
		Name:        name,
		Category:    category,
		Scope:       scope,
		Status:      StatusActive,
		Description: in.Description,
	})
	if err != nil {
		return Permission{}, err
	}
	s.record(ctx, actorID, "permission.create", created.ID, map[string]any{"code": created.Code})
	return created, nil
}

// List returns catalog entries matching the filter.
func (s *Service) List(ctx context.Context, f Filter) ([]Permission, int, error) {
	return s.repo.List(ctx, f)
}

// Get returns one catalog entry by id.
func (s *Service) Get(ctx context.Context, id int64) (Permission, error) {
	return s.repo.Get(ctx, id)
}

// Update applies a partial update to an existing entry.
func (s *Service) Update(ctx context.Context, actorID, id int64, in UpdateInput) (Permission, error) {
	updates := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return Permission{}, fmt.Errorf("%w: permission name required", shared.ErrValidation)
		}
		updates["name"] = name
	}
	if in.Category != nil {
		category, err := ParseCategory(*in.Category)
		if err != nil {
			return Permission{}, err
		}
		updates["category"] = category
	}
	if in.Scope != nil {
		scope, err := ParseScope(*in.Scope)
		if err != nil {
			return Permission{}, err
		}
		updates["scope"] = scope
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if len(updates) == 0 {
		return s.repo.Get(ctx, id)
	}

	updated, err := s.repo.Update(ctx, id, updates)
	if err != nil {
		return Permission{}, err
	}
	s.record(ctx, actorID, "permission.update", id, map[string]any{"fields": keys(updates)})
	return updated, nil
}

// Disable marks the entry inactive. Grants referencing it stay in storage but
// every subsequent check for its code resolves to Deny.
func (s *Service) Disable(ctx context.Context, actorID, id int64) error {
	if err := s.repo.SetStatus(ctx, id, StatusInactive); err != nil {
		return err
	}
	s.record(ctx, actorID, "permission.disable", id, nil)
	return nil
}

// Enable marks the entry active again.
func (s *Service) Enable(ctx context.Context, actorID, id int64) error {
	if err := s.repo.SetStatus(ctx, id, StatusActive); err != nil {
		return err
	}
	s.record(ctx, actorID, "permission.enable", id, nil)
	return nil
}

// Remove hard-deletes an entry. Deletion is refused while any user override
// still references it.
func (s *Service) Remove(ctx context.Context, actorID, id int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	refs, err := s.repo.OverrideReferences(ctx, id)
	if err != nil {
		return err
	}
	if refs > 0 {
		return fmt.Errorf("%w: permission %d is referenced by %d override(s)", shared.ErrForbidden, id, refs)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "permission.remove", id, nil)
	return nil
}

// Matrix groups active entries by category then scope.
func (s *Service) Matrix(ctx context.Context) ([]CategoryGroup, error) {
	perms, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	return groupMatrix(perms), nil
}

func groupMatrix(perms []Permission) []CategoryGroup {
	var groups []CategoryGroup
	for _, p := range perms {
		if len(groups) == 0 || groups[len(groups)-1].Category != p.Category {
			groups = append(groups, CategoryGroup{Category: p.Category})
		}
		cg := &groups[len(groups)-1]
		if len(cg.Scopes) == 0 || cg.Scopes[len(cg.Scopes)-1].Scope != p.Scope {
			cg.Scopes = append(cg.Scopes, ScopeGroup{Scope: p.Scope})
		}
		sg := &cg.Scopes[len(cg.Scopes)-1]
		sg.Permissions = append(sg.Permissions, p)
	}
	return groups
}

func (s *Service) record(ctx context.Context, actorID int64, action string, permissionID int64, details map[string]any) {
	s.audit.Record(ctx, oplog.Entry{
		ActorID:    actorID,
		Action:     action,
		ObjectType: "permission",
		ObjectID:   strconv.FormatInt(permissionID, 10),
		Details:    details,
	})
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
