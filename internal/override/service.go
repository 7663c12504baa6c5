package override

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sentra-authz/sentra/internal/catalog"
	"github.com/sentra-authz/sentra/internal/directory"
	"github.com/sentra-authz/sentra/internal/oplog"
	"github.com/sentra-authz/sentra/internal/shared"
)

// PermissionGetter resolves catalog entries referenced by overrides.
type PermissionGetter interface {
	Get(ctx context.Context, id int64) (catalog.Permission, error)
}

// UserInvalidator drops one user's cached grant snapshot.
type UserInvalidator interface {
	InvalidateUser(ctx context.Context, userID int64)
}

// GrantInput carries the fields of one override grant.
type GrantInput struct {
	UserID       int64
	PermissionID int64
	GrantedBy    int64
	Reason       string
	ResourceType *string
	ResourceID   *string
	ExpiresAt    *time.Time
}

// Service handles override business logic.
type Service struct {
	repo        Repository
	dir         directory.Directory
	perms       PermissionGetter
	invalidator UserInvalidator
	audit       *oplog.Log
	clock       func() time.Time
}

// NewService builds a Service instance.
func NewService(repo Repository, dir directory.Directory, perms PermissionGetter, invalidator UserInvalidator, audit *oplog.Log) *Service {
	return &Service{
		repo:        repo,
		dir:         dir,
		perms:       perms,
		invalidator: invalidator,
		audit:       audit,
		clock:       time.Now,
	}
}

// WithClock overrides the service clock; used by tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// Grant creates one override after validating the user, the permission and
// the resource/expiry fields.
func (s *Service) Grant(ctx context.Context, in GrantInput) (Override, error) {
	if err := s.validate(ctx, in); err != nil {
		return Override{}, err
	}
	created, err := s.repo.Insert(ctx, toOverride(in))
	if err != nil {
		return Override{}, err
	}
	s.afterMutation(ctx, in.GrantedBy, "override.grant", created)
	return created, nil
}

// GrantBatch creates several overrides in one transaction. Any invalid entry
// aborts the entire batch with zero persisted changes.
func (s *Service) GrantBatch(ctx context.Context, ins []GrantInput) ([]Override, error) {
	if len(ins) == 0 {
		return nil, fmt.Errorf("%w: empty batch", shared.ErrValidation)
	}
	for i, in := range ins {
		if err := s.validate(ctx, in); err != nil {
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
	}

	created := make([]Override, 0, len(ins))
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		for _, in := range ins {
			o, err := repo.Insert(ctx, toOverride(in))
			if err != nil {
				return err
			}
			created = append(created, o)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, o := range created {
		s.afterMutation(ctx, o.GrantedBy, "override.grant", o)
	}
	return created, nil
}

// Revoke hard-deletes one override.
func (s *Service) Revoke(ctx context.Context, actorID, overrideID int64) error {
	existing, err := s.repo.Get(ctx, overrideID)
	if err != nil {
		return err
	}
	deleted, err := s.repo.Delete(ctx, overrideID)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("%w: override %d", shared.ErrNotFound, overrideID)
	}
	s.afterMutation(ctx, actorID, "override.revoke", existing)
	return nil
}

// ListActive returns the user's live overrides; now is taken once at call start.
func (s *Service) ListActive(ctx context.Context, userID int64) ([]Override, error) {
	if _, err := s.dir.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.ListActive(ctx, userID, s.clock())
}

func (s *Service) validate(ctx context.Context, in GrantInput) error {
	if in.Reason == "" {
		return fmt.Errorf("%w: grant reason required", shared.ErrValidation)
	}
	if (in.ResourceType == nil) != (in.ResourceID == nil) {
		return fmt.Errorf("%w: resource_type and resource_id must both be set or both be absent", shared.ErrValidation)
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(s.clock()) {
		return fmt.Errorf("%w: expires_at must be in the future", shared.ErrValidation)
	}
	if _, err := s.dir.GetUser(ctx, in.UserID); err != nil {
		return err
	}
	if _, err := s.perms.Get(ctx, in.PermissionID); err != nil {
		return err
	}
	return nil
}

func (s *Service) afterMutation(ctx context.Context, actorID int64, action string, o Override) {
	if s.invalidator != nil {
		s.invalidator.InvalidateUser(ctx, o.UserID)
	}
	details := map[string]any{
		"user_id":       o.UserID,
		"permission_id": o.PermissionID,
		"reason":        o.Reason,
	}
	if o.ResourceType != nil {
		details["resource_type"] = *o.ResourceType
		details["resource_id"] = *o.ResourceID
	}
	if o.ExpiresAt != nil {
		details["expires_at"] = o.ExpiresAt
	}
	s.audit.Record(ctx, oplog.Entry{
		ActorID:    actorID,
		Action:     action,
		ObjectType: "override",
		ObjectID:   strconv.FormatInt(o.ID, 10),
		Details:    details,
	})
}

func toOverride(in GrantInput) Override {
	return Override{
		UserID:       in.UserID,
		PermissionID: in.PermissionID,
		GrantedBy:    in.GrantedBy,
		Reason:       in.Reason,
		ResourceType: in.ResourceType,
		ResourceID:   in.ResourceID,
		ExpiresAt:    in.ExpiresAt,
	}
}
