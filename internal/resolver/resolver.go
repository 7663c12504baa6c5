// Package resolver computes Allow/Deny for one (user, action, resource)
// triple by combining catalog state, role grants and live user overrides.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sentra-authz/sentra/internal/catalog"
	"github.com/sentra-authz/sentra/internal/directory"
	"github.com/sentra-authz/sentra/internal/grantcache"
	"github.com/sentra-authz/sentra/internal/observability"
	"github.com/sentra-authz/sentra/internal/override"
	"github.com/sentra-authz/sentra/internal/shared"
)

// Reason is the machine-readable explanation of a decision.
type Reason string

const (
	ReasonAllowedRole        Reason = "allowed_role"
	ReasonAllowedOverride    Reason = "allowed_override"
	ReasonAllowedAdmin       Reason = "allowed_admin"
	ReasonUnknownPermission  Reason = "unknown_permission"
	ReasonNotGranted         Reason = "not_granted"
	ReasonDepartmentMismatch Reason = "department_mismatch"
)

// roleAdmin short-circuits department checks; the admin decision is
// centralized here rather than re-implemented per business module.
const roleAdmin = "admin"

// CheckRequest identifies one permission check.
type CheckRequest struct {
	UserID               int64
	Code                 string
	ResourceType         *string
	ResourceID           *string
	ResourceDepartmentID *int64
}

// Decision is the resolved outcome. Deny is a normal result, not an error.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Reason    Reason    `json:"reason"`
	CheckedAt time.Time `json:"checked_at"`
}

// EffectivePermission is one entry of a user's effective permission set.
type EffectivePermission struct {
	Code         string           `json:"code"`
	Category     catalog.Category `json:"category"`
	Scope        catalog.Scope    `json:"scope"`
	ResourceType *string          `json:"resource_type,omitempty"`
	ResourceID   *string          `json:"resource_id,omitempty"`
	ExpiresAt    *time.Time       `json:"expires_at,omitempty"`
}

// CatalogReader supplies fresh catalog state; it is consulted on every call
// so catalog changes apply without cache invalidation.
type CatalogReader interface {
	GetByCode(ctx context.Context, code string) (catalog.Permission, error)
	ListActiveByCodes(ctx context.Context, codes []string) ([]catalog.Permission, error)
}

// GrantReader supplies the permission codes granted to a role.
type GrantReader interface {
	RoleGrantCodes(ctx context.Context, roleCode string) ([]string, error)
}

// OverrideReader supplies a user's live override grants.
type OverrideReader interface {
	ListActiveGrants(ctx context.Context, userID int64, now time.Time) ([]override.Grant, error)
}

// Resolver combines catalog, matrix and override state into decisions.
type Resolver struct {
	catalog   CatalogReader
	grants    GrantReader
	overrides OverrideReader
	dir       directory.Directory
	cache     *grantcache.Cache
	metrics   *observability.Metrics
	clock     func() time.Time
}

// New builds a Resolver. cache and metrics may be nil.
func New(cat CatalogReader, grants GrantReader, overrides OverrideReader, dir directory.Directory,
	cache *grantcache.Cache, metrics *observability.Metrics) *Resolver {
	return &Resolver{
		catalog:   cat,
		grants:    grants,
		overrides: overrides,
		dir:       dir,
		cache:     cache,
		metrics:   metrics,
		clock:     time.Now,
	}
}

// WithClock overrides the resolver clock; used by tests.
func (r *Resolver) WithClock(clock func() time.Time) *Resolver {
	r.clock = clock
	return r
}

// Check resolves one permission check. The evaluation instant is captured
// once; expired overrides never contribute to an Allow.
func (r *Resolver) Check(ctx context.Context, req CheckRequest) (Decision, error) {
	now := r.clock()

	var (
		perm    catalog.Permission
		permErr error
		snap    grantcache.Snapshot
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		perm, permErr = r.catalog.GetByCode(gctx, req.Code)
		if permErr != nil && !errors.Is(permErr, shared.ErrNotFound) {
			return permErr
		}
		return nil
	})
	g.Go(func() error {
		var err error
		snap, err = r.snapshot(gctx, req.UserID, now)
		return err
	})
	if err := g.Wait(); err != nil {
		return Decision{}, err
	}

	if errors.Is(permErr, shared.ErrNotFound) || perm.Status != catalog.StatusActive {
		return r.finish(Decision{Allowed: false, Reason: ReasonUnknownPermission, CheckedAt: now}), nil
	}

	if snap.RoleCode == roleAdmin {
		return r.finish(Decision{Allowed: true, Reason: ReasonAllowedAdmin, CheckedAt: now}), nil
	}

	switch perm.Scope {
	case catalog.ScopeGlobal, catalog.ScopeCrossDepartment:
		// Department boundaries are irrelevant; only an explicit grant counts.
		if reason, ok := r.holds(snap, req, perm.Code, now); ok {
			return r.finish(Decision{Allowed: true, Reason: reason, CheckedAt: now}), nil
		}
		return r.finish(Decision{Allowed: false, Reason: ReasonNotGranted, CheckedAt: now}), nil

	case catalog.ScopeDepartment:
		return r.checkDepartment(ctx, req, perm, snap, now)
	}

	return r.finish(Decision{Allowed: false, Reason: ReasonNotGranted, CheckedAt: now}), nil
}

func (r *Resolver) checkDepartment(ctx context.Context, req CheckRequest, perm catalog.Permission,
	snap grantcache.Snapshot, now time.Time) (Decision, error) {
	// A nil resource department means the check concerns the requester's own
	// department.
	sameDept := req.ResourceDepartmentID == nil || *req.ResourceDepartmentID == snap.DepartmentID
	if sameDept {
		if reason, ok := r.holds(snap, req, perm.Code, now); ok {
			return r.finish(Decision{Allowed: true, Reason: reason, CheckedAt: now}), nil
		}
		return r.finish(Decision{Allowed: false, Reason: ReasonNotGranted, CheckedAt: now}), nil
	}

	// Crossing a department boundary needs a live cross_department or global
	// grant for the same action and resource kind, and that sibling entry
	// must itself be active.
	action, _, resource, err := catalog.SplitCode(perm.Code)
	if err != nil {
		return Decision{}, err
	}
	siblings := []string{
		fmt.Sprintf("%s:%s:%s", action, catalog.ScopeCrossDepartment, resource),
		fmt.Sprintf("%s:%s:%s", action, catalog.ScopeGlobal, resource),
	}
	active, err := r.catalog.ListActiveByCodes(ctx, siblings)
	if err != nil {
		return Decision{}, err
	}
	for _, sibling := range active {
		if reason, ok := r.holds(snap, req, sibling.Code, now); ok {
			return r.finish(Decision{Allowed: true, Reason: reason, CheckedAt: now}), nil
		}
	}
	return r.finish(Decision{Allowed: false, Reason: ReasonDepartmentMismatch, CheckedAt: now}), nil
}

// holds reports whether the snapshot grants the code for the requested
// resource, via role grant first, then live resource-matched overrides.
func (r *Resolver) holds(snap grantcache.Snapshot, req CheckRequest, code string, now time.Time) (Reason, bool) {
	for _, granted := range snap.RoleGrants {
		if granted == code {
			return ReasonAllowedRole, true
		}
	}
	for _, g := range snap.Overrides {
		if g.Code != code || !g.Live(now) {
			continue
		}
		if g.MatchesResource(req.ResourceType, req.ResourceID) {
			return ReasonAllowedOverride, true
		}
	}
	return "", false
}

// ListEffectivePermissions returns the user's effective set: role grants
// united with live overrides, restricted to active catalog entries.
func (r *Resolver) ListEffectivePermissions(ctx context.Context, userID int64) ([]EffectivePermission, error) {
	now := r.clock()
	snap, err := r.snapshot(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	codes := make([]string, 0, len(snap.RoleGrants)+len(snap.Overrides))
	codes = append(codes, snap.RoleGrants...)
	for _, g := range snap.Overrides {
		if g.Live(now) {
			codes = append(codes, g.Code)
		}
	}
	perms, err := r.catalog.ListActiveByCodes(ctx, codes)
	if err != nil {
		return nil, err
	}
	byCode := make(map[string]catalog.Permission, len(perms))
	for _, p := range perms {
		byCode[p.Code] = p
	}

	var out []EffectivePermission
	roleHeld := make(map[string]struct{}, len(snap.RoleGrants))
	for _, code := range snap.RoleGrants {
		p, ok := byCode[code]
		if !ok {
			continue
		}
		roleHeld[code] = struct{}{}
		out = append(out, EffectivePermission{Code: p.Code, Category: p.Category, Scope: p.Scope})
	}
	for _, g := range snap.Overrides {
		if !g.Live(now) {
			continue
		}
		p, ok := byCode[g.Code]
		if !ok {
			continue
		}
		if _, held := roleHeld[g.Code]; held && g.ResourceType == nil && g.ExpiresAt == nil {
			// Already covered unconditionally by the role grant.
			continue
		}
		out = append(out, EffectivePermission{
			Code:         p.Code,
			Category:     p.Category,
			Scope:        p.Scope,
			ResourceType: g.ResourceType,
			ResourceID:   g.ResourceID,
			ExpiresAt:    g.ExpiresAt,
		})
	}
	return out, nil
}

// snapshot returns the user's raw grant snapshot, reading through the cache.
// Role grants and override rows are loaded concurrently on a miss.
func (r *Resolver) snapshot(ctx context.Context, userID int64, now time.Time) (grantcache.Snapshot, error) {
	if snap, ok := r.cache.GetSnapshot(ctx, userID); ok {
		return snap, nil
	}

	user, err := r.dir.GetUser(ctx, userID)
	if err != nil {
		return grantcache.Snapshot{}, err
	}

	var (
		roleGrants []string
		grants     []override.Grant
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		roleGrants, err = r.grants.RoleGrantCodes(gctx, user.RoleCode)
		return err
	})
	g.Go(func() error {
		var err error
		grants, err = r.overrides.ListActiveGrants(gctx, userID, now)
		return err
	})
	if err := g.Wait(); err != nil {
		return grantcache.Snapshot{}, err
	}

	snap := grantcache.Snapshot{
		UserID:       userID,
		DepartmentID: user.DepartmentID,
		RoleCode:     user.RoleCode,
		RoleGrants:   roleGrants,
		Overrides:    grants,
		CachedAt:     now,
	}
	r.cache.PutSnapshot(ctx, snap)
	return snap, nil
}

func (r *Resolver) finish(d Decision) Decision {
	r.metrics.ObserveDecision(d.Allowed, string(d.Reason))
	return d
}
