package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/sentra-authz/sentra/internal/catalog"
	"github.com/sentra-authz/sentra/internal/directory"
	"github.com/sentra-authz/sentra/internal/grantcache"
	"github.com/sentra-authz/sentra/internal/override"
	"github.com/sentra-authz/sentra/internal/shared"
)

var testNow = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

type fakeCatalog struct {
	perms       map[string]catalog.Permission
	byCodeCalls int
}

func (f *fakeCatalog) GetByCode(_ context.Context, code string) (catalog.Permission, error) {
	f.byCodeCalls++
	p, ok := f.perms[code]
	if !ok {
		return catalog.Permission{}, fmt.Errorf("%w: permission %q", shared.ErrNotFound, code)
	}
	return p, nil
}

func (f *fakeCatalog) ListActiveByCodes(_ context.Context, codes []string) ([]catalog.Permission, error) {
	var out []catalog.Permission
	for _, code := range codes {
		if p, ok := f.perms[code]; ok && p.Status == catalog.StatusActive {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeGrants struct {
	codes map[string][]string
	calls int
}

func (f *fakeGrants) RoleGrantCodes(_ context.Context, roleCode string) ([]string, error) {
	f.calls++
	return f.codes[roleCode], nil
}

type fakeOverrides struct {
	grants map[int64][]override.Grant
	calls  int
}

func (f *fakeOverrides) ListActiveGrants(_ context.Context, userID int64, now time.Time) ([]override.Grant, error) {
	f.calls++
	var out []override.Grant
	for _, g := range f.grants[userID] {
		if g.Live(now) {
			out = append(out, g)
		}
	}
	return out, nil
}

type fakeDir struct {
	users map[int64]directory.User
	calls int
}

func (f *fakeDir) GetUser(_ context.Context, userID int64) (directory.User, error) {
	f.calls++
	u, ok := f.users[userID]
	if !ok {
		return directory.User{}, fmt.Errorf("%w: user %d", shared.ErrNotFound, userID)
	}
	return u, nil
}

func (f *fakeDir) UserIDsByRole(_ context.Context, roleCode string) ([]int64, error) {
	var ids []int64
	for id, u := range f.users {
		if u.RoleCode == roleCode {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type memStore struct {
	data     map[string][]byte
	setErr   error
	getCalls int
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.getCalls++
	v, ok := s.data[key]
	if !ok {
		return nil, grantcache.ErrMiss
	}
	return v, nil
}

func (s *memStore) SetWithTTL(_ context.Context, key string, value []byte, _ time.Duration) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.data[key] = value
	return nil
}

func (s *memStore) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

func (s *memStore) DeleteByPrefix(_ context.Context, _ string) error {
	s.data = map[string][]byte{}
	return nil
}

type fixture struct {
	resolver  *Resolver
	catalog   *fakeCatalog
	grants    *fakeGrants
	overrides *fakeOverrides
	dir       *fakeDir
	store     *memStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		catalog: &fakeCatalog{perms: map[string]catalog.Permission{
			"approve:department:document": {
				ID: 1, Code: "approve:department:document",
				Category: catalog.CategoryDocument, Scope: catalog.ScopeDepartment, Status: catalog.StatusActive,
			},
			"approve:cross_department:document": {
				ID: 2, Code: "approve:cross_department:document",
				Category: catalog.CategoryDocument, Scope: catalog.ScopeCrossDepartment, Status: catalog.StatusActive,
			},
			"export:global:report": {
				ID: 3, Code: "export:global:report",
				Category: catalog.CategoryRecord, Scope: catalog.ScopeGlobal, Status: catalog.StatusActive,
			},
			"archive:department:record": {
				ID: 4, Code: "archive:department:record",
				Category: catalog.CategoryRecord, Scope: catalog.ScopeDepartment, Status: catalog.StatusInactive,
			},
		}},
		grants: &fakeGrants{codes: map[string][]string{
			"leader": {"approve:department:document", "archive:department:record"},
			"member": nil,
		}},
		overrides: &fakeOverrides{grants: map[int64][]override.Grant{}},
		dir: &fakeDir{users: map[int64]directory.User{
			1: {ID: 1, Name: "lena", DepartmentID: 10, RoleCode: "leader"},
			2: {ID: 2, Name: "milo", DepartmentID: 10, RoleCode: "member"},
			3: {ID: 3, Name: "ada", DepartmentID: 20, RoleCode: "admin"},
		}},
		store: newMemStore(),
	}
	cache := grantcache.NewCache(f.store, time.Minute, slog.New(slog.DiscardHandler), nil)
	f.resolver = New(f.catalog, f.grants, f.overrides, f.dir, cache, nil).
		WithClock(func() time.Time { return testNow })
	return f
}

func (f *fixture) check(t *testing.T, req CheckRequest) Decision {
	t.Helper()
	d, err := f.resolver.Check(context.Background(), req)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	return d
}

func TestCheckRoleGrantOwnDepartment(t *testing.T) {
	f := newFixture(t)

	d := f.check(t, CheckRequest{UserID: 1, Code: "approve:department:document"})
	if !d.Allowed || d.Reason != ReasonAllowedRole {
		t.Fatalf("got %+v, want allow via role grant", d)
	}
	if !d.CheckedAt.Equal(testNow) {
		t.Fatalf("CheckedAt = %v, want %v", d.CheckedAt, testNow)
	}
}

func TestCheckDepartmentMismatch(t *testing.T) {
	f := newFixture(t)

	other := int64(20)
	d := f.check(t, CheckRequest{UserID: 1, Code: "approve:department:document", ResourceDepartmentID: &other})
	if d.Allowed || d.Reason != ReasonDepartmentMismatch {
		t.Fatalf("got %+v, want deny with department_mismatch", d)
	}
}

func TestCheckCrossDepartmentSiblingEscape(t *testing.T) {
	f := newFixture(t)
	f.grants.codes["leader"] = append(f.grants.codes["leader"], "approve:cross_department:document")

	other := int64(20)
	d := f.check(t, CheckRequest{UserID: 1, Code: "approve:department:document", ResourceDepartmentID: &other})
	if !d.Allowed || d.Reason != ReasonAllowedRole {
		t.Fatalf("got %+v, want allow via cross_department sibling", d)
	}
}

func TestCheckSiblingEscapeRequiresActiveSibling(t *testing.T) {
	f := newFixture(t)
	f.grants.codes["leader"] = append(f.grants.codes["leader"], "approve:cross_department:document")
	p := f.catalog.perms["approve:cross_department:document"]
	p.Status = catalog.StatusInactive
	f.catalog.perms["approve:cross_department:document"] = p

	other := int64(20)
	d := f.check(t, CheckRequest{UserID: 1, Code: "approve:department:document", ResourceDepartmentID: &other})
	if d.Allowed {
		t.Fatalf("got %+v, want deny when the sibling entry is inactive", d)
	}
}

func TestCheckResourceScopedOverride(t *testing.T) {
	f := newFixture(t)
	docType, doc42, doc99 := "document", "42", "99"
	f.overrides.grants[2] = []override.Grant{{
		OverrideID: 7, PermissionID: 1, Code: "approve:department:document",
		ResourceType: &docType, ResourceID: &doc42,
	}}

	d := f.check(t, CheckRequest{UserID: 2, Code: "approve:department:document", ResourceType: &docType, ResourceID: &doc42})
	if !d.Allowed || d.Reason != ReasonAllowedOverride {
		t.Fatalf("got %+v, want allow via override for document 42", d)
	}

	d = f.check(t, CheckRequest{UserID: 2, Code: "approve:department:document", ResourceType: &docType, ResourceID: &doc99})
	if d.Allowed || d.Reason != ReasonNotGranted {
		t.Fatalf("got %+v, want deny for document 99", d)
	}
}

func TestCheckExpiredOverrideNeverAllows(t *testing.T) {
	f := newFixture(t)
	expired := testNow.Add(-time.Minute)
	f.overrides.grants[2] = []override.Grant{{
		OverrideID: 8, PermissionID: 1, Code: "approve:department:document", ExpiresAt: &expired,
	}}

	d := f.check(t, CheckRequest{UserID: 2, Code: "approve:department:document"})
	if d.Allowed {
		t.Fatalf("got %+v, want deny for expired override", d)
	}
}

func TestCheckOverrideExpiryAgainstCachedSnapshot(t *testing.T) {
	// The snapshot may be cached while an override inside it expires. The
	// expiry must be honored at check time, not at cache-fill time.
	f := newFixture(t)
	soon := testNow.Add(30 * time.Second)
	f.overrides.grants[2] = []override.Grant{{
		OverrideID: 9, PermissionID: 1, Code: "approve:department:document", ExpiresAt: &soon,
	}}

	d := f.check(t, CheckRequest{UserID: 2, Code: "approve:department:document"})
	if !d.Allowed {
		t.Fatalf("got %+v, want allow before expiry", d)
	}

	f.resolver.WithClock(func() time.Time { return testNow.Add(time.Minute) })
	d = f.check(t, CheckRequest{UserID: 2, Code: "approve:department:document"})
	if d.Allowed {
		t.Fatalf("got %+v, want deny after expiry despite cached snapshot", d)
	}
	if f.overrides.calls != 1 {
		t.Fatalf("override store read %d times, want 1 (second check served from cache)", f.overrides.calls)
	}
}

func TestCheckUnknownAndDisabledPermission(t *testing.T) {
	f := newFixture(t)

	d := f.check(t, CheckRequest{UserID: 1, Code: "no:such:permission"})
	if d.Allowed || d.Reason != ReasonUnknownPermission {
		t.Fatalf("got %+v, want deny with unknown_permission", d)
	}

	// archive:department:record is granted to leaders but disabled in the
	// catalog; the grant must not count.
	d = f.check(t, CheckRequest{UserID: 1, Code: "archive:department:record"})
	if d.Allowed || d.Reason != ReasonUnknownPermission {
		t.Fatalf("got %+v, want deny for disabled permission", d)
	}
}

func TestCheckAdminBypass(t *testing.T) {
	f := newFixture(t)

	d := f.check(t, CheckRequest{UserID: 3, Code: "export:global:report"})
	if !d.Allowed || d.Reason != ReasonAllowedAdmin {
		t.Fatalf("got %+v, want allow via admin bypass", d)
	}

	// The bypass does not extend to disabled entries.
	d = f.check(t, CheckRequest{UserID: 3, Code: "archive:department:record"})
	if d.Allowed || d.Reason != ReasonUnknownPermission {
		t.Fatalf("got %+v, want deny for disabled permission even as admin", d)
	}
}

func TestCheckSnapshotReadThrough(t *testing.T) {
	f := newFixture(t)

	f.check(t, CheckRequest{UserID: 1, Code: "approve:department:document"})
	f.check(t, CheckRequest{UserID: 1, Code: "approve:department:document"})

	if f.dir.calls != 1 {
		t.Fatalf("directory read %d times, want 1", f.dir.calls)
	}
	if f.grants.calls != 1 {
		t.Fatalf("role grants read %d times, want 1", f.grants.calls)
	}
	if f.overrides.calls != 1 {
		t.Fatalf("overrides read %d times, want 1", f.overrides.calls)
	}
}

func TestCheckCacheWriteFailureTolerated(t *testing.T) {
	f := newFixture(t)
	f.store.setErr = fmt.Errorf("redis down")

	d := f.check(t, CheckRequest{UserID: 1, Code: "approve:department:document"})
	if !d.Allowed {
		t.Fatalf("got %+v, want allow despite cache write failure", d)
	}

	// Each check recomputes because nothing was cached.
	f.check(t, CheckRequest{UserID: 1, Code: "approve:department:document"})
	if f.grants.calls != 2 {
		t.Fatalf("role grants read %d times, want 2", f.grants.calls)
	}
}

func TestCheckUserNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.resolver.Check(context.Background(), CheckRequest{UserID: 99, Code: "approve:department:document"})
	if !errors.Is(err, shared.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListEffectivePermissions(t *testing.T) {
	f := newFixture(t)
	docType, doc42 := "document", "42"
	expires := testNow.Add(time.Hour)
	f.overrides.grants[1] = []override.Grant{
		{OverrideID: 11, PermissionID: 3, Code: "export:global:report"},
		{OverrideID: 12, PermissionID: 1, Code: "approve:department:document",
			ResourceType: &docType, ResourceID: &doc42, ExpiresAt: &expires},
	}

	out, err := f.resolver.ListEffectivePermissions(context.Background(), 1)
	if err != nil {
		t.Fatalf("ListEffectivePermissions: %v", err)
	}

	// Role grants archive:department:record too, but the entry is disabled and
	// must not appear.
	var codes []string
	for _, ep := range out {
		codes = append(codes, ep.Code)
	}
	want := []string{"approve:department:document", "export:global:report", "approve:department:document"}
	if len(codes) != len(want) {
		t.Fatalf("codes = %v, want %v", codes, want)
	}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("codes = %v, want %v", codes, want)
		}
	}
	last := out[len(out)-1]
	if last.ResourceType == nil || *last.ResourceType != docType || last.ExpiresAt == nil {
		t.Fatalf("resource-scoped override entry lost its scoping: %+v", last)
	}
}
