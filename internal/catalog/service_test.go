package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sentra-authz/sentra/internal/oplog"
	"github.com/sentra-authz/sentra/internal/shared"
)

type fakeRepo struct {
	nextID int64
	perms  map[int64]Permission
	refs   map[int64]int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{nextID: 1, perms: map[int64]Permission{}, refs: map[int64]int64{}}
}

func (f *fakeRepo) Create(_ context.Context, p Permission) (Permission, error) {
	for _, existing := range f.perms {
		if existing.Code == p.Code {
			return Permission{}, fmt.Errorf("%w: permission code %q already exists", shared.ErrConflict, p.Code)
		}
	}
	p.ID = f.nextID
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	f.nextID++
	f.perms[p.ID] = p
	return p, nil
}

func (f *fakeRepo) List(_ context.Context, filter Filter) ([]Permission, int, error) {
	var out []Permission
	for _, p := range f.perms {
		if filter.Category != nil && p.Category != *filter.Category {
			continue
		}
		if filter.Scope != nil && p.Scope != *filter.Scope {
			continue
		}
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func (f *fakeRepo) ListActive(_ context.Context) ([]Permission, error) {
	status := StatusActive
	out, _, err := f.List(context.Background(), Filter{Status: &status})
	return out, err
}

func (f *fakeRepo) ListActiveByCodes(_ context.Context, codes []string) ([]Permission, error) {
	var out []Permission
	for _, code := range codes {
		for _, p := range f.perms {
			if p.Code == code && p.Status == StatusActive {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (f *fakeRepo) Get(_ context.Context, id int64) (Permission, error) {
	p, ok := f.perms[id]
	if !ok {
		return Permission{}, fmt.Errorf("%w: permission %d", shared.ErrNotFound, id)
	}
	return p, nil
}

func (f *fakeRepo) GetByCode(_ context.Context, code string) (Permission, error) {
	for _, p := range f.perms {
		if p.Code == code {
			return p, nil
		}
	}
	return Permission{}, fmt.Errorf("%w: permission %q", shared.ErrNotFound, code)
}

func (f *fakeRepo) Update(_ context.Context, id int64, updates map[string]any) (Permission, error) {
	p, ok := f.perms[id]
	if !ok {
		return Permission{}, fmt.Errorf("%w: permission %d", shared.ErrNotFound, id)
	}
	if v, ok := updates["name"]; ok {
		p.Name = v.(string)
	}
	if v, ok := updates["category"]; ok {
		p.Category = v.(Category)
	}
	if v, ok := updates["scope"]; ok {
		p.Scope = v.(Scope)
	}
	if v, ok := updates["description"]; ok {
		desc := v.(string)
		p.Description = &desc
	}
	f.perms[id] = p
	return p, nil
}

func (f *fakeRepo) SetStatus(_ context.Context, id int64, status Status) error {
	p, ok := f.perms[id]
	if !ok {
		return fmt.Errorf("%w: permission %d", shared.ErrNotFound, id)
	}
	p.Status = status
	f.perms[id] = p
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, id int64) error {
	if _, ok := f.perms[id]; !ok {
		return fmt.Errorf("%w: permission %d", shared.ErrNotFound, id)
	}
	delete(f.perms, id)
	return nil
}

func (f *fakeRepo) OverrideReferences(_ context.Context, id int64) (int64, error) {
	return f.refs[id], nil
}

func newTestService(repo *fakeRepo) *Service {
	return NewService(repo, oplog.New(nil, nil))
}

func TestCreate(t *testing.T) {
	svc := newTestService(newFakeRepo())

	created, err := svc.Create(context.Background(), 99, CreateInput{
		Code: "approve:department:document", Name: "Approve documents",
		Category: "document", Scope: "department",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Status != StatusActive {
		t.Fatalf("status = %q, want new entries active", created.Status)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(newFakeRepo())

	cases := []struct {
		name string
		in   CreateInput
	}{
		{"bad code format", CreateInput{Code: "ApproveDocs", Name: "x", Category: "document", Scope: "department"}},
		{"two segments", CreateInput{Code: "approve:document", Name: "x", Category: "document", Scope: "department"}},
		{"uppercase segment", CreateInput{Code: "Approve:department:document", Name: "x", Category: "document", Scope: "department"}},
		{"digits in segment", CreateInput{Code: "approve2:department:document", Name: "x", Category: "document", Scope: "department"}},
		{"empty name", CreateInput{Code: "approve:department:document", Name: "  ", Category: "document", Scope: "department"}},
		{"unknown category", CreateInput{Code: "approve:department:document", Name: "x", Category: "widget", Scope: "department"}},
		{"unknown scope", CreateInput{Code: "approve:department:document", Name: "x", Category: "document", Scope: "team"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), 99, tc.in)
			if !errors.Is(err, shared.ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestCreateDuplicateCode(t *testing.T) {
	svc := newTestService(newFakeRepo())
	in := CreateInput{Code: "approve:department:document", Name: "Approve documents",
		Category: "document", Scope: "department"}

	if _, err := svc.Create(context.Background(), 99, in); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err := svc.Create(context.Background(), 99, in)
	if !errors.Is(err, shared.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestDisableEnable(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	created, err := svc.Create(context.Background(), 99, CreateInput{
		Code: "approve:department:document", Name: "Approve documents",
		Category: "document", Scope: "department",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.Disable(context.Background(), 99, created.ID); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if got := repo.perms[created.ID].Status; got != StatusInactive {
		t.Fatalf("status = %q, want inactive", got)
	}

	if err := svc.Enable(context.Background(), 99, created.ID); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if got := repo.perms[created.ID].Status; got != StatusActive {
		t.Fatalf("status = %q, want active", got)
	}
}

func TestRemoveRefusedWhileReferenced(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	created, err := svc.Create(context.Background(), 99, CreateInput{
		Code: "approve:department:document", Name: "Approve documents",
		Category: "document", Scope: "department",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	repo.refs[created.ID] = 3

	err = svc.Remove(context.Background(), 99, created.ID)
	if !errors.Is(err, shared.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden while overrides reference the entry", err)
	}
	if _, err := svc.Get(context.Background(), created.ID); err != nil {
		t.Fatalf("entry vanished after refused removal: %v", err)
	}

	repo.refs[created.ID] = 0
	if err := svc.Remove(context.Background(), 99, created.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
}

func TestUpdatePartial(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	created, err := svc.Create(context.Background(), 99, CreateInput{
		Code: "approve:department:document", Name: "Approve documents",
		Category: "document", Scope: "department",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	name := "Approve dept documents"
	updated, err := svc.Update(context.Background(), 99, created.ID, UpdateInput{Name: &name})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Name != name || updated.Category != created.Category {
		t.Fatalf("updated = %+v, want only the name changed", updated)
	}

	empty := " "
	if _, err := svc.Update(context.Background(), 99, created.ID, UpdateInput{Name: &empty}); !errors.Is(err, shared.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation for blank name", err)
	}
}

func TestMatrixGrouping(t *testing.T) {
	perms := []Permission{
		{Code: "approve:department:document", Category: CategoryDocument, Scope: ScopeDepartment},
		{Code: "read:department:document", Category: CategoryDocument, Scope: ScopeDepartment},
		{Code: "export:global:document", Category: CategoryDocument, Scope: ScopeGlobal},
		{Code: "archive:department:record", Category: CategoryRecord, Scope: ScopeDepartment},
	}

	groups := groupMatrix(perms)
	if len(groups) != 2 {
		t.Fatalf("got %d category groups, want 2", len(groups))
	}
	doc := groups[0]
	if doc.Category != CategoryDocument || len(doc.Scopes) != 2 {
		t.Fatalf("document group = %+v, want two scope groups", doc)
	}
	if len(doc.Scopes[0].Permissions) != 2 {
		t.Fatalf("department scope has %d permissions, want 2", len(doc.Scopes[0].Permissions))
	}
	if groups[1].Category != CategoryRecord {
		t.Fatalf("second group = %+v, want record", groups[1])
	}
}

func TestSplitCode(t *testing.T) {
	action, scope, resource, err := SplitCode("approve:cross_department:document")
	if err != nil {
		t.Fatalf("SplitCode: %v", err)
	}
	if action != "approve" || scope != "cross_department" || resource != "document" {
		t.Fatalf("got (%q, %q, %q)", action, scope, resource)
	}

	if _, _, _, err := SplitCode("approve:document"); !errors.Is(err, shared.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}
