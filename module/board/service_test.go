package board

import (
	"context"
	"errors"
	"testing"
	"time"

	"NioBoard/global"
	"NioBoard/tools/errs"
	"NioBoard/tools/security"
)

type memRepo struct {
	modules []Module
	charts  []Chart
	grants  map[string]map[string]bool // userID -> moduleID
}

func newMemBoardRepo() *memRepo {
	return &memRepo{grants: make(map[string]map[string]bool)}
}

func (r *memRepo) ListModules(context.Context) ([]Module, error) { return r.modules, nil }

func (r *memRepo) ModulesByIDs(_ context.Context, ids []string) ([]Module, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []Module
	for _, m := range r.modules {
		if want[m.ID] {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memRepo) FindModuleBySlug(_ context.Context, slug string) (Module, error) {
	for _, m := range r.modules {
		if m.Slug == slug {
			return m, nil
		}
	}
	return Module{}, errs.ErrNotFound
}

func (r *memRepo) UpsertModule(_ context.Context, m Module) error {
	for i, existing := range r.modules {
		if existing.Slug == m.Slug {
			r.modules[i].Name = m.Name
			return nil
		}
	}
	r.modules = append(r.modules, m)
	return nil
}

func (r *memRepo) ChartsByModule(_ context.Context, moduleID string, visibleOnly bool) ([]Chart, error) {
	var out []Chart
	for _, c := range r.charts {
		if c.ModuleID != moduleID {
			continue
		}
		if visibleOnly && !c.IsVisible {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *memRepo) InsertChart(_ context.Context, c Chart) error {
	r.charts = append(r.charts, c)
	return nil
}

func (r *memRepo) SetChartVisibility(_ context.Context, id string, visible bool) error {
	for i, c := range r.charts {
		if c.ID == id {
			r.charts[i].IsVisible = visible
			return nil
		}
	}
	return errs.ErrNotFound
}

func (r *memRepo) DeleteChart(_ context.Context, id string) error {
	for i, c := range r.charts {
		if c.ID == id {
			r.charts = append(r.charts[:i], r.charts[i+1:]...)
			return nil
		}
	}
	return errs.ErrNotFound
}

func (r *memRepo) GrantedModuleIDs(_ context.Context, userID string) ([]string, error) {
	var out []string
	for mid := range r.grants[userID] {
		out = append(out, mid)
	}
	return out, nil
}

func (r *memRepo) GrantedUserIDs(_ context.Context, moduleID string) ([]string, error) {
	var out []string
	for uid, mods := range r.grants {
		if mods[moduleID] {
			out = append(out, uid)
		}
	}
	return out, nil
}

func (r *memRepo) HasGrant(_ context.Context, userID, moduleID string) (bool, error) {
	return r.grants[userID][moduleID], nil
}

func (r *memRepo) ReplaceGrants(_ context.Context, userID string, moduleIDs []string) error {
	set := make(map[string]bool, len(moduleIDs))
	for _, id := range moduleIDs {
		set[id] = true
	}
	r.grants[userID] = set
	return nil
}

func seeded() (*Service, *memRepo) {
	repo := newMemBoardRepo()
	repo.modules = []Module{
		{ID: "m-sales", Slug: "sales", Name: "Sales", CreatedAt: time.Now()},
		{ID: "m-hr", Slug: "hr", Name: "HR", CreatedAt: time.Now()},
	}
	return NewService(repo), repo
}

var (
	regular = security.Principal{ID: "u1", Username: "u1", Role: security.RoleUser}
	root    = security.Principal{ID: "a1", Username: "a1", Role: security.RoleAdmin}
)

func TestAccessibleModules(t *testing.T) {
	svc, repo := seeded()
	ctx := context.Background()

	mods, err := svc.AccessibleModules(ctx, root)
	if err != nil || len(mods) != 2 {
		t.Fatalf("admin should see everything: %v %d", err, len(mods))
	}

	mods, err = svc.AccessibleModules(ctx, regular)
	if err != nil || len(mods) != 0 {
		t.Fatalf("ungranted user should see nothing: %v %d", err, len(mods))
	}

	_ = repo.ReplaceGrants(ctx, regular.ID, []string{"m-sales"})
	mods, _ = svc.AccessibleModules(ctx, regular)
	if len(mods) != 1 || mods[0].Slug != "sales" {
		t.Fatalf("granted set wrong: %+v", mods)
	}
}

func TestRequireAccess(t *testing.T) {
	svc, repo := seeded()
	ctx := context.Background()

	if _, err := svc.RequireAccess(ctx, regular, "sales"); !errors.Is(err, errs.ErrAccess) {
		t.Fatalf("want access error, got %v", err)
	}
	if _, err := svc.RequireAccess(ctx, regular, "nope"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
	if _, err := svc.RequireAccess(ctx, root, "hr"); err != nil {
		t.Fatalf("admin bypass broken: %v", err)
	}

	_ = repo.ReplaceGrants(ctx, regular.ID, []string{"m-sales"})
	if _, err := svc.RequireAccess(ctx, regular, "sales"); err != nil {
		t.Fatalf("granted access rejected: %v", err)
	}
}

func TestChartVisibilityFiltering(t *testing.T) {
	svc, repo := seeded()
	ctx := context.Background()
	_ = repo.ReplaceGrants(ctx, regular.ID, []string{"m-sales"})

	visible, err := svc.CreateChart(ctx, "m-sales", "Revenue", "https://bi.example/1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	hidden, _ := svc.CreateChart(ctx, "m-sales", "Margin", "https://bi.example/2")
	if err := svc.SetChartVisibility(ctx, hidden.ID, false); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	charts, err := svc.ChartsForModule(ctx, regular, "sales")
	if err != nil {
		t.Fatalf("user charts: %v", err)
	}
	if len(charts) != 1 || charts[0].ID != visible.ID {
		t.Fatalf("user should only see visible charts: %+v", charts)
	}

	charts, _ = svc.ChartsForModule(ctx, root, "sales")
	if len(charts) != 2 {
		t.Fatalf("admin should see hidden charts too, got %d", len(charts))
	}
}

func TestCreateChartValidation(t *testing.T) {
	svc, _ := seeded()
	if _, err := svc.CreateChart(context.Background(), "m-sales", "  ", "https://x"); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("blank title accepted: %v", err)
	}
}

func TestEnsureModulesIdempotent(t *testing.T) {
	svc, repo := seeded()
	ctx := context.Background()

	seedList := []global.ModuleSeed{{Slug: "sales", Name: "Sales v2"}, {Slug: "pm", Name: "PM"}}
	if err := svc.EnsureModules(ctx, seedList); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := svc.EnsureModules(ctx, seedList); err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if len(repo.modules) != 3 {
		t.Fatalf("want 3 modules after seeding, got %d", len(repo.modules))
	}
	m, _ := repo.FindModuleBySlug(ctx, "sales")
	if m.Name != "Sales v2" {
		t.Fatalf("reseed should refresh the name, got %q", m.Name)
	}
}
