package user

import (
	"context"
	"errors"
	"testing"

	"NioBoard/tools/errs"
	"NioBoard/tools/security"
)

type memUserRepo struct {
	users map[string]User // by id
}

func newMemUserRepo() *memUserRepo { return &memUserRepo{users: make(map[string]User)} }

func (r *memUserRepo) Insert(_ context.Context, u User) error {
	for _, existing := range r.users {
		if existing.Username == u.Username {
			return errs.ErrValidation.WithDetail("username already exists")
		}
	}
	r.users[u.ID] = u
	return nil
}

func (r *memUserRepo) FindByID(_ context.Context, id string) (User, error) {
	u, ok := r.users[id]
	if !ok {
		return User{}, errs.ErrNotFound
	}
	return u, nil
}

func (r *memUserRepo) FindByUsername(_ context.Context, username string) (User, error) {
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return User{}, errs.ErrNotFound
}

func (r *memUserRepo) ListNonAdmin(context.Context) ([]User, error) {
	var out []User
	for _, u := range r.users {
		if u.Role != security.RoleAdmin {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *memUserRepo) ListIDsByRole(_ context.Context, role string) ([]string, error) {
	var out []string
	for _, u := range r.users {
		if u.Role == role {
			out = append(out, u.ID)
		}
	}
	return out, nil
}

func (r *memUserRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.users[id]; !ok {
		return errs.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *memUserRepo) UpdatePassword(_ context.Context, id, hash string) error {
	u, ok := r.users[id]
	if !ok {
		return errs.ErrNotFound
	}
	u.PasswordHash = hash
	r.users[id] = u
	return nil
}

type memGrants struct {
	byUser map[string][]string
}

func (g *memGrants) UserModuleIDs(_ context.Context, userID string) ([]string, error) {
	return g.byUser[userID], nil
}

func (g *memGrants) ReplaceUserModules(_ context.Context, userID string, moduleIDs []string) error {
	if g.byUser == nil {
		g.byUser = make(map[string][]string)
	}
	g.byUser[userID] = moduleIDs
	return nil
}

func newTestUserService() (*Service, *memUserRepo, *memGrants) {
	repo := newMemUserRepo()
	grants := &memGrants{}
	svc := NewService(repo, grants, security.DefaultOptions([]byte("test-secret")))
	return svc, repo, grants
}

func TestCreateAndLogin(t *testing.T) {
	svc, _, _ := newTestUserService()
	ctx := context.Background()

	created, err := svc.Create(ctx, "alice", "s3cret", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Role != security.RoleUser {
		t.Fatalf("default role wrong: %s", created.Role)
	}
	if created.PasswordHash == "s3cret" {
		t.Fatalf("password stored in the clear")
	}

	token, u, err := svc.Login(ctx, "alice", "s3cret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if token == "" || u.ID != created.ID {
		t.Fatalf("login result wrong")
	}

	p, err := security.Verify(security.DefaultOptions([]byte("test-secret")), token)
	if err != nil || p.ID != created.ID || p.Role != security.RoleUser {
		t.Fatalf("issued token does not verify: %v %+v", err, p)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _, _ := newTestUserService()
	ctx := context.Background()
	_, _ = svc.Create(ctx, "alice", "s3cret", "")

	if _, _, err := svc.Login(ctx, "alice", "wrong"); err == nil {
		t.Fatalf("wrong password accepted")
	}
	if _, _, err := svc.Login(ctx, "ghost", "whatever"); err == nil {
		t.Fatalf("unknown user accepted")
	}
}

func TestCreateRejectsDuplicateUsername(t *testing.T) {
	svc, _, _ := newTestUserService()
	ctx := context.Background()
	_, _ = svc.Create(ctx, "alice", "x", "")
	if _, err := svc.Create(ctx, "alice", "y", ""); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("duplicate accepted: %v", err)
	}
}

func TestCreateRejectsUnknownRole(t *testing.T) {
	svc, _, _ := newTestUserService()
	if _, err := svc.Create(context.Background(), "bob", "x", "superuser"); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("bogus role accepted: %v", err)
	}
}

func TestDeleteGuardsSelf(t *testing.T) {
	svc, _, grants := newTestUserService()
	ctx := context.Background()
	u, _ := svc.Create(ctx, "bob", "x", "")
	caller := security.Principal{ID: u.ID, Role: security.RoleAdmin}

	if err := svc.Delete(ctx, caller, u.ID); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("self delete allowed: %v", err)
	}

	other, _ := svc.Create(ctx, "carol", "x", "")
	_ = grants.ReplaceUserModules(ctx, other.ID, []string{"m1"})
	if err := svc.Delete(ctx, caller, other.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mods, _ := grants.UserModuleIDs(ctx, other.ID); len(mods) != 0 {
		t.Fatalf("grants not cleared on delete")
	}
}

func TestChangePassword(t *testing.T) {
	svc, _, _ := newTestUserService()
	ctx := context.Background()
	u, _ := svc.Create(ctx, "alice", "old-pass", "")

	if err := svc.ChangePassword(ctx, u.ID, "wrong", "new-pass"); err == nil {
		t.Fatalf("wrong current password accepted")
	}
	if err := svc.ChangePassword(ctx, u.ID, "old-pass", "new-pass"); err != nil {
		t.Fatalf("change: %v", err)
	}
	if _, _, err := svc.Login(ctx, "alice", "new-pass"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if _, _, err := svc.Login(ctx, "alice", "old-pass"); err == nil {
		t.Fatalf("old password still works")
	}
}

func TestEnsureAdminIdempotent(t *testing.T) {
	svc, repo, _ := newTestUserService()
	ctx := context.Background()

	if err := svc.EnsureAdmin(ctx, "root", "pw"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := svc.EnsureAdmin(ctx, "root", "pw"); err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	admins, _ := repo.ListIDsByRole(ctx, security.RoleAdmin)
	if len(admins) != 1 {
		t.Fatalf("want exactly one admin, got %d", len(admins))
	}
}
