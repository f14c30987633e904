package user

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"NioBoard/logger"
	"NioBoard/tools/errs"
	"NioBoard/tools/ids"
	"NioBoard/tools/security"
)

const bcryptCost = 10

// Grants is the slice of the board service the user module needs for
// the admin access-assignment endpoints.
type Grants interface {
	UserModuleIDs(ctx context.Context, userID string) ([]string, error)
	ReplaceUserModules(ctx context.Context, userID string, moduleIDs []string) error
}

type Service struct {
	repo   Repo
	grants Grants
	jwt    security.Options
}

func NewService(repo Repo, grants Grants, jwt security.Options) *Service {
	return &Service{repo: repo, grants: grants, jwt: jwt}
}

// Login verifies credentials and issues the session token.
func (s *Service) Login(ctx context.Context, username, password string) (token string, u User, err error) {
	if username == "" || password == "" {
		return "", User{}, errs.ErrValidation.WithDetail("username and password required")
	}
	u, err = s.repo.FindByUsername(ctx, username)
	if err != nil {
		// Same client answer for unknown user and wrong password.
		return "", User{}, errs.ErrToken.WithDetail("invalid credentials")
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", User{}, errs.ErrToken.WithDetail("invalid credentials")
	}
	token, _, err = security.Generate(s.jwt, security.Principal{ID: u.ID, Username: u.Username, Role: u.Role})
	if err != nil {
		return "", User{}, errs.WrapInfra(err, "sign token")
	}
	return token, u, nil
}

func (s *Service) Create(ctx context.Context, username, password, role string) (User, error) {
	if username == "" || password == "" {
		return User{}, errs.ErrValidation.WithDetail("username and password required")
	}
	if role == "" {
		role = security.RoleUser
	}
	if role != security.RoleUser && role != security.RoleAdmin {
		return User{}, errs.ErrValidation.WithDetail("unknown role")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return User{}, errs.WrapInfra(err, "hash password")
	}
	u := User{
		ID:           ids.GenerateString(),
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now(),
	}
	if err := s.repo.Insert(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *Service) ListNonAdmin(ctx context.Context) ([]User, error) {
	return s.repo.ListNonAdmin(ctx)
}

// AdminIDs backs the online-users endpoint; admins are not in the
// regular user listing but still appear in presence.
func (s *Service) AdminIDs(ctx context.Context) ([]string, error) {
	return s.repo.ListIDsByRole(ctx, security.RoleAdmin)
}

// Delete removes a user; deleting yourself is rejected, matching the
// admin UI guard.
func (s *Service) Delete(ctx context.Context, caller security.Principal, id string) error {
	if caller.ID == id {
		return errs.ErrValidation.WithDetail("cannot delete your own account")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.grants.ReplaceUserModules(ctx, id, nil); err != nil {
		// Orphaned grants only waste rows; the user is already gone.
		logger.Warnf("[user] clearing grants for deleted user %s: %v", id, err)
	}
	return nil
}

func (s *Service) ModuleIDsFor(ctx context.Context, userID string) ([]string, error) {
	if _, err := s.repo.FindByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.grants.UserModuleIDs(ctx, userID)
}

func (s *Service) SetModuleAccess(ctx context.Context, userID string, moduleIDs []string) error {
	if _, err := s.repo.FindByID(ctx, userID); err != nil {
		return err
	}
	return s.grants.ReplaceUserModules(ctx, userID, moduleIDs)
}

func (s *Service) ChangePassword(ctx context.Context, callerID, current, next string) error {
	if current == "" || next == "" {
		return errs.ErrValidation.WithDetail("current and new password required")
	}
	u, err := s.repo.FindByID(ctx, callerID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)) != nil {
		return errs.ErrToken.WithDetail("current password is incorrect")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcryptCost)
	if err != nil {
		return errs.WrapInfra(err, "hash password")
	}
	return s.repo.UpdatePassword(ctx, callerID, string(hash))
}

// EnsureAdmin seeds the bootstrap admin account if it does not exist.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	if _, err := s.repo.FindByUsername(ctx, username); err == nil {
		return nil
	}
	_, err := s.Create(ctx, username, password, security.RoleAdmin)
	if err != nil {
		return err
	}
	logger.Infof("[user] seeded admin account %q", username)
	return nil
}
