package board

import (
	"context"
	"strings"
	"time"

	"NioBoard/global"
	"NioBoard/logger"
	"NioBoard/tools/errs"
	"NioBoard/tools/ids"
	"NioBoard/tools/security"
)

type Service struct {
	repo Repo
}

func NewService(repo Repo) *Service { return &Service{repo: repo} }

// AccessibleModules is the single authority for "which modules may this
// principal read": admins see everything, users their granted set.
func (s *Service) AccessibleModules(ctx context.Context, p security.Principal) ([]Module, error) {
	if p.IsAdmin() {
		return s.repo.ListModules(ctx)
	}
	mids, err := s.repo.GrantedModuleIDs(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return s.repo.ModulesByIDs(ctx, mids)
}

// RequireAccess resolves a slug and enforces the grant: NotFound when
// the slug is unknown, Access when the principal lacks the grant.
func (s *Service) RequireAccess(ctx context.Context, p security.Principal, slug string) (Module, error) {
	m, err := s.repo.FindModuleBySlug(ctx, slug)
	if err != nil {
		return Module{}, err
	}
	if p.IsAdmin() {
		return m, nil
	}
	ok, err := s.repo.HasGrant(ctx, p.ID, m.ID)
	if err != nil {
		return Module{}, err
	}
	if !ok {
		return Module{}, errs.ErrAccess
	}
	return m, nil
}

// GrantedUserIDs lists the non-admin users holding the module's grant;
// the fanout uses it to target activity signals.
func (s *Service) GrantedUserIDs(ctx context.Context, moduleID string) ([]string, error) {
	return s.repo.GrantedUserIDs(ctx, moduleID)
}

func (s *Service) AllModules(ctx context.Context) ([]Module, error) {
	return s.repo.ListModules(ctx)
}

func (s *Service) UserModuleIDs(ctx context.Context, userID string) ([]string, error) {
	return s.repo.GrantedModuleIDs(ctx, userID)
}

func (s *Service) ReplaceUserModules(ctx context.Context, userID string, moduleIDs []string) error {
	return s.repo.ReplaceGrants(ctx, userID, moduleIDs)
}

func (s *Service) ChartsForModule(ctx context.Context, p security.Principal, slug string) ([]Chart, error) {
	m, err := s.RequireAccess(ctx, p, slug)
	if err != nil {
		return nil, err
	}
	// Non-admins only see charts toggled visible.
	return s.repo.ChartsByModule(ctx, m.ID, !p.IsAdmin())
}

func (s *Service) CreateChart(ctx context.Context, moduleID, title, embedURL string) (Chart, error) {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(embedURL) == "" {
		return Chart{}, errs.ErrValidation.WithDetail("title and embed url required")
	}
	c := Chart{
		ID:        ids.GenerateString(),
		ModuleID:  moduleID,
		Title:     strings.TrimSpace(title),
		EmbedURL:  strings.TrimSpace(embedURL),
		IsVisible: true,
		CreatedAt: time.Now(),
	}
	if err := s.repo.InsertChart(ctx, c); err != nil {
		return Chart{}, err
	}
	return c, nil
}

func (s *Service) SetChartVisibility(ctx context.Context, id string, visible bool) error {
	return s.repo.SetChartVisibility(ctx, id, visible)
}

func (s *Service) DeleteChart(ctx context.Context, id string) error {
	return s.repo.DeleteChart(ctx, id)
}

// EnsureModules seeds the module catalog from config at boot so a
// fresh deployment starts with a usable sidebar.
func (s *Service) EnsureModules(ctx context.Context, seeds []global.ModuleSeed) error {
	for _, seed := range seeds {
		if seed.Slug == "" {
			continue
		}
		m := Module{
			ID:        ids.GenerateString(),
			Slug:      seed.Slug,
			Name:      seed.Name,
			CreatedAt: time.Now(),
		}
		if err := s.repo.UpsertModule(ctx, m); err != nil {
			return err
		}
		logger.Debug("[board] module ensured: " + seed.Slug)
	}
	return nil
}
