package message

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"NioBoard/logger"
	"NioBoard/module/board"
	"NioBoard/tools/errs"
	"NioBoard/tools/ids"
	"NioBoard/tools/safe"
	"NioBoard/tools/security"
)

// Access is the slice of the board service the message core consumes:
// grant resolution and the per-module recipient set for fanout.
type Access interface {
	AccessibleModules(ctx context.Context, p security.Principal) ([]board.Module, error)
	RequireAccess(ctx context.Context, p security.Principal, slug string) (board.Module, error)
	GrantedUserIDs(ctx context.Context, moduleID string) ([]string, error)
}

// Notifier pushes to live connections. Both calls are best effort: a
// failed or dropped delivery is repaired by the client's next poll.
type Notifier interface {
	BroadcastMessage(moduleSlug string, msg Message)
	BroadcastActivity(moduleSlug, senderID string, allowedUserIDs []string)
}

// NopNotifier stands in before the gateway is wired (and in tests that
// don't care about fanout).
type NopNotifier struct{}

func (NopNotifier) BroadcastMessage(string, Message)           {}
func (NopNotifier) BroadcastActivity(string, string, []string) {}

type Service struct {
	repo          Repo
	access        Access
	notifier      Notifier
	retentionDays int
	now           func() time.Time
}

func NewService(repo Repo, access Access, retentionDays int) *Service {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &Service{
		repo:          repo,
		access:        access,
		notifier:      NopNotifier{},
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

// SetNotifier injects the gateway once it exists; boot order is store
// first, gateway second.
func (s *Service) SetNotifier(n Notifier) {
	if n != nil {
		s.notifier = n
	}
}

// SetClock is test plumbing.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func validateBody(body string) (string, error) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return "", errs.ErrValidation.WithDetail("message cannot be empty")
	}
	if utf8.RuneCountInString(trimmed) > MaxBodyRunes {
		return "", errs.ErrValidation.WithDetail("message too long (max 500 characters)")
	}
	return trimmed, nil
}

// Post validates, persists, then fans out. The write is durable before
// any push; fanout failure is logged and swallowed (at-least-once: the
// message is already retrievable by polling).
func (s *Service) Post(ctx context.Context, p security.Principal, slug, body string) (Message, error) {
	trimmed, err := validateBody(body)
	if err != nil {
		return Message{}, err
	}
	mod, err := s.access.RequireAccess(ctx, p, slug)
	if err != nil {
		return Message{}, err
	}
	msg := Message{
		ID:        ids.GenerateString(),
		ModuleID:  mod.ID,
		UserID:    p.ID,
		Username:  p.Username,
		Role:      p.Role,
		Body:      trimmed,
		CreatedAt: s.now(),
	}
	if err := s.repo.Insert(ctx, msg); err != nil {
		return Message{}, err
	}

	s.notifier.BroadcastMessage(mod.Slug, msg)

	allowed, err := s.access.GrantedUserIDs(ctx, mod.ID)
	if err != nil {
		// Persisted fine; only the push is degraded.
		logger.Warnf("[message] recipient set for %s unavailable: %v", mod.Slug, err)
		allowed = nil
	}
	s.notifier.BroadcastActivity(mod.Slug, p.ID, allowed)

	return msg, nil
}

func (s *Service) List(ctx context.Context, p security.Principal, slug string) ([]Message, error) {
	mod, err := s.access.RequireAccess(ctx, p, slug)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByModule(ctx, mod.ID)
}

// Delete is admin-only. Clients that already rendered the message are
// not told to drop it; there is no retraction push.
func (s *Service) Delete(ctx context.Context, p security.Principal, id string) error {
	if !p.IsAdmin() {
		return errs.ErrAuthorization.WithDetail("only admins can delete messages")
	}
	return s.repo.Delete(ctx, id)
}

// MarkRead upserts the caller's watermark for the module. Access is
// enforced the same way Post enforces it, so marking a module you
// cannot see fails instead of silently writing.
func (s *Service) MarkRead(ctx context.Context, p security.Principal, slug string) error {
	mod, err := s.access.RequireAccess(ctx, p, slug)
	if err != nil {
		return err
	}
	return s.repo.UpsertWatermark(ctx, p.ID, mod.ID, s.now())
}

// Unread maps module slug -> unread count for every module the caller
// can access; modules without new messages appear with 0 so sidebar
// badges clear deterministically.
func (s *Service) Unread(ctx context.Context, p security.Principal) (map[string]int64, error) {
	mods, err := s.access.AccessibleModules(ctx, p)
	if err != nil {
		return nil, err
	}
	mids := make([]string, 0, len(mods))
	for _, m := range mods {
		mids = append(mids, m.ID)
	}
	counts, err := s.repo.UnreadCounts(ctx, p.ID, mids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(mods))
	for _, m := range mods {
		out[m.Slug] = counts[m.ID]
	}
	return out, nil
}

// SweepExpired hard-deletes messages older than the retention window.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	cutoff := s.now().AddDate(0, 0, -s.retentionDays)
	return s.repo.DeleteOlderThan(ctx, cutoff)
}

// StartSweeper runs the sweep at boot and every 24h until ctx cancels.
// Errors are logged and swallowed; the timer path must never crash.
func (s *Service) StartSweeper(ctx context.Context) {
	run := func() {
		sctx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		n, err := s.SweepExpired(sctx)
		if err != nil {
			logger.Errorf("[message] retention sweep failed: %v", err)
			return
		}
		if n > 0 {
			logger.Infof("[message] retention sweep deleted %d old messages", n)
		}
	}
	safe.Go("retention-sweeper", func() {
		run()
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				run()
			}
		}
	})
}
