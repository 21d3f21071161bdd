// Package moderation holds the admin and ban lists and the cascades that follow from them.
package moderation

import (
	"context"

	"github.com/deemkeen/scronth/domain"
	"github.com/deemkeen/scronth/storage"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// protectedAccounts are always admins and can never be demoted, banned or deleted.
var protectedAccounts = []string{"silas.palmer", "Scronth"}

// IsProtected is the one check every moderation mutator consults. Account names are
// case-sensitive, so only the exact names match.
func IsProtected(username string) bool {
	return lo.Contains(protectedAccounts, username)
}

type AccountRemover interface {
	DeleteAccount(ctx context.Context, username string) error
}

type ProfileRemover interface {
	DeleteProfile(ctx context.Context, username string) error
}

type PostPurger interface {
	DeletePostsByUser(ctx context.Context, username string) (int, error)
}

// BanList is the read side of the banned set.
type BanList struct {
	kv storage.KV
}

func NewBanList(kv storage.KV) *BanList {
	return &BanList{kv: kv}
}

func (b *BanList) IsBanned(ctx context.Context, username string) (bool, error) {
	banned, err := b.List(ctx)
	if err != nil {
		return false, err
	}
	return lo.Contains(banned, username), nil
}

func (b *BanList) List(ctx context.Context) ([]string, error) {
	return readList(ctx, b.kv, storage.KeyBanned)
}

type Service struct {
	kv       storage.KV
	bans     *BanList
	accounts AccountRemover
	profiles ProfileRemover
	posts    PostPurger
}

func NewService(kv storage.KV, accounts AccountRemover, profiles ProfileRemover, posts PostPurger) *Service {
	return &Service{
		kv:       kv,
		bans:     NewBanList(kv),
		accounts: accounts,
		profiles: profiles,
		posts:    posts,
	}
}

func (s *Service) BanList() *BanList {
	return s.bans
}

func (s *Service) IsAdmin(ctx context.Context, username string) (bool, error) {
	if IsProtected(username) {
		return true, nil
	}
	admins, err := s.ListAdmins(ctx)
	if err != nil {
		return false, err
	}
	return lo.Contains(admins, username), nil
}

// ListAdmins returns the granted admins. Protected accounts are admins without being listed.
func (s *Service) ListAdmins(ctx context.Context) ([]string, error) {
	return readList(ctx, s.kv, storage.KeyAdmins)
}

// SetAdminStatus grants unconditionally. Revoking a protected account fails with
// ErrProtectedAccount and leaves the list untouched.
func (s *Service) SetAdminStatus(ctx context.Context, username string, grant bool) (bool, error) {
	if !grant && IsProtected(username) {
		return false, domain.ErrProtectedAccount
	}
	err := updateList(ctx, s.kv, storage.KeyAdmins, func(admins []string) []string {
		if grant {
			return addMember(admins, username)
		}
		return lo.Without(admins, username)
	})
	if err != nil {
		return false, err
	}
	log.Info().Str("username", username).Bool("admin", grant).Msg("Admin status changed")
	return true, nil
}

func (s *Service) IsBanned(ctx context.Context, username string) (bool, error) {
	return s.bans.IsBanned(ctx, username)
}

func (s *Service) ListBanned(ctx context.Context) ([]string, error) {
	return s.bans.List(ctx)
}

// BanAccount adds username to the banned set and ends sess when it belongs to that user.
// Posts are untouched.
func (s *Service) BanAccount(ctx context.Context, sess *domain.Session, username string) (bool, error) {
	if IsProtected(username) {
		return false, domain.ErrProtectedAccount
	}
	err := updateList(ctx, s.kv, storage.KeyBanned, func(banned []string) []string {
		return addMember(banned, username)
	})
	if err != nil {
		return false, err
	}
	if sess.Is(username) {
		sess.Logout()
	}
	log.Info().Str("username", username).Msg("Account banned")
	return true, nil
}

// UnbanAccount always succeeds, whether or not username was banned.
func (s *Service) UnbanAccount(ctx context.Context, username string) (bool, error) {
	err := updateList(ctx, s.kv, storage.KeyBanned, func(banned []string) []string {
		return lo.Without(banned, username)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteUser removes the account, the profile, every post the user authored and their ban
// and admin entries, then ends sess when it belongs to that user. Replies the user left
// on other users' posts stay.
func (s *Service) DeleteUser(ctx context.Context, sess *domain.Session, username string) (bool, error) {
	if IsProtected(username) {
		return false, domain.ErrProtectedAccount
	}

	removed, err := s.posts.DeletePostsByUser(ctx, username)
	if err != nil {
		return false, err
	}
	if err := s.profiles.DeleteProfile(ctx, username); err != nil {
		return false, err
	}
	if err := s.accounts.DeleteAccount(ctx, username); err != nil {
		return false, err
	}
	for _, key := range []string{storage.KeyBanned, storage.KeyAdmins} {
		err := updateList(ctx, s.kv, key, func(list []string) []string {
			return lo.Without(list, username)
		})
		if err != nil {
			return false, err
		}
	}

	if sess.Is(username) {
		sess.Logout()
	}
	log.Info().Str("username", username).Int("posts", removed).Msg("User deleted")
	return true, nil
}

func readList(ctx context.Context, kv storage.KV, key string) ([]string, error) {
	var list []string
	if _, err := kv.Read(ctx, key, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []string{}
	}
	return list, nil
}

func updateList(ctx context.Context, kv storage.KV, key string, fn func([]string) []string) error {
	var list []string
	return kv.Update(ctx, key, &list, func() error {
		if list == nil {
			list = []string{}
		}
		list = fn(list)
		return nil
	})
}

func addMember(list []string, username string) []string {
	if lo.Contains(list, username) {
		return list
	}
	return append(list, username)
}
