// Package accounts stores usernames and passwords and binds them to sessions.
//
// Passwords are kept as given. Authentication security is out of scope for this app.
package accounts

import (
	"context"
	"errors"
	"strings"

	"github.com/deemkeen/scronth/domain"
	"github.com/deemkeen/scronth/storage"
	"github.com/deemkeen/scronth/util"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

// BanChecker reports whether a user may not log in.
type BanChecker interface {
	IsBanned(ctx context.Context, username string) (bool, error)
}

type credentials struct {
	Username string `validate:"min=3"`
	Password string `validate:"min=4"`
}

var fieldMessages = map[string]string{
	"Username": "Username must be at least 3 characters",
	"Password": "Password must be at least 4 characters",
}

type userMap map[string]string

type Service struct {
	kv       storage.KV
	bans     BanChecker
	validate *validator.Validate
}

func NewService(kv storage.KV, bans BanChecker) *Service {
	return &Service{
		kv:       kv,
		bans:     bans,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *Service) check(c credentials) error {
	err := s.validate.Struct(c)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		field := verrs[0].Field()
		return domain.NewValidationError(strings.ToLower(field), fieldMessages[field])
	}
	return err
}

func (s *Service) users(ctx context.Context) (userMap, error) {
	users := userMap{}
	if _, err := s.kv.Read(ctx, storage.KeyUsers, &users); err != nil {
		return nil, err
	}
	if users == nil {
		users = userMap{}
	}
	return users, nil
}

// Signup creates the account and logs sess in as the new user.
func (s *Service) Signup(ctx context.Context, sess *domain.Session, username, password string) error {
	username = strings.TrimSpace(username)

	var users userMap
	err := s.kv.Update(ctx, storage.KeyUsers, &users, func() error {
		if users == nil {
			users = userMap{}
		}
		if _, ok := users[username]; ok {
			return domain.ErrUsernameTaken
		}
		if err := s.check(credentials{Username: username, Password: password}); err != nil {
			return err
		}
		users[username] = password
		return nil
	})
	if err != nil {
		return err
	}

	sess.Login(username)
	log.Info().Str("username", username).Msg("Account created")
	return nil
}

// Login checks the credentials, then the ban list. A banned user is logged straight back out.
func (s *Service) Login(ctx context.Context, sess *domain.Session, username, password string) error {
	username = strings.TrimSpace(username)
	users, err := s.users(ctx)
	if err != nil {
		return err
	}
	stored, ok := users[username]
	if !ok || stored != password {
		return domain.ErrInvalidCredentials
	}
	sess.Login(username)

	if s.bans != nil {
		banned, err := s.bans.IsBanned(ctx, username)
		if err != nil {
			sess.Logout()
			return err
		}
		if banned {
			sess.Logout()
			return domain.ErrAccountBanned
		}
	}
	return nil
}

func (s *Service) Logout(sess *domain.Session) {
	sess.Logout()
}

func (s *Service) DeleteAccount(ctx context.Context, username string) error {
	var users userMap
	return s.kv.Update(ctx, storage.KeyUsers, &users, func() error {
		if users == nil {
			users = userMap{}
		}
		delete(users, username)
		return nil
	})
}

func (s *Service) Exists(ctx context.Context, username string) (bool, error) {
	users, err := s.users(ctx)
	if err != nil {
		return false, err
	}
	_, ok := users[username]
	return ok, nil
}

// SeedOwner sets the owner's password on every boot. A template password is never seeded.
func (s *Service) SeedOwner(ctx context.Context, username, password string) error {
	if username == "" || util.IsPlaceholder(password) {
		log.Warn().Str("username", username).Msg("Owner password not configured, skipping owner account")
		return nil
	}
	var users userMap
	return s.kv.Update(ctx, storage.KeyUsers, &users, func() error {
		if users == nil {
			users = userMap{}
		}
		users[username] = password
		return nil
	})
}
