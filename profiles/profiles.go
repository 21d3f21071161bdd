// Package profiles maintains the per-user aggregate: the follower graph, the derived post
// count and the optional profile picture and admin message.
package profiles

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/deemkeen/scronth/domain"
	"github.com/deemkeen/scronth/storage"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// MaxPictureBytes caps the decoded size of a profile picture.
const MaxPictureBytes = 2 * 1024 * 1024

// PostCounter counts a user's non-blocked posts.
type PostCounter interface {
	CountPosts(ctx context.Context, username string) (int, error)
}

type profileMap map[string]*domain.Profile

// Service keeps every profile in one document. Follow and unfollow update both sides in a
// single write.
type Service struct {
	kv    storage.KV
	posts PostCounter
}

func NewService(kv storage.KV, posts PostCounter) *Service {
	return &Service{kv: kv, posts: posts}
}

// update loads the profile map, runs fn and writes the map back.
func (s *Service) update(ctx context.Context, fn func(profiles profileMap) error) error {
	var profiles profileMap
	return s.kv.Update(ctx, storage.KeyProfiles, &profiles, func() error {
		if profiles == nil {
			profiles = profileMap{}
		}
		return fn(profiles)
	})
}

func (s *Service) read(ctx context.Context) (profileMap, error) {
	profiles := profileMap{}
	if _, err := s.kv.Read(ctx, storage.KeyProfiles, &profiles); err != nil {
		return nil, err
	}
	if profiles == nil {
		profiles = profileMap{}
	}
	return profiles, nil
}

func ensure(profiles profileMap, username string) *domain.Profile {
	p, ok := profiles[username]
	if !ok || p == nil {
		p = domain.NewProfile(username)
		profiles[username] = p
	}
	p.Normalize()
	return p
}

// GetOrCreateProfile materializes the profile on first reference and recomputes its post count.
func (s *Service) GetOrCreateProfile(ctx context.Context, username string) (*domain.Profile, error) {
	if username == "" {
		return nil, domain.NewValidationError("username", "Username is required")
	}

	count, counted := s.count(ctx, username)

	var profile domain.Profile
	err := s.update(ctx, func(profiles profileMap) error {
		p := ensure(profiles, username)
		if counted {
			p.Posts = count
		}
		profile = *p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// RefreshPostCount stores the current post count for username.
func (s *Service) RefreshPostCount(ctx context.Context, username string) error {
	_, err := s.GetOrCreateProfile(ctx, username)
	return err
}

// count runs before the profile document is locked, since counting reads the post store.
func (s *Service) count(ctx context.Context, username string) (int, bool) {
	if s.posts == nil {
		return 0, false
	}
	n, err := s.posts.CountPosts(ctx, username)
	if err != nil {
		log.Warn().Err(err).Str("username", username).Msg("Could not count posts, keeping stored count")
		return 0, false
	}
	return n, true
}

func (s *Service) FollowUser(ctx context.Context, follower, followee string) error {
	if follower == "" || followee == "" {
		return domain.NewValidationError("username", "Username is required")
	}
	if follower == followee {
		return domain.ErrSelfFollow
	}

	return s.update(ctx, func(profiles profileMap) error {
		a := ensure(profiles, follower)
		b := ensure(profiles, followee)

		if !a.IsFollowing(followee) {
			a.Following = append(a.Following, followee)
		}
		if !b.IsFollowedBy(follower) {
			b.Followers = append(b.Followers, follower)
		}
		if b.IsFollowing(follower) {
			if !a.IsFriend(followee) {
				a.Friends = append(a.Friends, followee)
			}
			if !b.IsFriend(follower) {
				b.Friends = append(b.Friends, follower)
			}
		}
		return nil
	})
}

func (s *Service) UnfollowUser(ctx context.Context, follower, followee string) error {
	return s.update(ctx, func(profiles profileMap) error {
		if a, ok := profiles[follower]; ok && a != nil {
			a.Normalize()
			a.Following = lo.Without(a.Following, followee)
			a.Friends = lo.Without(a.Friends, followee)
		}
		if b, ok := profiles[followee]; ok && b != nil {
			b.Normalize()
			b.Followers = lo.Without(b.Followers, follower)
			b.Friends = lo.Without(b.Friends, follower)
		}
		return nil
	})
}

func (s *Service) IsFollowing(ctx context.Context, follower, followee string) (bool, error) {
	profiles, err := s.read(ctx)
	if err != nil {
		return false, err
	}
	p, ok := profiles[follower]
	if !ok || p == nil {
		return false, nil
	}
	return p.IsFollowing(followee), nil
}

// DeleteProfile drops the user's profile. Other users' follower lists are left as they are.
func (s *Service) DeleteProfile(ctx context.Context, username string) error {
	return s.update(ctx, func(profiles profileMap) error {
		delete(profiles, username)
		return nil
	})
}

// SetProfileMessage sets the admin note shown on a profile. An empty message clears it.
func (s *Service) SetProfileMessage(ctx context.Context, username, message string) error {
	if username == "" {
		return domain.NewValidationError("username", "Username is required")
	}
	message = strings.TrimSpace(message)
	return s.update(ctx, func(profiles profileMap) error {
		p := ensure(profiles, username)
		if message == "" {
			p.AdminMessage = nil
		} else {
			p.AdminMessage = &message
		}
		return nil
	})
}

func (s *Service) GetProfileMessage(ctx context.Context, username string) (string, error) {
	p, err := s.GetOrCreateProfile(ctx, username)
	if err != nil || p.AdminMessage == nil {
		return "", err
	}
	return *p.AdminMessage, nil
}

// SetProfilePicture stores an image data URL of at most MaxPictureBytes decoded bytes.
func (s *Service) SetProfilePicture(ctx context.Context, username, picture string) error {
	if username == "" {
		return domain.NewValidationError("username", "Username is required")
	}
	if err := validatePicture(picture); err != nil {
		return err
	}
	return s.update(ctx, func(profiles profileMap) error {
		p := ensure(profiles, username)
		p.ProfilePicture = &picture
		return nil
	})
}

func (s *Service) RemoveProfilePicture(ctx context.Context, username string) error {
	return s.update(ctx, func(profiles profileMap) error {
		if p, ok := profiles[username]; ok && p != nil {
			p.ProfilePicture = nil
		}
		return nil
	})
}

// GetProfilePicture returns the stored data URL, or "" when the user has none.
func (s *Service) GetProfilePicture(ctx context.Context, username string) (string, error) {
	profiles, err := s.read(ctx)
	if err != nil {
		return "", err
	}
	p, ok := profiles[username]
	if !ok || p == nil || p.ProfilePicture == nil {
		return "", nil
	}
	return *p.ProfilePicture, nil
}

func validatePicture(picture string) error {
	header, payload, ok := strings.Cut(picture, ",")
	if !ok || !strings.HasPrefix(header, "data:image/") {
		return domain.NewValidationError("profilePicture", "Please select an image file.")
	}
	size := len(payload)
	if strings.HasSuffix(header, ";base64") {
		size = base64.RawStdEncoding.DecodedLen(len(strings.TrimRight(payload, "=")))
	}
	if size > MaxPictureBytes {
		return domain.NewValidationError("profilePicture", "Image is too large. Maximum size is 2MB.")
	}
	return nil
}
