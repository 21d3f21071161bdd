package profiles

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/deemkeen/scronth/domain"
	"github.com/deemkeen/scronth/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedCounter struct {
	counts map[string]int
	err    error
}

func (f *fixedCounter) CountPosts(_ context.Context, username string) (int, error) {
	return f.counts[username], f.err
}

func setupService(t *testing.T, counter PostCounter) *Service {
	t.Helper()
	local, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return NewService(local, counter)
}

func TestGetOrCreateProfile(t *testing.T) {
	s := setupService(t, &fixedCounter{counts: map[string]int{"carol": 3}})
	ctx := context.Background()

	p, err := s.GetOrCreateProfile(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, "carol", p.Username)
	assert.Equal(t, 3, p.Posts)
	assert.Empty(t, p.Followers)
	assert.Empty(t, p.Following)
	assert.Empty(t, p.Friends)
	assert.Nil(t, p.ProfilePicture)
	assert.NotEmpty(t, p.CreatedAt)

	again, err := s.GetOrCreateProfile(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, p.CreatedAt, again.CreatedAt)
}

func TestGetOrCreateProfileRequiresUsername(t *testing.T) {
	s := setupService(t, nil)
	_, err := s.GetOrCreateProfile(context.Background(), "")
	assert.True(t, domain.IsValidationError(err))
}

func TestPostCountKeptWhenCountingFails(t *testing.T) {
	counter := &fixedCounter{counts: map[string]int{"carol": 2}}
	s := setupService(t, counter)
	ctx := context.Background()

	require.NoError(t, s.RefreshPostCount(ctx, "carol"))

	counter.err = errors.New("all backends down")
	p, err := s.GetOrCreateProfile(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Posts)
}

func TestFollowUnfollowRoundTrip(t *testing.T) {
	s := setupService(t, nil)
	ctx := context.Background()

	require.NoError(t, s.FollowUser(ctx, "alice", "bob"))
	require.NoError(t, s.FollowUser(ctx, "alice", "bob"))

	alice, _ := s.GetOrCreateProfile(ctx, "alice")
	bob, _ := s.GetOrCreateProfile(ctx, "bob")
	assert.Equal(t, []string{"bob"}, alice.Following)
	assert.Equal(t, []string{"alice"}, bob.Followers)
	assert.Empty(t, alice.Friends)

	following, err := s.IsFollowing(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, following)

	require.NoError(t, s.UnfollowUser(ctx, "alice", "bob"))
	require.NoError(t, s.UnfollowUser(ctx, "alice", "bob"))

	alice, _ = s.GetOrCreateProfile(ctx, "alice")
	bob, _ = s.GetOrCreateProfile(ctx, "bob")
	assert.Empty(t, alice.Following)
	assert.Empty(t, alice.Followers)
	assert.Empty(t, bob.Following)
	assert.Empty(t, bob.Followers)
}

func TestMutualFollowMakesFriends(t *testing.T) {
	s := setupService(t, nil)
	ctx := context.Background()

	require.NoError(t, s.FollowUser(ctx, "alice", "bob"))
	require.NoError(t, s.FollowUser(ctx, "bob", "alice"))

	alice, _ := s.GetOrCreateProfile(ctx, "alice")
	bob, _ := s.GetOrCreateProfile(ctx, "bob")
	assert.Equal(t, []string{"bob"}, alice.Friends)
	assert.Equal(t, []string{"alice"}, bob.Friends)

	require.NoError(t, s.UnfollowUser(ctx, "bob", "alice"))

	alice, _ = s.GetOrCreateProfile(ctx, "alice")
	bob, _ = s.GetOrCreateProfile(ctx, "bob")
	assert.Empty(t, alice.Friends)
	assert.Empty(t, bob.Friends)
	assert.Equal(t, []string{"bob"}, alice.Following, "alice still follows bob")
	assert.Equal(t, []string{"alice"}, bob.Followers)
}

func TestSelfFollowRejected(t *testing.T) {
	s := setupService(t, nil)

	err := s.FollowUser(context.Background(), "alice", "alice")
	assert.ErrorIs(t, err, domain.ErrSelfFollow)
	assert.True(t, domain.IsValidationError(err))
}

func TestIsFollowingUnknownUser(t *testing.T) {
	s := setupService(t, nil)

	following, err := s.IsFollowing(context.Background(), "ghost", "bob")
	require.NoError(t, err)
	assert.False(t, following)
}

func TestDeleteProfile(t *testing.T) {
	s := setupService(t, nil)
	ctx := context.Background()
	require.NoError(t, s.SetProfileMessage(ctx, "bob", "be nice"))

	require.NoError(t, s.DeleteProfile(ctx, "bob"))

	msg, err := s.GetProfileMessage(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, msg, "a fresh profile is created without the old message")
}

func TestProfileMessage(t *testing.T) {
	s := setupService(t, nil)
	ctx := context.Background()

	require.NoError(t, s.SetProfileMessage(ctx, "bob", "  Warned for spam  "))
	msg, err := s.GetProfileMessage(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "Warned for spam", msg)

	require.NoError(t, s.SetProfileMessage(ctx, "bob", ""))
	msg, err = s.GetProfileMessage(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, msg)
}

func TestProfilePicture(t *testing.T) {
	s := setupService(t, nil)
	ctx := context.Background()
	picture := "data:image/png;base64,iVBORw0KGgo="

	require.NoError(t, s.SetProfilePicture(ctx, "alice", picture))
	got, err := s.GetProfilePicture(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, picture, got)

	require.NoError(t, s.RemoveProfilePicture(ctx, "alice"))
	got, err = s.GetProfilePicture(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestProfilePictureValidation(t *testing.T) {
	s := setupService(t, nil)
	ctx := context.Background()

	err := s.SetProfilePicture(ctx, "alice", "data:text/plain;base64,aGVsbG8=")
	assert.True(t, domain.IsValidationError(err))

	huge := "data:image/png;base64," + strings.Repeat("A", (MaxPictureBytes/3)*4+8)
	err = s.SetProfilePicture(ctx, "alice", huge)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Maximum size is 2MB")

	got, _ := s.GetProfilePicture(ctx, "alice")
	assert.Empty(t, got)
}
