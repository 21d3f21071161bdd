package posts

import (
	"context"
	"errors"

	"github.com/deemkeen/scronth/domain"
	"github.com/samber/lo"
)

// lookup returns the post, or ok=false when it does not exist.
func (r *Repository) lookup(ctx context.Context, id string) (domain.Post, bool, error) {
	post, err := r.GetPost(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Post{}, false, nil
	}
	if err != nil {
		return domain.Post{}, false, err
	}
	return post, true, nil
}

func (r *Repository) HasLiked(ctx context.Context, id, username string) (bool, error) {
	if username == "" {
		return false, nil
	}
	post, ok, err := r.lookup(ctx, id)
	if !ok || err != nil {
		return false, err
	}
	return lo.Contains(post.Likes, username), nil
}

func (r *Repository) GetLikes(ctx context.Context, id string) ([]string, error) {
	post, ok, err := r.lookup(ctx, id)
	if !ok || err != nil {
		return []string{}, err
	}
	return post.Likes, nil
}

func (r *Repository) LikeCount(ctx context.Context, id string) (int, error) {
	likes, err := r.GetLikes(ctx, id)
	return len(likes), err
}

// GetReplies returns replies in the order they were added.
func (r *Repository) GetReplies(ctx context.Context, id string) ([]domain.Reply, error) {
	post, ok, err := r.lookup(ctx, id)
	if !ok || err != nil {
		return []domain.Reply{}, err
	}
	return post.Replies, nil
}

func (r *Repository) GetViews(ctx context.Context, id string) (int, error) {
	post, ok, err := r.lookup(ctx, id)
	if !ok || err != nil {
		return 0, err
	}
	return post.Views, nil
}
