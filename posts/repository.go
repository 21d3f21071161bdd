// Package posts is the post repository: creation, moderation and engagement mutations over
// whichever storage backend the selector reaches first.
package posts

import (
	"context"
	"errors"
	"strings"

	"github.com/deemkeen/scronth/domain"
	"github.com/deemkeen/scronth/filter"
	"github.com/deemkeen/scronth/storage"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// CountRefresher recomputes a user's derived post count after a post is created.
type CountRefresher interface {
	RefreshPostCount(ctx context.Context, username string) error
}

// Repository runs every operation against the selector's backends in priority order. A
// mutation that falls back works on that backend's own copy of the post; nothing is merged
// across backends.
type Repository struct {
	sel    *storage.Selector
	counts CountRefresher
}

func NewRepository(sel *storage.Selector) *Repository {
	return &Repository{sel: sel}
}

func (r *Repository) SetCountRefresher(c CountRefresher) {
	r.counts = c
}

func (r *Repository) CreatePost(ctx context.Context, username, content string, image *string) (domain.Post, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.Post{}, domain.NewValidationError("username", "Username is required")
	}
	if image != nil && *image == "" {
		image = nil
	}

	if strings.TrimSpace(content) != "" {
		if res := filter.FilterContent(content); res.Blocked {
			return domain.Post{}, domain.NewValidationError("content", res.Reason)
		}
	} else {
		content = ""
	}

	post := domain.NewPost(username, content, image)
	if err := post.Validate(); err != nil {
		return domain.Post{}, err
	}

	var created domain.Post
	err := r.sel.Do(ctx, "createPost", func(b storage.PostBackend) error {
		var err error
		created, err = b.CreatePost(ctx, post)
		return err
	})
	if err != nil {
		return domain.Post{}, err
	}

	if r.counts != nil {
		if err := r.counts.RefreshPostCount(ctx, username); err != nil {
			log.Warn().Err(err).Str("username", username).Msg("Failed to refresh post count")
		}
	}
	return created, nil
}

// GetAllPosts returns every post, blocked ones included, newest first.
func (r *Repository) GetAllPosts(ctx context.Context) ([]domain.Post, error) {
	var posts []domain.Post
	err := r.sel.Do(ctx, "getAllPosts", func(b storage.PostBackend) error {
		var err error
		posts, err = b.ReadPosts(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	domain.SortNewestFirst(posts)
	return posts, nil
}

// GetFeed is the public view: non-blocked posts, newest first.
func (r *Repository) GetFeed(ctx context.Context) ([]domain.Post, error) {
	posts, err := r.GetAllPosts(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Filter(posts, func(p domain.Post, _ int) bool {
		return !p.Blocked
	}), nil
}

// GetPostsByUser returns the user's non-blocked posts, newest first.
func (r *Repository) GetPostsByUser(ctx context.Context, username string) ([]domain.Post, error) {
	posts, err := r.GetAllPosts(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Filter(posts, func(p domain.Post, _ int) bool {
		return p.Username == username && !p.Blocked
	}), nil
}

func (r *Repository) CountPosts(ctx context.Context, username string) (int, error) {
	posts, err := r.GetPostsByUser(ctx, username)
	if err != nil {
		return 0, err
	}
	return len(posts), nil
}

// GetPost returns the post with the given id, blocked or not. An unknown id is a NotFoundError.
func (r *Repository) GetPost(ctx context.Context, id string) (domain.Post, error) {
	posts, err := r.GetAllPosts(ctx)
	if err != nil {
		return domain.Post{}, err
	}
	i := domain.FindPost(posts, id)
	if i < 0 {
		return domain.Post{}, domain.NewNotFoundError("post", id)
	}
	return posts[i], nil
}

func (r *Repository) BanPost(ctx context.Context, id string) (bool, error) {
	blocked := true
	_, err := r.modify(ctx, "banPost", id, func(domain.Post) (domain.PostPatch, error) {
		return domain.PostPatch{Blocked: &blocked}, nil
	})
	return found(err)
}

// DeletePost removes the post permanently. Deleting an unknown id succeeds.
func (r *Repository) DeletePost(ctx context.Context, id string) error {
	err := r.sel.Do(ctx, "deletePost", func(b storage.PostBackend) error {
		return b.DeletePost(ctx, id)
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}

// DeletePostsByUser drops every post authored by username and reports how many went.
func (r *Repository) DeletePostsByUser(ctx context.Context, username string) (int, error) {
	var removed int
	err := r.sel.Do(ctx, "deletePostsByUser", func(b storage.PostBackend) error {
		var err error
		removed, err = purge(ctx, b, username)
		return err
	})
	return removed, err
}

func purge(ctx context.Context, b storage.PostBackend, username string) (int, error) {
	if p, ok := b.(storage.PostPurger); ok {
		return p.DeletePostsByUser(ctx, username)
	}

	posts, err := b.ReadPosts(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, post := range posts {
		if post.Username != username {
			continue
		}
		err := b.DeletePost(ctx, post.Id)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// ToggleLike adds username to the post's likes, or removes it when already there.
func (r *Repository) ToggleLike(ctx context.Context, id, username string) (bool, error) {
	if username == "" {
		return false, domain.NewValidationError("username", "Username is required")
	}
	_, err := r.modify(ctx, "toggleLike", id, func(post domain.Post) (domain.PostPatch, error) {
		var likes []string
		if lo.Contains(post.Likes, username) {
			likes = lo.Without(post.Likes, username)
		} else {
			likes = append(append([]string{}, post.Likes...), username)
		}
		return domain.PostPatch{Likes: &likes}, nil
	})
	return found(err)
}

func (r *Repository) AddReply(ctx context.Context, id, username, content string) (bool, error) {
	if username == "" {
		return false, domain.NewValidationError("username", "Username is required")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return false, domain.NewValidationError("content", "Reply cannot be empty")
	}

	reply := domain.NewReply(username, content)
	_, err := r.modify(ctx, "addReply", id, func(post domain.Post) (domain.PostPatch, error) {
		replies := append(append([]domain.Reply{}, post.Replies...), reply)
		return domain.PostPatch{Replies: &replies}, nil
	})
	return found(err)
}

// IncrementViews is best effort: an unknown id is ignored and concurrent readers on a
// backend without an atomic increment can lose counts.
func (r *Repository) IncrementViews(ctx context.Context, id string) error {
	err := r.sel.Do(ctx, "incrementViews", func(b storage.PostBackend) error {
		if vi, ok := b.(storage.ViewIncrementer); ok {
			return vi.IncrementViews(ctx, id)
		}
		_, err := modifyOn(ctx, b, id, func(post domain.Post) (domain.PostPatch, error) {
			views := post.Views + 1
			return domain.PostPatch{Views: &views}, nil
		})
		return err
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}

func (r *Repository) modify(ctx context.Context, op, id string, fn func(domain.Post) (domain.PostPatch, error)) (domain.Post, error) {
	var updated domain.Post
	err := r.sel.Do(ctx, op, func(b storage.PostBackend) error {
		var err error
		updated, err = modifyOn(ctx, b, id, fn)
		return err
	})
	return updated, err
}

// modifyOn reads and writes the same backend. Backends without a PostModifier get a plain
// read followed by a patch, which can lose updates under concurrent writers.
func modifyOn(ctx context.Context, b storage.PostBackend, id string, fn func(domain.Post) (domain.PostPatch, error)) (domain.Post, error) {
	if m, ok := b.(storage.PostModifier); ok {
		return m.ModifyPost(ctx, id, fn)
	}

	posts, err := b.ReadPosts(ctx)
	if err != nil {
		return domain.Post{}, err
	}
	i := domain.FindPost(posts, id)
	if i < 0 {
		return domain.Post{}, domain.NewNotFoundError("post", id)
	}
	posts[i].Normalize()
	patch, err := fn(posts[i])
	if err != nil {
		return domain.Post{}, err
	}
	if patch.Empty() {
		return posts[i], nil
	}
	return b.UpdatePost(ctx, id, patch)
}

// found turns a not-found answer into a plain false.
func found(err error) (bool, error) {
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
