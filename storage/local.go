package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/deemkeen/scronth/domain"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	KeyPosts    = "posts"
	KeyProfiles = "profiles"
	KeyAdmins   = "admins"
	KeyBanned   = "banned"
	KeyUsers    = "users"
)

// LocalStore keeps every collection as one JSON file in dir, rewritten wholesale on each change.
// It is the terminal fallback and is always available.
//
// The mutex only serializes callers inside this process. Two processes sharing dir can still
// lose each other's updates.
type LocalStore struct {
	dir string
	mu  sync.Mutex
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &LocalStore{dir: dir}
	postsFile := s.path(KeyPosts)
	if _, err := os.Stat(postsFile); errors.Is(err, fs.ErrNotExist) {
		if err := s.write(KeyPosts, []domain.Post{}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *LocalStore) Dir() string {
	return s.dir
}

func (s *LocalStore) Kind() Kind {
	return KindLocalStore
}

func (s *LocalStore) Available(context.Context) bool {
	return true
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// load decodes key into dst. A missing file leaves dst untouched and reports false.
func (s *LocalStore) load(key string, dst any) (bool, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *LocalStore) write(key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Read implements KV.
func (s *LocalStore) Read(ctx context.Context, key string, dst any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(key, dst)
}

// Update implements KV.
func (s *LocalStore) Update(ctx context.Context, key string, dst any, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.load(key, dst); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	return s.write(key, dst)
}

// WithPostsTransaction is the one read-modify-write section for the post collection. fn gets the
// whole list and returns the list to persist. Returning an error skips the write.
func (s *LocalStore) WithPostsTransaction(ctx context.Context, fn func(posts []domain.Post) ([]domain.Post, error)) error {
	var posts []domain.Post
	return s.Update(ctx, KeyPosts, &posts, func() error {
		if posts == nil {
			posts = []domain.Post{}
		}
		next, err := fn(posts)
		if err != nil {
			return err
		}
		posts = next
		return nil
	})
}

func (s *LocalStore) CreatePost(ctx context.Context, post domain.Post) (domain.Post, error) {
	post.Normalize()
	err := s.WithPostsTransaction(ctx, func(posts []domain.Post) ([]domain.Post, error) {
		return append(posts, post), nil
	})
	if err != nil {
		return domain.Post{}, err
	}
	log.Debug().Str("id", post.Id).Str("username", post.Username).Msg("Post saved to local store")
	return post, nil
}

func (s *LocalStore) ReadPosts(ctx context.Context) ([]domain.Post, error) {
	var posts []domain.Post
	if _, err := s.Read(ctx, KeyPosts, &posts); err != nil {
		return nil, err
	}
	for i := range posts {
		posts[i].Normalize()
	}
	if posts == nil {
		posts = []domain.Post{}
	}
	return posts, nil
}

func (s *LocalStore) UpdatePost(ctx context.Context, id string, patch domain.PostPatch) (domain.Post, error) {
	return s.ModifyPost(ctx, id, func(domain.Post) (domain.PostPatch, error) {
		return patch, nil
	})
}

func (s *LocalStore) ModifyPost(ctx context.Context, id string, fn func(post domain.Post) (domain.PostPatch, error)) (domain.Post, error) {
	var updated domain.Post
	err := s.WithPostsTransaction(ctx, func(posts []domain.Post) ([]domain.Post, error) {
		i := domain.FindPost(posts, id)
		if i < 0 {
			return nil, domain.NewNotFoundError("post", id)
		}
		posts[i].Normalize()
		patch, err := fn(posts[i])
		if err != nil {
			return nil, err
		}
		patch.Apply(&posts[i])
		posts[i].Normalize()
		updated = posts[i]
		return posts, nil
	})
	return updated, err
}

func (s *LocalStore) DeletePost(ctx context.Context, id string) error {
	return s.WithPostsTransaction(ctx, func(posts []domain.Post) ([]domain.Post, error) {
		i := domain.FindPost(posts, id)
		if i < 0 {
			return nil, domain.NewNotFoundError("post", id)
		}
		return append(posts[:i], posts[i+1:]...), nil
	})
}

func (s *LocalStore) IncrementViews(ctx context.Context, id string) error {
	return s.WithPostsTransaction(ctx, func(posts []domain.Post) ([]domain.Post, error) {
		i := domain.FindPost(posts, id)
		if i < 0 {
			return nil, domain.NewNotFoundError("post", id)
		}
		posts[i].Views++
		return posts, nil
	})
}

func (s *LocalStore) DeletePostsByUser(ctx context.Context, username string) (int, error) {
	removed := 0
	err := s.WithPostsTransaction(ctx, func(posts []domain.Post) ([]domain.Post, error) {
		kept := lo.Filter(posts, func(p domain.Post, _ int) bool {
			return p.Username != username
		})
		removed = len(posts) - len(kept)
		return kept, nil
	})
	return removed, err
}
