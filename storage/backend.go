// Package storage holds the interchangeable post backends and the selector that orders them.
package storage

import (
	"context"

	"github.com/deemkeen/scronth/domain"
)

type Kind string

const (
	KindRemoteAPI     Kind = "remote-api"
	KindDocumentStore Kind = "document-store"
	KindLocalStore    Kind = "local-store"
)

// PostBackend is the capability set every backend offers. Each backend answers from its own view
// of the data; nothing here merges state across backends.
//
// UpdatePost and DeletePost return an error matching domain.ErrNotFound when the id is unknown.
type PostBackend interface {
	Kind() Kind
	Available(ctx context.Context) bool
	CreatePost(ctx context.Context, post domain.Post) (domain.Post, error)
	ReadPosts(ctx context.Context) ([]domain.Post, error)
	UpdatePost(ctx context.Context, id string, patch domain.PostPatch) (domain.Post, error)
	DeletePost(ctx context.Context, id string) error
}

// PostModifier is implemented by backends that can run a read-modify-write of one post as a
// single section. fn sees the current post and returns the patch to persist; an error from fn
// aborts without writing.
type PostModifier interface {
	ModifyPost(ctx context.Context, id string, fn func(post domain.Post) (domain.PostPatch, error)) (domain.Post, error)
}

// ViewIncrementer is implemented by backends with an atomic per-field increment.
type ViewIncrementer interface {
	IncrementViews(ctx context.Context, id string) error
}

// PostPurger is implemented by backends that can drop every post of a user in one step.
type PostPurger interface {
	DeletePostsByUser(ctx context.Context, username string) (int, error)
}

// Degradable backends stop reporting themselves available after a failed request.
type Degradable interface {
	MarkUnavailable()
}

// KV is the whole-document store behind profiles, accounts and moderation lists.
//
// Update loads key into dst (leaving dst untouched when the key is absent), runs fn, and writes
// dst back when fn returns nil. The load, fn and write happen as one section.
type KV interface {
	Read(ctx context.Context, key string, dst any) (bool, error)
	Update(ctx context.Context, key string, dst any, fn func() error) error
}
