package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/deemkeen/scronth/domain"
	"github.com/deemkeen/scronth/storage"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// postsAPI is the HTTP face of a post store, the collaborator the remote backend talks to.
// It stores what it is given; content filtering happens in the client's repository.
type postsAPI struct {
	store *storage.Selector
}

type createPostBody struct {
	Username string  `json:"username" binding:"required"`
	Content  string  `json:"content"`
	Image    *string `json:"image"`
}

func (a *postsAPI) list(c *gin.Context) {
	ctx := c.Request.Context()
	var posts []domain.Post
	err := a.store.Do(ctx, "api.listPosts", func(b storage.PostBackend) error {
		var err error
		posts, err = b.ReadPosts(ctx)
		return err
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to get posts")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get posts"})
		return
	}
	domain.SortNewestFirst(posts)
	c.JSON(http.StatusOK, posts)
}

func (a *postsAPI) create(c *gin.Context) {
	var body createPostBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username is required"})
		return
	}
	body.Username = strings.TrimSpace(body.Username)
	if body.Username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username is required"})
		return
	}
	if body.Image != nil && *body.Image == "" {
		body.Image = nil
	}

	post := domain.NewPost(body.Username, body.Content, body.Image)
	if err := post.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Post must have content or image"})
		return
	}

	ctx := c.Request.Context()
	var created domain.Post
	err := a.store.Do(ctx, "api.createPost", func(b storage.PostBackend) error {
		var err error
		created, err = b.CreatePost(ctx, post)
		return err
	})
	if err != nil {
		log.Error().Err(err).Str("username", body.Username).Msg("Failed to save post")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save post to storage"})
		return
	}

	log.Info().Str("id", created.Id).Str("username", created.Username).Msg("New post created")
	c.JSON(http.StatusCreated, gin.H{"success": true, "post": created})
}

// update merges the mutable fields present in the body. Identity fields are ignored.
func (a *postsAPI) update(c *gin.Context) {
	var patch domain.PostPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	var updated domain.Post
	err := a.store.Do(ctx, "api.updatePost", func(b storage.PostBackend) error {
		var err error
		updated, err = b.UpdatePost(ctx, id, patch)
		return err
	})
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("Failed to update post")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update post"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "post": updated})
}

func (a *postsAPI) remove(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	err := a.store.Do(ctx, "api.deletePost", func(b storage.PostBackend) error {
		return b.DeletePost(ctx, id)
	})
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("Failed to delete post")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete post"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
