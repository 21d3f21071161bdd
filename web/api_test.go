package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/deemkeen/scronth/domain"
	"github.com/deemkeen/scronth/posts"
	"github.com/deemkeen/scronth/storage"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type postEnvelope struct {
	Success bool        `json:"success"`
	Post    domain.Post `json:"post"`
	Error   string      `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dst))
}

func TestHealth(t *testing.T) {
	s := setupServer(t)

	w := s.request(http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	decode(t, w, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "Scronth server is running", body["message"])
}

func TestCreatePostEndpoint(t *testing.T) {
	s := setupServer(t)

	w := s.request(http.MethodPost, "/api/posts", `{"username":"alice","content":"hello"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var env postEnvelope
	decode(t, w, &env)
	assert.True(t, env.Success)
	assert.NotEmpty(t, env.Post.Id)
	assert.Equal(t, "alice", env.Post.Username)
	assert.Equal(t, "hello", env.Post.Content)
	assert.Empty(t, env.Post.Likes)
	assert.NotNil(t, env.Post.Likes)

	stored, err := s.local.ReadPosts(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, env.Post.Id, stored[0].Id)
}

func TestCreatePostEndpointRejectsBadInput(t *testing.T) {
	s := setupServer(t)

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"missing username", `{"content":"hello"}`, "Username is required"},
		{"blank username", `{"username":"   ","content":"hello"}`, "Username is required"},
		{"no content or image", `{"username":"alice","content":""}`, "Post must have content or image"},
		{"empty image", `{"username":"alice","image":""}`, "Post must have content or image"},
		{"malformed", `{"username":`, "Username is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.request(http.MethodPost, "/api/posts", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var env postEnvelope
			decode(t, w, &env)
			assert.Equal(t, tt.message, env.Error)
		})
	}

	stored, err := s.local.ReadPosts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestCreatePostEndpointImageOnly(t *testing.T) {
	s := setupServer(t)

	w := s.request(http.MethodPost, "/api/posts", `{"username":"alice","image":"data:image/png;base64,AAAA"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var env postEnvelope
	decode(t, w, &env)
	require.NotNil(t, env.Post.Image)
	assert.Equal(t, "data:image/png;base64,AAAA", *env.Post.Image)
}

func TestListPostsEndpointNewestFirst(t *testing.T) {
	s := setupServer(t)
	ctx := context.Background()

	first, err := s.local.CreatePost(ctx, domain.NewPost("alice", "first", nil))
	require.NoError(t, err)
	second, err := s.local.CreatePost(ctx, domain.NewPost("bob", "second", nil))
	require.NoError(t, err)

	w := s.request(http.MethodGet, "/api/posts", "")
	require.Equal(t, http.StatusOK, w.Code)

	var list []domain.Post
	decode(t, w, &list)
	require.Len(t, list, 2)
	assert.Equal(t, second.Id, list[0].Id)
	assert.Equal(t, first.Id, list[1].Id)
}

func TestListPostsEndpointEmpty(t *testing.T) {
	s := setupServer(t)

	w := s.request(http.MethodGet, "/api/posts", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestUpdatePostEndpoint(t *testing.T) {
	s := setupServer(t)
	ctx := context.Background()

	post, err := s.local.CreatePost(ctx, domain.NewPost("alice", "hello", nil))
	require.NoError(t, err)

	w := s.request(http.MethodPut, "/api/posts/"+post.Id, `{"likes":["bob"],"blocked":true,"username":"mallory"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var env postEnvelope
	decode(t, w, &env)
	assert.True(t, env.Success)
	assert.Equal(t, []string{"bob"}, env.Post.Likes)
	assert.True(t, env.Post.Blocked)
	assert.Equal(t, "alice", env.Post.Username)
	assert.Equal(t, "hello", env.Post.Content)
}

func TestUpdatePostEndpointNotFound(t *testing.T) {
	s := setupServer(t)

	w := s.request(http.MethodPut, "/api/posts/missing", `{"blocked":true}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var env postEnvelope
	decode(t, w, &env)
	assert.Equal(t, "Post not found", env.Error)
}

func TestDeletePostEndpoint(t *testing.T) {
	s := setupServer(t)
	ctx := context.Background()

	post, err := s.local.CreatePost(ctx, domain.NewPost("alice", "hello", nil))
	require.NoError(t, err)

	w := s.request(http.MethodDelete, "/api/posts/"+post.Id, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	w = s.request(http.MethodDelete, "/api/posts/"+post.Id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRemoteBackendAgainstRouter(t *testing.T) {
	s := setupServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	clientLocal, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	remote := storage.NewRemoteAPI(srv.URL)
	repo := posts.NewRepository(storage.NewSelector(remote, clientLocal))
	ctx := context.Background()

	post, err := repo.CreatePost(ctx, "alice", "over the wire", nil)
	require.NoError(t, err)

	liked, err := repo.ToggleLike(ctx, post.Id, "bob")
	require.NoError(t, err)
	assert.True(t, liked)

	replied, err := repo.AddReply(ctx, post.Id, "bob", "nice")
	require.NoError(t, err)
	assert.True(t, replied)

	require.NoError(t, repo.IncrementViews(ctx, post.Id))

	serverPosts, err := s.local.ReadPosts(ctx)
	require.NoError(t, err)
	require.Len(t, serverPosts, 1)
	got := serverPosts[0]
	assert.Equal(t, []string{"bob"}, got.Likes)
	require.Len(t, got.Replies, 1)
	assert.Equal(t, "nice", got.Replies[0].Content)
	assert.Equal(t, 1, got.Views)

	clientPosts, err := clientLocal.ReadPosts(ctx)
	require.NoError(t, err)
	assert.Empty(t, clientPosts)

	require.NoError(t, repo.DeletePost(ctx, post.Id))
	serverPosts, err = s.local.ReadPosts(ctx)
	require.NoError(t, err)
	assert.Empty(t, serverPosts)
}
