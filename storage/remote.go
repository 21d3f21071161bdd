package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/deemkeen/scronth/domain"
	"github.com/rs/zerolog/log"
)

const defaultProbeTimeout = 3 * time.Second

// RemoteAPI talks to the posts HTTP API of another server. Reachability is probed once; the first
// failed request after that turns the backend off for the rest of the selector's lifetime.
type RemoteAPI struct {
	baseURL      string
	client       *http.Client
	probeTimeout time.Duration

	probeOnce sync.Once
	available atomic.Bool
}

type RemoteOption func(*RemoteAPI)

func WithHTTPClient(c *http.Client) RemoteOption {
	return func(r *RemoteAPI) {
		r.client = c
	}
}

func WithProbeTimeout(d time.Duration) RemoteOption {
	return func(r *RemoteAPI) {
		if d > 0 {
			r.probeTimeout = d
		}
	}
}

// NewRemoteAPI returns nil when baseURL is empty, which the selector skips.
func NewRemoteAPI(baseURL string, opts ...RemoteOption) *RemoteAPI {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil
	}
	r := &RemoteAPI{
		baseURL:      baseURL,
		client:       http.DefaultClient,
		probeTimeout: defaultProbeTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RemoteAPI) Kind() Kind {
	return KindRemoteAPI
}

func (r *RemoteAPI) Available(ctx context.Context) bool {
	r.probeOnce.Do(func() {
		r.available.Store(r.probe(ctx))
	})
	return r.available.Load()
}

func (r *RemoteAPI) MarkUnavailable() {
	r.probeOnce.Do(func() {})
	if r.available.Swap(false) {
		log.Warn().Str("url", r.baseURL).Msg("Remote API marked unavailable for this session")
	}
}

func (r *RemoteAPI) probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.probeTimeout)
	defer cancel()

	var health struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := r.do(ctx, http.MethodGet, "/api/health", nil, &health); err != nil {
		log.Warn().Err(err).Str("url", r.baseURL).Msg("Remote API unreachable, using fallback storage")
		return false
	}
	if health.Status != "ok" {
		log.Warn().Str("status", health.Status).Str("url", r.baseURL).Msg("Remote API unhealthy, using fallback storage")
		return false
	}
	log.Info().Str("url", r.baseURL).Msg("Remote API reachable")
	return true
}

type createPostRequest struct {
	Username string  `json:"username"`
	Content  string  `json:"content"`
	Image    *string `json:"image"`
}

type postResponse struct {
	Success bool        `json:"success"`
	Post    domain.Post `json:"post"`
}

func (r *RemoteAPI) CreatePost(ctx context.Context, post domain.Post) (domain.Post, error) {
	var resp postResponse
	req := createPostRequest{Username: post.Username, Content: post.Content, Image: post.Image}
	if err := r.do(ctx, http.MethodPost, "/api/posts", req, &resp); err != nil {
		return domain.Post{}, err
	}
	resp.Post.Normalize()
	return resp.Post, nil
}

func (r *RemoteAPI) ReadPosts(ctx context.Context) ([]domain.Post, error) {
	var posts []domain.Post
	if err := r.do(ctx, http.MethodGet, "/api/posts", nil, &posts); err != nil {
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

func (r *RemoteAPI) UpdatePost(ctx context.Context, id string, patch domain.PostPatch) (domain.Post, error) {
	var resp postResponse
	if err := r.do(ctx, http.MethodPut, "/api/posts/"+url.PathEscape(id), patch, &resp); err != nil {
		return domain.Post{}, notFoundAs(err, id)
	}
	resp.Post.Normalize()
	return resp.Post, nil
}

func (r *RemoteAPI) DeletePost(ctx context.Context, id string) error {
	if err := r.do(ctx, http.MethodDelete, "/api/posts/"+url.PathEscape(id), nil, nil); err != nil {
		return notFoundAs(err, id)
	}
	return nil
}

// statusError is a non-2xx answer from the remote API.
type statusError struct {
	Method string
	Path   string
	Code   int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("remote api %s %s: status %d", e.Method, e.Path, e.Code)
}

func notFoundAs(err error, id string) error {
	if se, ok := err.(*statusError); ok && se.Code == http.StatusNotFound {
		return domain.NewNotFoundError("post", id)
	}
	return err
}

func (r *RemoteAPI) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("remote api %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return &statusError{Method: method, Path: path, Code: resp.StatusCode}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("remote api %s %s: decode: %w", method, path, err)
	}
	return nil
}
