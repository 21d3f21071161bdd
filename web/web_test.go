package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/deemkeen/scronth/accounts"
	"github.com/deemkeen/scronth/moderation"
	"github.com/deemkeen/scronth/posts"
	"github.com/deemkeen/scronth/profiles"
	"github.com/deemkeen/scronth/storage"
	"github.com/deemkeen/scronth/util"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router   *gin.Engine
	local    *storage.LocalStore
	posts    *posts.Repository
	profiles *profiles.Service
	mod      *moderation.Service
	conf     *util.AppConfig
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	local, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	sel := storage.NewSelector(local)
	repo := posts.NewRepository(sel)
	profileSvc := profiles.NewService(local, repo)
	repo.SetCountRefresher(profileSvc)

	accountSvc := accounts.NewService(local, moderation.NewBanList(local))
	modSvc := moderation.NewService(local, accountSvc, profileSvc, repo)

	conf := &util.AppConfig{}
	conf.Conf.Host = "example.com"
	conf.Conf.HttpPort = 8080

	return &testServer{
		router: Router(conf, Services{
			Store:      sel,
			Posts:      repo,
			Profiles:   profileSvc,
			Moderation: modSvc,
		}),
		mod:      modSvc,
		local:    local,
		posts:    repo,
		profiles: profileSvc,
		conf:     conf,
	}
}

func (s *testServer) request(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) ban(t *testing.T, username string) {
	t.Helper()
	ok, err := s.mod.BanAccount(context.Background(), nil, username)
	require.NoError(t, err)
	require.True(t, ok)
}
