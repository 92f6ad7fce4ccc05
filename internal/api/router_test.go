package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/d60-Lab/feedline/config"
	"github.com/d60-Lab/feedline/internal/api/handler"
	"github.com/d60-Lab/feedline/internal/model"
	"github.com/d60-Lab/feedline/internal/realtime"
	"github.com/d60-Lab/feedline/internal/repository"
	"github.com/d60-Lab/feedline/internal/service"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	repos  *repository.Repositories
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.Account{}))

	cfg := &config.Config{
		Server:    config.ServerConfig{Mode: gin.TestMode},
		Timeline:  config.TimelineConfig{DefaultLimit: 25, MaxLimit: 100, UnionTTL: time.Minute},
		RateLimit: config.RateLimitConfig{Enabled: false},
	}
	repos := repository.NewRepositories(rdb, db)
	runner := service.NewFanoutRunner(4, nil)
	feeds := service.NewFeedService(repos)
	auth := service.NewAuthService(repos, feeds, "test-secret", time.Hour)
	h := handler.NewHandler(handler.Services{
		Auth:          auth,
		Feeds:         feeds,
		Relationships: service.NewRelationshipService(repos),
		Groups:        service.NewGroupService(repos),
		Posts:         service.NewPostService(repos, runner),
		Comments:      service.NewCommentService(repos, runner),
		Timelines:     service.NewTimelineService(repos, cfg.Timeline),
	}, realtime.NewHub(rdb, 8))

	router := NewRouter(cfg, RouterDeps{
		Handler: h,
		Auth:    auth,
		Health: map[string]handler.Pinger{
			"redis": handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
		},
	})
	return &testServer{t: t, router: router, repos: repos}
}

func (s *testServer) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func (s *testServer) register(username string) (string, string) {
	s.t.Helper()
	w, env := s.do(http.MethodPost, "/v1/users", "", map[string]string{"username": username, "password": "secret"})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var data struct {
		User      model.Feed `json:"user"`
		AuthToken string     `json:"authToken"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &data))
	return data.User.ID, data.AuthToken
}

func (s *testServer) createPost(token, body string, feeds ...string) string {
	s.t.Helper()
	w, env := s.do(http.MethodPost, "/v1/posts", token, map[string]interface{}{"body": body, "feeds": feeds})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var data struct {
		Post model.Post `json:"post"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &data))
	return data.Post.ID
}

func TestPostAndReadHome(t *testing.T) {
	s := newTestServer(t)
	_, luna := s.register("luna")
	_, mark := s.register("mark")

	w, _ := s.do(http.MethodPost, "/v1/users/luna/subscribe", mark, nil)
	require.Equal(t, http.StatusOK, w.Code)

	postID := s.createPost(luna, "hello", "luna")

	w, env := s.do(http.MethodGet, "/v1/timelines/home", mark, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page service.TimelinePage
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Posts, 1)
	assert.Equal(t, postID, page.Posts[0].ID)

	w, _ = s.do(http.MethodGet, "/v1/timelines/everyone", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(http.MethodGet, "/v1/posts/"+postID, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	_, luna := s.register("luna")
	_, mark := s.register("mark")
	postID := s.createPost(luna, "hello", "luna")

	w, _ := s.do(http.MethodPost, "/v1/posts", "", map[string]interface{}{"body": "x", "feeds": []string{"luna"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(http.MethodGet, "/v1/timelines/home", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(http.MethodGet, "/v1/posts/missing", mark, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env := s.do(http.MethodPost, "/v1/posts", luna, map[string]interface{}{"body": "x", "feeds": []string{"nobody"}})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Not found", env.Message)

	w, _ = s.do(http.MethodPost, "/v1/posts", luna, map[string]interface{}{"body": "", "feeds": []string{"luna"}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, _ = s.do(http.MethodPost, "/v1/posts/"+postID+"/like", mark, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, env = s.do(http.MethodPost, "/v1/posts/"+postID+"/like", mark, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "already liked", env.Message)

	w, _ = s.do(http.MethodPost, "/v1/users", "", map[string]string{"username": "x", "password": "secret"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, _ = s.do(http.MethodPost, "/v1/session", "", map[string]string{"username": "luna", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(http.MethodPost, "/v1/session", "", map[string]string{"username": "luna"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginAndStats(t *testing.T) {
	s := newTestServer(t)
	_, luna := s.register("luna")
	s.createPost(luna, "one", "luna")

	w, env := s.do(http.MethodPost, "/v1/session", "", map[string]string{"username": "LUNA", "password": "secret"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "authToken")

	w, env = s.do(http.MethodGet, "/v1/users/luna/stats", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats model.Stats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.EqualValues(t, 1, stats.Posts)

	w, _ = s.do(http.MethodGet, "/v1/stats/karma", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestGroupRoutes(t *testing.T) {
	s := newTestServer(t)
	_, luna := s.register("luna")

	w, _ := s.do(http.MethodPost, "/v1/groups", luna, map[string]interface{}{"username": "cats"})
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(http.MethodDelete, "/v1/groups/cats/admins/luna", luna, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, env := s.do(http.MethodGet, "/v1/groups/cats/admins", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "luna")
}

func TestRealtimeAuthorization(t *testing.T) {
	s := newTestServer(t)
	lunaID, _ := s.register("luna")
	_, mark := s.register("mark")
	river, err := s.repos.Feeds.TimelineID(context.Background(), lunaID, model.PurposeRiverOfNews)
	require.NoError(t, err)

	w, _ := s.do(http.MethodGet, "/v1/realtime?timelines="+river, mark, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(http.MethodGet, "/v1/realtime", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestOpsEndpoints(t *testing.T) {
	s := newTestServer(t)
	w, _ := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"ok"`)

	w, _ = s.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
