package app_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/chat-dispatch/internal/adapter/cache"
	httpserver "github.com/fairyhunter13/chat-dispatch/internal/adapter/httpserver"
	"github.com/fairyhunter13/chat-dispatch/internal/app"
	"github.com/fairyhunter13/chat-dispatch/internal/catalog"
	"github.com/fairyhunter13/chat-dispatch/internal/config"
	"github.com/fairyhunter13/chat-dispatch/internal/routing"
	"github.com/fairyhunter13/chat-dispatch/internal/service/ratelimiter"
	"github.com/fairyhunter13/chat-dispatch/internal/usecase"
)

func newServer(cfg config.Config, dbErr error) *httpserver.Server {
	cat := catalog.Default()
	rc := cache.New(cache.NewMemoryStore(0), 0)
	ok := func(context.Context) error { return nil }
	db := func(context.Context) error { return dbErr }
	return httpserver.NewServer(cfg, usecase.ChatService{}, usecase.NewUploadService(nil, nil, nil, cat, rc), rc,
		ratelimiter.NewSlidingWindow(), cat, routing.NewSelector(cat, nil), db, nil, ok)
}

func baseConfig() config.Config {
	return config.Config{AppEnv: "test", RateLimitPerMin: 100, CORSAllowOrigins: "*", MaxUploadMB: 5}
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBuildRouter_Healthz_Readyz_Metrics(t *testing.T) {
	h := app.BuildRouter(baseConfig(), newServer(baseConfig(), nil))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	assert.Equal(t, http.StatusOK, serve(h, httptest.NewRequest(http.MethodGet, "/readyz", nil)).Code)
	assert.Equal(t, http.StatusOK, serve(h, httptest.NewRequest(http.MethodGet, "/metrics", nil)).Code)

	down := app.BuildRouter(baseConfig(), newServer(baseConfig(), errors.New("db down")))
	assert.Equal(t, http.StatusServiceUnavailable, serve(down, httptest.NewRequest(http.MethodGet, "/readyz", nil)).Code)
}

func TestBuildRouter_ReadOnlyEndpoints(t *testing.T) {
	h := app.BuildRouter(baseConfig(), newServer(baseConfig(), nil))
	for _, path := range []string{"/v1/models/categories", "/v1/cache/stats", "/v1/ratelimit/status", "/v1/uploads/limits?model=auto"} {
		rec := serve(h, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestBuildRouter_AdminRoutes(t *testing.T) {
	// without credentials configured the admin route is not mounted
	h := app.BuildRouter(baseConfig(), newServer(baseConfig(), nil))
	rec := serve(h, httptest.NewRequest(http.MethodDelete, "/v1/cache/conversations/c1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	hash, err := httpserver.HashPassword("pw", httpserver.Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLen: 8, KeyLen: 16})
	require.NoError(t, err)
	cfg := baseConfig()
	cfg.AdminUsername, cfg.AdminPasswordHash = "ops", hash
	h = app.BuildRouter(cfg, newServer(cfg, nil))

	rec = serve(h, httptest.NewRequest(http.MethodDelete, "/v1/cache/conversations/c1", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodDelete, "/v1/cache/conversations/c1", nil)
	req.SetBasicAuth("ops", "pw")
	rec = serve(h, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"removed":0`)
}

func TestBuildRouter_PerIPRateLimit(t *testing.T) {
	cfg := baseConfig()
	cfg.RateLimitPerMin = 2
	h := app.BuildRouter(cfg, newServer(cfg, nil))
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/models/categories", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		codes = append(codes, serve(h, req).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestParseOrigins(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", []string{"*"}},
		{"*", []string{"*"}},
		{"https://a.com, https://b.com", []string{"https://a.com", "https://b.com"}},
		{"  ,  ", []string{"*"}},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, app.ParseOrigins(c.in), c.in)
	}
}
