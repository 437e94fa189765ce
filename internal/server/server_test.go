package server_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toptry/internal/auth"
	"toptry/internal/events"
	"toptry/internal/looks"
	"toptry/internal/media"
	"toptry/internal/server"
	"toptry/internal/social"
	"toptry/internal/storage"
	"toptry/internal/wardrobe"
)

func newTestServer(t *testing.T, blobs media.Store) *httptest.Server {
	t.Helper()

	store := storage.NewInMemoryStore()
	sessions := auth.SessionManager{
		Secret:     []byte("test-secret"),
		Duration:   20 * time.Minute,
		CookieName: "toptry_session",
	}
	broker := events.NewBroker()

	srv := server.New("0", server.Deps{
		AuthHandler:     auth.Handler{Store: store, Sessions: sessions},
		AuthMiddleware:  auth.Middleware{Store: store, Sessions: sessions},
		LookHandler:     &looks.Handler{Store: store, Broker: broker},
		WardrobeHandler: &wardrobe.Handler{Store: store, Blobs: blobs},
		SocialHandler:   &social.Handler{Store: store},
		Media:           blobs,
		Broker:          broker,
	})

	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, media.Disabled())

	for _, path := range []string{"/health", "/api/health"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"status":"ok"}`, string(body))
	}
}

func TestMediaStreaming(t *testing.T) {
	t.Parallel()

	blobs, err := media.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	stored, err := blobs.Put(context.Background(), media.PutInput{
		KeyPrefix:   "users/1/looks",
		ContentType: "image/png",
		Body:        strings.NewReader("fake png bytes"),
	})
	require.NoError(t, err)

	ts := newTestServer(t, blobs)

	resp, err := http.Get(ts.URL + "/media/" + stored.Key)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Cache-Control"), "immutable")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "fake png bytes", string(body))
}

func TestMediaNotFound(t *testing.T) {
	t.Parallel()

	t.Run("missing key", func(t *testing.T) {
		t.Parallel()

		blobs, err := media.NewLocalStore(t.TempDir())
		require.NoError(t, err)
		ts := newTestServer(t, blobs)

		resp, err := http.Get(ts.URL + "/media/users/1/looks/missing.png")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("storage disabled", func(t *testing.T) {
		t.Parallel()

		ts := newTestServer(t, media.Disabled())

		resp, err := http.Get(ts.URL + "/media/any/key.png")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, media.Disabled())

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/wardrobe/list"},
		{http.MethodPost, "/api/looks/create"},
		{http.MethodGet, "/api/looks/my"},
		{http.MethodGet, "/api/feed/following"},
		{http.MethodPost, "/api/tryon"},
	}

	for _, p := range paths {
		req, err := http.NewRequest(p.method, ts.URL+p.path, nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "%s %s", p.method, p.path)
	}
}

func TestPublicFeedIsAnonymous(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, media.Disabled())

	resp, err := http.Get(ts.URL + "/api/looks/public")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
