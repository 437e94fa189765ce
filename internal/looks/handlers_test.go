package looks_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toptry/internal/auth"
	"toptry/internal/events"
	"toptry/internal/looks"
	"toptry/internal/storage"
)

type lookEnv struct {
	router *chi.Mux
	store  storage.Store
	broker *events.Broker
	owner  storage.User
	viewer storage.User
}

func newLookEnv(t *testing.T) *lookEnv {
	t.Helper()

	store := storage.NewInMemoryStore()
	owner, err := store.CreateUser(context.Background(), storage.User{Email: "anna@example.com", Username: "anna"})
	require.NoError(t, err)
	viewer, err := store.CreateUser(context.Background(), storage.User{Email: "boris@example.com", Username: "boris"})
	require.NoError(t, err)

	broker := events.NewBroker()
	handler := &looks.Handler{Store: store, Broker: broker}

	router := chi.NewRouter()
	router.Route("/api/looks/{id}", func(r chi.Router) {
		r.Get("/", handler.Get)
		r.Patch("/visibility", handler.Visibility)
		r.Post("/like", handler.Like)
		r.Get("/comments", handler.Comments)
		r.Post("/comments", handler.AddComment)
	})
	router.Get("/api/looks/public", handler.Public)

	return &lookEnv{router: router, store: store, broker: broker, owner: owner, viewer: viewer}
}

func (e *lookEnv) request(t *testing.T, method, path string, body any, as *storage.User) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if as != nil {
		req = req.WithContext(auth.WithUser(req.Context(), *as))
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *lookEnv) seedLook(t *testing.T, public bool) storage.Look {
	t.Helper()

	look, err := e.store.CreateLook(context.Background(), storage.Look{
		UserID:         e.owner.ID,
		Items:          []string{"a"},
		ResultImageURL: "/media/x.png",
		IsPublic:       public,
	})
	require.NoError(t, err)
	return look
}

func TestGetLookPrivacy(t *testing.T) {
	t.Parallel()

	env := newLookEnv(t)
	private := env.seedLook(t, false)

	// Owner sees their private look.
	rec := env.request(t, http.MethodGet, "/api/looks/"+private.ID, nil, &env.owner)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Everyone else gets 404, not 403, so existence stays hidden.
	rec = env.request(t, http.MethodGet, "/api/looks/"+private.ID, nil, &env.viewer)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/looks/"+private.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/looks/unknown", nil, &env.owner)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVisibilityOwnerOnly(t *testing.T) {
	t.Parallel()

	env := newLookEnv(t)
	look := env.seedLook(t, true)
	body := map[string]bool{"isPublic": false}

	rec := env.request(t, http.MethodPatch, "/api/looks/"+look.ID+"/visibility", body, &env.viewer)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.request(t, http.MethodPatch, "/api/looks/"+look.ID+"/visibility", body, &env.owner)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Look storage.Look `json:"look"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.False(t, out.Look.IsPublic)
}

func TestLikeReturnsPostToggleCount(t *testing.T) {
	t.Parallel()

	env := newLookEnv(t)
	look := env.seedLook(t, true)

	sub := env.broker.Subscribe()
	defer env.broker.Unsubscribe(sub)

	rec := env.request(t, http.MethodPost, "/api/looks/"+look.ID+"/like", nil, &env.viewer)
	require.Equal(t, http.StatusOK, rec.Code)

	var first struct {
		Likes int  `json:"likes"`
		Liked bool `json:"liked"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.Equal(t, 1, first.Likes)
	assert.True(t, first.Liked)

	evt := <-sub
	assert.Equal(t, events.KindLookLiked, evt.Kind)
	assert.Equal(t, look.ID, evt.LookID)
	assert.Equal(t, 1, evt.Likes)

	// Untoggle returns the counter to zero.
	rec = env.request(t, http.MethodPost, "/api/looks/"+look.ID+"/like", nil, &env.viewer)
	require.Equal(t, http.StatusOK, rec.Code)

	var second struct {
		Likes int  `json:"likes"`
		Liked bool `json:"liked"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.Zero(t, second.Likes)
	assert.False(t, second.Liked)
}

func TestAddCommentValidation(t *testing.T) {
	t.Parallel()

	env := newLookEnv(t)
	look := env.seedLook(t, true)

	rec := env.request(t, http.MethodPost, "/api/looks/"+look.ID+"/comments",
		map[string]string{"text": "   \t\n"}, &env.viewer)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/looks/"+look.ID+"/comments",
		map[string]string{"text": "  отличный образ  "}, &env.viewer)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Comment storage.Comment `json:"comment"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "отличный образ", out.Comment.Text)
	assert.Equal(t, "boris", out.Comment.UserName)

	reloaded, err := env.store.GetLook(context.Background(), look.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.CommentsCount)
}

func TestPublicFeedSortFallback(t *testing.T) {
	t.Parallel()

	env := newLookEnv(t)
	env.seedLook(t, true)
	env.seedLook(t, false)

	rec := env.request(t, http.MethodGet, "/api/looks/public?sort=bogus", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Looks []storage.Look `json:"looks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Len(t, out.Looks, 1, "private looks stay out of the public feed")
}
