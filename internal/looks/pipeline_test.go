package looks_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toptry/internal/imaging"
	"toptry/internal/looks"
	"toptry/internal/media"
	"toptry/internal/render"
	"toptry/internal/storage"
)

type fakeNormalizer struct {
	calls []string
	err   error
}

func (f *fakeNormalizer) Normalize(_ context.Context, ref string) (imaging.Image, error) {
	f.calls = append(f.calls, ref)
	if f.err != nil {
		return imaging.Image{}, f.err
	}
	return imaging.Image{Data: []byte(ref), MIMEType: "image/jpeg"}, nil
}

type fakeRenderer struct {
	tryOnCalls    int
	gotGarments   []imaging.Image
	gotAspect     string
	tryOnErr      error
	caption       string
	describeCalls int
}

func (f *fakeRenderer) TryOn(_ context.Context, _ imaging.Image, garments []imaging.Image, aspectRatio string) (render.Result, error) {
	f.tryOnCalls++
	f.gotGarments = garments
	f.gotAspect = aspectRatio
	if f.tryOnErr != nil {
		return render.Result{}, f.tryOnErr
	}
	return render.Result{Data: []byte("composite"), MIMEType: "image/png"}, nil
}

func (f *fakeRenderer) DescribeLook(_ context.Context, _ imaging.Image, _ string) string {
	f.describeCalls++
	return f.caption
}

type fakeBlobs struct {
	puts    int
	lastKey string
	err     error
}

func (f *fakeBlobs) Put(_ context.Context, input media.PutInput) (media.PutResult, error) {
	f.puts++
	if f.err != nil {
		return media.PutResult{}, f.err
	}
	f.lastKey = input.KeyPrefix + "/result.png"
	return media.PutResult{Key: f.lastKey}, nil
}

func (f *fakeBlobs) Open(context.Context, string) (io.ReadCloser, error) {
	return nil, media.ErrNotFound
}

func newPipeline(t *testing.T) (*looks.Pipeline, *fakeNormalizer, *fakeRenderer, *fakeBlobs, storage.Store, storage.User) {
	t.Helper()

	store := storage.NewInMemoryStore()
	user, err := store.CreateUser(context.Background(), storage.User{
		Email:    "anna@example.com",
		Username: "anna",
		IsPublic: true,
	})
	require.NoError(t, err)

	normalizer := &fakeNormalizer{}
	renderer := &fakeRenderer{caption: "стильный образ"}
	blobs := &fakeBlobs{}

	return &looks.Pipeline{
		Normalizer: normalizer,
		Renderer:   renderer,
		Blobs:      blobs,
		Store:      store,
	}, normalizer, renderer, blobs, store, user
}

func TestCreateLookSuccess(t *testing.T) {
	t.Parallel()

	pipeline, normalizer, renderer, blobs, _, user := newPipeline(t)

	look, err := pipeline.CreateLook(context.Background(), looks.CreateRequest{
		UserID:         user.ID,
		SelfieRef:      "data:selfie",
		GarmentRefs:    []string{"ref-a", "ref-b"},
		ItemIDs:        []string{"a", "b"},
		Title:          "Весна",
		PriceBuyNowRUB: 12990,
	})
	require.NoError(t, err)

	// Items come back in request order with zeroed counters.
	assert.Equal(t, []string{"a", "b"}, look.Items)
	assert.Zero(t, look.LikesCount)
	assert.Zero(t, look.CommentsCount)
	assert.Equal(t, 12990, look.PriceBuyNowRUB)
	assert.True(t, look.IsPublic)
	assert.Equal(t, "anna", look.AuthorName)
	assert.Equal(t, "стильный образ", look.AIDescription)
	assert.Equal(t, "/media/"+blobs.lastKey, look.ResultImageURL)

	// Selfie first, then garments in order.
	assert.Equal(t, []string{"data:selfie", "ref-a", "ref-b"}, normalizer.calls)
	assert.Len(t, renderer.gotGarments, 2)
	assert.Equal(t, 1, blobs.puts)
}

func TestCreateLookExplicitVisibility(t *testing.T) {
	t.Parallel()

	pipeline, _, _, _, _, user := newPipeline(t)

	private := false
	look, err := pipeline.CreateLook(context.Background(), looks.CreateRequest{
		UserID:      user.ID,
		SelfieRef:   "data:selfie",
		GarmentRefs: []string{"ref-a"},
		ItemIDs:     []string{"a"},
		IsPublic:    &private,
	})
	require.NoError(t, err)
	assert.False(t, look.IsPublic)
}

func TestCreateLookInvalidRequests(t *testing.T) {
	t.Parallel()

	six := []string{"1", "2", "3", "4", "5", "6"}

	tests := []struct {
		name string
		req  looks.CreateRequest
	}{
		{
			name: "missing selfie",
			req:  looks.CreateRequest{GarmentRefs: []string{"a"}, ItemIDs: []string{"a"}},
		},
		{
			name: "zero garments",
			req:  looks.CreateRequest{SelfieRef: "s"},
		},
		{
			name: "six garments",
			req:  looks.CreateRequest{SelfieRef: "s", GarmentRefs: six, ItemIDs: six},
		},
		{
			name: "item id count mismatch",
			req:  looks.CreateRequest{SelfieRef: "s", GarmentRefs: []string{"a", "b"}, ItemIDs: []string{"a"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			pipeline, normalizer, renderer, blobs, store, user := newPipeline(t)
			tt.req.UserID = user.ID

			_, err := pipeline.CreateLook(context.Background(), tt.req)
			require.ErrorIs(t, err, looks.ErrInvalidRequest)

			// Validation failures must cause zero side effects.
			assert.Empty(t, normalizer.calls)
			assert.Zero(t, renderer.tryOnCalls)
			assert.Zero(t, blobs.puts)

			created, err := store.ListLooksByUser(context.Background(), user.ID)
			require.NoError(t, err)
			assert.Empty(t, created)
		})
	}
}

func TestCreateLookNoPartialPersistence(t *testing.T) {
	t.Parallel()

	t.Run("render failure creates nothing", func(t *testing.T) {
		t.Parallel()

		pipeline, _, renderer, blobs, store, user := newPipeline(t)
		renderer.tryOnErr = render.ErrNoImage

		_, err := pipeline.CreateLook(context.Background(), looks.CreateRequest{
			UserID:      user.ID,
			SelfieRef:   "s",
			GarmentRefs: []string{"a"},
			ItemIDs:     []string{"a"},
		})
		require.ErrorIs(t, err, render.ErrNoImage)
		assert.Zero(t, blobs.puts)

		created, err := store.ListLooksByUser(context.Background(), user.ID)
		require.NoError(t, err)
		assert.Empty(t, created)
	})

	t.Run("blob failure creates no record", func(t *testing.T) {
		t.Parallel()

		pipeline, _, _, blobs, store, user := newPipeline(t)
		blobs.err = media.ErrDisabled

		_, err := pipeline.CreateLook(context.Background(), looks.CreateRequest{
			UserID:      user.ID,
			SelfieRef:   "s",
			GarmentRefs: []string{"a"},
			ItemIDs:     []string{"a"},
		})
		require.ErrorIs(t, err, media.ErrDisabled)

		created, err := store.ListLooksByUser(context.Background(), user.ID)
		require.NoError(t, err)
		assert.Empty(t, created)
	})

	t.Run("normalize failure stops before render", func(t *testing.T) {
		t.Parallel()

		pipeline, normalizer, renderer, _, _, user := newPipeline(t)
		normalizer.err = errors.New("boom")

		_, err := pipeline.CreateLook(context.Background(), looks.CreateRequest{
			UserID:      user.ID,
			SelfieRef:   "s",
			GarmentRefs: []string{"a"},
			ItemIDs:     []string{"a"},
		})
		require.Error(t, err)
		assert.Zero(t, renderer.tryOnCalls)
	})
}

func TestTryOnRenderOnly(t *testing.T) {
	t.Parallel()

	pipeline, _, renderer, blobs, store, user := newPipeline(t)

	result, err := pipeline.TryOn(context.Background(), "selfie", []string{"a", "b"}, "1:1")
	require.NoError(t, err)
	assert.Equal(t, []byte("composite"), result.Data)
	assert.Equal(t, "1:1", renderer.gotAspect)

	// A bare try-on never persists anything.
	assert.Zero(t, blobs.puts)
	created, err := store.ListLooksByUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Empty(t, created)
}
