package media_test

import (
	"context"
	"encoding/base64"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toptry/internal/media"
)

func TestParseDataURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		input       string
		wantMIME    string
		wantPayload string
		wantErr     bool
	}{
		{
			name:        "png with base64 marker",
			input:       "data:image/png;base64,AQI=",
			wantMIME:    "image/png",
			wantPayload: "AQI=",
		},
		{
			name:        "mime without encoding marker",
			input:       "data:image/webp,abc",
			wantMIME:    "image/webp",
			wantPayload: "abc",
		},
		{
			name:        "empty meta defaults to octet-stream",
			input:       "data:,abc",
			wantMIME:    "application/octet-stream",
			wantPayload: "abc",
		},
		{
			name:    "not a data url",
			input:   "https://example.com/x.png",
			wantErr: true,
		},
		{
			name:    "no comma",
			input:   "data:image/png;base64",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mime, payload, err := media.ParseDataURL(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMIME, mime)
			assert.Equal(t, tt.wantPayload, payload)
		})
	}
}

func TestExtForMIME(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "png", media.ExtForMIME("image/png"))
	assert.Equal(t, "webp", media.ExtForMIME("image/webp"))
	assert.Equal(t, "jpg", media.ExtForMIME("image/jpeg"))
	assert.Equal(t, "jpg", media.ExtForMIME(""))
}

func TestContentTypeForKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "image/png", media.ContentTypeForKey("users/1/looks/a.png"))
	assert.Equal(t, "image/webp", media.ContentTypeForKey("a.webp"))
	assert.Equal(t, "image/jpeg", media.ContentTypeForKey("a.jpg"))
	assert.Equal(t, "image/jpeg", media.ContentTypeForKey("noext"))
}

func TestLocalStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store, err := media.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	result, err := store.Put(context.Background(), media.PutInput{
		KeyPrefix:   "users/1/wardrobe",
		ContentType: "image/png",
		Body:        strings.NewReader(string(payload)),
		Size:        int64(len(payload)),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.Key, "users/1/wardrobe/"))
	assert.True(t, strings.HasSuffix(result.Key, ".png"))

	body, err := store.Open(context.Background(), result.Key)
	require.NoError(t, err)
	defer body.Close()

	got, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestLocalStoreOpenErrors(t *testing.T) {
	t.Parallel()

	store, err := media.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Open(context.Background(), "missing/key.png")
	assert.ErrorIs(t, err, media.ErrNotFound)

	// Traversal attempts read as missing, never escape the base dir.
	_, err = store.Open(context.Background(), "../../etc/passwd")
	assert.ErrorIs(t, err, media.ErrNotFound)

	_, err = store.Open(context.Background(), "/etc/passwd")
	assert.ErrorIs(t, err, media.ErrNotFound)
}

func TestPutDataURL(t *testing.T) {
	t.Parallel()

	store, err := media.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	raw := []byte{1, 2, 3}
	dataURL := "data:image/webp;base64," + base64.StdEncoding.EncodeToString(raw)

	result, err := media.PutDataURL(context.Background(), store, dataURL, "users/9/looks")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(result.Key, ".webp"))

	body, err := store.Open(context.Background(), result.Key)
	require.NoError(t, err)
	defer body.Close()

	got, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestPutDataURLErrors(t *testing.T) {
	t.Parallel()

	store, err := media.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = media.PutDataURL(context.Background(), store, "https://not-a-data-url", "p")
	assert.Error(t, err)

	_, err = media.PutDataURL(context.Background(), store, "data:image/png;base64,!!!", "p")
	assert.Error(t, err)

	_, err = media.PutDataURL(context.Background(), media.Disabled(), "data:image/png;base64,AQI=", "p")
	assert.ErrorIs(t, err, media.ErrDisabled)
}
