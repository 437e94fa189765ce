package imaging_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	_ "image/jpeg"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toptry/internal/imaging"
)

func pngDataURL(t *testing.T, w, h int) string {
	t.Helper()
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t, w, h))
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeDims(t *testing.T, result imaging.Image) (int, int) {
	t.Helper()

	img, _, err := image.Decode(bytes.NewReader(result.Data))
	require.NoError(t, err)
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestNormalizeDownscale(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		width, height int
		maxSide       int
		wantW, wantH  int
	}{
		{
			name:  "wide image clamps width",
			width: 2000, height: 1000,
			maxSide: 1024,
			wantW:   1024, wantH: 512,
		},
		{
			name:  "tall image clamps height",
			width: 600, height: 1800,
			maxSide: 1024,
			wantW:   341, wantH: 1024,
		},
		{
			name:  "small image untouched",
			width: 300, height: 200,
			maxSide: 1024,
			wantW:   300, wantH: 200,
		},
		{
			name:  "exactly max side untouched",
			width: 1024, height: 1024,
			maxSide: 1024,
			wantW:   1024, wantH: 1024,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			n := imaging.NewNormalizer("", tt.maxSide, 80)
			result, err := n.Normalize(context.Background(), pngDataURL(t, tt.width, tt.height))
			require.NoError(t, err)
			assert.Equal(t, "image/jpeg", result.MIMEType)

			gotW, gotH := decodeDims(t, result)
			assert.Equal(t, tt.wantW, gotW)
			assert.Equal(t, tt.wantH, gotH)
			assert.LessOrEqual(t, gotW, tt.maxSide)
			assert.LessOrEqual(t, gotH, tt.maxSide)
		})
	}
}

func TestNormalizeInvalidInput(t *testing.T) {
	t.Parallel()

	n := imaging.NewNormalizer("", 1024, 80)

	tests := []struct {
		name    string
		ref     string
		wantErr error
	}{
		{name: "empty ref", ref: "", wantErr: imaging.ErrInvalidInput},
		{name: "bare word", ref: "not-a-url", wantErr: imaging.ErrInvalidInput},
		{name: "data url without comma", ref: "data:image/png;base64", wantErr: imaging.ErrInvalidInput},
		{name: "data url bad base64", ref: "data:image/png;base64,!!!", wantErr: imaging.ErrDecode},
		{name: "data url not an image", ref: "data:text/plain;base64,aGVsbG8=", wantErr: imaging.ErrDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := n.Normalize(context.Background(), tt.ref)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNormalizeRemoteFetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/media/ok.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(pngBytes(t, 100, 80))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	n := imaging.NewNormalizer(srv.URL, 1024, 80)

	t.Run("relative ref resolves against base", func(t *testing.T) {
		result, err := n.Normalize(context.Background(), "/media/ok.png")
		require.NoError(t, err)

		w, h := decodeDims(t, result)
		assert.Equal(t, 100, w)
		assert.Equal(t, 80, h)
	})

	t.Run("absolute ref fetched directly", func(t *testing.T) {
		result, err := n.Normalize(context.Background(), srv.URL+"/media/ok.png")
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", result.MIMEType)
	})

	t.Run("non-2xx is a fetch error with status and url", func(t *testing.T) {
		_, err := n.Normalize(context.Background(), "/media/missing.png")

		var fetchErr *imaging.FetchError
		require.True(t, errors.As(err, &fetchErr))
		assert.Equal(t, http.StatusNotFound, fetchErr.Status)
		assert.Equal(t, srv.URL+"/media/missing.png", fetchErr.URL)
	})
}

func TestImageDataURLRoundTrip(t *testing.T) {
	t.Parallel()

	n := imaging.NewNormalizer("", 1024, 80)
	first, err := n.Normalize(context.Background(), pngDataURL(t, 50, 50))
	require.NoError(t, err)

	// The output of one normalization is valid input for the next.
	second, err := n.Normalize(context.Background(), first.DataURL())
	require.NoError(t, err)

	w, h := decodeDims(t, second)
	assert.Equal(t, 50, w)
	assert.Equal(t, 50, h)
}
