package imaging

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	red   = color.RGBA{R: 255, A: 255}
	green = color.RGBA{G: 255, A: 255}
	blue  = color.RGBA{B: 255, A: 255}
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// 2x2 source:
//
//	red   green
//	blue  white
func orientationFixture() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, red)
	img.Set(1, 0, green)
	img.Set(0, 1, blue)
	img.Set(1, 1, white)
	return img
}

func pixelAt(t *testing.T, img image.Image, x, y int) color.RGBA {
	t.Helper()
	r, g, b, a := img.At(x, y).RGBA()
	return color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}
}

func TestApplyOrientation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		orientation int
		// expected pixels row-major: (0,0) (1,0) (0,1) (1,1)
		want [4]color.RGBA
	}{
		{
			name:        "identity",
			orientation: 1,
			want:        [4]color.RGBA{red, green, blue, white},
		},
		{
			name:        "mirror horizontal",
			orientation: 2,
			want:        [4]color.RGBA{green, red, white, blue},
		},
		{
			name:        "rotate 180",
			orientation: 3,
			want:        [4]color.RGBA{white, blue, green, red},
		},
		{
			name:        "mirror vertical",
			orientation: 4,
			want:        [4]color.RGBA{blue, white, red, green},
		},
		{
			name:        "rotate 90 cw",
			orientation: 6,
			want:        [4]color.RGBA{blue, red, white, green},
		},
		{
			name:        "rotate 90 ccw",
			orientation: 8,
			want:        [4]color.RGBA{green, white, red, blue},
		},
		{
			name:        "out of range passes through",
			orientation: 9,
			want:        [4]color.RGBA{red, green, blue, white},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out := applyOrientation(orientationFixture(), tt.orientation)
			require.Equal(t, 2, out.Bounds().Dx())
			require.Equal(t, 2, out.Bounds().Dy())

			assert.Equal(t, tt.want[0], pixelAt(t, out, 0, 0))
			assert.Equal(t, tt.want[1], pixelAt(t, out, 1, 0))
			assert.Equal(t, tt.want[2], pixelAt(t, out, 0, 1))
			assert.Equal(t, tt.want[3], pixelAt(t, out, 1, 1))
		})
	}
}

func TestReadOrientationUnreadable(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, readOrientation(nil))
	assert.Equal(t, 1, readOrientation([]byte("not a jpeg")))
}
