package imaging

import (
	"bytes"
	"image"

	"github.com/rwcarlsen/goexif/exif"
)

// readOrientation extracts the EXIF orientation tag (1-8) from JPEG bytes.
// Anything unreadable maps to 1 (no transform).
func readOrientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	value, err := tag.Int(0)
	if err != nil || value < 1 || value > 8 {
		return 1
	}
	return value
}

// applyOrientation bakes the EXIF orientation into pixel data so downstream
// consumers can ignore metadata entirely.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return transform(img, false, func(w, h, x, y int) (int, int) { return w - 1 - x, y })
	case 3:
		return transform(img, false, func(w, h, x, y int) (int, int) { return w - 1 - x, h - 1 - y })
	case 4:
		return transform(img, false, func(w, h, x, y int) (int, int) { return x, h - 1 - y })
	case 5:
		return transform(img, true, func(w, h, x, y int) (int, int) { return y, x })
	case 6:
		return transform(img, true, func(w, h, x, y int) (int, int) { return y, h - 1 - x })
	case 7:
		return transform(img, true, func(w, h, x, y int) (int, int) { return w - 1 - y, h - 1 - x })
	case 8:
		return transform(img, true, func(w, h, x, y int) (int, int) { return w - 1 - y, x })
	default:
		return img
	}
}

// transform copies src into a new image, mapping destination coordinates back
// to source coordinates. swap indicates the output axes are transposed.
func transform(src image.Image, swap bool, srcAt func(srcW, srcH, dstX, dstY int) (int, int)) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	outW, outH := w, h
	if swap {
		outW, outH = h, w
	}

	dst := image.NewRGBA(image.Rect(0, 0, outW, outH))
	for y := 0; y < outH; y++ {
		for x := 0; x < outW; x++ {
			sx, sy := srcAt(w, h, x, y)
			dst.Set(x, y, src.At(bounds.Min.X+sx, bounds.Min.Y+sy))
		}
	}
	return dst
}
