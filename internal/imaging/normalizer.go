package imaging

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"strings"
	"time"

	// Decoders for the image formats users actually upload.
	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const maxFetchBytes = 7 * 1024 * 1024

var (
	// ErrInvalidInput indicates the reference is neither a data URL nor a fetchable URL.
	ErrInvalidInput = errors.New("imaging: invalid image input")
	// ErrDecode indicates the referenced bytes are not a decodable image.
	ErrDecode = errors.New("imaging: could not decode image")
)

// FetchError is a terminal remote-fetch failure carrying the upstream status
// and the resolved URL.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("imaging: fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("imaging: fetch %s: status %d", e.URL, e.Status)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Image is a decoded, canonically re-encoded picture ready for the render service.
type Image struct {
	Data     []byte
	MIMEType string
}

// DataURL renders the image as an inline data URL.
func (i Image) DataURL() string {
	return "data:" + i.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// Normalizer turns arbitrary image references (data URLs or remote URLs) into
// size- and quality-bounded JPEG payloads. The re-encode only bounds request
// latency and cost toward the render service; stored blobs keep original bytes.
type Normalizer struct {
	// BaseURL resolves origin-relative references like /media/...; the
	// server-side fetch client cannot resolve them on its own.
	BaseURL string
	// MaxSide caps both dimensions; images are never upscaled.
	MaxSide int
	// Quality is the lossy re-encode quality (1-100).
	Quality int

	client *http.Client
}

// NewNormalizer constructs a normalizer with the given bounds.
func NewNormalizer(baseURL string, maxSide, quality int) *Normalizer {
	if maxSide <= 0 {
		maxSide = 1024
	}
	if quality <= 0 || quality > 100 {
		quality = 80
	}
	return &Normalizer{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		MaxSide: maxSide,
		Quality: quality,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Normalize resolves the reference to raw bytes and applies the bounded
// re-encode: orientation fix, downscale to MaxSide, JPEG at Quality.
func (n *Normalizer) Normalize(ctx context.Context, ref string) (Image, error) {
	raw, declaredMIME, err := n.resolve(ctx, ref)
	if err != nil {
		return Image{}, err
	}
	return n.reencode(raw, declaredMIME)
}

func (n *Normalizer) resolve(ctx context.Context, ref string) ([]byte, string, error) {
	clean := strings.TrimSpace(ref)
	if clean == "" {
		return nil, "", ErrInvalidInput
	}

	if strings.HasPrefix(clean, "data:") {
		return decodeDataURL(clean)
	}

	url := clean
	switch {
	case strings.HasPrefix(clean, "http://"), strings.HasPrefix(clean, "https://"):
	case strings.HasPrefix(clean, "/"):
		url = n.BaseURL + clean
	default:
		return nil, "", ErrInvalidInput
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", &FetchError{URL: url, Err: err}
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return nil, "", &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", &FetchError{URL: url, Status: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes+1))
	if err != nil {
		return nil, "", &FetchError{URL: url, Err: err}
	}
	if len(data) > maxFetchBytes {
		return nil, "", &FetchError{URL: url, Err: fmt.Errorf("image exceeds %d bytes", maxFetchBytes)}
	}

	return data, resp.Header.Get("Content-Type"), nil
}

func decodeDataURL(dataURL string) ([]byte, string, error) {
	comma := strings.IndexByte(dataURL, ',')
	if comma == -1 {
		return nil, "", ErrInvalidInput
	}

	meta := dataURL[len("data:"):comma]
	mimeType := "image/png"
	if semi := strings.IndexByte(meta, ';'); semi > 0 {
		mimeType = meta[:semi]
	}

	data, err := base64.StdEncoding.DecodeString(dataURL[comma+1:])
	if err != nil {
		return nil, "", fmt.Errorf("%w: bad base64 payload", ErrDecode)
	}
	return data, mimeType, nil
}

func (n *Normalizer) reencode(raw []byte, declaredMIME string) (Image, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	// EXIF rotation has to be baked into pixels before the render service
	// sees the image; JPEG is the only format carrying the tag here.
	if strings.Contains(declaredMIME, "jpeg") || strings.Contains(declaredMIME, "jpg") || looksLikeJPEG(raw) {
		img = applyOrientation(img, readOrientation(raw))
	}

	img = n.downscale(img)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: n.Quality}); err != nil {
		return Image{}, fmt.Errorf("imaging: encode jpeg: %w", err)
	}

	return Image{Data: buf.Bytes(), MIMEType: "image/jpeg"}, nil
}

// downscale fits the image inside MaxSide x MaxSide preserving aspect ratio.
// Smaller images pass through untouched.
func (n *Normalizer) downscale(img image.Image) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= n.MaxSide && h <= n.MaxSide {
		return img
	}

	outW, outH := w, h
	if w >= h {
		outW = n.MaxSide
		outH = h * n.MaxSide / w
	} else {
		outH = n.MaxSide
		outW = w * n.MaxSide / h
	}
	if outW < 1 {
		outW = 1
	}
	if outH < 1 {
		outH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, outW, outH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

func looksLikeJPEG(data []byte) bool {
	return len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8
}
