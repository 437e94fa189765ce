package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrDisabled indicates that blob storage is not currently configured.
	ErrDisabled = errors.New("media storage disabled")
	// ErrNotFound indicates the requested object key does not exist.
	ErrNotFound = errors.New("media object not found")
)

// PutInput wraps the payload required for persisting a blob.
type PutInput struct {
	// KeyPrefix scopes the object under a purpose path, e.g. "users/42/looks".
	KeyPrefix   string
	ContentType string
	Body        io.Reader
	Size        int64
}

// PutResult captures the canonical object key.
type PutResult struct {
	Key string
}

// Store hides the backing implementation for storing and retrieving blobs.
type Store interface {
	Put(ctx context.Context, input PutInput) (PutResult, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

type disabledStore struct{}

func (disabledStore) Put(context.Context, PutInput) (PutResult, error) {
	return PutResult{}, ErrDisabled
}

func (disabledStore) Open(context.Context, string) (io.ReadCloser, error) {
	return nil, ErrDisabled
}

// Disabled returns a store that always signals disabled storage.
func Disabled() Store {
	return disabledStore{}
}

// PutDataURL decodes a data URL and persists it under the given prefix,
// returning the stored key. The declared MIME type is trusted.
func PutDataURL(ctx context.Context, store Store, dataURL, prefix string) (PutResult, error) {
	mimeType, payload, err := ParseDataURL(dataURL)
	if err != nil {
		return PutResult{}, err
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return PutResult{}, fmt.Errorf("decode data URL payload: %w", err)
	}

	return store.Put(ctx, PutInput{
		KeyPrefix:   prefix,
		ContentType: mimeType,
		Body:        strings.NewReader(string(data)),
		Size:        int64(len(data)),
	})
}

// ParseDataURL splits a data URL into its MIME type and base64 payload.
func ParseDataURL(dataURL string) (mimeType, payload string, err error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return "", "", errors.New("expected data URL")
	}
	comma := strings.IndexByte(dataURL, ',')
	if comma == -1 {
		return "", "", errors.New("invalid data URL")
	}

	meta := dataURL[len("data:"):comma]
	payload = dataURL[comma+1:]

	mimeType = "application/octet-stream"
	if semi := strings.IndexByte(meta, ';'); semi > 0 {
		mimeType = meta[:semi]
	} else if meta != "" {
		mimeType = meta
	}
	return mimeType, payload, nil
}

// ExtForMIME picks the object key extension for a stored image.
func ExtForMIME(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "png"):
		return "png"
	case strings.Contains(mimeType, "webp"):
		return "webp"
	default:
		return "jpg"
	}
}

// ContentTypeForKey infers the response content type from a stored key.
func ContentTypeForKey(key string) string {
	switch {
	case strings.HasSuffix(key, ".png"):
		return "image/png"
	case strings.HasSuffix(key, ".webp"):
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
