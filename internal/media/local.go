package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStore keeps blobs on the local filesystem, used for development when
// no S3-compatible storage is configured.
type LocalStore struct {
	BaseDir string
}

// NewLocalStore constructs a store rooted at the provided directory.
// If baseDir is empty, a directory under os.TempDir() is used.
func NewLocalStore(baseDir string) (*LocalStore, error) {
	dir := baseDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "toptry-media")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create local media dir: %w", err)
	}
	return &LocalStore{BaseDir: dir}, nil
}

// Put writes the blob to disk under a generated key.
func (l *LocalStore) Put(_ context.Context, input PutInput) (PutResult, error) {
	if input.Body == nil {
		return PutResult{}, errors.New("put body is required")
	}

	key := uuid.NewString() + "." + ExtForMIME(input.ContentType)
	if prefix := strings.Trim(input.KeyPrefix, "/"); prefix != "" {
		key = path.Join(prefix, key)
	}

	full := filepath.Join(l.BaseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return PutResult{}, fmt.Errorf("create media subdir: %w", err)
	}

	f, err := os.Create(full)
	if err != nil {
		return PutResult{}, fmt.Errorf("create media file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, input.Body); err != nil {
		os.Remove(full)
		return PutResult{}, fmt.Errorf("write media file: %w", err)
	}

	return PutResult{Key: key}, nil
}

// Open streams a stored blob back.
func (l *LocalStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return nil, ErrNotFound
	}

	f, err := os.Open(filepath.Join(l.BaseDir, clean))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open media file: %w", err)
	}
	return f, nil
}
