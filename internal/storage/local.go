package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// FSStorage implements ObjectStorage on an afero filesystem. The OS-backed
// variant is rooted with afero.NewBasePathFs so keys cannot escape it.
type FSStorage struct {
	fs        afero.Fs
	publicURL string
}

// NewFSStorage wraps fs. publicURL, when set, prefixes GetURL results.
func NewFSStorage(fs afero.Fs, publicURL string) *FSStorage {
	return &FSStorage{fs: fs, publicURL: strings.TrimSuffix(publicURL, "/")}
}

func cleanKey(key string) (string, error) {
	k := path.Clean("/" + key)
	if k == "/" {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return k, nil
}

// Upload writes the object, creating parent directories as needed.
func (s *FSStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := s.fs.MkdirAll(path.Dir(k), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := s.fs.Create(k)
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}
	n, err := io.Copy(f, reader)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = s.fs.Remove(k)
		return fmt.Errorf("failed to upload object: %w", err)
	}
	if size >= 0 && n != size {
		_ = s.fs.Remove(k)
		return fmt.Errorf("failed to upload object: wrote %d of %d bytes", n, size)
	}
	return nil
}

func (s *FSStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	k, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	f, err := s.fs.Open(k)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to download object %s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to download object: %w", err)
	}
	return f, nil
}

func (s *FSStorage) GetURL(key string) string {
	k := strings.TrimPrefix(key, "/")
	if s.publicURL == "" {
		return k
	}
	return s.publicURL + "/" + k
}

func (s *FSStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(k); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func (s *FSStorage) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	k, err := cleanKey(key)
	if err != nil {
		return false, err
	}
	ok, err := afero.Exists(s.fs, k)
	if err != nil {
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}
	return ok, nil
}
