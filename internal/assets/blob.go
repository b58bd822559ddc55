package assets

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrInvalidPath is returned for storage paths that escape the blob root.
var ErrInvalidPath = errors.New("invalid storage path")

// BlobStore holds the raw bytes of uploaded and extracted files.
type BlobStore interface {
	Get(ctx context.Context, storagePath string) ([]byte, error)
	Put(ctx context.Context, storagePath string, data []byte, contentType string) (publicURL string, err error)
}

// FileBlobStore keeps blobs below a directory and exposes them under a
// public base URL.
type FileBlobStore struct {
	dir     string
	baseURL string
}

// NewFileBlobStore creates the blob directory if needed.
func NewFileBlobStore(dir, publicBaseURL string) (*FileBlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &FileBlobStore{dir: dir, baseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

// Dir is the directory served under the public base URL.
func (s *FileBlobStore) Dir() string { return s.dir }

func (s *FileBlobStore) resolve(storagePath string) (string, error) {
	clean := path.Clean("/" + filepath.ToSlash(storagePath))
	if clean == "/" || strings.Contains(storagePath, "..") {
		return "", fmt.Errorf("%q: %w", storagePath, ErrInvalidPath)
	}
	return filepath.Join(s.dir, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

// Get reads a blob. A missing blob yields os.ErrNotExist.
func (s *FileBlobStore) Get(ctx context.Context, storagePath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := s.resolve(storagePath)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(full)
}

// Put writes a blob atomically and returns its public URL.
func (s *FileBlobStore) Put(ctx context.Context, storagePath string, data []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	full, err := s.resolve(storagePath)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create blob directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return s.PublicURL(storagePath), nil
}

// PublicURL maps a storage path to the URL the page can reference.
func (s *FileBlobStore) PublicURL(storagePath string) string {
	parts := strings.Split(strings.Trim(filepath.ToSlash(storagePath), "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return s.baseURL + "/" + strings.Join(parts, "/")
}
