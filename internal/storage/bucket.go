// Package storage persists uploaded media objects.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/segmentio/ksuid"
)

var (
	ErrInvalidKey = errors.New("invalid object key")
	ErrNotFound   = errors.New("object not found")
)

// Bucket stores objects by key and reports the public URL they are served at.
type Bucket interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
	Open(ctx context.Context, key string) (*os.File, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// NewObjectKey returns "<prefix>/<ksuid><ext>". Keys sort by creation time.
func NewObjectKey(prefix, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return filepath.ToSlash(filepath.Join(prefix, ksuid.New().String()+ext))
}

// LocalBucket keeps objects on the local filesystem under root.
type LocalBucket struct {
	root      string
	publicURL string
}

// NewLocalBucket creates root when missing. publicURL is the prefix objects are
// served under, e.g. "/media".
func NewLocalBucket(root, publicURL string) (*LocalBucket, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	if publicURL == "" {
		publicURL = "/media"
	}
	return &LocalBucket{root: root, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// Root is the directory objects are stored in.
func (b *LocalBucket) Root() string { return b.root }

func (b *LocalBucket) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == "." || strings.HasPrefix(clean, "..") {
		return "", ErrInvalidKey
	}
	return filepath.Join(b.root, clean), nil
}

func (b *LocalBucket) Put(ctx context.Context, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := b.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return b.URL(key), nil
}

func (b *LocalBucket) Open(_ context.Context, key string) (*os.File, error) {
	path, err := b.resolve(key)
	if err != nil {
		return nil, err
	}
	// #nosec G304: path is confined to the bucket root by resolve
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return f, err
}

func (b *LocalBucket) Delete(_ context.Context, key string) error {
	path, err := b.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (b *LocalBucket) URL(key string) string {
	return b.publicURL + "/" + strings.TrimLeft(filepath.ToSlash(key), "/")
}

// KeyFromURL reverses URL for objects in this bucket.
func (b *LocalBucket) KeyFromURL(url string) (string, bool) {
	prefix := b.publicURL + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}
