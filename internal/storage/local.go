package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStorage publishes into a local directory, typically a shared mount
// that downstream consumers read GeoPackages from.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates the base directory if needed.
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

// Put copies localPath to key. The copy is written under a temporary name
// and renamed into place, so readers never see a partial GeoPackage.
func (l *LocalStorage) Put(ctx context.Context, localPath, key string) (string, error) {
	return l.put(ctx, localPath, key, os.Rename)
}

// ConditionalPut is Put for a key that must not exist yet. The temporary
// copy is hard-linked into place, which fails if the name is taken.
func (l *LocalStorage) ConditionalPut(ctx context.Context, localPath, key string) (string, error) {
	etag, err := l.put(ctx, localPath, key, os.Link)
	if errors.Is(err, os.ErrExist) {
		return "", fmt.Errorf("%w: %s", ErrObjectExists, key)
	}
	return etag, err
}

func (l *LocalStorage) put(ctx context.Context, localPath, key string, place func(oldpath, newpath string) error) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	destPath := l.fullPath(key)
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	hash := md5.New()
	if _, err := io.Copy(io.MultiWriter(tmp, hash), src); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if err := place(tmpPath, destPath); err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

func (l *LocalStorage) fullPath(key string) string {
	return filepath.Join(l.basePath, filepath.FromSlash(key))
}
