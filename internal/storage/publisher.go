package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	apperrors "github.com/fgdb2gpkg/fgdb2gpkg/internal/errors"
)

// Receipt describes a published GeoPackage.
type Receipt struct {
	Key  string
	ETag string
	Size int64
}

// Publisher uploads finished GeoPackages under a key prefix.
type Publisher struct {
	store   ObjectStorage
	prefix  string
	replace bool
}

// NewPublisher creates a publisher. When replace is false an existing
// object with the same key is left alone and publishing fails with
// ErrObjectExists.
func NewPublisher(store ObjectStorage, prefix string, replace bool) *Publisher {
	return &Publisher{
		store:   store,
		prefix:  strings.Trim(prefix, "/"),
		replace: replace,
	}
}

// Key returns the object key a local file is published under.
func (p *Publisher) Key(localPath string) string {
	return path.Join(p.prefix, filepath.Base(localPath))
}

// Publish uploads the GeoPackage at localPath. The local file is never
// modified. Failures are UPLOAD_FAILED errors.
func (p *Publisher) Publish(ctx context.Context, localPath string) (*Receipt, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return nil, apperrors.NewStorageError(apperrors.CodeUploadFailed,
			fmt.Sprintf("cannot publish %s", localPath), err)
	}
	if info.IsDir() {
		return nil, apperrors.NewStorageError(apperrors.CodeUploadFailed,
			fmt.Sprintf("cannot publish %s", localPath), fmt.Errorf("is a directory"))
	}

	key := p.Key(localPath)
	put := p.store.Put
	if !p.replace {
		put = p.store.ConditionalPut
	}
	etag, err := put(ctx, localPath, key)
	if err != nil {
		return nil, apperrors.NewStorageError(apperrors.CodeUploadFailed,
			fmt.Sprintf("failed to publish %s to %s", localPath, key), err)
	}
	return &Receipt{Key: key, ETag: etag, Size: info.Size()}, nil
}
