// Package storage publishes finished GeoPackages to object storage.
package storage

import (
	"context"
	"errors"
)

var (
	ErrObjectExists = errors.New("object already exists")
	ErrUploadFailed = errors.New("upload failed")
)

// DefaultPartSize is the S3 multipart threshold and part size (5MB).
const DefaultPartSize = 5 * 1024 * 1024

// ObjectStorage is where published GeoPackages land. Implementations
// include S3 and a local directory. Both methods return the ETag of the
// stored object.
type ObjectStorage interface {
	// Put stores the file at localPath under key, replacing any object
	// already there.
	Put(ctx context.Context, localPath, key string) (string, error)

	// ConditionalPut stores the file only if key is free. The check and the
	// write are one atomic step; a taken key yields ErrObjectExists.
	ConditionalPut(ctx context.Context, localPath, key string) (string, error)
}
