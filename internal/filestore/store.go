// Package filestore is the object-storage contract schema documents are
// shared through. The introspect command publishes generated documents
// with PutObject; describe and serve read them back with ListObjects and
// GetObject.
//
//	store, err := minio.New(ctx, filestore.DefaultConfig("localhost:9000", key, secret))
//	if err != nil { ... }
//	defer store.Close()
//	cat, err := schema.LoadStore(ctx, store, "schemas", "models/")
package filestore

import (
	"context"
	"io"
)

// Store is implemented by every object-storage backend.
type Store interface {
	// Ping checks that the backend, and the configured bucket if any, are
	// reachable.
	Ping(ctx context.Context) error

	Close() error

	// ListObjects returns the entries of bucket selected by opts.
	ListObjects(ctx context.Context, bucket string, opts ListOptions) ([]ObjectInfo, error)

	// GetObject opens the object at key. The caller must Close it.
	GetObject(ctx context.Context, bucket, key string) (Object, error)

	// PutObject replaces the object at key with size bytes read from r.
	// size is -1 when unknown.
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) (*ObjectInfo, error)
}
