package object

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrObjectExists is returned by Put when the key is already taken.
	ErrObjectExists = errors.New("object already exists")
	// ErrObjectNotFound is returned by Open when the key does not exist.
	ErrObjectNotFound = errors.New("object not found")
)

// ObjectStore stores immutable binary objects under caller-chosen keys.
type ObjectStore interface {
	// Put writes r under key and never overwrites an existing object.
	Put(ctx context.Context, key, contentType string, r io.Reader, size int64) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes key. A missing object is not an error.
	Delete(ctx context.Context, key string) error
}
