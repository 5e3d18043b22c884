// Package blob holds the object store clients the file transfer proxy writes
// to: an HTTP blob API and a local directory for development.
package blob

import (
	"context"
	"io"
	"time"
)

// Object describes one stored object.
type Object struct {
	Pathname    string    `json:"pathname"`
	URL         string    `json:"url"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// Store is an object store addressed by pathname keys.
type Store interface {
	// Put stores size bytes read from r under key and returns the public
	// location of the object.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (Object, error)
	// Delete removes the object. A missing object yields errors.ErrNotFound.
	Delete(ctx context.Context, key string) error
	// List returns every object whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]Object, error)
}
