package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// ErrObjectNotFound is returned by Download for keys that do not exist.
var ErrObjectNotFound = errors.New("object not found")

// Object describes a stored file.
type Object struct {
	Key     string    `json:"key"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// ObjectStore keeps signed documents. Keys are flat names such as
// "signed/signed_TX-1_invoice.pdf"; implementations reject keys that try to escape
// their root.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]Object, error)
	// GetPresignedURL returns "" when the backend has no direct URLs.
	GetPresignedURL(ctx context.Context, key string, expiration time.Duration) (string, error)
}

func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("invalid object key %q", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("invalid object key %q", key)
		}
	}
	return nil
}
