package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("cache: key not found")

// Client defines the interface for a generic cache backend.
type Client interface {
	// Get retrieves the value for the given key.
	Get(ctx context.Context, key string) (string, error)
	// Set sets the value for the given key with expiration.
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	// Delete removes the value for the given key.
	Delete(ctx context.Context, key string) error
	// ScanPrefix retrieves all key-value pairs whose key starts with prefix.
	ScanPrefix(ctx context.Context, prefix string) (map[string]string, error)
}
