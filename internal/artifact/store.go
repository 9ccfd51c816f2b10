// Package artifact moves serialized model artifacts to and from durable storage.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// LatestKey names the artifact of the most recently published model.
const LatestKey = "latest"

// ErrNotFound is returned when no artifact is stored under a key.
var ErrNotFound = errors.New("artifact not found")

// BlobStore persists opaque artifact bytes by key.
type BlobStore interface {
	Put(ctx context.Context, key string, blob []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Name() string
}

// Publish stores blob under id and under LatestKey.
func Publish(ctx context.Context, s BlobStore, id string, blob []byte) error {
	if err := s.Put(ctx, id, blob); err != nil {
		return fmt.Errorf("%s: put %s: %w", s.Name(), id, err)
	}
	if err := s.Put(ctx, LatestKey, blob); err != nil {
		return fmt.Errorf("%s: put %s: %w", s.Name(), LatestKey, err)
	}
	return nil
}

func validKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return fmt.Errorf("invalid artifact key %q", key)
	}
	return nil
}
