// Package storage is the durable key-value adapter the session store and rate limiter persist
// through. Values are opaque bytes; callers JSON-encode them.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("storage: key not found")

// ErrMalformed is returned by ReadJSON when the stored value does not decode.
var ErrMalformed = errors.New("storage: malformed value")

// Storage is a namespaced get/set/remove store.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Close() error
}

// ReadJSON loads key into v. It reports found=false for a missing key and wraps ErrMalformed
// when the value exists but cannot be decoded.
func ReadJSON(ctx context.Context, s Storage, key string, v any) (bool, error) {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("%w: %s: %v", ErrMalformed, key, err)
	}
	return true, nil
}

// WriteJSON encodes v and stores it under key.
func WriteJSON(ctx context.Context, s Storage, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}
