// Package kv abstracts the durable key-value medium checklist data lives
// in. The production medium is a file per key under the data directory;
// tests use the in-memory medium. Both honor the same contract: Set and
// Delete are atomic per call, Get never fails on an absent key, and a
// medium shared with other processes can report their writes through Watch.
package kv

import (
	"context"
	"errors"
)

// ErrQuotaExceeded is returned by Set when the value would exceed the
// medium's configured capacity.
var ErrQuotaExceeded = errors.New("kv: quota exceeded")

// Medium is durable key-value storage. Values are opaque bytes.
type Medium interface {
	// Get returns the stored value, or nil when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key, replacing any previous value atomically.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Removing an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// Watcher is implemented by media that can observe writes made by other
// processes sharing the same physical storage. The callback receives the
// new raw value (nil when the key was removed) and is not invoked for this
// process's own writes.
type Watcher interface {
	Watch(key string, fn func(newValue []byte)) (cancel func(), err error)
}

type settings struct {
	quota int
}

// Option configures a medium.
type Option func(*settings)

// WithQuota caps the byte size a single Set may store, emulating the
// capacity limits of browser local storage.
func WithQuota(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.quota = n
		}
	}
}
