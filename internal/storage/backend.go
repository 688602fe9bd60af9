// Package storage provides the key-value persistence backend consumed by the
// job store and the day-bucket cache. The default backend is an in-process
// map; a Postgres-backed implementation can be substituted without touching
// the callers.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable indicates the backing store could not be reached. Callers
// log it and retry the write on the next update cycle.
var ErrUnavailable = errors.New("storage backend unavailable")

// Backend is the narrow contract both the job store and the day-bucket cache
// persist through: opaque serialized records, optional TTL, and bulk key
// enumeration for cleanup sweeps.
type Backend interface {
	// Get returns the value for key. The boolean is false when the key is
	// absent or its TTL has elapsed.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys enumerates live keys with the given prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
