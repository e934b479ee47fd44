package interfaces

import (
	"context"
	"time"
)

// CredentialStore is a shared, expiring key-value cache reachable by every
// worker. Each key is an independent atomic put/get - no cross-key
// transactions are provided, so readers may observe a partially-updated
// status during a refresh.
type CredentialStore interface {
	// Get retrieves a value by key. Returns ErrKeyNotFound when the key is
	// absent or its TTL has elapsed.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a value with the given TTL. A zero TTL stores the value
	// without expiry.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
