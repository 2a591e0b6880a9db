package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by KV.Get when no value exists for a key.
var ErrKeyNotFound = errors.New("ratelimit: key not found")

// KV is the key-value binding backing the window store. Implementations
// convert the absolute expiration instant to their native unit (Redis TTL,
// DynamoDB epoch-seconds attribute, in-memory deadline).
//
// Absence of a usable binding is an expected condition: the middleware
// probes with Ping and disables metering rather than failing requests.
type KV interface {
	// Get returns the stored value for key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key, scheduled to expire at expiresAt.
	Put(ctx context.Context, key string, value []byte, expiresAt time.Time) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Ping checks that the binding is reachable.
	Ping(ctx context.Context) error
}
