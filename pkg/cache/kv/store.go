// Package kv defines the key-value capability behind the budget cache and
// the per-user alert email counter, with memory, SQLite and Redis backends.
package kv

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Get when the key is absent or expired.
	ErrNotFound = errors.New("kv: key not found")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("kv: store closed")

	// ErrEmptyKey is returned when an operation receives an empty key.
	ErrEmptyKey = errors.New("kv: key cannot be empty")
)

// Store is a shared key-value store with per-key expiry.
// Implementations must be safe for concurrent use and atomic per key.
type Store interface {
	// Get returns the value for key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key. A ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// DeletePattern removes every key matching a glob pattern
	// ('*' and '?') and returns how many were removed.
	DeletePattern(ctx context.Context, pattern string) (int, error)

	// Keys lists live keys matching a glob pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Incr atomically increments the integer at key and returns the new value.
	// When the key is created by this call its expiry is set to ttl.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}

// Sweeper is implemented by stores that keep expired keys until swept.
type Sweeper interface {
	// Sweep removes expired keys and returns how many were removed.
	Sweep(ctx context.Context) (int, error)
}

// Match reports whether key matches a glob pattern where '*' matches any
// run of characters (including ':') and '?' matches exactly one.
func Match(pattern, key string) bool {
	p, k := 0, 0
	star, mark := -1, 0
	for k < len(key) {
		switch {
		case p < len(pattern) && (pattern[p] == '?' || pattern[p] == key[k]):
			p++
			k++
		case p < len(pattern) && pattern[p] == '*':
			star, mark = p, k
			p++
		case star >= 0:
			p = star + 1
			mark++
			k = mark
		default:
			return false
		}
	}
	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}
