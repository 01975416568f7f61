// Package kvstore provides the string-keyed durability substrate used by trend buffers.
package kvstore

import (
	"context"
	"errors"
)

var (
	// ErrNotConfigured indicates the backing store was not initialised.
	ErrNotConfigured = errors.New("kvstore: backend not configured")
)

// Store is a last-write-wins string blob store.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Closer releases backend resources.
type Closer interface {
	Close() error
}

// Key helpers for the per-instrument records.
func SparklineKey(id string) string { return "sparkline_" + id }
func ChangeKey(id string) string    { return "change_" + id }
func BasePriceKey(id string) string { return "basePrice_" + id }
