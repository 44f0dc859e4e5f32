package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when the slot holds no token.
	ErrNotFound = errors.New("no stored token")
	// ErrSlotUnavailable wraps backend failures (unreadable file, Redis down).
	ErrSlotUnavailable = errors.New("token slot unavailable")
)

// Slot is a durable single-value store for the raw session token.
//
// Get returns [ErrNotFound] when the slot is empty. Delete of an empty slot
// is a no-op. Implementations must be safe for concurrent use.
type Slot interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, token string) error
	Delete(ctx context.Context) error
}
