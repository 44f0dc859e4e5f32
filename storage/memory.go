package storage

import (
	"context"
	"sync"
)

// MemorySlot is an in-process slot for tests and ephemeral sessions.
type MemorySlot struct {
	mu    sync.Mutex
	token string
	set   bool
}

// NewMemorySlot creates an empty [MemorySlot].
func NewMemorySlot() *MemorySlot {
	return &MemorySlot{}
}

// Get reads the stored token. Returns [ErrNotFound] when empty.
func (m *MemorySlot) Get(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.set {
		return "", ErrNotFound
	}
	return m.token, nil
}

// Set replaces the stored token.
func (m *MemorySlot) Set(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.token = token
	m.set = true
	return nil
}

// Delete clears the slot. Deleting an empty slot is a no-op.
func (m *MemorySlot) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.token = ""
	m.set = false
	return nil
}
