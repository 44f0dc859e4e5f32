package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileSlot persists the token as a single 0600 file. Writes go through a
// temp file and rename so a crash never leaves a half-written token behind.
//
// FileSlot instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type FileSlot struct {
	path string
	mu   sync.Mutex
}

// NewFileSlot creates a [FileSlot] at the given path. The parent directory
// must exist.
func NewFileSlot(path string) *FileSlot {
	return &FileSlot{path: path}
}

// Get reads the stored token. Returns [ErrNotFound] when the file is absent.
func (f *FileSlot) Get(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrSlotUnavailable, err)
	}
	if len(data) == 0 {
		return "", ErrNotFound
	}
	return string(data), nil
}

// Set replaces the stored token atomically.
func (f *FileSlot) Set(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSlotUnavailable, err)
	}
	tmpName := tmp.Name()

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrSlotUnavailable, err)
	}
	if _, err := tmp.WriteString(token); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrSlotUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrSlotUnavailable, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrSlotUnavailable, err)
	}
	return nil
}

// Delete removes the stored token. Deleting an empty slot is a no-op.
func (f *FileSlot) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrSlotUnavailable, err)
	}
	return nil
}
