// Package storage provides the durable slot that holds the raw session token
// between process runs.
//
// The slot is a single-value store with get, set, and delete. Three
// implementations are provided: [FileSlot] for per-user desktop installs,
// [RedisSlot] for shared kiosk deployments where the token follows the device
// profile, and [MemorySlot] for tests and ephemeral runs.
//
// # What this package must NOT do
//
//   - Inspect or validate token contents (that belongs to the token package).
//   - Hold more than one token per slot.
package storage
