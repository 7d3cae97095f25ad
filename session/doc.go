// Package session provides durable session record persistence and the compact
// binary record encoding shared by every store backend.
//
// # Binary encoding
//
// Records are stored as a compact binary envelope (format v1) carrying the
// record id, version counter, lifecycle timestamps, and an opaque JSON payload
// blob. The encoder is append-only: future versions add fields but never
// reinterpret old ones.
//
// # Architecture boundaries
//
// This package owns the [Store] contract, its backends ([FileStore],
// [RedisStore], [MemoryStore]), and the [Record] model. It does NOT decide
// expiration policy, generate ids, or retry conflicts; those responsibilities
// belong to the Engine.
//
// # What this package must NOT do
//
//   - Import goSession or token (no upward imports).
//   - Interpret payload contents.
//   - Retry storage-medium failures; they surface as [ErrStoreUnavailable].
package session
