// Package goSession provides a durable session lifecycle engine: creation,
// optimistic-concurrency mutation, lazy expiration, and background reaping of
// per-client session records on pluggable storage backends (filesystem,
// Redis, in-memory).
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// goSession is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (MetricsSnapshot, ReapReport, AuditEvent). Record encoding
// and store backends live in the session sub-package; per-id locking lives
// under internal/ and is never exported.
//
// # What this package must NOT do
//
//   - Interpret payload contents; payloads are opaque caller-owned maps.
//   - Expose transport, request schemas, or scheduling; ReapExpired is an
//     idempotent sweep any external driver can invoke.
//   - Hold a cross-session lock during filesystem or Redis I/O; only the
//     per-id guard token is held.
//
// # Concurrency contract
//
// For a single id all committed writes form a total order matching the
// strictly increasing record version; no two writes from the same starting
// version both succeed. The per-id guard avoids needless conflicts inside one
// process, the store-level version check is the correctness backstop across
// processes.
package goSession
