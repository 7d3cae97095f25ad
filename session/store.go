package session

import (
	"context"
	"errors"
	"iter"
)

// ErrNotFound is returned when no record exists for the requested id.
var ErrNotFound = errors.New("session record not found")

// ErrVersionConflict is returned when a Put presents a stale expected version.
// The Engine retries this case; stores never do.
var ErrVersionConflict = errors.New("session version conflict")

// ErrCorruptRecord is returned when stored bytes do not decode to a
// well-formed record. It is never retried and halts further use of that id.
var ErrCorruptRecord = errors.New("corrupt session record")

// ErrStoreUnavailable is returned for storage-medium I/O failures (disk full,
// permission denied, connection loss). Retry policy belongs to the caller.
var ErrStoreUnavailable = errors.New("session store unavailable")

// NoVersion marks a create-only Put: the write succeeds only if no record
// exists for the id. Committed record versions are always >= 1.
const NoVersion uint64 = 0

// Store is the durable key-value mapping from session id to the latest
// committed [Record]. Implementations must make Put atomic: a record is
// either fully visible at its new version or not visible at all.
//
// Store implementations never retry; every failure maps onto the sentinel
// errors above and propagates unchanged.
type Store interface {
	// Put commits rec if expectedVersion matches the currently stored
	// version, or if expectedVersion is [NoVersion] and no record exists.
	// A mismatch fails with [ErrVersionConflict].
	Put(ctx context.Context, rec *Record, expectedVersion uint64) error

	// Get returns the current record or [ErrNotFound].
	Get(ctx context.Context, id string) (*Record, error)

	// Delete removes the record, failing with [ErrNotFound] when absent.
	// Callers that need idempotent semantics swallow that sentinel.
	Delete(ctx context.Context, id string) error

	// ListIDs produces a lazy, restartable sequence of stored ids for the
	// reaper sweep. It is best-effort: concurrent adds and removes may or
	// may not be observed.
	ListIDs(ctx context.Context) iter.Seq2[string, error]
}
