package goSession

import (
	"errors"

	"github.com/MrEthical07/goSession/session"
)

var (
	// ErrSessionNotFound is returned when no record exists for the id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired is returned when the record's TTL has elapsed, even
	// if the reaper has not physically removed it yet.
	ErrSessionExpired = errors.New("session expired")
	// ErrContentionExceeded is returned when the bounded update retry loop
	// exhausted its attempts. Transient; safe to retry later.
	ErrContentionExceeded = errors.New("session update contention exceeded")
	// ErrIDExhausted is returned when id generation collided repeatedly.
	ErrIDExhausted = errors.New("session id generation exhausted")
	// ErrPayloadTooLarge is returned when the encoded payload exceeds the
	// configured maximum.
	ErrPayloadTooLarge = errors.New("session payload too large")
	// ErrEngineClosed is returned by operations on a closed engine.
	ErrEngineClosed = errors.New("engine closed")

	// ErrCorruptRecord re-exports the store-level corruption sentinel so
	// callers match against one package.
	ErrCorruptRecord = session.ErrCorruptRecord
	// ErrStorageUnavailable re-exports the store-level medium failure
	// sentinel. Never retried by the engine.
	ErrStorageUnavailable = session.ErrStoreUnavailable
)
