package goSession

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goSession/internal"
	"github.com/MrEthical07/goSession/internal/keylock"
	"github.com/MrEthical07/goSession/session"
	"github.com/MrEthical07/goSession/token"
)

// idGenerationAttempts bounds create-time collision handling: one regenerate
// after a collision, then ErrIDExhausted.
const idGenerationAttempts = 2

// Engine is the lifecycle manager and the only component callers interact
// with. All methods are safe for concurrent use after [Builder.Build].
type Engine struct {
	config  Config
	store   session.Store
	guard   *keylock.KeyLock
	metrics *Metrics
	audit   *auditDispatcher
	tokens  *token.Manager
	now     func() time.Time
	closed  atomic.Bool
}

// ReapReport summarizes one expired-record sweep.
type ReapReport struct {
	// Scanned is the number of ids visited.
	Scanned int
	// Reaped is the number of records deleted by this sweep.
	Reaped int
	// Skipped is the number of corrupt records left in place for operator
	// inspection.
	Skipped int
}

// MutateFunc transforms a session payload in place. It must be side-effect
// free apart from the map: under contention the engine re-reads and re-applies
// it, and an aborted attempt is never persisted.
type MutateFunc func(payload map[string]any) error

// CreateSession generates a fresh unguessable id and persists a new record
// with version 1. A non-positive ttl falls back to the configured default.
func (e *Engine) CreateSession(ctx context.Context, payload map[string]any, ttl time.Duration) (*session.Record, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	if err := e.checkPayloadSize(payload); err != nil {
		return nil, err
	}

	ttl = e.normalizeTTL(ttl)
	now := e.now().UnixNano()

	owned := make(map[string]any, len(payload))
	for k, v := range payload {
		owned[k] = v
	}

	var lastErr error
	for attempt := 0; attempt < idGenerationAttempts; attempt++ {
		id, err := e.newID()
		if err != nil {
			return nil, err
		}

		rec := &session.Record{
			ID:             id,
			CreatedAt:      now,
			LastAccessedAt: now,
			ExpiresAt:      now + ttl.Nanoseconds(),
			Version:        1,
			Payload:        owned,
		}

		err = e.store.Put(ctx, rec, session.NoVersion)
		if err == nil {
			e.metrics.Inc(MetricSessionCreated)
			e.emitAudit(ctx, AuditSessionCreated, id, 1, nil)
			return rec, nil
		}
		if errors.Is(err, session.ErrVersionConflict) {
			e.metrics.Inc(MetricIDCollision)
			lastErr = err
			continue
		}
		return nil, e.mapStoreErr(err)
	}

	return nil, fmt.Errorf("%w: %v", ErrIDExhausted, lastErr)
}

// ReadSession returns the current record for id, treating a record past its
// expiry as absent per lazy expiration. With sliding expiration enabled the
// read renews the TTL through a best-effort compare-and-swap touch; losing
// that race to a concurrent writer is not an error.
func (e *Engine) ReadSession(ctx context.Context, id string) (*session.Record, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}

	release, err := e.guard.Acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	rec, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, e.mapStoreErr(err)
	}

	now := e.now()
	if rec.ExpiredAt(now.UnixNano()) {
		e.metrics.Inc(MetricSessionExpiredHit)
		return nil, fmt.Errorf("%w: %s", ErrSessionExpired, id)
	}

	if e.config.Session.SlidingExpiration {
		touched := rec.Clone()
		touched.Version = rec.Version + 1
		touched.LastAccessedAt = now.UnixNano()
		if renewed := now.Add(e.config.Session.DefaultTTL).UnixNano(); renewed > touched.ExpiresAt {
			touched.ExpiresAt = renewed
		}
		switch err := e.store.Put(ctx, touched, rec.Version); {
		case err == nil:
			rec = touched
			e.emitAudit(ctx, AuditSessionTouched, id, touched.Version, nil)
		case errors.Is(err, session.ErrVersionConflict):
			// Concurrent writer renewed for us; keep what we read.
		default:
			return nil, e.mapStoreErr(err)
		}
	}

	e.metrics.Inc(MetricSessionRead)
	return rec, nil
}

// UpdateSession runs the guarded read-modify-write loop: load, apply mutate
// to a payload clone, bump the version, refresh the access time, optionally
// renew the TTL, and commit with the version just read. Version conflicts are
// retried up to the configured bound before ErrContentionExceeded.
//
// renewTTL zero keeps the current expiry; a positive value renews it.
func (e *Engine) UpdateSession(ctx context.Context, id string, mutate MutateFunc, renewTTL time.Duration) (*session.Record, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	if mutate == nil {
		return nil, errors.New("mutate function required")
	}

	release, err := e.guard.Acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()

	for attempt := 0; attempt < e.config.Session.MaxUpdateRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := e.store.Get(ctx, id)
		if err != nil {
			return nil, e.mapStoreErr(err)
		}

		now := e.now().UnixNano()
		if rec.ExpiredAt(now) {
			e.metrics.Inc(MetricSessionExpiredHit)
			return nil, fmt.Errorf("%w: %s", ErrSessionExpired, id)
		}

		work := rec.Clone()
		if work.Payload == nil {
			work.Payload = map[string]any{}
		}
		if err := mutate(work.Payload); err != nil {
			return nil, err
		}
		if err := e.checkPayloadSize(work.Payload); err != nil {
			return nil, err
		}

		work.Version = rec.Version + 1
		work.LastAccessedAt = now
		if renewTTL > 0 {
			work.ExpiresAt = now + e.normalizeTTL(renewTTL).Nanoseconds()
		}

		switch err := e.store.Put(ctx, work, rec.Version); {
		case err == nil:
			e.metrics.Inc(MetricUpdateSuccess)
			e.metrics.Observe(MetricUpdateLatency, time.Since(start))
			e.emitAudit(ctx, AuditSessionUpdated, id, work.Version, nil)
			return work, nil
		case errors.Is(err, session.ErrVersionConflict):
			e.metrics.Inc(MetricUpdateConflict)
		default:
			return nil, e.mapStoreErr(err)
		}
	}

	e.metrics.Inc(MetricUpdateContention)
	err = fmt.Errorf("%w: %d attempts", ErrContentionExceeded, e.config.Session.MaxUpdateRetries)
	e.emitAudit(ctx, AuditSessionUpdated, id, 0, err)
	return nil, err
}

// TouchSession renews the TTL without mutating the payload. A non-positive
// ttl falls back to the configured default.
func (e *Engine) TouchSession(ctx context.Context, id string, ttl time.Duration) (*session.Record, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}

	ttl = e.normalizeTTL(ttl)

	release, err := e.guard.Acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	for attempt := 0; attempt < e.config.Session.MaxUpdateRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := e.store.Get(ctx, id)
		if err != nil {
			return nil, e.mapStoreErr(err)
		}

		now := e.now().UnixNano()
		if rec.ExpiredAt(now) {
			e.metrics.Inc(MetricSessionExpiredHit)
			return nil, fmt.Errorf("%w: %s", ErrSessionExpired, id)
		}

		work := rec.Clone()
		work.Version = rec.Version + 1
		work.LastAccessedAt = now
		work.ExpiresAt = now + ttl.Nanoseconds()

		switch err := e.store.Put(ctx, work, rec.Version); {
		case err == nil:
			e.emitAudit(ctx, AuditSessionTouched, id, work.Version, nil)
			return work, nil
		case errors.Is(err, session.ErrVersionConflict):
			e.metrics.Inc(MetricUpdateConflict)
		default:
			return nil, e.mapStoreErr(err)
		}
	}

	e.metrics.Inc(MetricUpdateContention)
	return nil, fmt.Errorf("%w: %d attempts", ErrContentionExceeded, e.config.Session.MaxUpdateRetries)
}

// EndSession deletes the record for id. Ending a session that is already gone
// is a no-op; the call never fails on absence.
func (e *Engine) EndSession(ctx context.Context, id string) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}

	release, err := e.guard.Acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	if err := e.store.Delete(ctx, id); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil
		}
		return e.mapStoreErr(err)
	}

	e.metrics.Inc(MetricSessionEnded)
	e.emitAudit(ctx, AuditSessionEnded, id, 0, nil)
	return nil
}

// ReapExpired sweeps the store and deletes every record whose expiry plus the
// grace window has elapsed. No lock is held across the sweep, only the per-id
// token during each delete attempt; races with explicit EndSession are
// ignored. Corrupt records are skipped and reported.
func (e *Engine) ReapExpired(ctx context.Context) (ReapReport, error) {
	var report ReapReport
	if e.closed.Load() {
		return report, ErrEngineClosed
	}

	now := e.now().UnixNano()
	grace := e.config.Reaper.GraceWindow.Nanoseconds()

	for id, err := range e.store.ListIDs(ctx) {
		if err != nil {
			return report, e.mapStoreErr(err)
		}

		report.Scanned++
		e.metrics.Inc(MetricReapScanned)

		rec, err := e.store.Get(ctx, id)
		switch {
		case err == nil:
		case errors.Is(err, session.ErrNotFound):
			continue
		case errors.Is(err, session.ErrCorruptRecord):
			report.Skipped++
			e.metrics.Inc(MetricCorruptRecord)
			e.emitAudit(ctx, AuditCorruptRecord, id, 0, err)
			continue
		default:
			return report, e.mapStoreErr(err)
		}

		if now <= rec.ExpiresAt+grace {
			continue
		}

		release, err := e.guard.Acquire(ctx, id)
		if err != nil {
			return report, err
		}
		err = e.store.Delete(ctx, id)
		release()

		switch {
		case err == nil:
			report.Reaped++
			e.metrics.Inc(MetricSessionReaped)
			e.emitAudit(ctx, AuditSessionReaped, id, rec.Version, nil)
		case errors.Is(err, session.ErrNotFound):
			// Lost the race to an explicit EndSession; already gone.
		default:
			return report, e.mapStoreErr(err)
		}
	}

	return report, nil
}

// RunReaper drives ReapExpired on a ticker until ctx is done. External
// schedulers can ignore this and call ReapExpired directly. A non-positive
// interval falls back to the configured reaper interval.
func (e *Engine) RunReaper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = e.config.Reaper.Interval
	}
	if interval <= 0 {
		return errors.New("reaper interval required")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// Sweep failures are reflected in metrics and audit; the
			// reaper keeps its cadence.
			_, _ = e.ReapExpired(ctx)
		}
	}
}

// IssueHandle signs a transport handle for rec, expiring with the record.
// Fails when handles are not configured.
func (e *Engine) IssueHandle(rec *session.Record) (string, error) {
	if e.tokens == nil {
		return "", errors.New("session handles not configured")
	}
	if rec == nil {
		return "", errors.New("record required")
	}
	return e.tokens.Issue(rec.ID, time.Unix(0, rec.ExpiresAt))
}

// ResolveHandle verifies a transport handle and returns the session id it
// carries. The record itself may still be expired or gone; callers follow up
// with ReadSession.
func (e *Engine) ResolveHandle(handle string) (string, error) {
	if e.tokens == nil {
		return "", errors.New("session handles not configured")
	}
	return e.tokens.Parse(handle)
}

// MetricsSnapshot returns a point-in-time copy of all engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	return e.metrics.Snapshot()
}

// AuditDropped returns the number of audit events dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	return e.audit.Dropped()
}

// Close stops the audit dispatcher and rejects further operations.
func (e *Engine) Close() {
	if e.closed.Swap(true) {
		return
	}
	e.audit.Close()
}

func (e *Engine) newID() (string, error) {
	switch e.config.Session.IDStrategy {
	case IDUUID:
		return internal.NewUUIDSessionID()
	default:
		sid, err := internal.NewSessionID()
		if err != nil {
			return "", err
		}
		return sid.String(), nil
	}
}

func (e *Engine) normalizeTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		ttl = e.config.Session.DefaultTTL
	}
	if max := e.config.Session.MaxTTL; max > 0 && ttl > max {
		ttl = max
	}
	return ttl
}

func (e *Engine) checkPayloadSize(payload map[string]any) error {
	limit := e.config.Session.MaxPayloadSize
	if limit <= 0 || payload == nil {
		return nil
	}
	blob, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if len(blob) > limit {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, len(blob), limit)
	}
	return nil
}

func (e *Engine) mapStoreErr(err error) error {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return fmt.Errorf("%w", ErrSessionNotFound)
	case errors.Is(err, session.ErrCorruptRecord):
		e.metrics.Inc(MetricCorruptRecord)
		return err
	case errors.Is(err, session.ErrStoreUnavailable):
		e.metrics.Inc(MetricStorageError)
		return err
	default:
		return err
	}
}

func (e *Engine) emitAudit(ctx context.Context, eventType, id string, version uint64, opErr error) {
	if e.audit == nil {
		return
	}
	event := AuditEvent{
		Timestamp: e.now(),
		EventType: eventType,
		SessionID: id,
		Version:   version,
		Success:   opErr == nil,
	}
	if opErr != nil {
		event.Error = opErr.Error()
	}
	e.audit.Emit(ctx, event)
}
