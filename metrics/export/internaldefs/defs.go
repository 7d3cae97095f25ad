// Package internaldefs holds the shared metric name table used by the
// Prometheus and OTel exporters so both surfaces stay consistent.
package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported lifecycle counter.
var CounterDefs = []CounterDef{
	{ID: goSession.MetricSessionCreated, Name: "gosession_created_total", Help: "Created sessions."},
	{ID: goSession.MetricSessionRead, Name: "gosession_read_total", Help: "Successful session reads."},
	{ID: goSession.MetricSessionExpiredHit, Name: "gosession_expired_hit_total", Help: "Reads and updates rejected by lazy expiration."},
	{ID: goSession.MetricUpdateSuccess, Name: "gosession_update_success_total", Help: "Committed session updates."},
	{ID: goSession.MetricUpdateConflict, Name: "gosession_update_conflict_total", Help: "Version-conflict retries inside the update loop."},
	{ID: goSession.MetricUpdateContention, Name: "gosession_update_contention_total", Help: "Update loops that exhausted their retry budget."},
	{ID: goSession.MetricSessionEnded, Name: "gosession_ended_total", Help: "Explicit session deletions."},
	{ID: goSession.MetricSessionReaped, Name: "gosession_reaped_total", Help: "Records removed by the reaper sweep."},
	{ID: goSession.MetricReapScanned, Name: "gosession_reap_scanned_total", Help: "Ids visited by the reaper sweep."},
	{ID: goSession.MetricIDCollision, Name: "gosession_id_collision_total", Help: "Id-generation collisions."},
	{ID: goSession.MetricCorruptRecord, Name: "gosession_corrupt_record_total", Help: "Corrupt record envelopes encountered."},
	{ID: goSession.MetricStorageError, Name: "gosession_storage_error_total", Help: "Storage-medium failures surfaced to callers."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricUpdateLatency, Name: "gosession_update_latency_seconds", Help: "Update commit latency histogram."},
}

// HistogramBounds are the Prometheus `le` labels for the fixed buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix are instrument-name-safe forms of the bounds.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed
// bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative form both
// exporters emit.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
