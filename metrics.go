package goSession

import (
	"sync/atomic"
	"time"
)

// MetricID indexes a lifecycle counter or histogram.
type MetricID uint16

const (
	// MetricSessionCreated counts successful session creations.
	MetricSessionCreated MetricID = iota
	// MetricSessionRead counts successful reads.
	MetricSessionRead
	// MetricSessionExpiredHit counts reads and updates rejected by lazy
	// expiration.
	MetricSessionExpiredHit
	// MetricUpdateSuccess counts committed update loops.
	MetricUpdateSuccess
	// MetricUpdateConflict counts version-conflict retries inside the loop.
	MetricUpdateConflict
	// MetricUpdateContention counts update loops that exhausted retries.
	MetricUpdateContention
	// MetricSessionEnded counts explicit session deletions.
	MetricSessionEnded
	// MetricSessionReaped counts records removed by the sweep.
	MetricSessionReaped
	// MetricReapScanned counts ids visited by the sweep.
	MetricReapScanned
	// MetricIDCollision counts id-generation collisions.
	MetricIDCollision
	// MetricCorruptRecord counts corrupt envelopes encountered.
	MetricCorruptRecord
	// MetricStorageError counts storage-medium failures surfaced to callers.
	MetricStorageError
	// MetricUpdateLatency is the update commit latency histogram.
	MetricUpdateLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed-size, lock-free counter set. All methods are safe for
// concurrent use; a nil receiver is a no-op so disabled engines pay nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters and histograms.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics constructs the counter set from config.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc adds one to the counter for id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records a latency sample. Only MetricUpdateLatency carries a
// histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || id != MetricUpdateLatency {
		return
	}
	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current counter value for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and histogram atomically per cell.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricUpdateLatency].buckets[i])
		}
		s.Histograms[MetricUpdateLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
