package session

// Record is the unit of persisted session state. Instances handed to callers
// are always clones; a Record is never shared mutably across goroutines.
//
// Timestamps are unix nanoseconds. Version starts at 1 on creation and
// increases by exactly one for every committed write.
type Record struct {
	ID             string
	CreatedAt      int64
	LastAccessedAt int64
	ExpiresAt      int64
	Version        uint64
	Payload        map[string]any
}

// Clone returns a copy with a freshly allocated payload map. Payload values
// are copied by reference; they must be treated as immutable JSON-serializable
// data by callers.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	if r.Payload != nil {
		out.Payload = make(map[string]any, len(r.Payload))
		for k, v := range r.Payload {
			out.Payload[k] = v
		}
	}
	return &out
}

// ExpiredAt reports whether the record is logically deleted at the given
// instant (unix nanoseconds). Expired records may still be physically present
// until the reaper removes them.
func (r *Record) ExpiredAt(now int64) bool {
	return now > r.ExpiresAt
}
