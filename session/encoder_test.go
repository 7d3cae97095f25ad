package session

import (
	"errors"
	"testing"
)

func sampleRecord() *Record {
	return &Record{
		ID:             "sess-abc",
		CreatedAt:      1_700_000_000_000_000_000,
		LastAccessedAt: 1_700_000_100_000_000_000,
		ExpiresAt:      1_700_003_600_000_000_000,
		Version:        3,
		Payload: map[string]any{
			"user":  "alice",
			"count": float64(7),
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rec := sampleRecord()

	data, err := Encode(rec)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if got.ID != rec.ID {
		t.Fatalf("id mismatch: got %q, want %q", got.ID, rec.ID)
	}
	if got.Version != rec.Version {
		t.Fatalf("version mismatch: got %d, want %d", got.Version, rec.Version)
	}
	if got.CreatedAt != rec.CreatedAt || got.LastAccessedAt != rec.LastAccessedAt || got.ExpiresAt != rec.ExpiresAt {
		t.Fatalf("timestamp mismatch: got %+v", got)
	}
	if got.Payload["user"] != "alice" {
		t.Fatalf("payload user mismatch: got %v", got.Payload["user"])
	}
	if got.Payload["count"] != float64(7) {
		t.Fatalf("payload count mismatch: got %v", got.Payload["count"])
	}
}

func TestEncodeNilPayloadRoundTrips(t *testing.T) {
	rec := sampleRecord()
	rec.Payload = nil

	data, err := Encode(rec)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.Payload == nil {
		t.Fatal("expected non-nil payload map after decode")
	}
	if len(got.Payload) != 0 {
		t.Fatalf("expected empty payload, got %v", got.Payload)
	}
}

func TestEncodeRejectsInvalidRecords(t *testing.T) {
	long := make([]byte, 256)
	for i := range long {
		long[i] = 'a'
	}

	cases := []struct {
		name   string
		mutate func(*Record)
	}{
		{"missing id", func(r *Record) { r.ID = "" }},
		{"id too long", func(r *Record) { r.ID = string(long) }},
		{"zero version", func(r *Record) { r.Version = 0 }},
		{"expiry before creation", func(r *Record) { r.ExpiresAt = r.CreatedAt - 1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := sampleRecord()
			tc.mutate(rec)
			if _, err := Encode(rec); err == nil {
				t.Fatal("expected encode error")
			}
		})
	}
}

func TestDecodeCorruptEnvelopes(t *testing.T) {
	valid, err := Encode(sampleRecord())
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	zeroVersion := append([]byte(nil), valid...)
	for i := 0; i < 8; i++ {
		zeroVersion[2+len("sess-abc")+i] = 0
	}

	badJSON := append([]byte(nil), valid...)
	badJSON[len(badJSON)-1] = '{'

	cases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"unknown format", []byte{99, 1, 'x'}},
		{"zero id length", []byte{1, 0}},
		{"truncated id", []byte{1, 5, 'a', 'b'}},
		{"truncated body", valid[:len(valid)/2]},
		{"trailing bytes", append(append([]byte(nil), valid...), 0xFF)},
		{"zero version", zeroVersion},
		{"invalid payload json", badJSON},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.data)
			if !errors.Is(err, ErrCorruptRecord) {
				t.Fatalf("expected ErrCorruptRecord, got %v", err)
			}
		})
	}
}

func TestDecodeRejectsInvertedTimestamps(t *testing.T) {
	rec := sampleRecord()
	data, err := Encode(rec)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	// Flip the expiry to land before creation. The expiry field sits after
	// format, id length, id, version, created, and accessed.
	off := 2 + len(rec.ID) + 8 + 8 + 8
	for i := 0; i < 8; i++ {
		data[off+i] = 0
	}

	if _, err := Decode(data); !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("expected ErrCorruptRecord, got %v", err)
	}
}
