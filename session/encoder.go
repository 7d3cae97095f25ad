package session

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const (
	recordFormatVersionCurrent = 1

	maxPayloadBlobSize = 1 << 26 // 64 MiB hard ceiling, decode guard only
)

// Encode serializes a record into the versioned binary envelope. The payload
// map is marshaled as a JSON blob so the store never interprets its contents.
func Encode(r *Record) ([]byte, error) {
	if r == nil {
		return nil, errors.New("nil record")
	}
	if r.ID == "" {
		return nil, errors.New("record id missing")
	}
	if len(r.ID) > 255 {
		return nil, errors.New("record id too long")
	}
	if r.Version == 0 {
		return nil, errors.New("record version must be >= 1")
	}
	if r.ExpiresAt < r.CreatedAt {
		return nil, errors.New("record expires before creation")
	}

	payload := r.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	blob, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	if len(blob) > maxPayloadBlobSize {
		return nil, errors.New("payload blob too large")
	}

	var buf bytes.Buffer
	buf.Grow(32 + len(r.ID) + len(blob))

	buf.WriteByte(recordFormatVersionCurrent)
	buf.WriteByte(byte(len(r.ID)))
	buf.WriteString(r.ID)

	if err := binary.Write(&buf, binary.BigEndian, r.Version); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, r.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, r.LastAccessedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, r.ExpiresAt); err != nil {
		return nil, err
	}

	if err := binary.Write(&buf, binary.BigEndian, uint32(len(blob))); err != nil {
		return nil, err
	}
	buf.Write(blob)

	return buf.Bytes(), nil
}

// Decode parses a binary envelope back into a [Record]. Any structural
// violation (truncation, unknown format version, missing id, inverted
// timestamps, zero version, invalid payload JSON) fails with
// [ErrCorruptRecord].
func Decode(data []byte) (*Record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: empty envelope", ErrCorruptRecord)
	}
	if version != recordFormatVersionCurrent {
		return nil, fmt.Errorf("%w: unknown format version %d", ErrCorruptRecord, version)
	}

	idLen, err := reader.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated id length", ErrCorruptRecord)
	}
	if idLen == 0 {
		return nil, fmt.Errorf("%w: id missing", ErrCorruptRecord)
	}
	id := make([]byte, idLen)
	if _, err := io.ReadFull(reader, id); err != nil {
		return nil, fmt.Errorf("%w: truncated id", ErrCorruptRecord)
	}

	r := &Record{ID: string(id)}

	if err := binary.Read(reader, binary.BigEndian, &r.Version); err != nil {
		return nil, fmt.Errorf("%w: truncated version", ErrCorruptRecord)
	}
	if r.Version == 0 {
		return nil, fmt.Errorf("%w: zero version", ErrCorruptRecord)
	}
	if err := binary.Read(reader, binary.BigEndian, &r.CreatedAt); err != nil {
		return nil, fmt.Errorf("%w: truncated created timestamp", ErrCorruptRecord)
	}
	if err := binary.Read(reader, binary.BigEndian, &r.LastAccessedAt); err != nil {
		return nil, fmt.Errorf("%w: truncated access timestamp", ErrCorruptRecord)
	}
	if err := binary.Read(reader, binary.BigEndian, &r.ExpiresAt); err != nil {
		return nil, fmt.Errorf("%w: truncated expiry timestamp", ErrCorruptRecord)
	}
	if r.ExpiresAt < r.CreatedAt {
		return nil, fmt.Errorf("%w: expiry precedes creation", ErrCorruptRecord)
	}

	var blobLen uint32
	if err := binary.Read(reader, binary.BigEndian, &blobLen); err != nil {
		return nil, fmt.Errorf("%w: truncated payload length", ErrCorruptRecord)
	}
	if blobLen > maxPayloadBlobSize {
		return nil, fmt.Errorf("%w: payload length out of range", ErrCorruptRecord)
	}
	blob := make([]byte, blobLen)
	if _, err := io.ReadFull(reader, blob); err != nil {
		return nil, fmt.Errorf("%w: truncated payload", ErrCorruptRecord)
	}
	if reader.Len() != 0 {
		return nil, fmt.Errorf("%w: trailing bytes", ErrCorruptRecord)
	}

	payload := map[string]any{}
	if blobLen > 0 {
		if err := json.Unmarshal(blob, &payload); err != nil {
			return nil, fmt.Errorf("%w: payload not valid JSON", ErrCorruptRecord)
		}
	}
	r.Payload = payload

	return r, nil
}
