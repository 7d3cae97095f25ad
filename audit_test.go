package goSession

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestDispatcherDeliversEvents(t *testing.T) {
	sink := NewChannelSink(8)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 8}, sink)
	t.Cleanup(d.Close)

	d.Emit(context.Background(), AuditEvent{
		Timestamp: time.Now(),
		EventType: AuditSessionCreated,
		SessionID: "s1",
		Version:   1,
		Success:   true,
	})

	select {
	case event := <-sink.Events():
		if event.EventType != AuditSessionCreated || event.SessionID != "s1" {
			t.Fatalf("unexpected event: %+v", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event never reached the sink")
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	// A blocking sink keeps the dispatcher goroutine busy so the buffer
	// fills deterministically.
	gate := make(chan struct{})
	sink := blockingSink{gate: gate}

	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// First event occupies the worker, second fills the buffer, the rest drop.
	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: AuditSessionEnded})
	}

	if d.Dropped() == 0 {
		t.Fatal("expected dropped events under backpressure")
	}

	close(gate)
	d.Close()
}

type blockingSink struct {
	gate chan struct{}
}

func (s blockingSink) Emit(context.Context, AuditEvent) {
	<-s.gate
}

func TestDispatcherDrainsOnClose(t *testing.T) {
	sink := NewChannelSink(16)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 16}, sink)

	const events = 5
	for i := 0; i < events; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: AuditSessionReaped})
	}
	d.Close()

	received := 0
	for received < events {
		select {
		case <-sink.Events():
			received++
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of %d buffered events delivered", received, events)
		}
	}
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: false}, nil)
	if d != nil {
		t.Fatal("disabled audit must not spawn a dispatcher")
	}
	// Nil receivers are safe.
	d.Emit(context.Background(), AuditEvent{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reported drops")
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Unix(1_700_000_000, 0).UTC(),
		EventType: AuditSessionUpdated,
		SessionID: "s1",
		Version:   3,
		Success:   true,
	})

	var decoded AuditEvent
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("sink output not valid JSON: %v", err)
	}
	if decoded.EventType != AuditSessionUpdated || decoded.Version != 3 {
		t.Fatalf("decoded event mismatch: %+v", decoded)
	}
}

func TestEngineEmitsAuditEvents(t *testing.T) {
	sink := NewChannelSink(32)

	cfg := DefaultConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 32

	e := newTestEngineWithAudit(t, cfg, sink)
	ctx := context.Background()

	rec, err := e.CreateSession(ctx, nil, time.Hour)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := e.EndSession(ctx, rec.ID); err != nil {
		t.Fatalf("end failed: %v", err)
	}

	want := []string{AuditSessionCreated, AuditSessionEnded}
	for _, eventType := range want {
		select {
		case event := <-sink.Events():
			if event.EventType != eventType {
				t.Fatalf("expected %s, got %s", eventType, event.EventType)
			}
			if event.SessionID != rec.ID {
				t.Fatalf("event for wrong session: %q", event.SessionID)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("never received %s", eventType)
		}
	}
}
