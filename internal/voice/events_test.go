package voice

import "testing"

func TestDecodeFrame(t *testing.T) {
	ev, err := decodeFrame([]byte(`{"type":"call-start","callId":"c1"}`))
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	cs, ok := ev.(CallStartEvent)
	if !ok || cs.CallID != "c1" {
		t.Fatalf("unexpected event %#v", ev)
	}

	ev, err = decodeFrame([]byte(`{"type":"call-end","reason":"hangup"}`))
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	ce, ok := ev.(CallEndEvent)
	if !ok || ce.Reason != "hangup" {
		t.Fatalf("unexpected event %#v", ev)
	}

	ev, err = decodeFrame([]byte(`{"type":"error","message":"boom"}`))
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	ee, ok := ev.(ErrorEvent)
	if !ok || ee.Message != "boom" {
		t.Fatalf("unexpected event %#v", ev)
	}
}

func TestDecodeFrame_TranscriptMessage(t *testing.T) {
	raw := []byte(`{"type":"message","message":{"type":"transcript","role":"user","transcriptType":"partial","transcript":"I wor"}}`)
	ev, err := decodeFrame(raw)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	m, ok := ev.(MessageEvent)
	if !ok {
		t.Fatalf("unexpected event %#v", ev)
	}
	if m.Message.TranscriptFinal() {
		t.Fatalf("partial transcript must not be final")
	}

	raw = []byte(`{"type":"message","message":{"type":"transcript","role":"user","transcriptType":"final","transcript":"I work on Go services"}}`)
	ev, err = decodeFrame(raw)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	m = ev.(MessageEvent)
	if !m.Message.TranscriptFinal() {
		t.Fatalf("expected final transcript")
	}
	if m.Message.Role != "user" || m.Message.Transcript != "I work on Go services" {
		t.Fatalf("unexpected message %#v", m.Message)
	}
}

func TestDecodeFrame_UnknownAndInvalid(t *testing.T) {
	ev, err := decodeFrame([]byte(`{"type":"metrics","value":1}`))
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if u, ok := ev.(UnknownEvent); !ok || u.Type != "metrics" {
		t.Fatalf("unexpected event %#v", ev)
	}

	if _, err := decodeFrame([]byte(`{"value":1}`)); err == nil {
		t.Fatalf("expected error for missing type")
	}
	if _, err := decodeFrame([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for invalid json")
	}
}
