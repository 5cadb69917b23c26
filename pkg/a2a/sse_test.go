package a2a

import (
	"io"
	"strings"
	"testing"
)

func TestSSEScannerBasic(t *testing.T) {
	input := "event: task_status\ndata: {\"state\":\"WORKING\"}\n\n" +
		": heartbeat\n" +
		"event: task_message\ndata: {\"a\":1}\n\n"

	sc := NewSSEScanner(strings.NewReader(input))

	f1, err := sc.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f1.Name != "task_status" || f1.Data != `{"state":"WORKING"}` {
		t.Fatalf("unexpected frame 1: %+v", f1)
	}

	f2, err := sc.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f2.Name != "task_message" || f2.Data != `{"a":1}` {
		t.Fatalf("unexpected frame 2 (heartbeat should be ignored): %+v", f2)
	}

	_, err = sc.Next()
	if err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestSSEScannerMultilineDataAndCRLF(t *testing.T) {
	input := "event: task_message\r\ndata: line1\r\ndata: line2\r\n\r\n"
	sc := NewSSEScanner(strings.NewReader(input))
	f, err := sc.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Data != "line1\nline2" {
		t.Fatalf("expected joined multi-line data, got %q", f.Data)
	}
}

func TestSSEScannerNoTrailingBlankLine(t *testing.T) {
	input := "event: task_status\ndata: {}\n"
	sc := NewSSEScanner(strings.NewReader(input))
	f, err := sc.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Name != "task_status" {
		t.Fatalf("expected frame to be yielded at EOF even without trailing blank line")
	}
	if _, err := sc.Next(); err != io.EOF {
		t.Fatalf("expected EOF after draining final frame")
	}
}

func TestWriteFrameRoundTrip(t *testing.T) {
	var buf strings.Builder
	if err := WriteFrame(&buf, "task_status", []byte(`{"x":1}`)); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	sc := NewSSEScanner(strings.NewReader(buf.String()))
	f, err := sc.Next()
	if err != nil {
		t.Fatalf("read back frame: %v", err)
	}
	if f.Name != "task_status" || f.Data != `{"x":1}` {
		t.Fatalf("round trip mismatch: %+v", f)
	}
}

func TestDecodeEventUnknownNameYieldsStreamError(t *testing.T) {
	ev, err := DecodeEvent("something_new", []byte(`{}`))
	if err != nil {
		t.Fatalf("unknown event name must not error: %v", err)
	}
	if ev.Kind != EventStreamError {
		t.Fatalf("expected StreamError for unknown event name, got %v", ev.Kind)
	}
}

func TestDecodeEventDefaultsToTaskMessage(t *testing.T) {
	ev, err := DecodeEvent("", []byte(`{"task_id":"t1","message":{"role":"assistant","parts":[]}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Kind != EventTaskMessage {
		t.Fatalf("expected default event name to decode as task_message, got %v", ev.Kind)
	}
}
