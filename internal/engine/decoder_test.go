package engine

import (
	"io"
	"strings"
	"testing"
)

func TestDecodeLineMetadata(t *testing.T) {
	ev := DecodeLine(`{"type":"metadata","session_id":"3fa85f64-5717-4562-b3fc-2c963f66afa6"}`)
	if ev.Type != EventMetadata {
		t.Fatalf("Type = %q, want %q", ev.Type, EventMetadata)
	}
	if ev.SessionID != "3fa85f64-5717-4562-b3fc-2c963f66afa6" {
		t.Fatalf("SessionID = %q, want uuid", ev.SessionID)
	}
}

func TestDecodeLineMetadataWithoutSessionIsUnparseable(t *testing.T) {
	ev := DecodeLine(`{"type":"metadata"}`)
	if ev.Type != EventUnparseable {
		t.Fatalf("Type = %q, want %q", ev.Type, EventUnparseable)
	}
}

func TestDecodeLineAssistantFlattensContent(t *testing.T) {
	line := `{"type":"assistant","message":{"content":[{"type":"text","text":"Hello "},{"type":"tool_use","id":"t1"},{"type":"text","text":"world"}]}}`
	ev := DecodeLine(line)
	if ev.Type != EventAssistantChunk {
		t.Fatalf("Type = %q, want %q", ev.Type, EventAssistantChunk)
	}
	if ev.Text != "Hello world" {
		t.Fatalf("Text = %q, want %q", ev.Text, "Hello world")
	}
}

func TestDecodeLineAssistantToolOnlyYieldsEmptyText(t *testing.T) {
	ev := DecodeLine(`{"type":"assistant","message":{"content":[{"type":"tool_use","id":"t1"}]}}`)
	if ev.Type != EventAssistantChunk {
		t.Fatalf("Type = %q, want %q", ev.Type, EventAssistantChunk)
	}
	if ev.Text != "" {
		t.Fatalf("Text = %q, want empty", ev.Text)
	}
}

func TestDecodeLineResult(t *testing.T) {
	ev := DecodeLine(`{"type":"result","subtype":"success","result":"All done","session_id":"abc-123"}`)
	if ev.Type != EventResult {
		t.Fatalf("Type = %q, want %q", ev.Type, EventResult)
	}
	if ev.Text != "All done" {
		t.Fatalf("Text = %q, want %q", ev.Text, "All done")
	}
	if ev.SessionID != "abc-123" {
		t.Fatalf("SessionID = %q, want %q", ev.SessionID, "abc-123")
	}
}

func TestDecodeLineRejectsUnknownShapes(t *testing.T) {
	cases := []string{
		`not json at all`,
		`{"type":"result","subtype":"error_during_execution"}`,
		`{"type":"assistant"}`,
		`{"foo":"bar"}`,
	}
	for _, line := range cases {
		if ev := DecodeLine(line); ev.Type != EventUnparseable {
			t.Fatalf("DecodeLine(%q).Type = %q, want %q", line, ev.Type, EventUnparseable)
		}
	}
}

func TestDecoderOrderedSequence(t *testing.T) {
	stream := strings.Join([]string{
		`{"type":"metadata","session_id":"s1"}`,
		``,
		`[engine] diagnostic noise`,
		`{"type":"assistant","message":{"content":[{"type":"text","text":"Hello "}]}}`,
		`{"type":"assistant","message":{"content":[{"type":"text","text":"world"}]}}`,
		`{"type":"result","subtype":"success","result":"Hello world"}`,
	}, "\n")

	d := NewDecoder(strings.NewReader(stream))
	var got []EventType
	for {
		ev, err := d.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		got = append(got, ev.Type)
	}

	want := []EventType{EventMetadata, EventUnparseable, EventAssistantChunk, EventAssistantChunk, EventResult}
	if len(got) != len(want) {
		t.Fatalf("event count = %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDecoderUnparseableDoesNotAbortStream(t *testing.T) {
	stream := "{\"broken\n" + `{"type":"result","subtype":"success","result":"ok"}` + "\n"
	d := NewDecoder(strings.NewReader(stream))

	first, err := d.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if first.Type != EventUnparseable {
		t.Fatalf("first.Type = %q, want %q", first.Type, EventUnparseable)
	}

	second, err := d.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if second.Type != EventResult || second.Text != "ok" {
		t.Fatalf("second = %+v, want success result", second)
	}
}
