package engine

import (
	"encoding/json"
	"strings"
)

// EventType identifies the decoded protocol event variants.
type EventType string

const (
	// EventMetadata carries the engine session identifier for this run.
	EventMetadata EventType = "metadata"
	// EventAssistantChunk carries an incremental piece of assistant text.
	EventAssistantChunk EventType = "assistant"
	// EventResult carries the final text of a successful run.
	EventResult EventType = "result"
	// EventUnparseable marks a line that is not valid JSON or matches no
	// known shape. Expected during normal operation; never fatal.
	EventUnparseable EventType = "unparseable"
)

// Event is one decoded line of the engine's stream-JSON output.
type Event struct {
	Type      EventType
	SessionID string // metadata and result lines
	Text      string // flattened assistant text, or the final result text
	Raw       string // original line, kept for diagnostics on unparseable input
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type lineEnvelope struct {
	Type      string `json:"type"`
	Subtype   string `json:"subtype"`
	SessionID string `json:"session_id"`
	Result    string `json:"result"`
	Message   *struct {
		Content []contentBlock `json:"content"`
	} `json:"message"`
}

// DecodeLine classifies a single NDJSON line. Blank input and anything the
// envelope cannot account for comes back as EventUnparseable.
func DecodeLine(line string) Event {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Event{Type: EventUnparseable, Raw: line}
	}

	var env lineEnvelope
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
		return Event{Type: EventUnparseable, Raw: line}
	}

	switch env.Type {
	case "metadata":
		if strings.TrimSpace(env.SessionID) != "" {
			return Event{Type: EventMetadata, SessionID: env.SessionID}
		}
	case "assistant":
		if env.Message != nil {
			return Event{Type: EventAssistantChunk, Text: flattenContent(env.Message.Content)}
		}
	case "result":
		if env.Subtype == "success" {
			return Event{Type: EventResult, Text: env.Result, SessionID: env.SessionID}
		}
	}
	return Event{Type: EventUnparseable, Raw: line}
}

// flattenContent joins the text blocks of an assistant message. Non-text
// blocks (tool invocations and the like) contribute nothing.
func flattenContent(blocks []contentBlock) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "")
}
