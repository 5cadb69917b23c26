package a2a

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventKind discriminates the A2AEvent sum type (spec §3).
type EventKind string

const (
	EventTaskStatusUpdate   EventKind = "task_status"
	EventTaskMessage        EventKind = "task_message"
	EventTaskArtifactUpdate EventKind = "task_artifact"
	EventStreamError        EventKind = "error"
)

// Event is the A2AEvent sum type. Exactly one of the payload fields is
// populated, selected by Kind.
type Event struct {
	Kind EventKind

	// TaskStatusUpdate fields.
	TaskID    string
	State     TaskState
	Timestamp time.Time
	Message   *Message

	// TaskArtifactUpdate field.
	Artifact *Artifact

	// StreamError fields. A StreamError is transport-level, not a task
	// state, and never terminates iteration by itself (spec §7).
	Code        string
	ErrMessage  string
	ErrorDetail any
}

// sseEventName maps an EventKind to the SSE "event:" field name defined by
// spec §6. Unnamed events default to task_message on decode.
func (k EventKind) sseEventName() string {
	switch k {
	case EventTaskStatusUpdate:
		return "task_status"
	case EventTaskMessage:
		return "task_message"
	case EventTaskArtifactUpdate:
		return "task_artifact"
	case EventStreamError:
		return "error"
	default:
		return "task_message"
	}
}

// wireStatusUpdate/wireArtifactUpdate/wireMessage/wireStreamError are the
// JSON payloads carried in an SSE frame's data: line.
type wireStatusUpdate struct {
	TaskID    string    `json:"task_id"`
	State     TaskState `json:"state"`
	Timestamp time.Time `json:"timestamp"`
	Message   *Message  `json:"message,omitempty"`
}

type wireTaskMessage struct {
	TaskID    string    `json:"task_id"`
	Message   Message   `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type wireArtifactUpdate struct {
	TaskID    string    `json:"task_id"`
	Artifact  Artifact  `json:"artifact"`
	Timestamp time.Time `json:"timestamp"`
}

type wireStreamError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// EncodeData renders the event's data: payload as JSON, matching the shape
// its SSE event name implies (spec §6).
func (e Event) EncodeData() ([]byte, error) {
	switch e.Kind {
	case EventTaskStatusUpdate:
		return json.Marshal(wireStatusUpdate{
			TaskID: e.TaskID, State: e.State, Timestamp: e.Timestamp, Message: e.Message,
		})
	case EventTaskMessage:
		msg := Message{}
		if e.Message != nil {
			msg = *e.Message
		}
		return json.Marshal(wireTaskMessage{TaskID: e.TaskID, Message: msg, Timestamp: e.Timestamp})
	case EventTaskArtifactUpdate:
		art := Artifact{}
		if e.Artifact != nil {
			art = *e.Artifact
		}
		return json.Marshal(wireArtifactUpdate{TaskID: e.TaskID, Artifact: art, Timestamp: e.Timestamp})
	case EventStreamError:
		return json.Marshal(wireStreamError{Code: e.Code, Message: e.ErrMessage, Details: e.ErrorDetail})
	default:
		return nil, fmt.Errorf("unknown event kind %q", e.Kind)
	}
}

// DecodeEvent parses an SSE event name + data payload into an Event.
// Unknown event names yield a StreamError rather than failing the whole
// stream (spec §4.4 "Unknown event names yield StreamError entries rather
// than aborting").
func DecodeEvent(name string, data []byte) (Event, error) {
	if name == "" {
		name = "task_message"
	}
	switch name {
	case "task_status":
		var w wireStatusUpdate
		if err := json.Unmarshal(data, &w); err != nil {
			return Event{}, fmt.Errorf("decode task_status event: %w", err)
		}
		return Event{Kind: EventTaskStatusUpdate, TaskID: w.TaskID, State: w.State, Timestamp: w.Timestamp, Message: w.Message}, nil
	case "task_message":
		var w wireTaskMessage
		if err := json.Unmarshal(data, &w); err != nil {
			return Event{}, fmt.Errorf("decode task_message event: %w", err)
		}
		msg := w.Message
		return Event{Kind: EventTaskMessage, TaskID: w.TaskID, Message: &msg, Timestamp: w.Timestamp}, nil
	case "task_artifact":
		var w wireArtifactUpdate
		if err := json.Unmarshal(data, &w); err != nil {
			return Event{}, fmt.Errorf("decode task_artifact event: %w", err)
		}
		art := w.Artifact
		return Event{Kind: EventTaskArtifactUpdate, TaskID: w.TaskID, Artifact: &art, Timestamp: w.Timestamp}, nil
	case "error":
		var w wireStreamError
		if err := json.Unmarshal(data, &w); err != nil {
			return Event{}, fmt.Errorf("decode error event: %w", err)
		}
		return Event{Kind: EventStreamError, Code: w.Code, ErrMessage: w.Message, ErrorDetail: w.Details}, nil
	default:
		return Event{
			Kind:       EventStreamError,
			Code:       "unknown-event",
			ErrMessage: fmt.Sprintf("unrecognized SSE event name %q", name),
		}, nil
	}
}
