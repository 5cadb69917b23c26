package a2a

import (
	"fmt"
	"time"
)

// TaskState is one of the fixed states in the task lifecycle (spec §3).
type TaskState string

const (
	TaskSubmitted     TaskState = "SUBMITTED"
	TaskWorking       TaskState = "WORKING"
	TaskInputRequired TaskState = "INPUT_REQUIRED"
	TaskCompleted     TaskState = "COMPLETED"
	TaskFailed        TaskState = "FAILED"
	TaskCanceled      TaskState = "CANCELED"
)

// Terminal reports whether s is one of the task lifecycle's terminal
// states, after which no further mutation is legal.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskCanceled:
		return true
	default:
		return false
	}
}

// transitions enumerates the only legal moves out of each non-terminal
// state (spec §4.6). Anything not listed here is rejected.
var transitions = map[TaskState]map[TaskState]bool{
	TaskSubmitted: {
		TaskWorking:  true,
		TaskFailed:   true,
		TaskCanceled: true,
	},
	TaskWorking: {
		TaskInputRequired: true,
		TaskCompleted:     true,
		TaskFailed:        true,
		TaskCanceled:      true,
	},
	TaskInputRequired: {
		TaskWorking:  true,
		TaskFailed:   true,
		TaskCanceled: true,
	},
}

// InvalidTransitionError reports an illegal attempt to move a task from one
// state to another.
type InvalidTransitionError struct {
	From, To TaskState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("illegal task transition %s -> %s", e.From, e.To)
}

// ValidateTransition checks from -> to against the state machine in spec
// §4.6. A duplicate transition to the same terminal state is reported as
// legal-but-no-op via the ok=false, err=nil return so callers can special
// case it without treating it as an error (spec §4.6, §8).
func ValidateTransition(from, to TaskState) (ok bool, err error) {
	if from.Terminal() {
		if from == to {
			return false, nil
		}
		return false, &InvalidTransitionError{From: from, To: to}
	}
	if transitions[from][to] {
		return true, nil
	}
	return false, &InvalidTransitionError{From: from, To: to}
}

// TaskStatus is the current lifecycle position of a Task, with the message
// (if any) that accompanied the transition into it.
type TaskStatus struct {
	State     TaskState `json:"state"`
	Message   *Message  `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Task is the full state of one unit of work tracked by a task store.
type Task struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Status    TaskStatus     `json:"status"`
	Messages  []Message      `json:"messages"`
	Artifacts []Artifact     `json:"artifacts"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Clone returns a deep-enough copy of t suitable for handing to a caller
// without aliasing the store's internal slices (spec §4.6 "snapshot read").
func (t Task) Clone() Task {
	out := t
	out.Messages = append([]Message(nil), t.Messages...)
	out.Artifacts = append([]Artifact(nil), t.Artifacts...)
	return out
}

// Artifact is a piece of data produced by a task. Exactly one of Content or
// URI carries the payload.
type Artifact struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Content   any    `json:"content,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
	URI       string `json:"uri,omitempty"`
}

// Validate checks the structural invariant from spec §3.
func (a Artifact) Validate() error {
	hasContent := a.Content != nil
	hasURI := a.URI != ""
	if hasContent == hasURI {
		return fmt.Errorf("artifact %q must have exactly one of content or uri", a.ID)
	}
	return nil
}
