package a2a

import (
	"errors"
	"fmt"
)

// CardValidationError reports one or more AgentCard schema violations.
// Fatal to the caller; never retried.
type CardValidationError struct {
	Issues []CardIssue
}

// CardIssue is a single path-scoped validation failure.
type CardIssue struct {
	Path   string
	Reason string
}

func (e *CardValidationError) Error() string {
	if len(e.Issues) == 1 {
		return fmt.Sprintf("agent card invalid: %s: %s", e.Issues[0].Path, e.Issues[0].Reason)
	}
	return fmt.Sprintf("agent card invalid: %d issues", len(e.Issues))
}

// CardIOError reports a filesystem failure loading an AgentCard.
type CardIOError struct {
	Path string
	Err  error
}

func (e *CardIOError) Error() string {
	return fmt.Sprintf("read agent card %s: %v", e.Path, e.Err)
}

func (e *CardIOError) Unwrap() error { return e.Err }

// CardFetchError reports a network failure fetching an AgentCard over HTTP.
// Network details are redacted from Error() per spec §7; the underlying
// cause is still reachable via Unwrap.
type CardFetchError struct {
	URL string
	Err error
}

func (e *CardFetchError) Error() string {
	return fmt.Sprintf("fetch agent card from %s failed", e.URL)
}

func (e *CardFetchError) Unwrap() error { return e.Err }

// KeyMgmtError reports a keychain backend failure during a set_* operation.
// Fatal; never retried (spec §4.2, §7).
type KeyMgmtError struct {
	Op  string
	Err error
}

func (e *KeyMgmtError) Error() string {
	return fmt.Sprintf("credential keychain %s failed: %v", e.Op, e.Err)
}

func (e *KeyMgmtError) Unwrap() error { return e.Err }

// AuthError reports a client-side authentication failure: no usable scheme,
// or a token exchange / retry-after-401 failure (spec §4.4, §7).
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth error (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("auth error: %s", e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ConnectionError reports a client transport failure: the connection
// dropped, or an SSE stream ended before a terminal state was reached
// (spec §4.4, §7).
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("a2a connection error: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TimeoutError reports a client call exceeding its deadline.
type TimeoutError struct {
	Op string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("a2a timeout: %s", e.Op)
}

// RemoteError wraps a non-auth JSON-RPC error the agent returned.
type RemoteError struct {
	Code    int
	Message string
	Data    any
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("a2a remote error %d: %s", e.Code, e.Message)
}

// TaskNotFoundError indicates the requested task_id is absent from the
// store. Maps to JSON-RPC code -32001.
type TaskNotFoundError struct {
	TaskID string
}

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task not found: %s", e.TaskID)
}

// ValidationError reports a params-decode failure on the server side. Maps
// to JSON-RPC code -32602.
type ValidationError struct {
	Method string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid params for %s: %v", e.Method, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// InternalServerError wraps an unexpected server-side failure. Maps to
// JSON-RPC code -32603; its message is sanitized before being put on the
// wire (spec §4.5, §7) so it never leaks the underlying cause.
type InternalServerError struct {
	Err error
}

func (e *InternalServerError) Error() string {
	return fmt.Sprintf("internal error: %v", e.Err)
}

func (e *InternalServerError) Unwrap() error { return e.Err }

// RPCCode maps an application error to the JSON-RPC error code the
// dispatcher should send on the wire (spec §4.5 step 5). Uses errors.As
// so a wrapped cause (e.g. via fmt.Errorf("...: %w", err)) still maps
// correctly, not just a bare type assertion.
func RPCCode(err error) (code int, message string) {
	var notFound *TaskNotFoundError
	if errors.As(err, &notFound) {
		return CodeTaskNotFound, notFound.Error()
	}
	var invalidTransition *InvalidTransitionError
	if errors.As(err, &invalidTransition) {
		return CodeApplicationRangeEnd, invalidTransition.Error()
	}
	var validation *ValidationError
	if errors.As(err, &validation) {
		return CodeInvalidParams, validation.Error()
	}
	var internal *InternalServerError
	if errors.As(err, &internal) {
		return CodeInternalError, "internal error"
	}
	return CodeInternalError, "internal error"
}
