package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agentvault/a2a-core/pkg/a2a"
	"github.com/agentvault/a2a-core/pkg/auth"
	"github.com/agentvault/a2a-core/pkg/card"
)

func testCard(url string, schemes ...card.AuthScheme) *card.AgentCard {
	if len(schemes) == 0 {
		schemes = []card.AuthScheme{{Kind: card.SchemeNone}}
	}
	return &card.AgentCard{
		SchemaVersion:   "1.0",
		HumanReadableID: "acme/test-agent",
		Name:            "Test Agent",
		Provider:        card.Provider{Name: "Acme"},
		AgentVersion:    "1.0.0",
		URL:             url,
		Capabilities:    card.Capabilities{A2AVersion: "1.0", SupportedMessageParts: []string{"text"}},
		AuthSchemes:     schemes,
	}
}

func TestInitiateTaskSendsJSONRPCAndParsesResult(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req a2a.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		gotMethod = req.Method
		result, _ := json.Marshal(a2a.SendResult{ID: "task-1"})
		resp := a2a.Response{JSONRPC: "2.0", ID: req.ID, Result: result}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := New(DefaultConfig())
	ac := testCard(srv.URL)
	r, err := auth.New(auth.Config{})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	msg := a2a.Message{Role: a2a.RoleUser, Parts: []a2a.Part{{Type: a2a.PartTypeText, Text: "hi"}}}
	id, err := c.InitiateTask(context.Background(), ac, msg, r, nil, nil)
	if err != nil {
		t.Fatalf("initiate task: %v", err)
	}
	if id != "task-1" {
		t.Fatalf("expected task-1, got %q", id)
	}
	if gotMethod != a2a.MethodTasksSend {
		t.Fatalf("expected tasks/send, got %q", gotMethod)
	}
}

func TestApplyAuthAPIKey(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Api-Key")
		var req a2a.Request
		json.NewDecoder(r.Body).Decode(&req)
		result, _ := json.Marshal(a2a.CancelResult{Success: true})
		json.NewEncoder(w).Encode(a2a.Response{JSONRPC: "2.0", ID: req.ID, Result: result})
	}))
	defer srv.Close()

	t.Setenv("AGENTVAULT_KEY_WEATHER", "super-secret")
	r, err := auth.New(auth.Config{})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	ac := testCard(srv.URL, card.AuthScheme{Kind: card.SchemeAPIKey, ServiceID: "weather"})
	c := New(DefaultConfig())

	ok, err := c.TerminateTask(context.Background(), ac, "task-1", r)
	if err != nil {
		t.Fatalf("terminate task: %v", err)
	}
	if !ok {
		t.Fatalf("expected success")
	}
	if gotHeader != "super-secret" {
		t.Fatalf("expected api key header to be set, got %q", gotHeader)
	}
}

func TestApplyAuthNoUsableScheme(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("server should not be contacted when no scheme is usable")
	}))
	defer srv.Close()

	r, err := auth.New(auth.Config{})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	ac := testCard(srv.URL, card.AuthScheme{Kind: card.SchemeAPIKey, ServiceID: "weather"})
	c := New(DefaultConfig())

	_, err = c.TerminateTask(context.Background(), ac, "task-1", r)
	if err == nil {
		t.Fatalf("expected AuthError when no scheme matches stored credentials")
	}
	authErr, ok := err.(*a2a.AuthError)
	if !ok || authErr.Reason != "no-usable-scheme" {
		t.Fatalf("expected no-usable-scheme AuthError, got %v", err)
	}
}

func TestGetTaskStatusDecodesTask(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req a2a.Request
		json.NewDecoder(r.Body).Decode(&req)
		task := a2a.Task{ID: "task-1", CreatedAt: now, UpdatedAt: now, Status: a2a.TaskStatus{State: a2a.TaskWorking, Timestamp: now}}
		result, _ := json.Marshal(task)
		json.NewEncoder(w).Encode(a2a.Response{JSONRPC: "2.0", ID: req.ID, Result: result})
	}))
	defer srv.Close()

	r, err := auth.New(auth.Config{})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	ac := testCard(srv.URL)
	c := New(DefaultConfig())

	task, err := c.GetTaskStatus(context.Background(), ac, "task-1", r)
	if err != nil {
		t.Fatalf("get task status: %v", err)
	}
	if task.ID != "task-1" || task.Status.State != a2a.TaskWorking {
		t.Fatalf("unexpected task: %+v", task)
	}
}

func TestCallMapsRemoteTaskNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req a2a.Request
		json.NewDecoder(r.Body).Decode(&req)
		resp := a2a.Response{JSONRPC: "2.0", ID: req.ID, Error: &a2a.RPCError{Code: a2a.CodeTaskNotFound, Message: "not found"}}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	r, err := auth.New(auth.Config{})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	ac := testCard(srv.URL)
	c := New(DefaultConfig())

	_, err = c.GetTaskStatus(context.Background(), ac, "missing", r)
	if err == nil {
		t.Fatalf("expected an error")
	}
	if _, ok := err.(*a2a.TaskNotFoundError); !ok {
		t.Fatalf("expected TaskNotFoundError, got %T: %v", err, err)
	}
}

func TestReceiveMessagesStreamsUntilTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		fmt.Fprint(w, "event: task_status\ndata: {\"task_id\":\"task-1\",\"state\":\"WORKING\",\"timestamp\":\"2025-01-01T00:00:00Z\"}\n\n")
		flusher.Flush()
		fmt.Fprint(w, "event: task_status\ndata: {\"task_id\":\"task-1\",\"state\":\"COMPLETED\",\"timestamp\":\"2025-01-01T00:00:01Z\"}\n\n")
		flusher.Flush()
	}))
	defer srv.Close()

	r, err := auth.New(auth.Config{})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	ac := testCard(srv.URL)
	c := New(DefaultConfig())

	events, errs := c.ReceiveMessages(context.Background(), ac, "task-1", r)

	var seen []a2a.TaskState
	for ev := range events {
		if ev.Kind == a2a.EventTaskStatusUpdate {
			seen = append(seen, ev.State)
		}
	}
	if err := <-errs; err != nil {
		t.Fatalf("expected no error on clean terminal close, got %v", err)
	}
	if len(seen) != 2 || seen[0] != a2a.TaskWorking || seen[1] != a2a.TaskCompleted {
		t.Fatalf("unexpected event sequence: %v", seen)
	}
}

func TestReceiveMessagesReportsConnectionErrorOnEarlyClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "event: task_status\ndata: {\"task_id\":\"task-1\",\"state\":\"WORKING\",\"timestamp\":\"2025-01-01T00:00:00Z\"}\n\n")
		flusher.Flush()
		// Connection closes here without reaching a terminal state.
	}))
	defer srv.Close()

	r, err := auth.New(auth.Config{})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	ac := testCard(srv.URL)
	c := New(DefaultConfig())

	events, errs := c.ReceiveMessages(context.Background(), ac, "task-1", r)
	for range events {
	}
	err = <-errs
	if err == nil {
		t.Fatalf("expected a ConnectionError for a stream that closed before a terminal state")
	}
	if _, ok := err.(*a2a.ConnectionError); !ok {
		t.Fatalf("expected *a2a.ConnectionError, got %T", err)
	}
}

var _ io.Reader = (*idleTimeoutReader)(nil)
