package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agentvault/a2a-core/pkg/a2a"
	"github.com/agentvault/a2a-core/pkg/skeleton"
	"github.com/agentvault/a2a-core/pkg/store"
)

func newTestServer(t *testing.T, apiKey APIKeyLookup) *Server {
	t.Helper()
	st := store.New(nil)
	sk := skeleton.New(st, func(ctx context.Context, emit skeleton.Emitter, initial a2a.Message) error {
		return emit.UpdateState(a2a.TaskCompleted, nil)
	}, true)
	return New(Config{Skeleton: sk, APIKeyLookup: apiKey})
}

func doRPC(t *testing.T, srv *Server, req a2a.Request, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	httpReq := httptest.NewRequest(http.MethodPost, "/a2a", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Engine.ServeHTTP(rec, httpReq)
	return rec
}

func TestSendAndGetRoundTrip(t *testing.T) {
	srv := newTestServer(t, nil)

	sendParams, _ := json.Marshal(a2a.SendParams{Message: a2a.Message{Role: a2a.RoleUser}})
	rec := doRPC(t, srv, a2a.Request{JSONRPC: "2.0", ID: "1", Method: a2a.MethodTasksSend, Params: sendParams}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp a2a.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	var result a2a.SendResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.ID == "" {
		t.Fatalf("expected a non-empty task id")
	}
}

func TestUnknownMethodReturnsMethodNotFound(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := doRPC(t, srv, a2a.Request{JSONRPC: "2.0", ID: "1", Method: "tasks/bogus"}, nil)

	var resp a2a.Response
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Error == nil || resp.Error.Code != a2a.CodeMethodNotFound {
		t.Fatalf("expected method-not-found error, got %+v", resp.Error)
	}
}

func TestMalformedJSONReturnsParseError(t *testing.T) {
	srv := newTestServer(t, nil)
	httpReq := httptest.NewRequest(http.MethodPost, "/a2a", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	srv.Engine.ServeHTTP(rec, httpReq)

	var resp a2a.Response
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Error == nil || resp.Error.Code != a2a.CodeParseError {
		t.Fatalf("expected parse error, got %+v", resp.Error)
	}
}

func TestInvalidParamsReturnsInvalidParamsCode(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := doRPC(t, srv, a2a.Request{JSONRPC: "2.0", ID: "1", Method: a2a.MethodTasksGet, Params: json.RawMessage(`{"id": 5}`)}, nil)

	var resp a2a.Response
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Error == nil || resp.Error.Code != a2a.CodeInvalidParams {
		t.Fatalf("expected invalid params error, got %+v", resp.Error)
	}
}

func TestGetMissingTaskReturnsTaskNotFound(t *testing.T) {
	srv := newTestServer(t, nil)
	params, _ := json.Marshal(a2a.GetParams{ID: "missing"})
	rec := doRPC(t, srv, a2a.Request{JSONRPC: "2.0", ID: "1", Method: a2a.MethodTasksGet, Params: params}, nil)

	var resp a2a.Response
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Error == nil || resp.Error.Code != a2a.CodeTaskNotFound {
		t.Fatalf("expected task-not-found error, got %+v", resp.Error)
	}
}

func TestUnauthenticatedRequestRejectedBeforeParsing(t *testing.T) {
	lookup := func(key string) bool { return key == "correct-key" }
	srv := newTestServer(t, lookup)

	httpReq := httptest.NewRequest(http.MethodPost, "/a2a", bytes.NewReader([]byte("not even json")))
	rec := httptest.NewRecorder()
	srv.Engine.ServeHTTP(rec, httpReq)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 before JSON-RPC parsing, got %d", rec.Code)
	}
}

func TestAuthenticatedRequestPassesThrough(t *testing.T) {
	lookup := func(key string) bool { return key == "correct-key" }
	srv := newTestServer(t, lookup)

	params, _ := json.Marshal(a2a.GetParams{ID: "missing"})
	rec := doRPC(t, srv, a2a.Request{JSONRPC: "2.0", ID: "1", Method: a2a.MethodTasksGet, Params: params}, map[string]string{"X-Api-Key": "correct-key"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for an authenticated request, got %d", rec.Code)
	}
}
