// Package client implements the A2A client half of the protocol:
// auth-scheme selection, the five task-lifecycle methods, and SSE event
// consumption, generalizing the teacher's pkg/a2a/client.go Client type.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentvault/a2a-core/pkg/a2a"
	"github.com/agentvault/a2a-core/pkg/auth"
	"github.com/agentvault/a2a-core/pkg/card"
)

const tracerName = "github.com/agentvault/a2a-core/pkg/client"

// Config controls Client construction.
type Config struct {
	// HTTPClient, if set, overrides the default client used for unary
	// calls. It should not set a Timeout; use CallTimeout instead so
	// per-call deadlines compose with a caller's own context deadline.
	HTTPClient *http.Client
	// CallTimeout bounds a single unary call (spec §4.4 "default ~30s").
	CallTimeout time.Duration
	// IdleReadTimeout bounds how long an SSE stream may go without a byte
	// before it is considered dead (spec §4.4 "default ~60s").
	IdleReadTimeout time.Duration
}

// DefaultConfig returns the spec's default timeouts.
func DefaultConfig() Config {
	return Config{
		CallTimeout:     30 * time.Second,
		IdleReadTimeout: 60 * time.Second,
	}
}

// Client issues A2A calls against a single remote agent, described by its
// AgentCard, using a Resolver to satisfy the first auth scheme, in the
// card's declared preference order, that the Resolver has credentials for.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// New constructs a Client. A zero Config applies DefaultConfig.
func New(cfg Config) *Client {
	if cfg.CallTimeout == 0 && cfg.IdleReadTimeout == 0 {
		hc := cfg.HTTPClient
		cfg = DefaultConfig()
		cfg.HTTPClient = hc
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{cfg: cfg, httpClient: httpClient}
}

// InitiateTask starts a new task with initialMessage and returns its id
// (spec §4.4 "initiate_task").
func (c *Client) InitiateTask(ctx context.Context, ac *card.AgentCard, initialMessage a2a.Message, resolver *auth.Resolver, mcpCtx *a2a.MCPContext, webhookURL *string) (string, error) {
	params := a2a.SendParams{Message: initialMessage, WebhookURL: webhookURL}
	if mcpCtx != nil {
		raw, err := json.Marshal(mcpCtx)
		if err != nil {
			return "", fmt.Errorf("encode mcp_context: %w", err)
		}
		if initialMessage.Metadata == nil {
			initialMessage.Metadata = map[string]any{}
		}
		initialMessage.Metadata["mcp_context"] = json.RawMessage(raw)
		params.Message = initialMessage
	}

	var result a2a.SendResult
	if err := c.call(ctx, ac, resolver, a2a.MethodTasksSend, params, &result); err != nil {
		return "", err
	}
	return result.ID, nil
}

// SendMessage appends message to an existing task (spec §4.4 "send_message").
func (c *Client) SendMessage(ctx context.Context, ac *card.AgentCard, taskID string, message a2a.Message, resolver *auth.Resolver, mcpCtx *a2a.MCPContext) (bool, error) {
	id := taskID
	params := a2a.SendParams{ID: &id, Message: message}
	if mcpCtx != nil {
		raw, err := json.Marshal(mcpCtx)
		if err != nil {
			return false, fmt.Errorf("encode mcp_context: %w", err)
		}
		if message.Metadata == nil {
			message.Metadata = map[string]any{}
		}
		message.Metadata["mcp_context"] = json.RawMessage(raw)
		params.Message = message
	}

	var result a2a.SendResult
	if err := c.call(ctx, ac, resolver, a2a.MethodTasksSend, params, &result); err != nil {
		return false, err
	}
	return true, nil
}

// GetTaskStatus fetches the full current Task (spec §4.4 "get_task_status").
func (c *Client) GetTaskStatus(ctx context.Context, ac *card.AgentCard, taskID string, resolver *auth.Resolver) (*a2a.Task, error) {
	params := a2a.GetParams{ID: taskID}
	var task a2a.Task
	if err := c.call(ctx, ac, resolver, a2a.MethodTasksGet, params, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// TerminateTask requests cancellation of taskID (spec §4.4 "terminate_task").
func (c *Client) TerminateTask(ctx context.Context, ac *card.AgentCard, taskID string, resolver *auth.Resolver) (bool, error) {
	params := a2a.CancelParams{ID: taskID}
	var result a2a.CancelResult
	if err := c.call(ctx, ac, resolver, a2a.MethodTasksCancel, params, &result); err != nil {
		return false, err
	}
	return result.Success, nil
}

// ReceiveMessages opens the tasks/sendSubscribe SSE stream for taskID and
// returns a channel of decoded events (spec §4.4 "receive_messages": a
// finite, non-restartable sequence). The channel is closed when the stream
// ends naturally, the context is canceled, or a ConnectionError occurs; in
// the last case that error is sent on the second returned channel.
func (c *Client) ReceiveMessages(ctx context.Context, ac *card.AgentCard, taskID string, resolver *auth.Resolver) (<-chan a2a.Event, <-chan error) {
	events := make(chan a2a.Event)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)

		tracer := otel.Tracer(tracerName)
		ctx, span := tracer.Start(ctx, "a2a.client.sendSubscribe",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("a2a.task_id", taskID),
				attribute.String("a2a.method", a2a.MethodTasksSendSubscribe),
			),
		)
		defer span.End()

		body, closeBody, err := c.openStream(ctx, ac, resolver, taskID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "open SSE stream")
			errs <- err
			return
		}
		defer closeBody()

		scanner := a2a.NewSSEScanner(&idleTimeoutReader{r: body, timeout: c.cfg.IdleReadTimeout})
		reachedTerminal := false
		for {
			select {
			case <-ctx.Done():
				errs <- &a2a.ConnectionError{Err: ctx.Err()}
				return
			default:
			}

			frame, err := scanner.Next()
			if err != nil {
				if err == io.EOF {
					// Spec §4.4: the stream terminates naturally once the
					// task reaches a terminal state; any other EOF is a
					// dropped connection.
					if !reachedTerminal {
						errs <- &a2a.ConnectionError{Err: io.ErrUnexpectedEOF}
					}
					return
				}
				span.RecordError(err)
				span.SetStatus(codes.Error, "read SSE stream")
				errs <- &a2a.ConnectionError{Err: err}
				return
			}

			ev, err := a2a.DecodeEvent(frame.Name, []byte(frame.Data))
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "decode SSE event")
				errs <- &a2a.ConnectionError{Err: err}
				return
			}

			select {
			case events <- ev:
			case <-ctx.Done():
				errs <- &a2a.ConnectionError{Err: ctx.Err()}
				return
			}

			if ev.Kind == a2a.EventTaskStatusUpdate && ev.State.Terminal() {
				reachedTerminal = true
				return
			}
		}
	}()

	return events, errs
}

func (c *Client) openStream(ctx context.Context, ac *card.AgentCard, resolver *auth.Resolver, taskID string) (io.ReadCloser, func(), error) {
	params := a2a.SendSubscribeParams{ID: taskID}
	paramsRaw, err := json.Marshal(params)
	if err != nil {
		return nil, nil, fmt.Errorf("encode sendSubscribe params: %w", err)
	}
	req := a2a.Request{JSONRPC: "2.0", ID: nextRequestID(), Method: a2a.MethodTasksSendSubscribe, Params: paramsRaw}
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, ac.URL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	if err := c.applyAuth(ctx, ac, resolver, httpReq); err != nil {
		return nil, nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, nil, &a2a.ConnectionError{Err: err}
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		return nil, nil, &a2a.AuthError{Reason: "unauthorized"}
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, nil, &a2a.ConnectionError{Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)}
	}
	return resp.Body, func() { resp.Body.Close() }, nil
}

// call issues one unary JSON-RPC request/response exchange, retrying
// exactly once on a 401 by invalidating the cached OAuth2 token (spec
// §4.4, §8 scenario 4).
func (c *Client) call(ctx context.Context, ac *card.AgentCard, resolver *auth.Resolver, method string, params, out any) error {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "a2a.client."+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("a2a.method", method)),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	resp, retried, err := c.doCall(ctx, ac, resolver, method, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "call failed")
		return err
	}
	_ = retried

	if resp.Error != nil {
		err := mapRemoteError(*resp.Error)
		span.RecordError(err)
		span.SetStatus(codes.Error, "remote error")
		return err
	}
	if out != nil {
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

func (c *Client) doCall(ctx context.Context, ac *card.AgentCard, resolver *auth.Resolver, method string, params any) (*a2a.Response, bool, error) {
	resp, status, err := c.rawCall(ctx, ac, resolver, method, params)
	if err != nil {
		return nil, false, err
	}
	if status == http.StatusUnauthorized {
		if scheme, ok := ac.HasScheme(card.SchemeOAuth2); ok {
			resolver.InvalidateOAuthToken(scheme.ServiceID, scheme.TokenURL)
			resp, status, err = c.rawCall(ctx, ac, resolver, method, params)
			if err != nil {
				return nil, true, err
			}
			if status == http.StatusUnauthorized {
				return nil, true, &a2a.AuthError{Reason: "unauthorized-after-retry"}
			}
			return resp, true, nil
		}
		return nil, false, &a2a.AuthError{Reason: "unauthorized"}
	}
	return resp, false, nil
}

func (c *Client) rawCall(ctx context.Context, ac *card.AgentCard, resolver *auth.Resolver, method string, params any) (*a2a.Response, int, error) {
	paramsRaw, err := json.Marshal(params)
	if err != nil {
		return nil, 0, fmt.Errorf("encode %s params: %w", method, err)
	}
	req := a2a.Request{JSONRPC: "2.0", ID: nextRequestID(), Method: method, Params: paramsRaw}
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, 0, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, ac.URL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	if err := c.applyAuth(ctx, ac, resolver, httpReq); err != nil {
		return nil, 0, err
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, &a2a.ConnectionError{Err: err}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusUnauthorized {
		return nil, httpResp.StatusCode, nil
	}

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, 0, &a2a.ConnectionError{Err: err}
	}

	var rpcResp a2a.Response
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, 0, &a2a.ConnectionError{Err: fmt.Errorf("decode response: %w", err)}
	}
	return &rpcResp, httpResp.StatusCode, nil
}

// applyAuth selects the first card-declared scheme the resolver can
// satisfy and sets the corresponding header (spec §4.4 "Authentication
// pipeline").
func (c *Client) applyAuth(ctx context.Context, ac *card.AgentCard, resolver *auth.Resolver, req *http.Request) error {
	for _, scheme := range ac.AuthSchemes {
		switch scheme.Kind {
		case card.SchemeNone:
			return nil
		case card.SchemeAPIKey:
			key := resolver.GetAPIKey(scheme.ServiceID)
			if key == "" {
				continue
			}
			req.Header.Set(scheme.EffectiveHeaderName(), key)
			return nil
		case card.SchemeBearer:
			key := resolver.GetAPIKey(scheme.ServiceID)
			if key == "" {
				continue
			}
			req.Header.Set("Authorization", "Bearer "+key)
			return nil
		case card.SchemeOAuth2:
			token, err := resolver.GetOAuthToken(ctx, scheme.ServiceID, scheme.TokenURL, scheme.Scopes)
			if err != nil {
				continue
			}
			req.Header.Set("Authorization", "Bearer "+token)
			return nil
		}
	}
	return &a2a.AuthError{Reason: "no-usable-scheme"}
}

func mapRemoteError(e a2a.RPCError) error {
	switch e.Code {
	case a2a.CodeTaskNotFound:
		return &a2a.TaskNotFoundError{TaskID: ""}
	default:
		return &a2a.RemoteError{Code: e.Code, Message: e.Message, Data: e.Data}
	}
}

var requestSeq atomic.Int64

// nextRequestID mints a client-local request id for JSON-RPC correlation.
// It is not required to be globally unique, only unique per in-flight call.
func nextRequestID() string {
	return "c-" + strconv.FormatInt(requestSeq.Add(1), 10)
}
