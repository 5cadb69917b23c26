// Package server implements the A2A HTTP dispatcher (spec §4.5): one
// gin route that parses the JSON-RPC envelope, validates params per
// method, dispatches to a Skeleton, and special-cases tasks/sendSubscribe
// to stream SSE directly on the response writer. It generalizes the
// teacher's pkg/a2a/server/server.go ServeHTTP switch and
// internal/jsonrpc2/streaming.go StreamWriter onto gin.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/agentvault/a2a-core/pkg/a2a"
	"github.com/agentvault/a2a-core/pkg/skeleton"
)

// APIKeyLookup reports whether the key presented on an inbound request
// (X-Api-Key header or Authorization: Bearer) is accepted; a2actl serve
// supplies one that compares against its --api-key value. A nil
// APIKeyLookup disables authentication entirely (handlers reachable
// without a key) — callers wiring a production endpoint should not pass
// nil.
type APIKeyLookup func(key string) bool

// Config controls Server construction.
type Config struct {
	Skeleton     *skeleton.Skeleton
	APIKeyLookup APIKeyLookup
	CORSOrigins  []string
}

// Server hosts the /a2a JSON-RPC + SSE endpoint over gin.
type Server struct {
	cfg    Config
	Engine *gin.Engine
}

// New builds a Server and registers its routes.
func New(cfg Config) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery())

	corsCfg := cors.DefaultConfig()
	if len(cfg.CORSOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.CORSOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "X-Api-Key")
	engine.Use(cors.New(corsCfg))

	s := &Server{cfg: cfg, Engine: engine}

	group := engine.Group("/")
	if cfg.APIKeyLookup != nil {
		group.Use(s.authMiddleware)
	}
	group.POST("/a2a", s.handleA2A)

	return s
}

// authMiddleware rejects unauthenticated requests with HTTP 401 before any
// JSON-RPC parsing happens (spec §4.5 "Authentication is applied before
// the dispatcher").
func (s *Server) authMiddleware(c *gin.Context) {
	key := c.GetHeader("X-Api-Key")
	if key == "" {
		if auth := c.GetHeader("Authorization"); len(auth) > 7 && auth[:7] == "Bearer " {
			key = auth[7:]
		}
	}
	if key == "" || !s.cfg.APIKeyLookup(key) {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	c.Next()
}

func (s *Server) handleA2A(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		s.writeError(c, nil, a2a.CodeParseError, "parse error")
		return
	}

	var req a2a.Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(c, nil, a2a.CodeParseError, "parse error")
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		s.writeError(c, req.ID, a2a.CodeInvalidRequest, "invalid request envelope")
		return
	}

	switch req.Method {
	case a2a.MethodTasksSend:
		s.handleSend(c, req)
	case a2a.MethodTasksGet:
		s.handleGet(c, req)
	case a2a.MethodTasksCancel:
		s.handleCancel(c, req)
	case a2a.MethodTasksSendSubscribe:
		s.handleSendSubscribe(c, req)
	default:
		s.writeError(c, req.ID, a2a.CodeMethodNotFound, "method not found: "+req.Method)
	}
}

func (s *Server) handleSend(c *gin.Context, req a2a.Request) {
	var params a2a.SendParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.writeError(c, req.ID, a2a.CodeInvalidParams, "invalid params")
		return
	}

	taskID, err := s.cfg.Skeleton.OnSend(c.Request.Context(), params.ID, params.Message)
	if err != nil {
		s.writeAppError(c, req.ID, err)
		return
	}
	s.writeResult(c, req.ID, a2a.SendResult{ID: taskID})
}

func (s *Server) handleGet(c *gin.Context, req a2a.Request) {
	var params a2a.GetParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.writeError(c, req.ID, a2a.CodeInvalidParams, "invalid params")
		return
	}

	task, err := s.cfg.Skeleton.OnGet(params.ID)
	if err != nil {
		s.writeAppError(c, req.ID, err)
		return
	}
	s.writeResult(c, req.ID, task)
}

func (s *Server) handleCancel(c *gin.Context, req a2a.Request) {
	var params a2a.CancelParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.writeError(c, req.ID, a2a.CodeInvalidParams, "invalid params")
		return
	}

	accepted, err := s.cfg.Skeleton.OnCancel(params.ID)
	if err != nil {
		s.writeAppError(c, req.ID, err)
		return
	}
	s.writeResult(c, req.ID, a2a.CancelResult{Success: accepted})
}

// handleSendSubscribe streams SSE frames directly on the response writer;
// unlike every other method it is never wrapped in a JSON-RPC envelope
// (spec §4.5 "the dispatcher does not wrap the handler in a JSON-RPC
// response").
func (s *Server) handleSendSubscribe(c *gin.Context, req a2a.Request) {
	var params a2a.SendSubscribeParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.writeError(c, req.ID, a2a.CodeInvalidParams, "invalid params")
		return
	}

	events, remove, err := s.cfg.Skeleton.OnSubscribe(params.ID)
	if err != nil {
		s.writeAppError(c, req.ID, err)
		return
	}
	defer remove()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		slog.Error("a2a server: response writer does not support flushing", "task_id", params.ID)
		return
	}

	for {
		select {
		case ev, open := <-events:
			if !open {
				return
			}
			data, err := ev.EncodeData()
			if err != nil {
				slog.Warn("a2a server: failed to encode SSE event", "task_id", params.ID, "error", err)
				continue
			}
			if err := a2a.WriteFrame(c.Writer, string(ev.Kind), data); err != nil {
				return
			}
			flusher.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}

func (s *Server) writeResult(c *gin.Context, id any, result any) {
	raw, err := json.Marshal(result)
	if err != nil {
		s.writeError(c, id, a2a.CodeInternalError, "internal error")
		return
	}
	c.JSON(http.StatusOK, a2a.Response{JSONRPC: "2.0", ID: id, Result: raw})
}

func (s *Server) writeError(c *gin.Context, id any, code int, message string) {
	c.JSON(http.StatusOK, a2a.Response{JSONRPC: "2.0", ID: id, Error: &a2a.RPCError{Code: code, Message: message}})
}

// writeAppError converts an application error raised by the skeleton into
// the JSON-RPC error code the spec requires (spec §4.5 step 5), via
// a2a.RPCCode's errors.As-based mapping: TaskNotFoundError,
// InvalidTransitionError, and ValidationError each get their reserved
// code; anything else becomes an internal error whose message never
// carries the underlying cause.
func (s *Server) writeAppError(c *gin.Context, id any, err error) {
	code, message := a2a.RPCCode(err)
	if code == a2a.CodeInternalError {
		slog.Error("a2a server: internal error", "error", err)
	}
	s.writeError(c, id, code, message)
}
