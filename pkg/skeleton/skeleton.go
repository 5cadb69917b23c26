// Package skeleton implements the on_send/on_get/on_cancel/on_subscribe
// contract (spec §4.7) that an agent implementation fulfills, generalizing
// the teacher's pkg/a2a/executor A2aAgentExecutor + EventQueue pair into a
// store-backed dispatch target.
package skeleton

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/agentvault/a2a-core/pkg/a2a"
	"github.com/agentvault/a2a-core/pkg/store"
)

// Emitter is how a background Worker reports progress back to the store.
// Workers must go through it rather than yielding SSE directly (spec §4.7
// "they must not yield SSE directly").
type Emitter interface {
	AppendMessage(msg a2a.Message) error
	AppendArtifact(artifact a2a.Artifact) error
	UpdateState(state a2a.TaskState, message *a2a.Message) error
	Canceled() <-chan struct{}

	// FollowUps delivers messages a later on_send call addressed to this
	// task while the worker is still running (SPEC_FULL.md "Supplemented
	// features": multi-turn follow-up, gated by
	// capabilities.supports_follow_up). The channel is closed after the
	// worker function returns, not when the task reaches a terminal state.
	FollowUps() <-chan a2a.Message
}

// Worker is the business logic an agent implementation supplies. It runs
// in its own goroutine per task and is expected to honor ctx cancellation
// at its suspension points (spec §5 "Cancellation semantics").
type Worker func(ctx context.Context, emit Emitter, initial a2a.Message) error

// Skeleton wires a Worker to a task store, handling id allocation,
// cancellation propagation, listener registration, and the
// worker-error-to-FAILED-state translation spec §4.7 requires.
type Skeleton struct {
	store            *store.InMemoryTaskStore
	worker           Worker
	listenBuf        int
	followUpBuf      int
	supportsFollowUp bool

	mu        sync.Mutex
	cancelFns map[string]context.CancelFunc
	followUps map[string]chan a2a.Message
}

// New constructs a Skeleton over st, running worker for every task.
// supportsFollowUp mirrors the agent card's capabilities.supports_follow_up
// flag: when false, a follow-up on_send against a non-terminal task is
// still appended to the task's transcript for audit purposes, but is never
// delivered to the running worker (SPEC_FULL.md "Supplemented features").
func New(st *store.InMemoryTaskStore, worker Worker, supportsFollowUp bool) *Skeleton {
	return &Skeleton{
		store:            st,
		worker:           worker,
		listenBuf:        32,
		followUpBuf:      8,
		supportsFollowUp: supportsFollowUp,
		cancelFns:        map[string]context.CancelFunc{},
		followUps:        map[string]chan a2a.Message{},
	}
}

// OnSend creates a task (if taskID is nil) or feeds a follow-up message to
// an existing one, and ensures a worker is running for it. It returns
// quickly; the worker continues in the background (spec §4.7 "on_send").
// A follow-up against an already-running task is appended to the
// transcript and, when the agent declares capabilities.supports_follow_up,
// also pushed to the worker's buffered input channel so it can react
// without waiting for the task to terminate and be re-sent.
func (s *Skeleton) OnSend(ctx context.Context, taskID *string, message a2a.Message) (string, error) {
	if taskID != nil {
		if _, err := s.store.GetTask(*taskID); err != nil {
			return "", err
		}
		if err := s.store.AppendMessage(*taskID, message); err != nil {
			return "", err
		}
		if s.supportsFollowUp {
			// Held under s.mu so this can never race spawnWorker's cleanup
			// closing the same channel: the lookup and the non-blocking
			// send happen atomically with respect to the delete+close.
			s.mu.Lock()
			if ch := s.followUps[*taskID]; ch != nil {
				select {
				case ch <- message:
				default:
					slog.Warn("skeleton: follow-up channel full, message delivered via transcript only", "task_id", *taskID)
				}
			}
			s.mu.Unlock()
		}
		return *taskID, nil
	}

	id := s.store.CreateTask()
	s.spawnWorker(id, message)
	return id, nil
}

// OnGet returns a snapshot of the task (spec §4.7 "on_get").
func (s *Skeleton) OnGet(taskID string) (a2a.Task, error) {
	return s.store.GetTask(taskID)
}

// OnCancel marks a non-terminal task CANCELED and signals its worker. It
// returns false without error if the task was already terminal (spec §4.7
// "on_cancel").
func (s *Skeleton) OnCancel(taskID string) (bool, error) {
	task, err := s.store.GetTask(taskID)
	if err != nil {
		return false, err
	}
	if task.Status.State.Terminal() {
		return false, nil
	}
	if err := s.store.UpdateTaskState(taskID, a2a.TaskCanceled, nil); err != nil {
		return false, err
	}
	return true, nil
}

// OnSubscribe registers a listener for taskID and returns its event
// channel plus a detach function the dispatcher must call once it stops
// reading, e.g. on client disconnect (spec §4.7 "on_subscribe").
func (s *Skeleton) OnSubscribe(taskID string) (<-chan a2a.Event, func(), error) {
	return s.store.AddListener(taskID, s.listenBuf)
}

// spawnWorker starts the background goroutine for a freshly created task,
// tracking its CancelFunc so OnCancel's store signal has somewhere to
// reach (spec §4.7 "the skeleton spawns and tracks [the worker] so that
// cancellation can reach it").
func (s *Skeleton) spawnWorker(taskID string, initial a2a.Message) {
	ctx, cancel := context.WithCancel(context.Background())
	followUps := make(chan a2a.Message, s.followUpBuf)
	s.mu.Lock()
	s.cancelFns[taskID] = cancel
	s.followUps[taskID] = followUps
	s.mu.Unlock()

	cancelSignal, err := s.store.CancelSignal(taskID)
	if err != nil {
		cancel()
		return
	}

	go func() {
		defer cancel()
		defer func() {
			s.mu.Lock()
			delete(s.cancelFns, taskID)
			delete(s.followUps, taskID)
			close(followUps)
			s.mu.Unlock()
		}()
		go func() {
			select {
			case <-cancelSignal:
				cancel()
			case <-ctx.Done():
			}
		}()

		emit := &storeEmitter{store: s.store, taskID: taskID, cancelSignal: cancelSignal, followUps: followUps}
		if err := s.worker(ctx, emit, initial); err != nil {
			sanitized := sanitizeWorkerError(err)
			msg := &a2a.Message{
				Role:  a2a.RoleSystem,
				Parts: []a2a.Part{{Type: a2a.PartTypeText, Text: sanitized}},
			}
			if stateErr := s.store.UpdateTaskState(taskID, a2a.TaskFailed, msg); stateErr != nil {
				slog.Warn("skeleton: failed to mark worker error as FAILED", "task_id", taskID, "worker_error", err, "store_error", stateErr)
			}
			return
		}

		// A well-behaved worker reaches a terminal state itself; if it
		// returned nil without doing so, force completion so the task
		// doesn't hang in a non-terminal state forever.
		if task, err := s.store.GetTask(taskID); err == nil && !task.Status.State.Terminal() {
			_ = s.store.UpdateTaskState(taskID, a2a.TaskCompleted, nil)
		}
	}()
}

// sanitizeWorkerError builds the FAILED status text from a worker error:
// the error's own Error() text behind a "task failed: " prefix. Go errors
// carry no stack trace, so none reaches the wire; the error text itself is
// passed through unredacted.
func sanitizeWorkerError(err error) string {
	return fmt.Sprintf("task failed: %s", err.Error())
}

// storeEmitter adapts the store's per-task operations to the Emitter
// interface a Worker sees.
type storeEmitter struct {
	store        *store.InMemoryTaskStore
	taskID       string
	cancelSignal <-chan struct{}
	followUps    <-chan a2a.Message
}

func (e *storeEmitter) AppendMessage(msg a2a.Message) error {
	return e.store.AppendMessage(e.taskID, msg)
}

func (e *storeEmitter) AppendArtifact(artifact a2a.Artifact) error {
	return e.store.AppendArtifact(e.taskID, artifact)
}

func (e *storeEmitter) UpdateState(state a2a.TaskState, message *a2a.Message) error {
	return e.store.UpdateTaskState(e.taskID, state, message)
}

func (e *storeEmitter) Canceled() <-chan struct{} {
	return e.cancelSignal
}

func (e *storeEmitter) FollowUps() <-chan a2a.Message {
	return e.followUps
}
