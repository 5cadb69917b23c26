// Package store implements the task store and listener fan-out described
// in spec §4.6, generalizing the teacher's A2AServer.tasks map
// (pkg/a2a/server/server.go) into a standalone component with per-task
// locking, cancellation signals, and ordered event delivery to multiple
// SSE subscribers.
package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentvault/a2a-core/pkg/a2a"
)

// drainTimeout bounds how long a terminating task waits for a slow
// listener to drain its queue before being force-detached (spec §4.6 "waits
// a bounded time, then detaches remaining listeners").
const drainTimeout = 2 * time.Second

// listenerQueue is one SSE subscriber's mailbox. events is closed by the
// store on remove_listener or on bounded-drain timeout so a blocked
// consumer wakes (spec §4.6).
type listenerQueue struct {
	events chan a2a.Event
	closed bool
}

// taskEntry is the store's internal representation of one task, including
// its listener set and cancellation signal. Its mutex serializes every
// mutating op against that single task_id (spec §5 "ordering guarantees").
type taskEntry struct {
	mu        sync.Mutex
	task      a2a.Task
	listeners map[*listenerQueue]struct{}
	cancel    chan struct{}
	canceled  bool
}

// InMemoryTaskStore is the process-local implementation of the task store
// contract. A coarse RWMutex guards the top-level id->entry map; each
// entry then owns its own mutex so unrelated tasks never contend.
type InMemoryTaskStore struct {
	mu      sync.RWMutex
	tasks   map[string]*taskEntry
	metrics *Metrics
}

// New constructs an empty store. metrics may be nil to disable Prometheus
// instrumentation.
func New(metrics *Metrics) *InMemoryTaskStore {
	return &InMemoryTaskStore{
		tasks:   map[string]*taskEntry{},
		metrics: metrics,
	}
}

// CreateTask allocates a fresh task in state SUBMITTED and returns its id
// (spec §4.6 "create_task").
func (s *InMemoryTaskStore) CreateTask() string {
	id := uuid.NewString()
	now := time.Now().UTC()

	entry := &taskEntry{
		task: a2a.Task{
			ID:        id,
			CreatedAt: now,
			UpdatedAt: now,
			Status:    a2a.TaskStatus{State: a2a.TaskSubmitted, Timestamp: now},
		},
		listeners: map[*listenerQueue]struct{}{},
		cancel:    make(chan struct{}),
	}

	s.mu.Lock()
	s.tasks[id] = entry
	s.mu.Unlock()

	s.metrics.setActiveTasks(s.activeCount())
	return id
}

// GetTask returns a snapshot of the task, or a TaskNotFoundError (spec §4.6
// "get_task").
func (s *InMemoryTaskStore) GetTask(id string) (a2a.Task, error) {
	entry, ok := s.lookup(id)
	if !ok {
		return a2a.Task{}, &a2a.TaskNotFoundError{TaskID: id}
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.task.Clone(), nil
}

// CancelSignal returns the channel that closes when the task is canceled,
// for a background worker to select on at its suspension points (spec §4.6
// "Cancellation", §5).
func (s *InMemoryTaskStore) CancelSignal(id string) (<-chan struct{}, error) {
	entry, ok := s.lookup(id)
	if !ok {
		return nil, &a2a.TaskNotFoundError{TaskID: id}
	}
	return entry.cancel, nil
}

// UpdateTaskState validates and applies a state transition, emitting
// TaskStatusUpdate to every listener registered at the moment of emission.
// Duplicate transitions to the same terminal state are a silent no-op
// (spec §4.6).
func (s *InMemoryTaskStore) UpdateTaskState(id string, newState a2a.TaskState, message *a2a.Message) error {
	entry, ok := s.lookup(id)
	if !ok {
		return &a2a.TaskNotFoundError{TaskID: id}
	}

	entry.mu.Lock()
	from := entry.task.Status.State
	ok2, err := a2a.ValidateTransition(from, newState)
	if err != nil {
		entry.mu.Unlock()
		return err
	}
	if !ok2 {
		// Legal no-op: duplicate transition to the same terminal state.
		entry.mu.Unlock()
		return nil
	}

	now := time.Now().UTC()
	entry.task.UpdatedAt = now
	entry.task.Status = a2a.TaskStatus{State: newState, Message: message, Timestamp: now}
	if newState == a2a.TaskCanceled && !entry.canceled {
		entry.canceled = true
		close(entry.cancel)
	}

	ev := a2a.Event{Kind: a2a.EventTaskStatusUpdate, TaskID: id, State: newState, Timestamp: now, Message: message}
	terminal := newState.Terminal()
	s.broadcastLocked(entry, ev)

	if terminal {
		s.terminateLocked(entry)
	}
	entry.mu.Unlock()

	s.metrics.setActiveTasks(s.activeCount())
	return nil
}

// AppendMessage appends msg to the task's transcript and emits TaskMessage
// (spec §4.6 "append_message").
func (s *InMemoryTaskStore) AppendMessage(id string, msg a2a.Message) error {
	entry, ok := s.lookup(id)
	if !ok {
		return &a2a.TaskNotFoundError{TaskID: id}
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.task.Status.State.Terminal() {
		return &a2a.InvalidTransitionError{From: entry.task.Status.State, To: entry.task.Status.State}
	}

	entry.task.Messages = append(entry.task.Messages, msg)
	entry.task.UpdatedAt = time.Now().UTC()

	m := msg
	ev := a2a.Event{Kind: a2a.EventTaskMessage, TaskID: id, Message: &m, Timestamp: entry.task.UpdatedAt}
	s.broadcastLocked(entry, ev)
	return nil
}

// AppendArtifact appends artifact to the task and emits TaskArtifactUpdate
// (spec §4.6 "append_artifact").
func (s *InMemoryTaskStore) AppendArtifact(id string, artifact a2a.Artifact) error {
	entry, ok := s.lookup(id)
	if !ok {
		return &a2a.TaskNotFoundError{TaskID: id}
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.task.Status.State.Terminal() {
		return &a2a.InvalidTransitionError{From: entry.task.Status.State, To: entry.task.Status.State}
	}

	entry.task.Artifacts = append(entry.task.Artifacts, artifact)
	entry.task.UpdatedAt = time.Now().UTC()

	art := artifact
	ev := a2a.Event{Kind: a2a.EventTaskArtifactUpdate, TaskID: id, Artifact: &art, Timestamp: entry.task.UpdatedAt}
	s.broadcastLocked(entry, ev)
	return nil
}

// AddListener registers a new subscriber for id and returns a channel that
// first yields a synthetic snapshot of the task's current status, then the
// live event stream (spec §4.6 "add_listener": "late subscribers don't miss
// the task's current state"). bufSize bounds how many events may queue for
// this listener; once its queue is full, broadcast drops further events for
// it rather than blocking.
func (s *InMemoryTaskStore) AddListener(id string, bufSize int) (<-chan a2a.Event, func(), error) {
	entry, ok := s.lookup(id)
	if !ok {
		return nil, nil, &a2a.TaskNotFoundError{TaskID: id}
	}

	if bufSize < 1 {
		bufSize = 1
	}
	q := &listenerQueue{events: make(chan a2a.Event, bufSize+1)}

	entry.mu.Lock()
	snapshot := a2a.Event{
		Kind:      a2a.EventTaskStatusUpdate,
		TaskID:    id,
		State:     entry.task.Status.State,
		Timestamp: entry.task.Status.Timestamp,
		Message:   entry.task.Status.Message,
	}
	terminal := entry.task.Status.State.Terminal()
	if terminal {
		// The task already reached a terminal state before this listener
		// existed, so terminateLocked already ran and will never run
		// again for it: deliver the snapshot and close immediately
		// rather than registering a listener nothing will ever detach
		// (spec §4.6 scenario 2, "late subscriber ... stream ends").
		q.events <- snapshot
		close(q.events)
		entry.mu.Unlock()
		return q.events, func() {}, nil
	}

	entry.listeners[q] = struct{}{}
	q.events <- snapshot
	entry.mu.Unlock()

	s.metrics.incListeners()

	remove := func() { s.removeListener(entry, q) }
	return q.events, remove, nil
}

// removeListener unregisters q and closes its channel so a blocked
// consumer wakes (spec §4.6 "remove_listener").
func (s *InMemoryTaskStore) removeListener(entry *taskEntry, q *listenerQueue) {
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if _, ok := entry.listeners[q]; !ok {
		return
	}
	delete(entry.listeners, q)
	if !q.closed {
		q.closed = true
		close(q.events)
	}
	s.metrics.decListeners()
}

// broadcastLocked delivers ev to every listener registered right now, in
// order, without releasing entry.mu — this is what makes emission atomic
// with respect to concurrent add_listener/remove_listener calls (spec §4.6
// "every listener registered at the moment of emission").
func (s *InMemoryTaskStore) broadcastLocked(entry *taskEntry, ev a2a.Event) {
	for q := range entry.listeners {
		if q.closed {
			continue
		}
		select {
		case q.events <- ev:
		default:
			// Slow consumer: drop rather than stall the whole task's
			// mutating op; the consumer can detect gaps via get_task.
		}
	}
	s.metrics.recordEvent(string(ev.Kind))
}

// terminateLocked broadcasts the terminal status (already done by the
// caller before calling this), waits up to drainTimeout for queues to
// empty, then force-closes and detaches every remaining listener (spec
// §4.6 "On task termination... drains queues... then detaches").
func (s *InMemoryTaskStore) terminateLocked(entry *taskEntry) {
	deadline := time.Now().Add(drainTimeout)
	for time.Now().Before(deadline) {
		allEmpty := true
		for q := range entry.listeners {
			if len(q.events) > 0 {
				allEmpty = false
				break
			}
		}
		if allEmpty {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	for q := range entry.listeners {
		if !q.closed {
			q.closed = true
			close(q.events)
			s.metrics.decListeners()
		}
	}
	entry.listeners = map[*listenerQueue]struct{}{}
}

func (s *InMemoryTaskStore) lookup(id string) (*taskEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.tasks[id]
	return entry, ok
}

func (s *InMemoryTaskStore) activeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.tasks {
		e.mu.Lock()
		if !e.task.Status.State.Terminal() {
			n++
		}
		e.mu.Unlock()
	}
	return n
}
