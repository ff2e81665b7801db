// Package task runs recurring background activities next to the robot loop.
//
// At most one activity runs per ID. Activities share the scheduler's
// Executor, so only one piece of robot code runs at a time and an activity
// must reach Sleep or Yield (or return) to let anything else run.
package task

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

// DefaultInterval is the wait between two iterations of an activity.
const DefaultInterval = 4 * time.Millisecond

// ID names a recurring activity.
type ID string

// Activity is one iteration of a task. Returning an error, or panicking,
// ends the task as if it had been aborted.
type Activity func(ctx context.Context) error

// Handle is the registration of a running task.
type Handle struct {
	ID    ID
	RunID uuid.UUID

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Done is closed when the task's goroutine exits.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Manager is the task registry.
type Manager struct {
	l        hclog.Logger
	exec     *Executor
	interval time.Duration

	mu    sync.Mutex
	tasks map[ID]*Handle
	wg    sync.WaitGroup

	// OnFailure, when set, is called after a failed task was removed.
	OnFailure func(id ID, err error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l hclog.Logger) Option {
	return func(m *Manager) {
		m.l = l
	}
}

// WithExecutor shares exec with the scheduler.
func WithExecutor(exec *Executor) Option {
	return func(m *Manager) {
		m.exec = exec
	}
}

// WithInterval overrides DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(m *Manager) {
		m.interval = d
	}
}

// NewManager returns an empty registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		l:        hclog.NewNullLogger(),
		interval: DefaultInterval,
		tasks:    make(map[ID]*Handle),
	}
	for _, o := range opts {
		o(m)
	}
	if m.exec == nil {
		m.exec = new(Executor)
	}
	m.l = m.l.Named("tasks")
	return m
}

// Run starts a under id unless a task is already registered there, in which
// case nothing happens. It reports whether a new task was started.
func (m *Manager) Run(id ID, a Activity) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; ok {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		ID:     id,
		RunID:  uuid.New(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	h.running.Store(true)
	m.tasks[id] = h

	m.wg.Add(1)
	go m.loop(ctx, h, a)
	m.l.Debug("task started", "id", id, "run", h.RunID)
	return true
}

// Abort stops the task registered under id and removes it. Unknown ids are
// ignored. The activity observes cancellation at its next Sleep, Yield or
// iteration boundary.
func (m *Manager) Abort(id ID) bool {
	m.mu.Lock()
	h, ok := m.tasks[id]
	if ok {
		delete(m.tasks, id)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	h.running.Store(false)
	h.cancel()
	m.l.Debug("task aborted", "id", id, "run", h.RunID)
	return true
}

// AbortAll aborts every registered task.
func (m *Manager) AbortAll() {
	for _, id := range m.IDs() {
		m.Abort(id)
	}
}

// Active reports whether a task is registered under id.
func (m *Manager) Active(id ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tasks[id]
	return ok
}

// Handle returns the registration under id.
func (m *Manager) Handle(id ID) (*Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.tasks[id]
	return h, ok
}

// Len returns the number of registered tasks.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// IDs lists the registered ids.
func (m *Manager) IDs() []ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]ID, 0, len(m.tasks))
	for id := range m.tasks {
		ids = append(ids, id)
	}
	return ids
}

// Wait blocks until every task goroutine has exited.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) loop(ctx context.Context, h *Handle, a Activity) {
	defer m.wg.Done()
	defer close(h.done)

	for h.running.Load() {
		err := m.iterate(ctx, a)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			m.fail(h, err)
			return
		}
		if wait(ctx, m.interval) != nil {
			return
		}
	}
}

func (m *Manager) iterate(ctx context.Context, a Activity) error {
	return m.exec.Do(ctx, func(ctx context.Context) (err error) {
		// an abort issued while this goroutine waited for the executor
		// must not start one more iteration
		if ctx.Err() != nil {
			return ctx.Err()
		}
		defer func() {
			if r := recover(); r != nil {
				err = errors.Errorf("panic: %v", r)
			}
		}()
		return a(ctx)
	})
}

// fail drops the registration if it still belongs to h; a newer run under
// the same id is left alone.
func (m *Manager) fail(h *Handle, err error) {
	m.mu.Lock()
	if cur, ok := m.tasks[h.ID]; ok && cur == h {
		delete(m.tasks, h.ID)
	}
	m.mu.Unlock()
	h.running.Store(false)
	h.cancel()

	m.l.Error("task failed", "id", h.ID, "run", h.RunID, "error", err)
	if m.OnFailure != nil {
		m.OnFailure(h.ID, err)
	}
}

func (h *Handle) String() string {
	return fmt.Sprintf("%s(%s)", h.ID, h.RunID)
}
