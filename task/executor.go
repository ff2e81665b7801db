package task

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Executor serialises the scheduler's hooks and every task iteration into
// one logical thread. Code running under Do gives up the thread only through
// Sleep or Yield.
type Executor struct {
	mu sync.Mutex
	// waiting counts goroutines blocked on mu; turns counts acquisitions.
	waiting atomic.Int32
	turns   atomic.Uint64
}

type executorKey struct{}

func (e *Executor) lock() {
	e.waiting.Add(1)
	e.mu.Lock()
	e.waiting.Add(-1)
	e.turns.Add(1)
}

// Do runs fn while holding the executor. fn's context carries the executor
// so that Sleep and Yield can release it.
func (e *Executor) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	e.lock()
	defer e.mu.Unlock()
	return fn(context.WithValue(ctx, executorKey{}, e))
}

func fromContext(ctx context.Context) *Executor {
	e, _ := ctx.Value(executorKey{}).(*Executor)
	return e
}

// Sleep waits for d or until ctx is done. Called from code running under
// Executor.Do it lets other cooperative work run meanwhile.
func Sleep(ctx context.Context, d time.Duration) error {
	if e := fromContext(ctx); e != nil {
		e.mu.Unlock()
		defer e.lock()
	}
	return wait(ctx, d)
}

// Yield hands the executor to work already waiting for it and takes it back
// once that work has had its turn. With nothing waiting it returns at once.
func Yield(ctx context.Context) error {
	e := fromContext(ctx)
	if e == nil || e.waiting.Load() == 0 {
		return ctx.Err()
	}
	turn := e.turns.Load()
	e.mu.Unlock()
	for e.turns.Load() == turn && e.waiting.Load() > 0 && ctx.Err() == nil {
		runtime.Gosched()
	}
	e.lock()
	return ctx.Err()
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
