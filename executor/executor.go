// Package executor provides the execution context that drives RPC exchanges.
//
// A transport never runs its connect/write/read sequence on the caller directly. It hands
// the sequence to an Executor and blocks until the Executor reports completion. The
// Executor is injected at construction, so callers decide whether transports share one
// context or each own one, and tests can substitute Inline.
//
//	caller ──Execute(task)──► Pool ──go task(ctx)──► connect → write → read
//	   ▲                                                      │
//	   └──────────────────── done ◄───────────────────────────┘
package executor

import (
	"context"
	"errors"
	"sync"

	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("executor")

// ErrClosed is returned by Execute once the executor has been closed.
var ErrClosed = errors.New("executor closed")

// Task is one unit of blocking I/O work.
type Task func(ctx context.Context) error

// Executor runs tasks and blocks the caller until each task finished.
type Executor interface {
	// Execute runs task and returns its error. It must not return before task returned.
	Execute(ctx context.Context, task Task) error
	// Close stops accepting tasks and waits for in-flight ones.
	Close() error
}

// --------------------------------------------------------------------------
// Inline
// --------------------------------------------------------------------------

// Inline runs every task on the calling goroutine.
type Inline struct{}

func (Inline) Execute(ctx context.Context, task Task) error {
	return task(ctx)
}

func (Inline) Close() error {
	return nil
}

// --------------------------------------------------------------------------
// Pool
// --------------------------------------------------------------------------

// Pool runs tasks on dedicated goroutines with an upper bound on concurrently running
// tasks. Each task gets its own goroutine; nothing is shared between tasks.
type Pool struct {
	slots  chan struct{} // Semaphore, nil means unbounded
	wg     sync.WaitGroup
	mu     sync.RWMutex // Guards closed against concurrent wg.Add
	closed bool
}

// NewPool creates a pool that runs at most maxInFlight tasks at once (0 = unbounded).
func NewPool(maxInFlight int) *Pool {
	p := &Pool{}
	if maxInFlight > 0 {
		p.slots = make(chan struct{}, maxInFlight)
	}
	return p
}

// Execute waits for a free slot (or ctx), runs task on a new goroutine and blocks until
// it returns. A task observes ctx itself; Execute never abandons a running task.
func (p *Pool) Execute(ctx context.Context, task Task) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrClosed
	}
	p.wg.Add(1)
	p.mu.RUnlock()
	defer p.wg.Done()

	if p.slots != nil {
		select {
		case p.slots <- struct{}{}:
			defer func() { <-p.slots }()
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	done := make(chan error, 1)
	go func() {
		done <- task(ctx)
	}()
	return <-done
}

// InFlight returns the number of tasks currently holding a slot.
func (p *Pool) InFlight() int {
	return len(p.slots)
}

// Close rejects new tasks and waits for the running ones. It is safe to call twice.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.wg.Wait()
	Logger.Debugf("executor pool closed")
	return nil
}
