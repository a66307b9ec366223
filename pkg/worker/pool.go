package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hbomb79/Reel/pkg/logger"
	"golang.org/x/sync/errgroup"
)

var workerLogger = logger.Get("Worker")

// ErrPoolClosed is returned by Submit when the pool has already been
// waited on, or when the context the pool was created with is done.
var ErrPoolClosed = errors.New("worker pool is closed")

type Task func(ctx context.Context) error

// Pool is a bounded set of goroutines which execute submitted tasks. At most
// 'size' tasks will be running at any one time; once this limit is reached,
// Submit will BLOCK until a running task completes. This provides natural
// backpressure to the producer feeding the pool.
//
// Task errors do not cancel sibling tasks, they are collected and returned
// from Wait.
type Pool struct {
	label  string
	ctx    context.Context
	group  *errgroup.Group
	mutex  sync.Mutex
	errs   []error
	closed bool
}

// NewPool creates a pool with the label and size provided. The
// context is passed to every task executed by the pool.
func NewPool(ctx context.Context, label string, size int) *Pool {
	if size < 1 {
		size = 1
	}

	group := &errgroup.Group{}
	group.SetLimit(size)

	return &Pool{label: label, ctx: ctx, group: group, errs: make([]error, 0)}
}

// Submit schedules the task on the pool, blocking if the pool
// is currently saturated.
func (pool *Pool) Submit(task Task) error {
	pool.mutex.Lock()
	closed := pool.closed
	pool.mutex.Unlock()
	if closed {
		return ErrPoolClosed
	}
	if err := pool.ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrPoolClosed, err)
	}

	pool.group.Go(func() error {
		if err := pool.execute(task); err != nil {
			workerLogger.Emit(logger.WARNING, "Task in pool %s failed: %v\n", pool.label, err)
			pool.mutex.Lock()
			pool.errs = append(pool.errs, err)
			pool.mutex.Unlock()
		}

		return nil
	})

	return nil
}

// Wait blocks until all submitted tasks have finished, and returns
// the errors reported by any of the tasks. The pool cannot be used
// after Wait has been called.
func (pool *Pool) Wait() []error {
	_ = pool.group.Wait()

	pool.mutex.Lock()
	defer pool.mutex.Unlock()
	pool.closed = true

	return pool.errs
}

func (pool *Pool) execute(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()

	return task(pool.ctx)
}
