package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Task is the handle of one background job.
type Task struct {
	Name string

	done chan struct{}
	err  error
}

func (t *Task) Done() <-chan struct{} { return t.done }

// Err is the job's result; valid once Done is closed.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the job ends or ctx is done.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Runner launches background jobs through a Limiter. Jobs receive a
// context that is cancelled by Shutdown, not by the caller's context.
type Runner struct {
	limiter *Limiter
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRunner(limiter *Limiter, logger *slog.Logger) *Runner {
	if limiter == nil {
		limiter = NewLimiter(0, 0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{limiter: limiter, logger: logger, ctx: ctx, cancel: cancel}
}

func (r *Runner) Limiter() *Limiter { return r.limiter }

// Reservation is an admitted job slot that has not started yet. Exactly
// one of Go or Cancel must be called.
type Reservation struct {
	runner *Runner
	once   sync.Once
}

// Reserve admits a job, waiting at most the limiter's window.
func (r *Runner) Reserve(ctx context.Context) (*Reservation, error) {
	if err := r.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	return &Reservation{runner: r}, nil
}

// Go runs fn in its own goroutine on the reserved slot.
func (res *Reservation) Go(name string, fn func(ctx context.Context) error) *Task {
	var t *Task
	res.once.Do(func() { t = res.runner.launch(name, fn) })
	return t
}

// Cancel gives the slot back without running anything.
func (res *Reservation) Cancel() {
	res.once.Do(res.runner.limiter.Release)
}

// Schedule queues a job until a slot frees up or the runner shuts down.
// It never rejects.
func (r *Runner) Schedule(name string, fn func(ctx context.Context) error) *Task {
	t := &Task{Name: name, done: make(chan struct{})}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.limiter.Wait(r.ctx); err != nil {
			t.err = err
			close(t.done)
			return
		}
		r.run(t, fn)
	}()
	return t
}

func (r *Runner) launch(name string, fn func(ctx context.Context) error) *Task {
	t := &Task{Name: name, done: make(chan struct{})}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(t, fn)
	}()
	return t
}

func (r *Runner) run(t *Task, fn func(ctx context.Context) error) {
	defer r.limiter.Release()
	defer close(t.done)

	start := time.Now()
	r.logger.Debug("job started", "job", t.Name)
	t.err = fn(r.ctx)
	if t.err != nil {
		r.logger.Error("job failed", "job", t.Name, "elapsed", time.Since(start), "error", t.err)
		return
	}
	r.logger.Info("job finished", "job", t.Name, "elapsed", time.Since(start))
}

// Shutdown cancels running jobs and waits for them to return, or for ctx.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.cancel()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
