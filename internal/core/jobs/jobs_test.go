package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func start(t *testing.T, r *Runner, ctx context.Context, name string, fn func(ctx context.Context) error) *Task {
	t.Helper()
	res, err := r.Reserve(ctx)
	require.NoError(t, err)
	return res.Go(name, fn)
}

func TestLimiterRejectsAfterWait(t *testing.T) {
	l := NewLimiter(1, 20*time.Millisecond)
	require.NoError(t, l.Acquire(context.Background()))
	assert.Equal(t, Status{Active: 1, Available: 0, MaxConcurrent: 1}, l.Status())

	err := l.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrTooManyJobs)

	l.Release()
	assert.Equal(t, Status{Active: 0, Available: 1, MaxConcurrent: 1}, l.Status())
	require.NoError(t, l.Acquire(context.Background()))
	assert.Equal(t, 1, l.Status().Active)
}

func TestLimiterCallerCancel(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, l.Acquire(ctx), context.Canceled)
	assert.ErrorIs(t, l.Wait(ctx), context.Canceled)
	assert.Equal(t, 1, l.Status().Active)
}

func TestLimiterDefaults(t *testing.T) {
	l := NewLimiter(0, 0)
	assert.Equal(t, DefaultMaxConcurrent, l.Status().MaxConcurrent)
	assert.Equal(t, DefaultMaxConcurrent, l.Status().Available)
}

func TestRunnerRuns(t *testing.T) {
	r := NewRunner(NewLimiter(2, time.Second), nil)

	task := start(t, r, context.Background(), "ok", func(ctx context.Context) error { return nil })
	require.NoError(t, task.Wait(context.Background()))
	assert.Equal(t, "ok", task.Name)

	boom := errors.New("boom")
	task = start(t, r, context.Background(), "fail", func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, task.Wait(context.Background()), boom)
	assert.ErrorIs(t, task.Err(), boom)

	require.NoError(t, r.Shutdown(context.Background()))
	assert.Equal(t, 0, r.Limiter().Status().Active)
}

func TestRunnerJobOutlivesCallerContext(t *testing.T) {
	r := NewRunner(NewLimiter(1, time.Second), nil)
	ctx, cancel := context.WithCancel(context.Background())

	release := make(chan struct{})
	task := start(t, r, ctx, "long", func(jobCtx context.Context) error {
		<-release
		return jobCtx.Err()
	})
	cancel()
	close(release)

	assert.NoError(t, task.Wait(context.Background()))
}

func TestRunnerRejectsWhenFull(t *testing.T) {
	r := NewRunner(NewLimiter(1, 20*time.Millisecond), nil)
	release := make(chan struct{})
	start(t, r, context.Background(), "hold", func(ctx context.Context) error {
		<-release
		return nil
	})

	_, err := r.Reserve(context.Background())
	assert.ErrorIs(t, err, ErrTooManyJobs)

	queued := r.Schedule("queued", func(ctx context.Context) error { return nil })
	select {
	case <-queued.Done():
		t.Fatal("scheduled job ran while the only slot was held")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	require.NoError(t, queued.Wait(context.Background()))
	require.NoError(t, r.Shutdown(context.Background()))
	assert.Equal(t, Status{Active: 0, Available: 1, MaxConcurrent: 1}, r.Limiter().Status())
}

func TestRunnerShutdownCancelsJobs(t *testing.T) {
	r := NewRunner(nil, nil)
	started := make(chan struct{})
	task := start(t, r, context.Background(), "loop", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Shutdown(ctx))
	assert.ErrorIs(t, task.Err(), context.Canceled)
}

func TestRunnerShutdownFailsQueuedJobs(t *testing.T) {
	r := NewRunner(NewLimiter(1, time.Second), nil)
	held, err := r.Reserve(context.Background())
	require.NoError(t, err)

	queued := r.Schedule("queued", func(ctx context.Context) error { return nil })
	require.NoError(t, r.Shutdown(context.Background()))
	assert.ErrorIs(t, queued.Err(), context.Canceled)
	held.Cancel()
}

func TestReservationCancelReleasesSlot(t *testing.T) {
	r := NewRunner(NewLimiter(1, 20*time.Millisecond), nil)

	res, err := r.Reserve(context.Background())
	require.NoError(t, err)
	_, err = r.Reserve(context.Background())
	assert.ErrorIs(t, err, ErrTooManyJobs)

	res.Cancel()
	res.Cancel()
	assert.Equal(t, 1, r.Limiter().Status().Available)
	assert.Nil(t, res.Go("late", func(ctx context.Context) error { return nil }))
}
