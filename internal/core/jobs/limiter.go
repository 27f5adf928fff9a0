package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrTooManyJobs is returned when no job slot frees up within the wait
// window.
var ErrTooManyJobs = errors.New("too many concurrent jobs, please try again later")

const (
	DefaultMaxConcurrent = 8
	DefaultMaxWait       = 30 * time.Second
)

// Limiter bounds the number of running background jobs.
type Limiter struct {
	sem     *semaphore.Weighted
	size    int64
	maxWait time.Duration
	held    atomic.Int64
}

func NewLimiter(maxConcurrent int, maxWait time.Duration) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	return &Limiter{
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		size:    int64(maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire waits up to maxWait for a slot and fails with ErrTooManyJobs
// after that. Every successful Acquire or Wait is paired with a Release.
func (l *Limiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()
	if err := l.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyJobs
	}
	l.held.Add(1)
	return nil
}

// Wait blocks for a slot until ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	l.held.Add(1)
	return nil
}

func (l *Limiter) Release() {
	l.held.Add(-1)
	l.sem.Release(1)
}

type Status struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"maxConcurrent"`
}

func (l *Limiter) Status() Status {
	held := l.held.Load()
	return Status{
		Active:        int(held),
		Available:     int(l.size - held),
		MaxConcurrent: int(l.size),
	}
}
