package orchestrator

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// RateLimiter bounds LLM traffic two ways at once: a semaphore caps
// outstanding requests and a token bucket caps requests per second. Acquire
// passes only when both admit. Non-LLM tasks never touch the limiter, which
// is what lets a command read fifty files in parallel while three LLM calls
// share the quota.
type RateLimiter struct {
	sem      *semaphore.Weighted
	bucket   *rate.Limiter
	acquires atomic.Int64
}

// NewRateLimiter builds a limiter admitting maxConcurrent outstanding
// requests at no more than perSecond requests per second. Non-positive
// arguments fall back to a conservative 1.
func NewRateLimiter(maxConcurrent int, perSecond float64) *RateLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if perSecond <= 0 {
		perSecond = 1
	}
	return &RateLimiter{
		sem:    semaphore.NewWeighted(int64(maxConcurrent)),
		bucket: rate.NewLimiter(rate.Limit(perSecond), maxConcurrent),
	}
}

// Acquire blocks until a concurrency permit and a rate token are both
// available, or ctx is done. On success the caller must Release exactly once.
func (r *RateLimiter) Acquire(ctx context.Context) error {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	if err := r.bucket.Wait(ctx); err != nil {
		r.sem.Release(1)
		return err
	}
	r.acquires.Add(1)
	return nil
}

// Release returns the concurrency permit taken by a successful Acquire.
func (r *RateLimiter) Release() {
	r.sem.Release(1)
}

// Acquires reports how many times the limiter has admitted a request. Tests
// use it to prove the limiter never engages for non-LLM work.
func (r *RateLimiter) Acquires() int64 {
	return r.acquires.Load()
}
