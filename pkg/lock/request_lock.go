package lock

import (
	"context"
	"sync"
	"time"

	"github.com/mpapenbr/participant-core-go/log"
)

// Outcome describes how Acquire returned.
type Outcome int

const (
	// Acquired means the lock was free and the caller now holds it.
	// The caller has to call Release.
	Acquired Outcome = iota
	// Released means another holder released the lock while we waited.
	Released
	// TimedOut means the holder did not release in time. The lock was
	// forcibly unlocked.
	TimedOut
	// Canceled means the context ended while waiting.
	Canceled
)

func (o Outcome) String() string {
	switch o {
	case Acquired:
		return "acquired"
	case Released:
		return "released"
	case TimedOut:
		return "timed-out"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

const DefaultTimeout = 60 * time.Second

type (
	Option func(*RequestLock)

	// RequestLock is a single slot lock that serializes token renewals.
	// Waiters do not take over the lock. They are resumed together when the
	// holder releases, or individually when their timeout elapses.
	RequestLock struct {
		mu      sync.Mutex
		locked  bool
		waiters []chan struct{}
		timeout time.Duration
		l       *log.Logger
	}
)

func WithTimeout(d time.Duration) Option {
	return func(r *RequestLock) {
		r.timeout = d
	}
}

func WithLogger(l *log.Logger) Option {
	return func(r *RequestLock) {
		r.l = l
	}
}

func New(opts ...Option) *RequestLock {
	ret := &RequestLock{
		timeout: DefaultTimeout,
		l:       log.Default().Named("lock"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (r *RequestLock) Acquire(ctx context.Context) Outcome {
	r.mu.Lock()
	if !r.locked {
		r.locked = true
		r.mu.Unlock()
		return Acquired
	}
	ch := make(chan struct{})
	r.waiters = append(r.waiters, ch)
	r.mu.Unlock()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case <-ch:
		return Released
	case <-timer.C:
		r.mu.Lock()
		// Release may have raced with the timer
		if !r.removeWaiter(ch) {
			r.mu.Unlock()
			return Released
		}
		r.locked = false
		r.mu.Unlock()
		r.l.Warn("lock not released in time, unlocking",
			log.Duration("timeout", r.timeout))
		return TimedOut
	case <-ctx.Done():
		r.mu.Lock()
		removed := r.removeWaiter(ch)
		r.mu.Unlock()
		if !removed {
			return Released
		}
		return Canceled
	}
}

// Release unlocks and resumes all waiters in the order they arrived.
// Calling Release on an unlocked lock is a no-op.
func (r *RequestLock) Release() {
	r.mu.Lock()
	waiters := r.waiters
	r.waiters = nil
	r.locked = false
	r.mu.Unlock()

	for _, ch := range waiters {
		close(ch)
	}
}

func (r *RequestLock) IsLocked() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.locked
}

// Waiting returns the number of callers currently blocked in Acquire.
func (r *RequestLock) Waiting() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waiters)
}

// must be called with r.mu held
func (r *RequestLock) removeWaiter(ch chan struct{}) bool {
	for i, w := range r.waiters {
		if w == ch {
			r.waiters = append(r.waiters[:i], r.waiters[i+1:]...)
			return true
		}
	}
	return false
}
