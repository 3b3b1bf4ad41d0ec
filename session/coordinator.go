package session

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RenewFunc performs one token refresh and returns the new access token.
type RenewFunc func(ctx context.Context) (string, error)

type renewResult struct {
	token string
	err   error
}

// Coordinator makes sure at most one refresh is in flight. Callers that need a
// new token while a refresh is running wait for it and receive its result, in the
// order they started waiting.
type Coordinator struct {
	renew   RenewFunc
	timeout time.Duration
	metrics *Metrics

	mu       sync.Mutex
	inFlight bool
	waiters  []func(renewResult)
}

// NewCoordinator creates a coordinator around renew. A positive timeout bounds each refresh.
func NewCoordinator(renew RenewFunc, timeout time.Duration) *Coordinator {
	return &Coordinator{renew: renew, timeout: timeout}
}

// Renew returns a fresh access token, starting a refresh or joining the one in flight.
//
// The refresh itself is not tied to ctx cancellation, since other callers may be
// waiting on it; ctx only bounds how long this caller waits.
func (c *Coordinator) Renew(ctx context.Context) (string, error) {
	ch := make(chan renewResult, 1)
	if !c.join(func(r renewResult) { ch <- r }) {
		select {
		case r := <-ch:
			return r.token, r.err
		case <-ctx.Done():
			return "", transportError(ctx, ctx.Err())
		}
	}
	r := c.run(ctx)
	return r.token, r.err
}

// InFlight reports whether a refresh is currently running
func (c *Coordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Waiting returns the number of callers queued behind the running refresh
func (c *Coordinator) Waiting() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// join queues resume behind a running refresh and returns false, or marks a
// refresh as started and returns true when none is running.
func (c *Coordinator) join(resume func(renewResult)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight {
		c.waiters = append(c.waiters, resume)
		c.metrics.waiterJoined()
		return false
	}
	c.inFlight = true
	return true
}

func (c *Coordinator) run(ctx context.Context) (res renewResult) {
	defer func() {
		if p := recover(); p != nil {
			res = renewResult{err: fmt.Errorf("%w: %v", ErrRenewalPanicked, p)}
		}
		c.finish(res)
	}()

	renewCtx := context.WithoutCancel(ctx)
	if c.timeout > 0 {
		var cancel context.CancelFunc
		renewCtx, cancel = context.WithTimeout(renewCtx, c.timeout)
		defer cancel()
	}
	token, err := c.renew(renewCtx)
	return renewResult{token: token, err: err}
}

// finish clears the in-flight flag, then resumes every waiter in enqueue order.
func (c *Coordinator) finish(res renewResult) {
	c.mu.Lock()
	c.inFlight = false
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()

	c.metrics.waitersResumed(len(waiters))
	for _, resume := range waiters {
		resume(res)
	}
}
