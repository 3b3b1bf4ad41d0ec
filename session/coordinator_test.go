package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingRenew returns a RenewFunc that blocks until release is closed
func blockingRenew(calls *atomic.Int32, release <-chan struct{}, token string, err error) RenewFunc {
	return func(ctx context.Context) (string, error) {
		calls.Add(1)
		select {
		case <-release:
			return token, err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, time.Millisecond)
}

func TestCoordinator_SingleFlight(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	c := NewCoordinator(blockingRenew(&calls, release, "A2", nil), time.Second)

	const callers = 5
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = c.Renew(context.Background())
		}(i)
	}

	waitUntil(t, func() bool { return c.Waiting() == callers-1 })
	require.True(t, c.InFlight())
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), calls.Load())
	for i := range tokens {
		require.NoError(t, errs[i])
		require.Equal(t, "A2", tokens[i])
	}
	require.False(t, c.InFlight())
	require.Zero(t, c.Waiting())
}

func TestCoordinator_SharesFailure(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	boom := errors.New("boom")
	c := NewCoordinator(blockingRenew(&calls, release, "", boom), 0)

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Renew(context.Background())
		}(i)
	}
	waitUntil(t, func() bool { return c.Waiting() == 2 })
	close(release)
	wg.Wait()

	for _, err := range errs {
		require.ErrorIs(t, err, boom)
	}

	// a later call starts a fresh refresh
	_, err := c.Renew(context.Background())
	require.ErrorIs(t, err, boom)
	require.Equal(t, int32(2), calls.Load())
}

func TestCoordinator_ResumesWaitersInOrder(t *testing.T) {
	c := NewCoordinator(func(context.Context) (string, error) { return "", nil }, 0)
	require.True(t, c.join(nil))

	var order []int
	for i := 1; i <= 3; i++ {
		require.False(t, c.join(func(r renewResult) {
			order = append(order, i)
			assert.Equal(t, "A2", r.token)
		}))
	}
	require.Equal(t, 3, c.Waiting())

	c.finish(renewResult{token: "A2"})
	require.Equal(t, []int{1, 2, 3}, order)
	require.False(t, c.InFlight())
}

func TestCoordinator_RecoversPanic(t *testing.T) {
	var calls atomic.Int32
	c := NewCoordinator(func(context.Context) (string, error) {
		if calls.Add(1) == 1 {
			panic("refresh exploded")
		}
		return "A2", nil
	}, 0)

	_, err := c.Renew(context.Background())
	require.ErrorIs(t, err, ErrRenewalPanicked)
	require.Contains(t, err.Error(), "refresh exploded")
	require.False(t, c.InFlight())

	token, err := c.Renew(context.Background())
	require.NoError(t, err)
	require.Equal(t, "A2", token)
}

func TestCoordinator_WaiterCancellation(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	c := NewCoordinator(blockingRenew(&calls, release, "A2", nil), 0)

	leaderDone := make(chan string)
	go func() {
		token, _ := c.Renew(context.Background())
		leaderDone <- token
	}()
	waitUntil(t, c.InFlight)

	ctx, cancel := context.WithCancel(context.Background())
	waiterErr := make(chan error)
	go func() {
		_, err := c.Renew(ctx)
		waiterErr <- err
	}()
	waitUntil(t, func() bool { return c.Waiting() == 1 })
	cancel()

	err := <-waiterErr
	require.Equal(t, KindCanceled, KindOf(err))
	require.True(t, c.InFlight())

	close(release)
	require.Equal(t, "A2", <-leaderDone)
	require.False(t, c.InFlight())
	require.Equal(t, int32(1), calls.Load())
}

func TestCoordinator_LeaderCancellationDoesNotAbortRefresh(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	c := NewCoordinator(blockingRenew(&calls, release, "A2", nil), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	leaderDone := make(chan error)
	go func() {
		_, err := c.Renew(ctx)
		leaderDone <- err
	}()
	waitUntil(t, c.InFlight)

	waiterDone := make(chan string)
	go func() {
		token, _ := c.Renew(context.Background())
		waiterDone <- token
	}()
	waitUntil(t, func() bool { return c.Waiting() == 1 })

	cancel()
	time.Sleep(20 * time.Millisecond)
	close(release)

	require.NoError(t, <-leaderDone)
	require.Equal(t, "A2", <-waiterDone)
}

func TestCoordinator_Timeout(t *testing.T) {
	var calls atomic.Int32
	c := NewCoordinator(blockingRenew(&calls, make(chan struct{}), "A2", nil), 30*time.Millisecond)

	_, err := c.Renew(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, c.InFlight())
}

func TestCoordinator_WaiterGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	var calls atomic.Int32
	release := make(chan struct{})
	c := NewCoordinator(blockingRenew(&calls, release, "A2", nil), 0)
	c.metrics = m

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Renew(context.Background())
		}()
	}
	waitUntil(t, func() bool { return c.Waiting() == 2 })
	require.Equal(t, float64(2), testutil.ToFloat64(m.waiting))

	close(release)
	wg.Wait()
	require.Equal(t, float64(0), testutil.ToFloat64(m.waiting))
}
