package jagriti

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func (g *flightGroup[T]) waiting(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	call, ok := g.calls[key]
	if !ok {
		return 0
	}
	return call.waiters
}

func TestFlightGroupCollapsesCalls(t *testing.T) {
	var g flightGroup[int]
	var calls atomic.Int32
	release := make(chan struct{})

	fn := func(ctx context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	results := make(chan int, 3)
	for range 3 {
		go func() {
			v, err := g.Do(context.Background(), "k", fn)
			if err != nil {
				v = -1
			}
			results <- v
		}()
	}

	require.Eventually(t, func() bool {
		return g.waiting("k") == 3
	}, 2*time.Second, 5*time.Millisecond)
	close(release)

	for range 3 {
		require.Equal(t, 42, <-results)
	}
	require.Equal(t, int32(1), calls.Load())
	require.Equal(t, 0, g.inflight())
}

func TestFlightGroupSharesErrors(t *testing.T) {
	var g flightGroup[string]
	boom := errors.New("boom")

	_, err := g.Do(context.Background(), "k", func(ctx context.Context) (string, error) {
		return "", boom
	})
	require.ErrorIs(t, err, boom)

	// a failed call is forgotten, the next Do runs again
	v, err := g.Do(context.Background(), "k", func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", v)
}

func TestFlightGroupWaiterCancel(t *testing.T) {
	var g flightGroup[int]
	release := make(chan struct{})
	var callCancelled atomic.Bool

	fn := func(ctx context.Context) (int, error) {
		select {
		case <-release:
			return 7, nil
		case <-ctx.Done():
			callCancelled.Store(true)
			return 0, ctx.Err()
		}
	}

	staying := make(chan int, 1)
	go func() {
		v, _ := g.Do(context.Background(), "k", fn)
		staying <- v
	}()

	ctx, cancel := context.WithCancel(context.Background())
	leaving := make(chan error, 1)
	go func() {
		_, err := g.Do(ctx, "k", fn)
		leaving <- err
	}()

	require.Eventually(t, func() bool {
		return g.waiting("k") == 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-leaving, context.Canceled)
	require.Equal(t, 1, g.waiting("k"))

	close(release)
	require.Equal(t, 7, <-staying)
	require.False(t, callCancelled.Load())
}

func TestFlightGroupLastWaiterCancelsCall(t *testing.T) {
	var g flightGroup[int]
	stopped := make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := g.Do(ctx, "k", func(ctx context.Context) (int, error) {
			<-ctx.Done()
			close(stopped)
			return 0, ctx.Err()
		})
		done <- err
	}()

	require.Eventually(t, func() bool {
		return g.waiting("k") == 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	require.Equal(t, 0, g.inflight())

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("call was not cancelled after its last waiter left")
	}
}

func TestFlightGroupKeepsCallerValues(t *testing.T) {
	type ctxKey struct{}
	var g flightGroup[string]

	ctx := context.WithValue(context.Background(), ctxKey{}, "trace-1")
	v, err := g.Do(ctx, "k", func(ctx context.Context) (string, error) {
		s, _ := ctx.Value(ctxKey{}).(string)
		return s, nil
	})
	require.NoError(t, err)
	require.Equal(t, "trace-1", v)
}
