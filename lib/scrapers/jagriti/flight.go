package jagriti

import (
	"context"
	"sync"
)

type flightCall[T any] struct {
	done    chan struct{}
	val     T
	err     error
	waiters int
	cancel  context.CancelFunc
}

// flightGroup collapses concurrent loads of the same key into one call.
//
// unlike x/sync/singleflight, a waiter that gives up stops waiting right
// away and the call itself is cancelled once every waiter has given up. the
// call runs on a context that keeps the first caller's values but not its
// cancellation.
type flightGroup[T any] struct {
	mu    sync.Mutex
	calls map[string]*flightCall[T]
}

func (g *flightGroup[T]) Do(ctx context.Context, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	g.mu.Lock()
	if g.calls == nil {
		g.calls = map[string]*flightCall[T]{}
	}
	call, ok := g.calls[key]
	if !ok {
		callCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		call = &flightCall[T]{
			done:   make(chan struct{}),
			cancel: cancel,
		}
		g.calls[key] = call
		go g.run(callCtx, key, call, fn)
	}
	call.waiters++
	g.mu.Unlock()

	select {
	case <-call.done:
		return call.val, call.err
	case <-ctx.Done():
		g.mu.Lock()
		call.waiters--
		if call.waiters == 0 {
			if g.calls[key] == call {
				delete(g.calls, key)
			}
			call.cancel()
		}
		g.mu.Unlock()

		var zero T
		return zero, ctx.Err()
	}
}

func (g *flightGroup[T]) run(ctx context.Context, key string, call *flightCall[T], fn func(ctx context.Context) (T, error)) {
	defer call.cancel()
	val, err := fn(ctx)

	g.mu.Lock()
	call.val = val
	call.err = err
	if g.calls[key] == call {
		delete(g.calls, key)
	}
	g.mu.Unlock()

	close(call.done)
}

// inflight reports how many keys have a call running.
func (g *flightGroup[T]) inflight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}
