package incremental

import (
	"context"
	"sync"
)

// Registry is a cancellation fan-out (spec §4.4): a set of abort closures,
// each invoked at most once, the first time Abort fires. Listen's
// disconnect removes a closure without firing it, so a listener that
// finishes on its own (e.g. a future that already settled) doesn't linger.
type Registry struct {
	mu      sync.Mutex
	nextID  uint64
	closers map[uint64]func(error)
	fired   bool
	reason  error
}

// NewRegistry returns an empty, unfired registry.
func NewRegistry() *Registry {
	return &Registry{closers: make(map[uint64]func(error))}
}

// Listen registers fn to run with the abort reason when Abort first fires.
// If Abort already fired, fn runs immediately (synchronously) with the
// recorded reason. The returned disconnect removes fn; safe to call more
// than once, and a no-op once Abort has already fired.
func (r *Registry) Listen(fn func(reason error)) (disconnect func()) {
	r.mu.Lock()
	if r.fired {
		reason := r.reason
		r.mu.Unlock()
		fn(reason)
		return func() {}
	}
	id := r.nextID
	r.nextID++
	r.closers[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.closers, id)
		r.mu.Unlock()
	}
}

// Abort fires reason to every currently registered listener, at most once.
func (r *Registry) Abort(reason error) {
	r.mu.Lock()
	if r.fired {
		r.mu.Unlock()
		return
	}
	r.fired = true
	r.reason = reason
	closers := r.closers
	r.closers = make(map[uint64]func(error))
	r.mu.Unlock()

	for _, fn := range closers {
		fn(reason)
	}
}

// Result is a settled future's outcome: exactly one of Value (when Err is
// nil) or Err is meaningful.
type Result[T any] struct {
	Value T
	Err   error
}

// CancellableFuture wraps fut in a registry listener: the returned channel
// receives fut's own result, or a Result carrying the registry's abort
// reason as Err, whichever happens first. Either way the listener
// registered on reg is disconnected before the result is delivered, so a
// future that settles long before any abort doesn't pin a closure in the
// registry.
func CancellableFuture[T any](reg *Registry, fut <-chan Result[T]) <-chan Result[T] {
	out := make(chan Result[T], 1)
	abortCh := make(chan error, 1)
	disconnect := reg.Listen(func(reason error) {
		select {
		case abortCh <- reason:
		default:
		}
	})

	go func() {
		defer disconnect()
		select {
		case r := <-fut:
			out <- r
		case reason := <-abortCh:
			var zero T
			out <- Result[T]{Value: zero, Err: reason}
		}
	}()

	return out
}

// nextOutcome bundles Subsequent.Next's two return values so they can
// travel through a single Result channel.
type nextOutcome struct {
	result *SubsequentResult
	ok     bool
}

// CancellableSequence wraps a Subsequent so each Next call is itself a
// cancellable_future against reg: Return and Throw proxy straight through,
// since they are the registry's own abort path, not something to race
// against it.
type CancellableSequence struct {
	reg *Registry
	seq Subsequent
}

// NewCancellableSequence wraps seq so its Next races the registry's abort.
func NewCancellableSequence(reg *Registry, seq Subsequent) *CancellableSequence {
	return &CancellableSequence{reg: reg, seq: seq}
}

func (c *CancellableSequence) Next(ctx context.Context) (*SubsequentResult, bool, error) {
	fut := make(chan Result[nextOutcome], 1)
	go func() {
		result, ok, err := c.seq.Next(ctx)
		fut <- Result[nextOutcome]{Value: nextOutcome{result: result, ok: ok}, Err: err}
	}()

	r := <-CancellableFuture(c.reg, fut)
	if r.Err != nil {
		return nil, false, r.Err
	}
	return r.Value.result, r.Value.ok, nil
}

func (c *CancellableSequence) Return(ctx context.Context) error {
	return c.seq.Return(ctx)
}

func (c *CancellableSequence) Throw(ctx context.Context, err error) error {
	return c.seq.Throw(ctx, err)
}
