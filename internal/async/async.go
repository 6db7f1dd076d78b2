package async

import (
	"errors"
	"sync"
)

// ErrNilFuture is recorded for a nil entry passed to WaitAll.
var ErrNilFuture = errors.New("async: nil future")

// Result is the settled outcome of one Future. Exactly one of Value or Err
// is meaningful: a non-nil Err marks the slot as failed.
type Result[T any] struct {
	Value T
	Err   error
}

// Failed reports whether the slot holds an error.
func (r Result[T]) Failed() bool {
	return r.Err != nil
}

// Future is an operation that has already been started and will settle
// exactly once, either with a value or with an error.
type Future[T any] struct {
	done chan struct{}
	once sync.Once
	res  Result[T]
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Go starts fn on its own goroutine and returns a Future for its outcome.
// Timeouts and cancellation are the caller's business; fn is expected to
// honor whatever context it closes over.
func Go[T any](fn func() (T, error)) *Future[T] {
	f := newFuture[T]()
	go func() {
		v, err := fn()
		f.settle(Result[T]{Value: v, Err: err})
	}()
	return f
}

// Resolved returns a Future already settled with v.
func Resolved[T any](v T) *Future[T] {
	f := newFuture[T]()
	f.settle(Result[T]{Value: v})
	return f
}

// Rejected returns a Future already settled with err.
func Rejected[T any](err error) *Future[T] {
	f := newFuture[T]()
	f.settle(Result[T]{Err: err})
	return f
}

func (f *Future[T]) settle(r Result[T]) {
	f.once.Do(func() {
		f.res = r
		close(f.done)
	})
}

// Done returns a channel that is closed once the Future has settled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the Future settles and returns its value and error.
func (f *Future[T]) Wait() (T, error) {
	<-f.done
	return f.res.Value, f.res.Err
}

// settlement carries one observed outcome back to the WaitAll collector.
type settlement[T any] struct {
	index int
	res   Result[T]
}

// tracker is the per-call bookkeeping of WaitAll. It is only touched by the
// collector loop.
type tracker[T any] struct {
	settled int
	errored int
	slots   []Result[T]
}

// WaitAll waits until every future has settled and returns their results
// index-aligned with the input.
//
// A failed future does not fail the call: its slot carries the error and the
// caller inspects each slot. Only when every future has failed does WaitAll
// return an error, and that error is the one recorded in slot 0, whichever
// future happened to fail first. An empty input returns an empty slice.
func WaitAll[T any](futures []*Future[T]) ([]Result[T], error) {
	total := len(futures)
	if total == 0 {
		return []Result[T]{}, nil
	}

	st := &tracker[T]{slots: make([]Result[T], total)}
	ch := make(chan settlement[T], total)

	for i, f := range futures {
		if f == nil {
			ch <- settlement[T]{index: i, res: Result[T]{Err: ErrNilFuture}}
			continue
		}
		go func(i int, f *Future[T]) {
			v, err := f.Wait()
			ch <- settlement[T]{index: i, res: Result[T]{Value: v, Err: err}}
		}(i, f)
	}

	for s := range ch {
		if s.res.Failed() {
			st.errored++
		}
		st.slots[s.index] = s.res
		if st.errored == total {
			return nil, st.slots[0].Err
		}
		st.settled++
		if st.settled == total {
			return st.slots, nil
		}
	}
	// unreachable: ch is never closed
	return nil, nil
}
