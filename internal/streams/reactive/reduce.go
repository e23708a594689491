package reactive

import "context"

// Reduce folds f over in starting from init, emitting the running
// accumulator after each element — a scan, not a single final value, since
// the pipeline is long-lived and has no natural end until in closes.
func Reduce[T, A any](ctx context.Context, in <-chan T, init A,
	f func(A, T) A) <-chan A {

	out := make(chan A)
	acc := init

	go func() {
		defer close(out)

		for {
			select {
			case v, ok := <-in:
				if !ok {
					return
				}
				acc = f(acc, v)
				select {
				case out <- acc:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// ReduceAsync behaves like Reduce but applies f on a single background
// worker goroutine, fed through a one-element buffer, so the
// fold itself stays sequential even though callers don't block the
// pipeline's read loop while f runs.
func ReduceAsync[T, A any](ctx context.Context, in <-chan T, init A,
	f func(A, T) A) <-chan A {

	work := make(chan T, 1)
	out := make(chan A)

	go func() {
		defer close(work)
		for {
			select {
			case v, ok := <-in:
				if !ok {
					return
				}
				select {
				case work <- v:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		defer close(out)
		acc := init
		for {
			select {
			case v, ok := <-work:
				if !ok {
					return
				}
				acc = f(acc, v)
				select {
				case out <- acc:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
