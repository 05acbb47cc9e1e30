package stream

import "context"

// Map transforms each value using fn, strictly in arrival order with a
// single in-flight item. This is how plain item-to-item functions are
// promoted into lazy per-item transforms.
func Map[I, O any](p *Pipeline[I], fn func(context.Context, I) (O, error)) *Pipeline[O] {
	return &Pipeline[O]{
		create: func(ctx context.Context) Iterator[O] {
			return &mapIter[I, O]{source: p.create(ctx), fn: fn}
		},
	}
}

// Tap calls fn as a side-effect for each value, then passes the value
// through unchanged. Item order and count are preserved.
func Tap[T any](p *Pipeline[T], fn func(context.Context, T) error) *Pipeline[T] {
	return &Pipeline[T]{
		create: func(ctx context.Context) Iterator[T] {
			return &tapIter[T]{source: p.create(ctx), fn: fn}
		},
	}
}

// Take yields at most n values, then stops without pulling further
// upstream values.
func Take[T any](p *Pipeline[T], n int) *Pipeline[T] {
	return &Pipeline[T]{
		create: func(ctx context.Context) Iterator[T] {
			return &takeIter[T]{source: p.create(ctx), remaining: n}
		},
	}
}

// Chunk groups values into slices of up to size elements. The last chunk
// may be shorter.
func Chunk[T any](p *Pipeline[T], size int) *Pipeline[[]T] {
	if size <= 0 {
		size = 1
	}
	return &Pipeline[[]T]{
		create: func(ctx context.Context) Iterator[[]T] {
			return &chunkIter[T]{source: p.create(ctx), size: size}
		},
	}
}

// Lookahead pulls the first value eagerly on the first downstream pull,
// reports it to observe, then re-emits it unchanged as the first value of
// the stream. The downstream consumer sees every value exactly once.
// observe receives (zero, false) when the stream is empty.
func Lookahead[T any](p *Pipeline[T], observe func(first T, ok bool)) *Pipeline[T] {
	return &Pipeline[T]{
		create: func(ctx context.Context) Iterator[T] {
			return &lookaheadIter[T]{source: p.create(ctx), observe: observe}
		},
	}
}

// Guard polls check before yielding each value. When check returns true
// the stream ends immediately: no further values are pulled from
// upstream, and onStop (if non-nil) is invoked once.
func Guard[T any](p *Pipeline[T], check func() bool, onStop func()) *Pipeline[T] {
	return &Pipeline[T]{
		create: func(ctx context.Context) Iterator[T] {
			return &guardIter[T]{source: p.create(ctx), check: check, onStop: onStop}
		},
	}
}

// Resume builds a pipeline that re-emits an already-pulled first value
// (when ok) and then continues pulling from rest. This is the re-attach
// half of a single-item lookahead: pull one value, observe it, Resume.
func Resume[T any](first T, ok bool, rest Iterator[T]) *Pipeline[T] {
	return &Pipeline[T]{
		create: func(_ context.Context) Iterator[T] {
			return &resumeIter[T]{first: first, hasFirst: ok, rest: rest}
		},
	}
}

// --- Iterator implementations ---

type mapIter[I, O any] struct {
	source Iterator[I]
	fn     func(context.Context, I) (O, error)
}

func (it *mapIter[I, O]) Next(ctx context.Context) (O, bool, error) {
	val, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		var zero O
		return zero, false, err
	}
	out, err := it.fn(ctx, val)
	if err != nil {
		var zero O
		return zero, false, err
	}
	return out, true, nil
}

func (it *mapIter[I, O]) Close() error { return it.source.Close() }

type tapIter[T any] struct {
	source Iterator[T]
	fn     func(context.Context, T) error
}

func (it *tapIter[T]) Next(ctx context.Context) (T, bool, error) {
	val, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		return val, ok, err
	}
	if err := it.fn(ctx, val); err != nil {
		var zero T
		return zero, false, err
	}
	return val, true, nil
}

func (it *tapIter[T]) Close() error { return it.source.Close() }

type takeIter[T any] struct {
	source    Iterator[T]
	remaining int
}

func (it *takeIter[T]) Next(ctx context.Context) (T, bool, error) {
	if it.remaining <= 0 {
		var zero T
		return zero, false, nil
	}
	val, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		var zero T
		return zero, false, err
	}
	it.remaining--
	return val, true, nil
}

func (it *takeIter[T]) Close() error { return it.source.Close() }

type chunkIter[T any] struct {
	source Iterator[T]
	size   int
	done   bool
	err    error
}

func (it *chunkIter[T]) Next(ctx context.Context) ([]T, bool, error) {
	if it.done {
		err := it.err
		it.err = nil
		return nil, false, err
	}
	var chunk []T
	for len(chunk) < it.size {
		val, ok, err := it.source.Next(ctx)
		if err != nil {
			if len(chunk) > 0 {
				// Surface the partial chunk; the error follows on the next pull.
				it.done = true
				it.err = err
				return chunk, true, nil
			}
			it.done = true
			return nil, false, err
		}
		if !ok {
			it.done = true
			if len(chunk) > 0 {
				return chunk, true, nil
			}
			return nil, false, nil
		}
		chunk = append(chunk, val)
	}
	return chunk, true, nil
}

func (it *chunkIter[T]) Close() error { return it.source.Close() }

type lookaheadIter[T any] struct {
	source  Iterator[T]
	observe func(first T, ok bool)
	started bool
}

func (it *lookaheadIter[T]) Next(ctx context.Context) (T, bool, error) {
	if !it.started {
		it.started = true
		val, ok, err := it.source.Next(ctx)
		if err != nil {
			var zero T
			return zero, false, err
		}
		// The observed value is the same one handed downstream, so the
		// consumer never skips it.
		it.observe(val, ok)
		return val, ok, nil
	}
	return it.source.Next(ctx)
}

func (it *lookaheadIter[T]) Close() error { return it.source.Close() }

type guardIter[T any] struct {
	source  Iterator[T]
	check   func() bool
	onStop  func()
	stopped bool
}

func (it *guardIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if it.stopped {
		return zero, false, nil
	}
	if it.check() {
		it.stopped = true
		if it.onStop != nil {
			it.onStop()
		}
		return zero, false, nil
	}
	return it.source.Next(ctx)
}

func (it *guardIter[T]) Close() error { return it.source.Close() }

type resumeIter[T any] struct {
	first    T
	hasFirst bool
	rest     Iterator[T]
	done     bool
}

func (it *resumeIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if it.done {
		return zero, false, nil
	}
	if it.hasFirst {
		it.hasFirst = false
		return it.first, true, nil
	}
	val, ok, err := it.rest.Next(ctx)
	if err != nil || !ok {
		it.done = true
	}
	return val, ok, err
}

func (it *resumeIter[T]) Close() error { return it.rest.Close() }
