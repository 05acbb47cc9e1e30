package stream

import (
	"context"
	"sync"
)

// inflightFactor bounds the number of chunks admitted into an
// OrderedParallel stage to inflightFactor*workers.
const inflightFactor = 2

type chunkTask[I any] struct {
	seq   int
	items []I
}

type chunkDone[O any] struct {
	seq   int
	items []O
	err   error
}

// OrderedParallel applies fn to each value concurrently with a fixed pool
// of workers, yielding results downstream in the order the inputs arrived,
// not in completion order.
//
// Values are grouped into chunks of chunkSize before dispatch to amortize
// per-task overhead; chunking does not affect output ordering. The number
// of in-flight chunks is bounded to a small multiple of workers, so the
// stage never buffers the whole upstream stream. The first worker error
// aborts the stage and propagates downstream; remaining in-flight work is
// cancelled.
func OrderedParallel[I, O any](p *Pipeline[I], workers, chunkSize int, fn func(context.Context, I) (O, error)) *Pipeline[O] {
	if workers <= 0 {
		workers = 1
	}
	if chunkSize <= 0 {
		chunkSize = 1
	}
	return &Pipeline[O]{
		create: func(ctx context.Context) Iterator[O] {
			source := p.create(ctx)
			stageCtx, cancel := context.WithCancel(ctx)

			in := make(chan chunkTask[I], workers)
			results := make(chan chunkDone[O], workers)
			out := make(chan result[O], workers)
			// Admission window: producer acquires a slot per chunk, the
			// reorderer releases it once the chunk has been emitted.
			window := make(chan struct{}, inflightFactor*workers)

			// Producer: pull from source, chunk, dispatch.
			go func() {
				defer close(in)
				seq := 0
				chunk := make([]I, 0, chunkSize)
				dispatch := func() bool {
					select {
					case window <- struct{}{}:
					case <-stageCtx.Done():
						return false
					}
					select {
					case in <- chunkTask[I]{seq: seq, items: chunk}:
					case <-stageCtx.Done():
						return false
					}
					seq++
					chunk = make([]I, 0, chunkSize)
					return true
				}
				for {
					val, ok, err := source.Next(stageCtx)
					if err != nil {
						select {
						case results <- chunkDone[O]{seq: seq, err: err}:
						case <-stageCtx.Done():
						}
						return
					}
					if !ok {
						if len(chunk) > 0 {
							dispatch()
						}
						return
					}
					chunk = append(chunk, val)
					if len(chunk) >= chunkSize {
						if !dispatch() {
							return
						}
					}
				}
			}()

			// Workers: process chunks, report tagged results.
			var wg sync.WaitGroup
			for range workers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for task := range in {
						outItems := make([]O, len(task.items))
						var taskErr error
						for i, item := range task.items {
							o, err := fn(stageCtx, item)
							if err != nil {
								taskErr = err
								break
							}
							outItems[i] = o
						}
						if taskErr != nil {
							select {
							case results <- chunkDone[O]{seq: task.seq, err: taskErr}:
							case <-stageCtx.Done():
							}
							cancel()
							return
						}
						select {
						case results <- chunkDone[O]{seq: task.seq, items: outItems}:
						case <-stageCtx.Done():
							return
						}
					}
				}()
			}

			go func() {
				wg.Wait()
				close(results)
			}()

			// Reorderer: emit chunks in sequence order.
			go func() {
				defer close(out)
				pending := make(map[int]chunkDone[O])
				next := 0
				emit := func(done chunkDone[O]) bool {
					if done.err != nil {
						select {
						case out <- result[O]{err: done.err}:
						case <-stageCtx.Done():
						}
						return false
					}
					for _, item := range done.items {
						select {
						case out <- result[O]{val: item, ok: true}:
						case <-stageCtx.Done():
							return false
						}
					}
					select {
					case <-window:
					default:
					}
					return true
				}
				for done := range results {
					if done.err != nil {
						emit(done)
						return
					}
					pending[done.seq] = done
					for {
						head, ok := pending[next]
						if !ok {
							break
						}
						delete(pending, next)
						next++
						if !emit(head) {
							return
						}
					}
				}
				// Flush any chunks that arrived after the producer stopped.
				for {
					head, ok := pending[next]
					if !ok {
						return
					}
					delete(pending, next)
					next++
					if !emit(head) {
						return
					}
				}
			}()

			return &channelIter[O]{
				ch: out,
				closer: func() error {
					cancel()
					return source.Close()
				},
			}
		},
	}
}
