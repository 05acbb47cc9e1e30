// Package stream provides lazy, pull-based, single-pass streams and the
// operators the pipeline engine composes between steps.
//
// Streams are forward-only: no work happens until values are pulled via
// Collect, Drain, or ForEach, and each stage pulls from the previous one
// on demand. Every operator preserves arrival order, including
// OrderedParallel, which fans items out to a bounded worker pool but
// re-emits results in input order.
//
// # Operators
//
// Synchronous (single-goroutine):
//
//   - Map: transform each value, one in-flight item at a time
//   - Tap: side-effect without altering the value (progress counting)
//   - Take: bounded prefix (preview truncation)
//   - Chunk: group values into fixed-size slices
//   - Lookahead: report the first value to an observer, then re-emit it
//   - Guard: stop the stream when a polled check fires
//
// Concurrent:
//
//   - OrderedParallel: worker-pool map with input-order results and a
//     bounded in-flight window
//
// # Usage
//
//	src := stream.FromSlice([]int{1, 2, 3, 4, 5})
//	doubled := stream.Map(src, func(_ context.Context, n int) (int, error) {
//	    return n * 2, nil
//	})
//	results, _ := stream.Collect(ctx, doubled)
package stream
