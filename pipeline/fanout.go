// ABOUTME: Segment worker fan-out/fan-in: one goroutine per segment bounded by a semaphore.
// ABOUTME: Workers return immutable partial Updates; a single-threaded reducer merges them after fan-in.
package pipeline

import (
	"context"
	"log"
	"runtime/debug"
	"sync"
)

// SegmentWorker transforms one segment into a partial Update. It must not
// depend on sibling segments' results and must tolerate re-execution: file
// outputs are written to paths derived from the segment ID, so a rerun
// overwrites idempotently.
type SegmentWorker func(ctx context.Context, seg Segment) Update

// forEachSegment dispatches fn once per segment with at most maxParallel
// workers in flight, then returns every partial Update in completion-slot
// order. One segment's failure or panic never aborts the batch: the worker's
// slot carries whatever partial result it produced (commonly an Update that
// leaves all fields of the segment unchanged).
func forEachSegment(ctx context.Context, segments []Segment, maxParallel int, fn SegmentWorker) []Update {
	if len(segments) == 0 {
		return nil
	}
	if maxParallel <= 0 {
		maxParallel = 4
	}

	semaphore := make(chan struct{}, maxParallel)
	updates := make([]Update, len(segments))
	var wg sync.WaitGroup

	for i, seg := range segments {
		wg.Add(1)
		go func(idx int, s Segment) {
			defer wg.Done()

			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
			case <-ctx.Done():
				return
			}

			updates[idx] = runWorker(ctx, s, fn)
		}(i, seg)
	}

	wg.Wait()
	return updates
}

// runWorker invokes fn with panic recovery. A panicking worker degrades to an
// empty Update for its segment rather than crashing the batch; the panic is a
// per-unit failure, never a pipeline-level error.
func runWorker(ctx context.Context, seg Segment, fn SegmentWorker) (u Update) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[fanout] worker panic on segment %d: %v\n%s", seg.ID, r, debug.Stack())
			u = Update{}
		}
	}()
	return fn(ctx, seg)
}

// reduce applies a batch of partial updates to the state one at a time.
// Updates from concurrent workers touch disjoint fields per segment, so the
// apply order does not change the result.
func reduce(st State, updates []Update) State {
	for _, u := range updates {
		st = st.Apply(u)
	}
	return st
}
