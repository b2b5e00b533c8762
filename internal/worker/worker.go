// Package worker implements the shared worker-loop primitive described in
// §5: a bounded inbound queue, a suspension wait of up to 100ms, and a
// periodic tick, plus errgroup-based fail-fast supervision across workers.
package worker

import (
	"context"
	"time"

	"github.com/muonpi/clusterproc/internal/timeutil"
)

// Loop drives a single worker's suspend/drain/tick cycle until ctx is
// cancelled. It suspends on queue for up to pollWait; each received item is
// passed to onItem; whenever pollWait elapses (whether or not an item
// arrived in that interval) onTick runs. onFlush runs once after ctx is
// cancelled, before Loop returns, so a worker can perform a terminal flush
// (e.g. the recorder's final snapshot) while it still owns its state.
func Loop[T any](ctx context.Context, clock timeutil.Clock, queue <-chan T, pollWait time.Duration, onItem func(T), onTick func(), onFlush func()) {
	ticker := clock.NewTicker(pollWait)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			drain(queue, onItem)
			if onFlush != nil {
				onFlush()
			}
			return
		case item, ok := <-queue:
			if !ok {
				if onFlush != nil {
					onFlush()
				}
				return
			}
			onItem(item)
		case <-ticker.C():
			onTick()
		}
	}
}

// drain consumes any items already buffered in queue without blocking, so a
// cancelled worker processes what it already accepted before flushing.
func drain[T any](queue <-chan T, onItem func(T)) {
	for {
		select {
		case item, ok := <-queue:
			if !ok {
				return
			}
			onItem(item)
		default:
			return
		}
	}
}
