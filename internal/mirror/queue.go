package mirror

import (
	"sync"
	"sync/atomic"

	"solana-copy-trader/internal/observability"
)

const queueCapacity = 64

// assetQueues serializes work per asset: trades on the same mint run
// strictly in arrival order, trades on different mints run concurrently.
type assetQueues struct {
	mu     sync.Mutex
	queues map[string]chan func()
	wg     sync.WaitGroup
	closed bool
	depth  atomic.Int64
}

func newAssetQueues() *assetQueues {
	return &assetQueues{queues: make(map[string]chan func())}
}

// enqueue schedules a task on the asset's queue, spawning its worker on
// first use. Returns false when shutting down or when the queue is full.
func (q *assetQueues) enqueue(asset string, task func()) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	ch, ok := q.queues[asset]
	if !ok {
		ch = make(chan func(), queueCapacity)
		q.queues[asset] = ch
		q.wg.Add(1)
		go q.worker(ch)
	}
	q.mu.Unlock()

	select {
	case ch <- task:
		observability.UpdateQueueDepth(int(q.depth.Add(1)))
		return true
	default:
		return false
	}
}

func (q *assetQueues) worker(ch chan func()) {
	defer q.wg.Done()
	for task := range ch {
		task()
		observability.UpdateQueueDepth(int(q.depth.Add(-1)))
	}
}

// close stops accepting work, lets queued tasks drain and waits for the
// workers to exit.
func (q *assetQueues) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	for _, ch := range q.queues {
		close(ch)
	}
	q.mu.Unlock()
	q.wg.Wait()
}
