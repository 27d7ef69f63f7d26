package connectors

import (
	"context"
	"sync"
	"time"

	"newsdesk/types"
)

// ManualQueue holds candidates submitted by editors until the next intake run.
type ManualQueue struct {
	mu    sync.Mutex
	items []types.RawCandidate
}

func NewManualQueue() *ManualQueue {
	return &ManualQueue{}
}

func (q *ManualQueue) Name() string { return "manual" }

// Submit queues a candidate for the next intake run.
func (q *ManualQueue) Submit(c types.RawCandidate) {
	c.DiscoveredFrom = types.SourceManual
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, c)
}

// Fetch drains the queue; since is ignored because every queued item is new.
func (q *ManualQueue) Fetch(_ context.Context, _ time.Time) ([]types.RawCandidate, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out, nil
}

// Len reports how many candidates are queued.
func (q *ManualQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
