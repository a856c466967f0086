package queue

import (
	"context"
	"sync"
)

// MemoryQueue is an in-process OfflineQueue used by tests and local
// development. It mirrors the Redis list semantics, including the
// trim-by-count clear.
type MemoryQueue struct {
	mu    sync.Mutex
	lists map[string][][]byte
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{lists: make(map[string][][]byte)}
}

func (q *MemoryQueue) Enqueue(_ context.Context, userID string, payload []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	cp := make([]byte, len(payload))
	copy(cp, payload)
	q.lists[userID] = append(q.lists[userID], cp)
	return nil
}

func (q *MemoryQueue) DrainAll(_ context.Context, userID string) ([][]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	src := q.lists[userID]
	out := make([][]byte, len(src))
	copy(out, src)
	return out, nil
}

func (q *MemoryQueue) Clear(_ context.Context, userID string, count int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if count <= 0 {
		return nil
	}
	cur := q.lists[userID]
	if count >= len(cur) {
		delete(q.lists, userID)
		return nil
	}
	q.lists[userID] = cur[count:]
	return nil
}

// Len reports the number of queued entries for userID.
func (q *MemoryQueue) Len(userID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lists[userID])
}
