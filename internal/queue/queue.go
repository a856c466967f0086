package queue

import "context"

// OfflineQueue is a per-recipient durable FIFO of serialized message
// payloads awaiting a first delivery attempt. Entries are appended
// while the recipient is unreachable and drained when they register.
//
// Clear removes only the first count entries, the ones a preceding
// DrainAll actually read. A payload appended between the read and the
// clear stays queued for the next drain instead of being lost.
type OfflineQueue interface {
	Enqueue(ctx context.Context, userID string, payload []byte) error
	DrainAll(ctx context.Context, userID string) ([][]byte, error)
	Clear(ctx context.Context, userID string, count int) error
}
