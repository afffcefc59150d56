package queue

import (
	"context"
)

// MemoryQueue is a channel-backed Queue for single-process use (tests,
// or a deployment with no Redis). Push blocks on a full buffered channel
// until ctx is done.
type MemoryQueue struct {
	ch chan []byte
}

// NewMemoryQueue returns a queue with room for capacity items. A
// non-positive capacity is treated as 1.
func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemoryQueue{ch: make(chan []byte, capacity)}
}

func (q *MemoryQueue) Push(ctx context.Context, item any) error {
	data, err := encode(item)
	if err != nil {
		return err
	}
	select {
	case q.ch <- data:
		return nil
	case <-ctx.Done():
		return ErrFull
	}
}

func (q *MemoryQueue) Pop(ctx context.Context, dst any) error {
	select {
	case data := <-q.ch:
		return decode(data, dst)
	case <-ctx.Done():
		return ErrEmpty
	}
}

func (q *MemoryQueue) Len(ctx context.Context) (int64, error) {
	return int64(len(q.ch)), nil
}
