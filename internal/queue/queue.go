// Package queue provides a bounded, blocking-with-deadline work queue for
// handing documents between the Ingestion Gateway, the Workflow Engine, and
// the long-lived actors (Duplicate Hunter, Accuracy Guardian). Per §5,
// producers block with a deadline when a queue is full rather than growing
// it unbounded.
package queue

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrFull is returned by Push when the queue is at capacity and the
// deadline elapses before room frees up.
var ErrFull = errors.New("queue: full")

// ErrEmpty is returned by Pop when ctx is done before an item arrives.
var ErrEmpty = errors.New("queue: empty")

// Queue is a named, bounded FIFO of JSON-encodable items.
type Queue interface {
	// Push enqueues item, blocking until there is room or ctx is done
	// (cancelled or past its deadline), returning ErrFull in the latter case.
	Push(ctx context.Context, item any) error
	// Pop blocks until an item is available or ctx is done, decoding the
	// item into dst (a pointer). Returns ErrEmpty if ctx is done first.
	Pop(ctx context.Context, dst any) error
	// Len reports the current queue depth.
	Len(ctx context.Context) (int64, error)
}

func encode(item any) ([]byte, error) {
	return json.Marshal(item)
}

func decode(data []byte, dst any) error {
	return json.Unmarshal(data, dst)
}
