package queue

import (
	"context"
	"testing"
	"time"
)

func TestMemoryQueue_PushPop(t *testing.T) {
	q := NewMemoryQueue(2)
	ctx := context.Background()

	if err := q.Push(ctx, map[string]string{"id": "doc-1"}); err != nil {
		t.Fatal(err)
	}
	n, err := q.Len(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Len() = %d, want 1", n)
	}

	var got map[string]string
	if err := q.Pop(ctx, &got); err != nil {
		t.Fatal(err)
	}
	if got["id"] != "doc-1" {
		t.Errorf("Pop() = %v", got)
	}
}

func TestMemoryQueue_PushBlocksWhenFull(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx := context.Background()
	if err := q.Push(ctx, "first"); err != nil {
		t.Fatal(err)
	}

	deadlineCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := q.Push(deadlineCtx, "second"); err != ErrFull {
		t.Errorf("Push() on full queue = %v, want ErrFull", err)
	}
}

func TestMemoryQueue_PopEmptyReturnsErrEmptyOnCancel(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var dst string
	if err := q.Pop(ctx, &dst); err != ErrEmpty {
		t.Errorf("Pop() on empty queue = %v, want ErrEmpty", err)
	}
}
