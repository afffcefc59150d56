package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisQueue(t *testing.T, capacity int64) *RedisQueue {
	srv, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(srv.Close)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisQueue(client, "ingestion", capacity)
}

func TestRedisQueue_PushPop(t *testing.T) {
	q := newTestRedisQueue(t, 10)
	ctx := context.Background()

	if err := q.Push(ctx, map[string]string{"document_id": "doc-1"}); err != nil {
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
	if got["document_id"] != "doc-1" {
		t.Errorf("Pop() = %v", got)
	}
}

func TestRedisQueue_PushFullReturnsErrFull(t *testing.T) {
	q := newTestRedisQueue(t, 1)
	ctx := context.Background()
	if err := q.Push(ctx, "first"); err != nil {
		t.Fatal(err)
	}

	deadlineCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	err := q.Push(deadlineCtx, "second")
	if err == nil {
		t.Fatal("expected error pushing to a full queue")
	}
}

func TestRedisQueue_PopEmptyReturnsErrEmptyOnCancel(t *testing.T) {
	q := newTestRedisQueue(t, 10)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var dst string
	if err := q.Pop(ctx, &dst); err != ErrEmpty {
		t.Errorf("Pop() on empty queue = %v, want ErrEmpty", err)
	}
}
