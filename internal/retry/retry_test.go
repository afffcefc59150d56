package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDo_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{Timeout: time.Second, MaxRetries: 2, InitialBackoff: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{Timeout: time.Second, MaxRetries: 3, InitialBackoff: time.Millisecond}, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_ExhaustsRetryBudget(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := Do(context.Background(), Policy{Timeout: time.Second, MaxRetries: 2, InitialBackoff: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (1 attempt + 2 retries)", calls)
	}
}

func TestDo_PermanentErrorStopsImmediately(t *testing.T) {
	calls := 0
	boom := errors.New("unrecoverable")
	err := Do(context.Background(), Policy{Timeout: time.Second, MaxRetries: 5, InitialBackoff: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return PermanentError(boom)
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (permanent error should not retry)", calls)
	}
}

func TestDo_OnRetryCalledPerFailedAttempt(t *testing.T) {
	var notified []int
	calls := 0
	_ = Do(context.Background(), Policy{Timeout: time.Second, MaxRetries: 2, InitialBackoff: time.Millisecond}, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, func(attempt int, err error) {
		notified = append(notified, attempt)
	})
	if len(notified) != 2 {
		t.Fatalf("onRetry called %d times, want 2; got %v", len(notified), notified)
	}
}

func TestPolicies_CoverAllSteps(t *testing.T) {
	steps := []string{
		"ocr", "classify_extract", "register_gaps", "entity_resolution",
		"authority_graph_update", "embedding", "post_ingest_duplicate_check", "finalize",
	}
	for _, step := range steps {
		if _, ok := Policies[step]; !ok {
			t.Errorf("missing policy for step %q", step)
		}
	}
}
