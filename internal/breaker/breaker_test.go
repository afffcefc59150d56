package breaker

import (
	"errors"
	"testing"
	"time"
)

func TestBreaker_TripsAfterMaxFailures(t *testing.T) {
	b := New(Config{Name: "vision", MaxFailures: 2, OpenTimeout: 50 * time.Millisecond})
	boom := errors.New("boom")

	for i := 0; i < 2; i++ {
		if _, err := Do(b, func() (string, error) { return "", boom }); err != boom {
			t.Fatalf("call %d: got %v, want boom", i, err)
		}
	}

	if _, err := Do(b, func() (string, error) { return "ok", nil }); !errors.Is(err, ErrOpen) {
		t.Errorf("expected breaker open, got %v", err)
	}
	if b.State() != "open" {
		t.Errorf("State() = %q, want open", b.State())
	}
}

func TestBreaker_PassesThroughOnSuccess(t *testing.T) {
	b := New(Config{Name: "embedding", MaxFailures: 3, OpenTimeout: time.Second})
	got, err := Do(b, func() (int, error) { return 42, nil })
	if err != nil {
		t.Fatal(err)
	}
	if got != 42 {
		t.Errorf("Do() = %d", got)
	}
}

func TestBreaker_RecoversAfterOpenTimeout(t *testing.T) {
	b := New(Config{Name: "blobstore", MaxFailures: 1, OpenTimeout: 20 * time.Millisecond})
	boom := errors.New("boom")

	if _, err := Do(b, func() (string, error) { return "", boom }); err != boom {
		t.Fatal(err)
	}
	if b.State() != "open" {
		t.Fatalf("State() = %q, want open", b.State())
	}

	time.Sleep(30 * time.Millisecond)

	if _, err := Do(b, func() (string, error) { return "recovered", nil }); err != nil {
		t.Fatalf("expected half-open probe to succeed, got %v", err)
	}
	if b.State() != "closed" {
		t.Errorf("State() = %q, want closed after a successful probe", b.State())
	}
}
