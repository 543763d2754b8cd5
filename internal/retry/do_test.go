package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	errs "git.home.luguber.info/inful/docsforge/internal/errors"
)

func fastPolicy(maxRetries int) Policy {
	return Policy{Mode: ModeFixed, Initial: time.Millisecond, Max: time.Millisecond, MaxRetries: maxRetries}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), func(context.Context) error {
		calls++
		if calls < 3 {
			return errs.SyncError("app1", errors.New("connection refused"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoGivesUpAfterMaxRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(2), func(context.Context) error {
		calls++
		return errs.SyncError("app1", errors.New("connection refused"))
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Fatalf("expected initial attempt plus 2 retries, got %d calls", calls)
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	calls := 0
	fatal := errors.New("bad config")
	err := Do(context.Background(), fastPolicy(5), func(context.Context) error {
		calls++
		return fatal
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("expected the original error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("non-retryable error should not be retried, got %d calls", calls)
	}
}

func TestDoHonorsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	slow := Policy{Mode: ModeFixed, Initial: time.Minute, Max: time.Minute, MaxRetries: 5}
	err := Do(ctx, slow, func(context.Context) error {
		calls++
		cancel()
		return errs.SyncError("app1", errors.New("connection refused"))
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("canceled context should stop retries, got %d calls", calls)
	}
}
