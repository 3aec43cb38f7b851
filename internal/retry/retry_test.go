package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Factor:       2.0,
	}
}

func TestDo_Success(t *testing.T) {
	calls := 0
	result := Do(context.Background(), fastPolicy(3), func(ctx context.Context, attempt int) error {
		calls++
		return nil
	})

	if result.Err != nil {
		t.Errorf("expected no error, got %v", result.Err)
	}
	if result.Attempts != 1 || calls != 1 {
		t.Errorf("attempts=%d calls=%d, want 1/1", result.Attempts, calls)
	}
}

func TestDo_RetryThenSuccess(t *testing.T) {
	var seen []int
	result := Do(context.Background(), fastPolicy(5), func(ctx context.Context, attempt int) error {
		seen = append(seen, attempt)
		if attempt < 3 {
			return errors.New("transient")
		}
		return nil
	})

	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", result.Attempts)
	}
	if len(seen) != 3 || seen[0] != 1 || seen[2] != 3 {
		t.Errorf("attempt numbers = %v", seen)
	}
}

func TestDo_Exhausted(t *testing.T) {
	wantErr := errors.New("still failing")
	result := Do(context.Background(), fastPolicy(3), func(ctx context.Context, attempt int) error {
		return wantErr
	})
	if !errors.Is(result.Err, wantErr) || result.Attempts != 3 {
		t.Errorf("result = %+v", result)
	}
}

func TestDo_PermanentStops(t *testing.T) {
	wantErr := errors.New("bad token")
	calls := 0
	result := Do(context.Background(), fastPolicy(5), func(ctx context.Context, attempt int) error {
		calls++
		return Permanent(wantErr)
	})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !IsPermanent(result.Err) || !errors.Is(result.Err, wantErr) {
		t.Errorf("expected permanent wrapped error, got %v", result.Err)
	}
}

func TestDo_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := Policy{MaxAttempts: 5, InitialDelay: time.Hour, MaxDelay: time.Hour}

	result := Do(ctx, policy, func(ctx context.Context, attempt int) error {
		cancel()
		return errors.New("fail")
	})
	if !errors.Is(result.Err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", result.Err)
	}
	if result.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", result.Attempts)
	}
}

func TestDo_ZeroPolicyRunsOnce(t *testing.T) {
	calls := 0
	Do(context.Background(), Policy{}, func(ctx context.Context, attempt int) error {
		calls++
		return errors.New("x")
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestPermanentNil(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
	if IsPermanent(errors.New("x")) {
		t.Error("plain error reported as permanent")
	}
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{10, 30 * time.Second},
	}
	for _, tt := range tests {
		if got := Backoff(tt.attempt, time.Second, 30*time.Second, 2); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoffWithJitterBounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		got := BackoffWithJitter(2, time.Second, time.Minute, 2)
		if got < time.Second || got >= 3*time.Second {
			t.Fatalf("jittered delay %v out of [1s, 3s)", got)
		}
	}
}

func TestPolicyDelay(t *testing.T) {
	p := Policy{InitialDelay: 10 * time.Millisecond, MaxDelay: 40 * time.Millisecond, Factor: 2}
	if got := p.Delay(3); got != 40*time.Millisecond {
		t.Errorf("Delay(3) = %v", got)
	}
	if got := p.Delay(5); got != 40*time.Millisecond {
		t.Errorf("Delay(5) = %v, want capped", got)
	}
}

func TestSleep(t *testing.T) {
	if err := Sleep(context.Background(), time.Millisecond); err != nil {
		t.Errorf("Sleep: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep on canceled ctx = %v", err)
	}
}
