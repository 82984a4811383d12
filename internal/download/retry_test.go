package download

import (
	"context"
	"testing"
	"time"

	"github.com/hackclub/slack-emoji-dl/internal/model"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		name     string
		cooldown time.Duration
		exponent float64
		failures int
		want     time.Duration
	}{
		{"first retry", 200 * time.Millisecond, 4, 1, 200 * time.Millisecond},
		{"second retry", 200 * time.Millisecond, 4, 2, 800 * time.Millisecond},
		{"third retry", 200 * time.Millisecond, 4, 3, 3200 * time.Millisecond},
		{"constant exponent", time.Second, 1, 5, time.Second},
		{"zero cooldown uses floor", 0, 4, 3, MinBackoff},
		{"zero failures treated as one", 200 * time.Millisecond, 4, 0, 200 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExponentialBackoff(tt.cooldown, tt.exponent)(tt.failures)
			if got != tt.want {
				t.Errorf("backoff(%d) = %v, want %v", tt.failures, got, tt.want)
			}
		})
	}
}

func TestFixedBackoff(t *testing.T) {
	if got := FixedBackoff(0)(3); got != MinBackoff {
		t.Errorf("FixedBackoff(0) = %v, want %v", got, MinBackoff)
	}
	if got := FixedBackoff(time.Second)(1); got != time.Second {
		t.Errorf("FixedBackoff(1s) = %v", got)
	}
}

func TestRetrier_AttemptBound(t *testing.T) {
	tests := []struct {
		name       string
		maxRetries int
		err        error
		wantCalls  int
	}{
		{"retryable, no retries", 0, model.BadStatus(503), 1},
		{"retryable, three retries", 3, model.BadStatus(503), 4},
		{"transport, two retries", 2, model.TransportError(errBoom), 3},
		{"too many requests", 1, model.BadStatus(429), 2},
		{"not found is final", 5, model.BadStatus(404), 1},
		{"io is final", 5, model.IOError(errBoom), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var delays []time.Duration
			r := &Retrier{
				MaxRetries: tt.maxRetries,
				Backoff:    ExponentialBackoff(time.Second, 2),
				Sleep: func(ctx context.Context, d time.Duration) error {
					delays = append(delays, d)
					return nil
				},
			}

			calls := 0
			outcome := r.Attempt(context.Background(), model.Task{Name: "x"}, func(context.Context) (int64, error) {
				calls++
				return 0, tt.err
			})

			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if outcome.Status != model.StatusFailed || outcome.Attempts != tt.wantCalls {
				t.Errorf("outcome = %+v", outcome)
			}
			if len(delays) != tt.wantCalls-1 {
				t.Errorf("slept %d times, want %d", len(delays), tt.wantCalls-1)
			}
			for i, d := range delays {
				if want := time.Second << i; d != want {
					t.Errorf("delay %d = %v, want %v", i, d, want)
				}
			}
		})
	}
}

func TestRetrier_SucceedsAfterRetries(t *testing.T) {
	var retried []int
	r := NewRetrier(3, FixedBackoff(0))
	r.Sleep = noSleep
	r.OnRetry = func(task model.Task, failures int, err error, delay time.Duration) {
		retried = append(retried, failures)
	}

	calls := 0
	outcome := r.Attempt(context.Background(), model.Task{Name: "x"}, func(context.Context) (int64, error) {
		calls++
		if calls < 3 {
			return 0, model.BadStatus(500)
		}
		return 42, nil
	})

	if outcome.Status != model.StatusSuccess || outcome.Bytes != 42 || outcome.Attempts != 3 {
		t.Errorf("outcome = %+v, want success after 3 attempts", outcome)
	}
	if len(retried) != 2 || retried[0] != 1 || retried[1] != 2 {
		t.Errorf("OnRetry failures = %v, want [1 2]", retried)
	}
}

func TestRetrier_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Retrier{
		MaxRetries: 5,
		Backoff:    FixedBackoff(time.Hour),
		Sleep:      SleepContext,
	}

	calls := 0
	outcome := r.Attempt(ctx, model.Task{Name: "x"}, func(context.Context) (int64, error) {
		calls++
		cancel()
		return 0, model.BadStatus(502)
	})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if outcome.Status != model.StatusFailed || outcome.Kind != model.KindCanceled {
		t.Errorf("outcome = %+v, want failed with canceled kind", outcome)
	}
}

func TestSleepContext(t *testing.T) {
	if err := SleepContext(context.Background(), time.Millisecond); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := SleepContext(ctx, time.Hour); err == nil {
		t.Error("expected an error for a cancelled context")
	}
}
