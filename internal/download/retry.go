package download

import (
	"context"
	"math"
	"time"

	"github.com/hackclub/slack-emoji-dl/internal/model"
)

// MinBackoff is the smallest delay ExponentialBackoff and FixedBackoff produce.
const MinBackoff = 10 * time.Millisecond

// BackoffFunc returns how long to wait after the given number of failed attempts (1-based).
type BackoffFunc func(failures int) time.Duration

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// AttemptFunc performs one download attempt.
type AttemptFunc func(ctx context.Context) (int64, error)

// ExponentialBackoff waits cooldown * exponent^(failures-1), but never less than MinBackoff.
//
// With the default settings (0.2s, 4.0) the delays are 0.2s, 0.8s, 3.2s, ...
func ExponentialBackoff(cooldown time.Duration, exponent float64) BackoffFunc {
	return func(failures int) time.Duration {
		if failures < 1 {
			failures = 1
		}
		d := time.Duration(float64(cooldown) * math.Pow(exponent, float64(failures-1)))
		if d < MinBackoff {
			return MinBackoff
		}
		return d
	}
}

// FixedBackoff waits d between attempts, but never less than MinBackoff.
func FixedBackoff(d time.Duration) BackoffFunc {
	if d < MinBackoff {
		d = MinBackoff
	}
	return func(int) time.Duration { return d }
}

// SleepContext is the default SleepFunc.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retrier runs an attempt function until it succeeds, fails permanently or
// runs out of retries.
//
// Retries are per task: the Retrier keeps no shared state, so one task's
// failures never delay another's.
type Retrier struct {
	// MaxRetries is the number of attempts allowed after the first one.
	MaxRetries int

	// Backoff computes the delay before each retry.
	Backoff BackoffFunc

	// Sleep waits between attempts; tests replace it to avoid real delays.
	Sleep SleepFunc

	// OnRetry, if set, is called before each wait.
	OnRetry func(task model.Task, failures int, err error, delay time.Duration)
}

// NewRetrier creates a Retrier with exponential backoff and real sleeping.
func NewRetrier(maxRetries int, backoff BackoffFunc) *Retrier {
	if backoff == nil {
		backoff = ExponentialBackoff(200*time.Millisecond, 4)
	}
	return &Retrier{
		MaxRetries: maxRetries,
		Backoff:    backoff,
		Sleep:      SleepContext,
	}
}

// Attempt calls fn for task until it succeeds or gives up.
//
// A success returns immediately. A non-retryable error (see
// model.IsRetryable) fails the task at once; a retryable one is retried
// after a backoff delay until MaxRetries+1 attempts have been made. The
// returned outcome records the number of attempts and the last error.
func (r *Retrier) Attempt(ctx context.Context, task model.Task, fn AttemptFunc) model.Outcome {
	sleep := r.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	backoff := r.Backoff
	if backoff == nil {
		backoff = FixedBackoff(MinBackoff)
	}

	attempts := 0
	for {
		attempts++

		n, err := fn(ctx)
		if err == nil {
			return model.Success(task, n, attempts)
		}

		if !model.IsRetryable(err) || attempts > r.MaxRetries {
			return model.Failed(task, err, attempts)
		}

		delay := backoff(attempts)
		if r.OnRetry != nil {
			r.OnRetry(task, attempts, err, delay)
		}

		if serr := sleep(ctx, delay); serr != nil {
			return model.Failed(task, &model.DownloadError{Kind: model.KindCanceled, Err: serr}, attempts)
		}
	}
}
