package download

import (
	"context"
	"errors"

	"golang.org/x/sync/semaphore"

	"github.com/hackclub/slack-emoji-dl/internal/model"
)

// ErrInvalidConcurrency is returned when a concurrency limit is not positive.
var ErrInvalidConcurrency = errors.New("concurrency limit must be positive")

// Budget limits how many downloads run at the same time.
//
// A Budget is created once per run and handed to every executor that
// should share it; there is no package-level instance, so independent runs
// never interfere.
type Budget struct {
	sem      *semaphore.Weighted
	capacity int
}

// NewBudget creates a Budget allowing n concurrent downloads.
func NewBudget(n int) (*Budget, error) {
	if n <= 0 {
		return nil, ErrInvalidConcurrency
	}
	return &Budget{sem: semaphore.NewWeighted(int64(n)), capacity: n}, nil
}

// Capacity returns the maximum number of concurrent downloads.
func (b *Budget) Capacity() int {
	return b.capacity
}

// Run executes fn while holding one permit.
//
// The permit is released when fn returns, whatever the outcome. If ctx is
// done before a permit frees up, fn is not called and a KindCanceled
// error is returned.
func (b *Budget) Run(ctx context.Context, fn func(context.Context) (int64, error)) (int64, error) {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return 0, &model.DownloadError{Kind: model.KindCanceled, Err: err}
	}
	defer b.sem.Release(1)

	return fn(ctx)
}
