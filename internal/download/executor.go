package download

import (
	"context"

	"golang.org/x/sync/errgroup"

	ioutils "github.com/hackclub/slack-emoji-dl/internal/io"
	"github.com/hackclub/slack-emoji-dl/internal/model"
)

// SkipReasonExists is the Outcome.Reason of tasks skipped by ExistenceFilter.
const SkipReasonExists = "exists"

// Fetcher downloads one URL to a destination path.
//
// checks run against the fully written temporary file and must pass before
// destPath is replaced. *http.Client from internal/http satisfies it.
type Fetcher interface {
	DownloadFile(ctx context.Context, url, destPath string, onProgress func(written, total int64), checks ...ioutils.CheckFunc) (int64, error)
}

// VerifyFunc checks a freshly downloaded file; a non-nil error rejects it.
type VerifyFunc func(path string) error

// Executor runs one batch of tasks with bounded concurrency.
//
// Each task goes through the filter, then the retrier, and every single
// download attempt holds one permit of the shared Budget. A failing task
// never cancels its siblings.
type Executor struct {
	fetcher   Fetcher
	budget    *Budget
	retrier   *Retrier
	filter    Filter
	verify    VerifyFunc
	onOutcome func(model.Outcome)
	onBytes   func(delta int64)
	limit     int
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithRetrier sets the retry policy. Without it failed downloads are not retried.
func WithRetrier(r *Retrier) ExecutorOption {
	return func(e *Executor) { e.retrier = r }
}

// WithFilter sets the skip filter.
func WithFilter(f Filter) ExecutorOption {
	return func(e *Executor) { e.filter = f }
}

// WithVerifier checks each downloaded file before it replaces the
// destination. Rejected downloads are discarded, any previous file is kept
// and the task fails with model.KindInvalid.
func WithVerifier(v VerifyFunc) ExecutorOption {
	return func(e *Executor) { e.verify = v }
}

// WithOutcomeHook registers fn to receive each outcome as soon as it is known.
//
// fn is called from many goroutines at once and must be safe for
// concurrent use.
func WithOutcomeHook(fn func(model.Outcome)) ExecutorOption {
	return func(e *Executor) { e.onOutcome = fn }
}

// WithByteProgress reports body bytes as they arrive.
//
// fn receives deltas. Bytes of an attempt that ends in failure are taken
// back with a negative delta, so the running total only ever settles on
// bytes of successful downloads. fn must be safe for concurrent use.
func WithByteProgress(fn func(delta int64)) ExecutorOption {
	return func(e *Executor) { e.onBytes = fn }
}

// NewExecutor creates an Executor downloading through fetcher and limited by budget.
func NewExecutor(fetcher Fetcher, budget *Budget, opts ...ExecutorOption) *Executor {
	e := &Executor{
		fetcher: fetcher,
		budget:  budget,
		retrier: &Retrier{MaxRetries: 0},
		limit:   budget.Capacity(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunBatch downloads all tasks and returns their summary.
//
// At most Budget.Capacity() downloads run at once; the remaining tasks
// wait and start as slots free up. RunBatch returns only after every task
// has an outcome, so Attempted always equals len(tasks). FailedNames
// follow the order of tasks, not completion order.
func (e *Executor) RunBatch(ctx context.Context, tasks []model.Task) model.Summary {
	outcomes := make([]model.Outcome, len(tasks))

	var g errgroup.Group
	g.SetLimit(e.limit)

	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			outcome := e.runTask(ctx, task)
			outcomes[i] = outcome
			if e.onOutcome != nil {
				e.onOutcome(outcome)
			}
			return nil // failures are recorded, never propagated
		})
	}
	g.Wait()

	var summary model.Summary
	for _, o := range outcomes {
		summary.Record(o)
	}
	return summary
}

// runTask produces the outcome of a single task.
func (e *Executor) runTask(ctx context.Context, task model.Task) model.Outcome {
	if e.filter != nil && e.filter.ShouldSkip(task.Path) {
		return model.Skipped(task, SkipReasonExists)
	}

	return e.retrier.Attempt(ctx, task, func(ctx context.Context) (int64, error) {
		return e.budget.Run(ctx, func(ctx context.Context) (int64, error) {
			return e.download(ctx, task)
		})
	})
}

// download performs one attempt and verifies the result.
func (e *Executor) download(ctx context.Context, task model.Task) (int64, error) {
	var checks []ioutils.CheckFunc
	if e.verify != nil {
		checks = append(checks, func(tmpPath string, _ int64) error {
			if err := e.verify(tmpPath); err != nil {
				return model.InvalidError(err)
			}
			return nil
		})
	}

	if e.onBytes == nil {
		return e.fetcher.DownloadFile(ctx, task.URL, task.Path, nil, checks...)
	}

	// Progress callbacks come from the goroutine running this attempt.
	var reported int64
	onProgress := func(written, _ int64) {
		e.onBytes(written - reported)
		reported = written
	}

	n, err := e.fetcher.DownloadFile(ctx, task.URL, task.Path, onProgress, checks...)
	if err != nil {
		if reported != 0 {
			e.onBytes(-reported)
		}
		return n, err
	}
	if n != reported {
		e.onBytes(n - reported)
	}
	return n, nil
}
