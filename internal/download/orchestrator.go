package download

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hackclub/slack-emoji-dl/internal/model"
)

var (
	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("batch size must be positive")

	// ErrAlreadyRun is returned when RunAll is called on a finished Orchestrator.
	ErrAlreadyRun = errors.New("orchestrator has already run")
)

// State is the lifecycle state of an Orchestrator.
type State int

const (
	StateIdle State = iota
	StateSplitting
	StateRunningBatch
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSplitting:
		return "splitting"
	case StateRunningBatch:
		return "running"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// BatchRunner runs one batch. *Executor implements it.
type BatchRunner interface {
	RunBatch(ctx context.Context, tasks []model.Task) model.Summary
}

// BatchReport is delivered after each finished batch.
type BatchReport struct {
	// Index is the 0-based position of the batch.
	Index int

	// Total is the number of batches in the run.
	Total int

	// Completed is how many batches have finished, this one included.
	Completed int

	// Batch is the summary of this batch alone.
	Batch model.Summary

	// Cumulative sums every batch finished so far.
	Cumulative model.Summary
}

// Orchestrator splits a task list into batches and runs them.
//
// The lifecycle is Idle → Splitting → RunningBatch(i) → Done; an
// Orchestrator runs once.
type Orchestrator struct {
	runner    BatchRunner
	batchSize int
	pipeline  int
	onBatch   func(BatchReport)

	mu      sync.Mutex
	state   State
	current int
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithPipeline allows up to n batches in flight at once. The default, 1,
// runs batches strictly one after another.
func WithPipeline(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.pipeline = n
		}
	}
}

// WithBatchHook registers fn to receive a report after each batch.
// Calls are serialised.
func WithBatchHook(fn func(BatchReport)) OrchestratorOption {
	return func(o *Orchestrator) { o.onBatch = fn }
}

// NewOrchestrator creates an Orchestrator running batches of at most batchSize tasks.
func NewOrchestrator(runner BatchRunner, batchSize int, opts ...OrchestratorOption) (*Orchestrator, error) {
	if batchSize <= 0 {
		return nil, ErrInvalidBatchSize
	}

	o := &Orchestrator{
		runner:    runner,
		batchSize: batchSize,
		pipeline:  1,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Split partitions tasks into consecutive chunks of at most size tasks.
//
// The chunks preserve order and share the backing array of tasks. A
// non-positive size returns nil.
func Split(tasks []model.Task, size int) [][]model.Task {
	if size <= 0 || len(tasks) == 0 {
		return nil
	}

	batches := make([][]model.Task, 0, (len(tasks)+size-1)/size)
	for start := 0; start < len(tasks); start += size {
		end := min(start+size, len(tasks))
		batches = append(batches, tasks[start:end:end])
	}
	return batches
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// CurrentBatch returns the index of the most recently started batch.
func (o *Orchestrator) CurrentBatch() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// RunAll runs every task and returns the overall summary.
//
// Task failures never make RunAll fail; they are counted in the summary.
// FailedNames are concatenated in batch order.
func (o *Orchestrator) RunAll(ctx context.Context, tasks []model.Task) (model.Summary, error) {
	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return model.Summary{}, ErrAlreadyRun
	}
	o.state = StateSplitting
	o.mu.Unlock()

	batches := Split(tasks, o.batchSize)

	var results []model.Summary
	if o.pipeline <= 1 {
		results = o.runSequential(ctx, batches)
	} else {
		results = o.runPipelined(ctx, batches)
	}

	var total model.Summary
	for _, s := range results {
		total.Merge(s)
	}

	o.mu.Lock()
	o.state = StateDone
	o.mu.Unlock()

	return total, nil
}

func (o *Orchestrator) runSequential(ctx context.Context, batches [][]model.Task) []model.Summary {
	results := make([]model.Summary, len(batches))
	var cumulative model.Summary

	for i, batch := range batches {
		o.start(i)

		results[i] = o.runner.RunBatch(ctx, batch)
		cumulative.Merge(results[i])

		o.report(BatchReport{
			Index:      i,
			Total:      len(batches),
			Completed:  i + 1,
			Batch:      results[i],
			Cumulative: cumulative.Clone(),
		})
	}

	return results
}

func (o *Orchestrator) runPipelined(ctx context.Context, batches [][]model.Task) []model.Summary {
	results := make([]model.Summary, len(batches))

	var (
		mu         sync.Mutex
		cumulative model.Summary
		completed  int
		g          errgroup.Group
	)
	g.SetLimit(o.pipeline)

	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			o.start(i)
			s := o.runner.RunBatch(ctx, batch)

			mu.Lock()
			defer mu.Unlock()

			results[i] = s
			cumulative.Merge(s)
			completed++
			o.report(BatchReport{
				Index:      i,
				Total:      len(batches),
				Completed:  completed,
				Batch:      s,
				Cumulative: cumulative.Clone(),
			})
			return nil
		})
	}
	g.Wait()

	return results
}

func (o *Orchestrator) start(i int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.state = StateRunningBatch
	if i > o.current {
		o.current = i
	}
}

func (o *Orchestrator) report(r BatchReport) {
	if o.onBatch != nil {
		o.onBatch(r)
	}
}
