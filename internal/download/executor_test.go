package download

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/hackclub/slack-emoji-dl/internal/model"
)

func TestExecutor_RespectsBudget(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.delay = 5 * time.Millisecond
	tasks := makeTasks(t.TempDir(), numberedNames(40)...)

	exec := NewExecutor(fetcher, mustBudget(4))
	summary := exec.RunBatch(context.Background(), tasks)

	if summary.Succeeded != 40 {
		t.Fatalf("Succeeded = %d, want 40 (%+v)", summary.Succeeded, summary)
	}
	if fetcher.highWater > 4 {
		t.Errorf("%d downloads ran at once, budget is 4", fetcher.highWater)
	}
}

func TestExecutor_SharedBudgetAcrossPipelinedBatches(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.delay = 2 * time.Millisecond
	tasks := makeTasks(t.TempDir(), numberedNames(60)...)

	exec := NewExecutor(fetcher, mustBudget(3))
	orch, err := NewOrchestrator(exec, 10, WithPipeline(4))
	if err != nil {
		t.Fatal(err)
	}

	summary, err := orch.RunAll(context.Background(), tasks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Succeeded != 60 {
		t.Errorf("Succeeded = %d, want 60", summary.Succeeded)
	}
	if fetcher.highWater > 3 {
		t.Errorf("%d downloads ran at once across batches, budget is 3", fetcher.highWater)
	}
}

func TestExecutor_CountsFailures(t *testing.T) {
	fetcher := newFakeFetcher()
	tasks := makeTasks(t.TempDir(), numberedNames(10)...)
	for _, i := range []int{2, 5, 9} {
		fetcher.responses[tasks[i].URL] = []error{model.BadStatus(404)}
	}

	exec := NewExecutor(fetcher, mustBudget(3), WithRetrier(&Retrier{MaxRetries: 2, Sleep: noSleep}))
	summary := exec.RunBatch(context.Background(), tasks)

	want := model.Summary{
		Attempted:   10,
		Succeeded:   7,
		Failed:      3,
		Bytes:       7 * int64(len("image-bytes")),
		FailedNames: []string{tasks[2].Name, tasks[5].Name, tasks[9].Name},
	}
	if !reflect.DeepEqual(summary, want) {
		t.Errorf("summary = %+v, want %+v", summary, want)
	}
}

func TestExecutor_SecondRunSkipsEverything(t *testing.T) {
	dir := t.TempDir()
	fetcher := newFakeFetcher()
	tasks := makeTasks(dir, numberedNames(12)...)

	first := NewExecutor(fetcher, mustBudget(5), WithFilter(ExistenceFilter{Enabled: true})).
		RunBatch(context.Background(), tasks)
	if first.Succeeded != 12 {
		t.Fatalf("first run Succeeded = %d, want 12", first.Succeeded)
	}
	calls := fetcher.totalCalls()

	second := NewExecutor(fetcher, mustBudget(5), WithFilter(ExistenceFilter{Enabled: true})).
		RunBatch(context.Background(), tasks)

	want := model.Summary{Attempted: 12, Skipped: 12}
	if !reflect.DeepEqual(second, want) {
		t.Errorf("second run = %+v, want %+v", second, want)
	}
	if got := fetcher.totalCalls(); got != calls {
		t.Errorf("second run made %d downloader calls, want 0", got-calls)
	}
}

func TestExecutor_ExistingFileSkipped(t *testing.T) {
	dir := t.TempDir()
	fetcher := newFakeFetcher()
	tasks := makeTasks(dir, "wave")

	if err := os.WriteFile(tasks[0].Path, []byte("0123456789"), 0644); err != nil {
		t.Fatal(err)
	}

	var outcomes []model.Outcome
	exec := NewExecutor(fetcher, mustBudget(1),
		WithFilter(ExistenceFilter{Enabled: true}),
		WithOutcomeHook(func(o model.Outcome) { outcomes = append(outcomes, o) }),
	)
	summary := exec.RunBatch(context.Background(), tasks)

	if summary.Skipped != 1 || summary.Attempted != 1 {
		t.Errorf("summary = %+v, want one skipped", summary)
	}
	if fetcher.totalCalls() != 0 {
		t.Error("downloader must not be called for an existing file")
	}
	if len(outcomes) != 1 || outcomes[0].Reason != SkipReasonExists {
		t.Errorf("outcomes = %+v", outcomes)
	}

	data, _ := os.ReadFile(tasks[0].Path)
	if string(data) != "0123456789" {
		t.Errorf("existing file was modified: %q", data)
	}
}

func TestExecutor_ZeroByteFileRedownloaded(t *testing.T) {
	dir := t.TempDir()
	fetcher := newFakeFetcher()
	tasks := makeTasks(dir, "empty")

	if err := os.WriteFile(tasks[0].Path, nil, 0644); err != nil {
		t.Fatal(err)
	}

	summary := NewExecutor(fetcher, mustBudget(1), WithFilter(ExistenceFilter{Enabled: true})).
		RunBatch(context.Background(), tasks)

	if summary.Succeeded != 1 {
		t.Errorf("summary = %+v, want the empty file downloaded again", summary)
	}
	if fetcher.callsFor(tasks[0].URL) != 1 {
		t.Errorf("downloader called %d times, want 1", fetcher.callsFor(tasks[0].URL))
	}
}

func TestExecutor_FilterDisabledOverwrites(t *testing.T) {
	dir := t.TempDir()
	fetcher := newFakeFetcher()
	tasks := makeTasks(dir, "wave")
	os.WriteFile(tasks[0].Path, []byte("old content"), 0644)

	summary := NewExecutor(fetcher, mustBudget(1), WithFilter(ExistenceFilter{Enabled: false})).
		RunBatch(context.Background(), tasks)

	if summary.Succeeded != 1 {
		t.Errorf("summary = %+v", summary)
	}
	data, _ := os.ReadFile(tasks[0].Path)
	if string(data) != "image-bytes" {
		t.Errorf("content = %q, want it overwritten", data)
	}
}

// Three tasks, concurrency 2, two retries: A succeeds at once, B fails
// twice with 500 and then succeeds, C gets a 404 and is not retried.
func TestExecutor_MixedOutcomes(t *testing.T) {
	fetcher := newFakeFetcher()
	tasks := makeTasks(t.TempDir(), "A", "B", "C")
	fetcher.responses[tasks[1].URL] = []error{model.BadStatus(500), model.BadStatus(500), nil}
	fetcher.responses[tasks[2].URL] = []error{model.BadStatus(404)}

	var mu sync.Mutex
	attempts := make(map[string]int)
	exec := NewExecutor(fetcher, mustBudget(2),
		WithRetrier(&Retrier{MaxRetries: 2, Backoff: FixedBackoff(0), Sleep: noSleep}),
		WithOutcomeHook(func(o model.Outcome) {
			mu.Lock()
			attempts[o.Task.Name] = o.Attempts
			mu.Unlock()
		}),
	)
	summary := exec.RunBatch(context.Background(), tasks)

	if summary.Attempted != 3 || summary.Succeeded != 2 || summary.Failed != 1 {
		t.Errorf("summary = %+v, want 3 attempted, 2 succeeded, 1 failed", summary)
	}
	if !reflect.DeepEqual(summary.FailedNames, []string{"C"}) {
		t.Errorf("FailedNames = %v, want [C]", summary.FailedNames)
	}

	wantCalls := map[string]int{"A": 1, "B": 3, "C": 1}
	for i, task := range tasks {
		if got := fetcher.callsFor(task.URL); got != wantCalls[task.Name] {
			t.Errorf("task %d (%s): %d downloader calls, want %d", i, task.Name, got, wantCalls[task.Name])
		}
		if attempts[task.Name] != wantCalls[task.Name] {
			t.Errorf("outcome of %s records %d attempts, want %d", task.Name, attempts[task.Name], wantCalls[task.Name])
		}
	}
}

func TestExecutor_VerifierRejectsFile(t *testing.T) {
	dir := t.TempDir()
	fetcher := newFakeFetcher()
	tasks := makeTasks(dir, "bogus")

	var outcome model.Outcome
	exec := NewExecutor(fetcher, mustBudget(1),
		WithRetrier(&Retrier{MaxRetries: 3, Sleep: noSleep}),
		WithVerifier(func(path string) error { return errors.New("not an image") }),
		WithOutcomeHook(func(o model.Outcome) { outcome = o }),
	)
	summary := exec.RunBatch(context.Background(), tasks)

	if summary.Failed != 1 {
		t.Fatalf("summary = %+v, want one failure", summary)
	}
	if outcome.Kind != model.KindInvalid || outcome.Attempts != 1 {
		t.Errorf("outcome = %+v, want a single invalid attempt", outcome)
	}
	if _, err := os.Stat(filepath.Join(dir, "bogus.png")); !os.IsNotExist(err) {
		t.Error("rejected file should be removed")
	}
	assertNoTempFiles(t, dir)
}

func TestExecutor_VerifierRejectionKeepsPreviousFile(t *testing.T) {
	dir := t.TempDir()
	fetcher := newFakeFetcher()
	fetcher.body = []byte("<html>rate limited</html>")
	tasks := makeTasks(dir, "wave")
	if err := os.WriteFile(tasks[0].Path, []byte("good image"), 0644); err != nil {
		t.Fatal(err)
	}

	var verified string
	exec := NewExecutor(fetcher, mustBudget(1),
		WithFilter(ExistenceFilter{Enabled: false}),
		WithVerifier(func(path string) error {
			verified = path
			return errors.New("not an image")
		}),
	)
	summary := exec.RunBatch(context.Background(), tasks)

	if summary.Failed != 1 {
		t.Fatalf("summary = %+v, want one failure", summary)
	}
	if verified == "" || verified == tasks[0].Path {
		t.Errorf("verifier saw %q, want the temporary download", verified)
	}
	data, _ := os.ReadFile(tasks[0].Path)
	if string(data) != "good image" {
		t.Errorf("content = %q, want the previous file kept", data)
	}
	assertNoTempFiles(t, dir)
}

func TestExecutor_ByteProgress(t *testing.T) {
	tests := []struct {
		name      string
		responses []error
		verify    VerifyFunc
		want      int64
	}{
		{"success counts the body", nil, nil, 11},
		{"retried attempt counted once", []error{model.BadStatus(500), nil}, nil, 11},
		{"failure is taken back", []error{model.BadStatus(404)}, nil, 0},
		{"rejected file is taken back", nil, func(string) error { return errors.New("bad") }, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := newFakeFetcher()
			tasks := makeTasks(t.TempDir(), "wave")
			if tt.responses != nil {
				fetcher.responses[tasks[0].URL] = tt.responses
			}

			var mu sync.Mutex
			var total int64
			var sawPartial bool
			opts := []ExecutorOption{
				WithRetrier(&Retrier{MaxRetries: 2, Sleep: noSleep}),
				WithByteProgress(func(delta int64) {
					mu.Lock()
					total += delta
					if total > 0 && total < 11 {
						sawPartial = true
					}
					mu.Unlock()
				}),
			}
			if tt.verify != nil {
				opts = append(opts, WithVerifier(tt.verify))
			}
			NewExecutor(fetcher, mustBudget(1), opts...).RunBatch(context.Background(), tasks)

			if total != tt.want {
				t.Errorf("byte total = %d, want %d", total, tt.want)
			}
			if tt.want > 0 && !sawPartial {
				t.Error("progress should be reported while the body arrives")
			}
		})
	}
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) != ".png" {
			t.Errorf("leftover file %s", e.Name())
		}
	}
}

func TestExecutor_CancelledContext(t *testing.T) {
	fetcher := newFakeFetcher()
	tasks := makeTasks(t.TempDir(), numberedNames(5)...)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var mu sync.Mutex
	var kinds []model.ErrorKind
	exec := NewExecutor(fetcher, mustBudget(2), WithOutcomeHook(func(o model.Outcome) {
		mu.Lock()
		kinds = append(kinds, o.Kind)
		mu.Unlock()
	}))
	summary := exec.RunBatch(ctx, tasks)

	if summary.Attempted != 5 || summary.Failed != 5 {
		t.Errorf("summary = %+v, want every task counted as failed", summary)
	}
	if fetcher.totalCalls() != 0 {
		t.Errorf("downloader called %d times after cancellation", fetcher.totalCalls())
	}
	for _, k := range kinds {
		if k != model.KindCanceled {
			t.Errorf("kind = %v, want canceled", k)
		}
	}
}

func TestExecutor_EmptyBatch(t *testing.T) {
	summary := NewExecutor(newFakeFetcher(), mustBudget(1)).RunBatch(context.Background(), nil)
	if !reflect.DeepEqual(summary, model.Summary{}) {
		t.Errorf("summary = %+v, want zero", summary)
	}
}

func TestNewBudget_Invalid(t *testing.T) {
	for _, n := range []int{0, -1} {
		if _, err := NewBudget(n); !errors.Is(err, ErrInvalidConcurrency) {
			t.Errorf("NewBudget(%d) err = %v, want ErrInvalidConcurrency", n, err)
		}
	}
}

func TestBudget_ReleasesOnError(t *testing.T) {
	b := mustBudget(1)

	for i := 0; i < 3; i++ {
		_, err := b.Run(context.Background(), func(context.Context) (int64, error) {
			return 0, errBoom
		})
		if !errors.Is(err, errBoom) {
			t.Fatalf("run %d: err = %v", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	n, err := b.Run(ctx, func(context.Context) (int64, error) { return 7, nil })
	if err != nil || n != 7 {
		t.Errorf("Run() = %d, %v; the permit was not released", n, err)
	}
}
