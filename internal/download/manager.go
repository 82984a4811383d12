package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hackclub/slack-emoji-dl/internal/catalog"
	"github.com/hackclub/slack-emoji-dl/internal/config"
	"github.com/hackclub/slack-emoji-dl/internal/emoji"
	"github.com/hackclub/slack-emoji-dl/internal/http"
	ioutils "github.com/hackclub/slack-emoji-dl/internal/io"
	"github.com/hackclub/slack-emoji-dl/internal/model"
)

// ErrNotInitialized is returned by StartDownloads before a successful Initialize.
var ErrNotInitialized = errors.New("manager is not initialized")

// ProgressLevel indicates the severity/type of a progress message.
type ProgressLevel int

const (
	LevelInfo ProgressLevel = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

// EventKind tells what a ProgressEvent reports.
type EventKind int

const (
	// KindMessage is a free-form status line.
	KindMessage EventKind = iota

	// KindOutcome reports the final outcome of one task.
	KindOutcome

	// KindBatch reports a finished batch.
	KindBatch
)

// ProgressEvent represents a download progress update.
type ProgressEvent struct {
	Message string
	Level   ProgressLevel
	Kind    EventKind

	// Attrs carry structured context (run, emoji, attempts, status) for loggers.
	Attrs []slog.Attr
}

// Progress is a snapshot of a running download.
type Progress struct {
	TasksDone  int
	TasksTotal int
	Succeeded  int
	Skipped    int
	Failed     int
	Bytes      int64 // body bytes received, in-flight downloads included
	Batch      int   // batches finished
	Batches    int
}

// Lister produces the emoji listing. *emoji.Source implements it.
type Lister interface {
	Fetch(ctx context.Context) ([]model.Emoji, error)
	URL() string
}

// Manager coordinates an emoji download run.
type Manager struct {
	settings     *config.Settings
	runID        string
	fetcher      Fetcher
	lister       Lister
	sleep        SleepFunc
	imageService *ioutils.ImageService

	tasks []model.Task

	tasksDone int64
	succeeded int64
	skipped   int64
	failed    int64
	bytes     int64
	batch     int64
	batches   int64

	outcomes map[string]model.Outcome // by task path, for the index

	onProgress func(ProgressEvent)
	mu         sync.Mutex
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithFetcher replaces the HTTP downloader.
func WithFetcher(f Fetcher) ManagerOption {
	return func(m *Manager) { m.fetcher = f }
}

// WithLister replaces the listing source.
func WithLister(l Lister) ManagerOption {
	return func(m *Manager) { m.lister = l }
}

// WithSleep replaces the wait between retries.
func WithSleep(s SleepFunc) ManagerOption {
	return func(m *Manager) { m.sleep = s }
}

// NewManager creates a new download Manager.
//
// onProgress may be nil. It is called from many goroutines at once and
// must be safe for concurrent use.
func NewManager(settings *config.Settings, onProgress func(ProgressEvent), opts ...ManagerOption) *Manager {
	m := &Manager{
		settings:     settings,
		runID:        uuid.NewString(),
		imageService: ioutils.NewImageService(),
		outcomes:     make(map[string]model.Outcome),
		onProgress:   onProgress,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.fetcher == nil || m.lister == nil {
		client := http.NewClient(
			http.WithTimeout(settings.RequestTimeoutDuration()),
			http.WithUserAgent(settings.UserAgent),
			http.WithRateLimit(settings.RequestsPerSecond, max(1, int(settings.RequestsPerSecond))),
			http.WithMaxConnsPerHost(settings.Concurrent),
		)
		if m.fetcher == nil {
			m.fetcher = client
		}
		if m.lister == nil {
			m.lister = emoji.NewSource(client, settings.APIURL)
		}
	}

	return m
}

// RunID returns the unique identifier of this run.
func (m *Manager) RunID() string {
	return m.runID
}

// Initialize validates the settings, fetches the listing and prepares tasks.
//
// Any error here is fatal for the run: no download has started yet.
func (m *Manager) Initialize(ctx context.Context) error {
	if err := m.settings.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	m.progress(ProgressEvent{Message: fmt.Sprintf("Fetching emoji listing from %s", m.lister.URL()), Level: LevelInfo})

	emojis, err := m.lister.Fetch(ctx)
	if err != nil {
		return err
	}

	tasks, dropped := model.Dedupe(model.NewTasks(emojis, m.settings.ToPathConfig()))
	for _, t := range dropped {
		m.progress(ProgressEvent{
			Message: fmt.Sprintf("Skipping %s: %s is already taken by another emoji", t.Name, filepath.Base(t.Path)),
			Level:   LevelWarning,
			Attrs:   []slog.Attr{slog.String("emoji", t.Name)},
		})
	}

	if err := ioutils.EnsureDir(m.settings.OutputDir); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	removed, err := ioutils.RemovePartials(m.settings.OutputDir)
	if err != nil {
		m.progress(ProgressEvent{Message: fmt.Sprintf("Error removing partial files: %v", err), Level: LevelWarning})
	} else if removed > 0 {
		m.progress(ProgressEvent{Message: fmt.Sprintf("Removed %d partial files from an earlier run", removed), Level: LevelVerbose})
	}

	m.mu.Lock()
	m.tasks = tasks
	m.mu.Unlock()

	m.progress(ProgressEvent{Message: fmt.Sprintf("Found %d emoji", len(tasks)), Level: LevelInfo})
	return nil
}

// Tasks returns the prepared tasks in download order.
func (m *Manager) Tasks() []model.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Task(nil), m.tasks...)
}

// StartDownloads runs all prepared tasks and returns the overall summary.
//
// Task failures are reported in the summary, not as an error. If ctx is
// cancelled the partial summary is returned together with ctx.Err().
func (m *Manager) StartDownloads(ctx context.Context) (model.Summary, error) {
	m.mu.Lock()
	tasks := m.tasks
	m.mu.Unlock()
	if tasks == nil {
		return model.Summary{}, ErrNotInitialized
	}

	budget, err := NewBudget(m.settings.Concurrent)
	if err != nil {
		return model.Summary{}, err
	}

	cooldown, exponent := m.settings.RetryBackoff()
	retrier := NewRetrier(m.settings.MaxRetries, ExponentialBackoff(cooldown, exponent))
	if m.sleep != nil {
		retrier.Sleep = m.sleep
	}
	retrier.OnRetry = func(task model.Task, failures int, err error, delay time.Duration) {
		m.progress(ProgressEvent{
			Message: fmt.Sprintf("Retry %d/%d for %s in %v: %v", failures, m.settings.MaxRetries, task.Name, delay, err),
			Level:   LevelWarning,
			Attrs:   []slog.Attr{slog.String("emoji", task.Name), slog.Int("attempts", failures)},
		})
	}

	opts := []ExecutorOption{
		WithRetrier(retrier),
		WithFilter(ExistenceFilter{Enabled: m.settings.SkipExisting}),
		WithOutcomeHook(m.recordOutcome),
		WithByteProgress(func(delta int64) { atomic.AddInt64(&m.bytes, delta) }),
	}
	if m.settings.VerifyImages {
		opts = append(opts, WithVerifier(func(path string) error {
			_, err := m.imageService.Inspect(path)
			return err
		}))
	}
	exec := NewExecutor(m.fetcher, budget, opts...)

	batches := (len(tasks) + m.settings.BatchSize - 1) / m.settings.BatchSize
	atomic.StoreInt64(&m.batches, int64(batches))

	orch, err := NewOrchestrator(exec, m.settings.BatchSize,
		WithPipeline(m.settings.PipelineBatches),
		WithBatchHook(m.recordBatch),
	)
	if err != nil {
		return model.Summary{}, err
	}

	m.progress(ProgressEvent{
		Message: fmt.Sprintf("Downloading %d emoji in %d batches, %d at a time", len(tasks), batches, budget.Capacity()),
		Level:   LevelInfo,
	})

	summary, err := orch.RunAll(ctx, tasks)
	if err != nil {
		return summary, err
	}

	if m.settings.CreateIndex {
		if path, err := m.writeIndex(summary); err != nil {
			m.progress(ProgressEvent{Message: fmt.Sprintf("Error creating index: %v", err), Level: LevelWarning})
		} else {
			m.progress(ProgressEvent{Message: fmt.Sprintf("Created index %s", path), Level: LevelSuccess})
		}
	}

	if err := ctx.Err(); err != nil {
		m.progress(ProgressEvent{Message: "Download interrupted", Level: LevelWarning})
		return summary, err
	}

	if summary.OK() {
		m.progress(ProgressEvent{Message: fmt.Sprintf("Successfully downloaded %d emoji", summary.Succeeded), Level: LevelSuccess})
	} else {
		m.progress(ProgressEvent{Message: fmt.Sprintf("Finished, %d emoji failed", summary.Failed), Level: LevelWarning})
	}

	return summary, nil
}

// GetProgress returns current download progress.
func (m *Manager) GetProgress() Progress {
	m.mu.Lock()
	total := len(m.tasks)
	m.mu.Unlock()

	return Progress{
		TasksDone:  int(atomic.LoadInt64(&m.tasksDone)),
		TasksTotal: total,
		Succeeded:  int(atomic.LoadInt64(&m.succeeded)),
		Skipped:    int(atomic.LoadInt64(&m.skipped)),
		Failed:     int(atomic.LoadInt64(&m.failed)),
		Bytes:      atomic.LoadInt64(&m.bytes),
		Batch:      int(atomic.LoadInt64(&m.batch)),
		Batches:    int(atomic.LoadInt64(&m.batches)),
	}
}

func (m *Manager) recordOutcome(o model.Outcome) {
	attrs := []slog.Attr{
		slog.String("emoji", o.Task.Name),
		slog.String("status", o.Status.String()),
	}

	var event ProgressEvent
	switch o.Status {
	case model.StatusSuccess:
		atomic.AddInt64(&m.succeeded, 1)
		event = ProgressEvent{Message: fmt.Sprintf("Downloaded: %s", filepath.Base(o.Task.Path)), Level: LevelVerbose}
		attrs = append(attrs, slog.Int("attempts", o.Attempts), slog.Int64("bytes", o.Bytes))
	case model.StatusSkipped:
		atomic.AddInt64(&m.skipped, 1)
		event = ProgressEvent{Message: fmt.Sprintf("Skipping existing: %s", filepath.Base(o.Task.Path)), Level: LevelVerbose}
	case model.StatusFailed:
		atomic.AddInt64(&m.failed, 1)
		event = ProgressEvent{Message: fmt.Sprintf("Error downloading %s: %v", o.Task.Name, o.Err), Level: LevelError}
		attrs = append(attrs, slog.Int("attempts", o.Attempts), slog.String("kind", o.Kind.String()))
	}
	atomic.AddInt64(&m.tasksDone, 1)

	if m.settings.CreateIndex {
		m.mu.Lock()
		m.outcomes[o.Task.Path] = o
		m.mu.Unlock()
	}

	event.Kind = KindOutcome
	event.Attrs = attrs
	m.progress(event)
}

func (m *Manager) recordBatch(r BatchReport) {
	atomic.StoreInt64(&m.batch, int64(r.Completed))

	m.progress(ProgressEvent{
		Message: fmt.Sprintf("Batch %d/%d done: %d downloaded, %d skipped, %d failed",
			r.Index+1, r.Total, r.Batch.Succeeded, r.Batch.Skipped, r.Batch.Failed),
		Level: LevelInfo,
		Kind:  KindBatch,
		Attrs: []slog.Attr{slog.Int("batch", r.Index+1), slog.Int("attempted", r.Cumulative.Attempted)},
	})
}

// writeIndex writes the catalog of this run into the output directory.
func (m *Manager) writeIndex(summary model.Summary) (string, error) {
	m.mu.Lock()
	entries := make([]catalog.Entry, 0, len(m.tasks))
	for _, t := range m.tasks {
		o, ok := m.outcomes[t.Path]
		if !ok {
			continue
		}
		entries = append(entries, catalog.Entry{
			Name:   t.Name,
			File:   filepath.Base(t.Path),
			URL:    t.URL,
			Status: o.Status.String(),
			Bytes:  o.Bytes,
		})
	}
	m.mu.Unlock()

	format := m.settings.CatalogFormat()
	content, err := catalog.NewCreator(format).Create(catalog.Meta{
		RunID:       m.runID,
		Source:      m.lister.URL(),
		GeneratedAt: time.Now(),
		Summary:     summary,
	}, entries)
	if err != nil {
		return "", err
	}

	path := filepath.Join(m.settings.OutputDir, format.FileName())
	if err := ioutils.WriteFile(path, []byte(content)); err != nil {
		return "", err
	}
	return path, nil
}

func (m *Manager) progress(event ProgressEvent) {
	if m.onProgress == nil {
		return
	}
	event.Attrs = append([]slog.Attr{slog.String("run", m.runID)}, event.Attrs...)
	m.onProgress(event)
}
