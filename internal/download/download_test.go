package download

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	ioutils "github.com/hackclub/slack-emoji-dl/internal/io"
	"github.com/hackclub/slack-emoji-dl/internal/model"
)

// fakeFetcher serves scripted results per URL and records concurrency.
//
// responses[url][i] is the result of the (i+1)-th call for url; nil means
// success. The last entry repeats once the script runs out.
type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string][]error
	calls     map[string]int
	inFlight  int
	highWater int
	delay     time.Duration
	body      []byte
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		responses: make(map[string][]error),
		calls:     make(map[string]int),
	}
}

func (f *fakeFetcher) DownloadFile(ctx context.Context, url, destPath string, onProgress func(written, total int64), checks ...ioutils.CheckFunc) (int64, error) {
	f.mu.Lock()
	f.calls[url]++
	n := f.calls[url]
	f.inFlight++
	if f.inFlight > f.highWater {
		f.highWater = f.inFlight
	}
	var err error
	if script := f.responses[url]; len(script) > 0 {
		err = script[min(n, len(script))-1]
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err != nil {
		return 0, err
	}

	body := f.body
	if body == nil {
		body = []byte("image-bytes")
	}
	if onProgress != nil {
		// Report the body in two chunks, like a streamed response.
		total := int64(len(body))
		onProgress(total/2, total)
		onProgress(total, total)
	}
	written, err := ioutils.WriteFileAtomic(destPath, bytes.NewReader(body), checks...)
	if err != nil {
		var de *model.DownloadError
		if errors.As(err, &de) {
			return written, de
		}
		return written, model.IOError(err)
	}
	return written, nil
}

func (f *fakeFetcher) callsFor(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *fakeFetcher) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func noSleep(ctx context.Context, d time.Duration) error {
	return nil
}

func makeTasks(dir string, names ...string) []model.Task {
	tasks := make([]model.Task, len(names))
	for i, name := range names {
		tasks[i] = model.Task{
			Name: name,
			URL:  "https://emoji.test/" + name + ".png",
			Path: filepath.Join(dir, name+".png"),
		}
	}
	return tasks
}

func numberedNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = "emoji" + string(rune('a'+i/26)) + string(rune('a'+i%26))
	}
	return names
}

func mustBudget(n int) *Budget {
	b, err := NewBudget(n)
	if err != nil {
		panic(err)
	}
	return b
}

var errBoom = errors.New("boom")
