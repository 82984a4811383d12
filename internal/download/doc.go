// Package download provides the batched, concurrency-bounded download
// engine for Slack emoji.
//
// # Building Blocks
//
//   - Budget: a semaphore limiting simultaneous downloads
//   - Retrier: per-task retry loop with injectable backoff and sleep
//   - Filter: skips tasks whose file already exists
//   - Executor: runs one batch, every task ends as an Outcome
//   - Orchestrator: splits tasks into batches and runs them in order
//
// # Manager
//
// The Manager wires the building blocks to settings:
//
//  1. Validate settings
//  2. Fetch the emoji listing
//  3. Build and deduplicate tasks
//  4. Download batch after batch
//  5. Write an index file (optional)
//
// # Basic Usage
//
//	manager := download.NewManager(settings, func(event download.ProgressEvent) {
//	    fmt.Println(event.Message)
//	})
//
//	if err := manager.Initialize(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	summary, err := manager.StartDownloads(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%d downloaded, %d failed\n", summary.Succeeded, summary.Failed)
//
// # Concurrency
//
// Settings.Concurrent bounds how many downloads are in flight across the
// whole run. Settings.BatchSize bounds how many tasks are scheduled at
// once; batches run one after another unless Settings.PipelineBatches
// allows more.
//
// # Retry Logic
//
// Transport errors and 5xx, 408 and 429 responses are retried with
// exponential backoff (Settings.RetryCooldown * Settings.RetryExponent^n)
// up to Settings.MaxRetries times. Other failures are final.
package download
