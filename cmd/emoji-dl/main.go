package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"

	"github.com/hackclub/slack-emoji-dl/internal/config"
	"github.com/hackclub/slack-emoji-dl/internal/download"
	ioutils "github.com/hackclub/slack-emoji-dl/internal/io"
	"github.com/hackclub/slack-emoji-dl/internal/model"
)

// Exit codes
const (
	exitOK          = 0
	exitSetup       = 1
	exitFailures    = 2
	exitInterrupted = 130
)

// maxFailedShown caps the failed names printed in the summary.
const maxFailedShown = 20

func main() {
	os.Exit(run())
}

func run() int {
	// Command line flags
	var (
		configFlag      = flag.String("config", "", "Path to config file (json, yaml or toml), default "+config.DefaultConfigFile+" if present")
		outputFlag      = flag.String("output", "", "Output directory")
		apiFlag         = flag.String("api-url", "", "Emoji listing URL")
		concurrentFlag  = flag.Int("concurrent", 0, "Maximum simultaneous downloads")
		batchFlag       = flag.Int("batch-size", 0, "Tasks per batch")
		pipelineFlag    = flag.Int("pipeline", 0, "Batches allowed in flight at once")
		retriesFlag     = flag.Int("max-retries", 0, "Retries per emoji after the first attempt")
		rpsFlag         = flag.Float64("rps", 0, "Maximum requests per second, 0 for unlimited")
		timeoutFlag     = flag.Int("timeout", 0, "Per-request timeout in seconds")
		skipFlag        = flag.Bool("skip-existing", true, "Skip emoji whose file already exists")
		verifyFlag      = flag.Bool("verify", false, "Check that every download is a decodable image")
		indexFlag       = flag.String("index", "", "Write an index file: json, csv, md or html")
		verboseFlag     = flag.Bool("verbose", false, "Log every emoji instead of showing a progress bar")
		logFormatFlag   = flag.String("log-format", "text", "Log format: text or json")
		logFileFlag     = flag.String("log-file", "", "Log file, default download_<timestamp>.log, \"off\" to disable")
		dryRunFlag      = flag.Bool("dry-run", false, "Fetch the listing and report what would be downloaded")
		writeConfigFlag = flag.String("write-config", "", "Write the effective settings to this file and exit")
		summaryJSONFlag = flag.Bool("summary-json", false, "Print the final summary as JSON on stdout")
	)

	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Slack Emoji Downloader - Download every custom emoji of a workspace")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  emoji-dl [options]")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Settings are read from defaults, the -config file (or "+config.DefaultConfigFile+"), EMOJI_DL_* environment")
		fmt.Fprintln(os.Stderr, "variables and flags, in that order. For interactive mode, use: emoji-tui")
		fmt.Fprintln(os.Stderr)
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := newLogger(os.Stderr, *logFormatFlag, *verboseFlag)

	// Load config
	settings, err := config.Load(*configFlag)
	if err != nil {
		logger.Error("loading config", "err", err)
		return exitSetup
	}

	// Apply only the flags given on the command line
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "output":
			settings.OutputDir = *outputFlag
		case "api-url":
			settings.APIURL = *apiFlag
		case "concurrent":
			settings.Concurrent = *concurrentFlag
		case "batch-size":
			settings.BatchSize = *batchFlag
		case "pipeline":
			settings.PipelineBatches = *pipelineFlag
		case "max-retries":
			settings.MaxRetries = *retriesFlag
		case "rps":
			settings.RequestsPerSecond = *rpsFlag
		case "timeout":
			settings.RequestTimeout = *timeoutFlag
		case "skip-existing":
			settings.SkipExisting = *skipFlag
		case "verify":
			settings.VerifyImages = *verifyFlag
		case "index":
			settings.CreateIndex = *indexFlag != ""
			settings.IndexFormat = *indexFlag
		case "log-file":
			settings.LogFile = *logFileFlag
		}
	})

	if *writeConfigFlag != "" {
		if err := settings.Validate(); err != nil {
			logger.Error("invalid settings", "err", err)
			return exitSetup
		}
		if err := settings.Save(*writeConfigFlag); err != nil {
			logger.Error("writing config", "path", *writeConfigFlag, "err", err)
			return exitSetup
		}
		logger.Info("wrote config", "path", *writeConfigFlag)
		return exitOK
	}

	// Log to a file as well
	var logFile io.Writer
	if path := settings.LogFilePath(time.Now()); path != "" {
		f, err := openLogFile(path)
		if err != nil {
			logger.Error("opening log file", "path", path, "err", err)
			return exitSetup
		}
		defer f.Close()
		logFile = f
	}
	logs := newRunLog(os.Stderr, logFile, *logFormatFlag, *verboseFlag)
	logger = logs.all

	// Handle interrupts
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var bar *progressbar.ProgressBar

	manager := download.NewManager(settings, func(event download.ProgressEvent) {
		if event.Kind == download.KindOutcome && bar != nil {
			bar.Add(1)
			if event.Level != download.LevelError {
				logs.event(ctx, event, false)
				return
			}
			bar.Clear()
		}
		logs.event(ctx, event, true)
	})

	if err := manager.Initialize(ctx); err != nil {
		if ctx.Err() != nil {
			logger.Warn("interrupted")
			return exitInterrupted
		}
		logger.Error("initializing", "err", err)
		return exitSetup
	}

	if *dryRunFlag {
		dryRun(manager.Tasks(), settings.SkipExisting)
		return exitOK
	}

	if !*verboseFlag {
		bar = newProgressBar(len(manager.Tasks()))
	}

	start := time.Now()
	summary, err := manager.StartDownloads(ctx)
	if bar != nil {
		bar.Finish()
	}

	printSummary(summary, time.Since(start))
	if *summaryJSONFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(summary)
	}

	switch {
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		fmt.Println("\nDownload cancelled.")
		return exitInterrupted
	case err != nil:
		logger.Error("downloading", "err", err)
		return exitSetup
	case !summary.OK():
		return exitFailures
	}
	return exitOK
}

func newProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("downloading emoji"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func dryRun(tasks []model.Task, skipExisting bool) {
	existing := 0
	if skipExisting {
		for _, t := range tasks {
			if ioutils.FileHasContent(t.Path) {
				existing++
			}
		}
	}

	fmt.Println("[Dry run - not downloading]")
	fmt.Printf("%s emoji listed, %s already on disk, %s to download\n",
		humanize.Comma(int64(len(tasks))),
		humanize.Comma(int64(existing)),
		humanize.Comma(int64(len(tasks)-existing)))
}

func printSummary(s model.Summary, elapsed time.Duration) {
	fmt.Println()
	fmt.Println(strings.Repeat("-", 48))
	fmt.Printf("Downloaded %s, skipped %s, failed %s of %s emoji (%s in %s)\n",
		humanize.Comma(int64(s.Succeeded)),
		humanize.Comma(int64(s.Skipped)),
		humanize.Comma(int64(s.Failed)),
		humanize.Comma(int64(s.Attempted)),
		humanize.Bytes(uint64(s.Bytes)),
		elapsed.Round(time.Millisecond))

	if len(s.FailedNames) == 0 {
		return
	}

	shown := s.FailedNames
	if len(shown) > maxFailedShown {
		shown = shown[:maxFailedShown]
	}
	fmt.Printf("Failed: %s", strings.Join(shown, ", "))
	if rest := len(s.FailedNames) - len(shown); rest > 0 {
		fmt.Printf(" and %d more", rest)
	}
	fmt.Println()
}
