// Package model defines the core data structures used throughout
// slack-emoji-dl.
//
// # Emoji
//
// Emoji is one entry of the remote listing, a name and the image URL it
// points at:
//
//	e := model.Emoji{Name: "partyparrot", URL: "https://emoji.slack-edge.com/T0/partyparrot/abc.gif"}
//
// # Task
//
// Task is the immutable unit of download work built from an Emoji. Its
// destination path is computed once from a PathConfig:
//
//	cfg := &model.PathConfig{OutputDir: "./output"}
//	task := model.NewTask(e, cfg)
//	fmt.Println(task.Path) // output/partyparrot.gif
//
// # Outcome and Summary
//
// Every task produces exactly one Outcome (success, skipped or failed).
// Outcomes are folded into a Summary, and per-batch summaries are merged
// into the summary of a whole run:
//
//	var s model.Summary
//	s.Record(outcome)
//	total.Merge(s)
//
// # Errors
//
// DownloadError carries the ErrorKind used by the retry policy:
// BadStatus, Transport, IO, Invalid and Canceled. IsRetryable decides
// whether another attempt can help.
package model
