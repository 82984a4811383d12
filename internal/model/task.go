package model

import "strings"

// Task describes one unit of download work.
//
// A Task is created once by NewTask and passed by value afterwards; no
// component modifies it.
type Task struct {
	// Name is the emoji name, used for logging and the failed list.
	Name string

	// URL is the absolute source URL of the image.
	URL string

	// Path is the destination file path.
	Path string
}

// NewTask creates a Task for an emoji with its destination computed from cfg.
//
// The file name is the sanitized emoji name followed by the URL's image
// extension:
//
//	cfg := &PathConfig{OutputDir: "/tmp/emoji"}
//	NewTask(Emoji{Name: "wave", URL: "https://x/wave.gif"}, cfg).Path // "/tmp/emoji/wave.gif"
func NewTask(e Emoji, cfg *PathConfig) Task {
	return Task{
		Name: e.Name,
		URL:  e.URL,
		Path: joinOutput(cfg, fileName(e)),
	}
}

// NewTasks creates tasks for all emojis, skipping aliases and entries without a URL.
func NewTasks(emojis []Emoji, cfg *PathConfig) []Task {
	tasks := make([]Task, 0, len(emojis))
	for _, e := range emojis {
		if e.URL == "" || e.IsAlias() {
			continue
		}
		tasks = append(tasks, NewTask(e, cfg))
	}
	return tasks
}

// Dedupe removes tasks that share a destination path with an earlier task.
//
// Paths are compared case-insensitively so that two names differing only
// in case do not race on case-insensitive filesystems. The first task for
// a path wins; the rest are returned as dropped, in input order.
func Dedupe(tasks []Task) (kept, dropped []Task) {
	seen := make(map[string]struct{}, len(tasks))
	kept = make([]Task, 0, len(tasks))

	for _, t := range tasks {
		key := strings.ToLower(t.Path)
		if _, ok := seen[key]; ok {
			dropped = append(dropped, t)
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, t)
	}

	return kept, dropped
}
