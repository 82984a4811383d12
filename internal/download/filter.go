package download

import ioutils "github.com/hackclub/slack-emoji-dl/internal/io"

// Filter decides whether a task can be skipped before downloading.
type Filter interface {
	ShouldSkip(path string) bool
}

// ExistenceFilter skips tasks whose destination already holds a non-empty file.
//
// When Enabled is false nothing is skipped and existing files are
// overwritten. Zero-byte files never count as existing.
type ExistenceFilter struct {
	Enabled bool
}

// ShouldSkip implements Filter.
func (f ExistenceFilter) ShouldSkip(path string) bool {
	return f.Enabled && ioutils.FileHasContent(path)
}
