package model

import (
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// AliasPrefix marks listing entries that point at another emoji instead of an image.
const AliasPrefix = "alias:"

// DefaultExtension is used when the image URL carries no recognised extension.
const DefaultExtension = ".png"

var imageExtensions = map[string]bool{
	".png":  true,
	".gif":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".bmp":  true,
	".svg":  true,
}

// Emoji is a single entry of the remote emoji listing.
type Emoji struct {
	// Name is the emoji short name, without surrounding colons.
	Name string

	// URL is the absolute URL of the image.
	URL string
}

// IsAlias reports whether the entry is an alias of another emoji.
func (e Emoji) IsAlias() bool {
	return strings.HasPrefix(e.URL, AliasPrefix)
}

// Extension returns the lower-cased image extension of the URL, including the dot.
//
// Query strings are ignored. DefaultExtension is returned when the URL has
// no extension or an unknown one.
//
// Example:
//
//	Emoji{URL: "https://cdn.example/a/b.GIF?v=2"}.Extension() // ".gif"
func (e Emoji) Extension() string {
	p := e.URL
	if u, err := url.Parse(e.URL); err == nil {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	if imageExtensions[ext] {
		return ext
	}
	return DefaultExtension
}

// PathConfig holds the settings used to compute task destinations.
type PathConfig struct {
	// OutputDir is the directory every emoji image is written to.
	OutputDir string
}

// sanitizeFileName removes or replaces characters that are invalid in file names.
//
// The following transformations are applied:
//   - Invalid characters (<>:"/\|?* and control chars) are replaced with underscore
//   - Trailing dots are removed (Windows limitation)
//   - Multiple whitespace is collapsed to single space
//   - Leading and trailing whitespace is removed
//
// Example:
//
//	sanitizeFileName("face/palm") // Returns "face_palm"
func sanitizeFileName(name string) string {
	name = invalidChars.ReplaceAllString(name, "_")
	name = trailingDots.ReplaceAllString(name, "")
	name = whitespace.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)

	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}

var (
	invalidChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	trailingDots = regexp.MustCompile(`\.+$`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// maxNameBytes bounds the sanitized name, extension excluded.
const maxNameBytes = 200

// fileName computes the file name for an emoji, extension included.
func fileName(e Emoji) string {
	name := sanitizeFileName(e.Name)

	// Keep names well under common filesystem limits (255 bytes),
	// cutting on a rune boundary.
	if len(name) > maxNameBytes {
		i := maxNameBytes
		for i > 0 && !utf8.RuneStart(name[i]) {
			i--
		}
		name = name[:i]
	}

	return name + e.Extension()
}

// joinOutput joins the output directory and a file name.
func joinOutput(cfg *PathConfig, name string) string {
	dir := cfg.OutputDir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, name)
}
