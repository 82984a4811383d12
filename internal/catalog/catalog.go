package catalog

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hackclub/slack-emoji-dl/internal/model"
)

// Format represents supported index file formats.
//
// Each format targets a different reader:
//   - JSON: machine readable, includes the run summary
//   - CSV: one row per emoji, for spreadsheets
//   - Markdown: a table that renders on code hosts
//   - HTML: a browsable gallery showing every image
type Format int

const (
	// FormatJSON creates index.json.
	FormatJSON Format = iota

	// FormatCSV creates index.csv with a header row.
	FormatCSV

	// FormatMarkdown creates index.md.
	FormatMarkdown

	// FormatHTML creates index.html with inline <img> tags.
	FormatHTML
)

// ParseFormat maps a settings value (json, csv, md, markdown, html) to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	default:
		return FormatJSON, fmt.Errorf("unknown index format %q (want json, csv, md or html)", s)
	}
}

// String returns the settings name of the format.
func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatMarkdown:
		return "md"
	case FormatHTML:
		return "html"
	default:
		return "json"
	}
}

// Extension returns the file extension of the format, with the dot.
func (f Format) Extension() string {
	return "." + f.String()
}

// FileName returns the index file name for the format, e.g. "index.html".
func (f Format) FileName() string {
	return "index" + f.Extension()
}

// Entry is one emoji row of the index.
type Entry struct {
	Name   string `json:"name"`
	File   string `json:"file"`
	URL    string `json:"url"`
	Status string `json:"status"`
	Bytes  int64  `json:"bytes,omitempty"`
}

// Meta describes the run an index belongs to.
type Meta struct {
	RunID       string        `json:"run_id"`
	Source      string        `json:"source"`
	GeneratedAt time.Time     `json:"generated_at"`
	Summary     model.Summary `json:"summary"`
}

// Creator renders index files in one format.
//
// Example:
//
//	creator := NewCreator(FormatHTML)
//	content, err := creator.Create(meta, entries)
//	os.WriteFile(filepath.Join(dir, FormatHTML.FileName()), []byte(content), 0644)
//
// File references are relative, so the index must live in the output
// directory next to the images.
type Creator struct {
	format Format
}

// NewCreator creates a new Creator.
func NewCreator(format Format) *Creator {
	return &Creator{format: format}
}

// Format returns the format the Creator renders.
func (c *Creator) Format() Format {
	return c.format
}

// Create renders the index for entries.
func (c *Creator) Create(meta Meta, entries []Entry) (string, error) {
	switch c.format {
	case FormatCSV:
		return c.createCSV(entries)
	case FormatMarkdown:
		return c.createMarkdown(meta, entries), nil
	case FormatHTML:
		return c.createHTML(meta, entries), nil
	default:
		return c.createJSON(meta, entries)
	}
}

// createJSON generates:
//
//	{"run_id": "...", ..., "emoji": [{"name": "wave", "file": "wave.gif", ...}]}
func (c *Creator) createJSON(meta Meta, entries []Entry) (string, error) {
	doc := struct {
		Meta
		Emoji []Entry `json:"emoji"`
	}{meta, entries}

	if doc.Emoji == nil {
		doc.Emoji = []Entry{}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}

// createCSV generates:
//
//	name,file,url,status,bytes
//	wave,wave.gif,https://...,success,1234
func (c *Creator) createCSV(entries []Entry) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	w.Write([]string{"name", "file", "url", "status", "bytes"})
	for _, e := range entries {
		w.Write([]string{e.Name, e.File, e.URL, e.Status, strconv.FormatInt(e.Bytes, 10)})
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// createMarkdown generates a heading, the run totals and a table with a
// preview column.
func (c *Creator) createMarkdown(meta Meta, entries []Entry) string {
	var sb strings.Builder

	sb.WriteString("# Emoji\n\n")
	fmt.Fprintf(&sb, "Source: %s  \n", meta.Source)
	fmt.Fprintf(&sb, "Run: %s (%s)  \n", meta.RunID, meta.GeneratedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&sb, "Downloaded %d, skipped %d, failed %d\n\n",
		meta.Summary.Succeeded, meta.Summary.Skipped, meta.Summary.Failed)

	sb.WriteString("| | name | file | status |\n")
	sb.WriteString("|---|---|---|---|\n")
	for _, e := range entries {
		fmt.Fprintf(&sb, "| ![%s](%s) | %s | %s | %s |\n",
			escapeMarkdown(e.Name), escapePath(e.File), escapeMarkdown(e.Name), escapeMarkdown(e.File), e.Status)
	}

	return sb.String()
}

// createHTML generates a self-contained gallery page.
func (c *Creator) createHTML(meta Meta, entries []Entry) string {
	var sb strings.Builder

	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString("<html>\n")
	sb.WriteString("  <head>\n")
	sb.WriteString("    <meta charset=\"utf-8\"/>\n")
	sb.WriteString("    <title>Emoji</title>\n")
	sb.WriteString(fmt.Sprintf("    <meta name=\"generator\" content=\"slack-emoji-dl %s\"/>\n", escapeXML(meta.RunID)))
	sb.WriteString("    <style>figure{display:inline-block;width:96px;margin:4px;text-align:center}img{max-width:64px;max-height:64px}figcaption{font:11px monospace;overflow-wrap:anywhere}</style>\n")
	sb.WriteString("  </head>\n")
	sb.WriteString("  <body>\n")
	sb.WriteString(fmt.Sprintf("    <p>%d emoji from %s</p>\n", len(entries), escapeXML(meta.Source)))

	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("    <figure><img src=\"%s\" alt=\"%s\" loading=\"lazy\"/><figcaption>:%s:</figcaption></figure>\n",
			escapeXML(escapePath(e.File)),
			escapeXML(e.Name),
			escapeXML(e.Name)))
	}

	sb.WriteString("  </body>\n")
	sb.WriteString("</html>\n")

	return sb.String()
}

// escapeXML escapes special XML characters in a string.
//
// Replaces: & < > " '
// With:     &amp; &lt; &gt; &quot; &apos;
func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}

// escapePath makes a relative file name safe to use as a link target.
func escapePath(s string) string {
	s = strings.ReplaceAll(s, "%", "%25")
	s = strings.ReplaceAll(s, " ", "%20")
	s = strings.ReplaceAll(s, "#", "%23")
	s = strings.ReplaceAll(s, "?", "%3F")
	s = strings.ReplaceAll(s, "(", "%28")
	s = strings.ReplaceAll(s, ")", "%29")
	s = strings.ReplaceAll(s, "|", "%7C")
	return s
}

var markdownEscaper = strings.NewReplacer(
	"\\", "\\\\",
	"|", "\\|",
	"[", "\\[",
	"]", "\\]",
	"`", "\\`",
	"*", "\\*",
	"_", "\\_",
)

// escapeMarkdown makes s render literally inside a table cell.
func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
