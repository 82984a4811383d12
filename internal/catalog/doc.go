// Package catalog renders an index of downloaded emoji.
//
// After a run the Manager can write index.json, index.csv, index.md or
// index.html into the output directory, listing every emoji with its file
// name, source URL and outcome. The HTML format doubles as a gallery.
package catalog
