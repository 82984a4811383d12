// Package ioutils provides file system and image utilities for slack-emoji-dl.
//
// This package contains functions for:
//   - Atomic file writes (temporary file + rename)
//   - Existence checks used to skip finished downloads
//   - Cleanup of temporary files left by interrupted runs
//   - Directory creation
//   - Image header verification
//
// # File Operations
//
//	// Stream a response body to disk; path is only created on success
//	n, err := ioutils.WriteFileAtomic("/emoji/wave.gif", resp.Body)
//
//	// Non-empty file already there?
//	if ioutils.FileHasContent("/emoji/wave.gif") { ... }
//
//	// Remove ".wave.gif.123.part" leftovers
//	removed, err := ioutils.RemovePartials("/emoji")
//
// # Image Verification
//
// The ImageService checks that a downloaded file really is an image:
//
//	svc := ioutils.NewImageService()
//	info, err := svc.Inspect("/emoji/wave.gif")
package ioutils
