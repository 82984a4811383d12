package ioutils

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // GIF decoder registration
	_ "image/jpeg" // JPEG decoder registration
	_ "image/png"  // PNG decoder registration
	"io"
	"os"
	"strings"

	_ "golang.org/x/image/bmp"  // BMP decoder registration
	_ "golang.org/x/image/tiff" // TIFF decoder registration
	_ "golang.org/x/image/webp" // WebP decoder registration
)

// ErrNotImage is returned by Inspect when a file is not a decodable image.
var ErrNotImage = errors.New("not a decodable image")

// ImageInfo describes a decoded image header.
type ImageInfo struct {
	// Format is the registered format name: "png", "gif", "jpeg", "webp", "bmp", "tiff" or "svg".
	Format string

	// Width and Height are zero for SVG.
	Width  int
	Height int
}

// ImageService verifies downloaded emoji images.
//
// Only the image header is decoded, so checking a large animated GIF costs
// about as much as checking a tiny PNG.
//
// Example usage:
//
//	svc := NewImageService()
//	info, err := svc.Inspect("/emoji/partyparrot.gif")
//	if errors.Is(err, ErrNotImage) {
//	    // the server returned an HTML error page with a 200
//	}
//	fmt.Printf("%s %dx%d\n", info.Format, info.Width, info.Height)
type ImageService struct{}

// NewImageService creates a new ImageService.
func NewImageService() *ImageService {
	return &ImageService{}
}

// Inspect decodes the header of the image at path.
//
// SVG files are recognised by their leading XML and accepted without
// dimensions. Returns an error wrapping ErrNotImage when the content is
// not a known image format, or the os error when the file cannot be read.
func (s *ImageService) Inspect(path string) (ImageInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImageInfo{}, err
	}
	defer f.Close()

	return s.InspectReader(f)
}

// InspectReader is Inspect for an already opened stream.
func (s *ImageService) InspectReader(r io.Reader) (ImageInfo, error) {
	br := bufio.NewReader(r)

	head, _ := br.Peek(512)
	if isSVG(head) {
		return ImageInfo{Format: "svg"}, nil
	}

	cfg, format, err := image.DecodeConfig(br)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("%w: %v", ErrNotImage, err)
	}

	return ImageInfo{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

// isSVG reports whether head looks like the start of an SVG document.
func isSVG(head []byte) bool {
	head = bytes.TrimSpace(head)
	lower := strings.ToLower(string(head))
	if strings.HasPrefix(lower, "<svg") {
		return true
	}
	return strings.HasPrefix(lower, "<?xml") && strings.Contains(lower, "<svg")
}
