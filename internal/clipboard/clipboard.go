// Package clipboard reads PNG images from and writes text to the general
// system clipboard selection.
package clipboard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/disintegration/imaging"
)

// MIMEImagePNG is the only image representation requested from the clipboard.
const MIMEImagePNG = "image/png"

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

var (
	// ErrNoContent is returned when the clipboard holds no image/png content.
	ErrNoContent = errors.New("no image data found")
	// ErrEmptyData is returned when image/png content is present but zero-length.
	ErrEmptyData = errors.New("image data is empty")
	// ErrMalformed is returned when the bytes are not a decodable PNG.
	ErrMalformed = errors.New("invalid image format")
	// ErrUnavailable is returned when the system clipboard cannot be opened.
	ErrUnavailable = errors.New("clipboard unavailable")
)

// Format selects a clipboard content type.
type Format int

const (
	FormatText Format = iota
	FormatImagePNG
)

// String returns the MIME type for the format.
func (f Format) String() string {
	switch f {
	case FormatImagePNG:
		return MIMEImagePNG
	default:
		return "text/plain"
	}
}

// Backend is the raw clipboard. Read reports ok=false when no content of the
// requested format exists.
type Backend interface {
	Read(format Format) (data []byte, ok bool, err error)
	// Write returns a channel that is closed once another owner replaces
	// the written content.
	Write(format Format, data []byte) (<-chan struct{}, error)
}

// ImagePayload is a validated PNG read from the clipboard.
type ImagePayload struct {
	Data   []byte
	Width  int
	Height int
}

// ImageResult is delivered once on the channel returned by ReadImage.
type ImageResult struct {
	Image ImagePayload
	Err   error
}

// Clipboard wraps a Backend with image validation and async reads.
type Clipboard struct {
	backend Backend

	mu      sync.Mutex
	changed <-chan struct{}
}

// New creates a clipboard over backend.
func New(backend Backend) *Clipboard {
	return &Clipboard{backend: backend}
}

// ReadImage requests image/png content and delivers exactly one result on the
// returned channel. The channel is buffered so the reader never leaks when the
// caller stops listening after ctx is done.
func (c *Clipboard) ReadImage(ctx context.Context) <-chan ImageResult {
	out := make(chan ImageResult, 1)
	go func() {
		if err := ctx.Err(); err != nil {
			out <- ImageResult{Err: err}
			return
		}
		payload, err := c.readImage()
		out <- ImageResult{Image: payload, Err: err}
	}()
	return out
}

func (c *Clipboard) readImage() (ImagePayload, error) {
	data, ok, err := c.backend.Read(FormatImagePNG)
	if err != nil {
		return ImagePayload{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !ok {
		return ImagePayload{}, ErrNoContent
	}
	if len(data) == 0 {
		return ImagePayload{}, ErrEmptyData
	}

	width, height, err := validatePNG(data)
	if err != nil {
		return ImagePayload{}, err
	}

	return ImagePayload{Data: data, Width: width, Height: height}, nil
}

// WriteText replaces the clipboard text content.
func (c *Clipboard) WriteText(text string) error {
	changed, err := c.backend.Write(FormatText, []byte(text))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	c.mu.Lock()
	c.changed = changed
	c.mu.Unlock()
	return nil
}

// Changed returns the channel of the last successful write, closed when the
// content is overwritten by another owner. It is nil before the first write.
func (c *Clipboard) Changed() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changed
}

// validatePNG checks the PNG signature and decodes the image to reject
// truncated or corrupt data.
func validatePNG(data []byte) (int, int, error) {
	if !bytes.HasPrefix(data, pngSignature) {
		return 0, 0, ErrMalformed
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	bounds := img.Bounds()
	if bounds.Empty() {
		return 0, 0, ErrMalformed
	}
	return bounds.Dx(), bounds.Dy(), nil
}
