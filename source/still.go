package source

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/stevecastle/fxlab/surface"
)

// Still is a single image presented as a zero-length source.
type Still struct {
	frame *surface.Surface
}

// OpenStill decodes the image at path.
func OpenStill(path string) (*Still, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInputUnavailable, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrInputUnavailable, path, err)
	}
	return NewStill(img), nil
}

// NewStill wraps an already decoded image.
func NewStill(img image.Image) *Still {
	return &Still{frame: surface.FromImage(img)}
}

func (s *Still) Duration() float64 { return 0 }

func (s *Still) Size() (int, int) { return s.frame.Width(), s.frame.Height() }

// Seek is a no-op; a still has the same frame at every time.
func (s *Still) Seek(context.Context, float64) error { return nil }

// Draw copies the image into dst, scaling when sizes differ.
func (s *Still) Draw(dst *surface.Surface) error {
	if dst.SameSize(s.frame) {
		return dst.CopyFrom(s.frame)
	}
	dst.DrawScaled(s.frame.Image())
	return nil
}

func (s *Still) Pause() func() { return func() {} }

func (s *Still) Close() error { return nil }
