// Package surface provides the RGBA raster that flows through an effect
// chain. Pixels are stored non-premultiplied, four bytes per pixel.
package surface

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"

	"golang.org/x/image/draw"
)

// ErrSizeMismatch is returned when two surfaces of different dimensions are
// combined.
var ErrSizeMismatch = errors.New("surface dimensions differ")

// Surface is a mutable width x height RGBA8 buffer.
type Surface struct {
	img *image.NRGBA
}

// New allocates a transparent surface.
func New(width, height int) *Surface {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Surface{img: image.NewNRGBA(image.Rect(0, 0, width, height))}
}

// FromImage converts img into a new surface of the same size.
func FromImage(img image.Image) *Surface {
	b := img.Bounds()
	s := New(b.Dx(), b.Dy())
	draw.Draw(s.img, s.img.Bounds(), img, b.Min, draw.Src)
	return s
}

// Width returns the surface width in pixels.
func (s *Surface) Width() int { return s.img.Rect.Dx() }

// Height returns the surface height in pixels.
func (s *Surface) Height() int { return s.img.Rect.Dy() }

// Pixels returns the number of pixels.
func (s *Surface) Pixels() int { return s.Width() * s.Height() }

// Pix exposes the backing buffer. Row stride is always Width()*4.
func (s *Surface) Pix() []uint8 { return s.img.Pix }

// Image exposes the surface as a drawable image sharing the same buffer.
func (s *Surface) Image() *image.NRGBA { return s.img }

// SameSize reports whether o has the same dimensions as s.
func (s *Surface) SameSize(o *Surface) bool {
	return o != nil && s.Width() == o.Width() && s.Height() == o.Height()
}

// Clone returns an independent copy.
func (s *Surface) Clone() *Surface {
	c := New(s.Width(), s.Height())
	copy(c.img.Pix, s.img.Pix)
	return c
}

// CopyFrom overwrites the pixels of s with those of src.
func (s *Surface) CopyFrom(src *Surface) error {
	if !s.SameSize(src) {
		return fmt.Errorf("copy %dx%d into %dx%d: %w", src.Width(), src.Height(), s.Width(), s.Height(), ErrSizeMismatch)
	}
	copy(s.img.Pix, src.img.Pix)
	return nil
}

// Snapshot copies the pixel bytes out of the surface.
func (s *Surface) Snapshot() []uint8 {
	out := make([]uint8, len(s.img.Pix))
	copy(out, s.img.Pix)
	return out
}

// Fill paints every pixel with c.
func (s *Surface) Fill(c color.NRGBA) {
	p := s.img.Pix
	for i := 0; i+3 < len(p); i += 4 {
		p[i], p[i+1], p[i+2], p[i+3] = c.R, c.G, c.B, c.A
	}
}

// Clear makes every pixel transparent black.
func (s *Surface) Clear() {
	clear(s.img.Pix)
}

// DrawScaled draws src scaled to cover the whole surface.
func (s *Surface) DrawScaled(src image.Image) {
	if src.Bounds().Dx() == s.Width() && src.Bounds().Dy() == s.Height() {
		draw.Draw(s.img, s.img.Bounds(), src, src.Bounds().Min, draw.Src)
		return
	}
	draw.CatmullRom.Scale(s.img, s.img.Bounds(), src, src.Bounds(), draw.Src, nil)
}

// Composite blends an overlay on top of the surface with source-over.
func (s *Surface) Composite(overlay image.Image) {
	draw.Draw(s.img, s.img.Bounds(), overlay, overlay.Bounds().Min, draw.Over)
}

// Offset returns the byte index of pixel (x, y).
func (s *Surface) Offset(x, y int) int {
	return (y*s.Width() + x) * 4
}

// ReadFrom replaces the pixel buffer with exactly Width*Height*4 bytes of
// raw RGBA read from r.
func (s *Surface) ReadFrom(r io.Reader) (int64, error) {
	n, err := io.ReadFull(r, s.img.Pix)
	return int64(n), err
}

// WriteTo writes the raw RGBA pixel buffer to w.
func (s *Surface) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(s.img.Pix)
	return int64(n), err
}
