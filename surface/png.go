package surface

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"time"

	"golang.org/x/image/draw"
)

var encoder = png.Encoder{CompressionLevel: png.BestCompression}

// EncodePNG writes the surface as a lossless PNG.
func (s *Surface) EncodePNG(w io.Writer) error {
	if err := encoder.Encode(w, s.img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// DecodePNG reads a PNG into a new surface. Decoding a surface written by
// EncodePNG reproduces its pixel buffer exactly.
func DecodePNG(r io.Reader) (*Surface, error) {
	img, err := png.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) && n.Stride == n.Rect.Dx()*4 {
		return &Surface{img: n}, nil
	}
	s := New(img.Bounds().Dx(), img.Bounds().Dy())
	draw.Draw(s.img, s.img.Bounds(), img, img.Bounds().Min, draw.Src)
	return s, nil
}

// StillName is the file name used for still exports.
func StillName(s *Surface, at time.Time) string {
	return fmt.Sprintf("fxlab-export-%dx%d-%d.png", s.Width(), s.Height(), at.UnixMilli())
}
