package effects

import (
	"image"
	"image/color"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// faceCache holds parsed monospace faces keyed by weight and pixel size.
type faceCache struct {
	once  sync.Once
	err   error
	fonts [2]*opentype.Font

	mu    sync.Mutex
	faces map[faceKey]font.Face
}

type faceKey struct {
	bold bool
	size int
}

func newFaceCache() *faceCache {
	return &faceCache{faces: make(map[faceKey]font.Face)}
}

func (c *faceCache) face(size int, bold bool) (font.Face, error) {
	c.once.Do(func() {
		if c.fonts[0], c.err = opentype.Parse(gomono.TTF); c.err != nil {
			return
		}
		c.fonts[1], c.err = opentype.Parse(gomonobold.TTF)
	})
	if c.err != nil {
		return nil, c.err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	k := faceKey{bold, size}
	if f, ok := c.faces[k]; ok {
		return f, nil
	}
	src := c.fonts[0]
	if bold {
		src = c.fonts[1]
	}
	f, err := opentype.NewFace(src, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, err
	}
	c.faces[k] = f
	return f, nil
}

type textAlign int

const (
	alignCenter textAlign = iota // centered on (x, y)
	alignTopLeft
	alignBaseline // left edge, y is the baseline
)

// glyphWriter paints short strings directly into an image.
type glyphWriter struct {
	dst  *image.NRGBA
	face font.Face
	d    font.Drawer
}

func newGlyphWriter(dst *image.NRGBA, face font.Face) *glyphWriter {
	return &glyphWriter{
		dst:  dst,
		face: face,
		d:    font.Drawer{Dst: dst, Face: face},
	}
}

func (w *glyphWriter) draw(text string, x, y float64, c color.NRGBA, align textAlign) {
	if c.A == 0 || text == "" || text == " " {
		return
	}
	m := w.face.Metrics()
	switch align {
	case alignCenter:
		adv := w.d.MeasureString(text)
		x -= float64(adv) / 128
		y += float64(m.Ascent-m.Descent) / 128
	case alignTopLeft:
		y += float64(m.Ascent) / 64
	}
	w.d.Src = image.NewUniform(c)
	w.d.Dot = fixed.Point26_6{X: fixed.Int26_6(x * 64), Y: fixed.Int26_6(y * 64)}
	w.d.DrawString(text)
}

// alpha converts a 0..1 opacity to a byte.
func alpha(a float64) uint8 {
	return toByte(clamp01(a) * 255)
}
