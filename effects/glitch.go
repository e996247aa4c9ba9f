package effects

import (
	"math"

	"github.com/stevecastle/fxlab/surface"
)

type glitch struct{}

func (glitch) ID() string { return "glitch" }

func (g glitch) Apply(s *surface.Surface, in Input) {
	intensity := in.Params.Num("intensity")
	if intensity <= 0 {
		return
	}
	bass := in.Audio.Bass
	amount := intensity / 100 * (1 + bass)
	w, h := s.Width(), s.Height()
	if w == 0 || h == 0 {
		return
	}
	rnd := frameRand(g.ID(), in.Time)
	pix := s.Pix()
	original := s.Snapshot()

	// Horizontal slices displaced sideways.
	slices := int(math.Floor(in.Params.Num("sliceCount") * amount))
	stride := w * 4
	for i := 0; i < slices; i++ {
		y := int(rnd.Float64() * float64(h))
		sh := int(rnd.Float64()*20 + 5)
		offset := int(math.Floor((rnd.Float64() - 0.5) * 50 * amount))
		if y+sh > h {
			sh = h - y
		}
		band := make([]uint8, sh*stride)
		copy(band, pix[y*stride:(y+sh)*stride])
		for row := 0; row < sh; row++ {
			src := band[row*stride : (row+1)*stride]
			dst := pix[(y+row)*stride : (y+row+1)*stride]
			for x := 0; x < w; x++ {
				tx := x + offset
				if tx < 0 || tx >= w {
					continue
				}
				copy(dst[tx*4:tx*4+4], src[x*4:x*4+4])
			}
		}
	}

	if cs := in.Params.Num("colorShift"); cs > 0 {
		shift := int(math.Floor(cs / 100 * 10 * (1 + bass)))
		shifted := s.Snapshot()
		for i := 0; i < len(pix); i += 4 {
			if ri := i + shift*4; ri < len(original) {
				shifted[i] = original[ri]
			}
			if bi := i - shift*4; bi >= 0 {
				shifted[i+2] = original[bi+2]
			}
		}
		copy(pix, shifted)
	}

	// Scanlines: 10% black over two rows of every four.
	for y := 0; y < h; y += 4 {
		for yy := y; yy < y+2 && yy < h; yy++ {
			row := pix[yy*stride : (yy+1)*stride]
			for i := 0; i < len(row); i += 4 {
				darken(row[i:i+4], 0.1)
			}
		}
	}
}

// darken composites black at opacity a over a non-premultiplied pixel.
func darken(p []uint8, a float64) {
	sa := float64(p[3]) / 255
	outA := a + sa*(1-a)
	if outA <= 0 {
		return
	}
	k := sa * (1 - a) / outA
	p[0] = toByte(float64(p[0]) * k)
	p[1] = toByte(float64(p[1]) * k)
	p[2] = toByte(float64(p[2]) * k)
	p[3] = toByte(outA * 255)
}

// blendOver composites an opaque-colored paint at opacity a over p.
func blendOver(p []uint8, r, g, b uint8, a float64) {
	sa := float64(p[3]) / 255
	outA := a + sa*(1-a)
	if outA <= 0 {
		return
	}
	mix := func(src, dst uint8) uint8 {
		return toByte((float64(src)*a + float64(dst)*sa*(1-a)) / outA)
	}
	p[0] = mix(r, p[0])
	p[1] = mix(g, p[1])
	p[2] = mix(b, p[2])
	p[3] = toByte(outA * 255)
}
