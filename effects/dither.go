package effects

import (
	"math"

	"github.com/stevecastle/fxlab/surface"
)

// Dither modes.
const (
	ditherOrdered = iota
	ditherFloyd
	ditherAtkinson
	ditherHalftone
	ditherNoise
)

var bayer4 = [4][4]float64{
	{0, 8, 2, 10},
	{12, 4, 14, 6},
	{3, 11, 1, 9},
	{15, 7, 13, 5},
}

var bayer8 = [8][8]float64{
	{0, 32, 8, 40, 2, 34, 10, 42},
	{48, 16, 56, 24, 50, 18, 58, 26},
	{12, 44, 4, 36, 14, 46, 6, 38},
	{60, 28, 52, 20, 62, 30, 54, 22},
	{3, 35, 11, 43, 1, 33, 9, 41},
	{51, 19, 59, 27, 49, 17, 57, 25},
	{15, 47, 7, 39, 13, 45, 5, 37},
	{63, 31, 55, 23, 61, 29, 53, 21},
}

type dither struct{ luts *LUTCache }

func (dither) ID() string { return "dither" }

func (d dither) Apply(s *surface.Surface, in Input) {
	p := in.Params
	w, h := s.Width(), s.Height()
	pix := s.Pix()
	levels := max(2, p.Int("colors"))
	step := 255 / float64(levels-1)
	scale := p.Int("scale")
	quant := func(v float64) float64 { return roundJS(v/step) * step }

	cf := (p.Num("contrast") - 50) / 50
	lum := make([]float64, w*h)
	for i := range lum {
		l := luma(pix[i*4], pix[i*4+1], pix[i*4+2])
		lum[i] = math.Max(0, math.Min(255, ((l/255-0.5)*(1+cf)+0.5)*255))
	}

	switch p.Int("mode") {
	case ditherOrdered:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				var t float64
				if scale > 4 {
					t = bayer8[(y/scale)%8][(x/scale)%8] / 64 * 255
				} else {
					t = bayer4[(y/scale)%4][(x/scale)%4] / 16 * 255
				}
				i := y*w + x
				lum[i] = quant(lum[i] + (t-128)/float64(levels))
			}
		}
	case ditherFloyd:
		diffuse(lum, w, h, quant, []spread{{1, 0, 7.0 / 16}, {-1, 1, 3.0 / 16}, {0, 1, 5.0 / 16}, {1, 1, 1.0 / 16}})
	case ditherAtkinson:
		diffuse(lum, w, h, quant, []spread{{1, 0, 1.0 / 8}, {2, 0, 1.0 / 8}, {-1, 1, 1.0 / 8}, {0, 1, 1.0 / 8}, {1, 1, 1.0 / 8}, {0, 2, 1.0 / 8}})
	case ditherHalftone:
		halftone(lum, w, h, scale*3)
	default:
		rnd := frameRand(d.ID(), in.Time)
		for i := range lum {
			lum[i] = quant(lum[i] + (rnd.Float64()-0.5)*(255/float64(levels)))
		}
	}

	mode := p.Int("colorMode")
	tone := d.luts.Tone(mode, p.Color("customColor"))
	for i := range lum {
		l := math.Max(0, math.Min(255, lum[i]))
		o := i * 4
		if mode == 2 {
			orig := luma(pix[o], pix[o+1], pix[o+2])
			if orig > 0 {
				k := l / orig
				pix[o] = toByte(float64(pix[o]) * k)
				pix[o+1] = toByte(float64(pix[o+1]) * k)
				pix[o+2] = toByte(float64(pix[o+2]) * k)
			}
			continue
		}
		c := tone[toByte(l)]
		pix[o], pix[o+1], pix[o+2] = c[0], c[1], c[2]
	}
}

type spread struct {
	dx, dy int
	weight float64
}

// diffuse quantizes lum in raster order, pushing each pixel's error onto
// the not-yet-visited neighbors named in kernel.
func diffuse(lum []float64, w, h int, quant func(float64) float64, kernel []spread) {
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			old := lum[i]
			lum[i] = quant(old)
			e := old - lum[i]
			for _, k := range kernel {
				nx, ny := x+k.dx, y+k.dy
				if nx < 0 || nx >= w || ny >= h {
					continue
				}
				lum[ny*w+nx] += e * k.weight
			}
		}
	}
}

// halftone replaces lum with a dot screen: each dotSize cell holds a dark
// dot whose radius grows as the area gets darker.
func halftone(lum []float64, w, h, dotSize int) {
	if dotSize < 1 {
		return
	}
	half := float64(dotSize) / 2
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			cx, cy := float64(x%dotSize)-half, float64(y%dotSize)-half
			i := y*w + x
			if math.Hypot(cx, cy) < (1-lum[i]/255)*float64(dotSize)*0.7 {
				lum[i] = 0
			} else {
				lum[i] = 255
			}
		}
	}
}
