package effects

import (
	"hash/fnv"
	"image"
	"math"
	"math/rand/v2"

	"github.com/disintegration/gift"
	"github.com/stevecastle/fxlab/catalog"
)

func luma(r, g, b uint8) float64 {
	return float64(r)*0.299 + float64(g)*0.587 + float64(b)*0.114
}

// toByte stores a float the way an 8-bit clamped buffer does: NaN is 0,
// halves round to even and the result saturates at 0 and 255.
func toByte(v float64) uint8 {
	if v != v || v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.RoundToEven(v))
}

// roundJS rounds halves toward positive infinity.
func roundJS(v float64) float64 {
	return math.Floor(v + 0.5)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float64) float64 {
	return catalog.Clamp(v, 0, 1)
}

// frameRand returns a generator that yields the same sequence for the same
// effect at the same frame time.
func frameRand(id string, t float64) *rand.Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return rand.New(rand.NewPCG(h.Sum64(), uint64(int64(math.Round(t*1000)))))
}

// blurred returns a gaussian-blurred copy of src.
func blurred(src image.Image, sigma float64) *image.NRGBA {
	g := gift.New(gift.GaussianBlur(float32(sigma)))
	dst := image.NewNRGBA(g.Bounds(src.Bounds()))
	g.Draw(dst, src)
	return dst
}

// shrink resamples src down to w x h.
func shrink(src image.Image, w, h int) *image.NRGBA {
	g := gift.New(gift.Resize(w, h, gift.LinearResampling))
	dst := image.NewNRGBA(g.Bounds(src.Bounds()))
	g.Draw(dst, src)
	return dst
}

func hsl(h, s, l float64) (r, g, b float64) {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	c := (1 - math.Abs(2*l-1)) * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := l - c/2
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return r + m, g + m, b + m
}
