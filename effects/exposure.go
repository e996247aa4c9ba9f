package effects

import (
	"math"

	"github.com/stevecastle/fxlab/surface"
)

// Blend modes for double exposure.
const (
	blendScreen = iota
	blendMultiply
	blendOverlay
	blendDifference
	blendAdd
	blendSubtract
)

type exposureState struct {
	w, h   int
	frames [][]uint8 // newest first
}

func (st *exposureState) Reset() {
	st.frames = nil
	st.w, st.h = 0, 0
}

type doubleExposure struct{}

func (doubleExposure) ID() string { return "doubleExposure" }

func (doubleExposure) NewState() State { return &exposureState{} }

// Apply blends the current frame with the one seen delay ticks earlier.
// Until that much history exists the frame passes through untouched.
func (doubleExposure) Apply(s *surface.Surface, in Input) {
	st, ok := in.State.(*exposureState)
	if !ok {
		return
	}
	w, h := s.Width(), s.Height()
	if st.w != w || st.h != h {
		st.Reset()
		st.w, st.h = w, h
	}
	boost := in.Audio.Overall
	delay := max(1, int(math.Floor(in.Params.Num("delay")*(1+boost*0.5))))

	var past []uint8
	if delay <= len(st.frames) {
		past = st.frames[delay-1]
	}
	keep := append([][]uint8{s.Snapshot()}, st.frames...)
	if len(keep) > delay {
		keep = keep[:delay]
	}
	st.frames = keep

	blend := in.Params.Num("blend")
	if past == nil || blend <= 0 {
		return
	}

	amt := blend / 100 * (1 + boost*0.3)
	tint := in.Params.Color("tint")
	tr, tg, tb := float64(tint.R)/255, float64(tint.G)/255, float64(tint.B)/255
	ox := int(in.Params.Num("offsetX") * (1 + boost))
	oy := int(in.Params.Num("offsetY") * (1 + boost))
	mode := in.Params.Int("mode")

	pix := s.Pix()
	for y := 0; y < h; y++ {
		dy := clampInt(y+oy, 0, h-1)
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			di := (dy*w + clampInt(x+ox, 0, w-1)) * 4
			for c, k := range [3]float64{tr, tg, tb} {
				a := float64(pix[i+c])
				b := float64(past[di+c]) * k
				pix[i+c] = toByte(a*(1-amt) + blendChannel(mode, a, b)*amt)
			}
		}
	}
}

func blendChannel(mode int, a, b float64) float64 {
	switch mode {
	case blendMultiply:
		return a * b / 255
	case blendOverlay:
		if a < 128 {
			return 2 * a * b / 255
		}
		return 255 - 2*(255-a)*(255-b)/255
	case blendDifference:
		return math.Abs(a - b)
	case blendAdd:
		return math.Min(255, a+b)
	case blendSubtract:
		return math.Max(0, a-b)
	default:
		return 255 - (255-a)*(255-b)/255
	}
}
