package effects

import (
	"math"

	"github.com/stevecastle/fxlab/surface"
)

// Motion blur modes.
const (
	blurDirectional = iota
	blurRadial
	blurCircular
	blurEcho
	blurSmear
)

type echoState struct {
	w, h   int
	frames [][]uint8 // newest first
}

func (st *echoState) Reset() {
	st.w, st.h = 0, 0
	st.frames = nil
}

type motionBlur struct{}

func (motionBlur) ID() string { return "motionBlur" }

func (motionBlur) NewState() State { return &echoState{} }

// mapping returns where output pixel (x, y) samples from in source space.
type mapping func(x, y float64) (float64, float64)

// layer is one translucent copy of a frame stacked onto the result.
type layer struct {
	src   []uint8
	at    mapping
	alpha float64
}

func (mb motionBlur) Apply(s *surface.Surface, in Input) {
	p := in.Params
	intensity := p.Num("intensity")
	if intensity <= 0 {
		return
	}
	st, _ := in.State.(*echoState)
	w, h := s.Width(), s.Height()
	strength := intensity / 100 * (1 + in.Audio.Overall*0.5)
	n := max(3, min(p.Int("samples"), 15))
	cx, cy := p.Num("centerX")/100*float64(w), p.Num("centerY")/100*float64(h)
	fade := p.Flag("fadeOut")
	tint := p.Color("tint")
	mode := p.Int("mode")
	frame := s.Snapshot()

	weight := func(v, spread float64) float64 {
		if fade {
			return math.Max(0.05, (1-math.Abs(v)*spread)/float64(n)*2)
		}
		return math.Max(0.05, 1/float64(n))
	}

	var layers []layer
	additive := false
	switch mode {
	case blurDirectional, blurSmear:
		rad := p.Num("angle") * math.Pi / 180
		reach := strength * 30
		if mode == blurSmear {
			reach = strength * 40
			additive = !tint.White()
		}
		for i := 0; i < n; i++ {
			t := float64(i) / float64(n-1)
			a := weight(t-0.5, 1.5)
			if mode == blurDirectional {
				t -= 0.5
			} else if fade {
				a = math.Max(0.05, (1-t)*0.8/float64(n)*3)
			} else {
				a = math.Max(0.05, 0.5/float64(n)*3)
			}
			ox, oy := math.Cos(rad)*reach*t, math.Sin(rad)*reach*t
			layers = append(layers, layer{frame, func(x, y float64) (float64, float64) { return x - ox, y - oy }, a})
		}
	case blurRadial:
		for i := 0; i < n; i++ {
			t := float64(i) / float64(n-1)
			k := 1 + (t-0.5)*strength*0.3
			layers = append(layers, layer{frame, func(x, y float64) (float64, float64) {
				return cx + (x-cx)/k, cy + (y-cy)/k
			}, weight(t-0.5, 1.8)})
		}
	case blurCircular:
		for i := 0; i < n; i++ {
			t := float64(i)/float64(n-1) - 0.5
			sin, cos := math.Sincos(-strength * 0.1 * t)
			layers = append(layers, layer{frame, func(x, y float64) (float64, float64) {
				dx, dy := x-cx, y-cy
				return cx + dx*cos - dy*sin, cy + dx*sin + dy*cos
			}, weight(t, 1.5)})
		}
	case blurEcho:
		if st == nil {
			return
		}
		if st.w != w || st.h != h {
			st.Reset()
			st.w, st.h = w, h
		}
		keep := min(n, 10)
		st.frames = append([][]uint8{frame}, st.frames...)
		if len(st.frames) > keep {
			st.frames = st.frames[:keep]
		}
		count := float64(len(st.frames))
		for i := len(st.frames) - 1; i >= 0; i-- {
			a := strength / count
			if fade {
				a = (count - float64(i)) / count * strength
			}
			layers = append(layers, layer{st.frames[i], nil, math.Max(0.1, a)})
		}
	default:
		return
	}

	stack(s, layers, additive)

	if !tint.White() && mode != blurEcho {
		pix := s.Pix()
		for i := 0; i < len(pix); i += 4 {
			for c, t := range [3]uint8{tint.R, tint.G, tint.B} {
				v := float64(pix[i+c])
				pix[i+c] = toByte(v*0.7 + v*float64(t)/255*0.3)
			}
		}
	}
}

// stack draws layers oldest first onto an empty canvas and writes the
// resulting color into s. Source-over stacking of opaque layers reduces to
// a weighted mean, so the frame keeps its own alpha. Additive stacking sums
// the layers instead.
func stack(s *surface.Surface, layers []layer, additive bool) {
	w, h := s.Width(), s.Height()
	pix := s.Pix()
	var acc [3]float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			acc = [3]float64{}
			cover := 0.0
			for _, l := range layers {
				a := math.Min(1, l.alpha)
				sx, sy := x, y
				if l.at != nil {
					fx, fy := l.at(float64(x), float64(y))
					sx = clampInt(int(math.Floor(fx+0.5)), 0, w-1)
					sy = clampInt(int(math.Floor(fy+0.5)), 0, h-1)
				}
				j := (sy*w + sx) * 4
				for c := 0; c < 3; c++ {
					if additive {
						acc[c] += float64(l.src[j+c]) * a
					} else {
						acc[c] = acc[c]*(1-a) + float64(l.src[j+c])*a
					}
				}
				if additive {
					cover = math.Min(1, cover+a)
				} else {
					cover = cover*(1-a) + a
				}
			}
			if cover <= 0 {
				continue
			}
			i := (y*w + x) * 4
			for c := 0; c < 3; c++ {
				pix[i+c] = toByte(acc[c] / cover)
			}
		}
	}
}
