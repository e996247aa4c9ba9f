package effects

import "github.com/stevecastle/fxlab/surface"

type threshold struct{}

func (threshold) ID() string { return "threshold" }

// Apply maps brightness to a two-color ramp. Softness widens the hard cut
// into a linear ramp of +/- softness around the level.
func (t threshold) Apply(s *surface.Surface, in Input) {
	p := in.Params
	mid := in.Audio.Mid
	dark, light := p.Color("blackColor"), p.Color("whiteColor")
	level := p.Num("level") + mid*30
	soft := p.Num("softness")
	grain := p.Num("noise") * (1 + mid)
	inv := p.Flag("invert")
	rnd := frameRand(t.ID(), in.Time)

	lerp := func(a, b uint8, f float64) uint8 {
		return toByte(float64(a) + (float64(b)-float64(a))*f)
	}
	pix := s.Pix()
	for i := 0; i < len(pix); i += 4 {
		b := luma(pix[i], pix[i+1], pix[i+2])
		if grain > 0 {
			b += (rnd.Float64() - 0.5) * grain * 2.55
		}
		var f float64
		switch {
		case soft > 0:
			f = clamp01((b - (level - soft)) / (soft * 2))
		case b >= level:
			f = 1
		}
		if inv {
			f = 1 - f
		}
		pix[i] = lerp(dark.R, light.R, f)
		pix[i+1] = lerp(dark.G, light.G, f)
		pix[i+2] = lerp(dark.B, light.B, f)
	}
}
