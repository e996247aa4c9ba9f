package effects

import "github.com/stevecastle/fxlab/surface"

type thermal struct{ luts *LUTCache }

func (thermal) ID() string { return "thermal" }

// Apply maps contrast-adjusted brightness through a palette and mixes the
// result over the frame.
func (t thermal) Apply(s *surface.Surface, in Input) {
	intensity := in.Params.Num("intensity")
	if intensity <= 0 {
		return
	}
	if b := in.Params.Num("blur"); b > 0 {
		copy(s.Pix(), blurred(s.Image(), b).Pix)
	}
	lut := t.luts.Thermal(in.Params.Int("palette"))
	contrast := in.Params.Num("contrast") / 50
	mix := intensity / 100
	gain := 1 + in.Audio.Overall*0.3

	pix := s.Pix()
	for i := 0; i < len(pix); i += 4 {
		b := luma(pix[i], pix[i+1], pix[i+2])
		b = ((b/255-0.5)*contrast + 0.5) * 255 * gain
		c := lut[clampInt(int(b), 0, 255)]
		pix[i] = toByte(float64(pix[i])*(1-mix) + float64(c[0])*mix)
		pix[i+1] = toByte(float64(pix[i+1])*(1-mix) + float64(c[1])*mix)
		pix[i+2] = toByte(float64(pix[i+2])*(1-mix) + float64(c[2])*mix)
	}
}
