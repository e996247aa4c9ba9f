package effects

import (
	"math"

	"github.com/stevecastle/fxlab/surface"
)

type invert struct{}

func (invert) ID() string { return "invert" }

func (invert) Apply(s *surface.Surface, in Input) {
	amount := in.Params.Num("amount")
	if amount <= 0 {
		return
	}
	a := amount / 100 * (1 + in.Audio.High*0.5)
	threshold := in.Params.Num("threshold")
	mode := in.Params.Int("mode")
	tint := math.Sin(in.Time) * 30

	pix := s.Pix()
	for i := 0; i < len(pix); i += 4 {
		r, g, b := float64(pix[i]), float64(pix[i+1]), float64(pix[i+2])
		switch mode {
		case 0:
			pix[i] = toByte(r + (255-2*r)*a)
			pix[i+1] = toByte(g + (255-2*g)*a)
			pix[i+2] = toByte(b + (255-2*b)*a)
		default:
			if (r+g+b)/3 > threshold {
				pix[i], pix[i+1], pix[i+2] = 255-pix[i], 255-pix[i+1], 255-pix[i+2]
			}
			if mode == 2 {
				// Solarize drifts the red channel over time.
				pix[i] = toByte(float64(pix[i]) + tint)
			}
		}
	}
}
