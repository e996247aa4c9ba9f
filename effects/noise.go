package effects

import (
	"math"

	"github.com/stevecastle/fxlab/surface"
)

type noise struct{}

func (noise) ID() string { return "noise" }

func (n noise) Apply(s *surface.Surface, in Input) {
	amount := in.Params.Num("amount")
	if amount <= 0 {
		return
	}
	k := amount / 100 * (1 + in.Audio.Overall)
	pix := s.Pix()

	switch in.Params.Int("type") {
	case 0, 1:
		spread := 255.0 // static
		if in.Params.Int("type") == 1 {
			spread = 50 // film grain
		}
		rnd := frameRand(n.ID(), in.Time)
		for i := 0; i < len(pix); i += 4 {
			d := (rnd.Float64() - 0.5) * spread * k
			pix[i] = toByte(float64(pix[i]) + d)
			pix[i+1] = toByte(float64(pix[i+1]) + d)
			pix[i+2] = toByte(float64(pix[i+2]) + d)
		}
	default:
		phase := 0.0
		if in.Params.Flag("animated") {
			phase = in.Time * 10
		}
		w := s.Width()
		for y := 0; y < s.Height(); y++ {
			scan := math.Sin(float64(y)*0.5+phase)*0.5 + 0.5
			f := 1 - scan*k*0.5
			row := pix[y*w*4 : (y+1)*w*4]
			for i := 0; i < len(row); i += 4 {
				row[i] = toByte(float64(row[i]) * f)
				row[i+1] = toByte(float64(row[i+1]) * f)
				row[i+2] = toByte(float64(row[i+2]) * f)
			}
		}
	}
}
