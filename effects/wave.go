package effects

import (
	"math"

	"github.com/stevecastle/fxlab/surface"
)

type wave struct{}

func (wave) ID() string { return "wave" }

// Apply shifts two-row bands sideways along a sine. Pixels a band moves
// away from become transparent.
func (wave) Apply(s *surface.Surface, in Input) {
	amplitude := in.Params.Num("amplitude")
	if amplitude <= 0 {
		return
	}
	amp := amplitude / 100 * 30 * (1 + in.Audio.Mid)
	freq := in.Params.Num("frequency") / 500
	phase := in.Time * (in.Params.Num("speed") / 50)

	w, h := s.Width(), s.Height()
	src := s.Snapshot()
	pix := s.Pix()
	clear(pix)
	for y := 0; y < h; y += 2 {
		offset := int(math.Round(math.Sin(float64(y)*freq+phase) * amp))
		for row := y; row < y+2 && row < h; row++ {
			base := row * w * 4
			for x := 0; x < w; x++ {
				tx := x + offset
				if tx < 0 || tx >= w {
					continue
				}
				copy(pix[base+tx*4:base+tx*4+4], src[base+x*4:base+x*4+4])
			}
		}
	}
}
