package effects

import (
	"math"

	"github.com/stevecastle/fxlab/surface"
)

type vhs struct{}

func (vhs) ID() string { return "vhs" }

func (vhs) Apply(s *surface.Surface, in Input) {
	w, h := s.Width(), s.Height()
	if w == 0 || h == 0 {
		return
	}
	bass := in.Audio.Bass
	pix := s.Pix()

	// Tracking: the whole frame slides sideways. Columns it uncovers keep
	// their previous content.
	if tracking := in.Params.Num("tracking"); tracking > 0 {
		offset := int(math.Sin(in.Time*5) * tracking / 100 * 10 * (1 + bass))
		if offset != 0 {
			src := s.Snapshot()
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					tx := x + offset
					if tx < 0 || tx >= w {
						continue
					}
					copy(pix[(y*w+tx)*4:(y*w+tx)*4+4], src[(y*w+x)*4:(y*w+x)*4+4])
				}
			}
		}
	}

	if bleeding := in.Params.Num("bleeding"); bleeding > 0 {
		amount := bleeding / 100 * (1 + in.Audio.Overall*2)
		shiftChannels(s, int(bleeding/100*5*amount), 0)
	}

	if n := in.Params.Num("noise"); n > 0 {
		top := (math.Sin(in.Time*2)*0.5 + 0.5) * float64(h)
		bottom := top + 20*(1+bass)
		a := n / 100 * 0.3
		for y := int(math.Floor(top)); y < h && float64(y) < bottom; y++ {
			row := pix[y*w*4 : (y+1)*w*4]
			for i := 0; i < len(row); i += 4 {
				blendOver(row[i:i+4], 255, 255, 255, a)
			}
		}
	}

	for y := 0; y < h; y += 2 {
		row := pix[y*w*4 : (y+1)*w*4]
		for i := 0; i < len(row); i += 4 {
			darken(row[i:i+4], 0.1)
		}
	}
}
