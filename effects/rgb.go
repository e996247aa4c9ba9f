package effects

import "github.com/stevecastle/fxlab/surface"

type rgbShift struct{}

func (rgbShift) ID() string { return "rgb" }

func (rgbShift) Apply(s *surface.Surface, in Input) {
	intensity := in.Params.Num("intensity")
	if intensity <= 0 {
		return
	}
	amount := intensity / 100 * (1 + in.Audio.Overall*2)
	shiftChannels(s, int(in.Params.Num("offsetX")*amount), int(in.Params.Num("offsetY")*amount))
}

// shiftChannels samples red from (x+dx, y+dy) and blue from (x-dx, y-dy),
// clamping at the edges. Green stays put and the result is opaque.
func shiftChannels(s *surface.Surface, dx, dy int) {
	w, h := s.Width(), s.Height()
	src := s.Snapshot()
	dst := s.Pix()
	for y := 0; y < h; y++ {
		ry := clampInt(y+dy, 0, h-1) * w
		by := clampInt(y-dy, 0, h-1) * w
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			rx := clampInt(x+dx, 0, w-1)
			bx := clampInt(x-dx, 0, w-1)
			dst[i] = src[(ry+rx)*4]
			dst[i+1] = src[i+1]
			dst[i+2] = src[(by+bx)*4+2]
			dst[i+3] = 255
		}
	}
}
