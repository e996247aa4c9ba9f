package effects

import (
	"math"

	"github.com/gogpu/gg"
	"github.com/stevecastle/fxlab/catalog"
	"github.com/stevecastle/fxlab/surface"
)

// lumaField converts an image buffer into a brightness field.
func lumaField(pix []uint8, w, h int) Field {
	f := Field{W: w, H: h, V: make([]float64, w*h)}
	for i := range f.V {
		f.V[i] = luma(pix[i*4], pix[i*4+1], pix[i*4+2])
	}
	return f
}

type flow struct{}

func (flow) ID() string { return "flow" }

// Apply draws a relief map: isolines of a blurred half-resolution
// brightness field on white paper.
func (flow) Apply(s *surface.Surface, in Input) {
	w, h := s.Width(), s.Height()
	sw, sh := w/2, h/2
	if sw < 2 || sh < 2 {
		return
	}
	smooth := max(1, int(math.Floor((100-in.Params.Num("length"))/20)))
	small := blurred(shrink(s.Image(), sw, sh), float64(smooth))
	field := lumaField(small.Pix, sw, sh)

	s.Fill(rgba8(255, 255, 255, 255))

	levels := int(math.Floor(5 + in.Params.Num("density")/100*20 + in.Audio.Mid*5))
	opacity := in.Params.Num("alpha") / 100
	if opacity == 0 {
		opacity = 1
	}
	ov := newOverlay(s)
	ov.dc.SetLineWidth(max(0.5, in.Params.Num("thickness")/3))
	ov.dc.SetLineCap(gg.LineCapRound)
	ov.dc.SetLineJoin(gg.LineJoinRound)
	ov.rgba(catalog.RGB{R: 26, G: 26, B: 46}, opacity)

	scaleX, scaleY := float64(w)/float64(sw), float64(h)/float64(sh)
	drift := in.Time * (in.Params.Num("speed") / 50) * 5
	for lv := 0; lv < levels; lv++ {
		level := float64(lv)/float64(levels)*255 + math.Mod(drift, 255/float64(levels))
		March(field, level, 2, func(sg Segment) {
			ov.segment(sg.X1*scaleX, sg.Y1*scaleY, sg.X2*scaleX, sg.Y2*scaleY)
		})
		ov.stroke()
	}
	ov.flush(s)
}

type contour struct{}

func (contour) ID() string { return "contour" }

// Apply marks where a half-resolution brightness field crosses each level
// along the horizontal and vertical grid edges.
func (contour) Apply(s *surface.Surface, in Input) {
	w, h := s.Width(), s.Height()
	sw, sh := w/2, h/2
	if sw < 2 || sh < 2 {
		return
	}
	small := shrink(s.Image(), sw, sh)
	field := make([]float64, sw*sh)
	for i := range field {
		p := small.Pix[i*4 : i*4+3]
		field[i] = math.Floor((float64(p[0]) + float64(p[1]) + float64(p[2])) * 0.333)
	}

	s.Fill(background)

	boost := in.Audio.Overall
	levels := min(12, int(math.Floor(in.Params.Num("levels")*(1+boost*0.3))))
	step := max(2, int(math.Floor(float64(sw)/(in.Params.Num("smoothness")*4))))
	colorful := in.Params.Flag("colorful")

	ov := newOverlay(s)
	ov.dc.SetLineWidth(1 + boost*2)
	ov.dc.SetLineCap(gg.LineCapRound)
	for lv := 0; lv < levels; lv++ {
		frac := float64(lv) / float64(levels)
		level := frac * 255
		if colorful {
			r, g, b := hsl(frac*300+in.Time*20, 1, 0.6)
			ov.dc.SetRGBA(r, g, b, 0.8)
		} else {
			ov.dc.SetRGBA(0, 1, 1, 0.3+frac*0.5)
		}
		for y := 0; y < sh-step; y += step {
			for x := 0; x < sw-step; x += step {
				b1 := field[y*sw+x]
				b2 := field[y*sw+x+step]
				b3 := field[(y+step)*sw+x]
				if (b1 < level) != (b2 < level) {
					t := (level - b1) / (b2 - b1 + 0.001)
					px, py := (float64(x)+t*float64(step))*2, float64(y)*2
					ov.segment(px, py, px+1, py+1)
				}
				if (b1 < level) != (b3 < level) {
					t := (level - b1) / (b3 - b1 + 0.001)
					px, py := float64(x)*2, (float64(y)+t*float64(step))*2
					ov.segment(px, py, px+1, py+1)
				}
			}
		}
		ov.stroke()
	}
	ov.flush(s)
}
