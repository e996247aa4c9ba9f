package effects

import (
	"image/color"
	"math"

	"github.com/stevecastle/fxlab/catalog"
	"github.com/stevecastle/fxlab/surface"
)

var background = color.NRGBA{R: 0x0a, G: 0x0a, B: 0x0f, A: 0xff}

func rgba8(r, g, b, a uint8) color.NRGBA {
	return color.NRGBA{R: r, G: g, B: b, A: a}
}

// cell is one sampled grid position of a glyph mosaic.
type cell struct {
	x, y    float64 // top-left of the cell
	r, g, b uint8
}

// sampleGrid walks the surface in stepX x stepY cells and reports the pixel
// at each cell's top-left corner. Samples are taken before fn paints, so
// callers must snapshot when they draw into the same surface.
func sampleGrid(src []uint8, w, h int, stepX, stepY float64, fn func(cell)) {
	if stepX <= 0 || stepY <= 0 {
		return
	}
	for y := 0.0; y < float64(h); y += stepY {
		py := min(int(y), h-1)
		for x := 0.0; x < float64(w); x += stepX {
			px := min(int(x), w-1)
			i := (py*w + px) * 4
			fn(cell{x: x, y: y, r: src[i], g: src[i+1], b: src[i+2]})
		}
	}
}

type digits struct{ faces *faceCache }

func (digits) ID() string { return "digits" }

func (d digits) Apply(s *surface.Surface, in Input) {
	size := max(6, int(math.Floor(in.Params.Num("size")*(1+in.Audio.Mid*0.3))))
	face, err := d.faces.face(size, true)
	if err != nil {
		return
	}
	w, h := s.Width(), s.Height()
	src := s.Snapshot()
	s.Fill(background)

	contrast := 1 + in.Params.Num("contrast")/50
	mode := in.Params.Int("colorMode")
	stepX, stepY := float64(size)*0.8, float64(size)
	gw := newGlyphWriter(s.Image(), face)
	sampleGrid(src, w, h, stepX, stepY, func(c cell) {
		bright := catalog.Clamp((luma(c.r, c.g, c.b)-128)*contrast+128, 0, 255)
		ch := string(rune('0' + min(9, int(bright*0.0392))))
		a := alpha(0.3 + bright*0.00275)
		var col color.NRGBA
		switch mode {
		case 0:
			col = rgba8(0, 255, 136, a)
		case 1:
			col = rgba8(0, 255, 255, a)
		case 2:
			col = rgba8(c.r, c.g, c.b, 255)
		default:
			r, g, b := hsl(c.x/float64(w)*360+in.Time*50, 1, 0.6)
			col = rgba8(toByte(r*255), toByte(g*255), toByte(b*255), 255)
		}
		gw.draw(ch, c.x+stepX/2, c.y+stepY/2, col, alignCenter)
	})
}

type binary struct{ faces *faceCache }

func (binary) ID() string { return "binary" }

func (b binary) Apply(s *surface.Surface, in Input) {
	size := max(8, int(math.Floor(in.Params.Num("size")*(1+in.Audio.High*0.2))))
	face, err := b.faces.face(size, false)
	if err != nil {
		return
	}
	w, h := s.Width(), s.Height()
	src := s.Snapshot()
	pix := s.Pix()
	for i := 0; i < len(pix); i += 4 {
		blendOver(pix[i:i+4], background.R, background.G, background.B, 0.95)
	}

	threshold := (100 - in.Params.Num("density")) * 2.55
	animated := in.Params.Flag("animated")
	gw := newGlyphWriter(s.Image(), face)
	sampleGrid(src, w, h, float64(size)*0.7, float64(size)*1.2, func(c cell) {
		bright := (float64(c.r) + float64(c.g) + float64(c.b)) * 0.333
		if bright <= threshold {
			return
		}
		var on bool
		if animated {
			on = math.Sin(in.Time*5+c.x*0.1+c.y*0.1) > 0
		} else {
			on = bright > 128
		}
		bit := "0"
		if on {
			bit = "1"
		}
		green := uint8(min(255, int(100+bright*0.6)))
		gw.draw(bit, c.x, c.y, rgba8(0, green, green>>1, alpha(0.3+bright*0.00275)), alignTopLeft)
	})
}

var asciiRamp = []rune(" .:-=+*#%@")

type ascii struct{ faces *faceCache }

func (ascii) ID() string { return "ascii" }

// Apply paints a character ramp. Charset 0 is text from the ramp; charset 1
// uses shade blocks and charset 2 dots and circles, both drawn as shapes.
func (a ascii) Apply(s *surface.Surface, in Input) {
	size := max(6, int(math.Floor(in.Params.Num("size")*(1+in.Audio.Overall*0.2))))
	face, err := a.faces.face(size, false)
	if err != nil {
		return
	}
	w, h := s.Width(), s.Height()
	src := s.Snapshot()
	inv := in.Params.Flag("invert")
	if inv {
		s.Fill(rgba8(0xe0, 0xe0, 0xe0, 0xff))
	} else {
		s.Fill(background)
	}

	charset := min(2, in.Params.Int("charset"))
	levels := []int{len(asciiRamp), 5, 9}[charset]
	stepX, stepY := float64(size)*0.7, float64(size)

	gw := newGlyphWriter(s.Image(), face)
	var ov *overlay
	if charset > 0 {
		ov = newOverlay(s)
	}
	sampleGrid(src, w, h, stepX, stepY, func(c cell) {
		bright := luma(c.r, c.g, c.b)
		if inv {
			bright = 255 - bright
		}
		idx := int(bright / 255 * (float64(levels) - 0.01))
		opacity := 0.5 + bright*0.00196
		col := catalog.RGB{R: c.r, G: c.g, B: c.b}
		if inv {
			col = catalog.RGB{R: uint8(float64(c.r) * 0.3), G: uint8(float64(c.g) * 0.3), B: uint8(float64(c.b) * 0.3)}
		}
		cx, cy := c.x+stepX/2, c.y+stepY/2
		switch charset {
		case 0:
			gw.draw(string(asciiRamp[idx]), cx, cy, rgba8(col.R, col.G, col.B, alpha(opacity)), alignCenter)
		case 1:
			if idx == 0 {
				return
			}
			// Shade blocks cover a quarter more of the cell per step.
			ov.rgba(col, opacity*float64(idx)/4)
			ov.fillRect(c.x, c.y, stepX, stepY)
		default:
			if idx == 0 {
				return
			}
			ov.rgba(col, opacity)
			shapeGlyph(ov, idx, cx, cy, stepY*0.45)
		}
	})
	if ov != nil {
		ov.flush(s)
	}
}

// shapeGlyph draws step idx of the dot ramp: · • ● ○ ◐ ◑ ◒ ◓.
func shapeGlyph(ov *overlay, idx int, cx, cy, r float64) {
	dc := ov.dc
	switch idx {
	case 1:
		ov.dot(cx, cy, r*0.2)
	case 2:
		ov.dot(cx, cy, r*0.45)
	case 3:
		ov.dot(cx, cy, r*0.8)
	case 4:
		dc.SetLineWidth(max(1, r*0.15))
		dc.DrawCircle(cx, cy, r*0.75)
		ov.stroke()
	default:
		// Half-filled circles, rotating through left, right, bottom, top.
		dc.SetLineWidth(max(1, r*0.15))
		dc.DrawCircle(cx, cy, r*0.75)
		ov.stroke()
		rr := r * 0.75
		switch idx {
		case 5:
			ov.fillRect(cx-rr, cy-rr, rr, 2*rr)
		case 6:
			ov.fillRect(cx, cy-rr, rr, 2*rr)
		case 7:
			ov.fillRect(cx-rr, cy, 2*rr, rr)
		default:
			ov.fillRect(cx-rr, cy-rr, 2*rr, rr)
		}
	}
}

type polarity struct{ faces *faceCache }

func (polarity) ID() string { return "polarity" }

var polaritySchemes = [3][2]catalog.RGB{
	{{R: 0x00, G: 0xff, B: 0xff}, {R: 0xff, G: 0x33, B: 0x66}},
	{{R: 0x00, G: 0xff, B: 0x88}, {R: 0xff, G: 0x00, B: 0xff}},
	{{R: 0xff, G: 0xff, B: 0x00}, {R: 0x88, G: 0x00, B: 0xff}},
}

func (p polarity) Apply(s *surface.Surface, in Input) {
	size := max(8, int(math.Floor(in.Params.Num("size")*(1+in.Audio.Bass*0.3))))
	face, err := p.faces.face(size, true)
	if err != nil {
		return
	}
	w, h := s.Width(), s.Height()
	src := s.Snapshot()
	s.Fill(background)

	mid := in.Params.Num("threshold") * 2.55
	mode := in.Params.Int("colorMode")
	stepX, stepY := float64(size)*0.9, float64(size)
	gw := newGlyphWriter(s.Image(), face)
	sampleGrid(src, w, h, stepX, stepY, func(c cell) {
		bright := luma(c.r, c.g, c.b)
		positive := bright > mid
		opacity := 0.3 + math.Abs(bright-mid)*0.00275
		sym := "-"
		if positive {
			sym = "+"
		}
		var col color.NRGBA
		if mode >= 3 {
			col = rgba8(c.r, c.g, c.b, alpha(opacity+0.2))
		} else {
			pick := polaritySchemes[mode][1]
			if positive {
				pick = polaritySchemes[mode][0]
			}
			col = rgba8(pick.R, pick.G, pick.B, alpha(opacity))
		}
		gw.draw(sym, c.x+stepX/2, c.y+stepY/2, col, alignCenter)
	})
}
