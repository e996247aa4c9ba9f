package effects

import (
	"cmp"
	"fmt"
	"image/color"
	"math"
	"slices"
	"time"

	"github.com/gogpu/gg"
	"github.com/stevecastle/fxlab/catalog"
	"github.com/stevecastle/fxlab/surface"
)

type tracking struct{ faces *faceCache }

func (tracking) ID() string { return "tracking" }

type target struct {
	x, y, w, h float64
	contrast   float64
	id         int
}

// findTargets scores an 8x8-ish grid of cells by brightness spread and
// keeps the n most contrasted cells above threshold.
func findTargets(pix []uint8, w, h, n int, threshold float64, jitter func() float64) []target {
	if n == 0 {
		return nil
	}
	grid := min(w, h) / 8
	if grid < 1 {
		return nil
	}
	var found []target
	for gy := 0; gy < h; gy += grid {
		for gx := 0; gx < w; gx += grid {
			lo, hi := 255.0, 0.0
			for y := gy; y < min(gy+grid, h); y += 4 {
				for x := gx; x < min(gx+grid, w); x += 4 {
					i := (y*w + x) * 4
					b := (float64(pix[i]) + float64(pix[i+1]) + float64(pix[i+2])) / 3
					lo, hi = math.Min(lo, b), math.Max(hi, b)
				}
			}
			if hi-lo > threshold {
				g := float64(grid)
				found = append(found, target{
					x:        float64(gx) + g/2,
					y:        float64(gy) + g/2,
					w:        g * (0.8 + jitter()*0.4),
					h:        g * (0.8 + jitter()*0.4),
					contrast: hi - lo,
					id:       int(jitter()*9000 + 1000),
				})
			}
		}
	}
	slices.SortStableFunc(found, func(a, b target) int { return cmp.Compare(b.contrast, a.contrast) })
	if len(found) > n {
		found = found[:n]
	}
	return found
}

func (t tracking) Apply(s *surface.Surface, in Input) {
	p := in.Params
	w, h := s.Width(), s.Height()
	if w == 0 || h == 0 {
		return
	}
	boost := in.Audio.Overall
	src := s.Snapshot()

	if o := p.Num("overlay"); o > 0 {
		pix := s.Pix()
		for i := 0; i < len(pix); i += 4 {
			darken(pix[i:i+4], o/100)
		}
	}

	rnd := frameRand(t.ID(), in.Time)
	targets := findTargets(src, w, h, p.Int("targets"), p.Num("sensitivity"), rnd.Float64)
	main, accent := p.Color("mainColor"), p.Color("accentColor")
	fw, fh := float64(w), float64(h)

	var shift float64
	if p.Flag("glitch") {
		shift = math.Sin(in.Time*10) * 3 * (1 + boost)
	}

	ov := newOverlay(s)
	dc := ov.dc

	if p.Flag("scanline") {
		scanY := math.Mod(in.Time*100*(1+boost), fh)
		ov.rgba(accent, 0.4)
		ov.fillRect(0, scanY, fw, 2)
		// Soft glow fading out 20px either side of the line.
		for d := -20; d < 20; d += 2 {
			ov.rgba(accent, 0.4*0.1*(1-math.Abs(float64(d)+1)/20))
			ov.fillRect(0, scanY+float64(d), fw, 2)
		}
	}

	if p.Flag("grid") {
		ov.rgba(main, 0.1)
		dc.SetLineWidth(0.5)
		for x := 0.0; x < fw; x += 50 {
			ov.segment(x, 0, x, fh)
		}
		for y := 0.0; y < fh; y += 50 {
			ov.segment(0, y, fw, y)
		}
		ov.stroke()
	}

	type label struct {
		text string
		x, y float64
		size int
		col  color.NRGBA
	}
	var labels []label
	text := func(str string, x, y float64, size int, c catalog.RGB, a float64) {
		labels = append(labels, label{str, x, y, size, rgba8(c.R, c.G, c.B, alpha(a))})
	}

	for idx, tg := range targets {
		x, y := tg.x, tg.y
		hw, hh := tg.w/2, tg.h/2
		corner := math.Min(tg.w, tg.h) * 0.2
		pulse := math.Sin(in.Time*3+float64(idx))*0.3 + 0.7
		scale := 1 + boost*0.2
		dc.SetLineWidth(2)

		if p.Flag("brackets") {
			ov.rgba(main, pulse)
			l, r, tp, bt := x-hw+shift, x+hw+shift, y-hh, y+hh
			polyline(dc, l, tp+corner, l, tp, l+corner, tp)
			polyline(dc, r-corner, tp, r, tp, r, tp+corner)
			polyline(dc, r, bt-corner, r, bt, r-corner, bt)
			polyline(dc, l+corner, bt, l, bt, l, bt-corner)
			ov.stroke()
		}

		if p.Flag("crosshairs") {
			cs := 8 * scale
			ov.rgba(accent, pulse)
			ov.segment(x-cs, y, x+cs, y)
			ov.segment(x, y-cs, x, y+cs)
			ov.stroke()
			ov.dot(x, y, 3)
		}

		if p.Flag("dots") {
			r := 3 * scale
			orbit := math.Min(hw, hh) * 0.8
			for d := 0; d < 8; d++ {
				angle := float64(d)/8*2*math.Pi + in.Time*2 + float64(idx)
				c := main
				if d%2 == 1 {
					c = accent
				}
				ov.rgba(c, pulse*(math.Sin(in.Time*5+float64(d))*0.3+0.7))
				ov.dot(x+math.Cos(angle)*orbit+shift, y+math.Sin(angle)*orbit, r)
			}
			dc.SetLineWidth(1)
			for _, c := range [][2]float64{{-hw, -hh}, {hw, -hh}, {hw, hh}, {-hw, hh}} {
				ov.rgba(accent, pulse*0.9)
				dc.DrawCircle(x+c[0]+shift, y+c[1], r*1.2)
				_ = dc.FillPreserve()
				ov.rgba(main, pulse*0.9)
				ov.stroke()
			}
			ov.rgba(main, pulse*0.9)
			for _, m := range [][2]float64{{0, -hh}, {hw, 0}, {0, hh}, {-hw, 0}} {
				ov.dot(x+m[0]+shift, y+m[1], r*0.8)
			}
			dc.SetLineWidth(2)
		}

		if p.Flag("labels") {
			text(fmt.Sprintf("ID:%d", tg.id), x-hw+shift, y-hh-8, 10, main, 0.9)
			text(fmt.Sprintf("X:%d Y:%d", int(x), int(y)), x-hw+shift, y+hh+15, 10, main, 0.9)
			status := "TRACKING"
			if tg.contrast > 100 {
				status = "LOCKED"
			}
			text(status, x+hw-50+shift, y-hh-8, 10, main, 0.9)
		}

		if p.Flag("lines") && idx < 3 {
			ov.rgba(main, 0.4)
			dc.SetDash(4, 4)
			ov.segment(x+hw, y, fw-10, 30+float64(idx)*60)
			ov.stroke()
			dc.ClearDash()
		}

		if p.Flag("databoxes") && idx < 3 {
			by := 15 + float64(idx)*60
			ov.rgba(accent, 0.8*0.1)
			ov.fillRect(fw-120, by, 110, 50)
			ov.rgba(accent, 0.8)
			ov.strokeRect(fw-120, by, 110, 50)
			text(fmt.Sprintf("TARGET %d", idx+1), fw-115, 30+float64(idx)*60, 9, main, 0.8)
			text(fmt.Sprintf("CONF: %d%%", int(tg.contrast/2)), fw-115, 42+float64(idx)*60, 9, accent, 0.8)
			text(fmt.Sprintf("SIZE: %dx%d", int(tg.w), int(tg.h)), fw-115, 54+float64(idx)*60, 9, main, 0.8)
		}
	}

	if p.Flag("frame") {
		const c = 40
		ov.rgba(accent, 0.6)
		dc.SetLineWidth(2)
		polyline(dc, 0, c, 0, 0, c, 0)
		polyline(dc, fw-c, 0, fw, 0, fw, c)
		polyline(dc, fw, fh-c, fw, fh, fw-c, fh)
		polyline(dc, c, fh, 0, fh, 0, fh-c)
		ov.stroke()
	}

	if p.Flag("timestamp") {
		elapsed := time.Duration(in.Time * float64(time.Second))
		text("REC ● "+formatClock(elapsed), 10, fh-10, 11, accent, 0.8)
		text(fmt.Sprintf("%d TARGETS DETECTED", len(targets)), 10, 20, 11, main, 0.8)
	}

	ov.flush(s)

	for _, l := range labels {
		face, err := t.faces.face(l.size, false)
		if err != nil {
			return
		}
		newGlyphWriter(s.Image(), face).draw(l.text, l.x, l.y, l.col, alignBaseline)
	}
}

// polyline adds an open path through the given x, y pairs.
func polyline(dc *gg.Context, xy ...float64) {
	dc.MoveTo(xy[0], xy[1])
	for i := 2; i+1 < len(xy); i += 2 {
		dc.LineTo(xy[i], xy[i+1])
	}
}

func formatClock(d time.Duration) string {
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d.%03d", ms/3600000, ms/60000%60, ms/1000%60, ms%1000)
}
