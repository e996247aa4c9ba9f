package effects

import (
	"math"

	"github.com/stevecastle/fxlab/surface"
)

type wireframe struct{}

func (wireframe) ID() string { return "wireframe" }

// Apply lifts a brightness height field into 3D, rotates it about the Y
// then X axes, projects it with the given focal distance and strokes the
// mesh. There is no hidden-line removal.
func (wireframe) Apply(s *surface.Surface, in Input) {
	p := in.Params
	w, h := s.Width(), s.Height()
	grid := max(15, p.Int("gridSize"))
	cols, rows := w/grid, h/grid
	if cols < 1 || rows < 1 {
		return
	}
	depth := p.Num("depth")
	pix := s.Pix()

	heights := make([]float64, (cols+1)*(rows+1))
	for y := 0; y <= rows; y++ {
		for x := 0; x <= cols; x++ {
			i := (min(y*grid, h-1)*w + min(x*grid, w-1)) * 4
			heights[y*(cols+1)+x] = (float64(pix[i]) + float64(pix[i+1]) + float64(pix[i+2])) * 0.00131 * depth
		}
	}

	bg := p.Color("bgColor")
	s.Fill(rgba8(bg.R, bg.G, bg.B, 255))

	ax, ay := p.Num("rotateX")*0.01745, p.Num("rotateY")*0.01745
	cosX, sinX := math.Cos(ax), math.Sin(ax)
	cosY, sinY := math.Cos(ay), math.Sin(ay)
	focal := p.Num("perspective")
	cx, cy := float64(w)/2, float64(h)/2
	meshW, meshH := float64(cols*grid)/2, float64(rows*grid)/2

	project := func(gx, gy int) (float64, float64) {
		px := float64(gx*grid) - meshW
		py := float64(gy*grid) - meshH
		pz := heights[gy*(cols+1)+gx] - depth/2
		x1 := px*cosY - pz*sinY
		z1 := px*sinY + pz*cosY
		y1 := py*cosX - z1*sinX
		z2 := py*sinX + z1*cosX
		k := focal / (focal + z2)
		return cx + x1*k, cy + y1*k
	}

	line := p.Color("lineColor")
	ov := newOverlay(s)

	if p.Flag("fill") {
		ov.rgba(line, 0.15)
		for y := 0; y < rows-1; y++ {
			for x := 0; x < cols-1; x++ {
				x0, y0 := project(x, y)
				x1, y1 := project(x+1, y)
				x2, y2 := project(x+1, y+1)
				x3, y3 := project(x, y+1)
				polyline(ov.dc, x0, y0, x1, y1, x2, y2, x3, y3)
				ov.dc.ClosePath()
				ov.fill()
			}
		}
	}

	ov.rgba(line, 1)
	ov.dc.SetLineWidth(1)
	if p.Flag("dotted") {
		ov.dc.SetDash(2, 4)
	}
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			sx, sy := project(x, y)
			if x < cols-1 {
				ex, ey := project(x+1, y)
				ov.segment(sx, sy, ex, ey)
			}
			if y < rows-1 {
				ex, ey := project(x, y+1)
				ov.segment(sx, sy, ex, ey)
			}
		}
	}
	ov.stroke()
	ov.flush(s)
}
