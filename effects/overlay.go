package effects

import (
	"github.com/gogpu/gg"
	"github.com/stevecastle/fxlab/catalog"
	"github.com/stevecastle/fxlab/surface"
)

// overlay is a transparent vector layer drawn with gg and then composited
// over a surface.
type overlay struct {
	dc *gg.Context
}

func newOverlay(s *surface.Surface) *overlay {
	return &overlay{dc: gg.NewContext(s.Width(), s.Height())}
}

func (o *overlay) rgba(c catalog.RGB, a float64) {
	o.dc.SetRGBA(float64(c.R)/255, float64(c.G)/255, float64(c.B)/255, clamp01(a))
}

func (o *overlay) segment(x1, y1, x2, y2 float64) {
	o.dc.MoveTo(x1, y1)
	o.dc.LineTo(x2, y2)
}

func (o *overlay) stroke() {
	_ = o.dc.Stroke()
}

func (o *overlay) fill() {
	_ = o.dc.Fill()
}

func (o *overlay) fillRect(x, y, w, h float64) {
	o.dc.DrawRectangle(x, y, w, h)
	_ = o.dc.Fill()
}

func (o *overlay) strokeRect(x, y, w, h float64) {
	o.dc.DrawRectangle(x, y, w, h)
	_ = o.dc.Stroke()
}

func (o *overlay) dot(x, y, r float64) {
	o.dc.DrawCircle(x, y, r)
	_ = o.dc.Fill()
}

// flush composites the layer over s and releases the context.
func (o *overlay) flush(s *surface.Surface) {
	s.Composite(o.dc.Image())
	_ = o.dc.Close()
}
