package effects

import (
	"math"

	"github.com/gogpu/gg"
	"github.com/stevecastle/fxlab/surface"
)

type trackedPoint struct {
	x, y, vx, vy float64
	intensity    float64
}

type pointState struct {
	sw, sh int
	prev   []uint8
	points []trackedPoint
}

func (st *pointState) Reset() {
	st.sw, st.sh = 0, 0
	st.prev = nil
	st.points = nil
}

type pointTracking struct{}

func (pointTracking) ID() string { return "pointTracking" }

func (pointTracking) NewState() State { return &pointState{} }

// Apply follows feature points that sit on moving pixels. Motion is sampled
// on a half-resolution copy; points that go still fade and respawn on
// another moving area, or hide when none is found.
func (pt pointTracking) Apply(s *surface.Surface, in Input) {
	st, ok := in.State.(*pointState)
	if !ok {
		return
	}
	p := in.Params
	w, h := s.Width(), s.Height()
	sw, sh := w/2, h/2
	if sw < 1 || sh < 1 {
		return
	}
	const scale = 0.5
	small := shrink(s.Image(), sw, sh).Pix
	rnd := frameRand(pt.ID(), in.Time)
	fw, fh := float64(w), float64(h)

	n := p.Int("points")
	if st.sw != sw || st.sh != sh || st.prev == nil || len(st.points) != n {
		st.Reset()
		st.sw, st.sh = sw, sh
		st.prev = small
		st.points = make([]trackedPoint, n)
		for i := range st.points {
			st.points[i] = trackedPoint{x: rnd.Float64() * fw, y: rnd.Float64() * fh, intensity: 1}
		}
	}

	cutoff := (101 - p.Num("sensitivity")) * 2
	for i := range st.points {
		q := &st.points[i]
		sx, sy := int(q.x*scale), int(q.y*scale)
		best, bdx, bdy := 0.0, 0, 0
		for dy := -5; dy <= 5; dy += 2 {
			for dx := -5; dx <= 5; dx += 2 {
				x, y := sx+dx, sy+dy
				if x < 0 || x >= sw || y < 0 || y >= sh {
					continue
				}
				if m := diff3(small, st.prev, (y*sw+x)*4); m > best && m > cutoff {
					best, bdx, bdy = m, dx, dy
				}
			}
		}
		if best > cutoff {
			q.vx, q.vy = float64(bdx)*0.8, float64(bdy)*0.8
			q.intensity = math.Min(1, best/80)
		} else {
			q.vx *= 0.5
			q.vy *= 0.5
			q.intensity *= 0.7
		}
		q.x += q.vx / scale
		q.y += q.vy / scale

		if q.intensity < 0.3 || q.x < 0 || q.x >= fw || q.y < 0 || q.y >= fh {
			respawned := false
			for attempt := 0; attempt < 20; attempt++ {
				rx, ry := int(rnd.Float64()*float64(sw)), int(rnd.Float64()*float64(sh))
				if diff3(small, st.prev, (ry*sw+rx)*4) > cutoff*1.2 {
					*q = trackedPoint{x: float64(rx) / scale, y: float64(ry) / scale, intensity: 1}
					respawned = true
					break
				}
			}
			if !respawned {
				q.intensity = 0
			}
		}
	}
	copy(st.prev, small)

	var active []trackedPoint
	for _, q := range st.points {
		if q.intensity >= 0.4 {
			active = append(active, q)
		}
	}
	if len(active) == 0 {
		return
	}

	ov := newOverlay(s)
	ov.rgba(p.Color("dotColor"), 1)
	if p.Flag("connections") && len(active) > 1 {
		maxDist := p.Num("maxDistance")
		ov.dc.SetLineWidth(p.Num("lineWidth"))
		ov.dc.SetLineCap(gg.LineCapRound)
		ov.dc.SetLineJoin(gg.LineJoinRound)
		for i, a := range active {
			for _, b := range active[i+1:] {
				dx, dy := b.x-a.x, b.y-a.y
				dist := math.Hypot(dx, dy)
				if dist <= 0 || dist >= maxDist {
					continue
				}
				// Bend each link sideways by a stable, position-derived amount.
				bend := math.Sin(a.x*0.1+b.y*0.1) * math.Min(dist*0.15, 25)
				cx := (a.x+b.x)/2 - dy/dist*bend
				cy := (a.y+b.y)/2 + dx/dist*bend
				ov.dc.MoveTo(a.x, a.y)
				ov.dc.QuadraticTo(cx, cy, b.x, b.y)
				ov.stroke()
			}
		}
	}
	r := p.Num("dotSize") * (1 + in.Audio.Overall*0.3)
	for _, q := range active {
		ov.dot(q.x, q.y, r)
	}
	ov.flush(s)
}
