package effects

import (
	"math"

	"github.com/stevecastle/fxlab/surface"
)

// diff3 is the mean absolute RGB difference of the pixels at i.
func diff3(a, b []uint8, i int) float64 {
	d := absDiff(a[i], b[i]) + absDiff(a[i+1], b[i+1]) + absDiff(a[i+2], b[i+2])
	return float64(d) / 3
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

type motionMaskState struct {
	w, h    int
	prev    []uint8
	history []float64
}

func (st *motionMaskState) Reset() {
	st.w, st.h = 0, 0
	st.prev = nil
	st.history = nil
}

type motionMask struct{}

func (motionMask) ID() string { return "motionMask" }

func (motionMask) NewState() State { return &motionMaskState{} }

// Apply keeps blocks whose pixels changed since the previous frame and fades
// the rest toward black. Motion decays by a fixed ratio per tick once a
// block goes still, which leaves trails.
func (motionMask) Apply(s *surface.Surface, in Input) {
	st, ok := in.State.(*motionMaskState)
	if !ok {
		return
	}
	p := in.Params
	w, h := s.Width(), s.Height()
	pix := s.Pix()
	if st.w != w || st.h != h || st.prev == nil {
		st.Reset()
		st.w, st.h = w, h
		st.prev = s.Snapshot()
	}

	size := max(5, p.Int("blockSize"))
	cols := (w + size - 1) / size
	rows := (h + size - 1) / size
	if len(st.history) != cols*rows {
		st.history = make([]float64, cols*rows)
	}
	cutoff := (101 - p.Num("sensitivity")) * 3
	decay := 1 - p.Num("trail")/100*0.3

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			var sum float64
			n := 0
			for y := r * size; y < min((r+1)*size, h); y += 2 {
				for x := c * size; x < min((c+1)*size, w); x += 2 {
					sum += diff3(pix, st.prev, (y*w+x)*4) * 3
					n++
				}
			}
			k := r*cols + c
			if n > 0 && sum/float64(n)/3 > cutoff {
				st.history[k] = 1
			} else {
				st.history[k] *= decay
			}
		}
	}
	copy(st.prev, pix)

	fade := p.Num("fade") / 100
	inv := p.Flag("invert")
	for y := 0; y < h; y++ {
		row := y / size * cols
		for x := 0; x < w; x++ {
			m := st.history[row+x/size]
			if inv {
				m = 1 - m
			}
			vis := math.Min(1, m+fade*(1-m))
			i := (y*w + x) * 4
			pix[i] = toByte(float64(pix[i]) * vis)
			pix[i+1] = toByte(float64(pix[i+1]) * vis)
			pix[i+2] = toByte(float64(pix[i+2]) * vis)
		}
	}

	if !p.Flag("showBorders") {
		return
	}
	border := p.Color("borderColor")
	ov := newOverlay(s)
	ov.dc.SetLineWidth(1)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			m := st.history[r*cols+c]
			if m <= 0.1 {
				continue
			}
			bx, by := c*size, r*size
			bw, bh := min(size, w-bx), min(size, h-by)
			ov.rgba(border, math.Min(1, m*0.8))
			ov.strokeRect(float64(bx)+0.5, float64(by)+0.5, float64(bw-1), float64(bh-1))
		}
	}
	ov.flush(s)
}
