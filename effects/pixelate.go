package effects

import (
	"math"
	"sort"

	"github.com/stevecastle/fxlab/surface"
)

type pixelate struct{}

func (pixelate) ID() string { return "pixelate" }

type block struct {
	r, g, b uint8
	luma    float64
}

// Apply averages square blocks. When sorting is above zero a share of the
// block rows has its bright runs (luma >= threshold) reordered by luma.
func (pixelate) Apply(s *surface.Surface, in Input) {
	size := max(2, int(math.Floor(in.Params.Num("size")*(1+in.Audio.Bass))))
	sorting := in.Params.Num("sorting")
	threshold := in.Params.Num("threshold")
	w, h := s.Width(), s.Height()
	pix := s.Pix()

	cols := (w + size - 1) / size
	row := make([]block, cols)
	for by, rowIdx := 0, 0; by < h; by, rowIdx = by+size, rowIdx+1 {
		for c := 0; c < cols; c++ {
			bx := c * size
			var r, g, b, n int
			for y := by; y < by+size && y < h; y++ {
				for x := bx; x < bx+size && x < w; x++ {
					i := (y*w + x) * 4
					r += int(pix[i])
					g += int(pix[i+1])
					b += int(pix[i+2])
					n++
				}
			}
			avg := block{r: uint8(r / n), g: uint8(g / n), b: uint8(b / n)}
			avg.luma = luma(avg.r, avg.g, avg.b)
			row[c] = avg
		}

		if sorting > 0 && float64(rowIdx*37%100) < sorting {
			sortBrightRuns(row, threshold)
		}

		for c := 0; c < cols; c++ {
			bx := c * size
			for y := by; y < by+size && y < h; y++ {
				for x := bx; x < bx+size && x < w; x++ {
					i := (y*w + x) * 4
					pix[i], pix[i+1], pix[i+2] = row[c].r, row[c].g, row[c].b
				}
			}
		}
	}
}

func sortBrightRuns(row []block, threshold float64) {
	start := -1
	for i := 0; i <= len(row); i++ {
		bright := i < len(row) && row[i].luma >= threshold
		switch {
		case bright && start < 0:
			start = i
		case !bright && start >= 0:
			run := row[start:i]
			sort.SliceStable(run, func(a, b int) bool { return run[a].luma < run[b].luma })
			start = -1
		}
	}
}
