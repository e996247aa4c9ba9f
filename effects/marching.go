package effects

// Segment is one isoline piece in field coordinates.
type Segment struct {
	X1, Y1, X2, Y2 float64
}

// Field is a row-major scalar grid.
type Field struct {
	W, H int
	V    []float64
}

func (f Field) at(x, y int) float64 {
	if x < 0 || y < 0 || x >= f.W || y >= f.H {
		return 0
	}
	return f.V[y*f.W+x]
}

// March runs marching squares over f at level with cells step samples wide.
// A corner counts as inside when its value is >= level. The saddle cases 5
// and 10 always emit both of their segments.
func March(f Field, level float64, step int, emit func(Segment)) {
	if step < 1 {
		step = 1
	}
	lerp := func(a, b float64) float64 {
		t := (level - a) / (b - a + 0.001)
		return clamp01(t)
	}
	for y := 0; y < f.H-step; y += step {
		for x := 0; x < f.W-step; x += step {
			tl := f.at(x, y)
			tr := f.at(x+step, y)
			bl := f.at(x, y+step)
			br := f.at(x+step, y+step)

			c := 0
			if tl >= level {
				c |= 1
			}
			if tr >= level {
				c |= 2
			}
			if br >= level {
				c |= 4
			}
			if bl >= level {
				c |= 8
			}
			if c == 0 || c == 15 {
				continue
			}

			fx, fy, s := float64(x), float64(y), float64(step)
			topX, topY := fx+lerp(tl, tr)*s, fy
			botX, botY := fx+lerp(bl, br)*s, fy+s
			leftX, leftY := fx, fy+lerp(tl, bl)*s
			rightX, rightY := fx+s, fy+lerp(tr, br)*s

			top := [2]float64{topX, topY}
			bottom := [2]float64{botX, botY}
			left := [2]float64{leftX, leftY}
			right := [2]float64{rightX, rightY}
			seg := func(a, b [2]float64) {
				emit(Segment{a[0], a[1], b[0], b[1]})
			}

			switch c {
			case 1, 14:
				seg(top, left)
			case 2, 13:
				seg(top, right)
			case 3, 12:
				seg(left, right)
			case 4, 11:
				seg(right, bottom)
			case 5:
				seg(top, right)
				seg(left, bottom)
			case 6, 9:
				seg(top, bottom)
			case 7, 8:
				seg(left, bottom)
			case 10:
				seg(top, left)
				seg(right, bottom)
			}
		}
	}
}
