package gesture

import "math"

// Point is a normalized landmark position.
type Point struct {
	X, Y float64
}

// Hand is the 21-point landmark set of one detected hand.
type Hand struct {
	Landmarks  [21]Point `json:"landmarks"`
	Handedness string    `json:"handedness"`
}

// Landmark indices.
const (
	wrist     = 0
	thumbTip  = 4
	indexMCP  = 5
	indexTip  = 8
	middleMCP = 9
	ringMCP   = 13
	pinkyMCP  = 17
)

func (h Hand) palm() Point {
	var p Point
	for _, i := range []int{wrist, indexMCP, middleMCP, ringMCP, pinkyMCP} {
		p.X += h.Landmarks[i].X
		p.Y += h.Landmarks[i].Y
	}
	return Point{p.X / 5, p.Y / 5}
}

func (h Hand) pinchDistance() float64 {
	a, b := h.Landmarks[thumbTip], h.Landmarks[indexTip]
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// ExtendedFingers counts raised fingers. The thumb counts when it sits away
// from the wrist horizontally; other fingers when their tip is above their
// knuckle.
func (h Hand) ExtendedFingers() int {
	n := 0
	if math.Abs(h.Landmarks[thumbTip].X-h.Landmarks[wrist].X) > 0.1 {
		n++
	}
	for _, f := range [][2]int{{8, 5}, {12, 9}, {16, 13}, {20, 17}} {
		if h.Landmarks[f[0]].Y < h.Landmarks[f[1]].Y-0.02 {
			n++
		}
	}
	return n
}

// FromHands reduces detected hands to a Signal. The right hand leads when
// present, otherwise the first one. X is mirrored so moving right raises it.
// Without hands the axes rest at the center and pinch at zero.
func FromHands(hands []Hand) Signal {
	if len(hands) == 0 {
		return Signal{X: 0.5, Y: 0.5}
	}
	primary := hands[0]
	for _, h := range hands {
		if h.Handedness == "Right" {
			primary = h
			break
		}
	}
	palm := primary.palm()
	pinch := 1 - primary.pinchDistance()*10
	return Signal{
		X:         1 - palm.X,
		Y:         palm.Y,
		Pinch:     math.Max(0, math.Min(1, pinch)),
		Fingers:   primary.ExtendedFingers(),
		HandCount: len(hands),
	}
}
