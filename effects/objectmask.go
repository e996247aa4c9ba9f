package effects

import (
	"image"
	"sync/atomic"
	"time"

	"github.com/stevecastle/fxlab/surface"
	"golang.org/x/image/draw"
)

// MaskSource is a background segmenter. Request must return immediately.
// When segmentation of frame finishes, deliver is called with the mask
// (255 = subject) from the segmenter's goroutine. A request may be dropped
// in favour of a newer one, in which case deliver is never called.
type MaskSource interface {
	Request(frame *surface.Surface, deliver func(*image.Gray))
}

// MaskInterval is the minimum spacing between segmentation requests.
const MaskInterval = 100 * time.Millisecond

// maskSlot holds the newest mask delivered to one state. Each state owns
// its slot, so pipelines sharing a segmenter never see each other's masks.
type maskSlot struct {
	mask atomic.Pointer[image.Gray]
}

type maskState struct {
	last time.Time
	slot *maskSlot
}

func newMaskState() *maskState { return &maskState{slot: &maskSlot{}} }

// Reset swaps in an empty slot; results still in flight for the old frames
// land in the abandoned one.
func (st *maskState) Reset() {
	st.last = time.Time{}
	st.slot = &maskSlot{}
}

type objectMask struct {
	masks MaskSource
	now   func() time.Time
}

func (objectMask) ID() string { return "objectMask" }

func (objectMask) NewState() State { return newMaskState() }

// Apply tints the segmented subject with maskColor using the latest mask
// delivered for this state. It never waits for a new one.
func (o objectMask) Apply(s *surface.Surface, in Input) {
	st, ok := in.State.(*maskState)
	if !ok || o.masks == nil {
		return
	}
	intensity := in.Params.Num("intensity")
	if intensity <= 0 {
		return
	}
	if now := o.now(); st.last.IsZero() || now.Sub(st.last) > MaskInterval {
		st.last = now
		o.masks.Request(s.Clone(), st.slot.mask.Store)
	}
	m := st.slot.mask.Load()
	if m == nil {
		return
	}

	w, h := s.Width(), s.Height()
	scaled := image.NewGray(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(scaled, scaled.Bounds(), m, m.Bounds(), draw.Src, nil)
	if b := in.Params.Num("blur"); b > 0 {
		// The blurred copy is NRGBA with the gray value in every channel.
		soft := blurred(scaled, b)
		for i := range scaled.Pix {
			scaled.Pix[i] = soft.Pix[i*4]
		}
	}

	col := in.Params.Color("maskColor")
	inv := in.Params.Flag("invert")
	mix := intensity / 100
	pix := s.Pix()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := float64(scaled.Pix[y*w+x]) / 255
			if inv {
				v = 1 - v
			}
			k := v * mix
			i := (y*w + x) * 4
			pix[i] = uint8(float64(pix[i])*(1-k) + float64(col.R)*k)
			pix[i+1] = uint8(float64(pix[i+1])*(1-k) + float64(col.G)*k)
			pix[i+2] = uint8(float64(pix[i+2])*(1-k) + float64(col.B)*k)
		}
	}
}
