// Package effects implements the pixel kernels behind every catalog entry.
//
// Each kernel mutates a surface in place. Kernels that carry data across
// frames implement Stateful and receive their state through Input; the
// state arena that owns those objects lives in package effectstate.
package effects

import (
	"sort"
	"time"

	"github.com/stevecastle/fxlab/audio"
	"github.com/stevecastle/fxlab/catalog"
	"github.com/stevecastle/fxlab/surface"
)

// Input is everything a kernel may read besides the surface.
type Input struct {
	Params catalog.Values
	Time   float64 // seconds
	Audio  audio.Signal
	State  State // nil for stateless kernels
}

// Effect is one catalog entry's kernel.
type Effect interface {
	ID() string
	Apply(s *surface.Surface, in Input)
}

// State is per-instance data a kernel keeps between frames.
type State interface {
	// Reset drops every buffered frame so the next Apply starts fresh.
	Reset()
}

// Stateful kernels allocate their own state type.
type Stateful interface {
	Effect
	NewState() State
}

// Options wires external capabilities into the registry.
type Options struct {
	// Masks feeds the object mask kernel. Without it that kernel is a no-op.
	Masks MaskSource
	// Now is the wall clock used to throttle mask requests.
	Now func() time.Time
}

// Registry is the closed set of kernels, one per catalog definition.
type Registry struct {
	byID  map[string]Effect
	luts  *LUTCache
	faces *faceCache
}

// NewRegistry builds every kernel.
func NewRegistry(opts Options) *Registry {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	r := &Registry{
		byID:  make(map[string]Effect),
		luts:  NewLUTCache(),
		faces: newFaceCache(),
	}
	for _, e := range []Effect{
		glitch{},
		rgbShift{},
		noise{},
		vhs{},
		pixelate{},
		wave{},
		invert{},
		digits{faces: r.faces},
		binary{faces: r.faces},
		ascii{faces: r.faces},
		polarity{faces: r.faces},
		flow{},
		contour{},
		tracking{faces: r.faces},
		threshold{},
		doubleExposure{},
		glow{},
		motionMask{},
		pointTracking{},
		thermal{luts: r.luts},
		objectMask{masks: opts.Masks, now: opts.Now},
		dither{luts: r.luts},
		wireframe{},
		motionBlur{},
	} {
		r.byID[e.ID()] = e
	}
	return r
}

// Lookup returns the kernel for id.
func (r *Registry) Lookup(id string) (Effect, bool) {
	e, ok := r.byID[id]
	return e, ok
}

// IDs lists registered kernels in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LUTs exposes the palette cache shared by thermal and dither.
func (r *Registry) LUTs() *LUTCache { return r.luts }
