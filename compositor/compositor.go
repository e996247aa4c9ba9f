// Package compositor runs an effect chain over one frame.
package compositor

import (
	"github.com/sirupsen/logrus"

	"github.com/stevecastle/fxlab/audio"
	"github.com/stevecastle/fxlab/catalog"
	"github.com/stevecastle/fxlab/effects"
	"github.com/stevecastle/fxlab/effectstate"
	"github.com/stevecastle/fxlab/surface"
)

// Kernels resolves an effect id to its kernel.
type Kernels interface {
	Lookup(id string) (effects.Effect, bool)
}

// Compositor applies chains. It holds no per-frame data, so the preview
// loop and the offline renderer can share one value as long as each drives
// its own surface and arena.
type Compositor struct {
	kernels Kernels
	log     *logrus.Entry
}

// New returns a compositor dispatching to kernels.
func New(kernels Kernels) *Compositor {
	return &Compositor{
		kernels: kernels,
		log:     logrus.WithField("component", "compositor"),
	}
}

// Tick applies chain to s in order. Ids missing from the catalog or the
// kernel set are skipped, as is any repeat of an id already applied. Stateful kernels get their slice of arena, and
// arena forgets effects that left the chain.
func (c *Compositor) Tick(s *surface.Surface, chain []string, settings catalog.Settings, t float64, sig audio.Signal, arena *effectstate.Arena) {
	if arena != nil {
		arena.Retain(chain)
	}
	sig = sig.Clamped()
	w, h := s.Width(), s.Height()
	applied := make(map[string]bool, len(chain))
	for _, id := range chain {
		if applied[id] {
			c.log.WithField("effect", id).Debug("skipping repeated effect")
			continue
		}
		applied[id] = true
		def, ok := catalog.Lookup(id)
		if !ok {
			c.log.WithField("effect", id).Debug("skipping unknown effect")
			continue
		}
		k, ok := c.kernels.Lookup(id)
		if !ok {
			c.log.WithField("effect", id).Debug("no kernel for effect")
			continue
		}
		in := effects.Input{
			Params: catalog.Resolve(def, settings[id]),
			Time:   t,
			Audio:  sig,
		}
		if arena != nil {
			in.State = arena.Get(k, w, h)
		} else if sf, ok := k.(effects.Stateful); ok {
			// One-shot call without a session: a fresh state behaves like a first frame.
			in.State = sf.NewState()
		}
		k.Apply(s, in)
	}
}
