// Package gesture maps hand tracking readings onto effect parameters before
// a tick.
package gesture

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"

	"github.com/stevecastle/fxlab/catalog"
)

// Signal is one hand tracking reading. X, Y and Pinch are in [0, 1].
type Signal struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Pinch     float64 `json:"pinch"`
	Fingers   int     `json:"fingers"`
	HandCount int     `json:"handCount"`
}

// Target is what a gesture axis drives.
type Target string

const (
	TargetIntensity Target = "intensity"
	TargetParam1    Target = "param1"
	TargetParam2    Target = "param2"
	TargetNone      Target = "none"
)

// index is the position among the effect's numeric parameters.
func (t Target) index() (int, bool) {
	switch t {
	case TargetIntensity, TargetParam1:
		return 0, true
	case TargetParam2:
		return 1, true
	default:
		return 0, false
	}
}

// UnmarshalText rejects unknown targets.
func (t *Target) UnmarshalText(b []byte) error {
	switch v := Target(b); v {
	case TargetIntensity, TargetParam1, TargetParam2, TargetNone:
		*t = v
		return nil
	default:
		return fmt.Errorf("unknown gesture target %q", b)
	}
}

// Mapping assigns a target to each gesture axis.
type Mapping struct {
	X     Target `json:"x"`
	Y     Target `json:"y"`
	Pinch Target `json:"pinch"`
}

// DefaultMapping drives intensity with x, the first parameter with y and
// the second with pinch.
func DefaultMapping() Mapping {
	return Mapping{X: TargetIntensity, Y: TargetParam1, Pinch: TargetParam2}
}

// Apply writes the gesture into settings for the first effect in chain and
// returns the keys it changed. Colors never receive gesture input. Values
// are rescaled into the parameter range and rounded to whole numbers.
func Apply(settings catalog.Settings, chain []string, sig Signal, m Mapping) []string {
	if len(chain) == 0 {
		return nil
	}
	def, ok := catalog.Lookup(chain[0])
	if !ok {
		return nil
	}
	numeric := def.NumericParams()
	if len(numeric) == 0 {
		return nil
	}
	params := settings[def.ID]
	if params == nil {
		params = make(catalog.Params)
		settings[def.ID] = params
	}

	var changed []string
	apply := func(v float64, t Target) {
		i, ok := t.index()
		if !ok || i >= len(numeric) {
			return
		}
		p := numeric[i]
		params[p.Key] = math.Floor(p.Min + v*(p.Max-p.Min) + 0.5)
		changed = append(changed, p.Key)
	}
	apply(sig.X, m.X)
	apply(sig.Y, m.Y)
	apply(sig.Pinch, m.Pinch)
	return changed
}

// Source is a live hand tracking collaborator.
type Source interface {
	Start(ctx context.Context) error
	Stop()
	Latest() (Signal, bool)
}

var _ Source = (*Latch)(nil)

// Latch holds the newest gesture reading. A nil reading means no hand.
type Latch struct {
	mu  sync.Mutex
	sig *Signal
}

// Publish stores s.
func (l *Latch) Publish(s Signal) {
	l.mu.Lock()
	l.sig = &s
	l.mu.Unlock()
}

// Clear drops the reading.
func (l *Latch) Clear() {
	l.mu.Lock()
	l.sig = nil
	l.mu.Unlock()
}

// Start lets the latch act as a Source fed by Publish. The reading is
// dropped when ctx ends.
func (l *Latch) Start(ctx context.Context) error {
	context.AfterFunc(ctx, l.Clear)
	return nil
}

// Stop drops the reading.
func (l *Latch) Stop() { l.Clear() }

// Latest returns the newest reading, if any.
func (l *Latch) Latest() (Signal, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sig == nil {
		return Signal{}, false
	}
	return *l.sig, true
}

// MarshalJSON is used by status endpoints.
func (l *Latch) MarshalJSON() ([]byte, error) {
	s, ok := l.Latest()
	if !ok {
		return []byte("null"), nil
	}
	return json.Marshal(s)
}
