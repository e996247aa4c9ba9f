// Package effectstate owns the per-effect state objects of one pipeline
// session.
package effectstate

import (
	"sync"

	"github.com/stevecastle/fxlab/effects"
)

type entry struct {
	state effects.State
	w, h  int
}

// Arena maps effect ids to their state. States are created on first use,
// reset when the surface size changes and discarded when the effect leaves
// the chain or the session restarts.
type Arena struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New returns an empty arena.
func New() *Arena {
	return &Arena{entries: make(map[string]*entry)}
}

// Get returns the state for e on a w x h surface, creating it if needed.
// Stateless effects get nil.
func (a *Arena) Get(e effects.Effect, w, h int) effects.State {
	sf, ok := e.(effects.Stateful)
	if !ok {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	en, ok := a.entries[e.ID()]
	if !ok {
		en = &entry{state: sf.NewState(), w: w, h: h}
		a.entries[e.ID()] = en
		return en.state
	}
	if en.w != w || en.h != h {
		en.state.Reset()
		en.w, en.h = w, h
	}
	return en.state
}

// Retain drops the state of every effect not in chain.
func (a *Arena) Retain(chain []string) {
	keep := make(map[string]struct{}, len(chain))
	for _, id := range chain {
		keep[id] = struct{}{}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for id := range a.entries {
		if _, ok := keep[id]; !ok {
			delete(a.entries, id)
		}
	}
}

// Reset discards everything. Call it when new media is loaded.
func (a *Arena) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.entries)
}

// Has reports whether id currently holds state.
func (a *Arena) Has(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.entries[id]
	return ok
}

// Len returns the number of live states.
func (a *Arena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}
