// Package catalog holds the fixed set of effect definitions and their
// parameter schemas. It carries no behavior beyond exposing ranges,
// defaults, and resolving caller supplied values against them.
package catalog

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrUnknownEffect is returned for ids missing from the catalog.
	ErrUnknownEffect = errors.New("unknown effect")
	// ErrDuplicateEffect is returned when a chain names an effect twice.
	ErrDuplicateEffect = errors.New("effect repeated in chain")
)

// Kind is the type of a single effect parameter.
type Kind int

const (
	KindNumber Kind = iota
	KindFlag
	KindColor
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindFlag:
		return "flag"
	case KindColor:
		return "color"
	default:
		return "unknown"
	}
}

// MarshalText lets Kind serialize as its name in JSON payloads.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Param describes one tunable value of an effect.
type Param struct {
	Key          string  `json:"key"`
	Kind         Kind    `json:"kind"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Default      float64 `json:"default"`
	DefaultColor string  `json:"defaultColor,omitempty"`
}

// Numeric reports whether the parameter holds a number (flags included).
func (p Param) Numeric() bool {
	return p.Kind != KindColor
}

// Definition is an immutable effect description.
type Definition struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Icon        string  `json:"icon"`
	Description string  `json:"description"`
	Params      []Param `json:"params"`
	// Strength names the parameter whose minimum turns the effect into an
	// exact no-op. Empty when no such parameter exists.
	Strength string `json:"strength,omitempty"`
}

// Param returns the schema entry for key.
func (d Definition) Param(key string) (Param, bool) {
	for _, p := range d.Params {
		if p.Key == key {
			return p, true
		}
	}
	return Param{}, false
}

// NumericParams returns the non-color parameters in declaration order.
func (d Definition) NumericParams() []Param {
	out := make([]Param, 0, len(d.Params))
	for _, p := range d.Params {
		if p.Numeric() {
			out = append(out, p)
		}
	}
	return out
}

// Defaults returns a Params value with every schema default filled in.
func (d Definition) Defaults() Params {
	out := make(Params, len(d.Params))
	for _, p := range d.Params {
		if p.Kind == KindColor {
			out[p.Key] = p.DefaultColor
			continue
		}
		out[p.Key] = p.Default
	}
	return out
}

var byID map[string]Definition

func init() {
	byID = make(map[string]Definition, len(definitions))
	for _, d := range definitions {
		byID[d.ID] = d
	}
}

// Lookup returns the definition for an effect id.
func Lookup(id string) (Definition, bool) {
	d, ok := byID[id]
	return d, ok
}

// CheckChain verifies that every id in chain is known and appears once.
// Effect state is keyed by id, so a chain cannot hold two instances.
func CheckChain(chain []string) error {
	seen := make(map[string]bool, len(chain))
	for _, id := range chain {
		if _, ok := byID[id]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownEffect, id)
		}
		if seen[id] {
			return fmt.Errorf("%w: %q", ErrDuplicateEffect, id)
		}
		seen[id] = true
	}
	return nil
}

// All returns every definition in catalog order.
func All() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// IDs returns the effect ids sorted alphabetically.
func IDs() []string {
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func num(key string, lo, hi, def float64) Param {
	return Param{Key: key, Kind: KindNumber, Min: lo, Max: hi, Default: def}
}

func flag(key string, def float64) Param {
	return Param{Key: key, Kind: KindFlag, Min: 0, Max: 1, Default: def}
}

func color(key, def string) Param {
	return Param{Key: key, Kind: KindColor, DefaultColor: def}
}
