package catalog

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Params maps a parameter key to its current value: a number (any Go
// numeric type, json.Number or numeric string) or a hex color string.
type Params map[string]any

// Settings maps an effect id to the parameters the caller set for it.
type Settings map[string]Params

// Clone returns a deep copy of s.
func (s Settings) Clone() Settings {
	out := make(Settings, len(s))
	for id, p := range s {
		cp := make(Params, len(p))
		for k, v := range p {
			cp[k] = v
		}
		out[id] = cp
	}
	return out
}

// RGB is an opaque 8-bit color.
type RGB struct {
	R, G, B uint8
}

// White reports whether the color is #ffffff.
func (c RGB) White() bool {
	return c.R == 255 && c.G == 255 && c.B == 255
}

// Hex formats the color as #rrggbb.
func (c RGB) Hex() string {
	const digits = "0123456789abcdef"
	b := []byte{'#', 0, 0, 0, 0, 0, 0}
	for i, v := range []uint8{c.R, c.G, c.B} {
		b[1+i*2] = digits[v>>4]
		b[2+i*2] = digits[v&0x0f]
	}
	return string(b)
}

// ParseHex parses "#rgb" or "#rrggbb" (the leading # is optional).
func ParseHex(s string) (RGB, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(s) {
	case 3:
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	case 6:
	default:
		return RGB{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return RGB{}, false
	}
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, true
}

// Values is a fully resolved parameter set: every schema key present,
// numbers clamped into range and colors parsed.
type Values struct {
	nums   map[string]float64
	colors map[string]RGB
}

// Num returns the numeric value for key, or 0 when the key is unknown.
func (v Values) Num(key string) float64 {
	return v.nums[key]
}

// Int truncates the numeric value toward zero.
func (v Values) Int(key string) int {
	return int(v.nums[key])
}

// Flag reports whether a numeric value is non-zero.
func (v Values) Flag(key string) bool {
	return v.nums[key] != 0
}

// Color returns the parsed color for key, black when unknown.
func (v Values) Color(key string) RGB {
	return v.colors[key]
}

// Params returns the values as plain parameters: numbers as float64 and
// colors as #rrggbb.
func (v Values) Params() Params {
	p := make(Params, len(v.nums)+len(v.colors))
	for k, n := range v.nums {
		p[k] = n
	}
	for k, c := range v.colors {
		p[k] = c.Hex()
	}
	return p
}

// MarshalJSON encodes the values as a flat object keyed by parameter.
func (v Values) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Params())
}

// Resolve merges raw over the schema defaults of d. Values that cannot be
// interpreted fall back to the default; numbers are clamped to [Min, Max].
func Resolve(d Definition, raw Params) Values {
	v := Values{
		nums:   make(map[string]float64, len(d.Params)),
		colors: make(map[string]RGB),
	}
	for _, p := range d.Params {
		if p.Kind == KindColor {
			def, _ := ParseHex(p.DefaultColor)
			c := def
			if s, ok := raw[p.Key].(string); ok {
				if parsed, ok := ParseHex(s); ok {
					c = parsed
				}
			}
			v.colors[p.Key] = c
			continue
		}
		n, ok := toFloat(raw[p.Key])
		if !ok {
			n = p.Default
		}
		v.nums[p.Key] = Clamp(n, p.Min, p.Max)
	}
	return v
}

// Clamp limits x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint8:
		f = float64(n)
	case bool:
		if n {
			f = 1
		}
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
