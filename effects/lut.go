package effects

import (
	"math"
	"sync"

	"github.com/stevecastle/fxlab/catalog"
)

// Palette is a 256-entry RGB lookup table indexed by brightness.
type Palette [256][3]uint8

// LUTCache memoizes palette construction. Tables are built once per key and
// never mutated afterwards, so a cached table is identical to a fresh one.
type LUTCache struct {
	mu     sync.Mutex
	tables map[lutKey]*Palette
	builds int
}

type lutKey struct {
	kind string
	id   int
}

// NewLUTCache returns an empty cache.
func NewLUTCache() *LUTCache {
	return &LUTCache{tables: make(map[lutKey]*Palette)}
}

// Thermal returns the thermal palette for palette index p (0 classic,
// 1 ironbow, 2 white hot, 3 rainbow).
func (c *LUTCache) Thermal(p int) *Palette {
	return c.get(lutKey{"thermal", p}, func() *Palette { return thermalPalette(p) })
}

// Tone returns the dither color ramp for a color mode (0 custom color,
// 1 sepia, 3 grayscale) indexed by quantized brightness.
func (c *LUTCache) Tone(mode int, custom catalog.RGB) *Palette {
	id := mode<<24 | int(custom.R)<<16 | int(custom.G)<<8 | int(custom.B)
	return c.get(lutKey{"tone", id}, func() *Palette { return tonePalette(mode, custom) })
}

// Builds reports how many tables have been constructed.
func (c *LUTCache) Builds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.builds
}

func (c *LUTCache) get(k lutKey, build func() *Palette) *Palette {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.tables[k]; ok {
		return t
	}
	t := build()
	c.tables[k] = t
	c.builds++
	return t
}

func thermalPalette(p int) *Palette {
	var lut Palette
	for i := 0; i < 256; i++ {
		t := float64(i) / 255
		var r, g, b float64
		switch p {
		case 0:
			switch {
			case t < 0.2:
				b = t * 5 * 255
			case t < 0.4:
				r, b = (t-0.2)*5*255, 255
			case t < 0.6:
				r, b = 255, (0.6-t)*5*255
			case t < 0.8:
				r, g = 255, (t-0.6)*5*255
			default:
				r, g, b = 255, 255, (t-0.8)*5*255
			}
		case 1:
			switch {
			case t < 0.25:
				r, b = t*512, t*512
			case t < 0.5:
				r, b = 128+(t-0.25)*508, (0.5-t)*512
			case t < 0.75:
				r, g = 255, (t-0.5)*512
			default:
				r, g = 255, 128+(t-0.75)*508
			}
		case 2:
			r, g, b = float64(i), float64(i), float64(i)
		default:
			hue := t * 300
			x := (1 - math.Abs(math.Mod(hue/60, 2)-1)) * 255
			switch {
			case hue < 60:
				r, g = 255, x
			case hue < 120:
				r, g = x, 255
			case hue < 180:
				g, b = 255, x
			case hue < 240:
				g, b = x, 255
			case hue < 300:
				r, b = x, 255
			default:
				r, b = 255, x
			}
		}
		lut[i] = [3]uint8{truncByte(r), truncByte(g), truncByte(b)}
	}
	return &lut
}

func tonePalette(mode int, custom catalog.RGB) *Palette {
	var lut Palette
	for i := 0; i < 256; i++ {
		l := float64(i)
		switch mode {
		case 0:
			n := l / 255
			lut[i] = [3]uint8{toByte(n * float64(custom.R)), toByte(n * float64(custom.G)), toByte(n * float64(custom.B))}
		case 1:
			lut[i] = [3]uint8{toByte(l * 1.2), toByte(l * 0.9), toByte(l * 0.6)}
		default:
			lut[i] = [3]uint8{uint8(i), uint8(i), uint8(i)}
		}
	}
	return &lut
}

func truncByte(v float64) uint8 {
	if v <= 0 || v != v {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
