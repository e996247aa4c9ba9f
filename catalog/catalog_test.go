package catalog

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogHasEveryEffect(t *testing.T) {
	want := []string{
		"ascii", "binary", "contour", "digits", "dither", "doubleExposure", "flow", "glitch",
		"glow", "invert", "motionBlur", "motionMask", "noise", "objectMask", "pixelate",
		"pointTracking", "polarity", "rgb", "thermal", "threshold", "tracking", "vhs",
		"wave", "wireframe",
	}
	assert.Equal(t, want, IDs())
	assert.Len(t, All(), 24)
}

func TestDefinitionsAreWellFormed(t *testing.T) {
	for _, d := range All() {
		t.Run(d.ID, func(t *testing.T) {
			require.NotEmpty(t, d.Params)
			seen := map[string]bool{}
			for _, p := range d.Params {
				assert.False(t, seen[p.Key], "duplicate key %s", p.Key)
				seen[p.Key] = true
				if p.Kind == KindColor {
					_, ok := ParseHex(p.DefaultColor)
					assert.True(t, ok, "bad default color for %s", p.Key)
					continue
				}
				assert.LessOrEqual(t, p.Min, p.Default, p.Key)
				assert.LessOrEqual(t, p.Default, p.Max, p.Key)
			}
			if d.Strength != "" {
				p, ok := d.Param(d.Strength)
				require.True(t, ok, "strength key %s missing", d.Strength)
				assert.True(t, p.Numeric())
			}
		})
	}
}

func TestLookupUnknown(t *testing.T) {
	_, ok := Lookup("sparkles")
	assert.False(t, ok)
}

func TestCheckChain(t *testing.T) {
	tests := []struct {
		name  string
		chain []string
		want  error
	}{
		{"empty", nil, nil},
		{"distinct", []string{"glitch", "invert", "rgb"}, nil},
		{"unknown", []string{"glitch", "sparkle"}, ErrUnknownEffect},
		{"repeated", []string{"invert", "glitch", "invert"}, ErrDuplicateEffect},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckChain(tt.chain)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestResolve(t *testing.T) {
	d, ok := Lookup("threshold")
	require.True(t, ok)

	tests := []struct {
		name      string
		raw       Params
		level     float64
		noise     float64
		blackHex  string
		invertSet bool
	}{
		{"defaults", nil, 128, 0, "#000000", false},
		{"clamped high", Params{"level": 900.0}, 255, 0, "#000000", false},
		{"clamped low", Params{"level": -4}, 0, 0, "#000000", false},
		{"infinite clamps", Params{"noise": math.Inf(1)}, 128, 100, "#000000", false},
		{"nan falls back", Params{"level": math.NaN()}, 128, 0, "#000000", false},
		{"numeric string", Params{"level": " 40 "}, 40, 0, "#000000", false},
		{"json number", Params{"noise": json.Number("12.5")}, 128, 12.5, "#000000", false},
		{"bool flag", Params{"invert": true}, 128, 0, "#000000", true},
		{"short hex", Params{"blackColor": "#f0a"}, 128, 0, "#ff00aa", false},
		{"bad hex keeps default", Params{"blackColor": "nope"}, 128, 0, "#000000", false},
		{"wrong type", Params{"level": []int{1}}, 128, 0, "#000000", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Resolve(d, tt.raw)
			assert.Equal(t, tt.level, v.Num("level"))
			assert.Equal(t, tt.noise, v.Num("noise"))
			assert.Equal(t, tt.blackHex, v.Color("blackColor").Hex())
			assert.Equal(t, tt.invertSet, v.Flag("invert"))
			assert.Equal(t, "#ffffff", v.Color("whiteColor").Hex())
		})
	}
}

func TestValuesJSON(t *testing.T) {
	d, ok := Lookup("threshold")
	require.True(t, ok)

	tests := []struct {
		name string
		raw  Params
		want map[string]any
	}{
		{"defaults", nil, map[string]any{
			"level": 128.0, "noise": 0.0, "softness": 0.0,
			"blackColor": "#000000", "whiteColor": "#ffffff", "invert": 0.0,
		}},
		{"resolved overrides", Params{"level": 900, "blackColor": "#F0A", "invert": true}, map[string]any{
			"level": 255.0, "noise": 0.0, "softness": 0.0,
			"blackColor": "#ff00aa", "whiteColor": "#ffffff", "invert": 1.0,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(Resolve(d, tt.raw))
			require.NoError(t, err)
			var got map[string]any
			require.NoError(t, json.Unmarshal(data, &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultsRoundTripThroughResolve(t *testing.T) {
	for _, d := range All() {
		v := Resolve(d, d.Defaults())
		for _, p := range d.Params {
			if p.Kind == KindColor {
				c, _ := ParseHex(p.DefaultColor)
				assert.Equal(t, c, v.Color(p.Key), "%s.%s", d.ID, p.Key)
				continue
			}
			assert.Equal(t, p.Default, v.Num(p.Key), "%s.%s", d.ID, p.Key)
		}
	}
}

func TestNumericParamsSkipColors(t *testing.T) {
	d, _ := Lookup("tracking")
	keys := []string{}
	for _, p := range d.NumericParams() {
		keys = append(keys, p.Key)
	}
	assert.Equal(t, "targets", keys[0])
	assert.Equal(t, "sensitivity", keys[1])
	assert.NotContains(t, keys, "mainColor")
}

func TestSettingsClone(t *testing.T) {
	s := Settings{"rgb": Params{"offsetX": 3.0}}
	cp := s.Clone()
	cp["rgb"]["offsetX"] = 9.0
	assert.Equal(t, 3.0, s["rgb"]["offsetX"])
}
