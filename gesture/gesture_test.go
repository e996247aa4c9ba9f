package gesture

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevecastle/fxlab/catalog"
)

func TestApply(t *testing.T) {
	tests := []struct {
		name    string
		chain   []string
		sig     Signal
		mapping Mapping
		want    catalog.Params
		changed []string
	}{
		{
			name:    "default mapping, y overrides x on the first parameter",
			chain:   []string{"glitch", "invert"},
			sig:     Signal{X: 0.9, Y: 0.25, Pinch: 0.5},
			mapping: DefaultMapping(),
			want:    catalog.Params{"intensity": 25.0, "sliceCount": 26.0},
			changed: []string{"intensity", "intensity", "sliceCount"},
		},
		{
			name:    "colors are skipped when indexing",
			chain:   []string{"threshold"},
			sig:     Signal{X: 0.3},
			mapping: Mapping{X: TargetParam2, Y: TargetNone, Pinch: TargetNone},
			want:    catalog.Params{"noise": 30.0},
			changed: []string{"noise"},
		},
		{
			name:    "negative range",
			chain:   []string{"rgb"},
			sig:     Signal{Pinch: 0.25},
			mapping: Mapping{X: TargetNone, Y: TargetNone, Pinch: TargetParam2},
			want:    catalog.Params{"offsetY": -25.0},
			changed: []string{"offsetY"},
		},
		{
			name:    "none everywhere",
			chain:   []string{"glitch"},
			sig:     Signal{X: 1, Y: 1, Pinch: 1},
			mapping: Mapping{X: TargetNone, Y: TargetNone, Pinch: TargetNone},
			want:    catalog.Params{},
		},
		{
			name:    "unknown target is ignored",
			chain:   []string{"glitch"},
			sig:     Signal{X: 1},
			mapping: Mapping{X: "hue"},
			want:    catalog.Params{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := catalog.Settings{}
			changed := Apply(settings, tt.chain, tt.sig, tt.mapping)
			assert.Equal(t, tt.changed, changed)
			assert.Equal(t, tt.want, settings[tt.chain[0]])
			for _, id := range tt.chain[1:] {
				assert.NotContains(t, settings, id)
			}
		})
	}
}

func TestApplyKeepsOtherParams(t *testing.T) {
	settings := catalog.Settings{"glitch": {"colorShift": 70.0, "intensity": 10.0}}
	Apply(settings, []string{"glitch"}, Signal{X: 1}, Mapping{X: TargetIntensity})
	assert.Equal(t, catalog.Params{"colorShift": 70.0, "intensity": 100.0}, settings["glitch"])
}

func TestApplyNothingToDo(t *testing.T) {
	settings := catalog.Settings{}
	assert.Nil(t, Apply(settings, nil, Signal{X: 1}, DefaultMapping()))
	assert.Nil(t, Apply(settings, []string{"bogus"}, Signal{X: 1}, DefaultMapping()))
	assert.Empty(t, settings)
}

func TestTargetUnmarshal(t *testing.T) {
	var m Mapping
	require.NoError(t, json.Unmarshal([]byte(`{"x":"param2","y":"none","pinch":"intensity"}`), &m))
	assert.Equal(t, Mapping{X: TargetParam2, Y: TargetNone, Pinch: TargetIntensity}, m)

	err := json.Unmarshal([]byte(`{"x":"hue"}`), &m)
	assert.ErrorContains(t, err, "unknown gesture target")
}

func TestLatch(t *testing.T) {
	var l Latch
	_, ok := l.Latest()
	assert.False(t, ok)
	b, err := json.Marshal(&l)
	require.NoError(t, err)
	assert.JSONEq(t, `null`, string(b))

	l.Publish(Signal{X: 0.2, Fingers: 3, HandCount: 1})
	s, ok := l.Latest()
	require.True(t, ok)
	assert.Equal(t, 3, s.Fingers)

	l.Clear()
	_, ok = l.Latest()
	assert.False(t, ok)
}

func TestLatchAsSource(t *testing.T) {
	var l Latch
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, l.Start(ctx))
	l.Publish(Signal{X: 0.7, HandCount: 1})
	_, ok := l.Latest()
	require.True(t, ok)

	cancel()
	assert.Eventually(t, func() bool {
		_, ok := l.Latest()
		return !ok
	}, time.Second, time.Millisecond)

	l.Publish(Signal{X: 0.1})
	l.Stop()
	_, ok = l.Latest()
	assert.False(t, ok)
}

// openHand places every fingertip well above its knuckle with the thumb out
// to the side.
func openHand(dx float64, handedness string) Hand {
	var h Hand
	h.Handedness = handedness
	h.Landmarks[wrist] = Point{0.5 + dx, 0.8}
	for _, k := range []int{indexMCP, middleMCP, ringMCP, pinkyMCP} {
		h.Landmarks[k] = Point{0.5 + dx, 0.6}
	}
	for _, k := range []int{8, 12, 16, 20} {
		h.Landmarks[k] = Point{0.5 + dx, 0.3}
	}
	h.Landmarks[thumbTip] = Point{0.7 + dx, 0.6}
	return h
}

func TestFromHands(t *testing.T) {
	assert.Equal(t, Signal{X: 0.5, Y: 0.5}, FromHands(nil))

	h := openHand(0, "Right")
	s := FromHands([]Hand{h})
	assert.InDelta(t, 0.5, s.X, 1e-9)
	assert.InDelta(t, 0.64, s.Y, 1e-9)
	assert.Equal(t, 5, s.Fingers)
	assert.Equal(t, 1, s.HandCount)
	// Thumb and index tip are far apart.
	assert.Equal(t, 0.0, s.Pinch)

	pinched := openHand(0, "Right")
	pinched.Landmarks[thumbTip] = Point{0.52, 0.3}
	s = FromHands([]Hand{pinched})
	assert.InDelta(t, 0.8, s.Pinch, 1e-9)
	assert.Equal(t, 4, s.Fingers)
}

func TestFromHandsPrefersRight(t *testing.T) {
	left := openHand(-0.3, "Left")
	right := openHand(0.2, "Right")
	s := FromHands([]Hand{left, right})
	assert.InDelta(t, 0.3, s.X, 1e-9)
	assert.Equal(t, 2, s.HandCount)

	s = FromHands([]Hand{left, openHand(0.2, "Left")})
	assert.InDelta(t, 0.8, s.X, 1e-9)
}

func TestFist(t *testing.T) {
	var h Hand
	h.Landmarks[wrist] = Point{0.5, 0.8}
	for i := 1; i < 21; i++ {
		h.Landmarks[i] = Point{0.5, 0.7}
	}
	assert.Equal(t, 0, h.ExtendedFingers())
}
