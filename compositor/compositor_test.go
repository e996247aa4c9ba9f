package compositor

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevecastle/fxlab/audio"
	"github.com/stevecastle/fxlab/catalog"
	"github.com/stevecastle/fxlab/effects"
	"github.com/stevecastle/fxlab/effectstate"
	"github.com/stevecastle/fxlab/surface"
)

type call struct {
	id     string
	params catalog.Values
	t      float64
	audio  audio.Signal
	state  effects.State
}

type recorder struct{ calls []call }

type fakeKernel struct {
	id  string
	rec *recorder
}

func (k fakeKernel) ID() string { return k.id }

func (k fakeKernel) Apply(_ *surface.Surface, in effects.Input) {
	k.rec.calls = append(k.rec.calls, call{k.id, in.Params, in.Time, in.Audio, in.State})
}

type memo struct{ frames int }

func (m *memo) Reset() { m.frames = 0 }

type fakeStateful struct{ fakeKernel }

func (fakeStateful) NewState() effects.State { return &memo{} }

type kernelSet map[string]effects.Effect

func (k kernelSet) Lookup(id string) (effects.Effect, bool) {
	e, ok := k[id]
	return e, ok
}

func fakes(rec *recorder) kernelSet {
	return kernelSet{
		"glitch":         fakeKernel{"glitch", rec},
		"invert":         fakeKernel{"invert", rec},
		"doubleExposure": fakeStateful{fakeKernel{"doubleExposure", rec}},
		// Has a kernel but no catalog entry.
		"sparkle": fakeKernel{"sparkle", rec},
	}
}

func ids(calls []call) []string {
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.id
	}
	return out
}

func TestTickKeepsChainOrder(t *testing.T) {
	tests := []struct {
		name  string
		chain []string
		want  []string
	}{
		{"as given", []string{"invert", "glitch"}, []string{"invert", "glitch"}},
		{"reversed", []string{"glitch", "invert"}, []string{"glitch", "invert"}},
		{"unknown skipped", []string{"glitch", "nope", "sparkle", "invert"}, []string{"glitch", "invert"}},
		{"repeat skipped", []string{"doubleExposure", "invert", "doubleExposure"}, []string{"doubleExposure", "invert"}},
		{"empty", nil, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			c := New(fakes(rec))
			c.Tick(surface.New(4, 4), tt.chain, nil, 0, audio.Signal{}, effectstate.New())
			assert.Equal(t, tt.want, ids(rec.calls))
		})
	}
}

func TestTickResolvesParams(t *testing.T) {
	rec := &recorder{}
	c := New(fakes(rec))
	settings := catalog.Settings{
		"invert": {"amount": 500, "mode": "1"},
	}
	sig := audio.Signal{Bass: 3, Mid: -1, High: 0.5}
	c.Tick(surface.New(2, 2), []string{"invert", "glitch"}, settings, 1.5, sig, effectstate.New())

	require.Len(t, rec.calls, 2)
	inv := rec.calls[0]
	assert.Equal(t, 100.0, inv.params.Num("amount"))
	assert.Equal(t, 1, inv.params.Int("mode"))
	assert.Equal(t, 128.0, inv.params.Num("threshold"))
	assert.Equal(t, 1.5, inv.t)
	assert.Equal(t, audio.Signal{Bass: 1, Mid: 0, High: 0.5}, inv.audio)
	assert.Nil(t, inv.state)

	gl, _ := catalog.Lookup("glitch")
	assert.Equal(t, gl.Params[0].Default, rec.calls[1].params.Num(gl.Params[0].Key))
}

func TestTickStatePersistsWhileActive(t *testing.T) {
	rec := &recorder{}
	c := New(fakes(rec))
	arena := effectstate.New()
	s := surface.New(2, 2)

	c.Tick(s, []string{"doubleExposure"}, nil, 0, audio.Signal{}, arena)
	c.Tick(s, []string{"doubleExposure", "glitch"}, nil, 0, audio.Signal{}, arena)
	require.Len(t, rec.calls, 3)
	first := rec.calls[0].state
	require.NotNil(t, first)
	assert.Same(t, first, rec.calls[1].state)

	// Leaving the chain discards the state.
	c.Tick(s, []string{"glitch"}, nil, 0, audio.Signal{}, arena)
	assert.False(t, arena.Has("doubleExposure"))
	c.Tick(s, []string{"doubleExposure"}, nil, 0, audio.Signal{}, arena)
	assert.NotSame(t, first, rec.calls[len(rec.calls)-1].state)
}

func TestTickWithoutArena(t *testing.T) {
	rec := &recorder{}
	c := New(fakes(rec))
	c.Tick(surface.New(1, 1), []string{"doubleExposure"}, nil, 0, audio.Signal{}, nil)
	require.Len(t, rec.calls, 1)
	assert.NotNil(t, rec.calls[0].state)
}

func TestTickWithRegistry(t *testing.T) {
	c := New(effects.NewRegistry(effects.Options{}))
	s := surface.New(3, 3)
	s.Fill(color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	c.Tick(s, []string{"unknown", "invert"}, catalog.Settings{"invert": {"amount": 100}}, 0, audio.Signal{}, effectstate.New())
	for i := 0; i < len(s.Pix()); i += 4 {
		assert.Equal(t, []uint8{245, 235, 225, 255}, s.Pix()[i:i+4])
	}

	// Two inversions cancel.
	c.Tick(s, []string{"invert", "invert"}, nil, 0, audio.Signal{}, effectstate.New())
	assert.Equal(t, []uint8{245, 235, 225, 255}, s.Pix()[:4])
}
