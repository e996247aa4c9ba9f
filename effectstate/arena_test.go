package effectstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevecastle/fxlab/effects"
	"github.com/stevecastle/fxlab/surface"
)

type countingState struct{ resets int }

func (c *countingState) Reset() { c.resets++ }

type statefulFx struct{ id string }

func (s statefulFx) ID() string                          { return s.id }
func (statefulFx) Apply(*surface.Surface, effects.Input) {}
func (statefulFx) NewState() effects.State               { return &countingState{} }

type plainFx struct{}

func (plainFx) ID() string                            { return "plain" }
func (plainFx) Apply(*surface.Surface, effects.Input) {}

func TestGetCreatesLazily(t *testing.T) {
	a := New()
	assert.Nil(t, a.Get(plainFx{}, 10, 10))
	assert.Equal(t, 0, a.Len())

	fx := statefulFx{"echo"}
	first := a.Get(fx, 10, 10)
	require.NotNil(t, first)
	assert.Same(t, first, a.Get(fx, 10, 10))
	assert.Equal(t, 1, a.Len())
}

func TestGetResetsOnResize(t *testing.T) {
	a := New()
	fx := statefulFx{"echo"}
	st := a.Get(fx, 10, 10).(*countingState)

	a.Get(fx, 10, 10)
	assert.Equal(t, 0, st.resets)

	same := a.Get(fx, 20, 10)
	assert.Same(t, st, same)
	assert.Equal(t, 1, st.resets)
}

func TestRetainDropsRemovedEffects(t *testing.T) {
	a := New()
	a.Get(statefulFx{"a"}, 1, 1)
	a.Get(statefulFx{"b"}, 1, 1)

	a.Retain([]string{"b", "glitch"})
	assert.False(t, a.Has("a"))
	assert.True(t, a.Has("b"))

	// A re-added effect starts over.
	fresh := a.Get(statefulFx{"a"}, 1, 1).(*countingState)
	assert.Equal(t, 0, fresh.resets)
}

func TestResetClearsSession(t *testing.T) {
	a := New()
	old := a.Get(statefulFx{"a"}, 1, 1)
	a.Reset()
	assert.Equal(t, 0, a.Len())
	assert.NotSame(t, old, a.Get(statefulFx{"a"}, 1, 1))
}
