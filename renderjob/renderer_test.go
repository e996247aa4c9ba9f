package renderjob

import (
	"context"
	"errors"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevecastle/fxlab/catalog"
	"github.com/stevecastle/fxlab/compositor"
	"github.com/stevecastle/fxlab/effects"
	"github.com/stevecastle/fxlab/surface"
)

type fakeSource struct {
	duration float64
	w, h     int
	// hangAt makes the seek with this index block until its context ends.
	hangAt  int
	seekErr error

	mu      sync.Mutex
	seeks   []float64
	resumed bool
}

func newFakeSource(duration float64) *fakeSource {
	return &fakeSource{duration: duration, w: 8, h: 6, hangAt: -1}
}

func (f *fakeSource) Duration() float64 { return f.duration }
func (f *fakeSource) Size() (int, int)  { return f.w, f.h }

func (f *fakeSource) Seek(ctx context.Context, t float64) error {
	f.mu.Lock()
	idx := len(f.seeks)
	f.seeks = append(f.seeks, t)
	f.mu.Unlock()
	if idx == f.hangAt {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.seekErr
}

func (f *fakeSource) Draw(dst *surface.Surface) error {
	f.mu.Lock()
	v := uint8(len(f.seeks))
	f.mu.Unlock()
	dst.Fill(color.NRGBA{R: v, G: 100, B: 200, A: 255})
	return nil
}

func (f *fakeSource) Pause() func() {
	return func() {
		f.mu.Lock()
		f.resumed = true
		f.mu.Unlock()
	}
}

type fakeEncoder struct {
	onEncode func(i int)

	w, h      int
	rate      float64
	bitrate   int
	pts       []float64
	keyframes []int
	first     []uint8
	flushed   bool
	closed    int
}

func (e *fakeEncoder) Configure(w, h int, rate float64, bitrate int) error {
	e.w, e.h, e.rate, e.bitrate = w, h, rate, bitrate
	return nil
}

func (e *fakeEncoder) Encode(s *surface.Surface, pts float64, key bool) error {
	i := len(e.pts)
	if i == 0 {
		e.first = append([]uint8(nil), s.Pix()[:4]...)
	}
	e.pts = append(e.pts, pts)
	if key {
		e.keyframes = append(e.keyframes, i)
	}
	if e.onEncode != nil {
		e.onEncode(i)
	}
	return nil
}

func (e *fakeEncoder) Flush() ([]byte, error) {
	e.flushed = true
	return []byte("video"), nil
}

func (e *fakeEncoder) Extension() string { return "mp4" }

func (e *fakeEncoder) Close() error {
	e.closed++
	return nil
}

type events struct {
	phases   []Phase
	progress []int
	status   []string
}

func (ev *events) observer() Observer {
	return Observer{
		Phase:    func(p Phase) { ev.phases = append(ev.phases, p) },
		Progress: func(p int) { ev.progress = append(ev.progress, p) },
		Status:   func(s string) { ev.status = append(ev.status, s) },
	}
}

func newRenderer(enc *fakeEncoder) *Renderer {
	comp := compositor.New(effects.NewRegistry(effects.Options{}))
	return NewRenderer(comp, func(context.Context) (Encoder, error) { return enc, nil })
}

func TestTotalFrames(t *testing.T) {
	tests := []struct {
		duration float64
		want     int
	}{
		{2.0, 60},
		{1.0 / 30, 1},
		{0.02, 0},
		{0, 0},
		{-1, 0},
		{10.01, 300},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TotalFrames(tt.duration), "duration %v", tt.duration)
	}
}

func TestRenderTwoSeconds(t *testing.T) {
	enc := &fakeEncoder{}
	src := newFakeSource(2.0)
	ev := &events{}
	spec := Spec{
		Chain:    []string{"invert"},
		Settings: catalog.Settings{"invert": {"amount": 100}},
	}

	out, err := newRenderer(enc).Render(context.Background(), spec, src, ev.observer())
	require.NoError(t, err)

	require.Len(t, enc.pts, 60)
	for i, pts := range enc.pts {
		assert.Equal(t, float64(i)/30, pts)
	}
	assert.Equal(t, []int{0, 30}, enc.keyframes)
	assert.Equal(t, 8, enc.w)
	assert.Equal(t, 6, enc.h)
	assert.Equal(t, 30.0, enc.rate)
	assert.Equal(t, DefaultBitrate, enc.bitrate)
	assert.True(t, enc.flushed)
	assert.Equal(t, 1, enc.closed)
	assert.True(t, src.resumed)

	// The chain ran on the drawn frame: inverted (1, 100, 200).
	assert.Equal(t, []uint8{254, 155, 55, 255}, enc.first)

	require.Len(t, src.seeks, 60)
	assert.Equal(t, 59.0/30, src.seeks[59])

	assert.Equal(t, Output{Data: []byte("video"), Width: 8, Height: 6, Extension: "mp4", Frames: 60}, out)
	assert.Equal(t, []Phase{PhasePreparing, PhaseRendering, PhaseFinalizing, PhaseCompleted}, ev.phases)
	assert.Equal(t, 0, ev.progress[0])
	assert.Equal(t, 59*90/60, ev.progress[59])
	assert.Equal(t, []int{95, 100}, ev.progress[60:])
	assert.Contains(t, ev.status, "Encoding frame 1/60")
	assert.Contains(t, ev.status, "Encoding frame 51/60")
	assert.NotContains(t, ev.status, "Encoding frame 2/60")
	assert.Equal(t, "Finalizing video...", ev.status[len(ev.status)-1])
}

func TestRenderSeeksShortClips(t *testing.T) {
	// 0.05s holds a single frame at t=0.
	src := newFakeSource(0.05)
	_, err := newRenderer(&fakeEncoder{}).Render(context.Background(), Spec{}, src, Observer{})
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, src.seeks)

	// 0.07s holds two.
	src = newFakeSource(0.07)
	_, err = newRenderer(&fakeEncoder{}).Render(context.Background(), Spec{}, src, Observer{})
	require.NoError(t, err)
	require.Len(t, src.seeks, 2)
	assert.Equal(t, 1.0/30, src.seeks[1])
}

func TestRenderCancelAfterFrameTen(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	enc := &fakeEncoder{onEncode: func(i int) {
		if i == 10 {
			cancel()
		}
	}}
	src := newFakeSource(2.0)
	ev := &events{}

	_, err := newRenderer(enc).Render(ctx, Spec{}, src, ev.observer())
	require.ErrorIs(t, err, ErrCancelled)

	assert.Len(t, enc.pts, 11)
	assert.False(t, enc.flushed)
	assert.Equal(t, 1, enc.closed)
	assert.True(t, src.resumed)
	assert.Equal(t, []Phase{PhasePreparing, PhaseRendering, PhaseCancelled}, ev.phases)
	assert.NotContains(t, ev.phases, PhaseCompleted)
	assert.NotContains(t, ev.phases, PhaseFailed)
}

func TestRenderSeekTimeout(t *testing.T) {
	src := newFakeSource(1.0)
	src.hangAt = 3
	enc := &fakeEncoder{}
	ev := &events{}

	_, err := newRenderer(enc).WithSeekTimeout(20*time.Millisecond).Render(context.Background(), Spec{}, src, ev.observer())
	require.ErrorIs(t, err, ErrSeekTimeout)
	assert.NotErrorIs(t, err, ErrCancelled)
	assert.Len(t, enc.pts, 3)
	assert.Equal(t, 1, enc.closed)
	assert.True(t, src.resumed)
	assert.Equal(t, PhaseFailed, ev.phases[len(ev.phases)-1])
}

func TestRenderFailures(t *testing.T) {
	boom := errors.New("boom")

	t.Run("seek error", func(t *testing.T) {
		src := newFakeSource(1.0)
		src.seekErr = boom
		enc := &fakeEncoder{}
		_, err := newRenderer(enc).Render(context.Background(), Spec{}, src, Observer{})
		require.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, ErrSeekTimeout)
		assert.Equal(t, 1, enc.closed)
		assert.True(t, src.resumed)
	})

	t.Run("no codec", func(t *testing.T) {
		src := newFakeSource(1.0)
		ev := &events{}
		r := NewRenderer(compositor.New(effects.NewRegistry(effects.Options{})), func(context.Context) (Encoder, error) {
			return nil, boom
		})
		_, err := r.Render(context.Background(), Spec{}, src, ev.observer())
		require.ErrorIs(t, err, boom)
		assert.Empty(t, src.seeks)
		assert.True(t, src.resumed)
		assert.Equal(t, []Phase{PhasePreparing, PhaseFailed}, ev.phases)
	})

	t.Run("empty source", func(t *testing.T) {
		enc := &fakeEncoder{}
		_, err := newRenderer(enc).Render(context.Background(), Spec{}, newFakeSource(0), Observer{})
		require.ErrorIs(t, err, ErrEmptySource)
		assert.Equal(t, 0, enc.closed)
	})
}

func TestRenderStatefulChainIsPerJob(t *testing.T) {
	spec := Spec{
		Chain:    []string{"doubleExposure"},
		Settings: catalog.Settings{"doubleExposure": {"blend": 100, "delay": 1}},
	}
	a, b := &fakeEncoder{}, &fakeEncoder{}
	_, err := newRenderer(a).Render(context.Background(), spec, newFakeSource(0.5), Observer{})
	require.NoError(t, err)
	_, err = newRenderer(b).Render(context.Background(), spec, newFakeSource(0.5), Observer{})
	require.NoError(t, err)
	// A fresh arena per job means identical output for identical input.
	assert.Equal(t, a.first, b.first)
}
