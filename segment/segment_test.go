package segment

import (
	"errors"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevecastle/fxlab/effects"
	"github.com/stevecastle/fxlab/surface"
)

var _ effects.MaskSource = (*Worker)(nil)

func TestInputTensorLayouts(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 255, 0, 51, 255
	}
	nhwc := inputTensor(img, 2, "NHWC")
	require.Len(t, nhwc, 12)
	assert.InDelta(t, 1.0, nhwc[0], 0.01)
	assert.InDelta(t, 0.0, nhwc[1], 0.01)
	assert.InDelta(t, 0.2, nhwc[2], 0.01)

	nchw := inputTensor(img, 2, "nchw")
	require.Len(t, nchw, 12)
	assert.InDelta(t, 1.0, nchw[0], 0.01)
	assert.InDelta(t, 1.0, nchw[3], 0.01)
	assert.InDelta(t, 0.0, nchw[4], 0.01)
	assert.InDelta(t, 0.2, nchw[8], 0.01)
}

func TestMaskFromScores(t *testing.T) {
	m := maskFromScores([]float32{-1, 0.5, 1, 2}, 2, 0)
	assert.Equal(t, []uint8{0, 128, 255, 255}, m.Pix)

	hard := maskFromScores([]float32{0.2, 0.6, 0.5, 0.49}, 2, 0.5)
	assert.Equal(t, []uint8{0, 255, 255, 0}, hard.Pix)
}

type fakeSegmenter struct {
	mu     sync.Mutex
	calls  int
	gate   chan struct{}
	err    error
	closed bool
}

func (f *fakeSegmenter) Segment(img image.Image) (*image.Gray, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	m := image.NewGray(img.Bounds())
	m.Pix[0] = uint8(f.calls)
	return m, nil
}

func (f *fakeSegmenter) Close() error {
	f.closed = true
	return nil
}

func TestWorkerDeliversToRequester(t *testing.T) {
	seg := &fakeSegmenter{}
	w := NewWorker(seg)
	defer w.Close()

	var got atomic.Pointer[image.Gray]
	frame := surface.New(3, 2)
	frame.Fill(color.NRGBA{A: 255})
	w.Request(frame, got.Store)
	require.Eventually(t, func() bool { return got.Load() != nil }, time.Second, time.Millisecond)
	assert.Equal(t, 3, got.Load().Bounds().Dx())
}

func TestWorkerKeepsRequestersApart(t *testing.T) {
	seg := &fakeSegmenter{}
	w := NewWorker(seg)
	defer w.Close()

	tests := []struct {
		name string
		w, h int
	}{
		{name: "preview", w: 4, h: 2},
		{name: "export", w: 6, h: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got atomic.Pointer[image.Gray]
			w.Request(surface.New(tt.w, tt.h), got.Store)
			require.Eventually(t, func() bool { return got.Load() != nil }, time.Second, time.Millisecond)
			assert.Equal(t, image.Rect(0, 0, tt.w, tt.h), got.Load().Bounds())
		})
	}
}

func TestWorkerRequestNeverBlocks(t *testing.T) {
	seg := &fakeSegmenter{gate: make(chan struct{})}
	w := NewWorker(seg)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			w.Request(surface.New(1, 1), func(*image.Gray) {})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Request blocked")
	}
	close(seg.gate)
	require.Eventually(t, func() bool { return w.Runs() >= 1 }, time.Second, time.Millisecond)
	require.NoError(t, w.Close())
	assert.True(t, seg.closed)
	// One in flight plus at most one queued frame.
	assert.LessOrEqual(t, w.Runs(), int64(2))
}

func TestWorkerSkipsDeliveryOnFailure(t *testing.T) {
	seg := &fakeSegmenter{}
	w := NewWorker(seg)
	defer w.Close()

	var got atomic.Pointer[image.Gray]
	w.Request(surface.New(2, 2), got.Store)
	require.Eventually(t, func() bool { return got.Load() != nil }, time.Second, time.Millisecond)
	first := got.Load()

	seg.mu.Lock()
	seg.err = errors.New("model crashed")
	seg.mu.Unlock()
	w.Request(surface.New(2, 2), got.Store)
	require.Eventually(t, func() bool { return w.Runs() == 2 }, time.Second, time.Millisecond)
	assert.Same(t, first, got.Load())
}

func TestNilSegmenterWorker(t *testing.T) {
	w := NewWorker(nil)
	var got atomic.Pointer[image.Gray]
	w.Request(surface.New(1, 1), got.Store)
	time.Sleep(5 * time.Millisecond)
	assert.Nil(t, got.Load())
	assert.NoError(t, w.Close())
}

func TestNewONNXWithoutModel(t *testing.T) {
	_, err := NewONNX(Options{InputSize: 256, InputName: "in", OutputName: "out"})
	assert.ErrorIs(t, err, ErrInputUnavailable)
}
