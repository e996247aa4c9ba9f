// Package renderjob re-renders a video through an effect chain at a fixed
// virtual frame rate and hands every composited frame to an encoder.
package renderjob

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stevecastle/fxlab/audio"
	"github.com/stevecastle/fxlab/catalog"
	"github.com/stevecastle/fxlab/compositor"
	"github.com/stevecastle/fxlab/effectstate"
	"github.com/stevecastle/fxlab/surface"
)

const (
	// FrameRate is the virtual frame rate of every export.
	FrameRate = 30
	// KeyframeInterval asks the encoder for one keyframe per second.
	KeyframeInterval = 30
	// DefaultSeekTimeout bounds each source seek.
	DefaultSeekTimeout = 5 * time.Second
	// DefaultBitrate is used when a job does not set one.
	DefaultBitrate = 20_000_000

	// seekEpsilon keeps the last seek strictly inside the source.
	seekEpsilon = 0.001
)

var (
	// ErrSeekTimeout fails a job whose source did not finish a seek in time.
	ErrSeekTimeout = errors.New("seek timeout")
	// ErrCancelled is returned when the caller stops a job. It is an
	// outcome, not a failure.
	ErrCancelled = errors.New("render cancelled")
	// ErrEmptySource is returned for sources shorter than one frame.
	ErrEmptySource = errors.New("source has no frames")
)

// Source is a seekable video.
type Source interface {
	// Duration in seconds.
	Duration() float64
	Size() (width, height int)
	// Seek blocks until the frame at t is ready or ctx ends.
	Seek(ctx context.Context, t float64) error
	// Draw paints the current frame into dst.
	Draw(dst *surface.Surface) error
	// Pause stops any live playback and returns a func restoring it.
	Pause() (resume func())
}

// Encoder turns composited frames into a container.
type Encoder interface {
	Configure(width, height int, frameRate float64, bitrate int) error
	Encode(s *surface.Surface, pts float64, keyframe bool) error
	// Flush finalizes the stream and returns the encoded file.
	Flush() ([]byte, error)
	Extension() string
	// Close releases the encoder. It is safe after Flush.
	Close() error
}

// OpenEncoder selects and starts an encoder. It fails before any frame is
// rendered when no codec is usable.
type OpenEncoder func(ctx context.Context) (Encoder, error)

// Phase is the renderer lifecycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePreparing
	PhaseRendering
	PhaseFinalizing
	PhaseCompleted
	PhaseCancelled
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePreparing:
		return "preparing"
	case PhaseRendering:
		return "rendering"
	case PhaseFinalizing:
		return "finalizing"
	case PhaseCompleted:
		return "completed"
	case PhaseCancelled:
		return "cancelled"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether p ends a render.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseCancelled || p == PhaseFailed
}

// Spec is what to render.
type Spec struct {
	Chain    []string         `json:"chain"`
	Settings catalog.Settings `json:"params"`
	Audio    audio.Signal     `json:"audio"`
	Bitrate  int              `json:"bitrate,omitempty"`
}

// Output is a finished render.
type Output struct {
	Data      []byte `json:"-"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Extension string `json:"extension"`
	Frames    int    `json:"frames"`
}

// Observer receives render events. Nil fields are ignored.
type Observer struct {
	Phase    func(Phase)
	Progress func(percent int)
	Status   func(msg string)
	// Frame is called after each frame has been encoded.
	Frame func(index, total int)
}

func (o Observer) phase(p Phase) {
	if o.Phase != nil {
		o.Phase(p)
	}
}

func (o Observer) progress(pct int) {
	if o.Progress != nil {
		o.Progress(pct)
	}
}

func (o Observer) status(msg string) {
	if o.Status != nil {
		o.Status(msg)
	}
}

// Renderer is the offline render driver.
type Renderer struct {
	comp        *compositor.Compositor
	open        OpenEncoder
	seekTimeout time.Duration
	log         *logrus.Entry
}

// NewRenderer returns a renderer using comp for every frame.
func NewRenderer(comp *compositor.Compositor, open OpenEncoder) *Renderer {
	return &Renderer{
		comp:        comp,
		open:        open,
		seekTimeout: DefaultSeekTimeout,
		log:         logrus.WithField("component", "renderjob"),
	}
}

// WithSeekTimeout overrides the per-seek bound.
func (r *Renderer) WithSeekTimeout(d time.Duration) *Renderer {
	r.seekTimeout = d
	return r
}

// TotalFrames is the number of frames rendered for a source of duration
// seconds: floor(duration * FrameRate).
func TotalFrames(duration float64) int {
	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return 0
	}
	return int(math.Floor(duration * FrameRate))
}

// Render runs spec over src. Cancelling ctx stops the job at the next frame
// boundary with ErrCancelled; a frame in progress always completes. The
// encoder is closed and the source's playback restored on every path.
func (r *Renderer) Render(ctx context.Context, spec Spec, src Source, obs Observer) (out Output, err error) {
	defer func() {
		switch {
		case err == nil:
			obs.progress(100)
			obs.phase(PhaseCompleted)
		case errors.Is(err, ErrCancelled):
			obs.phase(PhaseCancelled)
		default:
			obs.phase(PhaseFailed)
		}
	}()

	obs.phase(PhasePreparing)
	obs.status("Initializing encoder...")
	duration := src.Duration()
	total := TotalFrames(duration)
	w, h := src.Size()
	if total == 0 || w <= 0 || h <= 0 {
		return Output{}, ErrEmptySource
	}
	bitrate := spec.Bitrate
	if bitrate <= 0 {
		bitrate = DefaultBitrate
	}

	resume := src.Pause()
	defer resume()

	enc, err := r.open(ctx)
	if err != nil {
		return Output{}, fmt.Errorf("open encoder: %w", err)
	}
	defer func() {
		if cerr := enc.Close(); cerr != nil {
			r.log.WithError(cerr).Warn("closing encoder")
		}
	}()
	if err := enc.Configure(w, h, FrameRate, bitrate); err != nil {
		return Output{}, fmt.Errorf("configure encoder: %w", err)
	}

	log := r.log.WithFields(logrus.Fields{"frames": total, "width": w, "height": h})
	log.Info("render started")
	obs.phase(PhaseRendering)
	obs.status(fmt.Sprintf("Encoding %dx%d at %d FPS...", w, h, FrameRate))

	frame := surface.New(w, h)
	arena := effectstate.New()
	for i := 0; i < total; i++ {
		if ctx.Err() != nil {
			log.WithField("frame", i).Info("render cancelled")
			return Output{}, ErrCancelled
		}
		t := float64(i) / FrameRate
		if err := r.seek(ctx, src, math.Min(t, duration-seekEpsilon)); err != nil {
			return Output{}, fmt.Errorf("frame %d: %w", i, err)
		}
		frame.Clear()
		if err := src.Draw(frame); err != nil {
			return Output{}, fmt.Errorf("draw frame %d: %w", i, err)
		}
		r.comp.Tick(frame, spec.Chain, spec.Settings, t, spec.Audio, arena)
		if err := enc.Encode(frame, t, i%KeyframeInterval == 0); err != nil {
			return Output{}, fmt.Errorf("encode frame %d: %w", i, err)
		}
		if obs.Frame != nil {
			obs.Frame(i, total)
		}
		obs.progress(i * 90 / total)
		if i%10 == 0 {
			obs.status(fmt.Sprintf("Encoding frame %d/%d", i+1, total))
		}
	}

	obs.phase(PhaseFinalizing)
	obs.status("Finalizing video...")
	obs.progress(95)
	data, err := enc.Flush()
	if err != nil {
		return Output{}, fmt.Errorf("finalize: %w", err)
	}
	log.WithField("bytes", len(data)).Info("render complete")
	return Output{
		Data:      data,
		Width:     w,
		Height:    h,
		Extension: enc.Extension(),
		Frames:    total,
	}, nil
}

// seek waits for src to reach t. Cancelling the job does not interrupt a
// seek; only the timeout does.
func (r *Renderer) seek(ctx context.Context, src Source, t float64) error {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.seekTimeout)
	defer cancel()
	err := src.Seek(sctx, t)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || sctx.Err() != nil {
		return fmt.Errorf("%w at %.3fs", ErrSeekTimeout, t)
	}
	return fmt.Errorf("seek %.3fs: %w", t, err)
}
