// Package studio holds the live preview session: the loaded media, the
// effect chain and its settings, and the last rendered frame.
package studio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stevecastle/fxlab/audio"
	"github.com/stevecastle/fxlab/catalog"
	"github.com/stevecastle/fxlab/compositor"
	"github.com/stevecastle/fxlab/effectstate"
	"github.com/stevecastle/fxlab/gesture"
	"github.com/stevecastle/fxlab/renderjob"
	"github.com/stevecastle/fxlab/source"
	"github.com/stevecastle/fxlab/surface"
)

var (
	ErrNoMedia       = errors.New("no media loaded")
	ErrUnknownEffect = catalog.ErrUnknownEffect
)

// DefaultSeekTimeout bounds a playback seek during a preview tick.
const DefaultSeekTimeout = 250 * time.Millisecond

// OpenSource loads media for the session.
type OpenSource func(ctx context.Context, path string) (source.Source, error)

// player is implemented by sources with a live playback flag.
type player interface {
	Play()
	Playing() bool
}

// Options wires a Session.
type Options struct {
	Compositor  *compositor.Compositor
	Open        OpenSource
	Audio       *audio.Latch
	Gestures    *gesture.Latch
	Now         func() time.Time
	SeekTimeout time.Duration
}

// Status is the externally visible session state.
type Status struct {
	Input    string           `json:"input"`
	Width    int              `json:"width"`
	Height   int              `json:"height"`
	Duration float64          `json:"duration"`
	Playing  bool             `json:"playing"`
	Chain    []string         `json:"chain"`
	Params   catalog.Settings `json:"params"`
	Mapping  gesture.Mapping  `json:"mapping"`
	Gestures bool             `json:"gestures"`
	Frames   uint64           `json:"frames"`
}

// Session is safe for concurrent use. Tick runs on the scheduler goroutine
// while the control API edits the chain.
type Session struct {
	opts Options
	log  *logrus.Entry

	mu         sync.Mutex
	input      string
	src        source.Source
	frame      *surface.Surface
	out        *surface.Surface
	arena      *effectstate.Arena
	chain      []string
	settings   catalog.Settings
	mapping    gesture.Mapping
	gesturesOn bool
	start      time.Time
	frames     uint64
	seekWarned bool
}

// New returns an empty session.
func New(opts Options) *Session {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SeekTimeout <= 0 {
		opts.SeekTimeout = DefaultSeekTimeout
	}
	if opts.Audio == nil {
		opts.Audio = &audio.Latch{}
	}
	if opts.Gestures == nil {
		opts.Gestures = &gesture.Latch{}
	}
	return &Session{
		opts:     opts,
		log:      logrus.WithField("component", "studio"),
		arena:    effectstate.New(),
		settings: catalog.Settings{},
		mapping:  gesture.DefaultMapping(),
		start:    opts.Now(),
	}
}

// Load opens path, replacing the current media. Effect state and the time
// origin start over. Videos start playing from the beginning.
func (s *Session) Load(ctx context.Context, path string) error {
	src, err := s.opts.Open(ctx, path)
	if err != nil {
		return err
	}
	if err := src.Seek(ctx, 0); err != nil {
		src.Close()
		return fmt.Errorf("read first frame: %w", err)
	}
	w, h := src.Size()
	frame := surface.New(w, h)
	if err := src.Draw(frame); err != nil {
		src.Close()
		return fmt.Errorf("read first frame: %w", err)
	}
	if p, ok := src.(player); ok {
		p.Play()
	}

	s.mu.Lock()
	old := s.src
	s.src = src
	s.input = path
	s.frame = frame
	s.out = frame.Clone()
	s.arena.Reset()
	s.start = s.opts.Now()
	s.frames = 0
	s.seekWarned = false
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}
	s.log.WithFields(logrus.Fields{"input": path, "width": w, "height": h}).Info("media loaded")
	return nil
}

// Close releases the media.
func (s *Session) Close() error {
	s.mu.Lock()
	src := s.src
	s.src, s.frame, s.out, s.input = nil, nil, nil, ""
	s.arena.Reset()
	s.mu.Unlock()
	if src != nil {
		return src.Close()
	}
	return nil
}

// Input returns the loaded media path.
func (s *Session) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// SetChain replaces the effect chain. Every id must be in the catalog.
func (s *Session) SetChain(chain []string) error {
	if err := catalog.CheckChain(chain); err != nil {
		return err
	}
	s.mu.Lock()
	s.chain = slices.Clone(chain)
	s.mu.Unlock()
	return nil
}

// Toggle adds id to the end of the chain, or removes it when present.
func (s *Session) Toggle(id string) ([]string, error) {
	if _, ok := catalog.Lookup(id); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEffect, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.Index(s.chain, id); i >= 0 {
		s.chain = slices.Delete(s.chain, i, i+1)
	} else {
		s.chain = append(s.chain, id)
	}
	return slices.Clone(s.chain), nil
}

// Chain returns a copy of the chain.
func (s *Session) Chain() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.chain)
}

// SetParams merges p into the stored settings for effect id.
func (s *Session) SetParams(id string, p catalog.Params) error {
	if _, ok := catalog.Lookup(id); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEffect, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dst := s.settings[id]
	if dst == nil {
		dst = make(catalog.Params, len(p))
		s.settings[id] = dst
	}
	for k, v := range p {
		dst[k] = v
	}
	return nil
}

// ResetParams drops stored settings for id so its defaults apply.
func (s *Session) ResetParams(id string) {
	s.mu.Lock()
	delete(s.settings, id)
	s.mu.Unlock()
}

// Settings returns a copy of the stored settings.
func (s *Session) Settings() catalog.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.Clone()
}

// Apply replaces both chain and settings, as when a preset is loaded.
func (s *Session) Apply(chain []string, settings catalog.Settings) error {
	if err := s.SetChain(chain); err != nil {
		return err
	}
	s.mu.Lock()
	s.settings = settings.Clone()
	s.mu.Unlock()
	return nil
}

// SetGestures enables or disables gesture control and sets its mapping.
func (s *Session) SetGestures(on bool, m gesture.Mapping) {
	s.mu.Lock()
	s.gesturesOn = on
	s.mapping = m
	s.mu.Unlock()
}

// Status reports the session state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Input:    s.input,
		Chain:    slices.Clone(s.chain),
		Params:   s.settings.Clone(),
		Mapping:  s.mapping,
		Gestures: s.gesturesOn,
		Frames:   s.frames,
	}
	if s.src != nil {
		st.Width, st.Height = s.src.Size()
		st.Duration = s.src.Duration()
		if p, ok := s.src.(player); ok {
			st.Playing = p.Playing()
		}
	}
	return st
}

// ActiveLoad reports the frame size and chain length for the scheduler.
func (s *Session) ActiveLoad() (pixels, active int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return 0, len(s.chain)
	}
	return s.frame.Pixels(), len(s.chain)
}

// Tick renders one preview frame. Effect time counts seconds since the media
// was loaded; a playing video shows the frame at that time, looping.
func (s *Session) Tick(now time.Time) {
	s.mu.Lock()
	src := s.src
	t := now.Sub(s.start).Seconds()
	s.mu.Unlock()
	if src == nil {
		return
	}
	// The decoder may take up to SeekTimeout; the session stays unlocked
	// meanwhile and a Load that lands first discards this tick.
	s.seek(src, t)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.src != src {
		return
	}
	s.frame.Clear()
	if err := s.src.Draw(s.frame); err != nil {
		s.log.WithError(err).Debug("preview draw failed")
		return
	}

	if s.gesturesOn {
		if sig, ok := s.opts.Gestures.Latest(); ok {
			gesture.Apply(s.settings, s.chain, sig, s.mapping)
		}
	}
	s.opts.Compositor.Tick(s.frame, s.chain, s.settings, t, s.opts.Audio.Latest(), s.arena)
	if s.out == nil || s.out.CopyFrom(s.frame) != nil {
		s.out = s.frame.Clone()
	}
	s.frames++
}

func (s *Session) seek(src source.Source, t float64) {
	p, ok := src.(player)
	if !ok || !p.Playing() {
		return
	}
	d := src.Duration()
	if d <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.SeekTimeout)
	err := src.Seek(ctx, math.Mod(t, d))
	cancel()
	if err == nil {
		return
	}
	s.mu.Lock()
	warned := s.seekWarned
	s.seekWarned = true
	s.mu.Unlock()
	if !warned {
		s.log.WithError(err).Warn("preview seek failed, holding last frame")
	}
}

// Frame returns a copy of the last rendered frame.
func (s *Session) Frame() (*surface.Surface, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.out == nil {
		return nil, ErrNoMedia
	}
	return s.out.Clone(), nil
}

// ExportStill stores the last rendered frame as a lossless PNG.
func (s *Session) ExportStill(ctx context.Context, sink renderjob.Sink) (string, error) {
	frame, err := s.Frame()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := frame.EncodePNG(&buf); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}
	loc, err := sink.Put(ctx, surface.StillName(frame, s.opts.Now()), buf.Bytes())
	if err != nil {
		return "", err
	}
	s.log.WithField("location", loc).Info("still exported")
	return loc, nil
}

// RenderSpec captures the chain and settings for an offline render.
func (s *Session) RenderSpec() renderjob.Spec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return renderjob.Spec{
		Chain:    slices.Clone(s.chain),
		Settings: s.settings.Clone(),
		Audio:    s.opts.Audio.Latest(),
	}
}
