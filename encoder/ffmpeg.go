// Package encoder turns composited frames into a video file with ffmpeg.
// Frames are streamed as raw RGBA over stdin.
package encoder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stevecastle/fxlab/binexec"
	"github.com/stevecastle/fxlab/surface"
)

const stderrTail = 20

// Options configure an ffmpeg encoder.
type Options struct {
	FFmpeg binexec.Tool
	// Codecs overrides the candidate list by encoder name.
	Codecs []string
	// ScratchDir receives the intermediate file.
	ScratchDir string
	// GOP is the keyframe interval in frames.
	GOP int
}

// FFmpeg is an encoder backed by an ffmpeg child process.
type FFmpeg struct {
	opts  Options
	codec Codec
	log   *logrus.Entry

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	out    string
	w, h   int
	rate   float64
	frames int
	warned bool
	closed bool

	tailMu sync.Mutex
	tail   []string
	drain  chan struct{}
}

// Open probes ffmpeg for a usable codec. It does not start encoding.
func Open(ctx context.Context, opts Options) (*FFmpeg, error) {
	available, err := Probe(ctx, opts.FFmpeg)
	if err != nil {
		return nil, err
	}
	codec, err := Select(available, Filter(opts.Codecs))
	if err != nil {
		return nil, err
	}
	if opts.GOP <= 0 {
		opts.GOP = 30
	}
	if opts.ScratchDir == "" {
		opts.ScratchDir = os.TempDir()
	}
	return &FFmpeg{
		opts:  opts,
		codec: codec,
		log:   logrus.WithFields(logrus.Fields{"component": "encoder", "codec": codec.Encoder}),
	}, nil
}

// Codec is the selected codec.
func (e *FFmpeg) Codec() Codec { return e.codec }

// Extension is the output file extension.
func (e *FFmpeg) Extension() string { return e.codec.Extension }

// args builds the ffmpeg command line for a w x h stream at rate fps.
func (e *FFmpeg) args(w, h int, rate float64, bitrate int, out string) []string {
	r := strconv.FormatFloat(rate, 'f', -1, 64)
	a := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "rawvideo", "-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", w, h),
		"-r", r,
		"-i", "-",
		"-an",
		"-c:v", e.codec.Encoder,
	}
	if e.codec.Profile != "" {
		a = append(a, "-profile:v", e.codec.Profile)
	}
	gop := strconv.Itoa(e.opts.GOP)
	a = append(a,
		"-b:v", strconv.Itoa(bitrate),
		"-g", gop,
		"-force_key_frames", "expr:eq(mod(n,"+gop+"),0)",
		"-pix_fmt", "yuv420p",
	)
	if e.codec.Container == "mp4" {
		a = append(a, "-movflags", "+faststart")
	}
	return append(a, "-f", e.codec.Container, out)
}

// Configure starts the ffmpeg process.
func (e *FFmpeg) Configure(w, h int, rate float64, bitrate int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cmd != nil {
		return errors.New("encoder already configured")
	}
	if w <= 0 || h <= 0 || rate <= 0 {
		return fmt.Errorf("invalid stream %dx%d@%v", w, h, rate)
	}
	// yuv420p needs even dimensions.
	if w%2 != 0 || h%2 != 0 {
		return fmt.Errorf("frame size %dx%d must be even", w, h)
	}
	if err := os.MkdirAll(e.opts.ScratchDir, 0o755); err != nil {
		return fmt.Errorf("scratch dir: %w", err)
	}
	out := filepath.Join(e.opts.ScratchDir, "fxlab-"+uuid.NewString()+"."+e.codec.Extension)

	// The process outlives Configure; Close kills it.
	cmd, err := e.opts.FFmpeg.Command(context.Background(), e.args(w, h, rate, bitrate, out)...)
	if err != nil {
		return err
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}
	e.drain = make(chan struct{})
	go e.collect(stderr)

	e.cmd, e.stdin, e.out = cmd, stdin, out
	e.w, e.h, e.rate = w, h, rate
	e.log.WithFields(logrus.Fields{"width": w, "height": h, "bitrate": bitrate}).Debug("ffmpeg started")
	return nil
}

func (e *FFmpeg) collect(r io.Reader) {
	defer close(e.drain)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		e.log.Debug("ffmpeg: " + line)
		e.tailMu.Lock()
		e.tail = append(e.tail, line)
		if len(e.tail) > stderrTail {
			e.tail = e.tail[len(e.tail)-stderrTail:]
		}
		e.tailMu.Unlock()
	}
}

func (e *FFmpeg) stderr() string {
	e.tailMu.Lock()
	defer e.tailMu.Unlock()
	return strings.Join(e.tail, "\n")
}

// Encode writes one frame. Frames must arrive at a constant rate starting at
// zero. Keyframes follow the configured GOP; a hint that disagrees with it is
// logged once.
func (e *FFmpeg) Encode(s *surface.Surface, pts float64, keyframe bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cmd == nil || e.closed {
		return errors.New("encoder not running")
	}
	if s.Width() != e.w || s.Height() != e.h {
		return fmt.Errorf("%w: frame %dx%d, stream %dx%d", surface.ErrSizeMismatch, s.Width(), s.Height(), e.w, e.h)
	}
	want := float64(e.frames) / e.rate
	if math.Abs(pts-want) > 0.5/e.rate {
		return fmt.Errorf("frame %d has pts %.4f, expected %.4f", e.frames, pts, want)
	}
	if keyframe != (e.frames%e.opts.GOP == 0) && !e.warned {
		e.warned = true
		e.log.WithField("frame", e.frames).Warn("keyframe hint differs from GOP")
	}
	if _, err := s.WriteTo(e.stdin); err != nil {
		return fmt.Errorf("write frame %d: %w (%s)", e.frames, err, e.stderr())
	}
	e.frames++
	return nil
}

// Flush ends the stream, waits for ffmpeg and returns the file contents.
func (e *FFmpeg) Flush() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cmd == nil || e.closed {
		return nil, errors.New("encoder not running")
	}
	e.closed = true
	defer os.Remove(e.out)

	if err := e.stdin.Close(); err != nil {
		e.kill()
		return nil, fmt.Errorf("close stdin: %w", err)
	}
	<-e.drain
	if err := e.cmd.Wait(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, e.stderr())
	}
	data, err := os.ReadFile(e.out)
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}
	e.log.WithFields(logrus.Fields{"frames": e.frames, "bytes": len(data)}).Debug("ffmpeg finished")
	return data, nil
}

// Close stops ffmpeg if it is still running and removes partial output.
func (e *FFmpeg) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cmd == nil || e.closed {
		return nil
	}
	e.closed = true
	_ = e.stdin.Close()
	e.kill()
	if err := os.Remove(e.out); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// kill stops the process and reaps it. Callers hold e.mu.
func (e *FFmpeg) kill() {
	if e.cmd.Process != nil {
		_ = e.cmd.Process.Kill()
	}
	<-e.drain
	_ = e.cmd.Wait()
}
