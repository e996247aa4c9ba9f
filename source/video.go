package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/stevecastle/fxlab/binexec"
	"github.com/stevecastle/fxlab/surface"
)

// DecodeRate is the frame rate video is decoded at.
const DecodeRate = 30

// MaxSkipAhead is how far, in seconds, a forward seek reads through the
// running decoder before restarting it at the target is cheaper.
const MaxSkipAhead = 2.0

const frameStep = 1.0 / DecodeRate

// VideoFile decodes a video with ffmpeg. A seek that lands on the frame
// already held decodes nothing, a short forward seek discards frames from
// the running decoder and anything else restarts it at the target time.
type VideoFile struct {
	path     string
	ffmpeg   binexec.Tool
	duration float64
	w, h     int
	log      *logrus.Entry

	mu      sync.Mutex
	dec     *decoder
	next    float64 // time of the frame the decoder yields next
	frame   []byte
	have    bool
	eof     bool // the decoder ran out at next
	playing bool
}

type decoder struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
}

func (d *decoder) stop() {
	_ = d.stdout.Close()
	if d.cmd.Process != nil {
		_ = d.cmd.Process.Kill()
	}
	_ = d.cmd.Wait()
}

type probeResult struct {
	Streams []struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// parseProbe reads ffprobe JSON output into duration and size.
func parseProbe(data []byte) (float64, int, int, error) {
	var p probeResult
	if err := json.Unmarshal(data, &p); err != nil {
		return 0, 0, 0, err
	}
	if len(p.Streams) == 0 || p.Streams[0].Width <= 0 || p.Streams[0].Height <= 0 {
		return 0, 0, 0, errors.New("no video stream")
	}
	d, err := strconv.ParseFloat(p.Format.Duration, 64)
	if err != nil || math.IsNaN(d) || d < 0 {
		return 0, 0, 0, fmt.Errorf("bad duration %q", p.Format.Duration)
	}
	return d, p.Streams[0].Width, p.Streams[0].Height, nil
}

// OpenVideo probes path and prepares a decoder. No frame is decoded yet.
func OpenVideo(ctx context.Context, path string, ffmpeg binexec.Tool) (*VideoFile, error) {
	cmd, err := ffmpeg.Sibling("ffprobe").Command(ctx,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height:format=duration",
		"-of", "json",
		path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInputUnavailable, err)
	}
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: probe %s: %v", ErrInputUnavailable, path, err)
	}
	d, w, h, err := parseProbe(out)
	if err != nil {
		return nil, fmt.Errorf("%w: probe %s: %v", ErrInputUnavailable, path, err)
	}
	w, h = evenSize(w, h)
	return &VideoFile{
		path:     path,
		ffmpeg:   ffmpeg,
		duration: d,
		w:        w,
		h:        h,
		frame:    make([]byte, w*h*4),
		log:      logrus.WithFields(logrus.Fields{"component": "source", "path": path}),
	}, nil
}

func (v *VideoFile) Duration() float64 { return v.duration }

func (v *VideoFile) Size() (int, int) { return v.w, v.h }

func (v *VideoFile) decodeArgs(t float64) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-ss", strconv.FormatFloat(t, 'f', 6, 64),
		"-i", v.path,
		"-an",
		"-vf", fmt.Sprintf("fps=%d,scale=%d:%d", DecodeRate, v.w, v.h),
		"-f", "rawvideo", "-pix_fmt", "rgba",
		"-",
	}
}

func (v *VideoFile) restart(t float64) error {
	if v.dec != nil {
		v.dec.stop()
		v.dec = nil
	}
	cmd, err := v.ffmpeg.Command(context.Background(), v.decodeArgs(t)...)
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start decoder: %w", err)
	}
	v.dec = &decoder{cmd: cmd, stdout: stdout}
	v.next = t
	v.eof = false
	v.log.WithField("at", t).Debug("decoder started")
	return nil
}

// Seek decodes the frame at t. A seek that does not finish before ctx ends
// kills the decoder and returns the context error.
func (v *VideoFile) Seek(ctx context.Context, t float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if t < 0 {
		t = 0
	}
	const eps = 1e-6
	if v.have && t >= v.next-frameStep-eps && (t < v.next-eps || v.eof) {
		return nil
	}
	skip := 0
	if v.dec != nil && t >= v.next-eps && t-v.next <= MaxSkipAhead {
		skip = int(math.Floor((t-v.next)*DecodeRate + eps))
	} else if err := v.restart(t); err != nil {
		return err
	}

	buf := make([]byte, len(v.frame))
	done := make(chan error, 1)
	go func(r io.Reader) {
		var err error
		for i := 0; i <= skip && err == nil; i++ {
			_, err = io.ReadFull(r, buf)
		}
		done <- err
	}(v.dec.stdout)

	select {
	case err := <-done:
		switch {
		case err == nil:
			copy(v.frame, buf)
			v.have = true
			v.next += float64(skip+1) * frameStep
		case (errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)) && v.have:
			// Past the last decodable frame: keep showing the previous one.
			v.dec.stop()
			v.dec = nil
			v.eof = true
		default:
			v.dec.stop()
			v.dec = nil
			return fmt.Errorf("decode at %.3fs: %w", t, err)
		}
		return nil
	case <-ctx.Done():
		v.dec.stop()
		v.dec = nil
		<-done
		return ctx.Err()
	}
}

// Draw copies the last decoded frame into dst.
func (v *VideoFile) Draw(dst *surface.Surface) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.have {
		return errors.New("no frame decoded")
	}
	if dst.Width() == v.w && dst.Height() == v.h {
		copy(dst.Pix(), v.frame)
		return nil
	}
	src := surface.New(v.w, v.h)
	copy(src.Pix(), v.frame)
	dst.DrawScaled(src.Image())
	return nil
}

// Play marks the video as playing in a live session.
func (v *VideoFile) Play() {
	v.mu.Lock()
	v.playing = true
	v.mu.Unlock()
}

// Playing reports the live playback flag.
func (v *VideoFile) Playing() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.playing
}

// Pause stops live playback and returns a func restoring the prior state.
func (v *VideoFile) Pause() func() {
	v.mu.Lock()
	was := v.playing
	v.playing = false
	v.mu.Unlock()
	return func() {
		v.mu.Lock()
		v.playing = was
		v.mu.Unlock()
	}
}

// Close stops the decoder.
func (v *VideoFile) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.dec != nil {
		v.dec.stop()
		v.dec = nil
	}
	return nil
}
