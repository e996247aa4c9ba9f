package source

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevecastle/fxlab/binexec"
	"github.com/stevecastle/fxlab/surface"
)

func TestParseProbe(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		d       float64
		w, h    int
		wantErr bool
	}{
		{"ok", `{"streams":[{"width":1920,"height":1080}],"format":{"duration":"12.480000"}}`, 12.48, 1920, 1080, false},
		{"no stream", `{"streams":[],"format":{"duration":"1"}}`, 0, 0, 0, true},
		{"bad duration", `{"streams":[{"width":2,"height":2}],"format":{"duration":"N/A"}}`, 0, 0, 0, true},
		{"not json", `oops`, 0, 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, w, h, err := parseProbe([]byte(tt.in))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.d, d)
			assert.Equal(t, tt.w, w)
			assert.Equal(t, tt.h, h)
		})
	}
}

func TestEvenSize(t *testing.T) {
	w, h := evenSize(1281, 721)
	assert.Equal(t, 1280, w)
	assert.Equal(t, 720, h)
	w, h = evenSize(1, 0)
	assert.Equal(t, 2, w)
	assert.Equal(t, 2, h)
}

func writePNG(t *testing.T, w, h int, c color.NRGBA) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	p := filepath.Join(t.TempDir(), "still.png")
	f, err := os.Create(p)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return p
}

func TestStill(t *testing.T) {
	p := writePNG(t, 4, 3, color.NRGBA{R: 9, G: 8, B: 7, A: 255})
	src, err := Open(context.Background(), p, binexec.Tool{Name: "ffmpeg"})
	require.NoError(t, err)
	defer src.Close()

	w, h := src.Size()
	assert.Equal(t, 4, w)
	assert.Equal(t, 3, h)
	assert.Zero(t, src.Duration())
	require.NoError(t, src.Seek(context.Background(), 3))

	dst := surface.New(4, 3)
	require.NoError(t, src.Draw(dst))
	assert.Equal(t, []uint8{9, 8, 7, 255}, dst.Pix()[:4])

	big := surface.New(8, 6)
	require.NoError(t, src.Draw(big))
	px := big.Pix()[big.Offset(7, 5):]
	assert.InDelta(t, 9, int(px[0]), 1)
	assert.InDelta(t, 7, int(px[2]), 1)
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "gone.mp4"), binexec.Tool{Name: "ffmpeg"})
	assert.ErrorIs(t, err, ErrInputUnavailable)

	bad := filepath.Join(t.TempDir(), "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o644))
	_, err = Open(context.Background(), bad, binexec.Tool{Name: "ffmpeg"})
	assert.ErrorIs(t, err, ErrInputUnavailable)
}

func TestVideoPauseRestoresPlayback(t *testing.T) {
	v := &VideoFile{}
	resume := v.Pause()
	resume()
	assert.False(t, v.Playing())

	v.Play()
	resume = v.Pause()
	assert.False(t, v.Playing())
	resume()
	assert.True(t, v.Playing())
}

func TestVideoFileDecodes(t *testing.T) {
	for _, tool := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not installed", tool)
		}
	}
	clip := filepath.Join(t.TempDir(), "clip.mp4")
	gen := exec.Command("ffmpeg", "-hide_banner", "-loglevel", "error", "-y",
		"-f", "lavfi", "-i", "testsrc=size=64x48:rate=30:duration=1",
		"-pix_fmt", "yuv420p", clip)
	if out, err := gen.CombinedOutput(); err != nil {
		t.Skipf("cannot generate clip: %v %s", err, out)
	}

	ctx := context.Background()
	v, err := OpenVideo(ctx, clip, binexec.Tool{Name: "ffmpeg"})
	require.NoError(t, err)
	defer v.Close()
	assert.InDelta(t, 1.0, v.Duration(), 0.1)
	w, h := v.Size()
	assert.Equal(t, 64, w)
	assert.Equal(t, 48, h)

	dst := surface.New(w, h)
	for i := 0; i < 5; i++ {
		sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		require.NoError(t, v.Seek(sctx, float64(i)/30))
		cancel()
		require.NoError(t, v.Draw(dst))
	}
	require.NoError(t, v.Seek(ctx, 0.5))
	require.NoError(t, v.Draw(dst))
}

// scriptedDecoder returns a VideoFile whose ffmpeg is a shell script that
// streams 2x2 frames, frame i filled with byte i, and appends the
// requested start time to a log on every launch.
func scriptedDecoder(t *testing.T, frames int) (*VideoFile, string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("decoder script needs /bin/sh")
	}
	const w, h = 2, 2
	dir := t.TempDir()
	var data []byte
	for i := 0; i < frames; i++ {
		data = append(data, bytes.Repeat([]byte{byte(i)}, w*h*4)...)
	}
	raw := filepath.Join(dir, "frames.rgba")
	require.NoError(t, os.WriteFile(raw, data, 0o644))
	starts := filepath.Join(dir, "starts.log")
	script := fmt.Sprintf("#!/bin/sh\necho \"$5\" >> %q\nexec cat %q\n", starts, raw)
	exe := filepath.Join(dir, "ffmpeg")
	require.NoError(t, os.WriteFile(exe, []byte(script), 0o755))

	v := &VideoFile{
		path:     "clip.mp4",
		ffmpeg:   binexec.Tool{Name: "ffmpeg", Override: exe},
		duration: 10,
		w:        w,
		h:        h,
		frame:    make([]byte, w*h*4),
		log:      logrus.WithField("component", "source"),
	}
	t.Cleanup(func() { v.Close() })
	return v, starts
}

func previewTicks(n int, every time.Duration) []float64 {
	ts := make([]float64, n)
	for i := range ts {
		ts[i] = (time.Duration(i) * every).Seconds()
	}
	return ts
}

func TestVideoSeekReusesDecoder(t *testing.T) {
	tests := []struct {
		name   string
		frames int
		seeks  []float64
		starts []string
		shown  byte
	}{
		{"preview ticks", 90, previewTicks(20, 16*time.Millisecond), []string{"0.000000"}, 9},
		{"same frame", 90, []float64{0, 0.02}, []string{"0.000000"}, 0},
		{"short skip", 90, []float64{0, 1}, []string{"0.000000"}, 30},
		{"backward", 90, []float64{1, 0.5}, []string{"1.000000", "0.500000"}, 0},
		{"far ahead", 90, []float64{0, 5}, []string{"0.000000", "5.000000"}, 0},
		{"past the end", 3, []float64{0, 0.04, 0.2, 0.3}, []string{"0.000000"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, starts := scriptedDecoder(t, tt.frames)
			for _, at := range tt.seeks {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				require.NoError(t, v.Seek(ctx, at), "seek %.3f", at)
				cancel()
			}
			log, err := os.ReadFile(starts)
			require.NoError(t, err)
			assert.Equal(t, tt.starts, strings.Fields(string(log)))

			dst := surface.New(2, 2)
			require.NoError(t, v.Draw(dst))
			assert.Equal(t, tt.shown, dst.Pix()[0])
		})
	}
}
