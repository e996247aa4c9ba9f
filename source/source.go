// Package source provides the media a session or an export reads frames
// from: video files decoded by ffmpeg and still images.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/stevecastle/fxlab/binexec"
	"github.com/stevecastle/fxlab/surface"
)

// ErrInputUnavailable is returned when media cannot be opened or decoded.
var ErrInputUnavailable = errors.New("input unavailable")

// Source is a seekable frame provider.
type Source interface {
	Duration() float64
	Size() (width, height int)
	Seek(ctx context.Context, t float64) error
	Draw(dst *surface.Surface) error
	Pause() (resume func())
	Close() error
}

var stillExt = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".webp": true, ".bmp": true, ".tif": true, ".tiff": true,
}

// IsStill reports whether path names a still image format.
func IsStill(path string) bool {
	return stillExt[strings.ToLower(filepath.Ext(path))]
}

// Open picks a still or video source by file extension.
func Open(ctx context.Context, path string, ffmpeg binexec.Tool) (Source, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInputUnavailable, err)
	}
	if IsStill(path) {
		return OpenStill(path)
	}
	return OpenVideo(ctx, path, ffmpeg)
}

// evenSize rounds dimensions down to even numbers, as 4:2:0 encoders need.
func evenSize(w, h int) (int, int) {
	w, h = w&^1, h&^1
	if w < 2 {
		w = 2
	}
	if h < 2 {
		h = 2
	}
	return w, h
}
