// Package binexec locates external tools such as ffmpeg and builds
// commands for them.
package binexec

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/stevecastle/fxlab/platform"
)

// ErrNotFound is returned when a tool is neither configured nor on PATH.
var ErrNotFound = errors.New("executable not found")

// Tool names an external executable and an optional configured location.
// Override may point at the binary itself or at the directory holding it.
type Tool struct {
	Name     string
	Override string
}

// Path resolves the tool: the override first, then PATH.
func (t Tool) Path() (string, error) {
	exe := t.Name + platform.BinaryExtension()
	if t.Override != "" {
		p := t.Override
		if st, err := os.Stat(p); err == nil && st.IsDir() {
			p = filepath.Join(p, exe)
		}
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("%w: %s (configured %s)", ErrNotFound, t.Name, t.Override)
	}
	p, err := exec.LookPath(exe)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrNotFound, t.Name, err)
	}
	return p, nil
}

// Command returns a ready to start command for the tool.
func (t Tool) Command(ctx context.Context, args ...string) (*exec.Cmd, error) {
	p, err := t.Path()
	if err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, p, args...)
	configure(cmd)
	return cmd, nil
}

// Sibling returns a tool installed next to t, such as ffprobe beside ffmpeg.
func (t Tool) Sibling(name string) Tool {
	s := Tool{Name: name}
	if t.Override == "" {
		return s
	}
	dir := t.Override
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		dir = filepath.Dir(dir)
	}
	s.Override = dir
	return s
}
