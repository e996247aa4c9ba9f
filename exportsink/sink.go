// Package exportsink stores finished renders and still exports.
package exportsink

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

var ErrBadName = errors.New("invalid export name")

// cleanName rejects names that would escape the destination.
func cleanName(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrBadName, name)
	}
	return name, nil
}

// Container types missing from the builtin mime table on some systems.
var exportTypes = map[string]string{
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".png":  "image/png",
}

func contentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := exportTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

// Dir writes exports into a local directory.
type Dir struct {
	Path string
	log  *logrus.Entry
}

// NewDir returns a sink writing into path. The directory is created on the
// first export.
func NewDir(path string) *Dir {
	return &Dir{Path: path, log: logrus.WithField("component", "exportsink.dir")}
}

// Put writes data under name. An existing file is never overwritten; a
// numeric suffix is added instead.
func (d *Dir) Put(ctx context.Context, name string, data []byte) (string, error) {
	name, err := cleanName(name)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(d.Path, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 0; ; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s-%d%s", stem, i, ext)
		}
		p := filepath.Join(d.Path, candidate)
		f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create export: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(p)
			return "", fmt.Errorf("write export: %w", err)
		}
		if err := f.Close(); err != nil {
			os.Remove(p)
			return "", fmt.Errorf("write export: %w", err)
		}
		d.log.WithFields(logrus.Fields{"path": p, "bytes": len(data)}).Info("export written")
		return p, nil
	}
}
