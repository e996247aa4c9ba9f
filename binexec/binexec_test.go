package binexec

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevecastle/fxlab/platform"
)

func TestToolPath(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "ffmpeg"+platform.BinaryExtension())
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755))

	tests := []struct {
		name    string
		tool    Tool
		want    string
		wantErr bool
	}{
		{"file override", Tool{Name: "ffmpeg", Override: exe}, exe, false},
		{"dir override", Tool{Name: "ffmpeg", Override: dir}, exe, false},
		{"missing override", Tool{Name: "ffmpeg", Override: filepath.Join(dir, "nope")}, "", true},
		{"not on path", Tool{Name: "fxlab-tool-that-does-not-exist"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.tool.Path()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSibling(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "ffmpeg")
	require.NoError(t, os.WriteFile(exe, nil, 0o755))

	assert.Equal(t, Tool{Name: "ffprobe", Override: dir}, Tool{Name: "ffmpeg", Override: exe}.Sibling("ffprobe"))
	assert.Equal(t, Tool{Name: "ffprobe", Override: dir}, Tool{Name: "ffmpeg", Override: dir}.Sibling("ffprobe"))
	assert.Equal(t, Tool{Name: "ffprobe"}, Tool{Name: "ffmpeg"}.Sibling("ffprobe"))
}

func TestCommandMissingTool(t *testing.T) {
	_, err := Tool{Name: "fxlab-tool-that-does-not-exist"}.Command(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}
