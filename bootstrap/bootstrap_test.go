package bootstrap

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevecastle/fxlab/appconfig"
	"github.com/stevecastle/fxlab/binexec"
	"github.com/stevecastle/fxlab/exportsink"
	"github.com/stevecastle/fxlab/platform"
	"github.com/stevecastle/fxlab/source"
	"github.com/stevecastle/fxlab/surface"
)

func TestOpenDB(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "fxlab.db"))
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`CREATE TABLE t (x INTEGER)`)
	assert.NoError(t, err)
}

func TestSinkDefaultsToExportDir(t *testing.T) {
	dir := t.TempDir()
	sink, err := Sink(context.Background(), appconfig.Config{ExportDir: dir})
	require.NoError(t, err)
	d, ok := sink.(*exportsink.Dir)
	require.True(t, ok)
	assert.Equal(t, dir, d.Path)
}

func TestSinkUsesBucket(t *testing.T) {
	cfg := appconfig.Config{S3: appconfig.S3Config{
		Bucket:          "renders",
		Region:          "us-east-1",
		Prefix:          "studio",
		AccessKeyID:     "AKID",
		SecretAccessKey: "secret",
	}}
	sink, err := Sink(context.Background(), cfg)
	require.NoError(t, err)
	s3, ok := sink.(*exportsink.S3)
	require.True(t, ok)
	assert.Equal(t, "studio/a.mp4", s3.Key("a.mp4"))
}

func TestEncoderOpenerWithoutFFmpeg(t *testing.T) {
	open := EncoderOpener(appconfig.Config{FFmpegPath: filepath.Join(t.TempDir(), "missing")})
	enc, err := open(context.Background())
	assert.ErrorIs(t, err, binexec.ErrNotFound)
	// A failed probe must surface as a nil interface, not a typed nil.
	assert.True(t, enc == nil)
}

func TestRenderSourcesOpensStill(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.png")
	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	open := RenderSources(SourceOpener(FFmpeg(appconfig.Config{})))
	src, err := open(context.Background(), path)
	require.NoError(t, err)
	w, h := src.Size()
	assert.Equal(t, 4, w)
	assert.Equal(t, 2, h)

	_, err = open(context.Background(), filepath.Join(t.TempDir(), "nope.png"))
	assert.ErrorIs(t, err, source.ErrInputUnavailable)
}

func TestSegmentOptions(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	opts := SegmentOptions(appconfig.Config{Segmentation: appconfig.SegmentationConfig{
		ModelPath: "/models/selfie.onnx",
		InputSize: 144,
		Threshold: 0.25,
	}})
	assert.Equal(t, "/models/selfie.onnx", opts.ModelPath)
	assert.Equal(t, 144, opts.InputSize)
	assert.InDelta(t, 0.25, opts.Threshold, 1e-6)
	assert.Equal(t, "NHWC", opts.Layout)
}

func TestMaskWorkerWithoutModel(t *testing.T) {
	w := MaskWorker(appconfig.Config{Segmentation: appconfig.SegmentationConfig{
		ModelPath: filepath.Join(t.TempDir(), "missing.onnx"),
	}})
	var got atomic.Pointer[image.Gray]
	w.Request(surface.New(2, 2), got.Store)
	require.NoError(t, w.Close())
	assert.Nil(t, got.Load())
	assert.Zero(t, w.Runs())
}

func TestSegmentOptionsFindsBundledRuntime(t *testing.T) {
	data := t.TempDir()
	t.Setenv("XDG_DATA_HOME", data)
	t.Setenv("HOME", data)
	t.Setenv("APPDATA", data)
	require.NoError(t, os.MkdirAll(platform.DataDir(), 0o755))
	lib := filepath.Join(platform.DataDir(), "onnxruntime"+platform.SharedLibExtension())
	require.NoError(t, os.WriteFile(lib, []byte("stub"), 0o644))

	assert.Equal(t, lib, SegmentOptions(appconfig.Config{}).ORTSharedLibraryPath)

	configured := appconfig.Config{Segmentation: appconfig.SegmentationConfig{ORTSharedLibraryPath: "/opt/ort/lib.so"}}
	assert.Equal(t, "/opt/ort/lib.so", SegmentOptions(configured).ORTSharedLibraryPath)
}
