// Package bootstrap builds the studio's long-lived components from a loaded
// config. The command binaries share it so a preview session and a headless
// render see the same kernels, encoder and export destination.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/stevecastle/fxlab/appconfig"
	"github.com/stevecastle/fxlab/binexec"
	"github.com/stevecastle/fxlab/encoder"
	"github.com/stevecastle/fxlab/exportsink"
	"github.com/stevecastle/fxlab/platform"
	"github.com/stevecastle/fxlab/renderjob"
	"github.com/stevecastle/fxlab/segment"
	"github.com/stevecastle/fxlab/source"
)

// OpenDB opens the sqlite database at path and checks the connection.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// FFmpeg is the configured ffmpeg executable.
func FFmpeg(cfg appconfig.Config) binexec.Tool {
	return binexec.Tool{Name: "ffmpeg", Override: cfg.FFmpegPath}
}

// SourceOpener opens stills and videos, decoding video with ffmpeg.
func SourceOpener(ffmpeg binexec.Tool) func(ctx context.Context, path string) (source.Source, error) {
	return func(ctx context.Context, path string) (source.Source, error) {
		return source.Open(ctx, path, ffmpeg)
	}
}

// RenderSources adapts open to the render manager's source type.
func RenderSources(open func(ctx context.Context, path string) (source.Source, error)) renderjob.OpenSource {
	return func(ctx context.Context, input string) (renderjob.Source, error) {
		src, err := open(ctx, input)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
}

// EncoderOpener probes ffmpeg for a codec each time a render starts, so a
// missing binary fails the job before any frame is composited.
func EncoderOpener(cfg appconfig.Config) renderjob.OpenEncoder {
	opts := encoder.Options{
		FFmpeg:     FFmpeg(cfg),
		Codecs:     cfg.Render.Codecs,
		ScratchDir: platform.ScratchDir(),
		GOP:        renderjob.KeyframeInterval,
	}
	return func(ctx context.Context) (renderjob.Encoder, error) {
		enc, err := encoder.Open(ctx, opts)
		if err != nil {
			return nil, err
		}
		return enc, nil
	}
}

// Sink picks the export destination: the configured bucket when one is set,
// the export directory otherwise.
func Sink(ctx context.Context, cfg appconfig.Config) (renderjob.Sink, error) {
	if cfg.S3.Bucket == "" {
		return exportsink.NewDir(cfg.ExportDir), nil
	}
	s3, err := exportsink.NewS3(ctx, exportsink.S3Options{
		Bucket:          cfg.S3.Bucket,
		Region:          cfg.S3.Region,
		Prefix:          cfg.S3.Prefix,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
		Endpoint:        cfg.S3.Endpoint,
	})
	if err != nil {
		return nil, err
	}
	return s3, nil
}

// SegmentOptions maps the segmentation config onto model options.
func SegmentOptions(cfg appconfig.Config) segment.Options {
	opts := segment.DefaultOptions()
	opts.ModelPath = cfg.Segmentation.ModelPath
	opts.ORTSharedLibraryPath = cfg.Segmentation.ORTSharedLibraryPath
	if opts.ORTSharedLibraryPath == "" {
		opts.ORTSharedLibraryPath = bundledORT()
	}
	if cfg.Segmentation.InputSize > 0 {
		opts.InputSize = cfg.Segmentation.InputSize
	}
	if cfg.Segmentation.Threshold > 0 {
		opts.Threshold = float32(cfg.Segmentation.Threshold)
	}
	return opts
}

// bundledORT returns an onnxruntime library dropped into the data directory,
// or "" so the environment variable and loader search apply.
func bundledORT() string {
	p := filepath.Join(platform.DataDir(), "onnxruntime"+platform.SharedLibExtension())
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}

// MaskWorker starts the background segmenter. Without a model, or when the
// model cannot be loaded, the worker never delivers a mask and the object
// mask effect passes frames through.
func MaskWorker(cfg appconfig.Config) *segment.Worker {
	log := logrus.WithField("component", "bootstrap")
	if cfg.Segmentation.ModelPath == "" {
		log.Debug("no segmentation model configured")
		return segment.NewWorker(nil)
	}
	seg, err := segment.NewONNX(SegmentOptions(cfg))
	if err != nil {
		log.WithError(err).Warn("object mask disabled")
		return segment.NewWorker(nil)
	}
	log.WithField("model", cfg.Segmentation.ModelPath).Info("segmentation model loaded")
	return segment.NewWorker(seg)
}
