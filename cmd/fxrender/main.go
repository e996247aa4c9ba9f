// Command fxrender exports media through an effect chain without the studio
// server. Videos are re-rendered frame by frame at the export frame rate;
// stills are composited once and saved as PNG.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stevecastle/fxlab/appconfig"
	"github.com/stevecastle/fxlab/audio"
	"github.com/stevecastle/fxlab/bootstrap"
	"github.com/stevecastle/fxlab/catalog"
	"github.com/stevecastle/fxlab/compositor"
	"github.com/stevecastle/fxlab/effects"
	"github.com/stevecastle/fxlab/exportsink"
	"github.com/stevecastle/fxlab/platform"
	"github.com/stevecastle/fxlab/presets"
	"github.com/stevecastle/fxlab/renderjob"
	"github.com/stevecastle/fxlab/source"
	"github.com/stevecastle/fxlab/studio"
)

// Exit codes. A cancelled render is not a failure but scripts still need to
// tell it apart from a finished export.
const (
	exitFailed    = 1
	exitUsage     = 2
	exitCancelled = 130
)

func main() {
	var (
		configPath string
		inputPath  string
		outDir     string
		chainCSV   string
		paramsJSON string
		presetID   string
		bitrate    int
		bass       float64
		mid        float64
		high       float64
		reveal     bool
	)
	flag.StringVar(&configPath, "config", appconfig.DefaultPath(), "Path to config JSON")
	flag.StringVar(&inputPath, "input", "", "Video or image to render")
	flag.StringVar(&outDir, "out", "", "Output directory (defaults to the configured export destination)")
	flag.StringVar(&chainCSV, "chain", "", "Comma separated effect ids, in order")
	flag.StringVar(&paramsJSON, "params", "", `Parameter overrides as JSON, e.g. {"glitch":{"intensity":40}}`)
	flag.StringVar(&presetID, "preset", "", "Saved preset id supplying the chain and parameters")
	flag.IntVar(&bitrate, "bitrate", 0, "Video bitrate in bits per second (defaults to config)")
	flag.Float64Var(&bass, "bass", 0, "Fixed bass level in [0,1] for audio reactive effects")
	flag.Float64Var(&mid, "mid", 0, "Fixed mid level in [0,1]")
	flag.Float64Var(&high, "high", 0, "Fixed high level in [0,1]")
	flag.BoolVar(&reveal, "reveal", false, "Open the folder holding a local export when done")
	flag.Parse()

	if inputPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --input is required")
		flag.Usage()
		os.Exit(exitUsage)
	}
	if chainCSV == "" && presetID == "" {
		fmt.Fprintln(os.Stderr, "Error: one of --chain or --preset is required")
		flag.Usage()
		os.Exit(exitUsage)
	}

	cfg, _, err := appconfig.LoadFile(configPath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	appconfig.ConfigureLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	spec, err := buildSpec(ctx, cfg, chainCSV, paramsJSON, presetID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitUsage)
	}
	spec.Audio = audio.Signal{Bass: bass, Mid: mid, High: high, Overall: (bass + mid + high) / 3}.Clamped()
	spec.Bitrate = bitrate
	if spec.Bitrate <= 0 {
		spec.Bitrate = cfg.Render.Bitrate
	}

	var sink renderjob.Sink
	if outDir != "" {
		sink = exportsink.NewDir(outDir)
	} else if sink, err = bootstrap.Sink(ctx, cfg); err != nil {
		logrus.WithError(err).Fatal("export destination")
	}

	location, err := render(ctx, cfg, inputPath, spec, sink)
	switch {
	case errors.Is(err, renderjob.ErrCancelled):
		fmt.Fprintln(os.Stderr, "Render cancelled")
		os.Exit(exitCancelled)
	case err != nil:
		logrus.WithError(err).Error("render failed")
		os.Exit(exitFailed)
	}
	fmt.Println(location)
	if _, local := sink.(*exportsink.Dir); reveal && local {
		if err := platform.Reveal(filepath.Dir(location)); err != nil {
			logrus.WithError(err).Warn("could not open export folder")
		}
	}
}

// parseChain splits a comma separated chain and rejects unknown or
// repeated ids.
func parseChain(csv string) ([]string, error) {
	var chain []string
	for _, id := range strings.Split(csv, ",") {
		if id = strings.TrimSpace(id); id != "" {
			chain = append(chain, id)
		}
	}
	if len(chain) == 0 {
		return nil, errors.New("empty effect chain")
	}
	if err := catalog.CheckChain(chain); err != nil {
		return nil, err
	}
	return chain, nil
}

// buildSpec resolves the chain and settings from a preset, then applies the
// command line on top of it.
func buildSpec(ctx context.Context, cfg appconfig.Config, chainCSV, paramsJSON, presetID string) (renderjob.Spec, error) {
	spec := renderjob.Spec{Settings: catalog.Settings{}}
	if presetID != "" {
		db, err := bootstrap.OpenDB(cfg.DBPath)
		if err != nil {
			return spec, err
		}
		defer db.Close()
		store, err := presets.Open(db)
		if err != nil {
			return spec, err
		}
		p, err := store.Load(ctx, presetID)
		if err != nil {
			return spec, fmt.Errorf("preset %s: %w", presetID, err)
		}
		spec.Chain, spec.Settings = p.Chain, p.Params.Clone()
	}
	if chainCSV != "" {
		chain, err := parseChain(chainCSV)
		if err != nil {
			return spec, err
		}
		spec.Chain = chain
	}
	if paramsJSON != "" {
		var overrides catalog.Settings
		if err := json.Unmarshal([]byte(paramsJSON), &overrides); err != nil {
			return spec, fmt.Errorf("parse --params: %w", err)
		}
		for id, params := range overrides {
			if _, ok := catalog.Lookup(id); !ok {
				return spec, fmt.Errorf("unknown effect %q in --params", id)
			}
			if spec.Settings[id] == nil {
				spec.Settings[id] = catalog.Params{}
			}
			for k, v := range params {
				spec.Settings[id][k] = v
			}
		}
	}
	return spec, nil
}

func render(ctx context.Context, cfg appconfig.Config, input string, spec renderjob.Spec, sink renderjob.Sink) (string, error) {
	masks := bootstrap.MaskWorker(cfg)
	defer masks.Close()
	comp := compositor.New(effects.NewRegistry(effects.Options{Masks: masks}))
	open := bootstrap.SourceOpener(bootstrap.FFmpeg(cfg))

	if source.IsStill(input) {
		return renderStill(ctx, comp, open, input, spec, sink)
	}

	src, err := open(ctx, input)
	if err != nil {
		return "", err
	}
	defer src.Close()

	log := logrus.WithFields(logrus.Fields{"component": "fxrender", "input": input})
	lastPct := -1
	r := renderjob.NewRenderer(comp, bootstrap.EncoderOpener(cfg))
	out, err := r.Render(ctx, spec, src, renderjob.Observer{
		Phase: func(p renderjob.Phase) { log.WithField("phase", p.String()).Debug("render phase") },
		Progress: func(pct int) {
			if pct != lastPct && pct%10 == 0 {
				log.Infof("%d%%", pct)
			}
			lastPct = pct
		},
		Status: func(msg string) { log.Info(msg) },
	})
	if err != nil {
		return "", err
	}
	// The export is finished; a late interrupt must not discard it.
	return sink.Put(context.WithoutCancel(ctx), renderjob.OutputName(out, time.Now()), out.Data)
}

// renderStill composites one frame of a still through the chain. Object
// masks arrive asynchronously, so the frame is rendered again once the
// segmenter has had a chance to answer.
func renderStill(ctx context.Context, comp *compositor.Compositor, open studio.OpenSource, input string, spec renderjob.Spec, sink renderjob.Sink) (string, error) {
	latch := &audio.Latch{}
	latch.Publish(spec.Audio)
	sess := studio.New(studio.Options{Compositor: comp, Open: open, Audio: latch})
	defer sess.Close()
	if err := sess.Load(ctx, input); err != nil {
		return "", err
	}
	if err := sess.Apply(spec.Chain, spec.Settings); err != nil {
		return "", err
	}
	sess.Tick(time.Now())
	if containsMask(spec.Chain) {
		select {
		case <-ctx.Done():
			return "", renderjob.ErrCancelled
		case <-time.After(500 * time.Millisecond):
		}
		sess.Tick(time.Now())
	}
	return sess.ExportStill(ctx, sink)
}

func containsMask(chain []string) bool {
	for _, id := range chain {
		if id == "objectMask" {
			return true
		}
	}
	return false
}
