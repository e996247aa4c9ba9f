// Command fxstudio runs the live effects studio: a preview session driven by
// the frame scheduler, offline renders and the HTTP control API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/browser"
	"github.com/sirupsen/logrus"

	"github.com/stevecastle/fxlab/appconfig"
	"github.com/stevecastle/fxlab/audio"
	"github.com/stevecastle/fxlab/auth"
	"github.com/stevecastle/fxlab/bootstrap"
	"github.com/stevecastle/fxlab/compositor"
	"github.com/stevecastle/fxlab/effects"
	"github.com/stevecastle/fxlab/gesture"
	"github.com/stevecastle/fxlab/platform"
	"github.com/stevecastle/fxlab/presets"
	"github.com/stevecastle/fxlab/renderjob"
	"github.com/stevecastle/fxlab/scheduler"
	"github.com/stevecastle/fxlab/server"
	"github.com/stevecastle/fxlab/stream"
	"github.com/stevecastle/fxlab/studio"
)

func main() {
	var (
		configPath   string
		listenAddr   string
		input        string
		accessKey    string
		noBrowser    bool
		renderSlots  int
		shutdownWait time.Duration
	)
	flag.StringVar(&configPath, "config", appconfig.DefaultPath(), "Path to config JSON")
	flag.StringVar(&listenAddr, "listen", "", "Listen address (overrides config)")
	flag.StringVar(&input, "input", "", "Optional media to load on startup")
	flag.StringVar(&accessKey, "set-access-key", "", "Store a new API access key in the config and exit")
	flag.BoolVar(&noBrowser, "no-browser", false, "Do not open the browser")
	flag.IntVar(&renderSlots, "render-slots", 1, "Offline renders allowed at once")
	flag.DurationVar(&shutdownWait, "shutdown-timeout", 5*time.Second, "Grace period for open connections")
	flag.Parse()

	cfg, path, err := appconfig.LoadFile(configPath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	appconfig.ConfigureLogging(cfg.LogLevel)

	if accessKey != "" {
		if err := storeAccessKey(path, cfg, accessKey); err != nil {
			logrus.WithError(err).Fatal("failed to store access key")
		}
		fmt.Printf("Access key stored in %s\n", path)
		return
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if noBrowser {
		cfg.OpenBrowser = false
	}

	if err := run(cfg, input, renderSlots, shutdownWait); err != nil {
		logrus.WithError(err).Fatal("studio stopped")
	}
}

func storeAccessKey(path string, cfg appconfig.Config, key string) error {
	hash, err := auth.HashKey(key)
	if err != nil {
		return err
	}
	cfg.Auth.AccessKeyHash = hash
	_, err = appconfig.SaveFile(path, cfg)
	return err
}

func run(cfg appconfig.Config, input string, renderSlots int, shutdownWait time.Duration) error {
	log := logrus.WithField("component", "fxstudio")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithField("path", cfg.DBPath).Info("using database")
	db, err := bootstrap.OpenDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	masks := bootstrap.MaskWorker(cfg)
	defer masks.Close()
	comp := compositor.New(effects.NewRegistry(effects.Options{Masks: masks}))

	// Analysers and hand trackers run in the browser and push readings
	// through the control API.
	audioLatch := &audio.Latch{}
	gestureLatch := &gesture.Latch{}
	if err := audioLatch.Start(ctx); err != nil {
		return err
	}
	if err := gestureLatch.Start(ctx); err != nil {
		return err
	}
	open := bootstrap.SourceOpener(bootstrap.FFmpeg(cfg))

	sess := studio.New(studio.Options{
		Compositor: comp,
		Open:       open,
		Audio:      audioLatch,
		Gestures:   gestureLatch,
	})
	defer sess.Close()
	if input != "" {
		if err := sess.Load(ctx, input); err != nil {
			log.WithError(err).WithField("input", input).Warn("could not load startup media")
		}
	}

	sink, err := bootstrap.Sink(ctx, cfg)
	if err != nil {
		return fmt.Errorf("export destination: %w", err)
	}
	store, err := presets.Open(db)
	if err != nil {
		return err
	}
	authSvc, err := auth.NewService(cfg.Auth.AccessKeyHash, cfg.Auth.JWTSecret)
	if err != nil {
		return err
	}
	if !authSvc.Enabled() {
		log.Warn("no access key configured, control API is open")
	}

	hub := stream.NewHub()
	defer hub.Shutdown()

	renderer := renderjob.NewRenderer(comp, bootstrap.EncoderOpener(cfg))
	renders, err := renderjob.NewManager(renderer, renderjob.ManagerOptions{
		DB:          db,
		Open:        bootstrap.RenderSources(open),
		Sink:        sink,
		Publisher:   hub,
		Concurrency: renderSlots,
	})
	if err != nil {
		return err
	}
	defer renders.Shutdown()

	sched := scheduler.New(scheduler.Config{
		Tick:    sess.Tick,
		Load:    sess.ActiveLoad,
		Observe: hub.PublishFPS,
	})
	go func() {
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, scheduler.ErrStopped) {
			log.WithError(err).Error("preview loop stopped")
		}
	}()
	defer sched.Stop()

	srv := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: server.New(server.Dependencies{
			Session:   sess,
			Renders:   renders,
			Presets:   store,
			Hub:       hub,
			Auth:      authSvc,
			Sink:      sink,
			Scheduler: sched,
			Audio:     audioLatch,
			Gestures:  gestureLatch,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.ListenAddr).Infof("%s listening", platform.DisplayName)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if cfg.OpenBrowser {
		if err := browser.OpenURL("http://" + cfg.ListenAddr + "/api/session"); err != nil {
			log.WithError(err).Debug("could not open browser")
		}
	}

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWait)
	defer cancel()
	// The hub holds SSE connections open; drop them before waiting on the server.
	hub.Shutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	return nil
}
