package main

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/MitsuhaFe/Digest-AI/internal/app"
	"github.com/MitsuhaFe/Digest-AI/internal/server"
)

const reloadDelay = 200 * time.Millisecond

func runServe(ctx context.Context, e *env) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := cron.New()
	if _, err := sched.AddFunc(e.flags.purge, func() { purgeCache(e.app) }); err != nil {
		return usagef("cache purge schedule %q: %w", e.flags.purge, err)
	}
	purgeCache(e.app)
	sched.Start()
	defer sched.Stop()

	if path := e.common.resolvedConfigPath(); path != "" {
		reload := func() {
			cfg, err := e.common.load(e.fs)
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("config reload rejected")
				return
			}
			applyLogLevel(cfg)
			e.app.Reconfigure(cfg)
			log.Info().Str("path", path).Str("model", cfg.AIModel).Msg("config reloaded")
		}
		if err := watchConfig(ctx, path, reload); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("config watch disabled")
		}
	}

	return server.New(e.app).Run(ctx, e.app.Config().ListenAddr)
}

func purgeCache(a *app.App) {
	if _, err := a.PurgeCache(); err != nil {
		log.Warn().Err(err).Msg("cache purge failed")
	}
}

func applyLogLevel(cfg app.Config) {
	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// watchConfig calls reload after the config file changes. The parent
// directory is watched so editors that replace the file atomically are
// still seen. Bursts of events collapse into one reload.
func watchConfig(ctx context.Context, path string, reload func()) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return err
	}

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	schedule := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(reloadDelay, reload)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				mu.Lock()
				if timer != nil {
					timer.Stop()
				}
				mu.Unlock()
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					schedule()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("config watcher error")
			}
		}
	}()
	return nil
}
