package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rbright/cyberscribe/internal/audio"
	"github.com/rbright/cyberscribe/internal/clip"
	"github.com/rbright/cyberscribe/internal/config"
	"github.com/rbright/cyberscribe/internal/engine"
	"github.com/rbright/cyberscribe/internal/fasterwhisper"
	"github.com/rbright/cyberscribe/internal/hotkey"
	"github.com/rbright/cyberscribe/internal/hotkey/grab"
	"github.com/rbright/cyberscribe/internal/hotkey/hook"
	"github.com/rbright/cyberscribe/internal/indicator"
	"github.com/rbright/cyberscribe/internal/ipc"
	"github.com/rbright/cyberscribe/internal/openaiasr"
	"github.com/rbright/cyberscribe/internal/orchestrator"
	"github.com/rbright/cyberscribe/internal/output"
	"github.com/rbright/cyberscribe/internal/pipeline"
	"github.com/rbright/cyberscribe/internal/recording"
	"github.com/rbright/cyberscribe/internal/settings"
	"github.com/rbright/cyberscribe/internal/tray"
)

const staleClipAge = time.Hour

func (r Runner) commandRun(ctx context.Context, loaded config.Loaded, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, ipc.AcquireOptions{
		ProbeTimeout: 180 * time.Millisecond,
		Retries:      8,
		OnStale: func(path string) {
			logger.Info("removed stale control socket", "path", path)
		},
	})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		if !errors.Is(err, ipc.ErrAlreadyRunning) {
			logger.Error("acquire control socket failed", "error", err.Error())
		}
		return 1
	}
	defer func() {
		if err := ipc.Release(listener, socketPath); err != nil {
			logger.Warn("release control socket failed", "error", err.Error())
		}
	}()

	orch, err := buildDaemon(config.NewStore(loaded), logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("daemon setup failed", "error", err.Error())
		return 1
	}

	g, gctx := errgroup.WithContext(ctx)
	serveCtx, stopServe := context.WithCancel(gctx)
	g.Go(func() error {
		defer stopServe()
		return orch.Run(gctx)
	})
	g.Go(func() error {
		return ipc.Serve(serveCtx, listener, orch)
	})

	if err := g.Wait(); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("daemon failed", "error", err.Error())
		return 1
	}
	logger.Info("daemon stopped")
	return 0
}

// buildDaemon wires every runtime collaborator around the orchestrator.
func buildDaemon(store *config.Store, logger *slog.Logger) (*orchestrator.Orchestrator, error) {
	cfg := store.Snapshot()

	clipDir := filepath.Join(os.TempDir(), "cyberscribe")
	if removed, err := clip.CleanupStale(clipDir, staleClipAge, time.Now()); err != nil {
		logger.Warn("clean stale clips failed", "dir", clipDir, "error", err.Error())
	} else if removed > 0 {
		logger.Info("removed stale clips", "dir", clipDir, "count", removed)
	}

	recorder := recording.New(microphone(store, logger), clipDir, audio.SampleRate, logger)
	sink := output.NewSink(cfg, logger)
	go func() {
		if err := sink.Prepare(); err != nil {
			logger.Warn("virtual keyboard unavailable; transcripts stay on the clipboard", "error", err.Error())
		}
	}()
	notifier := indicator.New(cfg.Indicator, logger)
	dispatcher := pipeline.NewDispatcher(sink, orchestrator.PipelineOptions(cfg), logger)

	newEngine := func(cfg config.Config) orchestrator.Engine {
		return engine.New(orchestrator.EngineSpec(cfg), engineLoader(cfg.ASR, logger), logger)
	}

	var orch *orchestrator.Orchestrator
	offer := func(cmd orchestrator.Command) {
		if orch != nil {
			orch.Offer(cmd)
		}
	}

	backend := hotkeyBackend(cfg.Hotkey.Backend, logger)
	hotkeys := hotkey.NewListener(backend, func() { offer(orchestrator.CmdToggle) }, logger)

	var trayCtl tray.Controller = tray.NewHeadless()
	if cfg.Tray.Enable {
		icon, err := tray.New(logger)
		if err != nil {
			logger.Warn("tray unavailable", "error", err.Error())
		} else {
			trayCtl = icon
		}
	}

	startBackend := cfg.Hotkey.Backend
	deps := orchestrator.Deps{
		Store:      store,
		Recorder:   recorder,
		Hotkeys:    hotkeys,
		Tray:       trayCtl,
		Indicator:  notifier,
		Dispatcher: dispatcher,
		Engine:     newEngine(cfg),
		NewEngine:  newEngine,
		Settings: func(ctx context.Context, current config.Config) (settings.Outcome, error) {
			return settings.Run(ctx, current, settings.Options{
				ConfigPath:  store.Path(),
				TerminalCmd: current.Settings.TerminalCmd.Argv,
				SelfTest:    func() { offer(orchestrator.CmdToggle) },
			})
		},
		OnApply: func(next config.Config) {
			sink.Apply(next)
			notifier.Apply(next.Indicator)
			if next.Hotkey.Backend != startBackend {
				logger.Warn("hotkey backend change takes effect after restart",
					"running", startBackend, "configured", next.Hotkey.Backend)
			}
		},
		Logger: logger,
	}

	built, err := orchestrator.New(deps)
	if err != nil {
		return nil, err
	}
	orch = built
	return orch, nil
}

// microphone opens the configured pulse source on every recording so device
// changes in the config apply to the next capture.
func microphone(store *config.Store, logger *slog.Logger) recording.Opener {
	return func(ctx context.Context) (recording.Stream, error) {
		cfg := store.Snapshot()
		capture, selection, err := audio.Open(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
		if err != nil {
			return nil, err
		}
		if selection.Warning != "" {
			logger.Warn("audio device fallback", "device", selection.Device.ID, "warning", selection.Warning)
		}
		logger.Debug("audio device selected", "device", selection.Device.ID, "fallback", selection.Fallback)
		return capture, nil
	}
}

// engineLoader picks the model backend named by cfg.Backend.
func engineLoader(cfg config.ASRConfig, logger *slog.Logger) engine.Loader {
	switch cfg.Backend {
	case "openai":
		return openaiasr.Loader(openaiasr.Config{
			Model:     cfg.OpenAI.Model,
			BaseURL:   cfg.OpenAI.BaseURL,
			APIKeyEnv: cfg.OpenAI.APIKeyEnv,
		}, logger)
	default:
		return fasterwhisper.Loader(cfg.Python, logger)
	}
}

// hotkeyBackend returns the preferred backend, the other one when the
// preferred is unavailable, or an inert backend that fails every Register.
func hotkeyBackend(preferred string, logger *slog.Logger) hotkey.Backend {
	constructors := map[string]func() (hotkey.Backend, error){
		"grab": func() (hotkey.Backend, error) {
			b, err := grab.New()
			if err != nil {
				return nil, err
			}
			return b, nil
		},
		"hook": func() (hotkey.Backend, error) {
			b, err := hook.New()
			if err != nil {
				return nil, err
			}
			return b, nil
		},
	}

	order := []string{"grab", "hook"}
	if preferred == "hook" {
		order = []string{"hook", "grab"}
	}

	var errs []error
	for _, name := range order {
		backend, err := constructors[name]()
		if err == nil {
			if name != preferred {
				logger.Warn("hotkey backend fallback", "configured", preferred, "using", name)
			}
			return backend
		}
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
	}

	err := errors.Join(errs...)
	logger.Error("no hotkey backend available", "error", err.Error())
	return inertBackend{err: err}
}

type inertBackend struct {
	err error
}

func (inertBackend) Name() string { return "none" }

func (b inertBackend) Register(hotkey.Chord) (hotkey.Binding, error) {
	return nil, b.err
}
