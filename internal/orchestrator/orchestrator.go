// Package orchestrator owns the dictation command loop: it is the single
// consumer of toggle, settings, reload, and quit commands and the only writer
// of the recording state.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/cyberscribe/internal/clip"
	"github.com/rbright/cyberscribe/internal/config"
	"github.com/rbright/cyberscribe/internal/engine"
	"github.com/rbright/cyberscribe/internal/fsm"
	"github.com/rbright/cyberscribe/internal/hotkey"
	"github.com/rbright/cyberscribe/internal/pipeline"
	"github.com/rbright/cyberscribe/internal/settings"
	"github.com/rbright/cyberscribe/internal/tray"
)

// Command is one unit of work on the queue.
type Command string

const (
	CmdToggle       Command = "toggle"
	CmdOpenSettings Command = "open_settings"
	CmdQuit         Command = "quit"
	CmdReload       Command = "reload"
)

const (
	queueSize    = 32
	pollInterval = 500 * time.Millisecond
	drainTimeout = 10 * time.Second
)

var (
	// ErrStopped is returned by Submit once the loop has shut down.
	ErrStopped = errors.New("orchestrator stopped")
	// ErrUnknownCommand rejects commands outside the queue vocabulary.
	ErrUnknownCommand = errors.New("unknown command")
)

// Recorder is the capture lifecycle the loop drives.
type Recorder interface {
	Start(ctx context.Context) error
	Stop() (clip.Clip, bool, error)
	Abort()
	Close()
	Faults() <-chan error
}

// Hotkeys binds the global toggle chord.
type Hotkeys interface {
	Bind(chord string) error
	Close()
}

// Dispatcher runs transcription jobs off the loop.
type Dispatcher interface {
	Submit(ctx context.Context, eng pipeline.Transcriber, c clip.Clip) uint64
	Results() <-chan pipeline.Result
	Wait(ctx context.Context, drain func(pipeline.Result)) error
	Apply(opts pipeline.Options)
}

// Engine is a loaded (or loading) speech model.
type Engine interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
	State() engine.ModelState
	Spec() engine.Spec
	Close() error
}

// Store holds the current configuration.
type Store interface {
	Snapshot() config.Config
	Replace(cfg config.Config) error
	Reload() (config.Config, []config.Warning, error)
}

// Indicator gives best-effort user feedback.
type Indicator interface {
	ShowRecording(context.Context)
	ShowTranscribing(context.Context)
	ShowError(context.Context, string)
	CueComplete(context.Context)
	Hide(context.Context)
}

type noopIndicator struct{}

func (noopIndicator) ShowRecording(context.Context)     {}
func (noopIndicator) ShowTranscribing(context.Context)  {}
func (noopIndicator) ShowError(context.Context, string) {}
func (noopIndicator) CueComplete(context.Context)       {}
func (noopIndicator) Hide(context.Context)              {}

// Deps are the collaborators wired into the loop. Store, Recorder, Hotkeys,
// Dispatcher, Engine, and NewEngine are required.
type Deps struct {
	Store      Store
	Recorder   Recorder
	Hotkeys    Hotkeys
	Tray       tray.Controller
	Indicator  Indicator
	Dispatcher Dispatcher
	Engine     Engine
	// NewEngine builds a replacement engine after the model settings change.
	NewEngine func(config.Config) Engine
	// Settings shows the settings surface and blocks until it closes.
	Settings func(context.Context, config.Config) (settings.Outcome, error)
	// OnApply observes every configuration the loop applies.
	OnApply func(config.Config)
	Logger  *slog.Logger
}

// Status is a point-in-time view of the loop.
type Status struct {
	State   fsm.State
	Model   engine.ModelState
	Chord   string
	Pending int
}

// Orchestrator serializes all state changes through one command queue.
type Orchestrator struct {
	deps   Deps
	logger *slog.Logger

	queue    chan Command
	stopped  chan struct{}
	stopOnce sync.Once

	mu      sync.RWMutex
	state   fsm.State
	chord   string
	pending int
	engine  Engine
	// jobs maps a submitted seq to the engine transcribing it; refs counts
	// those jobs per engine so a replaced engine closes after its last one.
	jobs    map[uint64]Engine
	refs    map[Engine]int
	closing sync.WaitGroup
}

// New validates deps and returns an idle orchestrator.
func New(deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("orchestrator: store is required")
	case deps.Recorder == nil:
		return nil, errors.New("orchestrator: recorder is required")
	case deps.Hotkeys == nil:
		return nil, errors.New("orchestrator: hotkeys are required")
	case deps.Dispatcher == nil:
		return nil, errors.New("orchestrator: dispatcher is required")
	case deps.Engine == nil || deps.NewEngine == nil:
		return nil, errors.New("orchestrator: engine and engine factory are required")
	}
	if deps.Tray == nil {
		deps.Tray = tray.NewHeadless()
	}
	if deps.Indicator == nil {
		deps.Indicator = noopIndicator{}
	}
	if deps.Settings == nil {
		deps.Settings = func(context.Context, config.Config) (settings.Outcome, error) {
			return settings.Outcome{}, settings.ErrNoTerminal
		}
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}

	return &Orchestrator{
		deps:    deps,
		logger:  deps.Logger,
		queue:   make(chan Command, queueSize),
		stopped: make(chan struct{}),
		state:   fsm.StateIdle,
		engine:  deps.Engine,
		jobs:    make(map[uint64]Engine),
		refs:    make(map[Engine]int),
	}, nil
}

// EngineSpec derives the model identity from config. Two configs with equal
// specs share a loaded model.
func EngineSpec(cfg config.Config) engine.Spec {
	return engine.Spec{
		Backend:     cfg.ASR.Backend,
		ModelSize:   cfg.ASR.ModelSize,
		Device:      cfg.ASR.Device,
		ComputeType: cfg.ASR.ComputeType,
		Language:    cfg.ASR.Language,
		BeamSize:    cfg.ASR.BeamSize,
	}
}

// PipelineOptions derives dispatcher options from config.
func PipelineOptions(cfg config.Config) pipeline.Options {
	return pipeline.Options{
		TrailingSpace:   cfg.Transcript.TrailingSpace,
		EnableAudioDump: cfg.Debug.EnableAudioDump,
	}
}

// Submit enqueues cmd, blocking while the queue is full.
func (o *Orchestrator) Submit(ctx context.Context, cmd Command) error {
	if !validCommand(cmd) {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
	}
	select {
	case <-o.stopped:
		return ErrStopped
	default:
	}

	select {
	case o.queue <- cmd:
		return nil
	case <-o.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Offer enqueues cmd without blocking and reports whether it was accepted.
// Callbacks running on the loop itself must use Offer.
func (o *Orchestrator) Offer(cmd Command) bool {
	if !validCommand(cmd) {
		return false
	}
	select {
	case <-o.stopped:
		return false
	default:
	}
	select {
	case o.queue <- cmd:
		return true
	default:
		o.logger.Warn("command queue full", "command", string(cmd))
		return false
	}
}

// Status returns a snapshot of the loop state.
func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return Status{
		State:   o.state,
		Model:   o.engine.State(),
		Chord:   o.chord,
		Pending: o.pending,
	}
}

// Stopped is closed once the loop begins shutting down.
func (o *Orchestrator) Stopped() <-chan struct{} {
	return o.stopped
}

// Run consumes commands until quit, tray exit, or ctx cancellation, then
// releases every collaborator. It returns nil on an orderly shutdown.
func (o *Orchestrator) Run(ctx context.Context) error {
	cfg := o.deps.Store.Snapshot()
	o.deps.Dispatcher.Apply(PipelineOptions(cfg))

	if err := o.deps.Tray.Start(func(item tray.Item) { o.Offer(Command(item)) }); err != nil {
		o.logger.Warn("tray start failed", "error", err.Error())
		o.deps.Tray = tray.NewHeadless()
	}
	o.bind(cfg.Hotkey.Chord)

	o.logger.Info("orchestrator ready",
		"hotkey", cfg.Hotkey.Chord,
		"asr_backend", cfg.ASR.Backend,
		"model_state", string(o.currentEngine().State()),
	)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case cmd := <-o.queue:
			if o.handle(ctx, cmd) {
				return o.shutdown("quit")
			}
		case result := <-o.deps.Dispatcher.Results():
			o.onResult(ctx, result)
		case err := <-o.deps.Recorder.Faults():
			o.onFault(ctx, err)
		case <-o.deps.Tray.Done():
			return o.shutdown("tray exited")
		case <-ctx.Done():
			return o.shutdown("context done")
		case <-ticker.C:
			select {
			case <-o.deps.Tray.Done():
				return o.shutdown("tray exited")
			default:
			}
		}
	}
}

// handle runs one command and reports whether the loop should stop.
func (o *Orchestrator) handle(ctx context.Context, cmd Command) bool {
	o.logger.Debug("command", "command", string(cmd), "state", string(o.State()))

	switch cmd {
	case CmdToggle:
		o.toggle(ctx)
	case CmdOpenSettings:
		o.openSettings(ctx)
	case CmdReload:
		o.reload()
	case CmdQuit:
		return true
	}
	return false
}

// State returns the current recording state.
func (o *Orchestrator) State() fsm.State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

func (o *Orchestrator) transition(event fsm.Event) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	next, err := fsm.Transition(o.state, event)
	if err != nil {
		return err
	}
	o.state = next
	return nil
}

// advance applies event and logs a rejected move instead of failing the command.
func (o *Orchestrator) advance(event fsm.Event) {
	if err := o.transition(event); err != nil {
		o.logger.Debug("state transition rejected", "event", string(event), "error", err.Error())
	}
}

func (o *Orchestrator) toggle(ctx context.Context) {
	switch o.State() {
	case fsm.StateIdle:
		if err := o.deps.Recorder.Start(ctx); err != nil {
			o.logger.Error("start recording failed", "error", err.Error())
			o.deps.Indicator.ShowError(ctx, "Microphone unavailable")
			return
		}
		o.advance(fsm.EventToggle)
		o.deps.Tray.SetRecording(true)
		o.deps.Indicator.ShowRecording(ctx)
		o.logger.Info("recording started")

	case fsm.StateRecording:
		c, ok, err := o.deps.Recorder.Stop()
		o.advance(fsm.EventToggle)
		o.deps.Tray.SetRecording(false)

		switch {
		case err != nil:
			o.logger.Error("stop recording failed", "error", err.Error())
			o.deps.Indicator.ShowError(ctx, "Recording failed")
		case !ok:
			o.logger.Info("recording stopped without audio")
			o.deps.Indicator.Hide(ctx)
		default:
			o.deps.Indicator.ShowTranscribing(ctx)
			eng := o.currentEngine()
			seq := o.deps.Dispatcher.Submit(ctx, eng, c)
			o.mu.Lock()
			o.pending++
			o.jobs[seq] = eng
			o.refs[eng]++
			o.mu.Unlock()
			o.logger.Info("recording stopped",
				"seq", seq,
				"clip_path", c.Path,
				"clip_ms", c.Duration().Milliseconds(),
			)
		}
	}
}

func (o *Orchestrator) onResult(ctx context.Context, result pipeline.Result) {
	o.release(result.Seq)

	switch {
	case result.Err != nil:
		o.deps.Indicator.ShowError(ctx, engine.DescribeError(result.Err))
	case result.DeliverErr != nil:
		o.deps.Indicator.ShowError(ctx, "Paste failed")
	case result.Text != "":
		o.deps.Indicator.CueComplete(ctx)
		if o.State() == fsm.StateIdle {
			o.deps.Indicator.Hide(ctx)
		}
	default:
		if o.State() == fsm.StateIdle {
			o.deps.Indicator.Hide(ctx)
		}
	}
}

func (o *Orchestrator) onFault(ctx context.Context, err error) {
	if o.State() != fsm.StateRecording {
		return
	}
	o.logger.Error("audio capture failed", "error", err.Error())
	o.deps.Recorder.Abort()
	o.advance(fsm.EventAbort)
	o.deps.Tray.SetRecording(false)
	o.deps.Indicator.ShowError(ctx, "Microphone disconnected")
}

func (o *Orchestrator) openSettings(ctx context.Context) {
	outcome, err := o.deps.Settings(ctx, o.deps.Store.Snapshot())
	if err != nil {
		if errors.Is(err, settings.ErrNoTerminal) {
			o.logger.Warn("settings unavailable", "error", err.Error())
		} else {
			o.logger.Error("settings failed", "error", err.Error())
		}
		o.deps.Indicator.ShowError(ctx, "Settings unavailable")
		return
	}

	switch {
	case outcome.Saved:
		o.applyConfig(outcome.Config, true)
	case outcome.Reload:
		o.reload()
	}
}

func (o *Orchestrator) reload() {
	cfg, warnings, err := o.deps.Store.Reload()
	if err != nil {
		o.logger.Error("reload config failed", "error", err.Error())
		return
	}
	for _, w := range warnings {
		o.logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}
	o.applyConfig(cfg, false)
}

// applyConfig makes next the live configuration. persist writes it to disk.
func (o *Orchestrator) applyConfig(next config.Config, persist bool) {
	if persist {
		if err := o.deps.Store.Replace(next); err != nil {
			o.logger.Error("save config failed", "error", err.Error())
			return
		}
	}

	o.mu.RLock()
	chord := o.chord
	o.mu.RUnlock()
	if next.Hotkey.Chord != chord {
		o.bind(next.Hotkey.Chord)
	}

	current := o.currentEngine()
	if spec := EngineSpec(next); spec != current.Spec() {
		if spec.Backend != current.Spec().Backend {
			o.logger.Warn("asr backend changed", "from", current.Spec().Backend, "to", spec.Backend)
		}
		replacement := o.deps.NewEngine(next)
		o.mu.Lock()
		o.engine = replacement
		busy := o.refs[current]
		o.mu.Unlock()
		if busy == 0 {
			o.retire(current)
		}
		o.logger.Info("speech model replaced",
			"model_size", spec.ModelSize,
			"device", spec.Device,
			"compute_type", spec.ComputeType,
			"language", spec.Language,
			"draining_jobs", busy,
		)
	}

	o.deps.Dispatcher.Apply(PipelineOptions(next))
	if o.deps.OnApply != nil {
		o.deps.OnApply(next)
	}
	o.logger.Info("config applied", "persisted", persist)
}

// bind registers chord. An unparsable chord leaves the old binding in place;
// any other failure leaves none, so the recorded chord is cleared and a later
// config naming the old chord binds it again.
func (o *Orchestrator) bind(chord string) {
	err := o.deps.Hotkeys.Bind(chord)
	o.mu.Lock()
	switch {
	case err == nil:
		o.chord = chord
	case !errors.Is(err, hotkey.ErrInvalidChord):
		o.chord = ""
	}
	o.mu.Unlock()
	if err != nil {
		o.logger.Error("hotkey registration failed", "hotkey", chord, "error", err.Error())
	}
}

// release drops the engine reference held by job seq and closes that engine
// once it has been replaced and no job still uses it.
func (o *Orchestrator) release(seq uint64) {
	o.mu.Lock()
	if o.pending > 0 {
		o.pending--
	}
	eng, ok := o.jobs[seq]
	if !ok {
		o.mu.Unlock()
		return
	}
	delete(o.jobs, seq)
	o.refs[eng]--
	idle := o.refs[eng] <= 0
	if idle {
		delete(o.refs, eng)
	}
	replaced := eng != o.engine
	o.mu.Unlock()

	if idle && replaced {
		o.retire(eng)
	}
}

// retire closes a replaced engine off the loop.
func (o *Orchestrator) retire(eng Engine) {
	o.closing.Go(func() {
		if err := eng.Close(); err != nil {
			o.logger.Warn("close previous engine failed", "error", err.Error())
		}
	})
}

func (o *Orchestrator) currentEngine() Engine {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.engine
}

func (o *Orchestrator) shutdown(reason string) error {
	o.stopOnce.Do(func() { close(o.stopped) })
	o.logger.Info("shutting down", "reason", reason)

	o.mu.Lock()
	if next, err := fsm.Transition(o.state, fsm.EventQuit); err == nil {
		o.state = next
	}
	o.mu.Unlock()

	o.deps.Hotkeys.Close()
	o.deps.Recorder.Close()
	o.deps.Tray.Stop()

	waitCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	err := o.deps.Dispatcher.Wait(waitCtx, func(result pipeline.Result) {
		o.logger.Debug("job finished during shutdown", "seq", result.Seq)
		o.release(result.Seq)
	})
	if err != nil {
		o.logger.Warn("transcription jobs still running at shutdown", "error", err.Error())
	}

	current := o.currentEngine()
	o.mu.Lock()
	for eng := range o.refs {
		if eng != current {
			o.retire(eng)
		}
	}
	clear(o.refs)
	clear(o.jobs)
	o.mu.Unlock()

	if err := current.Close(); err != nil {
		o.logger.Warn("close engine failed", "error", err.Error())
	}
	o.closing.Wait()
	return nil
}

func validCommand(cmd Command) bool {
	switch cmd {
	case CmdToggle, CmdOpenSettings, CmdQuit, CmdReload:
		return true
	}
	return false
}
