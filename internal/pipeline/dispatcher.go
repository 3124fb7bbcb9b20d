// Package pipeline turns finished clips into delivered text.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/cyberscribe/internal/clip"
	"github.com/rbright/cyberscribe/internal/engine"
	"github.com/rbright/cyberscribe/internal/output"
)

// Transcriber converts one clip on disk into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Deliverer places text into the focused application.
type Deliverer interface {
	Deliver(ctx context.Context, text string) error
}

// Options control formatting and debug artifacts for subsequent jobs.
type Options struct {
	TrailingSpace   bool
	EnableAudioDump bool
}

// Result reports the outcome of one clip.
type Result struct {
	Seq      uint64
	Duration time.Duration
	// Text is what was handed to the deliverer; empty when nothing was pasted.
	Text         string
	Err          error
	DeliverErr   error
	TranscribeIn time.Duration
}

// Dispatcher transcribes each submitted clip on its own goroutine and delivers
// the results strictly in submission order.
type Dispatcher struct {
	deliver Deliverer
	logger  *slog.Logger
	results chan Result

	mu   sync.Mutex
	opts Options
	seq  uint64
	tail chan struct{}
	wg   sync.WaitGroup

	// backlog holds results the consumer has not taken yet; one forwarder
	// goroutine at a time moves them onto results.
	backlog    []Result
	forwarding bool
}

// NewDispatcher constructs a dispatcher that hands text to deliver.
func NewDispatcher(deliver Deliverer, opts Options, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{
		deliver: deliver,
		logger:  logger,
		results: make(chan Result, 16),
		opts:    opts,
	}
}

// Apply updates options for clips submitted after the call.
func (d *Dispatcher) Apply(opts Options) {
	d.mu.Lock()
	d.opts = opts
	d.mu.Unlock()
}

// Results streams one Result per submitted clip. A slow consumer never holds
// up delivery of later clips.
func (d *Dispatcher) Results() <-chan Result {
	return d.results
}

// Submit schedules c for transcription with eng. The clip file is removed once
// the job finishes.
func (d *Dispatcher) Submit(ctx context.Context, eng Transcriber, c clip.Clip) uint64 {
	d.mu.Lock()
	d.seq++
	seq := d.seq
	opts := d.opts
	prev := d.tail
	done := make(chan struct{})
	d.tail = done
	d.wg.Add(1)
	d.mu.Unlock()

	go d.run(ctx, job{seq: seq, eng: eng, clip: c, opts: opts, prev: prev, done: done})
	return seq
}

// Wait blocks until every submitted job has finished or ctx ends. Results
// produced while waiting are passed to drain.
func (d *Dispatcher) Wait(ctx context.Context, drain func(Result)) error {
	finished := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(finished)
	}()

	for {
		select {
		case <-finished:
			for {
				select {
				case result := <-d.results:
					if drain != nil {
						drain(result)
					}
				default:
					return nil
				}
			}
		case result := <-d.results:
			if drain != nil {
				drain(result)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

type job struct {
	seq  uint64
	eng  Transcriber
	clip clip.Clip
	opts Options
	prev chan struct{}
	done chan struct{}
}

func (d *Dispatcher) run(ctx context.Context, j job) {
	defer d.wg.Done()
	defer close(j.done)
	defer func() {
		if err := j.clip.Remove(); err != nil {
			d.logger.Warn("remove clip failed", "path", j.clip.Path, "error", err.Error())
		}
	}()

	if j.opts.EnableAudioDump {
		d.dumpAudio(j.clip)
	}

	result := Result{Seq: j.seq, Duration: j.clip.Duration()}
	started := time.Now()
	text, err := j.eng.Transcribe(ctx, j.clip.Path)
	result.TranscribeIn = time.Since(started)
	if err != nil {
		result.Err = err
		text = engine.DescribeError(err)
		d.logger.Error("transcription failed", "seq", j.seq, "error", err.Error())
	}
	text = format(text, j.opts)

	if j.prev != nil {
		select {
		case <-j.prev:
		case <-ctx.Done():
			result.DeliverErr = ctx.Err()
			d.publish(result)
			return
		}
	}

	if text == "" {
		d.logger.Info("no transcription result", "seq", j.seq, "clip_ms", result.Duration.Milliseconds())
	} else {
		result.Text = text
		if err := d.deliver.Deliver(ctx, text); err != nil {
			result.DeliverErr = err
			d.logger.Error("deliver transcript failed", "seq", j.seq, "error", err.Error())
		} else {
			d.logger.Info("transcript delivered",
				"seq", j.seq,
				"clip_ms", result.Duration.Milliseconds(),
				"transcribe_ms", result.TranscribeIn.Milliseconds(),
				"preview", output.Preview(text, 48),
			)
		}
	}
	d.publish(result)
}

// publish queues result without blocking the caller. It must run before the
// job's wg.Done so Wait sees the forwarder.
func (d *Dispatcher) publish(result Result) {
	d.mu.Lock()
	d.backlog = append(d.backlog, result)
	if d.forwarding {
		d.mu.Unlock()
		return
	}
	d.forwarding = true
	d.wg.Add(1)
	d.mu.Unlock()

	go d.forward()
}

func (d *Dispatcher) forward() {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		if len(d.backlog) == 0 {
			d.forwarding = false
			d.backlog = nil
			d.mu.Unlock()
			return
		}
		next := d.backlog[0]
		d.backlog = d.backlog[1:]
		d.mu.Unlock()

		d.results <- next
	}
}

// format applies transcript options to text that is about to be delivered.
func format(text string, opts Options) string {
	if text == "" {
		return ""
	}
	if opts.TrailingSpace {
		return text + " "
	}
	return text
}

func (d *Dispatcher) dumpAudio(c clip.Clip) {
	path, err := copyToDebugDir(c.Path)
	if err != nil {
		d.logger.Warn(fmt.Sprintf("unable to write debug audio dump: %v", err))
		return
	}
	d.logger.Debug("debug audio dump written", "path", path)
}
